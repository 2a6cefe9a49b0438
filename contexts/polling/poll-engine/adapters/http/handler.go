package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"pollapp/contexts/polling/poll-engine/application/commands"
	"pollapp/contexts/polling/poll-engine/application/queries"
	"pollapp/contexts/polling/poll-engine/domain/entities"
	"pollapp/contexts/polling/poll-engine/ports"
	httptransport "pollapp/contexts/polling/poll-engine/transport/http"
)

// Handler is the transport-facing facade over the engine's use cases. The
// platform HTTP server does routing and header parsing; this layer maps DTOs
// to commands and snapshots to responses.
type Handler struct {
	Polls  commands.PollUseCase
	Votes  commands.VoteUseCase
	Reads  queries.PollQueries
	Clock  ports.Clock
	Logger *slog.Logger
}

func (h Handler) CreatePollHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.CreatePollRequest,
) (httptransport.PollResponse, error) {
	poll, err := h.Polls.CreatePoll(ctx, commands.CreatePollCommand{
		Actor:       actor,
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) GetPollHandler(ctx context.Context, pollID string) (httptransport.PollResponse, error) {
	poll, err := h.Reads.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) ListPollsHandler(ctx context.Context, page int, limit int) (httptransport.PollListResponse, error) {
	result, err := h.Reads.ListPolls(ctx, page, limit)
	if err != nil {
		return httptransport.PollListResponse{}, err
	}
	items := make([]httptransport.PollResponse, 0, len(result.Items))
	for _, poll := range result.Items {
		items = append(items, h.toResponse(poll))
	}
	return httptransport.PollListResponse{
		Items: items,
		Total: result.Total,
		Page:  result.Page,
		Limit: result.Limit,
	}, nil
}

func (h Handler) UpdatePollHandler(
	ctx context.Context,
	actor entities.Actor,
	pollID string,
	req httptransport.UpdatePollRequest,
) (httptransport.PollResponse, error) {
	poll, err := h.Polls.UpdateMetadata(ctx, commands.UpdateMetadataCommand{
		Actor:  actor,
		PollID: pollID,
		Update: entities.MetadataUpdate{
			Title:       req.Title,
			Description: req.Description,
			ExpiresAt:   req.ExpiresAt,
		},
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) ToggleLockHandler(ctx context.Context, actor entities.Actor, pollID string) (httptransport.PollResponse, error) {
	poll, err := h.Polls.ToggleLock(ctx, commands.ToggleLockCommand{Actor: actor, PollID: pollID})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) AddOptionHandler(
	ctx context.Context,
	actor entities.Actor,
	pollID string,
	req httptransport.AddOptionRequest,
) (httptransport.PollResponse, error) {
	poll, err := h.Polls.AddOption(ctx, commands.AddOptionCommand{Actor: actor, PollID: pollID, Text: req.Text})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) RemoveOptionHandler(
	ctx context.Context,
	actor entities.Actor,
	pollID string,
	optionID string,
) (httptransport.PollResponse, error) {
	poll, err := h.Polls.RemoveOption(ctx, commands.RemoveOptionCommand{Actor: actor, PollID: pollID, OptionID: optionID})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	actor entities.Actor,
	pollID string,
	req httptransport.CastVoteRequest,
) (httptransport.PollResponse, error) {
	poll, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{Actor: actor, PollID: pollID, OptionID: req.OptionID})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) RetractVoteHandler(ctx context.Context, actor entities.Actor, pollID string) (httptransport.PollResponse, error) {
	poll, err := h.Votes.RetractVote(ctx, commands.RetractVoteCommand{Actor: actor, PollID: pollID})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.toResponse(poll), nil
}

func (h Handler) DeletePollHandler(ctx context.Context, actor entities.Actor, pollID string) error {
	return h.Polls.DeletePoll(ctx, commands.DeletePollCommand{Actor: actor, PollID: pollID})
}

func (h Handler) toResponse(poll entities.Poll) httptransport.PollResponse {
	now := time.Now().UTC()
	if h.Clock != nil {
		now = h.Clock.Now().UTC()
	}
	options := make([]httptransport.OptionResponse, 0, len(poll.Options))
	for _, option := range poll.Options {
		options = append(options, httptransport.OptionResponse{
			OptionID:  option.OptionID,
			Text:      option.Text,
			VoteCount: option.VoteCount,
			Voters:    append([]string(nil), option.Voters...),
		})
	}
	return httptransport.PollResponse{
		PollID:      poll.PollID,
		Title:       poll.Title,
		Description: poll.Description,
		CreatorID:   poll.CreatorID,
		Options:     options,
		IsLocked:    poll.IsLocked,
		Expired:     poll.Expired(now),
		ExpiresAt:   poll.ExpiresAt,
		TotalVotes:  poll.TotalVotes,
		Version:     poll.Version,
		CreatedAt:   poll.CreatedAt,
		UpdatedAt:   poll.UpdatedAt,
	}
}
