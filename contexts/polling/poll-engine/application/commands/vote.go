package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "pollapp/contexts/polling/poll-engine/application"
	"pollapp/contexts/polling/poll-engine/domain/entities"
	domainerrors "pollapp/contexts/polling/poll-engine/domain/errors"
	"pollapp/contexts/polling/poll-engine/ports"
)

// CastVoteCommand records one vote by one actor on one option.
type CastVoteCommand struct {
	Actor    entities.Actor
	PollID   string
	OptionID string
}

// RetractVoteCommand removes the actor's vote wherever it sits. No option id:
// the ledger rule scans the poll.
type RetractVoteCommand struct {
	Actor  entities.Actor
	PollID string
}

// VoteUseCase applies vote/unvote through the pure ledger rules and the
// conditional commit. Under concurrent writers each operation lands atomically
// or retries against the winner's snapshot, so votes are never lost or
// half-applied.
type VoteUseCase struct {
	Polls  ports.PollRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.Actor.ID) == "" || strings.TrimSpace(cmd.OptionID) == "" {
		logger.Warn("vote cast validation failed",
			"event", "vote_cast_validation_failed",
			"module", "polling/poll-engine",
			"layer", "application",
			"poll_id", strings.TrimSpace(cmd.PollID),
			"actor_id", strings.TrimSpace(cmd.Actor.ID),
		)
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}

	now := uc.now()
	poll, err := commitWithRetry(ctx, uc.Polls, strings.TrimSpace(cmd.PollID), func(current entities.Poll) (entities.Poll, error) {
		return current.WithVote(strings.TrimSpace(cmd.OptionID), strings.TrimSpace(cmd.Actor.ID), now)
	})
	if err != nil {
		return entities.Poll{}, err
	}

	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, "vote.cast", poll, now, map[string]any{
		"option_id": strings.TrimSpace(cmd.OptionID),
		"voter_id":  strings.TrimSpace(cmd.Actor.ID),
	})
	logger.Info("vote cast",
		"event", "vote_cast",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"option_id", strings.TrimSpace(cmd.OptionID),
		"voter_id", strings.TrimSpace(cmd.Actor.ID),
		"total_votes", poll.TotalVotes,
	)
	return poll, nil
}

func (uc VoteUseCase) RetractVote(ctx context.Context, cmd RetractVoteCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.Actor.ID) == "" {
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}

	now := uc.now()
	poll, err := commitWithRetry(ctx, uc.Polls, strings.TrimSpace(cmd.PollID), func(current entities.Poll) (entities.Poll, error) {
		return current.WithVoteRetracted(strings.TrimSpace(cmd.Actor.ID), now)
	})
	if err != nil {
		return entities.Poll{}, err
	}

	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, "vote.retracted", poll, now, map[string]any{
		"voter_id": strings.TrimSpace(cmd.Actor.ID),
	})
	logger.Info("vote retracted",
		"event", "vote_retracted",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"voter_id", strings.TrimSpace(cmd.Actor.ID),
		"total_votes", poll.TotalVotes,
	)
	return poll, nil
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
