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

// CreatePollCommand is the write-model input for poll creation.
type CreatePollCommand struct {
	Actor       entities.Actor
	Title       string
	Description string
	Options     []string
	ExpiresAt   *time.Time
}

// UpdateMetadataCommand mutates title/description/expiry only. Options and
// lock state have their own commands.
type UpdateMetadataCommand struct {
	Actor  entities.Actor
	PollID string
	Update entities.MetadataUpdate
}

type ToggleLockCommand struct {
	Actor  entities.Actor
	PollID string
}

type AddOptionCommand struct {
	Actor  entities.Actor
	PollID string
	Text   string
}

type RemoveOptionCommand struct {
	Actor    entities.Actor
	PollID   string
	OptionID string
}

type DeletePollCommand struct {
	Actor  entities.Actor
	PollID string
}

// PollUseCase is the lifecycle side of the engine: creation, metadata,
// lock toggles, option mutation, and deletion. Every mutation goes through
// the pure aggregate rules and a conditional commit; authorization is
// re-evaluated against each freshly loaded snapshot inside the retry loop.
type PollUseCase struct {
	Polls  ports.PollRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc PollUseCase) CreatePoll(ctx context.Context, cmd CreatePollCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.Actor.ID) == "" {
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}

	pollID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Poll{}, err
	}
	options := make([]entities.Option, 0, len(cmd.Options))
	for _, text := range cmd.Options {
		optionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Poll{}, err
		}
		options = append(options, entities.Option{OptionID: optionID, Text: text})
	}

	now := uc.now()
	poll, err := entities.NewPoll(pollID, cmd.Title, cmd.Description, cmd.Actor.ID, options, cmd.ExpiresAt, now)
	if err != nil {
		logger.Warn("poll create validation failed",
			"event", "poll_create_validation_failed",
			"module", "polling/poll-engine",
			"layer", "application",
			"creator_id", strings.TrimSpace(cmd.Actor.ID),
			"error", err.Error(),
		)
		return entities.Poll{}, err
	}
	if err := uc.Polls.Insert(ctx, poll); err != nil {
		return entities.Poll{}, err
	}

	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, "poll.created", poll, now, map[string]any{
		"title":        poll.Title,
		"option_count": len(poll.Options),
	})
	logger.Info("poll created",
		"event", "poll_created",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"creator_id", poll.CreatorID,
		"option_count", len(poll.Options),
	)
	return poll, nil
}

func (uc PollUseCase) UpdateMetadata(ctx context.Context, cmd UpdateMetadataCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	poll, err := commitWithRetry(ctx, uc.Polls, strings.TrimSpace(cmd.PollID), func(current entities.Poll) (entities.Poll, error) {
		if !current.CanManage(cmd.Actor) {
			return entities.Poll{}, domainerrors.ErrForbidden
		}
		return current.WithMetadata(cmd.Update, now)
	})
	if err != nil {
		return entities.Poll{}, err
	}

	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, "poll.updated", poll, now, map[string]any{
		"title": poll.Title,
	})
	logger.Info("poll metadata updated",
		"event", "poll_metadata_updated",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
		"version", poll.Version,
	)
	return poll, nil
}

func (uc PollUseCase) ToggleLock(ctx context.Context, cmd ToggleLockCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	poll, err := commitWithRetry(ctx, uc.Polls, strings.TrimSpace(cmd.PollID), func(current entities.Poll) (entities.Poll, error) {
		if !current.CanManage(cmd.Actor) {
			return entities.Poll{}, domainerrors.ErrForbidden
		}
		return current.WithLockToggled(now)
	})
	if err != nil {
		return entities.Poll{}, err
	}

	eventType := "poll.unlocked"
	if poll.IsLocked {
		eventType = "poll.locked"
	}
	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, eventType, poll, now, nil)
	logger.Info("poll lock toggled",
		"event", "poll_lock_toggled",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
		"is_locked", poll.IsLocked,
	)
	return poll, nil
}

func (uc PollUseCase) AddOption(ctx context.Context, cmd AddOptionCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)

	// The option id is generated once so retries after a version conflict
	// re-append the same option instead of minting a new identity.
	optionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Poll{}, err
	}
	now := uc.now()

	poll, err := commitWithRetry(ctx, uc.Polls, strings.TrimSpace(cmd.PollID), func(current entities.Poll) (entities.Poll, error) {
		if !current.CanManage(cmd.Actor) {
			return entities.Poll{}, domainerrors.ErrForbidden
		}
		return current.WithOptionAdded(optionID, cmd.Text, now)
	})
	if err != nil {
		return entities.Poll{}, err
	}

	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, "poll.option_added", poll, now, map[string]any{
		"option_id": optionID,
	})
	logger.Info("poll option added",
		"event", "poll_option_added",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"option_id", optionID,
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
	)
	return poll, nil
}

func (uc PollUseCase) RemoveOption(ctx context.Context, cmd RemoveOptionCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	poll, err := commitWithRetry(ctx, uc.Polls, strings.TrimSpace(cmd.PollID), func(current entities.Poll) (entities.Poll, error) {
		if !current.CanManage(cmd.Actor) {
			return entities.Poll{}, domainerrors.ErrForbidden
		}
		return current.WithOptionRemoved(strings.TrimSpace(cmd.OptionID), now)
	})
	if err != nil {
		return entities.Poll{}, err
	}

	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, "poll.option_removed", poll, now, map[string]any{
		"option_id": strings.TrimSpace(cmd.OptionID),
	})
	logger.Info("poll option removed",
		"event", "poll_option_removed",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"option_id", strings.TrimSpace(cmd.OptionID),
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
	)
	return poll, nil
}

// DeletePoll is an administrative operation with the same ownership check as
// update. It bypasses the version loop: deletion is terminal and idempotency
// is covered by the not-found answer on a repeat.
func (uc PollUseCase) DeletePoll(ctx context.Context, cmd DeletePollCommand) error {
	logger := application.ResolveLogger(uc.Logger)

	poll, err := uc.Polls.Load(ctx, strings.TrimSpace(cmd.PollID))
	if err != nil {
		return err
	}
	if !poll.CanManage(cmd.Actor) {
		return domainerrors.ErrForbidden
	}
	if err := uc.Polls.Delete(ctx, poll.PollID); err != nil {
		return err
	}

	now := uc.now()
	appendPollEvent(ctx, uc.Outbox, uc.IDGen, logger, "poll.deleted", poll, now, nil)
	logger.Info("poll deleted",
		"event", "poll_deleted",
		"module", "polling/poll-engine",
		"layer", "application",
		"poll_id", poll.PollID,
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
	)
	return nil
}

func (uc PollUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
