package commands

import (
	"context"
	"errors"

	"pollapp/contexts/polling/poll-engine/domain/entities"
	domainerrors "pollapp/contexts/polling/poll-engine/domain/errors"
	"pollapp/contexts/polling/poll-engine/ports"
)

// maxCommitAttempts bounds the optimistic-concurrency retry loop. Contention
// is per-poll and short-lived, so no backoff between attempts.
const maxCommitAttempts = 5

// commitWithRetry runs the fetch → decide → conditional-commit loop. decide
// must be pure: it is re-run against a fresh snapshot after every version
// conflict. Decision errors surface immediately without touching storage.
func commitWithRetry(
	ctx context.Context,
	polls ports.PollRepository,
	pollID string,
	decide func(entities.Poll) (entities.Poll, error),
) (entities.Poll, error) {
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		current, err := polls.Load(ctx, pollID)
		if err != nil {
			return entities.Poll{}, err
		}
		next, err := decide(current)
		if err != nil {
			return entities.Poll{}, err
		}
		err = polls.Commit(ctx, pollID, current.Version, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domainerrors.ErrVersionConflict) {
			return entities.Poll{}, err
		}
	}
	return entities.Poll{}, domainerrors.ErrTooManyConflicts
}
