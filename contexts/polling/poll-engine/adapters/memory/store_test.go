package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pollapp/contexts/polling/poll-engine/domain/entities"
	domainerrors "pollapp/contexts/polling/poll-engine/domain/errors"
	"pollapp/contexts/polling/poll-engine/ports"
)

func seedPoll(t *testing.T, id string, createdAt time.Time) entities.Poll {
	t.Helper()
	poll, err := entities.NewPoll(id, "title "+id, "", "creator-1", []entities.Option{
		{OptionID: id + "-a", Text: "A"},
		{OptionID: id + "-b", Text: "B"},
	}, nil, createdAt)
	if err != nil {
		t.Fatalf("seed poll failed: %v", err)
	}
	return poll
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	poll := seedPoll(t, "poll-1", time.Now())

	if err := store.Insert(ctx, poll); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.Insert(ctx, poll); !errors.Is(err, domainerrors.ErrPollExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestCommitRequiresMatchingVersion(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewStore([]entities.Poll{seedPoll(t, "poll-1", now)})

	loaded, err := store.Load(ctx, "poll-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	next, err := loaded.WithVote(loaded.Options[0].OptionID, "user-1", now)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if err := store.Commit(ctx, "poll-1", loaded.Version, next); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// A second writer holding the stale snapshot loses.
	stale, err := loaded.WithVote(loaded.Options[1].OptionID, "user-2", now)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if err := store.Commit(ctx, "poll-1", loaded.Version, stale); !errors.Is(err, domainerrors.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	if err := store.Commit(ctx, "missing", 0, next); !errors.Is(err, domainerrors.ErrPollNotFound) {
		t.Fatalf("expected not-found for unknown poll, got %v", err)
	}
}

func TestLoadReturnsIsolatedSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewStore(nil)
	poll := seedPoll(t, "poll-1", now)
	voted, err := poll.WithVote(poll.Options[0].OptionID, "user-1", now)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if err := store.Insert(ctx, voted); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	first, err := store.Load(ctx, "poll-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	first.Options[0].Voters[0] = "tampered"
	first.Title = "tampered"

	second, err := store.Load(ctx, "poll-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if second.Options[0].Voters[0] != "user-1" || second.Title != "title poll-1" {
		t.Fatalf("stored snapshot leaked mutable state")
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	store := NewStore([]entities.Poll{
		seedPoll(t, "poll-1", base),
		seedPoll(t, "poll-2", base.Add(time.Minute)),
		seedPoll(t, "poll-3", base.Add(2*time.Minute)),
	})

	items, total, err := store.List(ctx, 0, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(items) != 2 || items[0].PollID != "poll-3" || items[1].PollID != "poll-2" {
		t.Fatalf("unexpected page: %+v", items)
	}

	items, total, err = store.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || len(items) != 1 || items[0].PollID != "poll-1" {
		t.Fatalf("unexpected last page: %+v", items)
	}
}

func TestOutboxAppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	envelope := ports.EventEnvelope{
		EventID:       "evt-1",
		EventType:     "poll.created",
		OccurredAt:    time.Now().UTC(),
		SourceService: "poll-engine",
		SchemaVersion: 1,
		PartitionKey:  "poll-1",
	}

	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("idempotent append failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}

	if err := store.MarkOutboxPublished(ctx, "missing-row", time.Now()); !errors.Is(err, domainerrors.ErrOutboxRowNotFound) {
		t.Fatalf("expected outbox-row-not-found for unknown id, got %v", err)
	}

	if err := store.MarkOutboxPublished(ctx, pending[0].OutboxID, time.Now()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected drained outbox, got %d pending", len(pending))
	}
}
