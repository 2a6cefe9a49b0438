package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pollapp/contexts/polling/poll-engine/adapters/memory"
	"pollapp/contexts/polling/poll-engine/domain/entities"
	domainerrors "pollapp/contexts/polling/poll-engine/domain/errors"
	"pollapp/contexts/polling/poll-engine/ports"
)

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

type seqIDGen struct {
	mu   sync.Mutex
	next int
}

func (g *seqIDGen) NewID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

func newVoteFixture(t *testing.T) (*memory.Store, VoteUseCase, entities.Poll) {
	t.Helper()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	poll, err := entities.NewPoll("poll-1", "Lunch spot", "", "creator-1", []entities.Option{
		{OptionID: "opt-a", Text: "A"},
		{OptionID: "opt-b", Text: "B"},
	}, nil, now)
	if err != nil {
		t.Fatalf("seed poll failed: %v", err)
	}
	store := memory.NewStore([]entities.Poll{poll})
	uc := VoteUseCase{
		Polls:  store,
		Outbox: store,
		Clock:  fixedClock{now: now},
		IDGen:  &seqIDGen{},
	}
	return store, uc, poll
}

func TestCastVoteRecordsVoteAndBumpsVersion(t *testing.T) {
	store, uc, _ := newVoteFixture(t)

	poll, err := uc.CastVote(context.Background(), CastVoteCommand{
		Actor:    entities.Actor{ID: "user-1", Role: entities.RoleUser},
		PollID:   "poll-1",
		OptionID: "opt-a",
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if poll.TotalVotes != 1 || poll.Version != 1 {
		t.Fatalf("expected total=1 version=1, got total=%d version=%d", poll.TotalVotes, poll.Version)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "vote.cast" {
		t.Fatalf("expected one vote.cast outbox message, got %+v", pending)
	}
}

func TestCastVoteRejectsSecondVote(t *testing.T) {
	_, uc, _ := newVoteFixture(t)
	ctx := context.Background()
	actor := entities.Actor{ID: "user-1", Role: entities.RoleUser}

	if _, err := uc.CastVote(ctx, CastVoteCommand{Actor: actor, PollID: "poll-1", OptionID: "opt-a"}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	_, err := uc.CastVote(ctx, CastVoteCommand{Actor: actor, PollID: "poll-1", OptionID: "opt-b"})
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected already-voted, got %v", err)
	}
}

func TestCastVoteValidatesInput(t *testing.T) {
	_, uc, _ := newVoteFixture(t)
	ctx := context.Background()

	_, err := uc.CastVote(ctx, CastVoteCommand{Actor: entities.Actor{}, PollID: "poll-1", OptionID: "opt-a"})
	if !errors.Is(err, domainerrors.ErrInvalidPollInput) {
		t.Fatalf("expected invalid input for missing actor, got %v", err)
	}
	_, err = uc.CastVote(ctx, CastVoteCommand{Actor: entities.Actor{ID: "user-1"}, PollID: "poll-1"})
	if !errors.Is(err, domainerrors.ErrInvalidPollInput) {
		t.Fatalf("expected invalid input for missing option, got %v", err)
	}
}

func TestConcurrentVotersAllLand(t *testing.T) {
	store, uc, _ := newVoteFixture(t)
	ctx := context.Background()

	const voters = 16
	cmds := make([]CastVoteCommand, 0, voters)
	for i := 0; i < voters; i++ {
		optionID := "opt-a"
		if i%2 == 1 {
			optionID = "opt-b"
		}
		cmds = append(cmds, CastVoteCommand{
			Actor:    entities.Actor{ID: fmt.Sprintf("user-%02d", i), Role: entities.RoleUser},
			PollID:   "poll-1",
			OptionID: optionID,
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, voters)
	for i, cmd := range cmds {
		wg.Add(1)
		go func(i int, cmd CastVoteCommand) {
			defer wg.Done()
			_, errs[i] = uc.CastVote(ctx, cmd)
		}(i, cmd)
	}
	wg.Wait()

	// A voter can burn the bounded attempts under this much contention; the
	// vote is not lost, the caller just retries after the burst.
	for i, err := range errs {
		for errors.Is(err, domainerrors.ErrTooManyConflicts) {
			_, err = uc.CastVote(ctx, cmds[i])
		}
		if err != nil {
			t.Fatalf("unexpected vote error for %s: %v", cmds[i].Actor.ID, err)
		}
	}

	final, err := store.Load(ctx, "poll-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if final.TotalVotes != voters {
		t.Fatalf("expected exactly %d votes, got %d", voters, final.TotalVotes)
	}
	if final.Version != int64(voters) {
		t.Fatalf("expected version %d, got %d", voters, final.Version)
	}
	total := 0
	for _, option := range final.Options {
		if option.VoteCount != len(option.Voters) {
			t.Fatalf("option %s count %d != voters %d", option.OptionID, option.VoteCount, len(option.Voters))
		}
		total += option.VoteCount
	}
	if total != voters {
		t.Fatalf("expected option counts to sum to %d, got %d", voters, total)
	}
}

func TestRetractVoteWithoutVote(t *testing.T) {
	_, uc, _ := newVoteFixture(t)

	_, err := uc.RetractVote(context.Background(), RetractVoteCommand{
		Actor:  entities.Actor{ID: "user-1", Role: entities.RoleUser},
		PollID: "poll-1",
	})
	if !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected vote-not-found, got %v", err)
	}
}

// conflictRepo always loses the conditional commit, driving the retry loop to
// exhaustion.
type conflictRepo struct {
	poll entities.Poll
}

func (r conflictRepo) Insert(_ context.Context, _ entities.Poll) error { return nil }

func (r conflictRepo) Load(_ context.Context, _ string) (entities.Poll, error) {
	return r.poll.Clone(), nil
}

func (r conflictRepo) Commit(_ context.Context, _ string, _ int64, _ entities.Poll) error {
	return domainerrors.ErrVersionConflict
}

func (r conflictRepo) Delete(_ context.Context, _ string) error { return nil }

func (r conflictRepo) List(_ context.Context, _ int, _ int) ([]entities.Poll, int64, error) {
	return nil, 0, nil
}

var _ ports.PollRepository = conflictRepo{}

func TestCastVoteGivesUpAfterRepeatedConflicts(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	poll, err := entities.NewPoll("poll-1", "title", "", "creator-1", []entities.Option{
		{OptionID: "opt-a", Text: "A"},
		{OptionID: "opt-b", Text: "B"},
	}, nil, now)
	if err != nil {
		t.Fatalf("seed poll failed: %v", err)
	}
	uc := VoteUseCase{
		Polls: conflictRepo{poll: poll},
		Clock: fixedClock{now: now},
		IDGen: &seqIDGen{},
	}

	_, err = uc.CastVote(context.Background(), CastVoteCommand{
		Actor:    entities.Actor{ID: "user-1", Role: entities.RoleUser},
		PollID:   "poll-1",
		OptionID: "opt-a",
	})
	if !errors.Is(err, domainerrors.ErrTooManyConflicts) {
		t.Fatalf("expected too-many-conflicts, got %v", err)
	}
}
