package entities

import (
	"errors"
	"testing"
	"time"

	domainerrors "pollapp/contexts/polling/poll-engine/domain/errors"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestPoll(t *testing.T) Poll {
	t.Helper()
	poll, err := NewPoll("poll-1", "Lunch spot", "weekly vote", "creator-1", []Option{
		{OptionID: "opt-a", Text: "A"},
		{OptionID: "opt-b", Text: "B"},
	}, nil, testNow)
	if err != nil {
		t.Fatalf("new poll failed: %v", err)
	}
	return poll
}

func TestNewPollRequiresTwoOptions(t *testing.T) {
	_, err := NewPoll("poll-1", "title", "", "creator-1", []Option{
		{OptionID: "opt-a", Text: "A"},
	}, nil, testNow)
	if !errors.Is(err, domainerrors.ErrMinimumOptions) {
		t.Fatalf("expected minimum options rejection, got %v", err)
	}
}

func TestNewPollRejectsEmptyOptionText(t *testing.T) {
	_, err := NewPoll("poll-1", "title", "", "creator-1", []Option{
		{OptionID: "opt-a", Text: "A"},
		{OptionID: "opt-b", Text: "   "},
	}, nil, testNow)
	if !errors.Is(err, domainerrors.ErrInvalidPollInput) {
		t.Fatalf("expected invalid input rejection, got %v", err)
	}
}

func TestWithVoteRecordsSingleVote(t *testing.T) {
	poll := newTestPoll(t)

	next, err := poll.WithVote("opt-a", "user-1", testNow)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if next.Version != poll.Version+1 {
		t.Fatalf("expected version bump by one, got %d -> %d", poll.Version, next.Version)
	}
	if next.Options[0].VoteCount != 1 || next.TotalVotes != 1 {
		t.Fatalf("expected counts 1/1, got %d/%d", next.Options[0].VoteCount, next.TotalVotes)
	}
	// The receiver snapshot must stay untouched.
	if poll.TotalVotes != 0 || len(poll.Options[0].Voters) != 0 {
		t.Fatalf("original snapshot was mutated")
	}
}

func TestWithVoteRejectsSecondVoteAnywhere(t *testing.T) {
	poll := newTestPoll(t)
	voted, err := poll.WithVote("opt-a", "user-1", testNow)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	if _, err := voted.WithVote("opt-b", "user-1", testNow); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected already-voted rejection on other option, got %v", err)
	}
	if _, err := voted.WithVote("opt-a", "user-1", testNow); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected already-voted rejection on same option, got %v", err)
	}
}

func TestWithVoteUnknownOption(t *testing.T) {
	poll := newTestPoll(t)
	if _, err := poll.WithVote("opt-x", "user-1", testNow); !errors.Is(err, domainerrors.ErrOptionNotFound) {
		t.Fatalf("expected option-not-found, got %v", err)
	}
}

func TestWithVoteRetractedScansAllOptions(t *testing.T) {
	poll := newTestPoll(t)
	voted, err := poll.WithVote("opt-b", "user-1", testNow)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	retracted, err := voted.WithVoteRetracted("user-1", testNow)
	if err != nil {
		t.Fatalf("retract failed: %v", err)
	}
	if retracted.TotalVotes != 0 || retracted.Options[1].VoteCount != 0 {
		t.Fatalf("expected empty counts after retraction, got total=%d", retracted.TotalVotes)
	}

	if _, err := retracted.WithVoteRetracted("user-1", testNow); !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected vote-not-found on second retraction, got %v", err)
	}
}

func TestExampleVoteSwitchScenario(t *testing.T) {
	poll := newTestPoll(t)

	poll, err := poll.WithVote("opt-a", "u1", testNow)
	if err != nil {
		t.Fatalf("vote A failed: %v", err)
	}
	if poll.Options[0].VoteCount != 1 || poll.TotalVotes != 1 {
		t.Fatalf("expected A.count=1 total=1")
	}

	if _, err := poll.WithVote("opt-b", "u1", testNow); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected already-voted, got %v", err)
	}

	poll, err = poll.WithVoteRetracted("u1", testNow)
	if err != nil {
		t.Fatalf("retract failed: %v", err)
	}
	if poll.Options[0].VoteCount != 0 || poll.TotalVotes != 0 {
		t.Fatalf("expected A.count=0 total=0")
	}

	poll, err = poll.WithVote("opt-b", "u1", testNow)
	if err != nil {
		t.Fatalf("vote B failed: %v", err)
	}
	if poll.Options[1].VoteCount != 1 || poll.TotalVotes != 1 {
		t.Fatalf("expected B.count=1 total=1")
	}
}

func TestLockBlocksAllStructuralMutation(t *testing.T) {
	poll := newTestPoll(t)
	locked, err := poll.WithLockToggled(testNow)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if !locked.IsLocked {
		t.Fatalf("expected locked poll")
	}

	if _, err := locked.WithVote("opt-a", "user-1", testNow); !errors.Is(err, domainerrors.ErrPollLocked) {
		t.Fatalf("vote on locked poll: got %v", err)
	}
	if _, err := locked.WithVoteRetracted("user-1", testNow); !errors.Is(err, domainerrors.ErrPollLocked) {
		t.Fatalf("retract on locked poll: got %v", err)
	}
	if _, err := locked.WithOptionAdded("opt-c", "C", testNow); !errors.Is(err, domainerrors.ErrPollLocked) {
		t.Fatalf("add option on locked poll: got %v", err)
	}
	if _, err := locked.WithOptionRemoved("opt-a", testNow); !errors.Is(err, domainerrors.ErrPollLocked) {
		t.Fatalf("remove option on locked poll: got %v", err)
	}
	title := "new"
	if _, err := locked.WithMetadata(MetadataUpdate{Title: &title}, testNow); !errors.Is(err, domainerrors.ErrPollLocked) {
		t.Fatalf("metadata on locked poll: got %v", err)
	}

	// The toggle itself stays available and is reversible.
	unlocked, err := locked.WithLockToggled(testNow)
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if unlocked.IsLocked {
		t.Fatalf("expected unlocked poll")
	}
}

func TestExpiryBlocksMutationLikeLock(t *testing.T) {
	expiry := testNow.Add(-time.Hour)
	poll, err := NewPoll("poll-1", "title", "", "creator-1", []Option{
		{OptionID: "opt-a", Text: "A"},
		{OptionID: "opt-b", Text: "B"},
	}, &expiry, testNow)
	if err != nil {
		t.Fatalf("new poll failed: %v", err)
	}
	if !poll.Expired(testNow) {
		t.Fatalf("expected expired poll")
	}

	if _, err := poll.WithVote("opt-a", "user-1", testNow); !errors.Is(err, domainerrors.ErrPollExpired) {
		t.Fatalf("vote on expired poll: got %v", err)
	}
	if _, err := poll.WithOptionAdded("opt-c", "C", testNow); !errors.Is(err, domainerrors.ErrPollExpired) {
		t.Fatalf("add option on expired poll: got %v", err)
	}
	if _, err := poll.WithOptionRemoved("opt-a", testNow); !errors.Is(err, domainerrors.ErrPollExpired) {
		t.Fatalf("remove option on expired poll: got %v", err)
	}

	// Expiry is one-way, but the lock toggle and the metadata path stay open
	// so an owner can still lock the poll or extend the expiry.
	if _, err := poll.WithLockToggled(testNow); err != nil {
		t.Fatalf("lock toggle on expired poll failed: %v", err)
	}
	future := testNow.Add(time.Hour)
	extended, err := poll.WithMetadata(MetadataUpdate{ExpiresAt: &future}, testNow)
	if err != nil {
		t.Fatalf("expiry extension failed: %v", err)
	}
	if extended.Expired(testNow) {
		t.Fatalf("expected extended poll to be live again")
	}
}

func TestWithOptionRemovedGuards(t *testing.T) {
	poll := newTestPoll(t)

	if _, err := poll.WithOptionRemoved("opt-a", testNow); !errors.Is(err, domainerrors.ErrMinimumOptions) {
		t.Fatalf("expected minimum-options rejection, got %v", err)
	}

	three, err := poll.WithOptionAdded("opt-c", "C", testNow)
	if err != nil {
		t.Fatalf("add option failed: %v", err)
	}
	voted, err := three.WithVote("opt-c", "user-1", testNow)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if _, err := voted.WithOptionRemoved("opt-c", testNow); !errors.Is(err, domainerrors.ErrOptionHasVotes) {
		t.Fatalf("expected option-has-votes rejection, got %v", err)
	}

	removed, err := voted.WithOptionRemoved("opt-a", testNow)
	if err != nil {
		t.Fatalf("remove empty option failed: %v", err)
	}
	if len(removed.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(removed.Options))
	}
	if removed.TotalVotes != 1 {
		t.Fatalf("expected total to survive removal, got %d", removed.TotalVotes)
	}
}

func TestCountConsistencyAfterMixedMutations(t *testing.T) {
	poll := newTestPoll(t)
	var err error
	for _, voter := range []string{"u1", "u2", "u3"} {
		poll, err = poll.WithVote("opt-a", voter, testNow)
		if err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}
	poll, err = poll.WithVoteRetracted("u2", testNow)
	if err != nil {
		t.Fatalf("retract failed: %v", err)
	}
	poll, err = poll.WithVote("opt-b", "u2", testNow)
	if err != nil {
		t.Fatalf("revote failed: %v", err)
	}

	total := 0
	for _, option := range poll.Options {
		if option.VoteCount != len(option.Voters) {
			t.Fatalf("option %s count %d != voters %d", option.OptionID, option.VoteCount, len(option.Voters))
		}
		total += option.VoteCount
	}
	if poll.TotalVotes != total {
		t.Fatalf("total %d != sum %d", poll.TotalVotes, total)
	}
	if poll.Version != 5 {
		t.Fatalf("expected version 5 after five mutations, got %d", poll.Version)
	}
}

func TestCanManageCreatorParity(t *testing.T) {
	poll := newTestPoll(t)

	if !poll.CanManage(Actor{ID: "creator-1", Role: RoleUser}) {
		t.Fatalf("creator should manage their poll")
	}
	if !poll.CanManage(Actor{ID: "someone-else", Role: RoleAdmin}) {
		t.Fatalf("admin should manage any poll")
	}
	if poll.CanManage(Actor{ID: "stranger", Role: RoleUser}) {
		t.Fatalf("stranger must not manage the poll")
	}
	if poll.CanManage(Actor{Role: RoleUser}) {
		t.Fatalf("empty actor id must not manage the poll")
	}
}
