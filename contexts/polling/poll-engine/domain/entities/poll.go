package entities

import (
	"strings"
	"time"

	domainerrors "pollapp/contexts/polling/poll-engine/domain/errors"
)

// MinimumOptions is the structural floor for every poll that has finished
// creation. Removal rules keep polls at or above it.
const MinimumOptions = 2

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Actor is the verified identity attached to a request. Credential checks
// happen upstream; the engine only consumes the resulting (id, role) pair.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Option belongs to exactly one poll. Voters is a set: a user id appears at
// most once here and at most once across the whole poll. VoteCount is derived
// from Voters on every mutation and never incremented on its own.
type Option struct {
	OptionID  string
	Text      string
	Voters    []string
	VoteCount int
}

// Poll is the aggregate and the consistency boundary. TotalVotes is derived
// from the options. Version increases by exactly one per committed mutation
// and drives optimistic concurrency control in the repository.
//
// All WithX methods are pure: they deep-copy the receiver, apply the change,
// recompute derived counters, and return the next snapshot with a bumped
// version. Callers persist the result with a conditional commit against the
// version they loaded.
type Poll struct {
	PollID      string
	Title       string
	Description string
	CreatorID   string
	Options     []Option
	IsLocked    bool
	ExpiresAt   *time.Time
	TotalVotes  int
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MetadataUpdate carries the mutable-through-this-path fields. Nil means keep
// the current value; options and lock state never travel through metadata.
type MetadataUpdate struct {
	Title       *string
	Description *string
	ExpiresAt   *time.Time
}

// NewPoll builds a version-0 snapshot. Options carry their ids already
// (generated by the caller) so ids stay stable across later edits.
func NewPoll(
	pollID string,
	title string,
	description string,
	creatorID string,
	options []Option,
	expiresAt *time.Time,
	now time.Time,
) (Poll, error) {
	if strings.TrimSpace(pollID) == "" ||
		strings.TrimSpace(title) == "" ||
		strings.TrimSpace(creatorID) == "" {
		return Poll{}, domainerrors.ErrInvalidPollInput
	}
	if len(options) < MinimumOptions {
		return Poll{}, domainerrors.ErrMinimumOptions
	}

	cleaned := make([]Option, 0, len(options))
	for _, option := range options {
		if strings.TrimSpace(option.OptionID) == "" || strings.TrimSpace(option.Text) == "" {
			return Poll{}, domainerrors.ErrInvalidPollInput
		}
		cleaned = append(cleaned, Option{
			OptionID: strings.TrimSpace(option.OptionID),
			Text:     strings.TrimSpace(option.Text),
			Voters:   []string{},
		})
	}

	poll := Poll{
		PollID:      strings.TrimSpace(pollID),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		CreatorID:   strings.TrimSpace(creatorID),
		Options:     cleaned,
		ExpiresAt:   normalizeExpiry(expiresAt),
		Version:     0,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	poll.recount()
	return poll, nil
}

// Expired is computed on read, never stored. Time only moves forward, so
// unlike Locked the state is one-way.
func (p Poll) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.UTC().After(p.ExpiresAt.UTC())
}

// CanManage grants creator parity with admins for structural changes,
// metadata updates, lock toggles, and deletion.
func (p Poll) CanManage(actor Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return strings.TrimSpace(actor.ID) != "" && actor.ID == p.CreatorID
}

// VotedOption reports which option currently holds the voter, if any.
func (p Poll) VotedOption(voterID string) (string, bool) {
	for _, option := range p.Options {
		for _, voter := range option.Voters {
			if voter == voterID {
				return option.OptionID, true
			}
		}
	}
	return "", false
}

// WithVote records a single vote. A voter already present anywhere in the
// poll is rejected; they must retract first to switch options.
func (p Poll) WithVote(optionID string, voterID string, now time.Time) (Poll, error) {
	if err := p.mutableAt(now); err != nil {
		return Poll{}, err
	}
	if strings.TrimSpace(voterID) == "" {
		return Poll{}, domainerrors.ErrInvalidPollInput
	}
	target := -1
	for i, option := range p.Options {
		if option.OptionID == optionID {
			target = i
			break
		}
	}
	if target < 0 {
		return Poll{}, domainerrors.ErrOptionNotFound
	}
	if _, voted := p.VotedOption(voterID); voted {
		return Poll{}, domainerrors.ErrAlreadyVoted
	}

	next := p.Clone()
	next.Options[target].Voters = append(next.Options[target].Voters, voterID)
	next.bump(now)
	return next, nil
}

// WithVoteRetracted removes the voter from whichever option holds them. No
// option id is required; the rule scans the whole poll.
func (p Poll) WithVoteRetracted(voterID string, now time.Time) (Poll, error) {
	if err := p.mutableAt(now); err != nil {
		return Poll{}, err
	}

	next := p.Clone()
	removed := false
	for i, option := range next.Options {
		kept := option.Voters[:0]
		for _, voter := range option.Voters {
			if voter == voterID {
				removed = true
				continue
			}
			kept = append(kept, voter)
		}
		next.Options[i].Voters = kept
	}
	if !removed {
		return Poll{}, domainerrors.ErrVoteNotFound
	}
	next.bump(now)
	return next, nil
}

// WithOptionAdded appends a new option with an empty voter set. Authorization
// is the caller's concern; structural state checks live here.
func (p Poll) WithOptionAdded(optionID string, text string, now time.Time) (Poll, error) {
	if err := p.mutableAt(now); err != nil {
		return Poll{}, err
	}
	if strings.TrimSpace(optionID) == "" || strings.TrimSpace(text) == "" {
		return Poll{}, domainerrors.ErrInvalidPollInput
	}

	next := p.Clone()
	next.Options = append(next.Options, Option{
		OptionID: strings.TrimSpace(optionID),
		Text:     strings.TrimSpace(text),
		Voters:   []string{},
	})
	next.bump(now)
	return next, nil
}

// WithOptionRemoved drops an option. Options holding votes are protected, and
// the poll never shrinks below MinimumOptions.
func (p Poll) WithOptionRemoved(optionID string, now time.Time) (Poll, error) {
	if err := p.mutableAt(now); err != nil {
		return Poll{}, err
	}
	target := -1
	for i, option := range p.Options {
		if option.OptionID == optionID {
			target = i
			break
		}
	}
	if target < 0 {
		return Poll{}, domainerrors.ErrOptionNotFound
	}
	if len(p.Options[target].Voters) > 0 {
		return Poll{}, domainerrors.ErrOptionHasVotes
	}
	if len(p.Options)-1 < MinimumOptions {
		return Poll{}, domainerrors.ErrMinimumOptions
	}

	next := p.Clone()
	next.Options = append(next.Options[:target], next.Options[target+1:]...)
	next.bump(now)
	return next, nil
}

// WithLockToggled flips the lock. It is exempt from the locked/expired guard:
// an authorized actor can always lock, and unlock a non-expired poll back to
// life. Expiry itself stays in force for every other mutation.
func (p Poll) WithLockToggled(now time.Time) (Poll, error) {
	next := p.Clone()
	next.IsLocked = !next.IsLocked
	next.bump(now)
	return next, nil
}

// WithMetadata updates title, description, and expiry. A locked poll rejects
// the update; an expired-but-unlocked poll accepts it so the owner can extend
// the expiry.
func (p Poll) WithMetadata(update MetadataUpdate, now time.Time) (Poll, error) {
	if p.IsLocked {
		return Poll{}, domainerrors.ErrPollLocked
	}

	next := p.Clone()
	if update.Title != nil {
		if strings.TrimSpace(*update.Title) == "" {
			return Poll{}, domainerrors.ErrInvalidPollInput
		}
		next.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		next.Description = strings.TrimSpace(*update.Description)
	}
	if update.ExpiresAt != nil {
		next.ExpiresAt = normalizeExpiry(update.ExpiresAt)
	}
	next.bump(now)
	return next, nil
}

// Clone deep-copies the aggregate so stores and callers never share voter
// slices with a live snapshot.
func (p Poll) Clone() Poll {
	next := p
	next.Options = make([]Option, len(p.Options))
	for i, option := range p.Options {
		copied := option
		copied.Voters = append([]string(nil), option.Voters...)
		next.Options[i] = copied
	}
	if p.ExpiresAt != nil {
		expiry := p.ExpiresAt.UTC()
		next.ExpiresAt = &expiry
	}
	return next
}

func (p Poll) mutableAt(now time.Time) error {
	if p.IsLocked {
		return domainerrors.ErrPollLocked
	}
	if p.Expired(now) {
		return domainerrors.ErrPollExpired
	}
	return nil
}

// bump finalizes an accepted mutation: derived counters are recomputed from
// the voter sets and the version advances by exactly one.
func (p *Poll) bump(now time.Time) {
	p.recount()
	p.Version++
	p.UpdatedAt = now.UTC()
}

func (p *Poll) recount() {
	total := 0
	for i := range p.Options {
		p.Options[i].VoteCount = len(p.Options[i].Voters)
		total += p.Options[i].VoteCount
	}
	p.TotalVotes = total
}

func normalizeExpiry(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	expiry := value.UTC()
	return &expiry
}
