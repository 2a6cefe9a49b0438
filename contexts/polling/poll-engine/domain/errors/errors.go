package errors

import "errors"

var (
	ErrInvalidPollInput  = errors.New("invalid poll input")
	ErrPollExists        = errors.New("poll already exists")
	ErrPollNotFound      = errors.New("poll not found")
	ErrOptionNotFound    = errors.New("poll option not found")
	ErrPollLocked        = errors.New("poll is locked")
	ErrPollExpired       = errors.New("poll has expired")
	ErrAlreadyVoted      = errors.New("user has already voted in this poll")
	ErrVoteNotFound      = errors.New("user has not voted in this poll")
	ErrOptionHasVotes    = errors.New("option with recorded votes cannot be removed")
	ErrMinimumOptions    = errors.New("a poll must keep at least two options")
	ErrForbidden         = errors.New("actor is not allowed to manage this poll")
	ErrVersionConflict   = errors.New("poll was modified concurrently")
	ErrTooManyConflicts  = errors.New("poll update retries exhausted")
	ErrOutboxRowNotFound = errors.New("outbox row not found")
)
