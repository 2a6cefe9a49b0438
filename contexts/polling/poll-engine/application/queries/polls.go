package queries

import (
	"context"
	"strings"

	"pollapp/contexts/polling/poll-engine/domain/entities"
	"pollapp/contexts/polling/poll-engine/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type PollPage struct {
	Items []entities.Poll
	Total int64
	Page  int
	Limit int
}

// PollQueries is the read side. Reads never mutate state, so two consecutive
// reads with no intervening commit return identical derived totals.
type PollQueries struct {
	Polls ports.PollRepository
}

func (uc PollQueries) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	return uc.Polls.Load(ctx, strings.TrimSpace(pollID))
}

func (uc PollQueries) ListPolls(ctx context.Context, page int, limit int) (PollPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := uc.Polls.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return PollPage{}, err
	}
	return PollPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}
