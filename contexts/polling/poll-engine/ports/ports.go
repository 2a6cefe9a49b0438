package ports

import (
	"context"
	"time"

	"pollapp/contexts/polling/poll-engine/domain/entities"
	contractsv1 "pollapp/contracts/gen/events/v1"
)

// PollRepository is the persistence contract around the poll aggregate.
// Commit is the whole concurrency controller: a single conditional write that
// succeeds only while the stored version still equals expectedVersion. The
// repository never does read-modify-write on behalf of a caller.
type PollRepository interface {
	Insert(ctx context.Context, poll entities.Poll) error
	Load(ctx context.Context, pollID string) (entities.Poll, error)
	Commit(ctx context.Context, pollID string, expectedVersion int64, poll entities.Poll) error
	Delete(ctx context.Context, pollID string) error
	List(ctx context.Context, offset int, limit int) ([]entities.Poll, int64, error)
}

// EventEnvelope aliases the canonical contracts envelope so outbox rows and
// published events share one wire definition.
type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
