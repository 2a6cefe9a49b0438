package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"pollapp/contexts/polling/poll-engine/domain/entities"
	"pollapp/contexts/polling/poll-engine/ports"
)

func newPollEnvelope(
	eventID string,
	eventType string,
	pollID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by poll for stable ordering on
	// poll-scoped consumers.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "poll_id",
		PartitionKey:     pollID,
		Data:             payload,
	}, nil
}

// appendPollEvent records a poll mutation in the outbox. The mutation is
// already committed when this runs, so append failures are logged and
// swallowed rather than reported as operation failures.
func appendPollEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	logger *slog.Logger,
	eventType string,
	poll entities.Poll,
	occurredAt time.Time,
	metadata map[string]any,
) {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if outbox == nil {
		return
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		logger.Error("poll event id generation failed",
			"event", "poll_event_id_failed",
			"module", "polling/poll-engine",
			"layer", "application",
			"poll_id", poll.PollID,
			"event_type", eventType,
			"error", err.Error(),
		)
		return
	}
	data := map[string]any{
		"poll_id":     poll.PollID,
		"creator_id":  poll.CreatorID,
		"is_locked":   poll.IsLocked,
		"total_votes": poll.TotalVotes,
		"version":     poll.Version,
		"occurred_at": occurredAt.UTC().Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}

	envelope, err := newPollEnvelope(eventID, eventType, poll.PollID, occurredAt, data)
	if err == nil {
		err = outbox.AppendOutbox(ctx, envelope)
	}
	if err != nil {
		logger.Error("poll event append failed",
			"event", "poll_event_append_failed",
			"module", "polling/poll-engine",
			"layer", "application",
			"poll_id", poll.PollID,
			"event_type", eventType,
			"error", err.Error(),
		)
	}
}
