package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pollapp/contexts/polling/poll-engine/domain/entities"
	domainerrors "pollapp/contexts/polling/poll-engine/domain/errors"
	"pollapp/contexts/polling/poll-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository persists each poll aggregate as one row: scalar columns plus the
// options (with their voter sets) as a JSONB document. The aggregate is the
// consistency boundary, so a single conditional UPDATE on (id, version) is
// enough to serialize concurrent writers.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate creates the poll and outbox tables. Called once from bootstrap.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&pollModel{}, &outboxModel{})
}

func (r *Repository) Insert(ctx context.Context, poll entities.Poll) error {
	row, err := pollModelFromEntity(poll)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrPollExists
		}
		return r.logError("poll_repo_insert_failed", err, "poll_id", strings.TrimSpace(poll.PollID))
	}
	return nil
}

func (r *Repository) Load(ctx context.Context, pollID string) (entities.Poll, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(pollID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("poll_repo_load_failed", err, "poll_id", strings.TrimSpace(pollID))
	}
	return row.toEntity()
}

// Commit is the single atomic conditional write: it lands only while the
// stored version still equals expectedVersion. RowsAffected 0 is resolved
// into not-found versus conflict with a follow-up existence probe.
func (r *Repository) Commit(ctx context.Context, pollID string, expectedVersion int64, poll entities.Poll) error {
	row, err := pollModelFromEntity(poll)
	if err != nil {
		return err
	}

	pollID = strings.TrimSpace(pollID)
	update := r.db.WithContext(ctx).Model(&pollModel{}).
		Where("id = ? AND version = ?", pollID, expectedVersion).
		Updates(map[string]any{
			"title":       row.Title,
			"description": row.Description,
			"options":     row.Options,
			"is_locked":   row.IsLocked,
			"expires_at":  row.ExpiresAt,
			"total_votes": row.TotalVotes,
			"version":     row.Version,
			"updated_at":  row.UpdatedAt,
		})
	if update.Error != nil {
		return r.logError("poll_repo_commit_failed", update.Error,
			"poll_id", pollID,
			"expected_version", expectedVersion,
		)
	}
	if update.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&pollModel{}).Where("id = ?", pollID).Count(&count).Error; err != nil {
		return r.logError("poll_repo_commit_probe_failed", err, "poll_id", pollID)
	}
	if count == 0 {
		return domainerrors.ErrPollNotFound
	}
	return domainerrors.ErrVersionConflict
}

func (r *Repository) Delete(ctx context.Context, pollID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(pollID)).
		Delete(&pollModel{})
	if result.Error != nil {
		return r.logError("poll_repo_delete_failed", result.Error, "poll_id", strings.TrimSpace(pollID))
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPollNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, offset int, limit int) ([]entities.Poll, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&pollModel{}).Count(&total).Error; err != nil {
		return nil, 0, r.logError("poll_repo_count_failed", err)
	}

	var rows []pollModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, 0, r.logError("poll_repo_list_failed", err)
	}

	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		poll, err := row.toEntity()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, poll)
	}
	return items, total, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := outboxModel{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    createdAt,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "outbox_id"}}, DoNothing: true}).
		Create(&row).
		Error
	if err != nil {
		return r.logError("poll_repo_outbox_append_failed", err, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("poll_repo_outbox_list_failed", err)
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	timestamp := publishedAt.UTC()
	result := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &timestamp,
		})
	if result.Error != nil {
		return r.logError("poll_repo_outbox_mark_failed", result.Error, "outbox_id", strings.TrimSpace(outboxID))
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOutboxRowNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "polling/poll-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("poll repository operation failed", fields...)
	return err
}

// SystemClock satisfies ports.Clock with wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator satisfies ports.IDGenerator.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type optionDoc struct {
	OptionID string   `json:"option_id"`
	Text     string   `json:"text"`
	Voters   []string `json:"voters"`
}

type pollModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Title       string     `gorm:"column:title"`
	Description string     `gorm:"column:description"`
	CreatorID   string     `gorm:"column:creator_id;index"`
	Options     []byte     `gorm:"column:options;type:jsonb"`
	IsLocked    bool       `gorm:"column:is_locked"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	TotalVotes  int        `gorm:"column:total_votes"`
	Version     int64      `gorm:"column:version"`
	CreatedAt   time.Time  `gorm:"column:created_at;index"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_outbox"
}

func pollModelFromEntity(poll entities.Poll) (pollModel, error) {
	docs := make([]optionDoc, 0, len(poll.Options))
	for _, option := range poll.Options {
		voters := option.Voters
		if voters == nil {
			voters = []string{}
		}
		docs = append(docs, optionDoc{
			OptionID: option.OptionID,
			Text:     option.Text,
			Voters:   voters,
		})
	}
	options, err := json.Marshal(docs)
	if err != nil {
		return pollModel{}, err
	}
	return pollModel{
		ID:          strings.TrimSpace(poll.PollID),
		Title:       poll.Title,
		Description: poll.Description,
		CreatorID:   poll.CreatorID,
		Options:     options,
		IsLocked:    poll.IsLocked,
		ExpiresAt:   normalizeOptionalTime(poll.ExpiresAt),
		TotalVotes:  poll.TotalVotes,
		Version:     poll.Version,
		CreatedAt:   poll.CreatedAt.UTC(),
		UpdatedAt:   poll.UpdatedAt.UTC(),
	}, nil
}

func (m pollModel) toEntity() (entities.Poll, error) {
	var docs []optionDoc
	if len(m.Options) > 0 {
		if err := json.Unmarshal(m.Options, &docs); err != nil {
			return entities.Poll{}, err
		}
	}
	options := make([]entities.Option, 0, len(docs))
	for _, doc := range docs {
		voters := doc.Voters
		if voters == nil {
			voters = []string{}
		}
		options = append(options, entities.Option{
			OptionID:  doc.OptionID,
			Text:      doc.Text,
			Voters:    voters,
			VoteCount: len(voters),
		})
	}
	return entities.Poll{
		PollID:      m.ID,
		Title:       m.Title,
		Description: m.Description,
		CreatorID:   m.CreatorID,
		Options:     options,
		IsLocked:    m.IsLocked,
		ExpiresAt:   normalizeOptionalTime(m.ExpiresAt),
		TotalVotes:  m.TotalVotes,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}, nil
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PollRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
