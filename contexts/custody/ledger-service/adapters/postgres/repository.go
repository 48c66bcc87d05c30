package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/custody/ledger-service/domain/entities"
	domainerrors "warden/contexts/custody/ledger-service/domain/errors"
	"warden/contexts/custody/ledger-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

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

func (r *Repository) LatestEvent(ctx context.Context, familyID string) (entities.CustodyEvent, bool, error) {
	var row custodyEventModel
	err := r.db.WithContext(ctx).
		Where("family_id = ?", strings.TrimSpace(familyID)).
		Order("chain_seq DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CustodyEvent{}, false, nil
		}
		return entities.CustodyEvent{}, false, r.logError("ledger_repo_latest_event_failed", err, "family_id", familyID)
	}
	return row.toEntity(), true, nil
}

// AppendEvent inserts the event and its feed outbox row in one
// transaction. The unique index on (family_id, chain_seq) turns a lost
// append race into ErrChainConflict so the caller can re-read and retry.
func (r *Repository) AppendEvent(ctx context.Context, event entities.CustodyEvent) error {
	row := custodyEventModelFromEntity(event)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		outbox := custodyFeedOutboxModel{
			EventID:   row.ID,
			Status:    outboxStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		return tx.Create(&outbox).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrChainConflict
		}
		return r.logError("ledger_repo_append_failed", err,
			"family_id", event.FamilyID,
			"event_key", event.EventKey,
			"chain_seq", event.ChainSeq,
		)
	}
	return nil
}

func (r *Repository) ListEvents(ctx context.Context, filter ports.EventFilter) ([]entities.CustodyEvent, error) {
	tx := r.db.WithContext(ctx).Model(&custodyEventModel{}).
		Where("family_id = ?", strings.TrimSpace(filter.FamilyID)).
		Order("chain_seq ASC")
	if !filter.From.IsZero() {
		tx = tx.Where("event_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		tx = tx.Where("event_at <= ?", filter.To.UTC())
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}

	var rows []custodyEventModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_events_failed", err, "family_id", filter.FamilyID)
	}
	out := make([]entities.CustodyEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) ListPendingFeedEntries(ctx context.Context, limit int) ([]entities.CustodyEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []custodyEventModel
	err := r.db.WithContext(ctx).Model(&custodyEventModel{}).
		Joins("JOIN custody_feed_outbox ON custody_feed_outbox.event_id = custody_events.id").
		Where("custody_feed_outbox.status = ?", outboxStatusPending).
		Order("custody_feed_outbox.created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("ledger_repo_list_pending_feed_failed", err)
	}
	out := make([]entities.CustodyEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) MarkFeedPublished(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&custodyFeedOutboxModel{}).
		Where("event_id IN ?", eventIDs).
		Update("status", outboxStatusPublished).
		Error
	if err != nil {
		return r.logError("ledger_repo_mark_feed_published_failed", err, "event_count", len(eventIDs))
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "custody/ledger-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type custodyEventModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	FamilyID    string    `gorm:"column:family_id;uniqueIndex:ux_custody_events_family_seq"`
	DeviceID    *string   `gorm:"column:device_id"`
	UserID      *string   `gorm:"column:user_id"`
	Actor       string    `gorm:"column:actor"`
	EventKey    string    `gorm:"column:event_key"`
	EventAt     time.Time `gorm:"column:event_at"`
	EventJSON   string    `gorm:"column:event_json"`
	PrevHashHex *string   `gorm:"column:prev_hash_hex"`
	HashHex     string    `gorm:"column:hash_hex"`
	ChainSeq    int64     `gorm:"column:chain_seq;uniqueIndex:ux_custody_events_family_seq"`
}

func (custodyEventModel) TableName() string {
	return "custody_events"
}

type custodyFeedOutboxModel struct {
	EventID   string    `gorm:"column:event_id;primaryKey"`
	Status    string    `gorm:"column:status"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (custodyFeedOutboxModel) TableName() string {
	return "custody_feed_outbox"
}

func custodyEventModelFromEntity(event entities.CustodyEvent) custodyEventModel {
	row := custodyEventModel{
		ID:          strings.TrimSpace(event.EventID),
		FamilyID:    strings.TrimSpace(event.FamilyID),
		Actor:       strings.TrimSpace(event.Actor),
		EventKey:    strings.TrimSpace(event.EventKey),
		EventAt:     event.EventAt.UTC(),
		EventJSON:   string(event.EventJSON),
		PrevHashHex: event.PrevHashHex,
		HashHex:     event.HashHex,
		ChainSeq:    event.ChainSeq,
	}
	if deviceID := strings.TrimSpace(event.DeviceID); deviceID != "" {
		row.DeviceID = &deviceID
	}
	if userID := strings.TrimSpace(event.UserID); userID != "" {
		row.UserID = &userID
	}
	return row
}

func (m custodyEventModel) toEntity() entities.CustodyEvent {
	event := entities.CustodyEvent{
		EventID:     m.ID,
		FamilyID:    m.FamilyID,
		Actor:       m.Actor,
		EventKey:    m.EventKey,
		EventAt:     m.EventAt.UTC(),
		EventJSON:   json.RawMessage(m.EventJSON),
		PrevHashHex: m.PrevHashHex,
		HashHex:     m.HashHex,
		ChainSeq:    m.ChainSeq,
	}
	if m.DeviceID != nil {
		event.DeviceID = *m.DeviceID
	}
	if m.UserID != nil {
		event.UserID = *m.UserID
	}
	return event
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.LedgerRepository = (*Repository)(nil)
var _ ports.FeedOutbox = (*Repository)(nil)
