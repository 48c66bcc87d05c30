package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/device-control/command-service/domain/entities"
	domainerrors "warden/contexts/device-control/command-service/domain/errors"
	"warden/contexts/device-control/command-service/ports"

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

func (r *Repository) SaveCommand(ctx context.Context, cmd entities.DeviceCommand) error {
	row := deviceCommandModelFromEntity(cmd)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrNonceConflict
		}
		return r.logError("command_repo_save_failed", err,
			"command_id", cmd.CommandID,
			"device_id", cmd.DeviceID,
		)
	}
	return nil
}

func (r *Repository) UpdateCommand(ctx context.Context, cmd entities.DeviceCommand) error {
	row := deviceCommandModelFromEntity(cmd)
	result := r.db.WithContext(ctx).Model(&deviceCommandModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"nonce":          row.Nonce,
			"issued_at":      row.IssuedAt,
			"expires_at":     row.ExpiresAt,
			"status":         row.Status,
			"signature_hmac": row.SignatureHMAC,
			"key_version":    row.KeyVersion,
			"retry_count":    row.RetryCount,
			"updated_at":     row.UpdatedAt,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domainerrors.ErrNonceConflict
		}
		return r.logError("command_repo_update_failed", result.Error, "command_id", cmd.CommandID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCommandNotFound
	}
	return nil
}

func (r *Repository) GetCommand(ctx context.Context, commandID string) (entities.DeviceCommand, error) {
	var row deviceCommandModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(commandID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DeviceCommand{}, domainerrors.ErrCommandNotFound
		}
		return entities.DeviceCommand{}, r.logError("command_repo_get_failed", err, "command_id", commandID)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCommands(ctx context.Context, filter ports.CommandFilter) ([]entities.DeviceCommand, error) {
	tx := r.db.WithContext(ctx).Model(&deviceCommandModel{}).Order("issued_at ASC")
	if filter.DeviceID != "" {
		tx = tx.Where("device_id = ?", strings.TrimSpace(filter.DeviceID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		tx = tx.Where("status IN ?", statuses)
	}
	if !filter.IssuedBefore.IsZero() {
		tx = tx.Where("issued_at < ?", filter.IssuedBefore.UTC())
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}

	var rows []deviceCommandModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, r.logError("command_repo_list_failed", err)
	}
	out := make([]entities.DeviceCommand, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "device-control/command-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("command repository operation failed", fields...)
	return err
}

type deviceCommandModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	FamilyID      string    `gorm:"column:family_id"`
	DeviceID      string    `gorm:"column:device_id;uniqueIndex:ux_device_commands_device_nonce"`
	IncidentID    *string   `gorm:"column:incident_id"`
	CommandType   string    `gorm:"column:command_type"`
	PayloadJSON   string    `gorm:"column:payload_json"`
	Nonce         string    `gorm:"column:nonce;uniqueIndex:ux_device_commands_device_nonce"`
	IssuedAt      time.Time `gorm:"column:issued_at"`
	ExpiresAt     time.Time `gorm:"column:expires_at"`
	Status        string    `gorm:"column:status"`
	SignatureHMAC string    `gorm:"column:signature_hmac"`
	KeyVersion    int       `gorm:"column:key_version"`
	RetryCount    int       `gorm:"column:retry_count"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (deviceCommandModel) TableName() string {
	return "device_commands"
}

func deviceCommandModelFromEntity(cmd entities.DeviceCommand) deviceCommandModel {
	row := deviceCommandModel{
		ID:            strings.TrimSpace(cmd.CommandID),
		FamilyID:      strings.TrimSpace(cmd.FamilyID),
		DeviceID:      strings.TrimSpace(cmd.DeviceID),
		CommandType:   strings.TrimSpace(cmd.CommandType),
		PayloadJSON:   string(cmd.PayloadJSON),
		Nonce:         cmd.Nonce,
		IssuedAt:      cmd.IssuedAt.UTC(),
		ExpiresAt:     cmd.ExpiresAt.UTC(),
		Status:        string(cmd.Status),
		SignatureHMAC: cmd.SignatureHMAC,
		KeyVersion:    cmd.KeyVersion,
		RetryCount:    cmd.RetryCount,
		UpdatedAt:     cmd.UpdatedAt.UTC(),
	}
	if incidentID := strings.TrimSpace(cmd.IncidentID); incidentID != "" {
		row.IncidentID = &incidentID
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return row
}

func (m deviceCommandModel) toEntity() entities.DeviceCommand {
	cmd := entities.DeviceCommand{
		CommandID:     m.ID,
		FamilyID:      m.FamilyID,
		DeviceID:      m.DeviceID,
		CommandType:   m.CommandType,
		PayloadJSON:   json.RawMessage(m.PayloadJSON),
		Nonce:         m.Nonce,
		IssuedAt:      m.IssuedAt.UTC(),
		ExpiresAt:     m.ExpiresAt.UTC(),
		Status:        entities.CommandStatus(m.Status),
		SignatureHMAC: m.SignatureHMAC,
		KeyVersion:    m.KeyVersion,
		RetryCount:    m.RetryCount,
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	if m.IncidentID != nil {
		cmd.IncidentID = *m.IncidentID
	}
	return cmd
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.CommandRepository = (*Repository)(nil)
