package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/device-control/key-registry-service/domain/entities"
	"warden/contexts/device-control/key-registry-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *Repository) GetKey(ctx context.Context, deviceID string) (entities.DeviceKey, bool, error) {
	var row deviceKeyModel
	err := r.db.WithContext(ctx).
		Where("device_id = ?", strings.TrimSpace(deviceID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DeviceKey{}, false, nil
		}
		return entities.DeviceKey{}, false, r.logError("key_repo_get_failed", err, "device_id", deviceID)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveKey(ctx context.Context, key entities.DeviceKey) error {
	row := deviceKeyModelFromEntity(key)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"shared_key_b64":      row.SharedKeyB64,
			"key_version":         row.KeyVersion,
			"next_shared_key_b64": row.NextSharedKeyB64,
			"next_key_version":    row.NextKeyVersion,
			"updated_at":          row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return r.logError("key_repo_save_failed", err, "device_id", key.DeviceID)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "device-control/key-registry-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("key registry repository operation failed", fields...)
	return err
}

type deviceKeyModel struct {
	DeviceID         string    `gorm:"column:device_id;primaryKey"`
	FamilyID         string    `gorm:"column:family_id"`
	SharedKeyB64     string    `gorm:"column:shared_key_b64"`
	KeyVersion       int       `gorm:"column:key_version"`
	NextSharedKeyB64 *string   `gorm:"column:next_shared_key_b64"`
	NextKeyVersion   *int      `gorm:"column:next_key_version"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (deviceKeyModel) TableName() string {
	return "device_keys"
}

func deviceKeyModelFromEntity(key entities.DeviceKey) deviceKeyModel {
	row := deviceKeyModel{
		DeviceID:     strings.TrimSpace(key.DeviceID),
		FamilyID:     strings.TrimSpace(key.FamilyID),
		SharedKeyB64: key.SharedKeyB64,
		KeyVersion:   key.KeyVersion,
		UpdatedAt:    key.UpdatedAt.UTC(),
	}
	if key.NextSharedKeyB64 != "" {
		next := key.NextSharedKeyB64
		version := key.NextKeyVersion
		row.NextSharedKeyB64 = &next
		row.NextKeyVersion = &version
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return row
}

func (m deviceKeyModel) toEntity() entities.DeviceKey {
	key := entities.DeviceKey{
		DeviceID:     m.DeviceID,
		FamilyID:     m.FamilyID,
		SharedKeyB64: m.SharedKeyB64,
		KeyVersion:   m.KeyVersion,
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.NextSharedKeyB64 != nil {
		key.NextSharedKeyB64 = *m.NextSharedKeyB64
	}
	if m.NextKeyVersion != nil {
		key.NextKeyVersion = *m.NextKeyVersion
	}
	return key
}

var _ ports.KeyRepository = (*Repository)(nil)
