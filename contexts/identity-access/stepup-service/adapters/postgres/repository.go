package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"warden/contexts/identity-access/stepup-service/domain/entities"
	domainerrors "warden/contexts/identity-access/stepup-service/domain/errors"
	"warden/contexts/identity-access/stepup-service/ports"
)

type stepUpSessionModel struct {
	StepUpID       string `gorm:"primaryKey;column:stepup_id"`
	FamilyID       string `gorm:"column:family_id;index"`
	UserID         string `gorm:"column:user_id"`
	Purpose        string `gorm:"column:purpose"`
	ScopesJSON     string `gorm:"column:scopes_json"`
	CodeHash       string `gorm:"column:code_hash"`
	ExpiresAt      time.Time
	VerifiedAt     *time.Time
	UsedAt         *time.Time
	FailedAttempts int
	CreatedAt      time.Time
}

func (stepUpSessionModel) TableName() string { return "stepup_sessions" }

// Repository persists step-up sessions in Postgres.
type Repository struct {
	db *gorm.DB
}

var _ ports.SessionRepository = (*Repository)(nil)

func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&stepUpSessionModel{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) SaveSession(ctx context.Context, session entities.StepUpSession) error {
	model, err := toModel(session)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *Repository) GetSession(ctx context.Context, stepupID string) (entities.StepUpSession, error) {
	var model stepUpSessionModel
	err := r.db.WithContext(ctx).Where("stepup_id = ?", stepupID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.StepUpSession{}, domainerrors.ErrSessionNotFound
	}
	if err != nil {
		return entities.StepUpSession{}, err
	}
	return toEntity(model)
}

func (r *Repository) UpdateSession(ctx context.Context, session entities.StepUpSession) error {
	model, err := toModel(session)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&stepUpSessionModel{}).
		Where("stepup_id = ?", session.StepUpID).
		Updates(map[string]any{
			"verified_at":     model.VerifiedAt,
			"failed_attempts": model.FailedAttempts,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrSessionNotFound
	}
	return nil
}

// ConsumeSession claims the session with a conditional update so two
// concurrent consumers cannot both succeed.
func (r *Repository) ConsumeSession(ctx context.Context, stepupID string, usedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&stepUpSessionModel{}).
		Where("stepup_id = ? AND verified_at IS NOT NULL AND used_at IS NULL", stepupID).
		Update("used_at", usedAt.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var model stepUpSessionModel
	err := r.db.WithContext(ctx).Where("stepup_id = ?", stepupID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainerrors.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if model.UsedAt != nil {
		return domainerrors.ErrSessionUsed
	}
	return domainerrors.ErrSessionNotVerified
}

func toModel(session entities.StepUpSession) (stepUpSessionModel, error) {
	scopes, err := json.Marshal(session.Scopes)
	if err != nil {
		return stepUpSessionModel{}, err
	}
	return stepUpSessionModel{
		StepUpID:       session.StepUpID,
		FamilyID:       session.FamilyID,
		UserID:         session.UserID,
		Purpose:        session.Purpose,
		ScopesJSON:     string(scopes),
		CodeHash:       session.CodeHash,
		ExpiresAt:      session.ExpiresAt.UTC(),
		VerifiedAt:     session.VerifiedAt,
		UsedAt:         session.UsedAt,
		FailedAttempts: session.FailedAttempts,
		CreatedAt:      session.CreatedAt.UTC(),
	}, nil
}

func toEntity(model stepUpSessionModel) (entities.StepUpSession, error) {
	var scopes []string
	if model.ScopesJSON != "" {
		if err := json.Unmarshal([]byte(model.ScopesJSON), &scopes); err != nil {
			return entities.StepUpSession{}, err
		}
	}
	return entities.StepUpSession{
		StepUpID:       model.StepUpID,
		FamilyID:       model.FamilyID,
		UserID:         model.UserID,
		Purpose:        model.Purpose,
		Scopes:         scopes,
		CodeHash:       model.CodeHash,
		ExpiresAt:      model.ExpiresAt.UTC(),
		VerifiedAt:     model.VerifiedAt,
		UsedAt:         model.UsedAt,
		FailedAttempts: model.FailedAttempts,
		CreatedAt:      model.CreatedAt.UTC(),
	}, nil
}
