package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"warden/contexts/custody/evidence-export-service/domain/entities"
	domainerrors "warden/contexts/custody/evidence-export-service/domain/errors"
	"warden/contexts/custody/evidence-export-service/ports"
)

type evidenceRecordModel struct {
	EvidenceID  string    `gorm:"primaryKey;column:evidence_id"`
	FamilyID    string    `gorm:"column:family_id;index:ix_evidence_family_captured"`
	DeviceID    string    `gorm:"column:device_id"`
	IncidentID  string    `gorm:"column:incident_id"`
	ContentType string    `gorm:"column:content_type"`
	BlobRef     string    `gorm:"column:blob_ref"`
	CapturedAt  time.Time `gorm:"index:ix_evidence_family_captured"`
}

func (evidenceRecordModel) TableName() string { return "evidence_records" }

type exportJobModel struct {
	JobID       string     `gorm:"primaryKey;column:job_id"`
	FamilyID    string     `gorm:"column:family_id"`
	Requester   string     `gorm:"column:requester"`
	FromAt      time.Time  `gorm:"column:from_at"`
	ToAt        time.Time  `gorm:"column:to_at"`
	DeviceID    string     `gorm:"column:device_id"`
	IncidentID  string     `gorm:"column:incident_id"`
	ContentType string     `gorm:"column:content_type"`
	Status      string     `gorm:"column:status;index:ix_export_jobs_status"`
	DownloadRef string     `gorm:"column:download_ref"`
	FailureNote string     `gorm:"column:failure_note"`
	RequestedAt time.Time  `gorm:"column:requested_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
}

func (exportJobModel) TableName() string { return "evidence_export_jobs" }

type Repository struct {
	db *gorm.DB
}

var _ ports.EvidenceRepository = (*Repository)(nil)
var _ ports.JobRepository = (*Repository)(nil)

func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&evidenceRecordModel{}, &exportJobModel{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) SaveEvidence(ctx context.Context, record entities.EvidenceRecord) error {
	model := evidenceRecordModel{
		EvidenceID:  record.EvidenceID,
		FamilyID:    record.FamilyID,
		DeviceID:    record.DeviceID,
		IncidentID:  record.IncidentID,
		ContentType: record.ContentType,
		BlobRef:     record.BlobRef,
		CapturedAt:  record.CapturedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *Repository) ListEvidence(ctx context.Context, familyID string, filters entities.ExportFilters) ([]entities.EvidenceRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&evidenceRecordModel{}).
		Where("family_id = ?", familyID).
		Where("captured_at >= ? AND captured_at <= ?", filters.From.UTC(), filters.To.UTC())
	if filters.DeviceID != "" {
		query = query.Where("device_id = ?", filters.DeviceID)
	}
	if filters.IncidentID != "" {
		query = query.Where("incident_id = ?", filters.IncidentID)
	}
	if filters.ContentType != "" {
		query = query.Where("content_type = ?", filters.ContentType)
	}

	var models []evidenceRecordModel
	if err := query.Order("captured_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]entities.EvidenceRecord, 0, len(models))
	for _, model := range models {
		records = append(records, entities.EvidenceRecord{
			EvidenceID:  model.EvidenceID,
			FamilyID:    model.FamilyID,
			DeviceID:    model.DeviceID,
			IncidentID:  model.IncidentID,
			ContentType: model.ContentType,
			BlobRef:     model.BlobRef,
			CapturedAt:  model.CapturedAt.UTC(),
		})
	}
	return records, nil
}

func (r *Repository) SaveJob(ctx context.Context, job entities.ExportJob) error {
	model := toJobModel(job)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *Repository) ListPendingJobs(ctx context.Context, limit int) ([]entities.ExportJob, error) {
	query := r.db.WithContext(ctx).
		Model(&exportJobModel{}).
		Where("status = ?", string(entities.ExportJobPending)).
		Order("requested_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []exportJobModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	jobs := make([]entities.ExportJob, 0, len(models))
	for _, model := range models {
		jobs = append(jobs, fromJobModel(model))
	}
	return jobs, nil
}

func (r *Repository) UpdateJob(ctx context.Context, job entities.ExportJob) error {
	model := toJobModel(job)
	result := r.db.WithContext(ctx).
		Model(&exportJobModel{}).
		Where("job_id = ?", job.JobID).
		Updates(map[string]any{
			"status":       model.Status,
			"download_ref": model.DownloadRef,
			"failure_note": model.FailureNote,
			"finished_at":  model.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrJobNotFound
	}
	return nil
}

func toJobModel(job entities.ExportJob) exportJobModel {
	return exportJobModel{
		JobID:       job.JobID,
		FamilyID:    job.FamilyID,
		Requester:   job.Requester,
		FromAt:      job.Filters.From.UTC(),
		ToAt:        job.Filters.To.UTC(),
		DeviceID:    job.Filters.DeviceID,
		IncidentID:  job.Filters.IncidentID,
		ContentType: job.Filters.ContentType,
		Status:      string(job.Status),
		DownloadRef: job.DownloadRef,
		FailureNote: job.FailureNote,
		RequestedAt: job.RequestedAt.UTC(),
		FinishedAt:  job.FinishedAt,
	}
}

func fromJobModel(model exportJobModel) entities.ExportJob {
	return entities.ExportJob{
		JobID:     model.JobID,
		FamilyID:  model.FamilyID,
		Requester: model.Requester,
		Filters: entities.ExportFilters{
			From:        model.FromAt.UTC(),
			To:          model.ToAt.UTC(),
			DeviceID:    model.DeviceID,
			IncidentID:  model.IncidentID,
			ContentType: model.ContentType,
		},
		Status:      entities.ExportJobStatus(model.Status),
		DownloadRef: model.DownloadRef,
		FailureNote: model.FailureNote,
		RequestedAt: model.RequestedAt.UTC(),
		FinishedAt:  model.FinishedAt,
	}
}
