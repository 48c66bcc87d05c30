package workers

import (
	"context"
	"log/slog"
	"time"

	application "warden/contexts/custody/evidence-export-service/application"
	"warden/contexts/custody/evidence-export-service/domain/entities"
	"warden/contexts/custody/evidence-export-service/ports"
)

// Runner drains the export queue. Each pending job becomes one Export
// call; the outcome lands back on the job row so the requester can poll
// it. A failed job stays FAILED, it is never retried automatically.
type Runner struct {
	Jobs      ports.JobRepository
	Exporter  application.Service
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r Runner) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	batch := r.BatchSize
	if batch <= 0 {
		batch = 10
	}

	pending, err := r.Jobs.ListPendingJobs(ctx, batch)
	if err != nil {
		logger.Error("export queue list failed",
			"event", "export_queue_list_failed",
			"module", "custody/evidence-export-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, job := range pending {
		result, exportErr := r.Exporter.Export(ctx, application.ExportInput{
			JobID:     job.JobID,
			FamilyID:  job.FamilyID,
			Requester: job.Requester,
			Filters:   job.Filters,
		})

		finished := r.now()
		job.FinishedAt = &finished
		if exportErr != nil {
			job.Status = entities.ExportJobFailed
			job.FailureNote = exportErr.Error()
			logger.Error("export job failed",
				"event", "export_job_failed",
				"module", "custody/evidence-export-service",
				"layer", "worker",
				"job_id", job.JobID,
				"family_id", job.FamilyID,
				"error", exportErr.Error(),
			)
		} else {
			job.Status = entities.ExportJobDone
			job.DownloadRef = result.DownloadRef
			logger.Info("export job finished",
				"event", "export_job_finished",
				"module", "custody/evidence-export-service",
				"layer", "worker",
				"job_id", job.JobID,
				"family_id", job.FamilyID,
				"download_ref", result.DownloadRef,
			)
		}

		if err := r.Jobs.UpdateJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (r Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
