package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	evidenceexportservice "warden/contexts/custody/evidence-export-service"
	"warden/contexts/custody/evidence-export-service/application"
	"warden/contexts/custody/evidence-export-service/domain/entities"
	ledgerservice "warden/contexts/custody/ledger-service"
	ledgerports "warden/contexts/custody/ledger-service/ports"
)

func TestExportEnqueueAndRunnerCompleteJob(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	exporter := evidenceexportservice.NewInMemoryModule(ledger.Service, ledger.Service, exportSigningKey, nil)
	ctx := context.Background()

	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	seedEvidence(t, exporter, from)

	// The api process only writes the job row; nothing is exported yet.
	job, err := exporter.Service.Enqueue(ctx, application.ExportInput{
		FamilyID:  "fam_700",
		Requester: "parent_1",
		Filters:   entities.ExportFilters{From: from, To: from.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if job.Status != entities.ExportJobPending {
		t.Fatalf("queued job must be pending, got %s", job.Status)
	}
	if _, found := exporter.Store.Archive(job.JobID); found {
		t.Fatalf("no archive may exist before the worker runs")
	}

	// The worker process drains the queue and records the outcome.
	if err := exporter.Runner.RunOnce(ctx); err != nil {
		t.Fatalf("runner failed: %v", err)
	}
	done, found := exporter.Store.Job(job.JobID)
	if !found {
		t.Fatalf("job row disappeared")
	}
	if done.Status != entities.ExportJobDone {
		t.Fatalf("expected job DONE, got %s (%s)", done.Status, done.FailureNote)
	}
	if done.DownloadRef == "" || done.FinishedAt == nil {
		t.Fatalf("finished job must carry download ref and finish time, got %+v", done)
	}
	if _, found := exporter.Store.Archive(job.JobID); !found {
		t.Fatalf("archive was not written under the queued job id")
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_700"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	var generated int
	for _, event := range events {
		if event.EventKey == "EVIDENCE_PACKAGE_GENERATED" {
			generated++
		}
	}
	if generated != 1 {
		t.Fatalf("expected one EVIDENCE_PACKAGE_GENERATED event, got %d", generated)
	}

	// A drained queue is a no-op: the job must not be exported twice.
	if err := exporter.Runner.RunOnce(ctx); err != nil {
		t.Fatalf("second runner pass failed: %v", err)
	}
	events, err = ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_700"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	generated = 0
	for _, event := range events {
		if event.EventKey == "EVIDENCE_PACKAGE_GENERATED" {
			generated++
		}
	}
	if generated != 1 {
		t.Fatalf("drained queue must not re-export, got %d generated events", generated)
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, familyID string, deviceID string, userID string, actor string, eventKey string, payload any) error {
	return errors.New("ledger unavailable")
}

func TestExportRunnerMarksFailedJob(t *testing.T) {
	exporter := evidenceexportservice.NewInMemoryModule(failingRecorder{}, nil, exportSigningKey, nil)
	ctx := context.Background()

	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	job, err := exporter.Service.Enqueue(ctx, application.ExportInput{
		FamilyID:  "fam_702",
		Requester: "parent_1",
		Filters:   entities.ExportFilters{From: from, To: from.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := exporter.Runner.RunOnce(ctx); err != nil {
		t.Fatalf("runner must record the failure on the job, got %v", err)
	}
	failed, found := exporter.Store.Job(job.JobID)
	if !found {
		t.Fatalf("job row disappeared")
	}
	if failed.Status != entities.ExportJobFailed {
		t.Fatalf("expected job FAILED, got %s", failed.Status)
	}
	if failed.FailureNote == "" || failed.FinishedAt == nil {
		t.Fatalf("failed job must carry the failure note and finish time, got %+v", failed)
	}
}

func TestEvidenceExportErrorsWhenUnwired(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	input := application.ExportInput{
		FamilyID:  "fam_703",
		Requester: "parent_1",
		Filters:   entities.ExportFilters{From: from, To: from.Add(time.Hour)},
	}

	var svc application.Service
	if _, err := svc.Export(ctx, input); err == nil {
		t.Fatalf("export on an unwired service must error, not panic")
	}
	if _, err := svc.Enqueue(ctx, input); err == nil {
		t.Fatalf("enqueue on an unwired service must error, not panic")
	}
}
