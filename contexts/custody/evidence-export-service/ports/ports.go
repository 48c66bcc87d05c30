package ports

import (
	"context"
	"io"
	"time"

	"warden/contexts/custody/evidence-export-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EvidenceRepository interface {
	SaveEvidence(ctx context.Context, record entities.EvidenceRecord) error
	ListEvidence(ctx context.Context, familyID string, filters entities.ExportFilters) ([]entities.EvidenceRecord, error)
}

// JobRepository is the export queue shared by the api and worker
// processes. ListPendingJobs returns oldest requests first.
type JobRepository interface {
	SaveJob(ctx context.Context, job entities.ExportJob) error
	ListPendingJobs(ctx context.Context, limit int) ([]entities.ExportJob, error)
	UpdateJob(ctx context.Context, job entities.ExportJob) error
}

type BlobStore interface {
	GetBlob(ctx context.Context, ref string) ([]byte, error)
}

// ArchiveStore persists the finished package and returns a download
// reference for it.
type ArchiveStore interface {
	WriteArchive(ctx context.Context, jobID string, archive io.Reader) (string, error)
}

type CustodyRecorder interface {
	Record(ctx context.Context, familyID string, deviceID string, userID string, actor string, eventKey string, payload any) error
}

// ChainReporter is satisfied by the ledger service and supplies the
// human-readable chain replay bundled into each package.
type ChainReporter interface {
	RenderChainReport(ctx context.Context, familyID string) (string, error)
}
