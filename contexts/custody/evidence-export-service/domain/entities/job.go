package entities

import "time"

type ExportJobStatus string

const (
	ExportJobPending ExportJobStatus = "PENDING"
	ExportJobDone    ExportJobStatus = "DONE"
	ExportJobFailed  ExportJobStatus = "FAILED"
)

// ExportJob is one queued export request. The api process writes the
// row and answers 202; the worker polls pending rows, builds the
// package, and records the outcome. The row is the handoff between the
// two processes.
type ExportJob struct {
	JobID       string
	FamilyID    string
	Requester   string
	Filters     ExportFilters
	Status      ExportJobStatus
	DownloadRef string
	FailureNote string
	RequestedAt time.Time
	FinishedAt  *time.Time
}
