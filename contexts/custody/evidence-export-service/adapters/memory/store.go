package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"warden/contexts/custody/evidence-export-service/domain/entities"
	domainerrors "warden/contexts/custody/evidence-export-service/domain/errors"
	"warden/contexts/custody/evidence-export-service/ports"
)

// Store holds evidence records, blobs, and finished archives for tests
// and local runs.
type Store struct {
	mu       sync.Mutex
	records  []entities.EvidenceRecord
	blobs    map[string][]byte
	archives map[string][]byte
	jobs     map[string]entities.ExportJob
	jobOrder []string
	sequence int
	now      time.Time
}

var _ ports.EvidenceRepository = (*Store)(nil)
var _ ports.JobRepository = (*Store)(nil)
var _ ports.BlobStore = (*Store)(nil)
var _ ports.ArchiveStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		blobs:    map[string][]byte{},
		archives: map[string][]byte{},
		jobs:     map[string]entities.ExportJob{},
		now:      time.Now().UTC(),
	}
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Store) NewID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return fmt.Sprintf("export-%d", s.sequence), nil
}

func (s *Store) SaveEvidence(ctx context.Context, record entities.EvidenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *Store) ListEvidence(ctx context.Context, familyID string, filters entities.ExportFilters) ([]entities.EvidenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.EvidenceRecord
	for _, record := range s.records {
		if record.FamilyID == familyID && filters.Matches(record) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

func (s *Store) SaveJob(ctx context.Context, job entities.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; !exists {
		s.jobOrder = append(s.jobOrder, job.JobID)
	}
	s.jobs[job.JobID] = job
	return nil
}

func (s *Store) ListPendingJobs(ctx context.Context, limit int) ([]entities.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.ExportJob
	for _, jobID := range s.jobOrder {
		job := s.jobs[jobID]
		if job.Status != entities.ExportJobPending {
			continue
		}
		out = append(out, job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpdateJob(ctx context.Context, job entities.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; !exists {
		return domainerrors.ErrJobNotFound
	}
	s.jobs[job.JobID] = job
	return nil
}

// Job returns the stored queue row for assertions.
func (s *Store) Job(jobID string) (entities.ExportJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

func (s *Store) PutBlob(ref string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = append([]byte(nil), data...)
}

func (s *Store) GetBlob(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", ref)
	}
	return append([]byte(nil), blob...), nil
}

func (s *Store) WriteArchive(ctx context.Context, jobID string, archive io.Reader) (string, error) {
	data, err := io.ReadAll(archive)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[jobID] = data
	return "memory://" + jobID, nil
}

// Archive returns the stored package bytes for assertions.
func (s *Store) Archive(jobID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.archives[jobID]
	return data, ok
}
