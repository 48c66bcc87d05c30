package application

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"warden/contexts/custody/evidence-export-service/domain/entities"
	domainerrors "warden/contexts/custody/evidence-export-service/domain/errors"
	"warden/contexts/custody/evidence-export-service/domain/services"
	"warden/contexts/custody/evidence-export-service/ports"
)

type Service struct {
	Evidence    ports.EvidenceRepository
	Blobs       ports.BlobStore
	Archives    ports.ArchiveStore
	Jobs        ports.JobRepository
	Custody     ports.CustodyRecorder
	Reporter    ports.ChainReporter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	// SigningKey signs each manifest so a recipient can prove the
	// package came from this deployment.
	SigningKey []byte
	Logger     *slog.Logger
}

type ExportInput struct {
	// JobID is set when the export runs against a queued job; a direct
	// Export call leaves it empty and gets a generated id.
	JobID     string
	FamilyID  string
	Requester string
	Filters   entities.ExportFilters
}

type ExportResult struct {
	JobID       string
	DownloadRef string
	Manifest    entities.EvidencePackageManifest
}

// Enqueue persists an export request for the worker. The api process
// only writes the job row; the package is assembled when the worker
// picks the job up, so the queue survives process boundaries.
func (s Service) Enqueue(ctx context.Context, input ExportInput) (entities.ExportJob, error) {
	input, err := validateInput(input)
	if err != nil {
		return entities.ExportJob{}, err
	}
	if s.Jobs == nil {
		return entities.ExportJob{}, errors.New("job repository is not configured")
	}

	jobID, err := s.newID(ctx)
	if err != nil {
		return entities.ExportJob{}, err
	}
	job := entities.ExportJob{
		JobID:       jobID,
		FamilyID:    input.FamilyID,
		Requester:   input.Requester,
		Filters:     input.Filters,
		Status:      entities.ExportJobPending,
		RequestedAt: s.now(),
	}
	if err := s.Jobs.SaveJob(ctx, job); err != nil {
		return entities.ExportJob{}, err
	}

	ResolveLogger(s.Logger).Info("export job queued",
		"event", "export_job_queued",
		"module", "custody/evidence-export-service",
		"layer", "application",
		"job_id", job.JobID,
		"family_id", job.FamilyID,
	)
	return job, nil
}

// Export assembles a signed evidence package. The custody append
// happens after validation but before archive assembly, so the ledger
// shows the export attempt even if packaging later fails.
func (s Service) Export(ctx context.Context, input ExportInput) (ExportResult, error) {
	input, err := validateInput(input)
	if err != nil {
		return ExportResult{}, err
	}

	jobID := input.JobID
	if jobID == "" {
		generated, err := s.newID(ctx)
		if err != nil {
			return ExportResult{}, err
		}
		jobID = generated
	}

	records, err := s.Evidence.ListEvidence(ctx, input.FamilyID, input.Filters)
	if err != nil {
		return ExportResult{}, err
	}

	packageHash, err := services.PackageHash(jobID, input.Requester, len(records), input.Filters)
	if err != nil {
		return ExportResult{}, err
	}

	if s.Custody != nil {
		err := s.Custody.Record(ctx, input.FamilyID, "", "", input.Requester, "EVIDENCE_PACKAGE_GENERATED", map[string]any{
			"job_id":           jobID,
			"evidence_count":   len(records),
			"filters":          services.CanonicalFilters(input.Filters),
			"package_hash_hex": packageHash,
		})
		if err != nil {
			return ExportResult{}, err
		}
	}

	manifest := entities.EvidencePackageManifest{
		JobID:          jobID,
		FamilyID:       input.FamilyID,
		Requester:      input.Requester,
		GeneratedAt:    s.now(),
		FiltersJSON:    services.CanonicalFilters(input.Filters),
		PackageHashHex: packageHash,
		EvidenceCount:  len(records),
	}

	blobs := map[string][]byte{}
	for _, record := range records {
		item := entities.ManifestItem{
			EvidenceID:  record.EvidenceID,
			ContentType: record.ContentType,
		}
		blob, err := s.Blobs.GetBlob(ctx, record.BlobRef)
		if err != nil {
			item.Error = fmt.Sprintf("blob unavailable: %v", err)
			ResolveLogger(s.Logger).Warn("evidence blob missing from package",
				"event", "evidence_blob_missing",
				"module", "custody/evidence-export-service",
				"layer", "application",
				"job_id", jobID,
				"evidence_id", record.EvidenceID,
			)
		} else {
			sum := sha256.Sum256(blob)
			item.SHA256Hex = hex.EncodeToString(sum[:])
			item.SizeBytes = int64(len(blob))
			blobs[record.EvidenceID] = blob
		}
		manifest.Items = append(manifest.Items, item)
	}

	signature, err := services.SignManifest(manifest, s.SigningKey)
	if err != nil {
		return ExportResult{}, err
	}
	manifest.SignatureHex = signature

	report := ""
	if s.Reporter != nil {
		report, err = s.Reporter.RenderChainReport(ctx, input.FamilyID)
		if err != nil {
			return ExportResult{}, err
		}
	}

	archive, err := buildArchive(manifest, report, records, blobs)
	if err != nil {
		return ExportResult{}, err
	}

	downloadRef, err := s.Archives.WriteArchive(ctx, jobID, bytes.NewReader(archive))
	if err != nil {
		return ExportResult{}, err
	}

	ResolveLogger(s.Logger).Info("evidence package generated",
		"event", "evidence_package_generated",
		"module", "custody/evidence-export-service",
		"layer", "application",
		"job_id", jobID,
		"family_id", input.FamilyID,
		"evidence_count", len(records),
	)
	return ExportResult{JobID: jobID, DownloadRef: downloadRef, Manifest: manifest}, nil
}

func validateInput(input ExportInput) (ExportInput, error) {
	input.JobID = strings.TrimSpace(input.JobID)
	input.FamilyID = strings.TrimSpace(input.FamilyID)
	input.Requester = strings.TrimSpace(input.Requester)
	if input.FamilyID == "" || input.Requester == "" {
		return ExportInput{}, domainerrors.ErrInvalidExportRequest
	}
	if input.Filters.From.IsZero() || input.Filters.To.IsZero() || input.Filters.To.Before(input.Filters.From) {
		return ExportInput{}, domainerrors.ErrInvalidExportRequest
	}
	return input, nil
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) newID(ctx context.Context) (string, error) {
	if s.IDGenerator != nil {
		return s.IDGenerator.NewID(ctx)
	}
	return "", errors.New("id generator is not configured")
}

// buildArchive renders the tar+zstd package layout: manifest.json at
// the root, the chain replay as custody_report.txt, artifacts under
// evidence/.
func buildArchive(manifest entities.EvidencePackageManifest, report string, records []entities.EvidenceRecord, blobs map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(zw)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeTarFile(tw, "manifest.json", manifestJSON, manifest.GeneratedAt); err != nil {
		return nil, err
	}
	if err := writeTarFile(tw, "custody_report.txt", []byte(report), manifest.GeneratedAt); err != nil {
		return nil, err
	}
	for _, record := range records {
		blob, ok := blobs[record.EvidenceID]
		if !ok {
			continue
		}
		if err := writeTarFile(tw, "evidence/"+record.EvidenceID, blob, manifest.GeneratedAt); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime.UTC(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
