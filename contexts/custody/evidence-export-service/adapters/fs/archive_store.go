package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"warden/contexts/custody/evidence-export-service/ports"
)

// ArchiveStore writes finished packages to a local directory. The
// download reference is the absolute file path.
type ArchiveStore struct {
	Dir string
}

var _ ports.ArchiveStore = ArchiveStore{}

func (s ArchiveStore) WriteArchive(ctx context.Context, jobID string, archive io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, jobID+".tar.zst")
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, archive); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return path, nil
}
