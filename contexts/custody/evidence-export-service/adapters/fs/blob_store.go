package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"warden/contexts/custody/evidence-export-service/ports"
)

// BlobStore resolves evidence blob references against a base directory.
// References are relative paths; anything escaping the base is refused.
type BlobStore struct {
	Dir string
}

var _ ports.BlobStore = BlobStore{}

func (s BlobStore) GetBlob(ctx context.Context, ref string) ([]byte, error) {
	path := filepath.Join(s.Dir, filepath.Clean("/"+ref))
	if !strings.HasPrefix(path, filepath.Clean(s.Dir)+string(os.PathSeparator)) {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(path)
}
