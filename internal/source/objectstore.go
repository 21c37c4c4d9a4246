package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileObjectStore writes dataset archives to a local directory. It stands in
// for a bucket-backed store during development and tests.
type FileObjectStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileObjectStore creates an object store rooted at dir.
func NewFileObjectStore(dir string, logger zerolog.Logger) *FileObjectStore {
	return &FileObjectStore{dir: dir, logger: logger}
}

// UploadDataset stores the archive payload under the dataset id.
func (s *FileObjectStore) UploadDataset(_ context.Context, id string, payload []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	path := filepath.Join(s.dir, id+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write archive %s: %w", path, err)
	}

	s.logger.Debug().Str("path", path).Int("bytes", len(payload)).Msg("dataset archived")
	return nil
}

// NoopObjectStore discards uploads. Used when archiving is not configured.
type NoopObjectStore struct{}

// UploadDataset discards the payload.
func (NoopObjectStore) UploadDataset(context.Context, string, []byte) error {
	return nil
}

// Ensure implementations satisfy ObjectStore.
var (
	_ ObjectStore = (*FileObjectStore)(nil)
	_ ObjectStore = NoopObjectStore{}
)
