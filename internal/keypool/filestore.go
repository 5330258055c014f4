package keypool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps pool sheets as CSV files under a local directory.
// Used for development and single-host deployments.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed pool store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create pool dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(poolID string) string {
	return filepath.Join(s.dir, poolID+".csv")
}

// ReadAll loads the full row set for a pool.
func (s *FileStore) ReadAll(_ context.Context, poolID string) ([]Record, error) {
	data, err := os.ReadFile(s.path(poolID))
	if err != nil {
		return nil, fmt.Errorf("read pool %s: %w", poolID, err)
	}
	return DecodeCSV(data)
}

// WriteAll replaces the pool's entire row set. The write goes through a
// temp file and rename so a crash never leaves a half-written sheet.
func (s *FileStore) WriteAll(_ context.Context, poolID string, records []Record) error {
	data, err := EncodeCSV(records)
	if err != nil {
		return err
	}
	tmp := s.path(poolID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write pool %s: %w", poolID, err)
	}
	if err := os.Rename(tmp, s.path(poolID)); err != nil {
		return fmt.Errorf("replace pool %s: %w", poolID, err)
	}
	return nil
}
