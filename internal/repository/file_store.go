package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/iliyamo/seat-booking/internal/model"
)

// FileStore keeps the snapshot in a JSON file on disk.  Every Save rewrites
// the whole file through a temporary file and a rename, so readers never see
// a half written document.
type FileStore struct {
	path     string
	readOnly bool
}

// NewFileStore returns a writable store backed by path.  The file does not
// have to exist yet.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// NewReadOnlyFileStore returns a store that can only be loaded.  It is used
// for the initial snapshot, which the service never writes.
func NewReadOnlyFileStore(path string) *FileStore {
	return &FileStore{path: path, readOnly: true}
}

// Path returns the file backing the store.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the snapshot file.  A missing file yields
// ErrSnapshotNotFound.
func (s *FileStore) Load(_ context.Context) (*model.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	snap.Normalize()
	return &snap, nil
}

// Save encodes the snapshot with two-space indentation and replaces the file.
func (s *FileStore) Save(_ context.Context, snap *model.Snapshot) error {
	if s.readOnly {
		return ErrReadOnly
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
