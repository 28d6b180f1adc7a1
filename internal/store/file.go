package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kiranshivaraju/cachewatch/internal/fingerprint"
)

// FileStore keeps the fingerprint set in a pretty-printed JSON file.
// It does no locking: concurrent runs against one file are not supported.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (fingerprint.Set, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fingerprint.NewSet(), nil
	}
	if err != nil {
		return fingerprint.Set{}, fmt.Errorf("%w: read %s: %w", ErrStoreIO, s.path, err)
	}

	set, err := decodeSet(data)
	if err != nil {
		return fingerprint.Set{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return set, nil
}

// Save writes set to a temporary file in the same directory, syncs it and
// renames it over the state file, so a crash mid-write leaves the previous
// state intact.
func (s *FileStore) Save(_ context.Context, set fingerprint.Set) error {
	data, err := encodeSet(set)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStoreIO, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrStoreIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStoreIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrStoreIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStoreIO, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrStoreIO, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename to %s: %w", ErrStoreIO, s.path, err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// Ping checks that the state file's directory exists.
func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrStoreIO, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStoreIO, dir)
	}
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
