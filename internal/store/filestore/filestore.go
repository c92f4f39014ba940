// Package filestore keeps the anchor set as a single JSON array on disk.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/store"
)

// Store is a file-backed store.AnchorSet. Every Replace writes a temp file in
// the same directory, syncs it and renames it over the target, so readers see
// either the old or the new array.
type Store struct {
	path string
	mu   sync.RWMutex
}

var _ store.AnchorSet = (*Store)(nil)

// Open prepares a store at path, creating the parent directory. A missing
// file reads as an empty set.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("data file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) ([]model.AnchorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.AnchorRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.AnchorRecord{}, nil
	}
	var anchors []model.AnchorRecord
	if err := json.Unmarshal(data, &anchors); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if anchors == nil {
		anchors = []model.AnchorRecord{}
	}
	return anchors, nil
}

func (s *Store) Replace(ctx context.Context, anchors []model.AnchorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if anchors == nil {
		anchors = []model.AnchorRecord{}
	}
	data, err := json.MarshalIndent(anchors, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, data)
}

// HealthPing verifies the data directory is still writable.
func (s *Store) HealthPing(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(s.path), ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (s *Store) Close() error { return nil }

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
