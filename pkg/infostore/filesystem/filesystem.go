// Package filesystem implements engine.InfoStore as one sidecar JSON file
// per upload, modeled on the teacher's fileInfoStore.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/tusgate/tusgate/pkg/engine"
)

const defaultFilePerm = 0o600

// Store persists upload records as "<id>.info" files under a single
// directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory must already exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) infoPath(id string) string {
	return filepath.Join(s.dir, id+".info")
}

func (s *Store) Create(ctx context.Context, record engine.Record) error {
	path := s.infoPath(record.ID)
	if _, err := os.Stat(path); err == nil {
		return errors.New("filesystem: record already exists")
	}
	return s.write(record)
}

func (s *Store) Get(ctx context.Context, id string) (engine.Record, error) {
	data, err := os.ReadFile(s.infoPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return engine.Record{}, engine.ErrRecordNotFound
		}
		return engine.Record{}, err
	}

	var rec engine.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return engine.Record{}, err
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, record engine.Record) error {
	if _, err := os.Stat(s.infoPath(record.ID)); os.IsNotExist(err) {
		return engine.ErrRecordNotFound
	}
	return s.write(record)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	err := os.Remove(s.infoPath(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListIDs implements engine.ListableInfoStore for administrative tooling.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".info") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".info"))
	}
	return ids, nil
}

func (s *Store) write(record engine.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return os.WriteFile(s.infoPath(record.ID), data, defaultFilePerm)
}

var _ engine.InfoStore = (*Store)(nil)
var _ engine.ListableInfoStore = (*Store)(nil)
