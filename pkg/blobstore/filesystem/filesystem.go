// Package filesystem implements engine.BlobStore against the local disk,
// modeled on the teacher's FileStore. Blobs are stored either as one flat
// file per upload id, or — when a directory template is configured — under
// a subdirectory expanded from that template, falling back to the flat
// layout whenever the template cannot be resolved.
package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tusgate/tusgate/pkg/engine"
)

const defaultFilePerm = 0o664
const indexDirName = ".tusgate-dir-index"

// Option configures optional behavior of a Store.
type Option func(*Store)

// WithDirTemplate sets the directory-structure template expanded at write
// time to compute the subdirectory each blob is stored under (e.g.
// "{year}/{month}/{day}"). An empty template (the default) is the flat
// layout: every blob lives directly under dir.
func WithDirTemplate(template string) Option {
	return func(s *Store) { s.template = template }
}

// WithForceFsync makes Append and Concatenate fsync the file after every
// write, trading throughput for the guarantee that an acknowledged write
// has reached disk.
func WithForceFsync(enabled bool) Option {
	return func(s *Store) { s.forceFsync = enabled }
}

// Store is a BlobStore backed by plain files under a single directory.
// It does not check whether the directory exists; callers must create it.
type Store struct {
	dir        string
	template   string
	forceFsync bool

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a Store rooted at dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, cache: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// binPath resolves the on-disk location for id, resolving (and persisting)
// a fresh directory-template expansion if none is recorded yet.
func (s *Store) binPath(id string) (string, error) {
	sub, err := s.resolveSubdir(id, true)
	if err != nil {
		return "", err
	}
	return s.joinSubdir(sub, id, true)
}

// Path exposes the on-disk location of an existing blob, for backends that
// wrap a Store and need to open the underlying file directly (e.g. hybrid's
// promotion to object storage).
func (s *Store) Path(id string) (string, error) {
	return s.existingBinPath(id)
}

// existingBinPath resolves the on-disk location of an id that is expected
// to already exist, without minting a new directory-template resolution
// for it. An id with no recorded resolution is assumed to live in the flat
// layout.
func (s *Store) existingBinPath(id string) (string, error) {
	sub, err := s.resolveSubdir(id, false)
	if err != nil {
		return "", err
	}
	return s.joinSubdir(sub, id, false)
}

func (s *Store) joinSubdir(sub, id string, mkdir bool) (string, error) {
	if sub == "" {
		return filepath.Join(s.dir, id), nil
	}
	full := filepath.Join(s.dir, sub)
	if mkdir {
		if err := os.MkdirAll(full, 0o774); err != nil {
			return "", err
		}
	}
	return filepath.Join(full, id), nil
}

// resolveSubdir returns the subdirectory id's blob lives under. The first
// time a given id is resolved with allowWrite it expands the template
// against the current time and persists the result to an on-disk index so
// later calls — possibly after a restart — locate the same path. If the
// template fails to resolve, or none is configured, the subdirectory is
// "" (flat layout).
func (s *Store) resolveSubdir(id string, allowWrite bool) (string, error) {
	if s.template == "" {
		return "", nil
	}

	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if sub, ok := s.readIndex(id); ok {
		s.cacheSet(id, sub)
		return sub, nil
	}
	if !allowWrite {
		return "", nil
	}

	sub, ok := expandTemplate(s.template, time.Now())
	if !ok {
		sub = ""
	}
	if err := s.writeIndex(id, sub); err != nil {
		return "", err
	}
	s.cacheSet(id, sub)
	return sub, nil
}

func (s *Store) cacheSet(id, sub string) {
	s.mu.Lock()
	s.cache[id] = sub
	s.mu.Unlock()
}

func (s *Store) indexPath(id string) string {
	return filepath.Join(s.dir, indexDirName, id)
}

func (s *Store) readIndex(id string) (string, bool) {
	data, err := os.ReadFile(s.indexPath(id))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (s *Store) writeIndex(id, sub string) error {
	if err := os.MkdirAll(filepath.Join(s.dir, indexDirName), 0o774); err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(id), []byte(sub), 0o664)
}

func (s *Store) forgetIndex(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	_ = os.Remove(s.indexPath(id))
}

func (s *Store) Append(ctx context.Context, id string, offset int64, src io.Reader) (engine.AppendResult, error) {
	path, err := s.binPath(id)
	if err != nil {
		return engine.AppendResult{NewOffset: offset}, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return engine.AppendResult{NewOffset: offset}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return engine.AppendResult{NewOffset: offset}, err
	}
	if stat.Size() != offset {
		return engine.AppendResult{NewOffset: stat.Size()}, engine.ErrOffsetMismatch
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return engine.AppendResult{NewOffset: offset}, err
	}

	n, copyErr := io.Copy(file, src)
	// An interrupted PATCH request surfaces as io.ErrUnexpectedEOF; that is
	// expected when a client pauses mid-upload and is not itself a failure.
	if copyErr == io.ErrUnexpectedEOF {
		copyErr = nil
	}

	if copyErr == nil && s.forceFsync {
		copyErr = file.Sync()
	}

	return engine.AppendResult{NewOffset: offset + n}, copyErr
}

func (s *Store) Read(ctx context.Context, id string, length int64) (io.ReadCloser, error) {
	path, err := s.existingBinPath(id)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return file, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(file, length), file}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.existingBinPath(id)
	if err != nil {
		return err
	}
	s.forgetIndex(id)
	err = os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) Concatenate(ctx context.Context, id string, parts []string) (err error) {
	path, err := s.binPath(id)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return err
	}
	defer func() {
		file.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	for _, part := range parts {
		partPath, err := s.existingBinPath(part)
		if err != nil {
			return err
		}
		src, err := os.Open(partPath)
		if err != nil {
			return err
		}
		_, err = io.Copy(file, src)
		src.Close()
		if err != nil {
			return err
		}
	}
	if s.forceFsync {
		return file.Sync()
	}
	return nil
}

func (s *Store) Length(ctx context.Context, id string) (int64, error) {
	path, err := s.existingBinPath(id)
	if err != nil {
		return 0, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return stat.Size(), nil
}

func (s *Store) Truncate(ctx context.Context, id string, offset int64) error {
	path, err := s.existingBinPath(id)
	if err != nil {
		return err
	}
	return os.Truncate(path, offset)
}

var _ engine.BlobStore = (*Store)(nil)
