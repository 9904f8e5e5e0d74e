package engine

import (
	"bytes"
	"context"
	"crypto/sha1"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInfoStore is a minimal in-memory InfoStore used only by this package's
// tests; it makes no attempt at durability or concurrency beyond a mutex.
type fakeInfoStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newFakeInfoStore() *fakeInfoStore {
	return &fakeInfoStore{records: make(map[string]Record)}
}

func (s *fakeInfoStore) Create(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r.Clone()
	return nil
}

func (s *fakeInfoStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return r.Clone(), nil
}

func (s *fakeInfoStore) Update(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; !ok {
		return ErrRecordNotFound
	}
	s.records[r.ID] = r.Clone()
	return nil
}

func (s *fakeInfoStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// fakeBlobStore is an in-memory BlobStore backed by plain byte slices.
type fakeBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: make(map[string][]byte)}
}

func (s *fakeBlobStore) Append(ctx context.Context, id string, offset int64, src io.Reader) (AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.data[id]
	if int64(len(cur)) != offset {
		return AppendResult{NewOffset: int64(len(cur))}, ErrOffsetMismatch
	}

	buf, readErr := io.ReadAll(src)
	cur = append(cur, buf...)
	s.data[id] = cur
	return AppendResult{NewOffset: int64(len(cur))}, readErr
}

func (s *fakeBlobStore) Read(ctx context.Context, id string, length int64) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.data[id]
	if length >= 0 && int64(len(buf)) > length {
		buf = buf[:length]
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *fakeBlobStore) Concatenate(ctx context.Context, id string, parts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, p := range parts {
		out = append(out, s.data[p]...)
	}
	s.data[id] = out
	return nil
}

func (s *fakeBlobStore) Length(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.data[id])), nil
}

func (s *fakeBlobStore) Truncate(ctx context.Context, id string, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.data[id]
	if int64(len(cur)) > offset {
		s.data[id] = cur[:offset]
	}
	return nil
}

// fakeDispatcher records every dispatched event and optionally vetoes a
// configured set of (kind) pairs.
type fakeDispatcher struct {
	mu     sync.Mutex
	posts  []EventKind
	deny   map[EventKind]string
	preErr error
}

func (d *fakeDispatcher) Pre(ctx context.Context, kind EventKind, snap Snapshot) (HookResult, error) {
	if d.preErr != nil {
		return HookResult{}, d.preErr
	}
	if d.deny != nil {
		if reason, ok := d.deny[kind]; ok {
			return HookResult{Allowed: false, Reason: reason}, nil
		}
	}
	return HookResult{Allowed: true}, nil
}

func (d *fakeDispatcher) Post(ctx context.Context, kind EventKind, snap Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts = append(d.posts, kind)
}

func newTestEngine(t *testing.T, dispatcher Dispatcher) (*Engine, *fakeInfoStore, *fakeBlobStore) {
	t.Helper()
	info := newFakeInfoStore()
	blob := newFakeBlobStore()
	if dispatcher == nil {
		dispatcher = &fakeDispatcher{}
	}
	cfg := Config{
		Info:       info,
		Blob:       blob,
		Dispatcher: dispatcher,
		Extensions: DefaultExtensions(),
		Now:        func() time.Time { return time.Unix(0, 0) },
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	return eng, info, blob
}

func TestSimpleUpload(t *testing.T) {
	ctx := context.Background()
	eng, info, blob := newTestEngine(t, nil)

	rec, err := eng.Create(ctx, CreateParams{Length: 11})
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.Length)
	assert.Equal(t, int64(0), rec.Offset)

	rec, err = eng.Write(ctx, rec.ID, 0, bytes.NewBufferString("hello world"), nil, RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.Offset)
	assert.True(t, rec.Completed())

	head, err := eng.Head(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), head.Offset)
	assert.Equal(t, int64(11), head.Length)

	r, _, err := eng.Get(ctx, rec.ID)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	storedRec, err := info.Get(ctx, rec.ID)
	require.NoError(t, err)
	storedLen, err := blob.Length(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, storedRec.Offset, storedLen)
}

func TestResumeAfterInterrupt(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, nil)

	rec, err := eng.Create(ctx, CreateParams{Length: 11})
	require.NoError(t, err)

	rec, err = eng.Write(ctx, rec.ID, 0, bytes.NewBufferString("hell"), nil, RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Offset)

	head, err := eng.Head(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), head.Offset)

	_, err = eng.Write(ctx, rec.ID, 0, bytes.NewBufferString("x"), nil, RequestInfo{})
	assert.ErrorIs(t, err, ErrOffsetMismatch)

	head, err = eng.Head(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), head.Offset, "a rejected offset mismatch must not mutate the record")

	rec, err = eng.Write(ctx, rec.ID, 4, bytes.NewBufferString("o world"), nil, RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.Offset)
	assert.True(t, rec.Completed())
}

func TestCreationWithUploadCollapse(t *testing.T) {
	ctx := context.Background()
	dispatcher := &fakeDispatcher{}
	eng, _, _ := newTestEngine(t, dispatcher)

	rec, err := eng.Create(ctx, CreateParams{
		Length:     5,
		InlineBody: bytes.NewBufferString("abcde"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Offset)
	assert.True(t, rec.Completed())

	assert.Contains(t, dispatcher.posts, EventPostFinish)
	assert.NotContains(t, dispatcher.posts, EventPostCreate)
}

func TestDeferLength(t *testing.T) {
	ctx := context.Background()
	dispatcher := &fakeDispatcher{}
	eng, _, _ := newTestEngine(t, dispatcher)

	rec, err := eng.Create(ctx, CreateParams{DeferredSize: true})
	require.NoError(t, err)
	assert.True(t, rec.DeferredSize)
	assert.Contains(t, dispatcher.posts, EventPostCreate)

	rec, err = eng.PatchLength(ctx, rec.ID, 7, RequestInfo{})
	require.NoError(t, err)
	assert.False(t, rec.DeferredSize)
	assert.Equal(t, int64(7), rec.Length)

	rec, err = eng.Write(ctx, rec.ID, 0, bytes.NewBufferString("1234567"), nil, RequestInfo{})
	require.NoError(t, err)
	assert.True(t, rec.Completed())
	assert.Contains(t, dispatcher.posts, EventPostFinish)
}

func TestConcatenation(t *testing.T) {
	ctx := context.Background()
	dispatcher := &fakeDispatcher{}
	eng, _, _ := newTestEngine(t, dispatcher)

	p1, err := eng.Create(ctx, CreateParams{Length: 3, IsPartial: true, InlineBody: bytes.NewBufferString("foo")})
	require.NoError(t, err)
	p2, err := eng.Create(ctx, CreateParams{Length: 3, IsPartial: true, InlineBody: bytes.NewBufferString("bar")})
	require.NoError(t, err)

	dispatcher.posts = nil

	final, err := eng.Create(ctx, CreateParams{IsFinal: true, Parts: []string{p1.ID, p2.ID}})
	require.NoError(t, err)
	assert.True(t, final.Completed())
	assert.Equal(t, int64(6), final.Length)

	r, _, err := eng.Get(ctx, final.ID)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "foobar", string(got))

	finishCount := 0
	for _, e := range dispatcher.posts {
		if e == EventPostFinish {
			finishCount++
		}
	}
	assert.Equal(t, 1, finishCount)
}

func TestPreCreateVeto(t *testing.T) {
	ctx := context.Background()
	dispatcher := &fakeDispatcher{deny: map[EventKind]string{EventPreCreate: "policy rejected this upload"}}
	eng, info, blob := newTestEngine(t, dispatcher)

	_, err := eng.Create(ctx, CreateParams{Length: 11})
	require.Error(t, err)
	var denied HookDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "policy rejected this upload", denied.Reason)

	assert.Empty(t, info.records)
	assert.Empty(t, blob.data)
}

func TestChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, nil)

	rec, err := eng.Create(ctx, CreateParams{Length: 11})
	require.NoError(t, err)

	sum := sha1.Sum([]byte("wrong value"))
	_, err = eng.Write(ctx, rec.ID, 0, bytes.NewBufferString("hello world"), &Checksum{Algorithm: ChecksumSHA1, Value: sum[:]}, RequestInfo{})
	require.Error(t, err)
	assert.Equal(t, ErrChecksumMismatch, err)

	head, err := eng.Head(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), head.Offset, "checksum failure must leave the offset unchanged")
}

func TestWriteExceedingLengthLeavesNoMutation(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, nil)

	rec, err := eng.Create(ctx, CreateParams{Length: 5})
	require.NoError(t, err)

	_, err = eng.Write(ctx, rec.ID, 0, bytes.NewBufferString("toolongforthis"), nil, RequestInfo{})
	require.Error(t, err)
	assert.Equal(t, ErrSizeExceeded, err)

	head, err := eng.Head(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), head.Offset)
}

func TestWriteToCompletedUploadRejected(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, nil)

	rec, err := eng.Create(ctx, CreateParams{Length: 3, InlineBody: bytes.NewBufferString("abc")})
	require.NoError(t, err)
	assert.True(t, rec.Completed())

	_, err = eng.Write(ctx, rec.ID, 3, bytes.NewBufferString("d"), nil, RequestInfo{})
	assert.ErrorIs(t, err, ErrUploadAlreadyCompleted)
}

func TestTerminate(t *testing.T) {
	ctx := context.Background()
	dispatcher := &fakeDispatcher{}
	eng, info, blob := newTestEngine(t, dispatcher)

	rec, err := eng.Create(ctx, CreateParams{Length: 3, InlineBody: bytes.NewBufferString("abc")})
	require.NoError(t, err)

	err = eng.Terminate(ctx, rec.ID, RequestInfo{})
	require.NoError(t, err)

	_, ok := info.records[rec.ID]
	assert.False(t, ok)
	_, ok = blob.data[rec.ID]
	assert.False(t, ok)

	_, err = eng.Head(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Contains(t, dispatcher.posts, EventPostTerminate)
}

func TestHeadUnknownID(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, nil)

	_, err := eng.Head(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
