package engine

import (
	"context"
	"errors"
	"hash"
	"io"

	"github.com/tusgate/tusgate/internal/uid"
)

// Engine is the upload session state machine (spec §4.1). It orchestrates
// an InfoStore, a BlobStore and a Dispatcher for every protocol operation
// and enforces every invariant from spec §3.2. Engine holds no mutable
// process-wide state beyond the injected, immutable Config (spec §9).
type Engine struct {
	cfg Config
}

// New constructs an Engine from the given configuration, defaulting
// unspecified optional fields.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Extensions reports which TUS extensions this engine honors, so the
// protocol adapter can advertise them without duplicating configuration.
func (e *Engine) Extensions() Extensions { return e.cfg.Extensions }

// MaxSize reports the configured upload size ceiling, or 0 for unlimited.
func (e *Engine) MaxSize() int64 { return e.cfg.MaxSize }

// CreateParams collects every input the create() operation needs (spec
// §4.1). Exactly one of (Length set, DeferredSize, IsFinal) applies to a
// non-final upload; IsFinal uploads must leave Length/DeferredSize zero —
// the engine computes the length from the referenced parts.
type CreateParams struct {
	Length       int64
	DeferredSize bool
	Metadata     MetaData
	IsPartial    bool
	IsFinal      bool
	Parts        []string
	Request      RequestInfo

	// InlineBody is set for the creation-with-upload extension: the
	// request's body is streamed directly into the newly created upload
	// within the same call.
	InlineBody     io.Reader
	InlineChecksum *Checksum
}

// Create implements the create() operation from spec §4.1.
func (e *Engine) Create(ctx context.Context, p CreateParams) (Record, error) {
	if p.IsFinal {
		if p.IsPartial {
			return Record{}, ErrConflictingHeaders
		}
		if p.DeferredSize || p.Length != 0 {
			return Record{}, ErrConflictingHeaders
		}
		if p.InlineBody != nil {
			return Record{}, ErrConflictingHeaders
		}
		if !e.cfg.Extensions.Concatenation {
			return Record{}, ErrUnsupportedExtension
		}

		parts, total, err := e.resolveParts(ctx, p.Parts)
		if err != nil {
			return Record{}, err
		}
		p.Parts = parts
		p.Length = total
	} else {
		if p.DeferredSize {
			if !e.cfg.Extensions.CreationDeferLength {
				return Record{}, ErrUnsupportedExtension
			}
			if p.Length != 0 {
				return Record{}, ErrConflictingHeaders
			}
		} else if p.Length < 0 {
			return Record{}, ErrMissingLength
		}
	}

	if !p.DeferredSize && e.cfg.MaxSize > 0 && p.Length > e.cfg.MaxSize {
		return Record{}, ErrSizeLimitExceeded
	}

	rec := Record{
		ID:           uid.New(),
		Length:       p.Length,
		DeferredSize: p.DeferredSize,
		CreatedAt:    e.cfg.Now().Unix(),
		IsPartial:    p.IsPartial,
		IsFinal:      p.IsFinal,
		Parts:        p.Parts,
		Metadata:     p.Metadata,
	}

	snap := Snapshot{Upload: rec, Request: p.Request}
	hookRes, err := e.cfg.Dispatcher.Pre(ctx, EventPreCreate, snap)
	if err != nil {
		return Record{}, HookDenied{Reason: err.Error()}
	}
	if !hookRes.Allowed {
		return Record{}, HookDenied{Reason: hookRes.Reason}
	}
	if hookRes.MetadataChange != nil {
		rec.Metadata = hookRes.MetadataChange
	}

	if err := e.cfg.Info.Create(ctx, rec); err != nil {
		return Record{}, InfoStoreError{err}
	}

	if p.IsFinal {
		if err := e.cfg.Blob.Concatenate(ctx, rec.ID, rec.Parts); err != nil {
			_ = e.cfg.Info.Delete(ctx, rec.ID)
			return Record{}, BlobStoreError{err}
		}
		rec.Offset = rec.Length
		if err := e.cfg.Info.Update(ctx, rec); err != nil {
			return Record{}, InfoStoreError{err}
		}
		if e.cfg.RemovePartsAfterConcat {
			for _, partID := range rec.Parts {
				_ = e.cfg.Blob.Delete(ctx, partID)
				_ = e.cfg.Info.Delete(ctx, partID)
			}
		}
	} else if p.InlineBody != nil {
		if !e.cfg.Extensions.CreationWithUpload {
			return rec, ErrUnsupportedExtension
		}
		if _, err := e.appendChunk(ctx, &rec, p.InlineBody, p.InlineChecksum); err != nil {
			return rec, err
		}
	}

	e.finishOrReceive(ctx, &rec, p.Request, true)

	return rec, nil
}

// Write implements the write() operation from spec §4.1.
func (e *Engine) Write(ctx context.Context, id string, declaredOffset int64, src io.Reader, checksum *Checksum, req RequestInfo) (Record, error) {
	unlock, err := e.cfg.Locker.Lock(ctx, id)
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	rec, err := e.getRecord(ctx, id)
	if err != nil {
		return Record{}, err
	}

	if rec.IsFinal || rec.Completed() {
		return rec, ErrUploadAlreadyCompleted
	}
	if declaredOffset != rec.Offset {
		return rec, ErrOffsetMismatch
	}
	if checksum != nil && !e.cfg.Extensions.allowsChecksum(checksum.Algorithm) {
		return rec, ErrUnsupportedChecksumAlgorithm
	}

	if _, err := e.appendChunk(ctx, &rec, src, checksum); err != nil {
		return rec, err
	}

	e.finishOrReceive(ctx, &rec, req, false)

	return rec, nil
}

// Head implements the read-only head() operation from spec §4.1.
func (e *Engine) Head(ctx context.Context, id string) (Record, error) {
	return e.getRecord(ctx, id)
}

// Terminate implements the terminate() operation from spec §4.1. Blob
// deletion precedes metadata deletion (spec §7): if blob deletion fails the
// metadata is retained so the request can be retried.
func (e *Engine) Terminate(ctx context.Context, id string, req RequestInfo) error {
	unlock, err := e.cfg.Locker.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := e.getRecord(ctx, id)
	if err != nil {
		return err
	}

	snap := Snapshot{Upload: rec, Request: req}
	hookRes, err := e.cfg.Dispatcher.Pre(ctx, EventPreTerminate, snap)
	if err != nil {
		return HookDenied{Reason: err.Error()}
	}
	if !hookRes.Allowed {
		return HookDenied{Reason: hookRes.Reason}
	}

	if err := e.cfg.Blob.Delete(ctx, id); err != nil {
		return BlobStoreError{err}
	}
	if err := e.cfg.Info.Delete(ctx, id); err != nil {
		return InfoStoreError{err}
	}

	e.cfg.Dispatcher.Post(ctx, EventPostTerminate, snap)
	return nil
}

// Get implements the get() retrieval extension from spec §4.1. Per the
// open-question decision recorded in DESIGN.md, retrieval is permitted on
// uploads that have not yet completed; callers receive whatever bytes have
// been committed so far.
func (e *Engine) Get(ctx context.Context, id string) (io.ReadCloser, Record, error) {
	rec, err := e.getRecord(ctx, id)
	if err != nil {
		return nil, Record{}, err
	}

	length := int64(-1)
	if rec.HasLength() {
		length = rec.Length
	}

	r, err := e.cfg.Blob.Read(ctx, id, length)
	if err != nil {
		return nil, rec, BlobStoreError{err}
	}
	return r, rec, nil
}

// PatchLength implements the patch_length() operation from spec §4.1.
func (e *Engine) PatchLength(ctx context.Context, id string, length int64, req RequestInfo) (Record, error) {
	unlock, err := e.cfg.Locker.Lock(ctx, id)
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	rec, err := e.getRecord(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !rec.DeferredSize {
		return rec, ErrConflictingHeaders
	}
	if length < rec.Offset {
		return rec, ErrSizeLimitExceeded
	}
	if e.cfg.MaxSize > 0 && length > e.cfg.MaxSize {
		return rec, ErrSizeLimitExceeded
	}

	rec.Length = length
	rec.DeferredSize = false

	if err := e.cfg.Info.Update(ctx, rec); err != nil {
		return rec, InfoStoreError{err}
	}

	if rec.Completed() {
		e.finishOrReceive(ctx, &rec, req, false)
	}

	return rec, nil
}

// appendChunk streams src into the blob for rec, optionally verifying a
// checksum, and reconciles rec.Offset with the BlobStore's authoritative
// length whether or not the append succeeds (spec §7, "Rollback on write
// failure"). It does not dispatch any hook; callers decide which lifecycle
// event follows based on the resulting completion state.
func (e *Engine) appendChunk(ctx context.Context, rec *Record, src io.Reader, checksum *Checksum) (int64, error) {
	previousOffset := rec.Offset

	reader := src
	var hasher hash.Hash
	if checksum != nil {
		hasher = newHasher(checksum.Algorithm)
		reader = io.TeeReader(reader, hasher)
	}

	bounded := &limitedReader{r: reader, max: e.maxChunkSize(*rec)}
	result, appendErr := e.cfg.Blob.Append(ctx, rec.ID, rec.Offset, bounded)
	rec.Offset = result.NewOffset

	if bounded.exceeded || errors.Is(appendErr, errChunkTooLarge) {
		// The source tried to push the upload past its declared length. Roll
		// the blob back to what was committed before this call so the
		// rejected write leaves no trace (spec §8, "no mutation").
		_ = e.cfg.Blob.Truncate(ctx, rec.ID, previousOffset)
		rec.Offset = previousOffset
		_ = e.cfg.Info.Update(ctx, *rec)
		return 0, ErrSizeExceeded
	}

	if appendErr != nil {
		_ = e.cfg.Info.Update(ctx, *rec)
		return 0, BlobStoreError{appendErr}
	}

	if checksum != nil && !checksumsEqual(hasher.Sum(nil), checksum.Value) {
		_ = e.cfg.Blob.Truncate(ctx, rec.ID, previousOffset)
		rec.Offset = previousOffset
		_ = e.cfg.Info.Update(ctx, *rec)
		return 0, ErrChecksumMismatch
	}

	if err := e.cfg.Info.Update(ctx, *rec); err != nil {
		return 0, InfoStoreError{err}
	}

	return rec.Offset - previousOffset, nil
}

// finishOrReceive dispatches post-finish if rec is now completed, otherwise
// post-receive — unless isCreation is true and rec is not completed, in
// which case post-create fires instead. This implements the hook
// collapsing rules from spec §4.1.5: a creation that completes inline
// (zero length, final concatenation, or creation-with-upload finishing in
// one turn) fires exactly post-finish and never post-create.
func (e *Engine) finishOrReceive(ctx context.Context, rec *Record, req RequestInfo, isCreation bool) {
	snap := Snapshot{Upload: *rec, Request: req}
	if rec.Completed() {
		if notifier, ok := e.cfg.Blob.(CompletionNotifier); ok {
			_ = notifier.NotifyCompleted(ctx, rec.ID)
		}
		e.cfg.Dispatcher.Post(ctx, EventPostFinish, snap)
		return
	}

	if isCreation {
		e.cfg.Dispatcher.Post(ctx, EventPostCreate, snap)
		return
	}

	e.cfg.Dispatcher.Post(ctx, EventPostReceive, snap)
}

// maxChunkSize bounds a single append so that it cannot drive offset past
// length (when known) or past the configured MaxSize (when length is
// deferred). A negative result means unlimited (see limitedReader).
func (e *Engine) maxChunkSize(rec Record) int64 {
	if rec.HasLength() {
		return rec.Length - rec.Offset
	}
	if e.cfg.MaxSize > 0 {
		return e.cfg.MaxSize - rec.Offset
	}
	return -1
}

func (e *Engine) resolveParts(ctx context.Context, ids []string) ([]string, int64, error) {
	if len(ids) == 0 {
		return nil, 0, ErrInvalidConcat
	}

	var total int64
	for _, id := range ids {
		rec, err := e.getRecord(ctx, id)
		if err != nil {
			return nil, 0, ErrInvalidConcat
		}
		if !rec.IsPartial || !rec.Completed() {
			return nil, 0, ErrInvalidConcat
		}
		total += rec.Length
	}

	return ids, total, nil
}

func (e *Engine) getRecord(ctx context.Context, id string) (Record, error) {
	rec, err := e.cfg.Info.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, InfoStoreError{err}
	}
	return rec.Clone(), nil
}
