package engine

import (
	"context"
	"io"
)

// InfoStore is the durable mapping from upload-id to Record (spec §4.2).
// Implementations live under pkg/infostore/*. Get must return the
// most-recently committed value; Create must fail with an error if the id
// is taken; Update is a full replace.
type InfoStore interface {
	Create(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, record Record) error
	Delete(ctx context.Context, id string) error
}

// ListableInfoStore is implemented by InfoStore backends that can enumerate
// every known upload id, used only by administrative retrieval tools.
type ListableInfoStore interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// AppendResult reports the outcome of a BlobStore.Append call.
type AppendResult struct {
	// NewOffset is the store's authoritative length after the append,
	// whether the append succeeded fully, partially, or not at all.
	NewOffset int64
}

// BlobStore is the opaque, append-addressable byte payload for each
// upload-id (spec §4.3). Implementations live under pkg/blobstore/*.
type BlobStore interface {
	// Append appends src to the blob identified by id, starting at offset.
	// Append MUST reject with ErrOffsetMismatch if the store's current
	// length differs from offset, regardless of what the caller believes
	// the offset to be. The returned AppendResult always reports the
	// store's authoritative length, even on error, so the engine can
	// reconcile the InfoStore record.
	Append(ctx context.Context, id string, offset int64, src io.Reader) (AppendResult, error)
	// Read returns the full content of the blob. If length >= 0, only the
	// first length bytes are read.
	Read(ctx context.Context, id string, length int64) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
	// Concatenate writes the in-order concatenation of parts into id.
	// Either the target is fully present afterwards or the call fails with
	// no target created/modified.
	Concatenate(ctx context.Context, id string, parts []string) error
	Length(ctx context.Context, id string) (int64, error)
	// Truncate discards any bytes stored beyond offset. Used by the engine
	// to roll back a chunk that fails checksum verification or would exceed
	// the declared length to the last committed offset (spec §5, §7). A
	// failed or cut-short append is not rolled back: the engine keeps the
	// length the store reports.
	Truncate(ctx context.Context, id string, offset int64) error
}

// CompletionNotifier is implemented by BlobStore backends that need to know
// when an upload has reached its final offset, e.g. the hybrid store
// promoting the local blob to object storage (spec §4.3, "Hybrid
// promotion").
type CompletionNotifier interface {
	NotifyCompleted(ctx context.Context, id string) error
}
