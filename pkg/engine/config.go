package engine

import (
	"errors"
	"time"
)

// ChecksumAlgorithm identifies one of the hash algorithms usable with the
// checksum extension (spec §4.1, write()).
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumSHA1   ChecksumAlgorithm = "sha1"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
)

// Extensions controls which optional TUS extensions the engine honors.
// With CreationWithUpload, CreationDeferLength or Concatenation disabled,
// the engine operations that need them fail with ErrUnsupportedExtension;
// with Termination disabled the adapter answers DELETE with 405. With
// Concatenation disabled the adapter ignores an Upload-Concat header. The
// Creation flag is not consulted: creation is always available.
type Extensions struct {
	Creation           bool
	CreationWithUpload bool
	CreationDeferLength bool
	Termination        bool
	Concatenation      bool
	Checksum           bool
	ChecksumAlgorithms []ChecksumAlgorithm
}

// DefaultExtensions enables every extension with the full checksum
// algorithm set, matching tusd's default of advertising everything the
// configured DataStore supports.
func DefaultExtensions() Extensions {
	return Extensions{
		Creation:            true,
		CreationWithUpload:  true,
		CreationDeferLength: true,
		Termination:         true,
		Concatenation:       true,
		Checksum:            true,
		ChecksumAlgorithms:  []ChecksumAlgorithm{ChecksumMD5, ChecksumSHA1, ChecksumSHA256},
	}
}

func (e Extensions) allowsChecksum(algo ChecksumAlgorithm) bool {
	for _, a := range e.ChecksumAlgorithms {
		if a == algo {
			return true
		}
	}
	return false
}

// Config bundles the engine's immutable dependencies and policy knobs.
// Constructed once at process start (spec §9, "Global mutable state
// avoided: Configuration is a single immutable bundle passed once at
// construction").
type Config struct {
	Info       InfoStore
	Blob       BlobStore
	Dispatcher Dispatcher
	Locker     Locker

	MaxSize    int64 // 0 means unlimited
	Extensions Extensions

	// RemovePartsAfterConcat deletes partial uploads once they have been
	// folded into a final upload, matching the "remove-parts-after-concat"
	// configuration option from spec §6.
	RemovePartsAfterConcat bool

	Now func() time.Time
}

func (c *Config) validate() error {
	if c.Info == nil {
		return errors.New("engine: Config.Info must not be nil")
	}
	if c.Blob == nil {
		return errors.New("engine: Config.Blob must not be nil")
	}
	if c.Dispatcher == nil {
		c.Dispatcher = NopDispatcher{}
	}
	if c.Locker == nil {
		c.Locker = NewInProcessLocker()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if len(c.Extensions.ChecksumAlgorithms) == 0 && c.Extensions.Checksum {
		c.Extensions.ChecksumAlgorithms = DefaultExtensions().ChecksumAlgorithms
	}
	return nil
}
