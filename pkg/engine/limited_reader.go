package engine

import (
	"errors"
	"io"
)

var errChunkTooLarge = errors.New("engine: chunk exceeds the allowed remaining size")

// limitedReader behaves like io.LimitReader but distinguishes "the source
// had exactly max bytes" from "the source tried to provide more than max
// bytes", the same distinction http.MaxBytesReader makes in the teacher's
// body_reader.go. The latter sets exceeded so the caller can report
// ErrSizeExceeded instead of silently truncating the chunk.
type limitedReader struct {
	r        io.Reader
	max      int64
	read     int64
	exceeded bool
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.max < 0 {
		return lr.r.Read(p)
	}
	remaining := lr.max - lr.read + 1
	if remaining <= 0 {
		lr.exceeded = true
		return 0, errChunkTooLarge
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lr.r.Read(p)
	lr.read += int64(n)
	if lr.read > lr.max {
		lr.exceeded = true
		if err == nil {
			err = errChunkTooLarge
		}
	}
	return n, err
}
