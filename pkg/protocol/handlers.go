package protocol

import (
	"io"
	"net/http"
	"strconv"

	"github.com/tusgate/tusgate/pkg/engine"
)

// create implements POST / — the creation, creation-with-upload,
// creation-defer-length and concatenation extensions (spec §4.1 create()).
func (a *Adapter) create(w http.ResponseWriter, r *http.Request) {
	containsChunk := r.Header.Get("Content-Type") == "application/offset+octet-stream"

	var concatRaw string
	if a.engine.Extensions().Concatenation {
		concatRaw = r.Header.Get("Upload-Concat")
	}
	concat, err := parseConcat(concatRaw)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	params := engine.CreateParams{
		Metadata:  parseMetadata(r.Header.Get("Upload-Metadata")),
		IsPartial: concat.isPartial,
		IsFinal:   concat.isFinal,
		Request:   a.requestInfo(r),
	}

	if concat.isFinal {
		if containsChunk {
			a.writeError(w, r, engine.ErrConflictingHeaders)
			return
		}
		parts := make([]string, 0, len(concat.partURLs))
		for _, u := range concat.partURLs {
			id, err := extractID(u, a.cfg.basePath)
			if err != nil {
				a.writeError(w, r, engine.ErrInvalidConcat)
				return
			}
			parts = append(parts, id)
		}
		params.Parts = parts
	} else {
		lengthHeader := r.Header.Get("Upload-Length")
		deferHeader := r.Header.Get("Upload-Defer-Length")

		switch {
		case deferHeader == uploadLengthDeferred && lengthHeader != "":
			a.writeError(w, r, engine.ErrConflictingHeaders)
			return
		case deferHeader == uploadLengthDeferred:
			params.DeferredSize = true
		case lengthHeader != "":
			n, ok := parseNonNegativeInt(lengthHeader)
			if !ok {
				a.writeError(w, r, errInvalidUploadLen)
				return
			}
			params.Length = n
		default:
			a.writeError(w, r, errInvalidUploadLen)
			return
		}
	}

	if containsChunk {
		params.InlineBody = r.Body
		if checksum, err := parseChecksum(r.Header.Get("Upload-Checksum")); err == nil {
			params.InlineChecksum = checksum
		}
	}

	rec, err := a.engine.Create(r.Context(), params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if a.cfg.Metrics != nil {
		a.cfg.Metrics.RecordUploadCreated()
		if rec.Completed() {
			a.cfg.Metrics.RecordUploadFinished()
		}
		if rec.Offset > 0 {
			a.cfg.Metrics.RecordBytesReceived(rec.Offset)
		}
	}

	location := a.absoluteURL(r, rec.ID)
	w.Header().Set("Location", location)
	w.Header().Set("Upload-Offset", formatInt(rec.Offset))
	w.WriteHeader(http.StatusCreated)
}

// write implements PATCH /<id> — the write() operation from spec §4.1.
func (a *Adapter) write(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/offset+octet-stream" {
		a.writeError(w, r, errInvalidContentType)
		return
	}

	offset, ok := parseOffsetHeader(r)
	if !ok {
		a.writeError(w, r, errInvalidOffset)
		return
	}

	id := a.idFromPath(r)

	if lengthHeader := r.Header.Get("Upload-Length"); lengthHeader != "" {
		n, ok := parseNonNegativeInt(lengthHeader)
		if !ok {
			a.writeError(w, r, errInvalidUploadLen)
			return
		}
		rec, err := a.engine.PatchLength(r.Context(), id, n, a.requestInfo(r))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if rec.Completed() {
			// The deferred length landed exactly on the already-written
			// offset; there is nothing left for this request to append.
			w.Header().Set("Upload-Offset", formatInt(rec.Offset))
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	checksum, err := parseChecksum(r.Header.Get("Upload-Checksum"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rec, err := a.engine.Write(r.Context(), id, offset, r.Body, checksum, a.requestInfo(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if a.cfg.Metrics != nil {
		if written := rec.Offset - offset; written > 0 {
			a.cfg.Metrics.RecordBytesReceived(written)
		}
		if rec.Completed() {
			a.cfg.Metrics.RecordUploadFinished()
		}
	}

	w.Header().Set("Upload-Offset", formatInt(rec.Offset))
	w.WriteHeader(http.StatusNoContent)
}

// head implements HEAD /<id> — the head() operation from spec §4.1.
func (a *Adapter) head(w http.ResponseWriter, r *http.Request) {
	id := a.idFromPath(r)
	rec, err := a.engine.Head(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	header := w.Header()
	header.Set("Cache-Control", "no-store")
	header.Set("Upload-Offset", formatInt(rec.Offset))

	if rec.IsPartial {
		header.Set("Upload-Concat", "partial")
	}
	if rec.IsFinal {
		v := "final;"
		for _, partID := range rec.Parts {
			v += a.absoluteURL(r, partID) + " "
		}
		header.Set("Upload-Concat", v[:len(v)-1])
	}

	if len(rec.Metadata) != 0 {
		header.Set("Upload-Metadata", serializeMetadata(rec.Metadata))
	}

	if rec.DeferredSize {
		header.Set("Upload-Defer-Length", uploadLengthDeferred)
	} else {
		header.Set("Upload-Length", formatInt(rec.Length))
	}

	w.WriteHeader(http.StatusOK)
}

// get implements GET /<id> — the retrieval extension from spec §4.1.
func (a *Adapter) get(w http.ResponseWriter, r *http.Request) {
	id := a.idFromPath(r)
	body, rec, err := a.engine.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", formatInt(rec.Offset))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// terminate implements DELETE /<id> — the termination extension from spec
// §4.1.
func (a *Adapter) terminate(w http.ResponseWriter, r *http.Request) {
	id := a.idFromPath(r)
	if err := a.engine.Terminate(r.Context(), id, a.requestInfo(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.cfg.Metrics != nil {
		a.cfg.Metrics.RecordUploadTerminated()
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseNonNegativeInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
