package protocol

import (
	"encoding/json"
	"net/http"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Errors that originate at the protocol layer itself, before any engine
// call is made — malformed headers, disallowed origins, unsupported
// protocol versions. Modeled on the teacher's ErrXxx var block in
// unrouted_handler.go.
var (
	errUnsupportedVersion = engine.Error{Code: "ERR_UNSUPPORTED_VERSION", Message: "missing, invalid or unsupported Tus-Resumable header", StatusCode: http.StatusPreconditionFailed}
	errOriginNotAllowed   = engine.Error{Code: "ERR_ORIGIN_NOT_ALLOWED", Message: "request origin is not allowed", StatusCode: http.StatusForbidden}
	errInvalidContentType = engine.Error{Code: "ERR_INVALID_CONTENT_TYPE", Message: "missing or invalid Content-Type header", StatusCode: http.StatusUnsupportedMediaType}
	errInvalidOffset      = engine.Error{Code: "ERR_INVALID_OFFSET", Message: "missing or invalid Upload-Offset header", StatusCode: http.StatusBadRequest}
	errInvalidUploadLen   = engine.Error{Code: "ERR_INVALID_UPLOAD_LENGTH", Message: "missing or invalid Upload-Length header", StatusCode: http.StatusBadRequest}
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps any error — whether raised here or returned by the
// engine — to an HTTP response, using engine.AsStatusCoder so the adapter
// never has to know the engine's internal error taxonomy by name.
func (a *Adapter) writeError(w http.ResponseWriter, r *http.Request, err error) {
	sc := engine.AsStatusCoder(err)

	code := "ERR_UNKNOWN"
	if e, ok := err.(engine.Error); ok {
		code = e.Code
	} else if _, ok := err.(engine.HookDenied); ok {
		code = "ERR_UPLOAD_REJECTED"
	}

	a.logger(r.Context()).Warn("request failed", "error", sc.Error(), "status", sc.StatusCode(), "path", r.URL.Path)
	if a.cfg.Metrics != nil {
		a.cfg.Metrics.RecordRequestError(sc.StatusCode(), code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(sc.StatusCode())
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: sc.Error()})
}
