package protocol

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Adapter translates TUS 1.0.0 HTTP semantics onto an engine.Engine. It
// holds no upload state of its own.
type Adapter struct {
	engine     *engine.Engine
	cfg        Config
	extensions string
}

// New builds an Adapter bound to the given engine.
func New(eng *engine.Engine, cfg Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ext := eng.Extensions()
	var names []string
	names = append(names, "creation")
	if ext.CreationWithUpload {
		names = append(names, "creation-with-upload")
	}
	if ext.CreationDeferLength {
		names = append(names, "creation-defer-length")
	}
	if ext.Termination {
		names = append(names, "termination")
	}
	if ext.Concatenation {
		names = append(names, "concatenation")
	}
	if ext.Checksum {
		names = append(names, "checksum")
	}

	return &Adapter{
		engine:     eng,
		cfg:        cfg,
		extensions: strings.Join(names, ","),
	}, nil
}

// Handler returns a routed http.Handler implementing the full protocol
// surface, in the spirit of the teacher's NewHandler: a thin method/path
// switch in front of the adapter's per-operation methods.
func (a *Adapter) Handler() http.Handler {
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		method := r.Method

		switch path {
		case "":
			switch method {
			case http.MethodPost:
				a.create(w, r)
			case http.MethodOptions:
				a.options(w, r)
			default:
				w.Header().Set("Allow", "POST, OPTIONS")
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		default:
			switch {
			case method == http.MethodHead:
				a.head(w, r)
			case method == http.MethodPatch:
				a.write(w, r)
			case method == http.MethodGet && !a.cfg.DisableDownload:
				a.get(w, r)
			case method == http.MethodDelete && a.engine.Extensions().Termination && !a.cfg.DisableTermination:
				a.terminate(w, r)
			case method == http.MethodOptions:
				a.options(w, r)
			default:
				w.Header().Set("Allow", "GET, HEAD, PATCH, DELETE, OPTIONS")
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		}
	})

	return a.middleware(mux)
}

// middleware applies the request-wide concerns that run ahead of every
// operation: method override, CORS, nosniff, and the Tus-Resumable
// precondition check.
func (a *Adapter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if override := r.Header.Get("X-HTTP-Method-Override"); override != "" {
				r.Method = override
			}
		}

		if a.cfg.Metrics != nil {
			a.cfg.Metrics.RecordRequest(r.Method)
		}

		header := w.Header()
		header.Set("X-Content-Type-Options", "nosniff")

		cors := a.cfg.Cors
		if origin := r.Header.Get("Origin"); !cors.Disable && origin != "" {
			if !cors.AllowOrigin.MatchString(origin) {
				a.writeError(w, r, errOriginNotAllowed)
				return
			}

			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Vary", "Origin")
			if cors.AllowCredentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				header.Set("Access-Control-Allow-Methods", cors.AllowMethods)
				header.Set("Access-Control-Allow-Headers", cors.AllowHeaders)
				header.Set("Access-Control-Max-Age", cors.MaxAge)
			} else {
				header.Set("Access-Control-Expose-Headers", cors.ExposeHeaders)
			}
		}

		header.Set("Tus-Resumable", resumableVersion)

		if r.Method != http.MethodOptions && r.Method != http.MethodGet && r.Method != http.MethodHead {
			if r.Header.Get("Tus-Resumable") != resumableVersion {
				a.writeError(w, r, errUnsupportedVersion)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Adapter) options(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	if max := a.engine.MaxSize(); max > 0 {
		header.Set("Tus-Max-Size", formatInt(max))
	}
	header.Set("Tus-Version", resumableVersion)
	header.Set("Tus-Extension", a.extensions)
	if ext := a.engine.Extensions(); ext.Checksum {
		algos := make([]string, 0, len(ext.ChecksumAlgorithms))
		for _, algo := range ext.ChecksumAlgorithms {
			algos = append(algos, string(algo))
		}
		header.Set("Tus-Checksum-Algorithm", strings.Join(algos, ","))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Adapter) requestInfo(r *http.Request) engine.RequestInfo {
	return engine.RequestInfo{
		Method:     r.Method,
		URI:        r.URL.RequestURI(),
		RemoteAddr: r.RemoteAddr,
		Header:     map[string][]string(r.Header),
	}
}

func (a *Adapter) absoluteURL(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if forwardedHost := r.Header.Get("X-Forwarded-Host"); forwardedHost != "" {
		host = forwardedHost
	}
	return scheme + "://" + host + a.cfg.basePath + id
}

func (a *Adapter) logger(ctx context.Context) *slog.Logger {
	return a.cfg.Logger
}

func (a *Adapter) idFromPath(r *http.Request) string {
	return strings.Trim(r.URL.Path, "/")
}

func parseOffsetHeader(r *http.Request) (int64, bool) {
	v := r.Header.Get("Upload-Offset")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
