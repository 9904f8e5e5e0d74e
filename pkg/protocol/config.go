package protocol

import (
	"log/slog"
	"net/url"
	"regexp"
)

// CorsConfig customizes Cross-Origin Resource Sharing handling, mirroring
// the teacher's CorsConfig one-to-one.
type CorsConfig struct {
	Disable          bool
	AllowOrigin      *regexp.Regexp
	AllowCredentials bool
	AllowMethods     string
	AllowHeaders     string
	MaxAge           string
	ExposeHeaders    string
}

// DefaultCorsConfig permits any origin and every header the protocol uses.
var DefaultCorsConfig = CorsConfig{
	Disable:          false,
	AllowOrigin:      regexp.MustCompile(".*"),
	AllowCredentials: false,
	AllowMethods:     "POST, HEAD, PATCH, OPTIONS, GET, DELETE",
	AllowHeaders:     "Authorization, Origin, X-Requested-With, X-Request-ID, X-HTTP-Method-Override, Content-Type, Upload-Length, Upload-Offset, Tus-Resumable, Upload-Metadata, Upload-Defer-Length, Upload-Concat, Upload-Checksum",
	MaxAge:           "86400",
	ExposeHeaders:    "Upload-Offset, Location, Upload-Length, Tus-Version, Tus-Resumable, Tus-Max-Size, Tus-Extension, Upload-Metadata, Upload-Defer-Length, Upload-Concat, Upload-Checksum",
}

// Config configures the Adapter's behavior independently of the engine it
// wraps.
type Config struct {
	// BasePath is the URL path under which uploads are served, e.g. "/files/".
	BasePath string

	DisableDownload    bool
	DisableTermination bool

	Cors *CorsConfig

	Logger *slog.Logger

	// Metrics receives per-request counters, matching the teacher's
	// handler.Metrics. Nil disables recording.
	Metrics RequestMetrics

	basePath string
}

// RequestMetrics is the narrow surface the adapter needs from a metrics
// registry, analogous to handler.Metrics but expressed as an interface so
// pkg/protocol does not depend on pkg/metrics's concrete Prometheus types.
type RequestMetrics interface {
	RecordRequest(method string)
	RecordRequestError(status int, code string)
	RecordBytesReceived(n int64)
	RecordUploadCreated()
	RecordUploadFinished()
	RecordUploadTerminated()
}

func (c *Config) validate() error {
	base := c.BasePath
	if base == "" {
		base = "/"
	}
	uri, err := url.Parse(base)
	if err != nil {
		return err
	}
	if base[len(base)-1] != '/' {
		base += "/"
	}
	if !uri.IsAbs() && base[0] != '/' {
		base = "/" + base
	}
	c.basePath = base

	if c.Cors == nil {
		c.Cors = &DefaultCorsConfig
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
