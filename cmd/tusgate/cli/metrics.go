package cli

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tusgate/tusgate/pkg/metrics"
)

// SetupMetrics registers the Prometheus registry and mounts its handler on
// mux at Flags.MetricsPath, matching the teacher's SetupMetrics.
func SetupMetrics(mux *http.ServeMux, log *slog.Logger) *metrics.Registry {
	reg := metrics.New(prometheus.DefaultRegisterer)
	log.Info("exposing metrics", "path", Flags.MetricsPath)
	mux.Handle(Flags.MetricsPath, promhttp.Handler())
	return reg
}
