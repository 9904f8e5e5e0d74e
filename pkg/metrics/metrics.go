// Package metrics exposes Prometheus counters for the protocol surface and
// the hook dispatcher, modeled on the teacher's pkg/prometheuscollector
// (request/error/upload counters) and pkg/hooks.go's
// MetricsHookInvocationsTotal/MetricsHookErrorsTotal counter vectors. Unlike
// the teacher's custom Collector wrapping atomic counters on a Metrics
// struct, these are registered CounterVecs updated directly at the call
// site — there is no equivalent of handler.Metrics here since the engine
// has no atomic-counter struct of its own to adapt.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Registry bundles every counter this server exposes and the registerer
// they're attached to.
type Registry struct {
	RequestsTotal      *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	BytesReceived      prometheus.Counter
	UploadsCreated     prometheus.Counter
	UploadsFinished    prometheus.Counter
	UploadsTerminated  prometheus.Counter
	HookInvocations    *prometheus.CounterVec
	HookErrors         *prometheus.CounterVec
}

// New builds and registers a Registry against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tusgate_requests_total",
			Help: "Total number of requests served, per method.",
		}, []string{"method"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tusgate_errors_total",
			Help: "Total number of errors served, per status code.",
		}, []string{"status", "code"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tusgate_bytes_received_total",
			Help: "Total number of bytes received across all uploads.",
		}),
		UploadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tusgate_uploads_created_total",
			Help: "Total number of uploads created.",
		}),
		UploadsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tusgate_uploads_finished_total",
			Help: "Total number of uploads finished.",
		}),
		UploadsTerminated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tusgate_uploads_terminated_total",
			Help: "Total number of uploads terminated.",
		}),
		HookInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tusgate_hook_invocations_total",
			Help: "Total number of hook notifier invocations, per notifier and event.",
		}, []string{"notifier", "event"}),
		HookErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tusgate_hook_errors_total",
			Help: "Total number of hook notifier invocation failures, per notifier and event.",
		}, []string{"notifier", "event"}),
	}

	reg.MustRegister(
		m.RequestsTotal, m.ErrorsTotal, m.BytesReceived,
		m.UploadsCreated, m.UploadsFinished, m.UploadsTerminated,
		m.HookInvocations, m.HookErrors,
	)
	return m
}

// RecordInvocation implements hookdispatch.MetricsRecorder.
func (m *Registry) RecordInvocation(notifier string, kind engine.EventKind) {
	m.HookInvocations.WithLabelValues(notifier, string(kind)).Inc()
}

// RecordError implements hookdispatch.MetricsRecorder.
func (m *Registry) RecordError(notifier string, kind engine.EventKind) {
	m.HookErrors.WithLabelValues(notifier, string(kind)).Inc()
}

// The methods below implement protocol.RequestMetrics.

// RecordRequest implements protocol.RequestMetrics.
func (m *Registry) RecordRequest(method string) {
	m.RequestsTotal.WithLabelValues(method).Inc()
}

// RecordRequestError implements the error-counting half of
// protocol.RequestMetrics (named distinctly from RecordError above, which
// serves hookdispatch.MetricsRecorder with a different signature).
func (m *Registry) RecordRequestError(status int, code string) {
	m.ErrorsTotal.WithLabelValues(strconv.Itoa(status), code).Inc()
}

func (m *Registry) RecordBytesReceived(n int64) {
	m.BytesReceived.Add(float64(n))
}

func (m *Registry) RecordUploadCreated()    { m.UploadsCreated.Inc() }
func (m *Registry) RecordUploadFinished()   { m.UploadsFinished.Inc() }
func (m *Registry) RecordUploadTerminated() { m.UploadsTerminated.Inc() }
