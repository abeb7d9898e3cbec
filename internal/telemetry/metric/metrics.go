// Package metric exposes the server's Prometheus metrics.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every application-level metric. It satisfies the
// history observer interface, so one instance is shared by all
// sessions.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive prometheus.Gauge
	SessionsOpened prometheus.Counter

	MessagesAppended     prometheus.Counter
	MessageBytesAppended prometheus.Counter
	MessagesRejected     prometheus.Counter

	ResetsApplied        prometheus.Counter
	StreamResetsStarted  prometheus.Counter
	StreamResetsResolved prometheus.Counter
	StreamResetsAborted  prometheus.Counter
	ResolvedBytes        prometheus.Counter

	InvitesCreated    prometheus.Counter
	ThumbnailRequests prometheus.Counter
}

// New creates all metrics and registers them, along with the standard
// Go and process collectors, on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drawhub",
			Name:      "sessions_active",
			Help:      "Number of live sessions",
		}),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "sessions_opened_total",
			Help:      "Total sessions opened since process start",
		}),
		MessagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "history_messages_appended_total",
			Help:      "Messages accepted into session histories",
		}),
		MessageBytesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "history_bytes_appended_total",
			Help:      "Bytes accepted into session histories",
		}),
		MessagesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "history_messages_rejected_total",
			Help:      "Messages rejected for exceeding a session's byte budget",
		}),
		ResetsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "history_resets_total",
			Help:      "Full history resets applied",
		}),
		StreamResetsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "stream_resets_started_total",
			Help:      "Streamed resets started",
		}),
		StreamResetsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "stream_resets_resolved_total",
			Help:      "Streamed resets resolved successfully",
		}),
		StreamResetsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "stream_resets_aborted_total",
			Help:      "Streamed resets aborted before resolving",
		}),
		ResolvedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "stream_resets_resolved_bytes_total",
			Help:      "Total size of logs produced by resolved streamed resets",
		}),
		InvitesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "invites_created_total",
			Help:      "Session invites created",
		}),
		ThumbnailRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drawhub",
			Name:      "thumbnail_requests_total",
			Help:      "Thumbnail generation requests sent to clients",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SessionsActive,
		m.SessionsOpened,
		m.MessagesAppended,
		m.MessageBytesAppended,
		m.MessagesRejected,
		m.ResetsApplied,
		m.StreamResetsStarted,
		m.StreamResetsResolved,
		m.StreamResetsAborted,
		m.ResolvedBytes,
		m.InvitesCreated,
		m.ThumbnailRequests,
	)
	return m
}

// Registry returns the underlying registry for additional registrations
// (e.g. storage engine gauges).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// History observer hooks. The session registry fires the lifecycle
// pair; the per-session histories fire the rest.

func (m *Metrics) SessionOpened() {
	m.SessionsActive.Inc()
	m.SessionsOpened.Inc()
}

func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
}

func (m *Metrics) MessageAppended(bytes int64) {
	m.MessagesAppended.Inc()
	m.MessageBytesAppended.Add(float64(bytes))
}

func (m *Metrics) MessageRejected() {
	m.MessagesRejected.Inc()
}

func (m *Metrics) ResetApplied(sizeInBytes int64) {
	m.ResetsApplied.Inc()
}

func (m *Metrics) StreamResetStarted() {
	m.StreamResetsStarted.Inc()
}

func (m *Metrics) StreamResetResolved(sizeInBytes int64) {
	m.StreamResetsResolved.Inc()
	m.ResolvedBytes.Add(float64(sizeInBytes))
}

func (m *Metrics) StreamResetAborted() {
	m.StreamResetsAborted.Inc()
}

func (m *Metrics) InviteCreated() {
	m.InvitesCreated.Inc()
}

func (m *Metrics) ThumbnailRequested() {
	m.ThumbnailRequests.Inc()
}
