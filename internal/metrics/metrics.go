// Package metrics holds the Prometheus collectors shared by the relay.
// A nil *Metrics is valid and records nothing, which keeps tests free of registries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "babelchat"

// Translation outcomes.
const (
	TranslationSkipped = "skipped"
	TranslationOK      = "ok"
	TranslationFailed  = "failed"
)

// Metrics bundles relay collectors.
type Metrics struct {
	SessionsActive      prometheus.Gauge
	RoomsActive         prometheus.Gauge
	MessagesPublished   prometheus.Counter
	DeliveriesDropped   prometheus.Counter
	FramesRejected      *prometheus.CounterVec
	Translations        *prometheus.CounterVec
	TranslationDuration prometheus.Histogram
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// New creates and registers relay metrics on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of joined websocket sessions.",
		}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one local member.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of chat messages published to the bus.",
		}),
		DeliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Room events dropped because a member mailbox was full.",
		}),
		FramesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Inbound client frames dropped before publishing.",
		}, []string{"reason"}),
		Translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Per-recipient translation outcomes.",
		}, []string{"outcome"}),
		TranslationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_duration_seconds",
			Help:      "Latency of translation backend calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.SessionsActive,
		m.RoomsActive,
		m.MessagesPublished,
		m.DeliveriesDropped,
		m.FramesRejected,
		m.Translations,
		m.TranslationDuration,
	)
	return m
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.SessionsActive.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.SessionsActive.Dec()
	}
}

func (m *Metrics) SetRooms(n int) {
	if m != nil {
		m.RoomsActive.Set(float64(n))
	}
}

func (m *Metrics) Published() {
	if m != nil {
		m.MessagesPublished.Inc()
	}
}

func (m *Metrics) Dropped(n int) {
	if m != nil && n > 0 {
		m.DeliveriesDropped.Add(float64(n))
	}
}

func (m *Metrics) FrameRejected(reason string) {
	if m != nil {
		m.FramesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Translation(outcome string) {
	if m != nil {
		m.Translations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveTranslation(d time.Duration) {
	if m != nil {
		m.TranslationDuration.Observe(d.Seconds())
	}
}
