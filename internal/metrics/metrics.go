// Package metrics exposes Prometheus counters for the dispatcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"friday/internal/dialog"
	"friday/internal/identity"
)

const unresolved = "none"

type Metrics struct {
	Turns           *prometheus.CounterVec
	TurnLatency     *prometheus.HistogramVec
	IdentitySession *prometheus.CounterVec
	Registry        prometheus.Gauge
	Requests        *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "friday_dialog_turns_total",
			Help: "Dialog turns by intent and outcome",
		}, []string{"intent", "outcome"}),

		TurnLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "friday_dialog_turn_duration_seconds",
			Help:    "Time from utterance to response, follow-up prompts included",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"source"}),

		IdentitySession: f.NewCounterVec(prometheus.CounterOpts{
			Name: "friday_identity_sessions_total",
			Help: "Identity sessions by terminal state",
		}, []string{"state"}),

		Registry: f.NewGauge(prometheus.GaugeOpts{
			Name: "friday_identity_registry_size",
			Help: "Number of enrolled identities",
		}),

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "friday_surface_requests_total",
			Help: "One-shot requests by surface and success",
		}, []string{"source", "success"}),
	}
}

// ObserveTurn records one dialog result. source names the surface that
// produced it: loop, http, ipc or bus.
func (m *Metrics) ObserveTurn(source string, res dialog.Result, took time.Duration) {
	tag := res.Tag
	if tag == "" {
		tag = unresolved
	}
	m.Turns.WithLabelValues(tag, res.Outcome.String()).Inc()
	m.TurnLatency.WithLabelValues(source).Observe(took.Seconds())
}

func (m *Metrics) ObserveRequest(source string, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	m.Requests.WithLabelValues(source, label).Inc()
}

func (m *Metrics) ObserveIdentity(out identity.Outcome, registrySize int) {
	m.IdentitySession.WithLabelValues(out.State.String()).Inc()
	m.Registry.Set(float64(registrySize))
}
