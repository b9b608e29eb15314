// Package metrics exposes authentication counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophauth"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Prometheus owns a private registry so tests can create as many instances
// as they like.
type Prometheus struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	tokens     *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Auth operations by name and outcome.",
		}, []string{"op", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected auth operations by reason.",
		}, []string{"op", "reason"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Issued tokens by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		p.operations,
		p.rejections,
		p.tokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Operation counts one finished call. reason is recorded only for
// rejections.
func (p *Prometheus) Operation(op, outcome, reason string) {
	p.operations.WithLabelValues(op, outcome).Inc()
	if outcome == OutcomeRejected && reason != "" {
		p.rejections.WithLabelValues(op, reason).Inc()
	}
}

// TokenIssued counts an issued "access" or "refresh" token.
func (p *Prometheus) TokenIssued(kind string) {
	p.tokens.WithLabelValues(kind).Inc()
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry at /metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Noop discards all observations.
type Noop struct{}

func (Noop) Operation(string, string, string) {}
func (Noop) TokenIssued(string)               {}
