// Package metrics exposes Prometheus instruments for lookups, debits and top-ups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup outcomes. Keep this set small; it is a label value.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeAccountNotFound    = "account_not_found"
	OutcomeInvalidDocument    = "invalid_document"
	OutcomeInsufficientCredit = "insufficient_credit"
	OutcomeUpstreamFailed     = "upstream_failed"
	OutcomeStorageFailure     = "storage_failure"
)

// Metrics holds the application instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry         *prometheus.Registry
	lookups          *prometheus.CounterVec
	creditsDebited   *prometheus.CounterVec
	debitRacesLost   prometheus.Counter
	upstreamDuration *prometheus.HistogramVec
	paymentEvents    *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
}

// New registers the instruments on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consulta_lookups_total",
			Help: "Document lookups by type and terminal outcome.",
		}, []string{"document_type", "outcome"}),
		creditsDebited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consulta_credits_debited_total",
			Help: "Credits charged for lookups, in currency units.",
		}, []string{"document_type"}),
		debitRacesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consulta_debit_races_lost_total",
			Help: "Debits refused because a concurrent debit spent the balance first.",
		}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consulta_upstream_request_duration_seconds",
			Help:    "Latency of provider lookups.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"document_type", "result"}),
		paymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consulta_payment_events_total",
			Help: "PIX webhook deliveries by mapped status and whether they changed state.",
		}, []string{"status", "applied"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consulta_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}
	reg.MustRegister(m.lookups, m.creditsDebited, m.debitRacesLost, m.upstreamDuration, m.paymentEvents, m.rateLimited)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordLookup(documentType, outcome string) {
	if m == nil {
		return
	}
	if documentType == "" {
		documentType = "unknown"
	}
	m.lookups.WithLabelValues(documentType, outcome).Inc()
}

func (m *Metrics) RecordDebit(documentType string, amount float64) {
	if m == nil {
		return
	}
	m.creditsDebited.WithLabelValues(documentType).Add(amount)
}

func (m *Metrics) RecordDebitRaceLost() {
	if m == nil {
		return
	}
	m.debitRacesLost.Inc()
}

func (m *Metrics) ObserveUpstream(documentType string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.upstreamDuration.WithLabelValues(documentType, result).Observe(d.Seconds())
}

func (m *Metrics) RecordPaymentEvent(status string, applied bool) {
	if m == nil {
		return
	}
	a := "false"
	if applied {
		a = "true"
	}
	m.paymentEvents.WithLabelValues(status, a).Inc()
}

func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}
