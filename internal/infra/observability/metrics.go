package observability

import (
	"time"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Webhook outcomes used as the "outcome" label.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Metrics holds all Prometheus metrics for the reconciler.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration      *prometheus.HistogramVec
	externalErrors       *prometheus.CounterVec
	cacheHits            *prometheus.CounterVec
	cacheMisses          *prometheus.CounterVec
	webhooks             *prometheus.CounterVec
	transactionsImported *prometheus.CounterVec
	statementFailures    prometheus.Counter
	challengesSigned     prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wiserecon_operation_duration_seconds",
				Help:    "Duration of reconciliation operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiserecon_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiserecon_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiserecon_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiserecon_webhooks_total",
				Help: "Wise webhooks received by event type and outcome.",
			},
			[]string{"event_type", "outcome"},
		),
		transactionsImported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiserecon_transactions_imported_total",
				Help: "Bank transactions created from Wise statements.",
			},
			[]string{"currency"},
		),
		statementFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wiserecon_statement_failures_total",
				Help: "Statement fetches that failed and were absorbed.",
			},
		),
		challengesSigned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wiserecon_2fa_challenges_signed_total",
				Help: "Wise 2FA challenges answered with a signature.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrWebhook counts a received webhook.
func (m *Metrics) IncrWebhook(eventType, outcome string) {
	m.webhooks.WithLabelValues(eventType, outcome).Inc()
}

// AddTransactionsImported counts newly created ledger rows.
func (m *Metrics) AddTransactionsImported(currency string, n int) {
	m.transactionsImported.WithLabelValues(currency).Add(float64(n))
}

// IncrStatementFailure counts an absorbed statement fetch failure.
func (m *Metrics) IncrStatementFailure() {
	m.statementFailures.Inc()
}

// IncrChallengeSigned counts an answered 2FA challenge.
func (m *Metrics) IncrChallengeSigned() {
	m.challengesSigned.Inc()
}

// Snapshot returns cumulative reconciliation counters for the admin API.
func (m *Metrics) Snapshot() *domain.ReconcileMetrics {
	accepted := sumCounters(m.webhooks, "outcome", OutcomeAccepted)
	rejected := sumCounters(m.webhooks, "outcome", OutcomeRejected)
	imported := sumCounters(m.transactionsImported, "", "")

	rate := float64(0)
	if accepted+rejected > 0 {
		rate = rejected / (accepted + rejected)
	}

	return &domain.ReconcileMetrics{
		WebhooksAccepted:     int64(accepted),
		WebhooksRejected:     int64(rejected),
		TransactionsImported: int64(imported),
		StatementFailures:    int64(counterValue(m.statementFailures)),
		ChallengesSigned:     int64(counterValue(m.challengesSigned)),
		RejectionRate:        rate,
		Period:               "all_time",
	}
}

// sumCounters adds up every series of cv whose label equals value.
// An empty label sums all series.
func sumCounters(cv *prometheus.CounterVec, label, value string) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		if label != "" && !hasLabel(m, label, value) {
			continue
		}
		total += m.Counter.GetValue()
	}
	return total
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

// counterValue extracts the current float64 value from a plain Counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
