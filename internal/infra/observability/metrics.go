package observability

import (
	"time"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	snapshotsApplied *prometheus.CounterVec
	snapshotsSkipped *prometheus.CounterVec
	eventsPublished  *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	redemptions      *prometheus.CounterVec
	contentRequests  *prometheus.CounterVec
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
				Name:    "dealspot_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		snapshotsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_snapshots_applied_total",
				Help: "Total remote snapshots reconciled into the entity cache.",
			},
			[]string{"collection"},
		),
		snapshotsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_snapshots_skipped_total",
				Help: "Total empty remote snapshots skipped by the guard.",
			},
			[]string{"collection"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_events_published_total",
				Help: "Total change events delivered to subscribers.",
			},
			[]string{"kind"},
		),
		eventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_events_dropped_total",
				Help: "Total change events dropped on full subscriber buffers.",
			},
			[]string{"kind"},
		),
		redemptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_redemptions_total",
				Help: "Total coupon redemption attempts by outcome.",
			},
			[]string{"status"},
		),
		contentRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealspot_content_requests_total",
				Help: "Total generative content requests by outcome.",
			},
			[]string{"status"},
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

// IncrSnapshotApplied increments the applied-snapshot counter.
func (m *Metrics) IncrSnapshotApplied(collection string) {
	m.snapshotsApplied.WithLabelValues(collection).Inc()
}

// IncrSnapshotSkipped increments the empty-snapshot-guard counter.
func (m *Metrics) IncrSnapshotSkipped(collection string) {
	m.snapshotsSkipped.WithLabelValues(collection).Inc()
}

// IncrEventPublished increments the published-event counter.
func (m *Metrics) IncrEventPublished(kind string) {
	m.eventsPublished.WithLabelValues(kind).Inc()
}

// IncrEventDropped increments the dropped-event counter.
func (m *Metrics) IncrEventDropped(kind string) {
	m.eventsDropped.WithLabelValues(kind).Inc()
}

// IncrRedemption increments the redemption counter with an outcome label.
func (m *Metrics) IncrRedemption(status string) {
	m.redemptions.WithLabelValues(status).Inc()
}

// IncrContentRequest increments the content request counter
// (status: success, fallback, error).
func (m *Metrics) IncrContentRequest(status string) {
	m.contentRequests.WithLabelValues(status).Inc()
}

// GetSyncSnapshot returns a snapshot of sync-related metrics suitable
// for the GET /v1/metrics/sync endpoint.
func (m *Metrics) GetSyncSnapshot() *domain.SyncMetrics {
	applied := getCounterValue(m.snapshotsApplied, "businesses") +
		getCounterValue(m.snapshotsApplied, "coupons")
	skipped := getCounterValue(m.snapshotsSkipped, "businesses") +
		getCounterValue(m.snapshotsSkipped, "coupons")
	remoteErrors := getCounterValue(m.externalErrors, "docstore")

	published := float64(0)
	dropped := float64(0)
	for _, kind := range []string{"coupon", "business", "user", "session", "config"} {
		published += getCounterValue(m.eventsPublished, kind)
		dropped += getCounterValue(m.eventsDropped, kind)
	}

	redeemed := getCounterValue(m.redemptions, "success")
	redeemErrors := getCounterValue(m.redemptions, "error") +
		getCounterValue(m.redemptions, "limit") +
		getCounterValue(m.redemptions, "duplicate")

	cacheHits := getCounterValue(m.cacheHits, "content")
	cacheMisses := getCounterValue(m.cacheMisses, "content")
	hitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		hitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.SyncMetrics{
		SnapshotsApplied: int64(applied),
		SnapshotsSkipped: int64(skipped),
		RemoteErrors:     int64(remoteErrors),
		EventsPublished:  int64(published),
		EventsDropped:    int64(dropped),
		Redemptions:      int64(redeemed),
		RedemptionErrors: int64(redeemErrors),
		CacheHitRate:     hitRate,
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
