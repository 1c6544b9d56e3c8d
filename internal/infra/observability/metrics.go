package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// Metrics holds all Prometheus metrics for the loyalty engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	ledgerEntries   *prometheus.CounterVec
	ledgerPoints    *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	levelChanges    *prometheus.CounterVec
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
				Name:    "loyalty_operation_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loyalty_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loyalty_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loyalty_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		ledgerEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loyalty_ledger_entries_total",
				Help: "Ledger entries appended, by category.",
			},
			[]string{"category"},
		),
		ledgerPoints: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loyalty_ledger_points_total",
				Help: "Absolute points moved through the ledger, by category.",
			},
			[]string{"category"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loyalty_rejected_operations_total",
				Help: "Mutations rejected before reaching the ledger.",
			},
			[]string{"reason"},
		),
		levelChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loyalty_level_changes_total",
				Help: "Accounts crossing a level boundary.",
			},
			[]string{"direction"},
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

// RecordEntry counts an appended ledger entry.
func (m *Metrics) RecordEntry(category domain.Category, delta int64) {
	m.ledgerEntries.WithLabelValues(string(category)).Inc()
	if delta < 0 {
		delta = -delta
	}
	m.ledgerPoints.WithLabelValues(string(category)).Add(float64(delta))
}

// IncrRejected counts a rejected mutation.
func (m *Metrics) IncrRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// RecordLevelChange counts an upgrade or downgrade.
func (m *Metrics) RecordLevelChange(upgrade bool) {
	dir := "down"
	if upgrade {
		dir = "up"
	}
	m.levelChanges.WithLabelValues(dir).Inc()
}

var allCategories = []domain.Category{
	domain.CategoryPurchase,
	domain.CategoryManualAward,
	domain.CategoryBonus,
	domain.CategoryRedeemed,
	domain.CategoryExpired,
}

var rejectReasons = []string{"validation", "forbidden", "not_found", "insufficient_balance", "inactive", "ledger_mismatch", "internal"}

// Snapshot reads the counters back for GET /v1/admin/metrics/engine.
// Prometheus counters are cumulative since process start.
func (m *Metrics) Snapshot() *domain.EngineMetrics {
	out := &domain.EngineMetrics{
		EntriesByCategory: make(map[string]int64, len(allCategories)),
		PointsByCategory:  make(map[string]int64, len(allCategories)),
	}
	for _, c := range allCategories {
		out.EntriesByCategory[string(c)] = int64(getCounterValue(m.ledgerEntries, string(c)))
		out.PointsByCategory[string(c)] = int64(getCounterValue(m.ledgerPoints, string(c)))
	}
	for _, r := range rejectReasons {
		out.RejectedOperations += int64(getCounterValue(m.rejected, r))
	}
	out.LevelUpgrades = int64(getCounterValue(m.levelChanges, "up"))
	out.LevelDowngrades = int64(getCounterValue(m.levelChanges, "down"))
	out.NotifyErrors = int64(getCounterValue(m.externalErrors, "notifier"))

	hits := getCounterValue(m.cacheHits, "dashboard")
	misses := getCounterValue(m.cacheMisses, "dashboard")
	if hits+misses > 0 {
		out.CacheHitRate = hits / (hits + misses)
	}
	return out
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
