package observability

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

// Metrics holds the service's Prometheus series. A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	aggregateOps       *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	reviews           *CounterVec
	optimizerRuns     *CounterVec
	optimizerDuration *HistogramVec
	modelCache        *CounterVec
	modelCacheSize    *Gauge

	dbPool  *GaugeVec
	redisUp *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init returns the process-wide Metrics, or nil when disabled.
func Init(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
	})
	return instance
}

func Current() *Metrics {
	return instance
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("srs_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"srs_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		),
		apiInflight: NewGauge("srs_api_inflight_requests", "In-flight API requests."),

		aggregateOps: NewHistogramVec(
			"srs_aggregate_operation_duration_seconds",
			"Aggregate write latency by operation/status.",
			[]string{"op", "status"},
			nil,
		),
		aggregateConflicts: NewCounterVec("srs_aggregate_conflicts_total", "Aggregate writes that lost a compare-and-set or unique race.", []string{"op"}),
		aggregateRetries:   NewCounterVec("srs_aggregate_retries_total", "Aggregate write attempts that failed with a retryable error.", []string{"op"}),

		reviews:       NewCounterVec("srs_reviews_total", "Reviews applied by rating and resulting state.", []string{"rating", "state"}),
		optimizerRuns: NewCounterVec("srs_optimizer_runs_total", "Parameter optimisation runs by outcome.", []string{"status"}),
		optimizerDuration: NewHistogramVec(
			"srs_optimizer_duration_seconds",
			"Parameter optimisation wall time by outcome.",
			[]string{"status"},
			[]float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		),
		modelCache:     NewCounterVec("srs_model_cache_events_total", "Memory model cache events.", []string{"event"}),
		modelCacheSize: NewGauge("srs_model_cache_entries", "Memory models currently cached."),

		dbPool:  NewGaugeVec("srs_db_pool", "database/sql pool statistics.", []string{"stat"}),
		redisUp: NewGauge("srs_redis_up", "1 when the invalidation bus redis answered the last ping."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.aggregateOps, m.aggregateConflicts, m.aggregateRetries,
		m.reviews, m.optimizerRuns, m.optimizerDuration, m.modelCache, m.modelCacheSize,
		m.dbPool, m.redisUp,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

func (m *Metrics) IncReview(rating, state string) {
	if m == nil {
		return
	}
	m.reviews.Inc(rating, state)
}

func (m *Metrics) ObserveOptimizer(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.optimizerRuns.Inc(status)
	m.optimizerDuration.Observe(dur.Seconds(), status)
}

// IncModelCache records a cache event: hit, miss, invalidate or remote_invalidate.
func (m *Metrics) IncModelCache(event string) {
	if m == nil {
		return
	}
	m.modelCache.Inc(event)
}

func (m *Metrics) SetModelCacheSize(n int) {
	if m == nil {
		return
	}
	m.modelCacheSize.Set(float64(n))
}

// StartDBCollector samples the connection pool until ctx is done.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db pool unavailable", "error", err)
		}
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := sqlDB.Stats()
				m.dbPool.Set(float64(stats.OpenConnections), "open")
				m.dbPool.Set(float64(stats.InUse), "in_use")
				m.dbPool.Set(float64(stats.Idle), "idle")
				m.dbPool.Set(float64(stats.WaitCount), "wait_count")
				m.dbPool.Set(stats.WaitDuration.Seconds(), "wait_seconds")
			}
		}
	}()
}

// StartRedisCollector pings rdb until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}
