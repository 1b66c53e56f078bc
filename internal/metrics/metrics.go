// Package metrics provides Prometheus metrics for observability.
// Metrics are organized by domain: HTTP requests, course mutations, the
// publication scheduler, the authoring client and database operations.
package metrics

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/tomb.v2"
)

const namespace = "course_authoring"

var (
	// HTTP metrics - track request volume and latency
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// Course mutation metrics - server side
	CourseMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "courses",
			Name:      "mutations_total",
			Help:      "Course mutations by operation and result code",
		},
		[]string{"operation", "result"},
	)

	VersionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "courses",
			Name:      "version_conflicts_total",
			Help:      "Writes rejected because expected_version was stale",
		},
		[]string{"operation"},
	)

	AssetUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "upload_bytes",
			Help:      "Size of accepted cover image uploads",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 6),
		},
	)

	// Scheduler metrics - scheduled publication firing
	ScheduledPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "fired_total",
			Help:      "Scheduled publications processed by result",
		},
		[]string{"result"},
	)

	ScheduledPublishLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "lag_seconds",
			Help:      "Delay between scheduled_publish_at and the actual publication",
			Buckets:   []float64{.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// Client metrics - authoring client save pipeline
	ClientSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "saves_total",
			Help:      "Saves issued by the authoring client by mode and result",
		},
		[]string{"mode", "result"},
	)

	ClientRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "HTTP retries performed by the authoring client",
		},
	)

	AutosaveFires = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "autosave_fires_total",
			Help:      "Autosave timer expirations",
		},
	)

	// Database metrics - track database operation performance
	DBConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Database connection pool stats",
		},
		[]string{"state"},
	)
)

// ObserveMutation records the outcome of a course mutation. result is a
// stable error code or "ok".
func ObserveMutation(operation, result string) {
	CourseMutationsTotal.WithLabelValues(operation, result).Inc()
	if result == "CONFLICT" {
		VersionConflictsTotal.WithLabelValues(operation).Inc()
	}
}

// ObserveScheduledPublish records a scheduler firing.
func ObserveScheduledPublish(result string, lag time.Duration) {
	ScheduledPublishesTotal.WithLabelValues(result).Inc()
	if result == "published" {
		ScheduledPublishLag.Observe(lag.Seconds())
	}
}

// PoolSnapshot is one reading of the connection pool.
type PoolSnapshot struct {
	Max      int32
	Total    int32
	Idle     int32
	Acquired int32
}

// PoolSource reads the current pool state.
type PoolSource func() PoolSnapshot

// PgxPoolSource reads pool state from a pgx pool.
func PgxPoolSource(pool *pgxpool.Pool) PoolSource {
	return func() PoolSnapshot {
		st := pool.Stat()
		return PoolSnapshot{
			Max:      st.MaxConns(),
			Total:    st.TotalConns(),
			Idle:     st.IdleConns(),
			Acquired: st.AcquiredConns(),
		}
	}
}

// RecordPool copies a snapshot into the pool gauges.
func RecordPool(s PoolSnapshot) {
	DBConnectionPoolSize.WithLabelValues("max").Set(float64(s.Max))
	DBConnectionPoolSize.WithLabelValues("total").Set(float64(s.Total))
	DBConnectionPoolSize.WithLabelValues("idle").Set(float64(s.Idle))
	DBConnectionPoolSize.WithLabelValues("in_use").Set(float64(s.Acquired))
}

// PoolSampler refreshes the pool gauges on an interval until stopped.
type PoolSampler struct {
	t tomb.Tomb
}

// StartPoolSampler records source immediately and then every interval.
func StartPoolSampler(source PoolSource, interval time.Duration) *PoolSampler {
	ps := &PoolSampler{}
	RecordPool(source())
	ps.t.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				RecordPool(source())
			case <-ps.t.Dying():
				return nil
			}
		}
	})
	return ps
}

// Stop ends sampling and waits for the goroutine to exit.
func (ps *PoolSampler) Stop() error {
	ps.t.Kill(nil)
	return ps.t.Wait()
}
