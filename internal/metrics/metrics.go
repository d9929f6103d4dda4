// Package metrics provides Prometheus instrumentation for the Coachwise
// dispute and refund engine.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coachwise",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coachwise",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DisputeTransitionsTotal counts ticket state transitions by action and outcome.
	DisputeTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coachwise",
			Name:      "dispute_transitions_total",
			Help:      "Total dispute ticket transitions by action and result.",
		},
		[]string{"action", "result"},
	)

	// RefundsIssuedTotal counts settled refunds by currency.
	RefundsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coachwise",
			Name:      "refunds_issued_total",
			Help:      "Total refunds successfully settled, by currency.",
		},
		[]string{"currency"},
	)

	// RefundedAmountCents accumulates settled refund volume in minor units.
	RefundedAmountCents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coachwise",
			Name:      "refunded_amount_cents_total",
			Help:      "Total refunded amount in minor units, by currency.",
		},
		[]string{"currency"},
	)

	// SettlementFailuresTotal counts failed settlement gateway calls.
	SettlementFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coachwise",
			Name:      "settlement_failures_total",
			Help:      "Total settlement gateway calls that failed or timed out.",
		},
	)

	// SettlementInconsistenciesTotal counts commits that failed after a
	// successful gateway call. Any non-zero value needs manual reconciliation.
	SettlementInconsistenciesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coachwise",
			Name:      "settlement_inconsistencies_total",
			Help:      "Ticket commits that failed after money moved. Requires manual reconciliation.",
		},
	)

	// PolicyEvaluationsTotal counts cancellation policy evaluations by outcome.
	PolicyEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coachwise",
			Name:      "policy_evaluations_total",
			Help:      "Total cancellation policy evaluations by eligibility outcome.",
		},
		[]string{"outcome"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coachwise", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coachwise", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coachwise", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coachwise", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DisputeTransitionsTotal,
		RefundsIssuedTotal,
		RefundedAmountCents,
		SettlementFailuresTotal,
		SettlementInconsistenciesTotal,
		PolicyEvaluationsTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
