package reconciliation

import "github.com/prometheus/client_golang/prometheus"

var (
	reconcileRefundDrift = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coachwise",
		Subsystem: "reconciliation",
		Name:      "refund_drift_bookings",
		Help:      "Number of bookings whose settled refunds disagree with payment bookkeeping, as of the last run.",
	})

	reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coachwise",
		Subsystem: "reconciliation",
		Name:      "run_duration_seconds",
		Help:      "Duration of reconciliation runs in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	reconcileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "coachwise",
		Subsystem: "reconciliation",
		Name:      "errors_total",
		Help:      "Total reconciliation run errors.",
	})
)

func init() {
	prometheus.MustRegister(reconcileRefundDrift, reconcileDuration, reconcileErrors)
}
