package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomePaid            = "paid"
	outcomeFailed          = "failed"
	outcomePending         = "pending"
	outcomeAlreadyTerminal = "already_terminal"
	outcomeError           = "error"
)

var (
	paymentMetricsOnce   sync.Once
	verificationsTotal   *prometheus.CounterVec
	sweepPendingObserved prometheus.Gauge
	webhookEventsTotal   *prometheus.CounterVec
)

func initPaymentMetrics() {
	paymentMetricsOnce.Do(func() {
		verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "course_platform",
			Subsystem: "payments",
			Name:      "verifications_total",
			Help:      "Payment verifications by outcome",
		}, []string{"outcome"})

		sweepPendingObserved = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "course_platform",
			Subsystem: "payments",
			Name:      "sweep_pending",
			Help:      "Pending payments seen by the last reconciliation sweep",
		})

		webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "course_platform",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by result",
		}, []string{"result"})
	})
}

func recordVerification(outcome string) {
	initPaymentMetrics()
	verificationsTotal.WithLabelValues(outcome).Inc()
}

func recordSweepPending(count int) {
	initPaymentMetrics()
	sweepPendingObserved.Set(float64(count))
}

func recordWebhook(result string) {
	initPaymentMetrics()
	webhookEventsTotal.WithLabelValues(result).Inc()
}
