package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reminderRunsTotal counts reminder job runs.
	// Labels:
	// - trigger: scheduled | manual
	// - result: success | failure
	reminderRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itp",
			Subsystem: "reminder",
			Name:      "runs_total",
			Help:      "Reminder job runs by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	// reminderClientsTotal counts per-client outcomes across runs.
	// Labels:
	// - outcome: success | failed | error | skipped
	reminderClientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itp",
			Subsystem: "reminder",
			Name:      "clients_total",
			Help:      "Clients processed by the reminder job, by outcome.",
		},
		[]string{"outcome"},
	)

	reminderRunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "itp",
		Subsystem: "reminder",
		Name:      "run_duration_seconds",
		Help:      "Reminder job wall-clock duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})

	// notificationsDispatchedTotal counts channel attempts.
	// Labels:
	// - channel: SMS | EMAIL
	// - status: sent | failed
	notificationsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itp",
			Subsystem: "notifications",
			Name:      "dispatched_total",
			Help:      "Notification attempts by channel and status.",
		},
		[]string{"channel", "status"},
	)

	cleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "itp",
		Subsystem: "cleanup",
		Name:      "deleted_total",
		Help:      "Ledger rows removed by the retention cleanup.",
	})
)

// ObserveReminderRun records one finished reminder run.
func ObserveReminderRun(trigger string, success bool, d time.Duration) {
	if trigger == "" {
		trigger = "unknown"
	}
	result := "success"
	if !success {
		result = "failure"
	}
	reminderRunsTotal.WithLabelValues(trigger, result).Inc()
	reminderRunDurationSeconds.Observe(d.Seconds())
}

// IncClientOutcome increments the per-client outcome counter.
func IncClientOutcome(outcome string) {
	reminderClientsTotal.WithLabelValues(outcome).Inc()
}

// IncDispatch increments the channel attempt counter.
func IncDispatch(channel, status string) {
	notificationsDispatchedTotal.WithLabelValues(channel, status).Inc()
}

// AddCleanupDeleted adds n to the retention cleanup counter.
func AddCleanupDeleted(n int64) {
	if n > 0 {
		cleanupDeletedTotal.Add(float64(n))
	}
}
