package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boletoflow_tasks_processed_total",
			Help: "Total number of processed tasks by type and outcome.",
		},
		[]string{"type", "status"},
	)

	TaskDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boletoflow_task_duration_seconds",
			Help:    "Wall-clock duration of task processing.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boletoflow_task_retries_total",
			Help: "Total number of task retries by reason.",
		},
		[]string{"reason"}, // e.g. timeout, provider, precondition, persistence
	)

	ProviderRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boletoflow_provider_request_duration_seconds",
			Help:    "Latency of issuance provider calls by outcome.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"endpoint", "outcome"},
	)

	PendingTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boletoflow_tasks_pending",
			Help: "Tasks currently waiting in the queue.",
		},
	)

	FailedTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boletoflow_tasks_failed",
			Help: "Tasks in terminal failed state.",
		},
	)

	FailureRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boletoflow_task_failure_rate",
			Help: "Ratio of failed tasks to total tasks.",
		},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boletoflow_monitor_alerts_total",
			Help: "Alerts raised by the queue monitor by type.",
		},
		[]string{"type"},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		TasksProcessedTotal,
		TaskDurationSeconds,
		RetriesTotal,
		ProviderRequestSeconds,
		PendingTasks,
		FailedTasks,
		FailureRate,
		AlertsTotal,
	)
}

// RecordTask records one finished task attempt.
func RecordTask(taskType, status string, d time.Duration) {
	TasksProcessedTotal.WithLabelValues(taskType, status).Inc()
	TaskDurationSeconds.WithLabelValues(taskType).Observe(d.Seconds())
}

// RecordRetry records a retryable failure bucketed by reason.
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// RecordProviderRequest records one provider round trip.
func RecordProviderRequest(endpoint, outcome string, d time.Duration) {
	ProviderRequestSeconds.WithLabelValues(endpoint, outcome).Observe(d.Seconds())
}

// UpdateQueueGauges refreshes the queue health gauges from a monitor sample.
func UpdateQueueGauges(pending, failed, rate float64) {
	PendingTasks.Set(pending)
	FailedTasks.Set(failed)
	FailureRate.Set(rate)
}

// RecordAlert counts a monitor alert by type.
func RecordAlert(alertType string) {
	AlertsTotal.WithLabelValues(alertType).Inc()
}
