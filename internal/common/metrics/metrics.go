// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_transitions_total",
			Help: "Application status transitions attempted, by outcome",
		},
		[]string{"transition", "outcome"},
	)

	VotesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_votes_cast_total",
			Help: "Votes cast or updated by board members",
		},
		[]string{"decision"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_notifications_total",
			Help: "Notifications dispatched per channel",
		},
		[]string{"type", "channel", "status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)

// Outcome labels a Result for TransitionsTotal.
func Outcome(succeeded bool) string {
	if succeeded {
		return "succeeded"
	}
	return "failed"
}
