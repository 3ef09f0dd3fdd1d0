// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"foundation-review/internal/common/logger"
	"foundation-review/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler reports job outcomes to Zeebe itself; Handle never panics on bad input.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Worker is one open job worker subscription.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// WorkerOptions tune a subscription; zero values fall back to the client defaults.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// NewWorker opens a job worker for taskType and records job durations.
func NewWorker(client zbc.Client, taskType string, handler JobHandler, opts WorkerOptions, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	step := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jc worker.JobClient, job entities.Job) {
			started := time.Now()
			handler.Handle(jc, job)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
		})
	if opts.MaxJobsActive > 0 {
		step = step.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Timeout > 0 {
		step = step.Timeout(opts.Timeout)
	}

	w := &Worker{worker: step.Open(), logger: log, taskType: taskType}
	log.Info("worker started", nil)
	return w
}

func (w *Worker) TaskType() string {
	return w.taskType
}

// Stop closes the subscription and waits for in-flight jobs.
func (w *Worker) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("worker stopped", nil)
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out", map[string]interface{}{"error": ctx.Err()})
	}
}
