// internal/workers/review/start-review/handler.go
package startreview

import (
	"context"
	"encoding/json"
	"fmt"

	"foundation-review/internal/common/camunda"
	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/common/metrics"
	"foundation-review/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "review-start-review"
)

// Reviewer is the part of the workflow controller this worker drives.
type Reviewer interface {
	StartReview(ctx context.Context, applicationID, adminID string) apperrors.Result
	GetByID(ctx context.Context, id string) (*models.Application, error)
}

type Handler struct {
	config   *Config
	reviewer Reviewer
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, reviewer Reviewer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		reviewer: reviewer,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewValidationError("variables", fmt.Sprintf("cannot parse job variables: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output, h.config.Retry); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.NewValidationError("applicationId", "is required")
	}
	if input.ActorID == "" {
		return nil, apperrors.NewValidationError("actorId", "is required")
	}

	if res := h.reviewer.StartReview(ctx, input.ApplicationID, input.ActorID); !res.Succeeded {
		if !h.alreadyStarted(ctx, input.ApplicationID, res) {
			return nil, res.Err()
		}
		h.logger.Info("review already started", map[string]interface{}{
			"applicationId": input.ApplicationID,
		})
	}

	app, err := h.reviewer.GetByID(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	out := &Output{ApplicationID: app.ID, Status: string(app.Status)}
	if app.VotesRequired != nil {
		out.VotesRequired = *app.VotesRequired
	}
	return out, nil
}

// alreadyStarted reports whether a redelivered job finds the review it was
// asked to start already running.
func (h *Handler) alreadyStarted(ctx context.Context, applicationID string, res apperrors.Result) bool {
	if res.Code != apperrors.ErrCodeInvalidState && res.Code != apperrors.ErrCodeConcurrencyConflict {
		return false
	}
	app, err := h.reviewer.GetByID(ctx, applicationID)
	if err != nil {
		return false
	}
	return app.Status == models.StatusUnderReview && app.VotesRequired != nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
