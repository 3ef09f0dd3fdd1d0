// internal/workers/review/record-decision/handler.go
package recorddecision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"foundation-review/internal/common/camunda"
	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/common/metrics"
	"foundation-review/internal/models"
	"foundation-review/internal/review/workflow"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "review-record-decision"
)

type Decider interface {
	Approve(ctx context.Context, in workflow.ApproveInput) apperrors.Result
	Reject(ctx context.Context, applicationID, adminID, reason string) apperrors.Result
	GetByID(ctx context.Context, id string) (*models.Application, error)
}

type Handler struct {
	config  *Config
	decider Decider
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, decider Decider, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		decider: decider,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log,
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

	var (
		res     apperrors.Result
		outcome models.ApplicationStatus
	)
	switch strings.ToLower(input.Decision) {
	case DecisionApprove:
		outcome = models.StatusApproved
		res = h.decider.Approve(ctx, workflow.ApproveInput{
			ApplicationID:         input.ApplicationID,
			AdminID:               input.AdminID,
			Message:               input.Message,
			ApprovedMonthlyAmount: input.ApprovedMonthlyAmount,
			SponsorID:             input.SponsorID,
		})
	case DecisionReject:
		outcome = models.StatusRejected
		res = h.decider.Reject(ctx, input.ApplicationID, input.AdminID, input.Message)
	default:
		return nil, apperrors.NewValidationError("decision", fmt.Sprintf("must be %q or %q", DecisionApprove, DecisionReject))
	}
	if err := res.Err(); err != nil {
		if replay := h.alreadyRecorded(ctx, input, outcome, res); replay != nil {
			h.logger.Info("decision already recorded", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"status":        string(replay.Status),
			})
			return toOutput(replay), nil
		}
		return nil, err
	}

	app, err := h.decider.GetByID(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	return toOutput(app), nil
}

// alreadyRecorded returns the application when a redelivered job finds the
// same admin's identical decision already stored.
func (h *Handler) alreadyRecorded(ctx context.Context, input *Input, outcome models.ApplicationStatus, res apperrors.Result) *models.Application {
	if res.Code != apperrors.ErrCodeInvalidState && res.Code != apperrors.ErrCodeConcurrencyConflict {
		return nil
	}
	app, err := h.decider.GetByID(ctx, input.ApplicationID)
	if err != nil {
		return nil
	}
	if app.Status != outcome || app.DecisionBy != input.AdminID {
		return nil
	}
	return app
}

func toOutput(app *models.Application) *Output {
	out := &Output{ApplicationID: app.ID, Status: string(app.Status), DecidedBy: app.DecisionBy}
	if app.DecisionAt != nil {
		out.DecidedAt = app.DecisionAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
