// internal/workers/review/evaluate-votes/handler.go
package evaluatevotes

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
	TaskType = "review-evaluate-votes"
)

type Summarizer interface {
	VotingSummary(ctx context.Context, applicationID string) (*models.VotingSummary, error)
}

type Handler struct {
	config     *Config
	summarizer Summarizer
	errors     *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, summarizer Summarizer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		summarizer: summarizer,
		errors:     apperrors.NewErrorHandler(log),
		logger:     log,
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

	s, err := h.summarizer.VotingSummary(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID:      s.ApplicationID,
		Status:             string(s.Status),
		TotalVotesCast:     s.TotalVotesCast,
		ApprovalVotes:      s.ApprovalVotes,
		RejectionVotes:     s.RejectionVotes,
		NeedsMoreInfoVotes: s.NeedsMoreInfoVotes,
		AbstainVotes:       s.AbstainVotes,
		VotesRequired:      s.VotesRequired,
		HasSufficientVotes: s.HasSufficientVotes,
		HasAnyRejection:    s.HasAnyRejection,
		IsApproved:         s.IsApproved,
		Recommendation:     recommend(s),
	}, nil
}

// recommend is advisory only; the admin still records the decision.
func recommend(s *models.VotingSummary) string {
	switch {
	case s.HasAnyRejection:
		return RecommendReject
	case s.IsApproved:
		return RecommendApprove
	default:
		return RecommendWait
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
