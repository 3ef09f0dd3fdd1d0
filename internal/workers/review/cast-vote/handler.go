// internal/workers/review/cast-vote/handler.go
package castvote

import (
	"context"
	"encoding/json"
	"fmt"

	"foundation-review/internal/common/camunda"
	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/common/metrics"
	"foundation-review/internal/models"
	"foundation-review/internal/review/voting"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "review-cast-vote"
)

type Voting interface {
	CastVote(ctx context.Context, in voting.CastVoteInput) apperrors.Result
	VotingSummary(ctx context.Context, applicationID string) (*models.VotingSummary, error)
}

type Handler struct {
	config *Config
	voting Voting
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, v Voting, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		voting: v,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
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

	res := h.voting.CastVote(ctx, voting.CastVoteInput{
		ApplicationID:   input.ApplicationID,
		VoterID:         input.VoterID,
		Decision:        models.VoteDecision(input.Decision),
		Reasoning:       input.Reasoning,
		ConfidenceLevel: input.ConfidenceLevel,
	})
	if err := res.Err(); err != nil {
		return nil, err
	}

	// the vote is stored; a summary failure only costs the process variables
	out := &Output{
		ApplicationID: input.ApplicationID,
		VoterID:       input.VoterID,
		Decision:      input.Decision,
	}
	summary, err := h.voting.VotingSummary(ctx, input.ApplicationID)
	if err != nil {
		h.logger.Warn("voting summary unavailable after vote", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"error":         err,
		})
		return out, nil
	}
	out.TotalVotesCast = summary.TotalVotesCast
	out.VotesRequired = summary.VotesRequired
	out.HasSufficientVotes = summary.HasSufficientVotes
	return out, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
