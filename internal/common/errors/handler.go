// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports handler failures back to Zeebe.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError fails the job with retries for infrastructure errors and
// throws a BPMN error for business failures.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	re := Normalize(err)
	bpmnErr := ConvertToBPMNError(re)

	h.logError(job, re, bpmnErr)

	retries := GetRetryCount(re.Code)
	if retries > 0 && re.Retryable && job.Retries > 0 {
		h.failJobWithRetries(ctx, client, job, bpmnErr, retries)
		return
	}
	h.throwBPMNError(ctx, client, job, bpmnErr)
}

// Normalize ensures we always have a ReviewError.
func Normalize(err error) *ReviewError {
	var re *ReviewError
	if stderrors.As(err, &re) {
		return re
	}
	return &ReviewError{
		Code:      ErrCodeInternal,
		Message:   GenericFailureMessage,
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, maxRetries int) {
	retries := maxRetries
	if int(job.Retries)-1 < retries {
		retries = int(job.Retries) - 1
	}

	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries)).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

func (h *ErrorHandler) logError(job entities.Job, re *ReviewError, bpmnErr *BPMNError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(re.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          re.Details,
		"retryable":        re.Retryable,
		"errorCategory":    GetErrorCategory(re.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
