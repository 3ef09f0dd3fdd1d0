// Package errors provides the review error taxonomy and its BPMN mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidState         ErrorCode = "INVALID_STATE"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeConcurrencyConflict  ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotificationSendFail ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeIndexFailed          ErrorCode = "INDEX_FAILED"
)

// GenericFailureMessage is what callers see for infrastructure failures.
const GenericFailureMessage = "an internal error occurred; please try again later"

// ReviewError represents a structured business or infrastructure error.
type ReviewError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *ReviewError) Error() string {
	return fmt.Sprintf("ReviewError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Constructors
// ==========================

// NewValidationError names the offending field in the message.
func NewValidationError(field, msg string) *ReviewError {
	return &ReviewError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("%s: %s", field, msg),
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

func NewStateError(msg string) *ReviewError {
	return &ReviewError{
		Code:      ErrCodeInvalidState,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(kind, id string) *ReviewError {
	return &ReviewError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   id,
		Timestamp: time.Now().UTC(),
	}
}

func NewConcurrencyError(msg string) *ReviewError {
	return &ReviewError{
		Code:      ErrCodeConcurrencyConflict,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
}

func NewForbiddenError(msg string) *ReviewError {
	return &ReviewError{
		Code:      ErrCodeForbidden,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError keeps the cause in Details; Message stays generic.
func NewInternalError(err error) *ReviewError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &ReviewError{
		Code:      ErrCodeInternal,
		Message:   GenericFailureMessage,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(channel string, err error) *ReviewError {
	return &ReviewError{
		Code:      ErrCodeNotificationSendFail,
		Message:   fmt.Sprintf("failed to send %s notification", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIndexFailedError(err error) *ReviewError {
	return &ReviewError{
		Code:      ErrCodeIndexFailed,
		Message:   "failed to index application",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Operation Results
// ==========================

// Result is the outcome of every mutating review operation.
type Result struct {
	Succeeded bool      `json:"succeeded"`
	Errors    []string  `json:"errors,omitempty"`
	Code      ErrorCode `json:"code,omitempty"`
}

func Succeed() Result {
	return Result{Succeeded: true}
}

func Fail(code ErrorCode, msgs ...string) Result {
	return Result{Succeeded: false, Code: code, Errors: msgs}
}

// FromError converts err into a failed Result. Anything that is not a
// ReviewError is reported with the generic message only.
func FromError(err error) Result {
	if err == nil {
		return Succeed()
	}
	var re *ReviewError
	if stderrors.As(err, &re) {
		if re.Code == ErrCodeInternal {
			return Fail(re.Code, GenericFailureMessage)
		}
		return Fail(re.Code, re.Message)
	}
	return Fail(ErrCodeInternal, GenericFailureMessage)
}

// FromValidation folds several validation errors into one Result.
func FromValidation(errs []*ReviewError) Result {
	if len(errs) == 0 {
		return Succeed()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return Fail(ErrCodeValidationFailed, msgs...)
}

// Err returns the Result as an error, or nil when it succeeded.
func (r Result) Err() error {
	if r.Succeeded {
		return nil
	}
	return &ReviewError{
		Code:      r.Code,
		Message:   strings.Join(r.Errors, "; "),
		Retryable: r.Code == ErrCodeInternal,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// BPMNErrorMapping maps internal error codes to the error codes modelled in the review process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:     "REVIEW_VALIDATION_FAILED",
	ErrCodeInvalidState:         "REVIEW_INVALID_STATE",
	ErrCodeNotFound:             "REVIEW_NOT_FOUND",
	ErrCodeConcurrencyConflict:  "REVIEW_ALREADY_DECIDED",
	ErrCodeForbidden:            "REVIEW_FORBIDDEN",
	ErrCodeInternal:             "REVIEW_INTERNAL_ERROR",
	ErrCodeNotificationSendFail: "NOTIFICATION_SEND_FAILED",
	ErrCodeIndexFailed:          "INDEX_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeInternal, ErrCodeNotificationSendFail, ErrCodeIndexFailed:
		return 3
	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a ReviewError to a BPMNError for Camunda.
func ConvertToBPMNError(re *ReviewError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[re.Code]
	if !exists {
		bpmnCode = string(re.Code)
	}

	retries := GetRetryCount(re.Code)
	if !re.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   re.Message,
		Details:   re.Details,
		Retryable: re.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(re.Code),
			"timestamp":         re.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STATE"), strings.Contains(codeStr, "CONFLICT"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case code == ErrCodeNotFound, code == ErrCodeForbidden:
		return "LOOKUP"
	default:
		return "OTHER"
	}
}
