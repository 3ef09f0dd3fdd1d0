// internal/workers/review/record-decision/handler_test.go
package recorddecision

import (
	"context"
	"strings"
	"testing"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/models"
	"foundation-review/internal/review/notify"
	"foundation-review/internal/review/store"
	"foundation-review/internal/review/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type testEnv struct {
	store      *store.MemoryStore
	controller *workflow.Controller
	handler    *Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	for _, u := range []models.User{
		{ID: "applicant-1", Role: models.RoleApplicant, IsActive: true},
		{ID: "admin-1", Role: models.RoleAdmin, IsActive: true},
		{ID: "board-1", Role: models.RoleBoardMember, IsActive: true},
		{ID: "sponsor-1", Role: models.RoleSponsor, IsActive: true},
	} {
		st.PutUser(u)
	}
	d := notify.NewDispatcher(&notify.Config{}, st, nil, nil, logger.NewNoOpLogger())
	c, err := workflow.NewController(st, d, workflow.Config{}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return &testEnv{store: st, controller: c, handler: NewHandler(LoadConfig(), c, logger.NewTestLogger(t))}
}

// underReview drives a fresh application to UnderReview.
func (e *testEnv) underReview(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	app, res := e.controller.CreateDraft(ctx, "applicant-1", models.ApplicationContent{
		FirstName:              "Grace",
		LastName:               "Hopper",
		Email:                  "grace@example.org",
		FundingType:            "Monthly",
		RequestedMonthlyAmount: 900,
		PersonalStatement:      strings.Repeat("I look after my two younger siblings. ", 2),
		ExpectedBenefits:       strings.Repeat("Support lets me keep studying at night. ", 2),
		CommitmentStatement:    strings.Repeat("I will report progress every month. ", 2),
		CommitmentAcknowledged: true,
		Signature:              "Grace Hopper",
	})
	require.True(t, res.Succeeded, res.Errors)
	require.True(t, e.controller.Submit(ctx, app.ID, "applicant-1").Succeeded)
	require.True(t, e.controller.StartReview(ctx, app.ID, "admin-1").Succeeded)
	return app.ID
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Approve(t *testing.T) {
	env := newTestEnv(t)
	appID := env.underReview(t)
	amount := 750.0

	output, err := env.handler.Execute(context.Background(), &Input{
		ApplicationID:         appID,
		AdminID:               "admin-1",
		Decision:              "Approve",
		Message:               "Welcome to the program.",
		ApprovedMonthlyAmount: &amount,
		SponsorID:             "sponsor-1",
	})

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusApproved), output.Status)
	assert.Equal(t, "admin-1", output.DecidedBy)
	assert.NotEmpty(t, output.DecidedAt)

	app, err := env.store.GetApplication(context.Background(), appID)
	require.NoError(t, err)
	require.NotNil(t, app.ApprovedMonthlyAmount)
	assert.Equal(t, 750.0, *app.ApprovedMonthlyAmount)
	assert.Equal(t, "sponsor-1", app.SponsorID)
}

func TestHandler_Execute_Reject(t *testing.T) {
	env := newTestEnv(t)
	appID := env.underReview(t)

	output, err := env.handler.Execute(context.Background(), &Input{
		ApplicationID: appID,
		AdminID:       "admin-1",
		Decision:      DecisionReject,
		Message:       "Income is above the program threshold.",
	})

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusRejected), output.Status)
}

func TestHandler_Execute_Failures(t *testing.T) {
	tests := []struct {
		name     string
		input    func(appID string) *Input
		wantCode apperrors.ErrorCode
		wantMsg  string
	}{
		{
			name:     "unknown decision",
			input:    func(id string) *Input { return &Input{ApplicationID: id, AdminID: "admin-1", Decision: "defer"} },
			wantCode: apperrors.ErrCodeValidationFailed,
			wantMsg:  `decision: must be "approve" or "reject"`,
		},
		{
			name:     "reject without reason",
			input:    func(id string) *Input { return &Input{ApplicationID: id, AdminID: "admin-1", Decision: DecisionReject} },
			wantCode: apperrors.ErrCodeValidationFailed,
		},
		{
			name:     "board member cannot decide",
			input:    func(id string) *Input { return &Input{ApplicationID: id, AdminID: "board-1", Decision: DecisionApprove} },
			wantCode: apperrors.ErrCodeForbidden,
		},
		{
			name:     "unknown application",
			input:    func(string) *Input { return &Input{ApplicationID: "missing", AdminID: "admin-1", Decision: DecisionApprove} },
			wantCode: apperrors.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			appID := env.underReview(t)

			_, err := env.handler.Execute(context.Background(), tt.input(appID))

			re := apperrors.Normalize(err)
			assert.Equal(t, tt.wantCode, re.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, re.Message)
			}
		})
	}
}

func TestHandler_Execute_SecondDecisionIsRejected(t *testing.T) {
	env := newTestEnv(t)
	appID := env.underReview(t)
	ctx := context.Background()

	_, err := env.handler.Execute(ctx, &Input{ApplicationID: appID, AdminID: "admin-1", Decision: DecisionApprove})
	require.NoError(t, err)

	_, err = env.handler.Execute(ctx, &Input{ApplicationID: appID, AdminID: "admin-1", Decision: DecisionReject, Message: "late"})
	re := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeInvalidState, re.Code)
	assert.Equal(t, "application already decided", re.Message)
	assert.Equal(t, "REVIEW_INVALID_STATE", apperrors.ConvertToBPMNError(re).Code)
}

func TestHandler_Execute_RedeliveredDecisionSucceeds(t *testing.T) {
	tests := []struct {
		name       string
		input      func(appID string) *Input
		wantStatus models.ApplicationStatus
	}{
		{
			name:       "approve",
			input:      func(id string) *Input { return &Input{ApplicationID: id, AdminID: "admin-1", Decision: DecisionApprove} },
			wantStatus: models.StatusApproved,
		},
		{
			name: "reject",
			input: func(id string) *Input {
				return &Input{ApplicationID: id, AdminID: "admin-1", Decision: DecisionReject, Message: "Outside the program scope."}
			},
			wantStatus: models.StatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			appID := env.underReview(t)
			ctx := context.Background()

			first, err := env.handler.Execute(ctx, tt.input(appID))
			require.NoError(t, err)

			second, err := env.handler.Execute(ctx, tt.input(appID))
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Equal(t, string(tt.wantStatus), second.Status)
		})
	}
}

func TestHandler_Execute_OtherAdminCannotRepeatDecision(t *testing.T) {
	env := newTestEnv(t)
	env.store.PutUser(models.User{ID: "admin-2", Role: models.RoleAdmin, IsActive: true})
	appID := env.underReview(t)
	ctx := context.Background()

	_, err := env.handler.Execute(ctx, &Input{ApplicationID: appID, AdminID: "admin-1", Decision: DecisionApprove})
	require.NoError(t, err)

	_, err = env.handler.Execute(ctx, &Input{ApplicationID: appID, AdminID: "admin-2", Decision: DecisionApprove})
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.Normalize(err).Code)
}
