package workflow

import (
	"testing"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		current    models.ApplicationStatus
		transition Transition
		want       models.ApplicationStatus
		wantErr    string
	}{
		{name: "submit draft", current: models.StatusDraft, transition: TransitionSubmit, want: models.StatusSubmitted},
		{name: "re-submit", current: models.StatusNeedsInformation, transition: TransitionSubmit, want: models.StatusSubmitted},
		{name: "start review", current: models.StatusSubmitted, transition: TransitionStartReview, want: models.StatusUnderReview},
		{
			name: "start review from draft", current: models.StatusDraft, transition: TransitionStartReview,
			wantErr: "must be in Submitted status to start review (current status: Draft)",
		},
		{name: "open discussion", current: models.StatusUnderReview, transition: TransitionOpenDiscussion, want: models.StatusInDiscussion},
		{name: "request info in discussion", current: models.StatusInDiscussion, transition: TransitionRequestInformation, want: models.StatusNeedsInformation},
		{name: "approve under review", current: models.StatusUnderReview, transition: TransitionApprove, want: models.StatusApproved},
		{name: "reject in discussion", current: models.StatusInDiscussion, transition: TransitionReject, want: models.StatusRejected},
		{
			name: "approve draft", current: models.StatusDraft, transition: TransitionApprove,
			wantErr: "must be in UnderReview or InDiscussion status to approve (current status: Draft)",
		},
		{name: "approve twice", current: models.StatusApproved, transition: TransitionApprove, wantErr: "application already decided"},
		{name: "reject after approval", current: models.StatusApproved, transition: TransitionReject, wantErr: "application already decided"},
		{name: "withdraw submitted", current: models.StatusSubmitted, transition: TransitionWithdraw, want: models.StatusWithdrawn},
		{name: "withdraw under review", current: models.StatusUnderReview, transition: TransitionWithdraw, want: models.StatusWithdrawn},
		{name: "withdraw in discussion", current: models.StatusInDiscussion, transition: TransitionWithdraw, want: models.StatusWithdrawn},
		{
			name: "withdraw draft", current: models.StatusDraft, transition: TransitionWithdraw,
			wantErr: "must be in Submitted, UnderReview or InDiscussion status to withdraw (current status: Draft)",
		},
		{
			name: "withdraw approved", current: models.StatusApproved, transition: TransitionWithdraw,
			wantErr: "current status: Approved",
		},
		{name: "activate", current: models.StatusApproved, transition: TransitionActivate, want: models.StatusActive},
		{name: "complete", current: models.StatusActive, transition: TransitionComplete, want: models.StatusCompleted},
		{name: "expire", current: models.StatusNeedsInformation, transition: TransitionExpire, want: models.StatusExpired},
		{name: "assign sponsor keeps status", current: models.StatusActive, transition: TransitionAssignSponsor, want: models.StatusActive},
		{name: "edit draft keeps status", current: models.StatusDraft, transition: TransitionEditDraft, want: models.StatusDraft},
		{name: "edit submitted", current: models.StatusSubmitted, transition: TransitionEditDraft, wantErr: "to edit the application"},
		{name: "unknown", current: models.StatusDraft, transition: Transition("teleport"), wantErr: `unknown transition "teleport"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Check(tt.current, tt.transition)
			if tt.wantErr != "" {
				require.NotNil(t, err)
				assert.Equal(t, apperrors.ErrCodeInvalidState, err.Code)
				assert.Contains(t, err.Message, tt.wantErr)
				assert.Equal(t, tt.current, got)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowed_TerminalStates(t *testing.T) {
	for _, s := range []models.ApplicationStatus{models.StatusRejected, models.StatusWithdrawn, models.StatusExpired, models.StatusCompleted} {
		assert.Empty(t, Allowed(s), string(s))
	}
	// only the program lifecycle follows an approval
	assert.Equal(t, []Transition{TransitionActivate, TransitionAssignSponsor}, Allowed(models.StatusApproved))
}

func TestAllowed_EveryStatusIsCovered(t *testing.T) {
	reachable := map[models.ApplicationStatus]bool{models.StatusDraft: true}
	for _, s := range models.AllStatuses() {
		for _, tr := range Allowed(s) {
			next, err := Check(s, tr)
			require.Nil(t, err)
			reachable[next] = true
		}
	}
	for _, s := range models.AllStatuses() {
		assert.True(t, reachable[s], "status %s is unreachable", s)
	}
}
