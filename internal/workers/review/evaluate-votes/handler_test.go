// internal/workers/review/evaluate-votes/handler_test.go
package evaluatevotes

import (
	"context"
	"testing"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSummarizer struct {
	VotingSummaryFunc func(ctx context.Context, applicationID string) (*models.VotingSummary, error)
}

func (m *MockSummarizer) VotingSummary(ctx context.Context, applicationID string) (*models.VotingSummary, error) {
	return m.VotingSummaryFunc(ctx, applicationID)
}

func returning(s models.VotingSummary) *MockSummarizer {
	return &MockSummarizer{VotingSummaryFunc: func(context.Context, string) (*models.VotingSummary, error) {
		return &s, nil
	}}
}

func TestHandler_Execute_Recommendation(t *testing.T) {
	tests := []struct {
		name    string
		summary models.VotingSummary
		want    string
	}{
		{
			name: "quorum of approvals",
			summary: models.VotingSummary{
				ApplicationID: "app-1", TotalVotesCast: 2, ApprovalVotes: 2, VotesRequired: 2,
				HasSufficientVotes: true, IsApproved: true,
			},
			want: RecommendApprove,
		},
		{
			name: "single rejection vetoes",
			summary: models.VotingSummary{
				ApplicationID: "app-1", TotalVotesCast: 3, ApprovalVotes: 2, RejectionVotes: 1, VotesRequired: 3,
				HasSufficientVotes: true, HasAnyRejection: true,
			},
			want: RecommendReject,
		},
		{
			name: "still collecting",
			summary: models.VotingSummary{
				ApplicationID: "app-1", TotalVotesCast: 1, ApprovalVotes: 1, VotesRequired: 3,
			},
			want: RecommendWait,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(LoadConfig(), returning(tt.summary), logger.NewTestLogger(t))
			output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, output.Recommendation)
			assert.Equal(t, tt.summary.TotalVotesCast, output.TotalVotesCast)
			assert.Equal(t, tt.summary.IsApproved, output.IsApproved)
		})
	}
}

func TestHandler_Execute_NotFound(t *testing.T) {
	handler := NewHandler(LoadConfig(), &MockSummarizer{
		VotingSummaryFunc: func(context.Context, string) (*models.VotingSummary, error) {
			return nil, apperrors.NewNotFoundError("application", "app-9")
		},
	}, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-9"})
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.Normalize(err).Code)
}

func TestHandler_Execute_RequiresApplication(t *testing.T) {
	handler := NewHandler(LoadConfig(), &MockSummarizer{}, logger.NewTestLogger(t))
	_, err := handler.Execute(context.Background(), &Input{})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.Normalize(err).Code)
}
