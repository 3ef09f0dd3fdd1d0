package voting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/models"
	"foundation-review/internal/review/notify"
	"foundation-review/internal/review/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingNotifier struct {
	mu       sync.Mutex
	requests []notify.Request
}

func (r *recordingNotifier) SendToRole(_ context.Context, role models.Role, req notify.Request) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.RecipientID = string(role)
	r.requests = append(r.requests, req)
	return 1
}

func (r *recordingNotifier) count(t models.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Type == t {
			n++
		}
	}
	return n
}

func setup(t *testing.T, status models.ApplicationStatus, votesRequired *int) (*Service, *store.MemoryStore, *recordingNotifier, string) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, id := range []string{"board-1", "board-2", "board-3"} {
		st.PutUser(models.User{ID: id, Role: models.RoleBoardMember, IsActive: true})
	}
	st.PutUser(models.User{ID: "board-retired", Role: models.RoleBoardMember, IsActive: false})
	st.PutUser(models.User{ID: "applicant-1", Role: models.RoleApplicant, IsActive: true})

	app := &models.Application{
		ApplicantID:   "applicant-1",
		Status:        status,
		VotesRequired: votesRequired,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, st.CreateApplication(context.Background(), app))

	n := &recordingNotifier{}
	svc := NewService(st, n, Config{MinReasoningLength: 5}, logger.NewTestLogger(t))
	return svc, st, n, app.ID
}

func intPtr(i int) *int { return &i }

func vote(appID, voter string, d models.VoteDecision, confidence int) CastVoteInput {
	return CastVoteInput{
		ApplicationID:   appID,
		VoterID:         voter,
		Decision:        d,
		Reasoning:       "Reviewed the budget and references.",
		ConfidenceLevel: confidence,
	}
}

// ==========================
// Voting summary
// ==========================

func TestVotingSummary_TwoApprovals(t *testing.T) {
	svc, _, n, appID := setup(t, models.StatusUnderReview, intPtr(2))
	ctx := context.Background()

	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 4)).Succeeded)
	require.True(t, svc.CastVote(ctx, vote(appID, "board-2", models.VoteApprove, 5)).Succeeded)

	s, err := svc.VotingSummary(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalVotesCast)
	assert.Equal(t, 2, s.ApprovalVotes)
	assert.Equal(t, 0, s.RejectionVotes)
	assert.True(t, s.HasSufficientVotes)
	assert.True(t, s.IsApproved)
	assert.False(t, s.HasAnyRejection)

	assert.Equal(t, 1, n.count(models.NotificationVotesComplete))
}

func TestVotingSummary_SingleRejectionVetoes(t *testing.T) {
	svc, _, _, appID := setup(t, models.StatusUnderReview, intPtr(2))
	ctx := context.Background()

	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 4)).Succeeded)
	require.True(t, svc.CastVote(ctx, vote(appID, "board-2", models.VoteReject, 5)).Succeeded)

	s, err := svc.VotingSummary(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalVotesCast)
	assert.Equal(t, 1, s.ApprovalVotes)
	assert.Equal(t, 1, s.RejectionVotes)
	assert.True(t, s.HasSufficientVotes)
	assert.True(t, s.HasAnyRejection)
	assert.False(t, s.IsApproved)
}

func TestSummarize(t *testing.T) {
	votes := func(ds ...models.VoteDecision) []*models.Vote {
		out := make([]*models.Vote, 0, len(ds))
		for _, d := range ds {
			out = append(out, &models.Vote{Decision: d})
		}
		return out
	}

	tests := []struct {
		name           string
		app            *models.Application
		votes          []*models.Vote
		wantTotal      int
		wantSufficient bool
		wantApproved   bool
	}{
		{
			name:      "abstentions do not count",
			app:       &models.Application{Status: models.StatusUnderReview, VotesRequired: intPtr(2)},
			votes:     votes(models.VoteApprove, models.VoteAbstain),
			wantTotal: 1,
		},
		{
			name:           "needs more info counts toward quorum",
			app:            &models.Application{Status: models.StatusInDiscussion, VotesRequired: intPtr(2)},
			votes:          votes(models.VoteApprove, models.VoteNeedsMoreInfo),
			wantTotal:      2,
			wantSufficient: true,
		},
		{
			name:         "draft never has sufficient votes",
			app:          &models.Application{Status: models.StatusDraft, VotesRequired: intPtr(1)},
			votes:        votes(models.VoteApprove, models.VoteApprove),
			wantTotal:    2,
			wantApproved: true,
		},
		{
			name:      "no quorum snapshot",
			app:       &models.Application{Status: models.StatusDraft},
			votes:     votes(models.VoteApprove),
			wantTotal: 1,
		},
		{
			name:           "many approvals and one rejection",
			app:            &models.Application{Status: models.StatusUnderReview, VotesRequired: intPtr(3)},
			votes:          votes(models.VoteApprove, models.VoteApprove, models.VoteApprove, models.VoteReject),
			wantTotal:      4,
			wantSufficient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.app, tt.votes)
			assert.Equal(t, tt.wantTotal, s.TotalVotesCast)
			assert.Equal(t, tt.wantSufficient, s.HasSufficientVotes)
			assert.Equal(t, tt.wantApproved, s.IsApproved)
		})
	}
}

func TestVotingSummary_VotesOnAnApplicationAwaitingInformation(t *testing.T) {
	svc, st, _, appID := setup(t, models.StatusUnderReview, intPtr(1))
	ctx := context.Background()
	_, err := st.UpsertVote(ctx, &models.Vote{ApplicationID: appID, VoterID: "board-1", Decision: models.VoteApprove, Reasoning: "x", ConfidenceLevel: 3})
	require.NoError(t, err)

	app, err := st.GetApplication(ctx, appID)
	require.NoError(t, err)
	app.Status = models.StatusNeedsInformation
	require.NoError(t, st.UpdateApplication(ctx, app, models.StatusUnderReview, store.TransitionOptions{}))

	s, err := svc.VotingSummary(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalVotesCast)
	assert.False(t, s.HasSufficientVotes)
}

func TestVotingSummary_NotFound(t *testing.T) {
	svc, _, _, _ := setup(t, models.StatusUnderReview, intPtr(2))

	_, err := svc.VotingSummary(context.Background(), "missing")
	var re *apperrors.ReviewError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, apperrors.ErrCodeNotFound, re.Code)
}

// ==========================
// Casting votes
// ==========================

func TestCastVote_SecondVoteOverwrites(t *testing.T) {
	svc, _, _, appID := setup(t, models.StatusUnderReview, intPtr(3))
	ctx := context.Background()

	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 4)).Succeeded)
	second := vote(appID, "board-1", models.VoteReject, 2)
	second.Reasoning = "New information about the budget."
	require.True(t, svc.CastVote(ctx, second).Succeeded)

	votes, err := svc.ListVotes(ctx, appID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, models.VoteReject, votes[0].Decision)
	assert.Equal(t, "New information about the budget.", votes[0].Reasoning)
	assert.Equal(t, 2, votes[0].ConfidenceLevel)
	assert.NotNil(t, votes[0].ModifiedAt)
}

func TestCastVote_ConcurrentDuplicates(t *testing.T) {
	svc, _, _, appID := setup(t, models.StatusUnderReview, intPtr(3))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 1+i%5))
			assert.True(t, res.Succeeded, res.Errors)
		}(i)
	}
	wg.Wait()

	votes, err := svc.ListVotes(ctx, appID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestCastVote_Validation(t *testing.T) {
	svc, _, _, appID := setup(t, models.StatusUnderReview, intPtr(2))

	tests := []struct {
		name string
		in   CastVoteInput
		want []string
	}{
		{
			name: "empty reasoning",
			in:   CastVoteInput{ApplicationID: appID, VoterID: "board-1", Decision: models.VoteApprove, Reasoning: "   ", ConfidenceLevel: 3},
			want: []string{"reasoning: is required"},
		},
		{
			name: "short reasoning",
			in:   CastVoteInput{ApplicationID: appID, VoterID: "board-1", Decision: models.VoteApprove, Reasoning: "ok", ConfidenceLevel: 3},
			want: []string{"reasoning: must be at least 5 characters"},
		},
		{
			name: "confidence out of range",
			in:   CastVoteInput{ApplicationID: appID, VoterID: "board-1", Decision: models.VoteApprove, Reasoning: "Looks solid", ConfidenceLevel: 6},
			want: []string{"confidenceLevel: must be between 1 and 5"},
		},
		{
			name: "everything wrong",
			in:   CastVoteInput{ApplicationID: appID, VoterID: "board-1", Decision: "Maybe", ConfidenceLevel: 0},
			want: []string{
				`decision: unknown decision "Maybe"`,
				"reasoning: is required",
				"confidenceLevel: must be between 1 and 5",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.CastVote(context.Background(), tt.in)
			assert.False(t, res.Succeeded)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, res.Code)
			assert.Equal(t, tt.want, res.Errors)
		})
	}
}

func TestCastVote_NotReviewable(t *testing.T) {
	for _, status := range []models.ApplicationStatus{models.StatusDraft, models.StatusSubmitted, models.StatusApproved} {
		t.Run(string(status), func(t *testing.T) {
			svc, _, _, appID := setup(t, status, intPtr(2))
			res := svc.CastVote(context.Background(), vote(appID, "board-1", models.VoteApprove, 3))
			assert.False(t, res.Succeeded)
			assert.Equal(t, apperrors.ErrCodeInvalidState, res.Code)
			assert.Contains(t, res.Errors[0], "not open for voting")
		})
	}
}

func TestCastVote_LockedVote(t *testing.T) {
	svc, st, _, appID := setup(t, models.StatusUnderReview, intPtr(2))
	ctx := context.Background()
	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 4)).Succeeded)

	// lock votes without leaving the reviewable window
	app, err := st.GetApplication(ctx, appID)
	require.NoError(t, err)
	require.NoError(t, st.UpdateApplication(ctx, app, models.StatusUnderReview, store.TransitionOptions{LockVotes: true}))

	res := svc.CastVote(ctx, vote(appID, "board-1", models.VoteReject, 4))
	assert.False(t, res.Succeeded)
	assert.Equal(t, []string{"vote already finalized"}, res.Errors)
}

func TestCastVote_OnlyActiveBoardMembers(t *testing.T) {
	svc, _, _, appID := setup(t, models.StatusUnderReview, intPtr(2))

	for _, voter := range []string{"board-retired", "applicant-1", "nobody"} {
		res := svc.CastVote(context.Background(), vote(appID, voter, models.VoteApprove, 3))
		assert.Equal(t, apperrors.ErrCodeForbidden, res.Code, voter)
	}
}

func TestCastVote_QuorumNotifiedOnce(t *testing.T) {
	svc, _, n, appID := setup(t, models.StatusUnderReview, intPtr(2))
	ctx := context.Background()

	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteAbstain, 3)).Succeeded)
	require.True(t, svc.CastVote(ctx, vote(appID, "board-2", models.VoteApprove, 3)).Succeeded)
	assert.Equal(t, 0, n.count(models.NotificationVotesComplete))

	// switching from abstain to a real decision completes the quorum
	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteReject, 3)).Succeeded)
	assert.Equal(t, 1, n.count(models.NotificationVotesComplete))

	require.True(t, svc.CastVote(ctx, vote(appID, "board-3", models.VoteApprove, 3)).Succeeded)
	require.True(t, svc.CastVote(ctx, vote(appID, "board-2", models.VoteReject, 3)).Succeeded)
	assert.Equal(t, 1, n.count(models.NotificationVotesComplete))
}

func TestCastVote_QuorumNotRepeatedAfterAbstainFlip(t *testing.T) {
	svc, _, n, appID := setup(t, models.StatusUnderReview, intPtr(2))
	ctx := context.Background()

	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 3)).Succeeded)
	require.True(t, svc.CastVote(ctx, vote(appID, "board-2", models.VoteApprove, 3)).Succeeded)
	assert.Equal(t, 1, n.count(models.NotificationVotesComplete))

	require.True(t, svc.CastVote(ctx, vote(appID, "board-2", models.VoteAbstain, 3)).Succeeded)
	require.True(t, svc.CastVote(ctx, vote(appID, "board-2", models.VoteApprove, 3)).Succeeded)
	assert.Equal(t, 1, n.count(models.NotificationVotesComplete))
}

func TestCastVote_ConcurrentQuorumNotifiesOnce(t *testing.T) {
	svc, _, n, appID := setup(t, models.StatusUnderReview, intPtr(2))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, voter := range []string{"board-1", "board-2", "board-3"} {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			assert.True(t, svc.CastVote(ctx, vote(appID, voter, models.VoteApprove, 4)).Succeeded)
		}(voter)
	}
	wg.Wait()

	assert.Equal(t, 1, n.count(models.NotificationVotesComplete))
}

// decidingStore moves the application out of review between the service's
// status check and the vote write.
type decidingStore struct {
	*store.MemoryStore
}

func (d *decidingStore) UpsertVote(ctx context.Context, v *models.Vote) (*models.Vote, error) {
	app, err := d.GetApplication(ctx, v.ApplicationID)
	if err != nil {
		return nil, err
	}
	app.Status = models.StatusApproved
	if err := d.UpdateApplication(ctx, app, models.StatusUnderReview, store.TransitionOptions{LockVotes: true}); err != nil {
		return nil, err
	}
	return d.MemoryStore.UpsertVote(ctx, v)
}

func TestCastVote_DecisionBeforeWriteRejectsVote(t *testing.T) {
	_, st, n, appID := setup(t, models.StatusUnderReview, intPtr(2))
	svc := NewService(&decidingStore{MemoryStore: st}, n, Config{}, logger.NewNoOpLogger())
	ctx := context.Background()

	res := svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 4))
	assert.False(t, res.Succeeded)
	assert.Equal(t, apperrors.ErrCodeInvalidState, res.Code)

	votes, err := st.ListVotes(ctx, appID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestHasVoted(t *testing.T) {
	svc, _, _, appID := setup(t, models.StatusUnderReview, intPtr(2))
	ctx := context.Background()

	voted, err := svc.HasVoted(ctx, appID, "board-1")
	require.NoError(t, err)
	assert.False(t, voted)

	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteAbstain, 3)).Succeeded)
	voted, err = svc.HasVoted(ctx, appID, "board-1")
	require.NoError(t, err)
	assert.True(t, voted)
}

// conflictStore reports a unique violation on the first upsert.
type conflictStore struct {
	*store.MemoryStore
	calls int
}

func (c *conflictStore) UpsertVote(ctx context.Context, v *models.Vote) (*models.Vote, error) {
	c.calls++
	if c.calls == 1 {
		return nil, store.ErrConflict
	}
	return c.MemoryStore.UpsertVote(ctx, v)
}

func TestCastVote_RetriesUniqueViolation(t *testing.T) {
	_, st, n, appID := setup(t, models.StatusUnderReview, intPtr(2))
	cs := &conflictStore{MemoryStore: st}
	svc := NewService(cs, n, Config{}, logger.NewNoOpLogger())

	res := svc.CastVote(context.Background(), vote(appID, "board-1", models.VoteApprove, 4))
	require.True(t, res.Succeeded, res.Errors)
	assert.Equal(t, 2, cs.calls)
}

type recordingStats struct {
	voters [][]string
}

func (r *recordingStats) Invalidate(_ context.Context, voterIDs ...string) {
	r.voters = append(r.voters, voterIDs)
}

func TestCastVote_InvalidatesVoterStatistics(t *testing.T) {
	_, st, n, appID := setup(t, models.StatusUnderReview, intPtr(2))
	stats := &recordingStats{}
	svc := NewService(st, n, Config{}, logger.NewNoOpLogger(), WithStatistics(stats))
	ctx := context.Background()

	require.True(t, svc.CastVote(ctx, vote(appID, "board-1", models.VoteApprove, 4)).Succeeded)
	assert.False(t, svc.CastVote(ctx, vote(appID, "board-1", "Maybe", 4)).Succeeded)

	assert.Equal(t, [][]string{{"board-1"}}, stats.voters)
}
