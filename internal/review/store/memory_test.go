package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"foundation-review/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedApplication(t *testing.T, s *MemoryStore, status models.ApplicationStatus) *models.Application {
	t.Helper()
	app := &models.Application{
		ApplicantID: "applicant-1",
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.CreateApplication(context.Background(), app))
	return app
}

func TestMemoryStore_CreateApplicationRejectsUnknownStatus(t *testing.T) {
	s := NewMemoryStore()
	err := s.CreateApplication(context.Background(), &models.Application{Status: "Pending"})
	assert.Error(t, err)
}

func TestMemoryStore_GetApplicationNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetApplication(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusDraft)

	got, err := s.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	got.Status = models.StatusApproved

	again, err := s.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, again.Status)
}

func TestMemoryStore_UpdateApplicationGuardsStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusUnderReview)

	approved := app.Clone()
	approved.Status = models.StatusApproved
	require.NoError(t, s.UpdateApplication(ctx, approved, models.StatusUnderReview, TransitionOptions{}))

	rejected := app.Clone()
	rejected.Status = models.StatusRejected
	err := s.UpdateApplication(ctx, rejected, models.StatusUnderReview, TransitionOptions{})
	assert.True(t, errors.Is(err, ErrStatusConflict))

	stored, _ := s.GetApplication(ctx, app.ID)
	assert.Equal(t, models.StatusApproved, stored.Status)
}

func TestMemoryStore_VotesRequiredIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusSubmitted)

	first := app.Clone()
	first.Status = models.StatusUnderReview
	three := 3
	first.VotesRequired = &three
	require.NoError(t, s.UpdateApplication(ctx, first, models.StatusSubmitted, TransitionOptions{}))

	second := first.Clone()
	five := 5
	second.VotesRequired = &five
	require.NoError(t, s.UpdateApplication(ctx, second, models.StatusUnderReview, TransitionOptions{}))

	stored, _ := s.GetApplication(ctx, app.ID)
	require.NotNil(t, stored.VotesRequired)
	assert.Equal(t, 3, *stored.VotesRequired)
}

func TestMemoryStore_UpsertVoteKeepsOneRowPerVoter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusUnderReview)

	first, err := s.UpsertVote(ctx, &models.Vote{
		ApplicationID: app.ID, VoterID: "board-1", Decision: models.VoteApprove,
		Reasoning: "strong case", ConfidenceLevel: 4, VotedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Nil(t, first.ModifiedAt)

	second, err := s.UpsertVote(ctx, &models.Vote{
		ApplicationID: app.ID, VoterID: "board-1", Decision: models.VoteReject,
		Reasoning: "changed my mind", ConfidenceLevel: 2, VotedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.NotNil(t, second.ModifiedAt)

	votes, err := s.ListVotes(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, models.VoteReject, votes[0].Decision)
	assert.Equal(t, "changed my mind", votes[0].Reasoning)
}

func TestMemoryStore_ConcurrentUpsertCreatesSingleVote(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusUnderReview)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpsertVote(ctx, &models.Vote{
				ApplicationID: app.ID, VoterID: "board-1", Decision: models.VoteApprove,
				Reasoning: fmt.Sprintf("attempt %d", i), ConfidenceLevel: 3, VotedAt: time.Now(),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	votes, err := s.ListVotes(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestMemoryStore_LockedVoteRejectsUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusUnderReview)

	_, err := s.UpsertVote(ctx, &models.Vote{
		ApplicationID: app.ID, VoterID: "board-1", Decision: models.VoteApprove,
		Reasoning: "fine", ConfidenceLevel: 3, VotedAt: time.Now(),
	})
	require.NoError(t, err)

	decided := app.Clone()
	decided.Status = models.StatusApproved
	require.NoError(t, s.UpdateApplication(ctx, decided, models.StatusUnderReview, TransitionOptions{LockVotes: true}))

	_, err = s.UpsertVote(ctx, &models.Vote{
		ApplicationID: app.ID, VoterID: "board-1", Decision: models.VoteReject,
		Reasoning: "too late", ConfidenceLevel: 3, VotedAt: time.Now(),
	})
	assert.True(t, errors.Is(err, ErrVoteLocked))

	v, err := s.GetVote(ctx, app.ID, "board-1")
	require.NoError(t, err)
	assert.True(t, v.Locked)
	assert.Equal(t, models.VoteApprove, v.Decision)
}

func TestMemoryStore_UpsertVoteRequiresReviewableApplication(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, status := range []models.ApplicationStatus{models.StatusSubmitted, models.StatusNeedsInformation, models.StatusApproved} {
		app := seedApplication(t, s, status)
		_, err := s.UpsertVote(ctx, &models.Vote{
			ApplicationID: app.ID, VoterID: "board-1", Decision: models.VoteApprove,
			Reasoning: "fine", ConfidenceLevel: 3, VotedAt: time.Now(),
		})
		assert.True(t, errors.Is(err, ErrNotReviewable), "status %s: got %v", status, err)

		votes, err := s.ListVotes(ctx, app.ID)
		require.NoError(t, err)
		assert.Empty(t, votes)
	}

	_, err := s.UpsertVote(ctx, &models.Vote{ApplicationID: "missing", VoterID: "board-1", Decision: models.VoteApprove})
	assert.True(t, errors.Is(err, ErrNotReviewable))
}

func TestMemoryStore_ClaimQuorumNotificationOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusUnderReview)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.ClaimQuorumNotification(ctx, app.ID, time.Now())
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	_, err := s.ClaimQuorumNotification(ctx, "missing", time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_CommentsThreadAndVisibility(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	app := seedApplication(t, s, models.StatusUnderReview)
	now := time.Now()

	parent := &models.Comment{ApplicationID: app.ID, AuthorID: "board-1", Content: "public question", CreatedAt: now}
	require.NoError(t, s.CreateComment(ctx, parent))
	private := &models.Comment{ApplicationID: app.ID, AuthorID: "board-2", Content: "board only", IsPrivate: true, CreatedAt: now.Add(time.Second)}
	require.NoError(t, s.CreateComment(ctx, private))

	reply := &models.Comment{ApplicationID: app.ID, AuthorID: "applicant-1", Content: "answer", ParentCommentID: &parent.ID, CreatedAt: now.Add(2 * time.Second)}
	require.NoError(t, s.CreateComment(ctx, reply))

	storedParent, err := s.GetComment(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, storedParent.HasResponse)

	public, err := s.ListComments(ctx, app.ID, false)
	require.NoError(t, err)
	assert.Len(t, public, 2)
	for _, c := range public {
		assert.False(t, c.IsPrivate)
	}

	all, err := s.ListComments(ctx, app.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	orphan := "nope"
	err = s.CreateComment(ctx, &models.Comment{ApplicationID: app.ID, AuthorID: "x", Content: "y", ParentCommentID: &orphan})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_NotificationsHideExpiredAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	past := now.Add(-time.Hour)

	live := &models.Notification{RecipientID: "u1", Type: models.NotificationApproved, Title: "t", Message: "m", CreatedAt: now}
	expired := &models.Notification{RecipientID: "u1", Type: models.NotificationRejected, Title: "t", Message: "m", CreatedAt: now, ExpiresAt: &past}
	require.NoError(t, s.CreateNotification(ctx, live))
	require.NoError(t, s.CreateNotification(ctx, expired))

	list, err := s.ListNotifications(ctx, "u1", false, now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)

	require.NoError(t, s.MarkNotificationRead(ctx, live.ID, "u1", now))
	unread, err := s.ListNotifications(ctx, "u1", true, now)
	require.NoError(t, err)
	assert.Empty(t, unread)

	err = s.MarkNotificationRead(ctx, live.ID, "someone-else", now)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_CountActiveBoardMembers(t *testing.T) {
	s := NewMemoryStore()
	s.PutUser(models.User{ID: "b1", Role: models.RoleBoardMember, IsActive: true})
	s.PutUser(models.User{ID: "b2", Role: models.RoleBoardMember, IsActive: false})
	s.PutUser(models.User{ID: "a1", Role: models.RoleAdmin, IsActive: true})

	n, err := s.CountActiveBoardMembers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
