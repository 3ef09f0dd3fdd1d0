// internal/review/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"foundation-review/internal/models"

	"github.com/google/uuid"
)

type voteKey struct {
	applicationID string
	voterID       string
}

// MemoryStore keeps everything in process. A single RWMutex makes every
// method atomic, which is what the guards in UpdateApplication and
// UpsertVote rely on.
type MemoryStore struct {
	mu sync.RWMutex

	applications  map[string]*models.Application
	votes         map[voteKey]*models.Vote
	comments      map[string]*models.Comment
	notifications map[string]*models.Notification
	users         map[string]*models.User
	quorumClaimed map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		applications:  make(map[string]*models.Application),
		votes:         make(map[voteKey]*models.Vote),
		comments:      make(map[string]*models.Comment),
		notifications: make(map[string]*models.Notification),
		users:         make(map[string]*models.User),
		quorumClaimed: make(map[string]time.Time),
	}
}

// PutUser adds or replaces a directory entry.
func (s *MemoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
}

// ==========================
// Applications
// ==========================

func (s *MemoryStore) CreateApplication(_ context.Context, app *models.Application) error {
	if !app.Status.IsValid() {
		return fmt.Errorf("invalid status %q", app.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if _, exists := s.applications[app.ID]; exists {
		return fmt.Errorf("%w: application %s", ErrConflict, app.ID)
	}
	s.applications[app.ID] = app.Clone()
	return nil
}

func (s *MemoryStore) GetApplication(_ context.Context, id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, fmt.Errorf("%w: application %s", ErrNotFound, id)
	}
	return app.Clone(), nil
}

func (s *MemoryStore) ListApplicationsByApplicant(_ context.Context, applicantID string) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterApplications(func(a *models.Application) bool {
		return a.ApplicantID == applicantID
	}), nil
}

func (s *MemoryStore) ListApplicationsByStatus(_ context.Context, statuses ...models.ApplicationStatus) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[models.ApplicationStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return s.filterApplications(func(a *models.Application) bool {
		return len(want) == 0 || want[a.Status]
	}), nil
}

func (s *MemoryStore) filterApplications(keep func(*models.Application) bool) []*models.Application {
	out := make([]*models.Application, 0)
	for _, a := range s.applications {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) UpdateApplication(_ context.Context, app *models.Application, expected models.ApplicationStatus, opts TransitionOptions) error {
	if !app.Status.IsValid() {
		return fmt.Errorf("invalid status %q", app.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.applications[app.ID]
	if !ok {
		return fmt.Errorf("%w: application %s", ErrNotFound, app.ID)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: application %s is %s, expected %s", ErrStatusConflict, app.ID, current.Status, expected)
	}
	// votes_required is write-once
	next := app.Clone()
	if current.VotesRequired != nil {
		next.VotesRequired = models.CloneIntPtr(current.VotesRequired)
	}
	s.applications[app.ID] = next

	if opts.LockVotes {
		for k, v := range s.votes {
			if k.applicationID == app.ID {
				v.Locked = true
			}
		}
	}
	if opts.Comment != nil {
		if opts.Comment.ID == "" {
			opts.Comment.ID = uuid.NewString()
		}
		s.comments[opts.Comment.ID] = opts.Comment.Clone()
	}
	return nil
}

// ==========================
// Votes
// ==========================

func (s *MemoryStore) UpsertVote(_ context.Context, vote *models.Vote) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{vote.ApplicationID, vote.VoterID}
	existing, ok := s.votes[key]
	if ok && existing.Locked {
		return nil, fmt.Errorf("%w: voter %s on application %s", ErrVoteLocked, vote.VoterID, vote.ApplicationID)
	}
	if app, found := s.applications[vote.ApplicationID]; !found || !app.Status.IsReviewable() {
		return nil, fmt.Errorf("%w: application %s", ErrNotReviewable, vote.ApplicationID)
	}
	if ok {
		modified := vote.VotedAt
		existing.Decision = vote.Decision
		existing.Reasoning = vote.Reasoning
		existing.ConfidenceLevel = vote.ConfidenceLevel
		existing.ModifiedAt = &modified
		return existing.Clone(), nil
	}

	stored := vote.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Locked = false
	stored.ModifiedAt = nil
	s.votes[key] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) GetVote(_ context.Context, applicationID, voterID string) (*models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[voteKey{applicationID, voterID}]
	if !ok {
		return nil, fmt.Errorf("%w: vote by %s on %s", ErrNotFound, voterID, applicationID)
	}
	return v.Clone(), nil
}

func (s *MemoryStore) ListVotes(_ context.Context, applicationID string) ([]*models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.votesFor(applicationID), nil
}

func (s *MemoryStore) votesFor(applicationID string) []*models.Vote {
	out := make([]*models.Vote, 0)
	for k, v := range s.votes {
		if k.applicationID == applicationID {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VotedAt.Before(out[j].VotedAt) })
	return out
}

func (s *MemoryStore) ListVotesByVoter(_ context.Context, voterID string) ([]*models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Vote, 0)
	for k, v := range s.votes {
		if k.voterID == voterID {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VotedAt.Before(out[j].VotedAt) })
	return out, nil
}

func (s *MemoryStore) VotingSnapshot(_ context.Context, applicationID string) (*models.Application, []*models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[applicationID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
	}
	return app.Clone(), s.votesFor(applicationID), nil
}

func (s *MemoryStore) ClaimQuorumNotification(_ context.Context, applicationID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[applicationID]; !ok {
		return false, fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
	}
	if _, claimed := s.quorumClaimed[applicationID]; claimed {
		return false, nil
	}
	s.quorumClaimed[applicationID] = at
	return true, nil
}

// ==========================
// Comments
// ==========================

func (s *MemoryStore) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if comment.ParentCommentID != nil {
		parent, ok := s.comments[*comment.ParentCommentID]
		if !ok || parent.ApplicationID != comment.ApplicationID {
			return fmt.Errorf("%w: parent comment %s", ErrNotFound, *comment.ParentCommentID)
		}
		parent.HasResponse = true
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	s.comments[comment.ID] = comment.Clone()
	return nil
}

func (s *MemoryStore) GetComment(_ context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("%w: comment %s", ErrNotFound, id)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) UpdateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.comments[comment.ID]
	if !ok {
		return fmt.Errorf("%w: comment %s", ErrNotFound, comment.ID)
	}
	existing.Content = comment.Content
	existing.IsEdited = comment.IsEdited
	existing.IsDeleted = comment.IsDeleted
	existing.ModifiedAt = models.CloneTimePtr(comment.ModifiedAt)
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, applicationID string, includePrivate bool) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Comment, 0)
	for _, c := range s.comments {
		if c.ApplicationID != applicationID || c.IsDeleted {
			continue
		}
		if c.IsPrivate && !includePrivate {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ==========================
// Notifications
// ==========================

func (s *MemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	s.notifications[n.ID] = n.Clone()
	return nil
}

func (s *MemoryStore) MarkNotificationSent(_ context.Context, id string, emailSent bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	sentAt := at
	n.IsSent = true
	n.SentAt = &sentAt
	if emailSent {
		emailAt := at
		n.EmailSent = true
		n.EmailSentAt = &emailAt
	}
	return nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id, recipientID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if !n.IsRead {
		readAt := at
		n.IsRead = true
		n.ReadAt = &readAt
	}
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, recipientID string, unreadOnly bool, now time.Time) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Notification, 0)
	for _, n := range s.notifications {
		if n.RecipientID != recipientID || n.IsExpired(now) {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ==========================
// Users
// ==========================

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) ListUsersByRole(_ context.Context, role models.Role, activeOnly bool) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0)
	for _, u := range s.users {
		if u.Role != role || (activeOnly && !u.IsActive) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CountActiveBoardMembers(ctx context.Context) (int, error) {
	members, err := s.ListUsersByRole(ctx, models.RoleBoardMember, true)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

var _ Store = (*MemoryStore)(nil)
