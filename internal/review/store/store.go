// Package store persists applications, votes, comments and notifications.
package store

import (
	"context"
	"errors"
	"time"

	"foundation-review/internal/models"
)

var (
	ErrNotFound = errors.New("NOT_FOUND")
	// ErrStatusConflict means the stored status no longer matches the expected one.
	ErrStatusConflict = errors.New("STATUS_CONFLICT")
	ErrVoteLocked     = errors.New("VOTE_LOCKED")
	// ErrNotReviewable means the application no longer accepts votes.
	ErrNotReviewable = errors.New("NOT_REVIEWABLE")
	// ErrConflict is a unique-key violation that the caller may resolve.
	ErrConflict = errors.New("UNIQUE_CONFLICT")
)

// TransitionOptions carries side writes committed with a status change.
type TransitionOptions struct {
	LockVotes bool
	Comment   *models.Comment
}

type ApplicationStore interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID string) ([]*models.Application, error)
	// ListApplicationsByStatus returns every application when no status is given.
	ListApplicationsByStatus(ctx context.Context, statuses ...models.ApplicationStatus) ([]*models.Application, error)
	// UpdateApplication writes app only if the stored status still equals
	// expected, otherwise ErrStatusConflict.
	UpdateApplication(ctx context.Context, app *models.Application, expected models.ApplicationStatus, opts TransitionOptions) error
}

type VoteStore interface {
	// UpsertVote inserts or overwrites the (application, voter) vote while the
	// application is reviewable and the vote is not locked.
	UpsertVote(ctx context.Context, vote *models.Vote) (*models.Vote, error)
	GetVote(ctx context.Context, applicationID, voterID string) (*models.Vote, error)
	ListVotes(ctx context.Context, applicationID string) ([]*models.Vote, error)
	ListVotesByVoter(ctx context.Context, voterID string) ([]*models.Vote, error)
	// VotingSnapshot reads the application and its votes as one consistent view.
	VotingSnapshot(ctx context.Context, applicationID string) (*models.Application, []*models.Vote, error)
	// ClaimQuorumNotification sets the application's quorum marker and
	// reports whether this call was the one that set it.
	ClaimQuorumNotification(ctx context.Context, applicationID string, at time.Time) (bool, error)
}

type CommentStore interface {
	// CreateComment also flags the parent as answered when ParentCommentID is set.
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	UpdateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, applicationID string, includePrivate bool) ([]*models.Comment, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	MarkNotificationSent(ctx context.Context, id string, emailSent bool, at time.Time) error
	MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, now time.Time) ([]*models.Notification, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role, activeOnly bool) ([]*models.User, error)
	CountActiveBoardMembers(ctx context.Context) (int, error)
}

// Store is everything the review core persists through.
type Store interface {
	ApplicationStore
	VoteStore
	CommentStore
	NotificationStore
	UserDirectory
}
