// Package comments manages threaded discussion on applications.
package comments

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/models"
	"foundation-review/internal/review/notify"
	"foundation-review/internal/review/store"
)

type Store interface {
	store.CommentStore
	GetApplication(ctx context.Context, id string) (*models.Application, error)
}

type Notifier interface {
	Send(ctx context.Context, req notify.Request) bool
}

type Service struct {
	store    Store
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time
}

func NewService(st Store, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "comments"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type AddCommentInput struct {
	ApplicationID        string
	AuthorID             string
	Content              string
	IsPrivate            bool
	IsInformationRequest bool
	// ParentCommentID is empty for a top-level comment.
	ParentCommentID string
}

func (s *Service) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, apperrors.Result) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperrors.FromError(apperrors.NewValidationError("content", "is required"))
	}

	app, err := s.store.GetApplication(ctx, in.ApplicationID)
	if err != nil {
		return nil, apperrors.FromError(s.storeError(err, "application", in.ApplicationID))
	}

	var parent *models.Comment
	if in.ParentCommentID != "" {
		parent, err = s.store.GetComment(ctx, in.ParentCommentID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.FromError(s.storeError(err, "comment", in.ParentCommentID))
		}
		if parent == nil || parent.ApplicationID != in.ApplicationID || parent.IsDeleted {
			return nil, apperrors.FromError(apperrors.NewNotFoundError("parent comment", in.ParentCommentID))
		}
	}

	comment := &models.Comment{
		ApplicationID:        in.ApplicationID,
		AuthorID:             in.AuthorID,
		Content:              content,
		IsPrivate:            in.IsPrivate,
		IsInformationRequest: in.IsInformationRequest,
		CreatedAt:            s.now(),
	}
	if parent != nil {
		parentID := parent.ID
		comment.ParentCommentID = &parentID
	}

	if err := s.store.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.FromError(apperrors.NewNotFoundError("parent comment", in.ParentCommentID))
		}
		return nil, apperrors.FromError(s.storeError(err, "comment", in.ApplicationID))
	}

	s.notifyParticipants(ctx, app, parent, comment)
	return comment, apperrors.Succeed()
}

func (s *Service) notifyParticipants(ctx context.Context, app *models.Application, parent, c *models.Comment) {
	notified := map[string]bool{c.AuthorID: true}
	visibleTo := func(userID string) bool {
		return !c.IsPrivate || userID != app.ApplicantID
	}

	if parent != nil && !notified[parent.AuthorID] && visibleTo(parent.AuthorID) {
		s.send(ctx, parent.AuthorID, models.NotificationCommentReply, app.ID)
		notified[parent.AuthorID] = true
	}
	if !c.IsPrivate && !notified[app.ApplicantID] {
		s.send(ctx, app.ApplicantID, models.NotificationCommentAdded, app.ID)
	}
}

func (s *Service) send(ctx context.Context, recipientID string, t models.NotificationType, applicationID string) {
	title, msg := notify.Compose(t, map[string]interface{}{"applicationId": applicationID})
	s.notifier.Send(ctx, notify.Request{
		RecipientID:   recipientID,
		Type:          t,
		Title:         title,
		Message:       msg,
		ApplicationID: applicationID,
	})
}

// UpdateComment lets the original author change the content.
func (s *Service) UpdateComment(ctx context.Context, commentID, authorID, content string) apperrors.Result {
	content = strings.TrimSpace(content)
	if content == "" {
		return apperrors.FromError(apperrors.NewValidationError("content", "is required"))
	}
	return s.modify(ctx, commentID, authorID, "only the author may edit this comment", func(c *models.Comment) {
		c.Content = content
		c.IsEdited = true
	})
}

// DeleteComment hides the comment; it is never removed from the store.
func (s *Service) DeleteComment(ctx context.Context, commentID, authorID string) apperrors.Result {
	return s.modify(ctx, commentID, authorID, "only the author may delete this comment", func(c *models.Comment) {
		c.IsDeleted = true
	})
}

func (s *Service) modify(ctx context.Context, commentID, authorID, forbidden string, change func(*models.Comment)) apperrors.Result {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return apperrors.FromError(s.storeError(err, "comment", commentID))
	}
	if c.IsDeleted {
		return apperrors.FromError(apperrors.NewNotFoundError("comment", commentID))
	}
	if c.AuthorID != authorID {
		return apperrors.FromError(apperrors.NewForbiddenError(forbidden))
	}

	change(c)
	now := s.now()
	c.ModifiedAt = &now
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return apperrors.FromError(s.storeError(err, "comment", commentID))
	}
	return apperrors.Succeed()
}

// ListComments excludes deleted comments, and private ones unless includePrivate.
func (s *Service) ListComments(ctx context.Context, applicationID string, includePrivate bool) ([]*models.Comment, error) {
	list, err := s.store.ListComments(ctx, applicationID, includePrivate)
	if err != nil {
		return nil, s.storeError(err, "comment", applicationID)
	}
	return list, nil
}

func (s *Service) storeError(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError(kind, id)
	}
	s.logger.Error("comment store call failed", map[string]interface{}{
		"error": err,
		"kind":  kind,
		"id":    id,
	})
	return apperrors.NewInternalError(err)
}
