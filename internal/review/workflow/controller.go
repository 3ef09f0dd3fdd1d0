package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/common/metrics"
	"foundation-review/internal/common/observability"
	"foundation-review/internal/common/validation"
	"foundation-review/internal/models"
	"foundation-review/internal/review/notify"
	"foundation-review/internal/review/store"
)

// Store is the persistence the controller needs.
type Store interface {
	store.ApplicationStore
	GetUser(ctx context.Context, id string) (*models.User, error)
	CountActiveBoardMembers(ctx context.Context) (int, error)
}

// Notifier delivers notification requests. Delivery failures never fail a transition.
type Notifier interface {
	Send(ctx context.Context, req notify.Request) bool
	SendToRole(ctx context.Context, role models.Role, req notify.Request) int
}

// Indexer keeps the search projection current.
type Indexer interface {
	IndexApplication(ctx context.Context, app *models.Application) error
}

// StatsInvalidator drops cached statistics after a change.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, voterIDs ...string)
}

type Config struct {
	DefaultWithdrawReason string
	MinStatementLength    int
}

type Controller struct {
	store     Store
	notifier  Notifier
	indexer   Indexer
	stats     StatsInvalidator
	config    Config
	validator *validation.Validator
	logger    logger.Logger
	obs       *observability.Observability
	now       func() time.Time
}

type Option func(*Controller)

func WithIndexer(ix Indexer) Option {
	return func(c *Controller) { c.indexer = ix }
}

func WithStatistics(stats StatsInvalidator) Option {
	return func(c *Controller) { c.stats = stats }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithObservability(o *observability.Observability) Option {
	return func(c *Controller) { c.obs = o }
}

func NewController(st Store, notifier Notifier, cfg Config, log logger.Logger, opts ...Option) (*Controller, error) {
	if cfg.DefaultWithdrawReason == "" {
		cfg.DefaultWithdrawReason = "Withdrawn by applicant"
	}
	if cfg.MinStatementLength <= 0 {
		cfg.MinStatementLength = 50
	}
	v, err := validation.NewValidator(submissionSchema(cfg.MinStatementLength))
	if err != nil {
		return nil, fmt.Errorf("failed to compile submission schema: %w", err)
	}

	c := &Controller{
		store:     st,
		notifier:  notifier,
		config:    cfg,
		validator: v,
		logger:    log.WithFields(map[string]interface{}{"component": "workflow"}),
		obs:       observability.NewNoop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ==========================
// Lookups
// ==========================

// GetByID returns the application or a NOT_FOUND ReviewError.
func (c *Controller) GetByID(ctx context.Context, id string) (*models.Application, error) {
	app, err := c.store.GetApplication(ctx, id)
	if err != nil {
		return nil, c.lookupError(err, "application", id)
	}
	return app, nil
}

func (c *Controller) GetByApplicant(ctx context.Context, applicantID string) ([]*models.Application, error) {
	apps, err := c.store.ListApplicationsByApplicant(ctx, applicantID)
	if err != nil {
		return nil, c.lookupError(err, "application", applicantID)
	}
	return apps, nil
}

// GetByStatus returns applications in any of statuses, or all of them when none is given.
func (c *Controller) GetByStatus(ctx context.Context, statuses ...models.ApplicationStatus) ([]*models.Application, error) {
	for _, s := range statuses {
		if !s.IsValid() {
			return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", s))
		}
	}
	apps, err := c.store.ListApplicationsByStatus(ctx, statuses...)
	if err != nil {
		return nil, c.lookupError(err, "application", "")
	}
	return apps, nil
}

func (c *Controller) lookupError(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError(kind, id)
	}
	c.logger.Error("store lookup failed", map[string]interface{}{
		"error": err,
		"kind":  kind,
		"id":    id,
	})
	return apperrors.NewInternalError(err)
}

// ==========================
// Transition core
// ==========================

// step describes one guarded mutation of an application.
type step struct {
	transition Transition
	actorID    string
	// authorize runs against the stored record before the status check.
	authorize func(app *models.Application) *apperrors.ReviewError
	// apply mutates the copy that will be written.
	apply func(app *models.Application, now time.Time) *apperrors.ReviewError
	opts  func(app *models.Application, now time.Time) store.TransitionOptions
}

// run loads the authoritative record, checks the transition table, applies
// the mutation and writes it only if the stored status is unchanged.
func (c *Controller) run(ctx context.Context, applicationID string, s step) (app *models.Application, res apperrors.Result) {
	started := c.now()
	defer func() {
		metrics.TransitionsTotal.WithLabelValues(string(s.transition), metrics.Outcome(res.Succeeded)).Inc()
		c.obs.Track(ctx, string(s.transition), started, &res.Succeeded)
	}()

	current, err := c.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, apperrors.FromError(c.lookupError(err, "application", applicationID))
	}

	if s.authorize != nil {
		if rerr := s.authorize(current); rerr != nil {
			return nil, apperrors.FromError(rerr)
		}
	}

	target, rerr := Check(current.Status, s.transition)
	if rerr != nil {
		return nil, apperrors.FromError(rerr)
	}

	now := c.now()
	next := current.Clone()
	if s.apply != nil {
		if rerr := s.apply(next, now); rerr != nil {
			return nil, apperrors.FromError(rerr)
		}
	}
	next.Status = target
	next.ModifiedAt = &now

	var opts store.TransitionOptions
	if s.opts != nil {
		opts = s.opts(next, now)
	}

	if err := c.store.UpdateApplication(ctx, next, current.Status, opts); err != nil {
		return nil, apperrors.FromError(c.writeError(err, s.transition, applicationID))
	}

	c.logger.Info("application transitioned", map[string]interface{}{
		"applicationId": applicationID,
		"transition":    string(s.transition),
		"from":          string(current.Status),
		"to":            string(target),
		"actorId":       s.actorID,
	})
	c.reindex(ctx, next)
	if c.stats != nil {
		c.stats.Invalidate(ctx)
	}
	return next, apperrors.Succeed()
}

func (c *Controller) writeError(err error, t Transition, applicationID string) error {
	switch {
	case errors.Is(err, store.ErrStatusConflict):
		c.logger.Warn("lost transition race", map[string]interface{}{
			"applicationId": applicationID,
			"transition":    string(t),
		})
		if isDecision(t) {
			return apperrors.NewConcurrencyError("application already decided")
		}
		return apperrors.NewConcurrencyError("application status changed concurrently; reload and retry")
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewNotFoundError("application", applicationID)
	default:
		c.logger.Error("failed to persist transition", map[string]interface{}{
			"error":         err,
			"applicationId": applicationID,
			"transition":    string(t),
		})
		return apperrors.NewInternalError(err)
	}
}

func (c *Controller) reindex(ctx context.Context, app *models.Application) {
	if c.indexer == nil {
		return
	}
	if err := c.indexer.IndexApplication(ctx, app); err != nil {
		c.logger.Warn("search projection not updated", map[string]interface{}{
			"error":         apperrors.NewIndexFailedError(err),
			"applicationId": app.ID,
		})
	}
}

// ==========================
// Guards
// ==========================

func ownedBy(applicantID string) func(*models.Application) *apperrors.ReviewError {
	return func(app *models.Application) *apperrors.ReviewError {
		if app.ApplicantID != applicantID {
			return apperrors.NewForbiddenError("only the applicant may change this application")
		}
		return nil
	}
}

// requireRole checks the actor against the directory.
func (c *Controller) requireRole(ctx context.Context, actorID string, roles ...models.Role) *apperrors.ReviewError {
	user, err := c.store.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewForbiddenError("unknown actor")
		}
		c.logger.Error("failed to resolve actor", map[string]interface{}{
			"error":   err,
			"actorId": actorID,
		})
		return apperrors.NewInternalError(err)
	}
	if !user.IsActive {
		return apperrors.NewForbiddenError("actor is not active")
	}
	for _, r := range roles {
		if user.Role == r {
			return nil
		}
	}
	return apperrors.NewForbiddenError(fmt.Sprintf("requires role %s", joinRoles(roles)))
}

func joinRoles(roles []models.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, " or ")
}

// ==========================
// Notifications
// ==========================

func (c *Controller) notifyUser(ctx context.Context, recipientID string, t models.NotificationType, app *models.Application, data map[string]interface{}) {
	if recipientID == "" {
		return
	}
	title, msg := notify.Compose(t, withApplication(app, data))
	c.notifier.Send(ctx, notify.Request{
		RecipientID:   recipientID,
		Type:          t,
		Title:         title,
		Message:       msg,
		ApplicationID: app.ID,
	})
}

func (c *Controller) notifyRole(ctx context.Context, role models.Role, t models.NotificationType, app *models.Application, data map[string]interface{}, sms bool) {
	title, msg := notify.Compose(t, withApplication(app, data))
	c.notifier.SendToRole(ctx, role, notify.Request{
		Type:          t,
		Title:         title,
		Message:       msg,
		ApplicationID: app.ID,
		SMS:           sms,
	})
}

func withApplication(app *models.Application, data map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"applicationId": app.ID}
	for k, v := range data {
		out[k] = v
	}
	return out
}
