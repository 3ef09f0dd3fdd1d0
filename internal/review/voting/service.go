package voting

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
	"foundation-review/internal/models"
	"foundation-review/internal/review/notify"
	"foundation-review/internal/review/store"
)

type Store interface {
	store.VoteStore
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Notifier interface {
	SendToRole(ctx context.Context, role models.Role, req notify.Request) int
}

// StatsInvalidator drops cached statistics after a vote.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, voterIDs ...string)
}

type Config struct {
	MinReasoningLength int
}

type Service struct {
	store    Store
	notifier Notifier
	stats    StatsInvalidator
	config   Config
	logger   logger.Logger
	obs      *observability.Observability
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func WithStatistics(stats StatsInvalidator) Option {
	return func(s *Service) { s.stats = stats }
}

func NewService(st Store, notifier Notifier, cfg Config, log logger.Logger, opts ...Option) *Service {
	if cfg.MinReasoningLength <= 0 {
		cfg.MinReasoningLength = 1
	}
	s := &Service{
		store:    st,
		notifier: notifier,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "voting"}),
		obs:      observability.NewNoop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CastVoteInput struct {
	ApplicationID   string
	VoterID         string
	Decision        models.VoteDecision
	Reasoning       string
	ConfidenceLevel int
}

func (s *Service) validate(in CastVoteInput) []*apperrors.ReviewError {
	var errs []*apperrors.ReviewError
	if !in.Decision.IsValid() {
		errs = append(errs, apperrors.NewValidationError("decision", fmt.Sprintf("unknown decision %q", in.Decision)))
	}
	reasoning := strings.TrimSpace(in.Reasoning)
	switch {
	case reasoning == "":
		errs = append(errs, apperrors.NewValidationError("reasoning", "is required"))
	case len([]rune(reasoning)) < s.config.MinReasoningLength:
		errs = append(errs, apperrors.NewValidationError("reasoning",
			fmt.Sprintf("must be at least %d characters", s.config.MinReasoningLength)))
	}
	if in.ConfidenceLevel < 1 || in.ConfidenceLevel > 5 {
		errs = append(errs, apperrors.NewValidationError("confidenceLevel", "must be between 1 and 5"))
	}
	return errs
}

// CastVote creates or overwrites the voter's vote while the application is
// reviewable and the vote is not locked.
func (s *Service) CastVote(ctx context.Context, in CastVoteInput) (res apperrors.Result) {
	started := s.now()
	defer func() { s.obs.Track(ctx, "cast_vote", started, &res.Succeeded) }()

	if errs := s.validate(in); len(errs) > 0 {
		return apperrors.FromValidation(errs)
	}
	if rerr := s.requireBoardMember(ctx, in.VoterID); rerr != nil {
		return apperrors.FromError(rerr)
	}

	app, err := s.store.GetApplication(ctx, in.ApplicationID)
	if err != nil {
		return apperrors.FromError(s.storeError(err, "application", in.ApplicationID))
	}
	if !app.Status.IsReviewable() {
		return apperrors.FromError(apperrors.NewStateError(
			fmt.Sprintf("application is not open for voting (current status: %s)", app.Status)))
	}

	previous, err := s.store.GetVote(ctx, in.ApplicationID, in.VoterID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperrors.FromError(s.storeError(err, "vote", in.ApplicationID))
	}
	if previous != nil && previous.Locked {
		return apperrors.FromError(apperrors.NewStateError("vote already finalized"))
	}

	vote := &models.Vote{
		ApplicationID:   in.ApplicationID,
		VoterID:         in.VoterID,
		Decision:        in.Decision,
		Reasoning:       strings.TrimSpace(in.Reasoning),
		ConfidenceLevel: in.ConfidenceLevel,
		VotedAt:         s.now(),
	}
	stored, err := s.store.UpsertVote(ctx, vote)
	if errors.Is(err, store.ErrConflict) {
		// a concurrent first vote by the same voter won the insert; overwrite it
		stored, err = s.store.UpsertVote(ctx, vote)
	}
	switch {
	case errors.Is(err, store.ErrVoteLocked):
		return apperrors.FromError(apperrors.NewStateError("vote already finalized"))
	case errors.Is(err, store.ErrNotReviewable):
		return apperrors.FromError(apperrors.NewStateError("application is not open for voting"))
	case err != nil:
		return apperrors.FromError(s.storeError(err, "vote", in.ApplicationID))
	}

	metrics.VotesCast.WithLabelValues(string(stored.Decision)).Inc()
	s.logger.Info("vote recorded", map[string]interface{}{
		"applicationId": in.ApplicationID,
		"voterId":       in.VoterID,
		"decision":      string(stored.Decision),
		"updated":       stored.ModifiedAt != nil,
	})
	if s.stats != nil {
		s.stats.Invalidate(ctx, in.VoterID)
	}

	countedBefore := previous != nil && previous.Decision != models.VoteAbstain
	if !countedBefore && stored.Decision != models.VoteAbstain {
		s.notifyIfQuorumReached(ctx, in.ApplicationID)
	}
	return apperrors.Succeed()
}

// notifyIfQuorumReached tells admins when the vote just cast completed the
// quorum. The store's quorum marker lets only one caller send it.
func (s *Service) notifyIfQuorumReached(ctx context.Context, applicationID string) {
	summary, err := s.summary(ctx, applicationID)
	if err != nil {
		s.logger.Warn("quorum check skipped", map[string]interface{}{
			"error":         err,
			"applicationId": applicationID,
		})
		return
	}
	if !summary.HasSufficientVotes {
		return
	}
	claimed, err := s.store.ClaimQuorumNotification(ctx, applicationID, s.now())
	if err != nil {
		s.logger.Warn("quorum notification claim failed", map[string]interface{}{
			"error":         err,
			"applicationId": applicationID,
		})
		return
	}
	if !claimed {
		return
	}
	title, msg := notify.Compose(models.NotificationVotesComplete, map[string]interface{}{
		"applicationId":  applicationID,
		"totalVotesCast": summary.TotalVotesCast,
		"votesRequired":  summary.VotesRequired,
		"approvalVotes":  summary.ApprovalVotes,
		"rejectionVotes": summary.RejectionVotes,
	})
	s.notifier.SendToRole(ctx, models.RoleAdmin, notify.Request{
		Type:          models.NotificationVotesComplete,
		Title:         title,
		Message:       msg,
		ApplicationID: applicationID,
	})
}

// VotingSummary is advisory; it never triggers a transition.
func (s *Service) VotingSummary(ctx context.Context, applicationID string) (*models.VotingSummary, error) {
	summary, err := s.summary(ctx, applicationID)
	if err != nil {
		return nil, s.storeError(err, "application", applicationID)
	}
	return summary, nil
}

func (s *Service) summary(ctx context.Context, applicationID string) (*models.VotingSummary, error) {
	app, votes, err := s.store.VotingSnapshot(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	summary := Summarize(app, votes)
	return &summary, nil
}

func (s *Service) HasVoted(ctx context.Context, applicationID, voterID string) (bool, error) {
	_, err := s.store.GetVote(ctx, applicationID, voterID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, s.storeError(err, "vote", applicationID)
	}
}

func (s *Service) ListVotes(ctx context.Context, applicationID string) ([]*models.Vote, error) {
	votes, err := s.store.ListVotes(ctx, applicationID)
	if err != nil {
		return nil, s.storeError(err, "vote", applicationID)
	}
	return votes, nil
}

func (s *Service) requireBoardMember(ctx context.Context, voterID string) *apperrors.ReviewError {
	user, err := s.store.GetUser(ctx, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewForbiddenError("only active board members may vote")
		}
		s.logger.Error("failed to resolve voter", map[string]interface{}{"error": err, "voterId": voterID})
		return apperrors.NewInternalError(err)
	}
	if user.Role != models.RoleBoardMember || !user.IsActive {
		return apperrors.NewForbiddenError("only active board members may vote")
	}
	return nil
}

func (s *Service) storeError(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError(kind, id)
	}
	s.logger.Error("voting store call failed", map[string]interface{}{
		"error": err,
		"kind":  kind,
		"id":    id,
	})
	return apperrors.NewInternalError(err)
}
