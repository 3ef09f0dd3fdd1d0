// Package statistics derives foundation-wide and per-board-member review metrics.
package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	applicationStatsKey = "review:stats:applications"
	boardStatsKeyPrefix = "review:stats:board:"
)

// Store is the read-only view the aggregator queries.
type Store interface {
	ListApplicationsByStatus(ctx context.Context, statuses ...models.ApplicationStatus) ([]*models.Application, error)
	ListVotesByVoter(ctx context.Context, voterID string) ([]*models.Vote, error)
}

// Aggregator computes statistics from the store, reading through an optional
// Redis cache. A nil cache or a zero TTL disables caching.
type Aggregator struct {
	store  Store
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewAggregator(st Store, cache *redis.Client, ttl time.Duration, log logger.Logger) *Aggregator {
	return &Aggregator{
		store:  st,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "statistics"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *Aggregator) ApplicationStatistics(ctx context.Context) (*models.ApplicationStatistics, error) {
	var stats models.ApplicationStatistics
	if a.fromCache(ctx, applicationStatsKey, &stats) {
		return &stats, nil
	}

	apps, err := a.store.ListApplicationsByStatus(ctx)
	if err != nil {
		a.logger.Error("failed to load applications for statistics", map[string]interface{}{"error": err})
		return nil, apperrors.NewInternalError(err)
	}
	stats = ComputeApplicationStatistics(apps, a.now())
	a.toCache(ctx, applicationStatsKey, &stats)
	return &stats, nil
}

func (a *Aggregator) BoardMemberStatistics(ctx context.Context, voterID string) (*models.BoardMemberStatistics, error) {
	key := boardStatsKeyPrefix + voterID
	var stats models.BoardMemberStatistics
	if a.fromCache(ctx, key, &stats) {
		return &stats, nil
	}

	votes, err := a.store.ListVotesByVoter(ctx, voterID)
	if err != nil {
		a.logger.Error("failed to load votes for statistics", map[string]interface{}{"error": err, "voterId": voterID})
		return nil, apperrors.NewInternalError(err)
	}
	apps, err := a.store.ListApplicationsByStatus(ctx)
	if err != nil {
		a.logger.Error("failed to load applications for statistics", map[string]interface{}{"error": err, "voterId": voterID})
		return nil, apperrors.NewInternalError(err)
	}
	stats = ComputeBoardMemberStatistics(voterID, votes, apps)
	a.toCache(ctx, key, &stats)
	return &stats, nil
}

// Invalidate drops the cached foundation-wide statistics and the given voters'.
func (a *Aggregator) Invalidate(ctx context.Context, voterIDs ...string) {
	if a.cache == nil {
		return
	}
	keys := []string{applicationStatsKey}
	for _, id := range voterIDs {
		keys = append(keys, boardStatsKeyPrefix+id)
	}
	if err := a.cache.Del(ctx, keys...).Err(); err != nil {
		a.logger.Warn("failed to invalidate statistics cache", map[string]interface{}{"error": err})
	}
}

func (a *Aggregator) fromCache(ctx context.Context, key string, dst interface{}) bool {
	if a.cache == nil || a.ttl <= 0 {
		return false
	}
	val, err := a.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			a.logger.Warn("statistics cache read failed", map[string]interface{}{"error": err, "key": key})
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		a.logger.Warn("discarding corrupt statistics cache entry", map[string]interface{}{"error": err, "key": key})
		return false
	}
	return true
}

func (a *Aggregator) toCache(ctx context.Context, key string, v interface{}) {
	if a.cache == nil || a.ttl <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, a.ttl).Err(); err != nil {
		a.logger.Warn("statistics cache write failed", map[string]interface{}{"error": err, "key": key})
	}
}

// ComputeApplicationStatistics buckets applications by status. The approval
// rate compares final decisions, so programs that went on to Active or
// Completed still count as approvals.
func ComputeApplicationStatistics(apps []*models.Application, now time.Time) models.ApplicationStatistics {
	stats := models.ApplicationStatistics{Total: len(apps), GeneratedAt: now}

	var decidedApproved, decidedRejected, reviewedCount int
	var reviewDays float64

	for _, app := range apps {
		switch app.Status {
		case models.StatusSubmitted:
			stats.PendingReview++
		case models.StatusUnderReview, models.StatusInDiscussion:
			stats.UnderReview++
		case models.StatusNeedsInformation:
			stats.NeedsInformation++
		case models.StatusApproved:
			stats.Approved++
		case models.StatusRejected:
			stats.Rejected++
		case models.StatusActive:
			stats.Active++
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusWithdrawn:
			stats.Withdrawn++
		}

		switch app.FinalDecision {
		case models.DecisionApproved:
			decidedApproved++
		case models.DecisionRejected:
			decidedRejected++
		default:
			continue
		}
		if app.DecisionAt != nil && app.SubmittedAt != nil {
			reviewDays += app.DecisionAt.Sub(*app.SubmittedAt).Hours() / 24
			reviewedCount++
		}
	}

	if decided := decidedApproved + decidedRejected; decided > 0 {
		stats.ApprovalRate = float64(decidedApproved) / float64(decided)
	}
	if reviewedCount > 0 {
		stats.AverageReviewDays = reviewDays / float64(reviewedCount)
	}
	return stats
}

// ComputeBoardMemberStatistics counts every vote, abstentions included. The
// participation denominator is the number of applications whose review started.
func ComputeBoardMemberStatistics(voterID string, votes []*models.Vote, apps []*models.Application) models.BoardMemberStatistics {
	stats := models.BoardMemberStatistics{VoterID: voterID}

	confidence := 0
	for _, v := range votes {
		stats.TotalVotesCast++
		confidence += v.ConfidenceLevel
		switch v.Decision {
		case models.VoteApprove:
			stats.ApprovalsGiven++
		case models.VoteReject:
			stats.RejectionsGiven++
		case models.VoteNeedsMoreInfo:
			stats.NeedsMoreInfoGiven++
		case models.VoteAbstain:
			stats.AbstentionsGiven++
		}
	}
	if stats.TotalVotesCast > 0 {
		stats.AverageConfidenceLevel = float64(confidence) / float64(stats.TotalVotesCast)
	}

	reviewed := 0
	for _, app := range apps {
		if app.ReviewStartedAt != nil {
			reviewed++
		}
	}
	if reviewed > 0 {
		stats.ParticipationRate = float64(stats.TotalVotesCast) / float64(reviewed)
	}
	return stats
}
