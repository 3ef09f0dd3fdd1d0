// cmd/review-worker/services.go
package main

import (
	"context"
	"fmt"
	"time"

	awsclients "foundation-review/internal/common/aws"
	"foundation-review/internal/common/config"
	"foundation-review/internal/common/database"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/common/observability"
	"foundation-review/internal/review/comments"
	"foundation-review/internal/review/notify"
	"foundation-review/internal/review/search"
	"foundation-review/internal/review/statistics"
	"foundation-review/internal/review/store"
	"foundation-review/internal/review/voting"
	"foundation-review/internal/review/workflow"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// services is the wired review core shared by every command.
type services struct {
	cfg    *config.Config
	zap    *zap.Logger
	log    logger.Logger
	obs    *observability.Observability
	pg     *database.PostgresClient
	redis  *database.RedisClient
	store  *store.PostgresStore
	search *search.Indexer

	dispatcher *notify.Dispatcher
	controller *workflow.Controller
	voting     *voting.Service
	comments   *comments.Service
	stats      *statistics.Aggregator
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func buildServices(ctx context.Context, c *cli.Context) (*services, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)
	s := &services{cfg: cfg, zap: zapLog, log: log, obs: observability.New(cfg.App.Name)}

	s.pg, err = database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.pg.Ping(ctx); err != nil {
		return nil, s.fail(fmt.Errorf("postgres unreachable: %w", err))
	}
	s.store = store.NewPostgresStore(s.pg.DB)

	if cfg.Database.Redis.Address != "" {
		s.redis = database.NewRedis(cfg.Database.Redis)
		if err := s.redis.Ping(ctx); err != nil {
			// statistics fall back to computing from the store
			log.Warn("redis unavailable, statistics cache disabled", map[string]interface{}{"error": err})
			_ = s.redis.Close()
			s.redis = nil
		}
	}

	if cfg.Search.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, s.fail(err)
		}
		s.search = search.NewIndexer(es.Client, cfg.Database.Elasticsearch.Index, log)
	}

	if err := s.buildNotifications(ctx); err != nil {
		return nil, s.fail(err)
	}

	if s.redis != nil {
		s.stats = statistics.NewAggregator(s.store, s.redis.Client, cfg.Review.StatisticsCacheTTL(), log)
	} else {
		s.stats = statistics.NewAggregator(s.store, nil, 0, log)
	}

	opts := []workflow.Option{workflow.WithObservability(s.obs), workflow.WithStatistics(s.stats)}
	if s.search != nil {
		opts = append(opts, workflow.WithIndexer(s.search))
	}
	s.controller, err = workflow.NewController(s.store, s.dispatcher, workflow.Config{
		DefaultWithdrawReason: cfg.Review.DefaultWithdrawReason,
		MinStatementLength:    cfg.Review.MinStatementLength,
	}, log, opts...)
	if err != nil {
		return nil, s.fail(err)
	}

	s.voting = voting.NewService(s.store, s.dispatcher, voting.Config{
		MinReasoningLength: cfg.Review.MinReasoningLength,
	}, log, voting.WithObservability(s.obs), voting.WithStatistics(s.stats))
	s.comments = comments.NewService(s.store, s.dispatcher, log)

	return s, nil
}

func (s *services) buildNotifications(ctx context.Context) error {
	cfg := s.cfg.Notifications
	var (
		sesClient notify.SESService
		snsClient notify.SNSService
	)
	if cfg.Email.Enabled {
		c, err := awsclients.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return fmt.Errorf("failed to create SES client: %w", err)
		}
		sesClient = c
	}
	if cfg.SMS.Enabled {
		c, err := awsclients.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return fmt.Errorf("failed to create SNS client: %w", err)
		}
		snsClient = c
	}

	s.dispatcher = notify.NewDispatcher(&notify.Config{
		EmailEnabled: cfg.Email.Enabled,
		FromEmail:    cfg.Email.FromEmail,
		SMSEnabled:   cfg.SMS.Enabled,
		BaseURL:      s.cfg.Review.BaseURL,
		TTL:          time.Duration(s.cfg.Review.NotificationTTLDays) * 24 * time.Hour,
	}, s.store, sesClient, snsClient, s.log)
	return nil
}

// fail releases whatever was opened before err and returns err.
func (s *services) fail(err error) error {
	s.Close()
	return err
}

func (s *services) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.obs.Shutdown(ctx)
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pg != nil {
		_ = s.pg.Close()
	}
	_ = s.zap.Sync()
}
