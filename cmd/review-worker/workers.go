// cmd/review-worker/workers.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foundation-review/internal/common/camunda"
	"foundation-review/internal/common/config"

	castvote "foundation-review/internal/workers/review/cast-vote"
	evaluatevotes "foundation-review/internal/workers/review/evaluate-votes"
	recorddecision "foundation-review/internal/workers/review/record-decision"
	startreview "foundation-review/internal/workers/review/start-review"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var workersCommand = &cli.Command{
	Name:   "workers",
	Usage:  "Subscribe the review job workers to the Zeebe broker",
	Action: runWorkers,
}

func runWorkers(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildServices(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := config.ValidateForWorkers(s.cfg); err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.EnsureIndex(ctx); err != nil {
			s.log.Warn("search index not ready", map[string]interface{}{"error": err})
		}
	}

	zc, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         s.cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(s.cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		return err
	}
	defer zc.Close()
	s.log.Info("Zeebe client connected", map[string]interface{}{"gateway": s.cfg.Camunda.BrokerAddress})

	srCfg := startreview.LoadConfig()
	srCfg.Timeout, srCfg.Retry = jobSettings(s.cfg, startreview.TaskType)
	cvCfg := castvote.LoadConfig()
	cvCfg.Timeout, cvCfg.Retry = jobSettings(s.cfg, castvote.TaskType)
	evCfg := evaluatevotes.LoadConfig()
	evCfg.Timeout, evCfg.Retry = jobSettings(s.cfg, evaluatevotes.TaskType)
	rdCfg := recorddecision.LoadConfig()
	rdCfg.Timeout, rdCfg.Retry = jobSettings(s.cfg, recorddecision.TaskType)

	handlers := map[string]camunda.JobHandler{
		startreview.TaskType:    startreview.NewHandler(srCfg, s.controller, s.log),
		castvote.TaskType:       castvote.NewHandler(cvCfg, s.voting, s.log),
		evaluatevotes.TaskType:  evaluatevotes.NewHandler(evCfg, s.voting, s.log),
		recorddecision.TaskType: recorddecision.NewHandler(rdCfg, s.controller, s.log),
	}

	var running []*camunda.Worker
	for taskType, handler := range handlers {
		if !config.IsWorkerEnabled(s.cfg, taskType) {
			s.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
			continue
		}
		wcfg := config.GetWorkerConfig(s.cfg, taskType)
		running = append(running, camunda.NewWorker(zc.GetClient(), taskType, handler, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, s.log))
	}
	s.log.Info("review workers running", map[string]interface{}{"count": len(running)})

	var srv *http.Server
	if s.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: s.cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("metrics server failed", map[string]interface{}{"error": err})
			}
		}()
	}

	<-ctx.Done()
	s.log.Info("shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range running {
		w.Stop(shutdownCtx)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}
	return nil
}

// jobSettings derives a handler's timeout and completion retry budget from
// the worker's config entry.
func jobSettings(cfg *config.Config, taskType string) (time.Duration, *camunda.RetryConfig) {
	wcfg := config.GetWorkerConfig(cfg, taskType)
	retry := *camunda.DefaultRetryConfig
	retry.MaxRetries = wcfg.MaxRetries
	return config.GetDuration(wcfg.Timeout), &retry
}
