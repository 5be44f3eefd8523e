package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/config"
	"github.com/siqueira-campos/imoveis-jobs/internal/core"
	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
	obserrors "github.com/siqueira-campos/imoveis-jobs/internal/observability/errors"
	"github.com/siqueira-campos/imoveis-jobs/internal/observability/metrics"
	"github.com/siqueira-campos/imoveis-jobs/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required: reaper repository
	Config  config.ReaperConfig   // Required: reaper configuration
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// ReaperService keeps the jobs table healthy: it returns jobs whose worker
// died mid-lease to pending, fails pending jobs nobody ever claimed, and
// deletes terminal jobs past their retention window.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
			"completed_max_age", opts.Config.CompletedMaxAge,
			"failed_max_age", opts.Config.FailedMaxAge,
		)
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run performs a cleanup pass on the configured interval until the context is
// cancelled. Returns nil on graceful shutdown.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Random startup delay so multiple instances don't hammer the table in
	// lockstep.
	s.waitWithJitter(ctx)

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			// A failed pass is logged and retried next tick; the reaper
			// never gives up on transient database trouble.
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps a random duration up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// No jitter beats no startup.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// stepResult records the outcome of one cleanup step for metrics and error
// aggregation.
type stepResult struct {
	name  string
	count int64
	err   error
}

// runCleanup runs every cleanup step, even when earlier ones fail, and
// aggregates their errors. When every failure is a context cancellation the
// aggregate collapses to context.Canceled.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()

	results := []stepResult{
		s.step(ctx, "requeue_expired", func(ctx context.Context) (int64, error) {
			return s.repo.RequeueExpiredLeases(ctx, s.config.BatchSize)
		}),
		s.step(ctx, "fail_pending", func(ctx context.Context) (int64, error) {
			return s.repo.FailStalePendingJobs(ctx, s.config.PendingMaxAge, s.config.BatchSize)
		}),
		s.step(ctx, "delete_completed", s.deleteOldJobs(model.JobStatusCompleted, s.config.CompletedMaxAge)),
		s.step(ctx, "delete_failed", s.deleteOldJobs(model.JobStatusFailed, s.config.FailedMaxAge)),
	}

	s.emitCleanupMetrics(results, time.Since(start))

	var errs []error
	allCanceled := true
	for _, res := range results {
		if res.err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		allCanceled = allCanceled && isContextCancellation(res.err)
	}
	if len(errs) == 0 {
		return nil
	}
	if allCanceled {
		return context.Canceled
	}
	return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
}

// step drains one cleanup operation in batches until it reports no more work.
func (s *ReaperService) step(ctx context.Context, name string, op func(context.Context) (int64, error)) stepResult {
	res := stepResult{name: name}
	for {
		count, err := op(ctx)
		res.count += count
		if err != nil {
			res.err = err
			return res
		}
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			res.err = ctx.Err()
			return res
		}
	}

	if res.count > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "cleanup step processed jobs", "step", name, "count", res.count)
	}
	return res
}

func (s *ReaperService) deleteOldJobs(status model.JobStatus, maxAge time.Duration) func(context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		return s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    status,
			MaxAge:    maxAge,
			BatchSize: s.config.BatchSize,
		})
	}
}

func (s *ReaperService) emitCleanupMetrics(results []stepResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var total int64
	var firstErr error
	for _, res := range results {
		total += res.count
		if firstErr == nil {
			firstErr = suppressContextCancellation(res.err)
		}
	}

	tags := map[string]string{"result": cleanupResult(total, firstErr)}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, res := range results {
		err := suppressContextCancellation(res.err)
		opTags := map[string]string{
			"operation": res.name,
			"result":    cleanupResult(res.count, err),
		}
		if err != nil {
			if class := obserrors.Classify(err); class != "" {
				opTags["error_class"] = class
			}
		}
		s.metrics.Count("reaper.cleanup_operation", 1, opTags)
		if err == nil && res.count > 0 {
			s.metrics.Count("reaper.jobs_processed", res.count, metrics.CloneTags(opTags))
		}
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func cleanupResult(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
