package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/siqueira-campos/imoveis-jobs/config"
	"github.com/siqueira-campos/imoveis-jobs/internal/adapters/jobrunner"
	"github.com/siqueira-campos/imoveis-jobs/internal/adapters/mailapi"
	"github.com/siqueira-campos/imoveis-jobs/internal/adapters/specsheet"
	"github.com/siqueira-campos/imoveis-jobs/internal/cache"
	"github.com/siqueira-campos/imoveis-jobs/internal/core"
	"github.com/siqueira-campos/imoveis-jobs/internal/data"
	domainjob "github.com/siqueira-campos/imoveis-jobs/internal/domain/job"
	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
	"github.com/siqueira-campos/imoveis-jobs/internal/observability/statsd"
	"github.com/siqueira-campos/imoveis-jobs/internal/service"
)

// RuntimeDeps groups shared dependencies for service startup.
type RuntimeDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *redis.Client
	Logger      *slog.Logger
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink *statsd.Client
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{MetricsSink: metricsSink}
}

// BuildResultCache selects the cache backend from config.
func BuildResultCache(deps *RuntimeDeps) (core.ResultCache, error) {
	if deps.Config.Cache.Backend == config.CacheBackendRedis {
		if deps.RedisClient == nil {
			return nil, errors.New("redis cache backend selected but no redis client connected")
		}
		return data.NewRedisCacheRepo(deps.RedisClient), nil
	}
	return cache.NewLocal(), nil
}

// BuildMailTransport selects the mail transport from config. Dev mode without
// an API key falls back to a log-only transport.
func BuildMailTransport(cfg *config.AppConfig, logger *slog.Logger) (core.MailTransport, error) {
	if cfg.Mail.APIKey == "" {
		if !cfg.IsDev {
			return nil, errors.New("MAIL_API_KEY is required outside dev mode")
		}
		if logger != nil {
			logger.Warn("no mail api key configured; emails will be logged, not delivered")
		}
		return &mailapi.LogTransport{Logger: logger}, nil
	}

	return mailapi.NewClient(mailapi.Config{
		BaseURL:     cfg.Mail.BaseURL,
		APIKey:      cfg.Mail.APIKey,
		FromAddress: cfg.Mail.FromAddress,
		FromName:    cfg.Mail.FromName,
		Timeout:     cfg.Mail.Timeout,
	})
}

func buildRetryPolicies(cfg *config.AppConfig) (map[model.Queue]*domainjob.RetryPolicy, error) {
	emailPolicy, err := domainjob.NewRetryPolicy(cfg.EmailWorker.RetryBaseDelay)
	if err != nil {
		return nil, fmt.Errorf("email retry policy: %w", err)
	}
	pdfPolicy, err := domainjob.NewRetryPolicy(cfg.PDFWorker.RetryBaseDelay)
	if err != nil {
		return nil, fmt.Errorf("pdf retry policy: %w", err)
	}
	return map[model.Queue]*domainjob.RetryPolicy{
		model.QueueEmail: emailPolicy,
		model.QueuePDF:   pdfPolicy,
	}, nil
}

func buildJobRepo(deps *RuntimeDeps) *data.JobRepo {
	return data.NewJobRepo(deps.DB, data.RepoConfig{
		Logger: deps.Logger,
		MaxAttempts: map[model.Queue]int{
			model.QueueEmail: deps.Config.EmailWorker.MaxAttempts,
			model.QueuePDF:   deps.Config.PDFWorker.MaxAttempts,
		},
	})
}

// RunServices starts every enabled service and blocks until the context is
// cancelled or one of them fails.
func RunServices(ctx context.Context, deps *RuntimeDeps) error {
	if deps == nil || deps.Config == nil || deps.DB == nil {
		return errors.New("runtime dependencies are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := deps.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	observability := buildObservability(logger, deps.Config.Observability)
	defer closeMetricsSink(observability.MetricsSink, logger)

	resultCache, err := BuildResultCache(deps)
	if err != nil {
		return err
	}

	retryPolicies, err := buildRetryPolicies(deps.Config)
	if err != nil {
		return err
	}

	jobRepo := buildJobRepo(deps)

	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeEmailWorker] {
		runner, buildErr := buildEmailRunner(deps, jobRepo, resultCache, retryPolicies, observability, logger)
		if buildErr != nil {
			return fmt.Errorf("build email worker: %w", buildErr)
		}
		g.Go(func() error {
			return suppressCancellation(runner.Run(gctx))
		})
	}

	if enabled[config.ServiceModePDFWorker] {
		runner, buildErr := buildPDFRunner(deps, jobRepo, resultCache, retryPolicies, observability, logger)
		if buildErr != nil {
			return fmt.Errorf("build pdf worker: %w", buildErr)
		}
		g.Go(func() error {
			return suppressCancellation(runner.Run(gctx))
		})
	}

	if enabled[config.ServiceModeReaper] {
		reaper, buildErr := service.NewReaperService(service.ReaperServiceOptions{
			Repo:    jobRepo,
			Config:  deps.Config.Reaper,
			Logger:  logger,
			Metrics: observability.MetricsSink,
		})
		if buildErr != nil {
			return fmt.Errorf("build reaper: %w", buildErr)
		}
		g.Go(func() error {
			return suppressCancellation(reaper.Run(gctx))
		})
	}

	logger.InfoContext(ctx, "services started", "enabled", GetEnabledServices(deps.Config))

	return g.Wait()
}

func buildEmailRunner(
	deps *RuntimeDeps,
	jobRepo *data.JobRepo,
	resultCache core.ResultCache,
	retryPolicies map[model.Queue]*domainjob.RetryPolicy,
	observability ObservabilityContainer,
	logger *slog.Logger,
) (*jobrunner.Runner, error) {
	mail, err := BuildMailTransport(deps.Config, logger)
	if err != nil {
		return nil, err
	}

	return jobrunner.NewRunner(jobrunner.RunnerOptions{
		Logger:        logger,
		Queue:         model.QueueEmail,
		Lease:         deps.Config.EmailWorker.JobLease,
		Concurrency:   deps.Config.EmailWorker.Concurrency,
		Cache:         resultCache,
		CacheTTL:      deps.Config.Cache.ResultTTL,
		Mail:          mail,
		SiteURL:       deps.Config.Mail.SiteURL,
		JobsRepo:      jobRepo,
		RetryPolicies: retryPolicies,
		Metrics:       observability.MetricsSink,
	})
}

func buildPDFRunner(
	deps *RuntimeDeps,
	jobRepo *data.JobRepo,
	resultCache core.ResultCache,
	retryPolicies map[model.Queue]*domainjob.RetryPolicy,
	observability ObservabilityContainer,
	logger *slog.Logger,
) (*jobrunner.Runner, error) {
	renderer, err := specsheet.NewRenderer(specsheet.RendererOptions{
		OutputDir: deps.Config.Documents.OutputDir,
	})
	if err != nil {
		return nil, err
	}

	return jobrunner.NewRunner(jobrunner.RunnerOptions{
		Logger:        logger,
		Queue:         model.QueuePDF,
		Lease:         deps.Config.PDFWorker.JobLease,
		Concurrency:   deps.Config.PDFWorker.Concurrency,
		Cache:         resultCache,
		CacheTTL:      deps.Config.Cache.ResultTTL,
		Properties:    data.NewPropertyRepo(deps.DB, logger),
		Renderer:      renderer,
		JobsRepo:      jobRepo,
		RetryPolicies: retryPolicies,
		Metrics:       observability.MetricsSink,
	})
}

// suppressCancellation converts context cancellation into a clean exit so a
// signal-triggered shutdown does not surface as a service failure.
func suppressCancellation(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func closeMetricsSink(sink *statsd.Client, logger *slog.Logger) {
	if sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sink.Close(); err != nil && logger != nil {
		logger.WarnContext(ctx, "close statsd client", "error", err)
	}
}
