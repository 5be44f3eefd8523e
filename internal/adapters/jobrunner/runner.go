// Package jobrunner provides job execution and worker management for the
// background queues.
package jobrunner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/core"
	"github.com/siqueira-campos/imoveis-jobs/internal/data"
	domainjob "github.com/siqueira-campos/imoveis-jobs/internal/domain/job"
	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
	apperrors "github.com/siqueira-campos/imoveis-jobs/internal/errors"
	"github.com/siqueira-campos/imoveis-jobs/internal/observability/metrics"
	"github.com/siqueira-campos/imoveis-jobs/internal/observability/statsd"
	"github.com/siqueira-campos/imoveis-jobs/internal/service"
)

// HandlerFunc processes a job and returns the result to store on completion.
// A returned error marks the attempt failed; the retry policy decides what
// happens next.
type HandlerFunc func(ctx context.Context, job *model.Job) (json.RawMessage, error)

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Job processing settings
	Queue       model.Queue   // which queue to process; required
	Lease       time.Duration // per-job lease duration; defaults to 30s
	Concurrency int           // number of worker goroutines; defaults to 1

	// Result memoization
	Cache    core.ResultCache // optional; skips handler execution on hit
	CacheTTL time.Duration

	// Handler collaborators
	Mail       core.MailTransport      // required for the email queue
	SiteURL    string                  // public web app URL used in email links
	Properties core.PropertyRepository // required for the pdf queue
	Renderer   core.DocumentRenderer   // required for the pdf queue

	// ReserveRetryDelay is the pause after a failed claim attempt before the
	// worker tries again; defaults to 2s. Claim failures are treated as
	// transient store trouble, not as fatal.
	ReserveRetryDelay time.Duration

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo      core.JobRepository
	Jobs          *service.JobService
	RetryPolicies map[model.Queue]*domainjob.RetryPolicy
	Metrics       statsd.Sink
}

// Runner pulls jobs from one queue and executes them using registered handlers.
type Runner struct {
	jobs         *service.JobService
	cache        core.ResultCache
	cacheTTL     time.Duration
	mail         core.MailTransport
	siteURL      string
	properties   core.PropertyRepository
	renderer     core.DocumentRenderer
	logger       *slog.Logger
	lease        time.Duration
	reserveRetry time.Duration
	queue        model.Queue
	workers      int
	handlers     map[model.JobType]HandlerFunc
	metrics      statsd.Sink
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner wires repositories/services and constructs a job runner for a single queue.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil && opts.Jobs == nil {
		return nil, errors.New("either DB, JobsRepo, or Jobs must be provided")
	}
	if !opts.Queue.Valid() {
		return nil, fmt.Errorf("invalid queue: %q", opts.Queue)
	}

	logger := resolveLogger(opts.Logger)

	lease := opts.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	reserveRetry := opts.ReserveRetryDelay
	if reserveRetry <= 0 {
		reserveRetry = 2 * time.Second
	}

	jobSvc := opts.Jobs
	if jobSvc == nil {
		jobsRepo := opts.JobsRepo
		if jobsRepo == nil {
			jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: logger})
		}
		var err error
		jobSvc, err = service.NewJobService(service.JobServiceOptions{
			Repo:          jobsRepo,
			DefaultLease:  lease,
			Logger:        logger,
			RetryPolicies: opts.RetryPolicies,
		})
		if err != nil {
			return nil, fmt.Errorf("create job service: %w", err)
		}
	}

	r := &Runner{
		jobs:         jobSvc,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		mail:         opts.Mail,
		siteURL:      strings.TrimRight(opts.SiteURL, "/"),
		properties:   opts.Properties,
		renderer:     opts.Renderer,
		logger:       logger,
		lease:        lease,
		reserveRetry: reserveRetry,
		queue:        opts.Queue,
		workers:      workers,
		handlers:     make(map[model.JobType]HandlerFunc),
		metrics:      opts.Metrics,
	}

	if err := r.registerHandlers(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) registerHandlers() error {
	switch r.queue {
	case model.QueueEmail:
		if r.mail == nil {
			return errors.New("mail transport is required for the email queue")
		}
		r.handlers[model.JobTypeEmailVerification] = r.handleEmailJob
		r.handlers[model.JobTypeEmailWelcome] = r.handleEmailJob
		r.handlers[model.JobTypeEmailPasswordReset] = r.handleEmailJob
		r.handlers[model.JobTypeEmailVisitConfirmation] = r.handleEmailJob
	case model.QueuePDF:
		if r.properties == nil || r.renderer == nil {
			return errors.New("property repository and document renderer are required for the pdf queue")
		}
		r.handlers[model.JobTypePDFSpecSheet] = r.handleSpecSheetJob
	}
	return nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "queue", r.queue, "workers", r.workers, "lease", r.lease)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe for notifications for the queue we process
	unsub, ch := r.jobs.Subscribe(r.queue)
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.queue, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		case ctx.Err() != nil:
			// The claim failed because we are shutting down.
			return nil
		default:
			// Store trouble (connection loss, failover) is transient: the
			// worker stays alive and tries again after a pause instead of
			// taking the whole runner down.
			r.logger.ErrorContext(ctx, "reserve next failed; retrying",
				"queue", r.queue, "retry_in", r.reserveRetry, "error", err)
			if !r.pause(ctx, r.reserveRetry) {
				return nil
			}
		}
	}
	return ctx.Err()
}

func (r *Runner) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Queue:      string(job.Queue),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	h, ok := r.handlers[job.Type]
	if !ok {
		err := fmt.Errorf("no handler for job type %s", job.Type)
		r.failAttempt(ctx, job, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	cacheKey := r.cacheKey(job)

	if result, hit := r.cacheLookup(ctx, cacheKey); hit {
		r.complete(ctx, job, result)
		r.logger.InfoContext(ctx, "job served from cache", "job_id", job.ID, "cache_key", cacheKey)
		emit("completed", metrics.ResultCached, nil)
		return
	}

	stopHeartbeat := r.startHeartbeat(ctx, job.ID)
	result, err := r.runHandler(ctx, h, job)
	stopHeartbeat()

	if err != nil {
		r.failAttempt(ctx, job, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	r.cacheStore(ctx, cacheKey, result)
	if r.complete(ctx, job, result) {
		emit("completed", metrics.ResultSuccess, nil)
	} else {
		emit("completed", metrics.ResultNoop, nil)
	}
}

// runHandler isolates handler panics so one bad job cannot take down the worker.
func (r *Runner) runHandler(ctx context.Context, h HandlerFunc, job *model.Job) (result json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
			r.logger.ErrorContext(ctx, "job handler panicked",
				"job_id", job.ID,
				"type", job.Type,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	return h(ctx, job)
}

// startHeartbeat extends the lease at half the lease interval while a handler
// runs. Returns a stop function.
func (r *Runner) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := r.lease / 2
	if interval < time.Second {
		return func() {}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if ok, err := r.jobs.Heartbeat(hbCtx, jobID, r.lease); err != nil {
					r.logger.WarnContext(hbCtx, "heartbeat error", "job_id", jobID, "error", err)
				} else if !ok {
					// Lease already lost; the store will hand the job to
					// another worker.
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) cacheKey(job *model.Job) string {
	key, err := domainjob.CacheKey(job.Type, job.Payload)
	if err != nil {
		r.logger.WarnContext(context.Background(), "derive cache key", "job_id", job.ID, "error", err)
		return ""
	}
	return key
}

func (r *Runner) cacheLookup(ctx context.Context, key string) (json.RawMessage, bool) {
	if r.cache == nil || key == "" {
		return nil, false
	}
	value, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble never fails a job; fall through to the handler.
		r.logger.WarnContext(ctx, "cache get failed", "cache_key", key, "error", err)
		return nil, false
	}
	return value, ok
}

func (r *Runner) cacheStore(ctx context.Context, key string, result json.RawMessage) {
	if r.cache == nil || key == "" || len(result) == 0 {
		return
	}
	if _, err := r.cache.SetNX(ctx, key, result, r.cacheTTL); err != nil {
		r.logger.WarnContext(ctx, "cache set failed", "cache_key", key, "error", err)
	}
}

func (r *Runner) complete(ctx context.Context, job *model.Job, result json.RawMessage) bool {
	completed, err := r.jobs.Complete(ctx, job.ID, result)
	if err != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", err)
		return false
	}
	if !completed {
		r.logger.WarnContext(ctx, "job no longer running at completion; lease lost", "job_id", job.ID)
	}
	return completed
}

func (r *Runner) failAttempt(ctx context.Context, job *model.Job, cause error) {
	updated, err := r.jobs.FailAttempt(ctx, job, cause.Error())
	if err != nil {
		r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", err, "original_error", cause)
		return
	}
	if updated == nil {
		r.logger.WarnContext(ctx, "job no longer running at failure; lease lost", "job_id", job.ID)
		return
	}
	attrs := []any{
		"job_id", job.ID,
		"type", job.Type,
		"attempt", updated.RetryCount,
		"max_attempts", updated.MaxRetries,
		"status", updated.Status,
		"error", cause,
	}
	if code := apperrors.GetCode(cause); code != "" {
		attrs = append(attrs, "error_code", string(code))
	}
	r.logger.InfoContext(ctx, "job attempt failed", attrs...)
}
