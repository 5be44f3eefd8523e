// Package service implements the business logic layer on top of the
// repository ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/core"
	domainjob "github.com/siqueira-campos/imoveis-jobs/internal/domain/job"
	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// Per-queue backoff base delays, matching the bull queue settings the
// platform ran on before.
const (
	DefaultEmailRetryBase = 60 * time.Second
	DefaultPDFRetryBase   = 30 * time.Second
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository                     // Required: job repository
	DefaultLease    time.Duration                          // Required: default lease duration for jobs
	Logger          *slog.Logger                           // Optional: structured logger
	LeasePolicy     *domainjob.LeasePolicy                 // Optional: override default lease policy
	RetryPolicies   map[model.Queue]*domainjob.RetryPolicy // Optional: override per-queue backoff
	Notifier        domainjob.Notifier                     // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions              // Optional: configure default notifier behaviour
}

// JobService is the business-logic layer over the job store: it creates and
// queries jobs, resolves lease durations through the lease policy, applies the
// per-queue backoff policy on failed attempts, and owns the notification
// listeners workers subscribe to.
type JobService struct {
	repo          core.JobRepository
	leasePolicy   *domainjob.LeasePolicy
	retryPolicies map[model.Queue]*domainjob.RetryPolicy
	notifier      domainjob.Notifier
	logger        *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	retryPolicies, err := resolveRetryPolicies(opts.RetryPolicies)
	if err != nil {
		return nil, err
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized",
			"default_lease", leasePolicy.Default(),
		)
	}

	return &JobService{
		repo:          opts.Repo,
		leasePolicy:   leasePolicy,
		retryPolicies: retryPolicies,
		notifier:      notifier,
		logger:        logger,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

func resolveRetryPolicies(overrides map[model.Queue]*domainjob.RetryPolicy) (map[model.Queue]*domainjob.RetryPolicy, error) {
	policies := make(map[model.Queue]*domainjob.RetryPolicy, 2)

	defaults := map[model.Queue]time.Duration{
		model.QueueEmail: DefaultEmailRetryBase,
		model.QueuePDF:   DefaultPDFRetryBase,
	}
	for queue, base := range defaults {
		if override, ok := overrides[queue]; ok && override != nil {
			policies[queue] = override
			continue
		}
		policy, err := domainjob.NewRetryPolicy(base)
		if err != nil {
			return nil, fmt.Errorf("create retry policy for queue %s: %w", queue, err)
		}
		policies[queue] = policy
	}

	return policies, nil
}

// RetryPolicy returns the backoff policy for a queue.
func (s *JobService) RetryPolicy(queue model.Queue) *domainjob.RetryPolicy {
	return s.retryPolicies[queue]
}

// Create creates a new job with the given request parameters.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job created",
			"id", job.ID, "type", job.Type, "status", job.Status)
	}

	return job, nil
}

// ReserveNext claims the next available job in the given queue for processing.
func (s *JobService) ReserveNext(
	ctx context.Context,
	queue model.Queue,
	lease time.Duration,
) (*model.Job, error) {
	decision := s.leasePolicy.Resolve(lease)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration to 1 second",
			"requested_duration", decision.Requested,
			"queue", queue)
	}

	job, err := s.repo.ReserveNext(ctx, queue, decision.Seconds)
	if err != nil {
		return nil, fmt.Errorf("reserve next job: %w", err)
	}

	if s.logger != nil && job != nil {
		s.logger.DebugContext(ctx, "job reserved",
			"id", job.ID, "queue", queue, "lease_seconds", decision.Seconds)
	}

	return job, nil
}

// Subscribe creates a subscription for job notifications on the given queue.
// Returns an unsubscribe function and a channel that receives notifications.
func (s *JobService) Subscribe(queue model.Queue) (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe(queue)
}

// WaitForNotification waits for a notification indicating new jobs are available.
func (s *JobService) WaitForNotification(ctx context.Context, queue model.Queue) error {
	return s.repo.WaitForNotification(ctx, queue)
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second heartbeat duration to 1 second",
			"requested_duration", decision.Requested,
			"job_id", id)
	}

	updated, err := s.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	if s.logger != nil && updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend_seconds", decision.Seconds)
	}

	return updated, nil
}

// Complete marks a job as completed successfully and stores its result.
func (s *JobService) Complete(ctx context.Context, id string, result []byte) (bool, error) {
	completed, err := s.repo.Complete(ctx, id, result)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}

	if s.logger != nil && completed {
		s.logger.DebugContext(ctx, "job completed", "id", id)
	}

	return completed, nil
}

// FailAttempt records a failed execution attempt for a job the caller holds
// a lease on. The queue's backoff policy decides whether and when the job
// retries; the store still enforces the attempt ceiling. Returns the updated
// job, or nil when the lease was already lost.
func (s *JobService) FailAttempt(ctx context.Context, job *model.Job, errMsg string) (*model.Job, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	if errMsg == "" {
		return nil, errors.New("error message required")
	}

	params := core.FailAttemptParams{
		ID:     job.ID,
		ErrMsg: errMsg,
	}

	failedAttempts := job.RetryCount + 1
	if policy := s.retryPolicies[job.Queue]; policy != nil {
		decision := policy.Decide(failedAttempts, job.MaxRetries)
		if !decision.GiveUp {
			delay := decision.Delay
			params.RetryDelay = &delay
		}
	}

	updated, err := s.repo.FailAttempt(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", job.ID, err)
	}

	if s.logger != nil && updated != nil {
		s.logger.DebugContext(ctx, "job attempt failed",
			"id", job.ID,
			"attempt", failedAttempts,
			"max_attempts", job.MaxRetries,
			"status", updated.Status,
			"error", errMsg,
		)
	}

	return updated, nil
}

// Stats returns statistics about jobs in the given queue in different states.
func (s *JobService) Stats(ctx context.Context, queue model.Queue) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("get job stats for queue %s: %w", queue, err)
	}
	return stats, nil
}

// GetStatus returns the status information for a specific job.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	return &model.JobStatusResponse{
		Status:      job.Status,
		CompletedAt: job.CompletedAt,
		Result:      job.Result,
		LastError:   job.LastError,
	}, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

// Delete removes a job. The store rejects deletion of jobs whose lease is
// still active, so a worker never loses a job out from under it.
func (s *JobService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("job id is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job deleted", "id", id)
	}

	return nil
}

// StopAllListeners shuts down the notification listeners. Called during
// graceful shutdown so no listener goroutines outlive the workers.
func (s *JobService) StopAllListeners() {
	if s.logger != nil {
		s.logger.Info("stopping all job listeners")
	}

	if s.notifier != nil {
		s.notifier.StopAll()
	}
}
