package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// ErrJobFailed is returned by JobHandle.Await when the job exhausted its
// attempts. The returned status carries the last error message.
var ErrJobFailed = errors.New("job failed")

const defaultAwaitPollInterval = 500 * time.Millisecond

// jobCreator is the slice of JobService the submitter needs.
type jobCreator interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error)
}

// SubmitterOptions groups dependencies for Submitter.
type SubmitterOptions struct {
	Jobs         jobCreator    // Required: job service
	Logger       *slog.Logger  // Optional: structured logger
	PollInterval time.Duration // Optional: Await poll interval
}

// Submitter is the producer-side API. Callers enqueue work and get back a
// handle they can fire-and-forget or await.
type Submitter struct {
	jobs         jobCreator
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewSubmitter constructs a new Submitter.
func NewSubmitter(opts SubmitterOptions) (*Submitter, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job service is required")
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultAwaitPollInterval
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "submitter")
	}

	return &Submitter{
		jobs:         opts.Jobs,
		logger:       logger,
		pollInterval: pollInterval,
	}, nil
}

// MustNewSubmitter constructs a new Submitter and panics on error.
func MustNewSubmitter(opts SubmitterOptions) *Submitter {
	s, err := NewSubmitter(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create Submitter: %v", err))
	}
	return s
}

// Submit enqueues a job and returns a handle for it. The job is durable once
// Submit returns; the caller may drop the handle.
func (s *Submitter) Submit(ctx context.Context, req *model.CreateJobRequest) (*JobHandle, error) {
	job, err := s.jobs.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job submitted",
			"id", job.ID,
			"type", job.Type,
			"queue", job.Queue,
		)
	}

	return &JobHandle{
		jobID:        job.ID,
		jobs:         s.jobs,
		pollInterval: s.pollInterval,
	}, nil
}

// SubmitEmail enqueues an email job of the given type.
func (s *Submitter) SubmitEmail(
	ctx context.Context,
	jobType model.JobType,
	payload *model.EmailPayload,
) (*JobHandle, error) {
	if jobType.Queue() != model.QueueEmail {
		return nil, fmt.Errorf("job type %s is not an email type", jobType)
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, &model.CreateJobRequest{Type: jobType, Payload: raw})
}

// SubmitSpecSheet enqueues a spec sheet generation job for a property.
func (s *Submitter) SubmitSpecSheet(ctx context.Context, propertyID string) (*JobHandle, error) {
	raw, err := marshalPayload(&model.SpecSheetPayload{PropertyID: propertyID})
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, &model.CreateJobRequest{Type: model.JobTypePDFSpecSheet, Payload: raw})
}

// JobHandle references a submitted job. Status reads go through the store,
// so the handle stays valid across worker restarts.
type JobHandle struct {
	jobID        string
	jobs         jobCreator
	pollInterval time.Duration
}

// ID returns the job id.
func (h *JobHandle) ID() string {
	return h.jobID
}

// Status returns the current status of the job.
func (h *JobHandle) Status(ctx context.Context) (*model.JobStatusResponse, error) {
	return h.jobs.GetStatus(ctx, h.jobID)
}

// Await blocks until the job reaches a terminal state or ctx is done.
// On completion it returns the stored status with the result; when the job
// failed it returns the status together with ErrJobFailed.
func (h *JobHandle) Await(ctx context.Context) (*model.JobStatusResponse, error) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		status, err := h.jobs.GetStatus(ctx, h.jobID)
		if err != nil {
			return nil, fmt.Errorf("await job %s: %w", h.jobID, err)
		}

		if status.Status.Terminal() {
			if status.Status == model.JobStatusFailed {
				if status.LastError != nil {
					return status, fmt.Errorf("%w: %s", ErrJobFailed, *status.LastError)
				}
				return status, ErrJobFailed
			}
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func marshalPayload(v interface{ Validate() error }) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}
