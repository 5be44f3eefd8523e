// Package data implements the Postgres and Redis backed repositories.
package data

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotDeletable is returned when attempting to delete a job that is not in a deletable state.
	ErrJobNotDeletable = errors.New("job cannot be deleted (must be in pending, completed, or failed status)")
	// ErrJobReserved is returned when attempting to delete a job that has an active lease.
	ErrJobReserved = errors.New("job is reserved and cannot be deleted")
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
	// MaxAttempts overrides the per-queue attempt ceiling applied when a
	// create request does not set one.
	MaxAttempts map[model.Queue]int
}

// JobRepo provides database operations for job management.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
	maxAttempts  map[model.Queue]int
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = SystemTime{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
		maxAttempts:  cfg.MaxAttempts,
	}
}

// defaultMaxAttempts returns the per-queue attempt ceiling used when a create
// request does not override it.
func (r *JobRepo) defaultMaxAttempts(queue model.Queue) int {
	if override, ok := r.maxAttempts[queue]; ok && override > 0 {
		return override
	}
	if queue == model.QueuePDF {
		return 3
	}
	return 5
}

const jobColumns = `
  id,
  type,
  queue,
  status,
  payload,
  result,
  scheduled_at,
  started_at,
  completed_at,
  retry_count,
  max_retries,
  last_error,
  lease_expires_at,
  created_at,
  updated_at
`
