// Package core defines the ports between the service layer and its adapters.
package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// FailAttemptParams groups the inputs to JobRepository.FailAttempt.
type FailAttemptParams struct {
	ID     string
	ErrMsg string
	// RetryDelay schedules the next attempt. Nil means retry immediately if
	// attempts remain; the store still enforces the attempt ceiling either way.
	RetryDelay *time.Duration
}

// JobRepository is the durable job store: creation, atomic claiming, lease
// renewal, terminal transitions, and queue statistics.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, queue model.Queue, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, queue model.Queue) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string, result []byte) (bool, error)
	FailAttempt(ctx context.Context, params FailAttemptParams) (*model.Job, error)
	Stats(ctx context.Context, queue model.Queue) (*model.JobStats, error)
	Delete(ctx context.Context, id string) error
}

// JobRepositoryTx is implemented by stores that can enqueue inside a
// caller-owned transaction.
type JobRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error)
}

// ResultCache memoizes job results keyed on business identity. SetNX performs
// an atomic set-if-absent so concurrent workers agree on a single value.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// PropertyRepository reads property listings for spec sheet rendering.
// Listing lifecycle is owned by the web application; this service only reads.
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*model.Property, error)
}

// MailTransport delivers a rendered email. Implementations wrap the external
// mail provider; the worker never talks to the provider directly.
type MailTransport interface {
	Send(ctx context.Context, msg *model.OutboundEmail) (*model.EmailResult, error)
}

// DocumentRenderer produces the spec sheet PDF for a property and returns the
// stored file path.
type DocumentRenderer interface {
	RenderSpecSheet(ctx context.Context, property *model.Property) (string, error)
}

// DeleteOldJobsParams groups the inputs to ReaperRepository.DeleteOldJobs.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository covers the periodic table maintenance: recovering lapsed
// leases, failing jobs nobody claimed, and deleting terminal jobs past their
// retention window. Every method works in batches of at most batchSize rows
// and reports how many it touched.
type ReaperRepository interface {
	RequeueExpiredLeases(ctx context.Context, batchSize int) (int64, error)
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}
