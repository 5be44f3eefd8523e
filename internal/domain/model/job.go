// Package model defines the core data types shared by the imoveis background
// job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the kind of background work a job carries.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

// Queue identifies the worker pool a job type belongs to. Claims and
// NOTIFY channels are scoped per queue.
type Queue string

const (
	// JobTypeEmailVerification sends the account verification email.
	JobTypeEmailVerification JobType = "email_verification"
	// JobTypeEmailWelcome sends the welcome email after signup.
	JobTypeEmailWelcome JobType = "email_welcome"
	// JobTypeEmailPasswordReset sends the password reset email.
	JobTypeEmailPasswordReset JobType = "email_password_reset"
	// JobTypeEmailVisitConfirmation sends the visit confirmation email.
	JobTypeEmailVisitConfirmation JobType = "email_visit_confirmation"
	// JobTypePDFSpecSheet generates the property spec sheet PDF (ficha técnica).
	JobTypePDFSpecSheet JobType = "pdf_spec_sheet"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job has been claimed by a worker.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job exhausted its attempts.
	JobStatusFailed JobStatus = "failed"

	// QueueEmail serves all transactional email job types.
	QueueEmail Queue = "email"
	// QueuePDF serves document generation job types.
	QueuePDF Queue = "pdf"
)

// ErrNoJobsAvailable is returned when no jobs are eligible for claiming.
var ErrNoJobsAvailable = errors.New("no jobs available")

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := JobType(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*t = v
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is known.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeEmailVerification,
		JobTypeEmailWelcome,
		JobTypeEmailPasswordReset,
		JobTypeEmailVisitConfirmation,
		JobTypePDFSpecSheet:
		return true
	default:
		return false
	}
}

// Queue returns the queue that serves this job type.
func (t JobType) Queue() Queue {
	if t == JobTypePDFSpecSheet {
		return QueuePDF
	}
	return QueueEmail
}

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning ||
		s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid returns true if the Queue is known.
func (q Queue) Valid() bool {
	return q == QueueEmail || q == QueuePDF
}

// UnmarshalText implements encoding.TextUnmarshaler for Queue to allow env parsing.
func (q *Queue) UnmarshalText(text []byte) error {
	v := Queue(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*q = v
		return nil
	}
	return fmt.Errorf("invalid Queue: %q", v)
}

// Job represents one unit of deferred work with its lifecycle bookkeeping.
//
// Type and Payload are immutable after creation; only worker lifecycle
// transitions mutate a job. LastError survives an eventual success so the
// retry history stays observable.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	Type           JobType         `json:"type"                       db:"type"`
	Queue          Queue           `json:"queue"                      db:"queue"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	Result         json.RawMessage `json:"result,omitempty"           db:"result"`
	ScheduledAt    time.Time       `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	RetryCount     int             `json:"retry_count"                db:"retry_count"`
	MaxRetries     int             `json:"max_retries"                db:"max_retries"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// CreateJobRequest represents a request to enqueue a new job.
type CreateJobRequest struct {
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	// MaxRetries overrides the queue default when positive.
	MaxRetries int `json:"max_retries,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if !json.Valid(r.Payload) {
		return errors.New("payload must be valid JSON")
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// JobStats represents counts of jobs per lifecycle state within one queue.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// JobStatusResponse represents the status information for a specific job.
type JobStatusResponse struct {
	Status      JobStatus       `json:"status"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	LastError   *string         `json:"last_error,omitempty"`
}
