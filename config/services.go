package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeEmailWorker runs the email queue worker.
	ServiceModeEmailWorker ServiceMode = "email-worker"
	// ServiceModePDFWorker runs the spec sheet PDF queue worker.
	ServiceModePDFWorker ServiceMode = "pdf-worker"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeEmailWorker,
		ServiceModePDFWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses the comma-delimited SERVICES value into the set of
// enabled services, rejecting unknown names.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	valid := make(map[ServiceMode]bool, 3)
	for _, mode := range ValidServiceModes() {
		valid[mode] = true
	}

	services := make(map[ServiceMode]bool)
	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		if !valid[mode] {
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: email-worker, pdf-worker, reaper)", name)
		}
		services[mode] = true
	}

	if len(services) == 0 {
		return nil, errors.New("at least one service must be specified")
	}
	return services, nil
}

// EmailWorkerConfig contains email worker service configuration.
type EmailWorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"EMAIL_WORKER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease an email job.
	JobLease time.Duration `env:"EMAIL_WORKER_JOB_LEASE" envDefault:"30s"`

	// RetryBaseDelay is the base backoff delay; the delay doubles with each
	// failed attempt.
	RetryBaseDelay time.Duration `env:"EMAIL_WORKER_RETRY_BASE_DELAY" envDefault:"60s"`

	// MaxAttempts is the default attempt ceiling for email jobs.
	MaxAttempts int `env:"EMAIL_WORKER_MAX_ATTEMPTS" envDefault:"5"`
}

// Sanitize applies guardrails to email worker configuration values.
func (c *EmailWorkerConfig) Sanitize() {
	sanitizeWorker(&c.Concurrency, &c.JobLease, &c.RetryBaseDelay, &c.MaxAttempts)
}

// PDFWorkerConfig contains PDF worker service configuration.
type PDFWorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"PDF_WORKER_CONCURRENCY" envDefault:"1"`

	// JobLease is the duration to lease a PDF job. Rendering can take longer
	// than email delivery, so the default lease is wider.
	JobLease time.Duration `env:"PDF_WORKER_JOB_LEASE" envDefault:"60s"`

	// RetryBaseDelay is the base backoff delay; the delay doubles with each
	// failed attempt.
	RetryBaseDelay time.Duration `env:"PDF_WORKER_RETRY_BASE_DELAY" envDefault:"30s"`

	// MaxAttempts is the default attempt ceiling for PDF jobs.
	MaxAttempts int `env:"PDF_WORKER_MAX_ATTEMPTS" envDefault:"3"`
}

// Sanitize applies guardrails to PDF worker configuration values.
func (c *PDFWorkerConfig) Sanitize() {
	sanitizeWorker(&c.Concurrency, &c.JobLease, &c.RetryBaseDelay, &c.MaxAttempts)
}

// sanitizeWorker clamps the shared worker knobs: at least one goroutine, a
// lease long enough to heartbeat within, a backoff base of at least a second,
// and at least one attempt.
func sanitizeWorker(concurrency *int, lease, retryBase *time.Duration, maxAttempts *int) {
	if *concurrency < 1 {
		*concurrency = 1
	}
	if *lease < 5*time.Second {
		*lease = 5 * time.Second
	}
	if *retryBase < time.Second {
		*retryBase = time.Second
	}
	if *maxAttempts < 1 {
		*maxAttempts = 1
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	// Jobs stuck in pending status longer than this will be failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"24h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < time.Hour {
		r.CompletedMaxAge = time.Hour
	}
	if r.FailedMaxAge < time.Hour {
		r.FailedMaxAge = time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
