// Package testutil provides testing utilities and helpers for the imoveis job system.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:    model.JobTypeEmailWelcome,
			Payload: json.RawMessage(`{"email": "cliente@example.com", "name": "Cliente"}`),
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithPayload sets the job payload.
func (b *JobRequestBuilder) WithPayload(payload json.RawMessage) *JobRequestBuilder {
	b.req.Payload = payload
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithScheduledAt sets the scheduled time.
func (b *JobRequestBuilder) WithScheduledAt(scheduledAt time.Time) *JobRequestBuilder {
	b.req.ScheduledAt = &scheduledAt
	return b
}

// WithMaxRetries sets the maximum number of attempts.
func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = maxRetries
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// JobBuilder provides a fluent interface for building Job objects for testing.
type JobBuilder struct {
	job *model.Job
}

// NewJob creates a new JobBuilder with sensible defaults: a pending welcome
// email job with one attempt ceiling of five.
func NewJob() *JobBuilder {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &JobBuilder{
		job: &model.Job{
			ID:          "7b8a9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0d",
			Type:        model.JobTypeEmailWelcome,
			Queue:       model.QueueEmail,
			Status:      model.JobStatusPending,
			Payload:     json.RawMessage(`{"email": "cliente@example.com", "name": "Cliente"}`),
			ScheduledAt: now,
			MaxRetries:  5,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// WithID sets the job ID.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithType sets the job type and its queue.
func (b *JobBuilder) WithType(jobType model.JobType) *JobBuilder {
	b.job.Type = jobType
	b.job.Queue = jobType.Queue()
	return b
}

// WithStatus sets the job status.
func (b *JobBuilder) WithStatus(status model.JobStatus) *JobBuilder {
	b.job.Status = status
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobBuilder) WithPayloadString(payload string) *JobBuilder {
	b.job.Payload = json.RawMessage(payload)
	return b
}

// WithResultString sets the job result from a string.
func (b *JobBuilder) WithResultString(result string) *JobBuilder {
	b.job.Result = json.RawMessage(result)
	return b
}

// WithRetryCount sets the number of failed attempts recorded so far.
func (b *JobBuilder) WithRetryCount(count int) *JobBuilder {
	b.job.RetryCount = count
	return b
}

// WithMaxRetries sets the attempt ceiling.
func (b *JobBuilder) WithMaxRetries(maxRetries int) *JobBuilder {
	b.job.MaxRetries = maxRetries
	return b
}

// WithLastError sets the last error message.
func (b *JobBuilder) WithLastError(msg string) *JobBuilder {
	b.job.LastError = &msg
	return b
}

// Running marks the job as claimed with a lease expiring at the given time.
func (b *JobBuilder) Running(leaseExpiresAt time.Time) *JobBuilder {
	started := b.job.ScheduledAt
	b.job.Status = model.JobStatusRunning
	b.job.StartedAt = &started
	b.job.LeaseExpiresAt = &leaseExpiresAt
	return b
}

// Build returns the constructed Job.
func (b *JobBuilder) Build() *model.Job {
	return b.job
}

// PropertyBuilder provides a fluent interface for building Property objects for testing.
type PropertyBuilder struct {
	property *model.Property
}

// NewProperty creates a new PropertyBuilder with a representative listing.
func NewProperty() *PropertyBuilder {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &PropertyBuilder{
		property: &model.Property{
			ID:           "3f2c1b0a-9d8e-4c7b-a6f5-4e3d2c1b0a9f",
			Title:        "Apartamento 3 quartos no Setor Bueno",
			Description:  "Apartamento amplo com varanda gourmet e vista livre.",
			Address:      "Rua T-30, 1200",
			District:     "Setor Bueno",
			City:         "Goiânia",
			PostalCode:   "74210-060",
			Kind:         "apartamento",
			Bedrooms:     3,
			Suites:       1,
			ParkingSpots: 2,
			AreaM2:       98.5,
			Price:        650000,
			Status:       model.PropertyStatusAvailable,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

// WithID sets the property ID.
func (b *PropertyBuilder) WithID(id string) *PropertyBuilder {
	b.property.ID = id
	return b
}

// WithTitle sets the listing title.
func (b *PropertyBuilder) WithTitle(title string) *PropertyBuilder {
	b.property.Title = title
	return b
}

// WithPrice sets the listing price.
func (b *PropertyBuilder) WithPrice(price float64) *PropertyBuilder {
	b.property.Price = price
	return b
}

// WithStatus sets the listing status.
func (b *PropertyBuilder) WithStatus(status model.PropertyStatus) *PropertyBuilder {
	b.property.Status = status
	return b
}

// Build returns the constructed Property.
func (b *PropertyBuilder) Build() *model.Property {
	return b.property
}
