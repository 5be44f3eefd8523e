package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
	"github.com/siqueira-campos/imoveis-jobs/internal/testutil"
)

// fakeJobCreator backs the submitter with an in-memory status sequence.
type fakeJobCreator struct {
	mu       sync.Mutex
	created  []*model.CreateJobRequest
	job      *model.Job
	createFn func(req *model.CreateJobRequest) (*model.Job, error)
	statuses []*model.JobStatusResponse
	statusAt int
}

func (f *fakeJobCreator) Create(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createFn != nil {
		return f.createFn(req)
	}
	if f.job != nil {
		return f.job, nil
	}
	return testutil.NewJob().WithType(req.Type).Build(), nil
}

func (f *fakeJobCreator) GetStatus(_ context.Context, _ string) (*model.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return &model.JobStatusResponse{Status: model.JobStatusPending}, nil
	}
	status := f.statuses[f.statusAt]
	if f.statusAt < len(f.statuses)-1 {
		f.statusAt++
	}
	return status, nil
}

func newTestSubmitter(t *testing.T, jobs *fakeJobCreator) *Submitter {
	t.Helper()
	return MustNewSubmitter(SubmitterOptions{
		Jobs:         jobs,
		PollInterval: time.Millisecond,
	})
}

func TestNewSubmitter(t *testing.T) {
	_, err := NewSubmitter(SubmitterOptions{})
	require.Error(t, err)
}

func TestSubmitter_Submit(t *testing.T) {
	jobs := &fakeJobCreator{job: testutil.NewJob().WithID("job-42").Build()}
	submitter := newTestSubmitter(t, jobs)

	handle, err := submitter.Submit(context.Background(), testutil.NewJobRequest().Build())
	require.NoError(t, err)
	assert.Equal(t, "job-42", handle.ID())
	require.Len(t, jobs.created, 1)
}

func TestSubmitter_SubmitEmail(t *testing.T) {
	t.Run("enqueues a validated payload", func(t *testing.T) {
		jobs := &fakeJobCreator{}
		submitter := newTestSubmitter(t, jobs)

		handle, err := submitter.SubmitEmail(
			context.Background(),
			model.JobTypeEmailVerification,
			&model.EmailPayload{Email: "cliente@example.com", Token: "tok-1"},
		)
		require.NoError(t, err)
		require.NotNil(t, handle)

		require.Len(t, jobs.created, 1)
		req := jobs.created[0]
		assert.Equal(t, model.JobTypeEmailVerification, req.Type)

		decoded, err := model.DecodeEmailPayload(req.Payload)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", decoded.Token)
	})

	t.Run("rejects non-email job types", func(t *testing.T) {
		jobs := &fakeJobCreator{}
		submitter := newTestSubmitter(t, jobs)

		_, err := submitter.SubmitEmail(
			context.Background(),
			model.JobTypePDFSpecSheet,
			&model.EmailPayload{Email: "cliente@example.com"},
		)
		require.Error(t, err)
		assert.Empty(t, jobs.created)
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		jobs := &fakeJobCreator{}
		submitter := newTestSubmitter(t, jobs)

		_, err := submitter.SubmitEmail(context.Background(), model.JobTypeEmailWelcome, &model.EmailPayload{})
		require.Error(t, err)
		assert.Empty(t, jobs.created)
	})
}

func TestSubmitter_SubmitSpecSheet(t *testing.T) {
	jobs := &fakeJobCreator{}
	submitter := newTestSubmitter(t, jobs)

	_, err := submitter.SubmitSpecSheet(context.Background(), "prop-7")
	require.NoError(t, err)

	require.Len(t, jobs.created, 1)
	req := jobs.created[0]
	assert.Equal(t, model.JobTypePDFSpecSheet, req.Type)

	decoded, err := model.DecodeSpecSheetPayload(req.Payload)
	require.NoError(t, err)
	assert.Equal(t, "prop-7", decoded.PropertyID)

	_, err = submitter.SubmitSpecSheet(context.Background(), "  ")
	require.Error(t, err)
}

func TestJobHandle_Await(t *testing.T) {
	t.Run("returns the result once the job completes", func(t *testing.T) {
		completedAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
		jobs := &fakeJobCreator{
			statuses: []*model.JobStatusResponse{
				{Status: model.JobStatusPending},
				{Status: model.JobStatusRunning},
				{
					Status:      model.JobStatusCompleted,
					CompletedAt: &completedAt,
					Result:      []byte(`{"file_path":"/docs/ficha_tecnica_prop-7.pdf"}`),
				},
			},
		}
		submitter := newTestSubmitter(t, jobs)

		handle, err := submitter.SubmitSpecSheet(context.Background(), "prop-7")
		require.NoError(t, err)

		status, err := handle.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, status.Status)
		assert.JSONEq(t, `{"file_path":"/docs/ficha_tecnica_prop-7.pdf"}`, string(status.Result))
	})

	t.Run("failed jobs surface ErrJobFailed with the last error", func(t *testing.T) {
		lastError := "smtp timeout"
		jobs := &fakeJobCreator{
			statuses: []*model.JobStatusResponse{
				{Status: model.JobStatusFailed, LastError: &lastError},
			},
		}
		submitter := newTestSubmitter(t, jobs)

		handle, err := submitter.SubmitEmail(
			context.Background(),
			model.JobTypeEmailWelcome,
			&model.EmailPayload{Email: "cliente@example.com", Name: "Cliente"},
		)
		require.NoError(t, err)

		status, err := handle.Await(context.Background())
		require.ErrorIs(t, err, ErrJobFailed)
		assert.Contains(t, err.Error(), lastError)
		require.NotNil(t, status)
		assert.Equal(t, model.JobStatusFailed, status.Status)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		jobs := &fakeJobCreator{
			statuses: []*model.JobStatusResponse{{Status: model.JobStatusPending}},
		}
		submitter := newTestSubmitter(t, jobs)

		handle, err := submitter.Submit(context.Background(), testutil.NewJobRequest().Build())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err = handle.Await(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSubmitter_SubmitPropagatesCreateError(t *testing.T) {
	createErr := errors.New("db unavailable")
	jobs := &fakeJobCreator{
		createFn: func(*model.CreateJobRequest) (*model.Job, error) {
			return nil, createErr
		},
	}
	submitter := newTestSubmitter(t, jobs)

	_, err := submitter.Submit(context.Background(), testutil.NewJobRequest().Build())
	require.ErrorIs(t, err, createErr)
}
