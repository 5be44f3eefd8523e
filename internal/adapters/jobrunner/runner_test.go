package jobrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/siqueira-campos/imoveis-jobs/internal/core"
	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
	apperrors "github.com/siqueira-campos/imoveis-jobs/internal/errors"
	"github.com/siqueira-campos/imoveis-jobs/internal/mocks"
	"github.com/siqueira-campos/imoveis-jobs/internal/testutil"
)

type runnerFixture struct {
	runner     *Runner
	repo       *mocks.MockJobRepository
	cache      *mocks.MockResultCache
	mail       *mocks.MockMailTransport
	properties *mocks.MockPropertyRepository
	renderer   *mocks.MockDocumentRenderer
}

func newEmailRunner(t *testing.T, ctrl *gomock.Controller) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		repo:  mocks.NewMockJobRepository(ctrl),
		cache: mocks.NewMockResultCache(ctrl),
		mail:  mocks.NewMockMailTransport(ctrl),
	}
	runner, err := NewRunner(RunnerOptions{
		Queue:    model.QueueEmail,
		Lease:    30 * time.Second,
		JobsRepo: f.repo,
		Cache:    f.cache,
		CacheTTL: time.Hour,
		Mail:     f.mail,
		SiteURL:  "https://siqueiracamposimoveis.com.br",
	})
	require.NoError(t, err)
	f.runner = runner
	return f
}

func newPDFRunner(t *testing.T, ctrl *gomock.Controller) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		repo:       mocks.NewMockJobRepository(ctrl),
		cache:      mocks.NewMockResultCache(ctrl),
		properties: mocks.NewMockPropertyRepository(ctrl),
		renderer:   mocks.NewMockDocumentRenderer(ctrl),
	}
	runner, err := NewRunner(RunnerOptions{
		Queue:      model.QueuePDF,
		Lease:      30 * time.Second,
		JobsRepo:   f.repo,
		Cache:      f.cache,
		CacheTTL:   time.Hour,
		Properties: f.properties,
		Renderer:   f.renderer,
	})
	require.NoError(t, err)
	f.runner = runner
	return f
}

func TestNewRunner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("requires a job source", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{Queue: model.QueueEmail})
		require.Error(t, err)
	})

	t.Run("rejects an unknown queue", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{
			Queue:    model.Queue("fax"),
			JobsRepo: mocks.NewMockJobRepository(ctrl),
		})
		require.Error(t, err)
	})

	t.Run("email queue requires a mail transport", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{
			Queue:    model.QueueEmail,
			JobsRepo: mocks.NewMockJobRepository(ctrl),
		})
		require.Error(t, err)
	})

	t.Run("pdf queue requires property repo and renderer", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{
			Queue:    model.QueuePDF,
			JobsRepo: mocks.NewMockJobRepository(ctrl),
		})
		require.Error(t, err)
	})
}

func TestRunner_ProcessEmailJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("delivers and completes with the receipt", func(t *testing.T) {
		f := newEmailRunner(t, ctrl)

		job := testutil.NewJob().
			WithType(model.JobTypeEmailVerification).
			WithPayloadString(`{"email":"cliente@example.com","token":"tok-1"}`).
			Running(time.Now().Add(time.Minute)).
			Build()

		f.mail.EXPECT().
			Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msg *model.OutboundEmail) (*model.EmailResult, error) {
				assert.Equal(t, "cliente@example.com", msg.To)
				assert.Equal(t, "Verifique seu email - Siqueira Campos Imóveis", msg.Subject)
				assert.Contains(t, msg.HTMLBody, "/verificar-email/tok-1")
				return &model.EmailResult{DeliveredTo: msg.To, MessageID: "msg-9"}, nil
			})
		f.repo.EXPECT().
			Complete(gomock.Any(), job.ID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, result []byte) (bool, error) {
				var receipt model.EmailResult
				require.NoError(t, json.Unmarshal(result, &receipt))
				assert.Equal(t, "msg-9", receipt.MessageID)
				return true, nil
			})

		f.runner.processJob(context.Background(), job)
	})

	t.Run("failed delivery records the attempt", func(t *testing.T) {
		f := newEmailRunner(t, ctrl)

		job := testutil.NewJob().
			WithType(model.JobTypeEmailWelcome).
			WithPayloadString(`{"email":"cliente@example.com","name":"Cliente"}`).
			Running(time.Now().Add(time.Minute)).
			Build()

		f.mail.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil, errors.New("smtp timeout"))
		f.repo.EXPECT().
			FailAttempt(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.FailAttemptParams) (*model.Job, error) {
				assert.Equal(t, job.ID, params.ID)
				assert.Contains(t, params.ErrMsg, "smtp timeout")
				return testutil.NewJob().WithRetryCount(1).Build(), nil
			})

		f.runner.processJob(context.Background(), job)
	})

	t.Run("invalid payload fails the attempt without sending", func(t *testing.T) {
		f := newEmailRunner(t, ctrl)

		job := testutil.NewJob().
			WithType(model.JobTypeEmailVerification).
			WithPayloadString(`{"email":""}`).
			Running(time.Now().Add(time.Minute)).
			Build()

		f.repo.EXPECT().FailAttempt(gomock.Any(), gomock.Any()).Return(nil, nil)

		f.runner.processJob(context.Background(), job)
	})

	t.Run("visit confirmation renders visit details", func(t *testing.T) {
		f := newEmailRunner(t, ctrl)

		payload := `{
			"email": "cliente@example.com",
			"visit": {
				"property_id": "prop-1",
				"property_title": "Casa no Setor Sul",
				"scheduled_for": "2025-07-15T14:30:00Z"
			}
		}`
		job := testutil.NewJob().
			WithType(model.JobTypeEmailVisitConfirmation).
			WithPayloadString(payload).
			Running(time.Now().Add(time.Minute)).
			Build()

		f.mail.EXPECT().
			Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msg *model.OutboundEmail) (*model.EmailResult, error) {
				assert.Contains(t, msg.HTMLBody, "Casa no Setor Sul")
				assert.Contains(t, msg.HTMLBody, "15/07/2025")
				assert.Contains(t, msg.HTMLBody, "14:30")
				return &model.EmailResult{DeliveredTo: msg.To}, nil
			})
		f.repo.EXPECT().Complete(gomock.Any(), job.ID, gomock.Any()).Return(true, nil)

		f.runner.processJob(context.Background(), job)
	})
}

func TestRunner_ProcessSpecSheetJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	specJob := func() *model.Job {
		return testutil.NewJob().
			WithType(model.JobTypePDFSpecSheet).
			WithPayloadString(`{"property_id":"prop-7"}`).
			WithMaxRetries(3).
			Running(time.Now().Add(time.Minute)).
			Build()
	}

	t.Run("renders, caches, and completes", func(t *testing.T) {
		f := newPDFRunner(t, ctrl)
		job := specJob()
		property := testutil.NewProperty().WithID("prop-7").Build()

		f.cache.EXPECT().Get(gomock.Any(), "spec_sheet_prop-7").Return(nil, false, nil)
		f.properties.EXPECT().GetByID(gomock.Any(), "prop-7").Return(property, nil)
		f.renderer.EXPECT().
			RenderSpecSheet(gomock.Any(), property).
			Return("/docs/ficha_tecnica_prop-7.pdf", nil)
		f.cache.EXPECT().
			SetNX(gomock.Any(), "spec_sheet_prop-7", gomock.Any(), time.Hour).
			Return(true, nil)
		f.repo.EXPECT().
			Complete(gomock.Any(), job.ID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, result []byte) (bool, error) {
				var sheet model.SpecSheetResult
				require.NoError(t, json.Unmarshal(result, &sheet))
				assert.Equal(t, "/docs/ficha_tecnica_prop-7.pdf", sheet.FilePath)
				return true, nil
			})

		f.runner.processJob(context.Background(), job)
	})

	t.Run("cache hit completes without rendering", func(t *testing.T) {
		f := newPDFRunner(t, ctrl)
		job := specJob()
		cached := []byte(`{"file_path":"/docs/ficha_tecnica_prop-7.pdf"}`)

		f.cache.EXPECT().Get(gomock.Any(), "spec_sheet_prop-7").Return(cached, true, nil)
		f.repo.EXPECT().Complete(gomock.Any(), job.ID, cached).Return(true, nil)
		// No GetByID or RenderSpecSheet expectations: the handler must not run.

		f.runner.processJob(context.Background(), job)
	})

	t.Run("cache errors fall through to the handler", func(t *testing.T) {
		f := newPDFRunner(t, ctrl)
		job := specJob()
		property := testutil.NewProperty().WithID("prop-7").Build()

		f.cache.EXPECT().Get(gomock.Any(), "spec_sheet_prop-7").Return(nil, false, errors.New("redis down"))
		f.properties.EXPECT().GetByID(gomock.Any(), "prop-7").Return(property, nil)
		f.renderer.EXPECT().RenderSpecSheet(gomock.Any(), property).Return("/docs/x.pdf", nil)
		f.cache.EXPECT().SetNX(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
		f.repo.EXPECT().Complete(gomock.Any(), job.ID, gomock.Any()).Return(true, nil)

		f.runner.processJob(context.Background(), job)
	})

	t.Run("missing property fails the attempt", func(t *testing.T) {
		f := newPDFRunner(t, ctrl)
		job := specJob()

		f.cache.EXPECT().Get(gomock.Any(), "spec_sheet_prop-7").Return(nil, false, nil)
		f.properties.EXPECT().GetByID(gomock.Any(), "prop-7").Return(nil, errors.New("property not found"))
		f.repo.EXPECT().
			FailAttempt(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.FailAttemptParams) (*model.Job, error) {
				assert.Contains(t, params.ErrMsg, "property not found")
				return testutil.NewJob().WithRetryCount(1).Build(), nil
			})

		f.runner.processJob(context.Background(), job)
	})
}

func TestRunner_FailAttemptLogsErrorCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var buf bytes.Buffer
	repo := mocks.NewMockJobRepository(ctrl)
	properties := mocks.NewMockPropertyRepository(ctrl)
	runner, err := NewRunner(RunnerOptions{
		Queue:      model.QueuePDF,
		Logger:     slog.New(slog.NewTextHandler(&buf, nil)),
		JobsRepo:   repo,
		Properties: properties,
		Renderer:   mocks.NewMockDocumentRenderer(ctrl),
	})
	require.NoError(t, err)

	job := testutil.NewJob().
		WithType(model.JobTypePDFSpecSheet).
		WithPayloadString(`{"property_id":"prop-9"}`).
		Running(time.Now().Add(time.Minute)).
		Build()

	properties.EXPECT().
		GetByID(gomock.Any(), "prop-9").
		Return(nil, apperrors.Wrap(errors.New("no rows"), apperrors.ErrCodeNotFound, "property not found"))
	repo.EXPECT().
		FailAttempt(gomock.Any(), gomock.Any()).
		Return(testutil.NewJob().WithRetryCount(1).Build(), nil)

	runner.processJob(context.Background(), job)

	// The coded cause surfaces in the attempt-failed log line.
	assert.Contains(t, buf.String(), "error_code=not_found")
}

func TestRunner_ProcessJobPanicIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newEmailRunner(t, ctrl)
	f.runner.handlers[model.JobTypeEmailWelcome] = func(context.Context, *model.Job) (json.RawMessage, error) {
		panic("template exploded")
	}

	job := testutil.NewJob().
		WithType(model.JobTypeEmailWelcome).
		Running(time.Now().Add(time.Minute)).
		Build()

	f.repo.EXPECT().
		FailAttempt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.FailAttemptParams) (*model.Job, error) {
			assert.Contains(t, params.ErrMsg, "handler panic")
			return testutil.NewJob().WithRetryCount(1).Build(), nil
		})

	// Must not panic through.
	f.runner.processJob(context.Background(), job)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newEmailRunner(t, ctrl)

	f.repo.EXPECT().
		ReserveNext(gomock.Any(), model.QueueEmail, gomock.Any()).
		Return(nil, model.ErrNoJobsAvailable).
		AnyTimes()
	f.repo.EXPECT().
		WaitForNotification(gomock.Any(), model.QueueEmail).
		DoAndReturn(func(ctx context.Context, _ model.Queue) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.runner.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}

func TestRunner_RunSurvivesStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	runner, err := NewRunner(RunnerOptions{
		Queue:             model.QueueEmail,
		Lease:             30 * time.Second,
		ReserveRetryDelay: 5 * time.Millisecond,
		JobsRepo:          repo,
		Mail:              mocks.NewMockMailTransport(ctrl),
	})
	require.NoError(t, err)

	recovered := make(chan struct{})
	var once sync.Once

	// First claim fails like a dropped database connection; the worker must
	// back off and claim again rather than exit.
	repo.EXPECT().
		ReserveNext(gomock.Any(), model.QueueEmail, gomock.Any()).
		Return(nil, errors.New("connection refused"))
	repo.EXPECT().
		ReserveNext(gomock.Any(), model.QueueEmail, gomock.Any()).
		DoAndReturn(func(context.Context, model.Queue, int) (*model.Job, error) {
			once.Do(func() { close(recovered) })
			return nil, model.ErrNoJobsAvailable
		}).
		AnyTimes()
	repo.EXPECT().
		WaitForNotification(gomock.Any(), model.QueueEmail).
		DoAndReturn(func(ctx context.Context, _ model.Queue) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	select {
	case <-recovered:
	case err := <-done:
		t.Fatalf("runner exited on a transient store error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner never retried after the store error")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}
