// Package mocks provides mock implementations for testing the imoveis job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ReserveNext, WaitForNotification, Heartbeat, Complete, FailAttempt, Stats, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/siqueira-campos/imoveis-jobs/internal/core JobRepository

// Generate mock for ResultCache interface from internal/core package.
// This creates MockResultCache with methods for all ResultCache interface methods:
// Get, Set, SetNX, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=result_cache_mock.go github.com/siqueira-campos/imoveis-jobs/internal/core ResultCache

// Generate mock for PropertyRepository interface from internal/core package.
// This creates MockPropertyRepository with methods for all PropertyRepository interface methods:
// GetByID
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=property_repository_mock.go github.com/siqueira-campos/imoveis-jobs/internal/core PropertyRepository

// Generate mock for MailTransport interface from internal/core package.
// This creates MockMailTransport with methods for all MailTransport interface methods:
// Send
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=mail_transport_mock.go github.com/siqueira-campos/imoveis-jobs/internal/core MailTransport

// Generate mock for DocumentRenderer interface from internal/core package.
// This creates MockDocumentRenderer with methods for all DocumentRenderer interface methods:
// RenderSpecSheet
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=document_renderer_mock.go github.com/siqueira-campos/imoveis-jobs/internal/core DocumentRenderer

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// RequeueExpiredLeases, FailStalePendingJobs, DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/siqueira-campos/imoveis-jobs/internal/core ReaperRepository
