// Package mocks provides gomock mocks of the repository ports in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/case-dispatch/internal/core JobRepository,JobRepositoryTx
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=timeline_repository_mock.go github.com/target/case-dispatch/internal/core TimelineRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=case_records_repository_mock.go github.com/target/case-dispatch/internal/core EvidenceRepository,CertifiedMailRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/case-dispatch/internal/core CacheRepository,SweepLock
