package scheduler

import (
	"context"

	appsync "github.com/AudicoSA/audico-management-team-sub005/internal/application/sync"
	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// ServiceExecutor runs scheduled jobs through the sync orchestrator.
type ServiceExecutor struct {
	service *appsync.Service
}

var _ SyncExecutor = (*ServiceExecutor)(nil)

// NewServiceExecutor creates an executor over the sync service.
func NewServiceExecutor(service *appsync.Service) *ServiceExecutor {
	return &ServiceExecutor{service: service}
}

// Execute implements SyncExecutor. Start failures (busy lock, connector that
// cannot start) come back as errors so the scheduler's retry policy applies;
// everything else is reported through the result.
func (e *ServiceExecutor) Execute(ctx context.Context, job *SyncJob) (*supplier.SyncResult, error) {
	return e.service.SyncByName(ctx, job.SupplierName, appsync.Options{
		Limit:       job.Limit,
		FullSync:    job.FullSync,
		SessionName: "scheduler",
	})
}
