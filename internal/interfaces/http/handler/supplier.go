package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/AudicoSA/audico-management-team-sub005/internal/application/sync"
	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/scheduler"
	"github.com/AudicoSA/audico-management-team-sub005/internal/interfaces/http/dto"
)

// SyncService is the slice of the sync orchestrator the HTTP surface needs.
type SyncService interface {
	SyncSupplier(ctx context.Context, supplierID uuid.UUID, opts appsync.Options) (*supplier.SyncResult, error)
	TestConnection(ctx context.Context, name string) (bool, error)
	Status(ctx context.Context, supplierID uuid.UUID) (*supplier.SupplierSyncStatus, error)
	Statuses(ctx context.Context) ([]*supplier.SupplierSyncStatus, error)
	Sessions(ctx context.Context, supplierID uuid.UUID, limit int) ([]*supplier.SyncSession, error)
	CrashLogs(ctx context.Context, limit int) ([]*supplier.CrashLogEntry, error)
	Suppliers(ctx context.Context) ([]*supplier.Supplier, error)
}

// JobHistory exposes the scheduler's recent jobs. Nil when the scheduler is
// disabled.
type JobHistory interface {
	GetJobHistory(limit int) []*scheduler.SyncJob
}

// SupplierHandler handles the supplier sync admin endpoints
type SupplierHandler struct {
	BaseHandler
	service SyncService
	jobs    JobHistory
}

// NewSupplierHandler creates a new SupplierHandler
func NewSupplierHandler(service SyncService, jobs JobHistory) *SupplierHandler {
	return &SupplierHandler{service: service, jobs: jobs}
}

// RegisterRoutes mounts the supplier routes on the API group
func (h *SupplierHandler) RegisterRoutes(rg *gin.RouterGroup) {
	suppliers := rg.Group("/suppliers")
	suppliers.GET("", h.List)
	suppliers.GET("/status", h.Statuses)
	suppliers.GET("/:id/status", h.Status)
	suppliers.GET("/:id/sessions", h.Sessions)
	suppliers.POST("/:id/sync", h.Sync)
	suppliers.POST("/:id/test", h.TestConnection)

	rg.GET("/crash-logs", h.CrashLogs)
	rg.GET("/sync/jobs", h.Jobs)
}

// List returns every registered supplier
func (h *SupplierHandler) List(c *gin.Context) {
	all, err := h.service.Suppliers(c.Request.Context())
	if err != nil {
		h.InternalError(c, "Failed to list suppliers")
		return
	}
	out := make([]dto.SupplierResponse, 0, len(all))
	for _, s := range all {
		out = append(out, dto.NewSupplierResponse(s))
	}
	h.Success(c, out)
}

// Statuses returns the sync snapshot for every supplier
func (h *SupplierHandler) Statuses(c *gin.Context) {
	statuses, err := h.service.Statuses(c.Request.Context())
	if err != nil {
		h.InternalError(c, "Failed to collect supplier statuses")
		return
	}
	out := make([]dto.SupplierStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, dto.NewSupplierStatusResponse(s))
	}
	h.Success(c, out)
}

// Status returns the sync snapshot for one supplier
func (h *SupplierHandler) Status(c *gin.Context) {
	id, ok := h.supplierID(c)
	if !ok {
		return
	}
	status, err := h.service.Status(c.Request.Context(), id)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	h.Success(c, dto.NewSupplierStatusResponse(status))
}

// Sync triggers a sync run for one supplier and waits for its result
func (h *SupplierHandler) Sync(c *gin.Context) {
	id, ok := h.supplierID(c)
	if !ok {
		return
	}

	var req dto.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid sync request body")
			return
		}
	}

	sessionName := req.SessionName
	if sessionName == "" {
		sessionName = "api"
	}
	result, err := h.service.SyncSupplier(c.Request.Context(), id, appsync.Options{
		Limit:       req.Limit,
		DryRun:      req.DryRun,
		FullSync:    req.FullSync,
		SessionName: sessionName,
	})
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	h.Success(c, dto.NewSyncResultResponse(result))
}

// TestConnection probes one supplier's upstream without syncing
func (h *SupplierHandler) TestConnection(c *gin.Context) {
	id, ok := h.supplierID(c)
	if !ok {
		return
	}
	status, err := h.service.Status(c.Request.Context(), id)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	reachable, err := h.service.TestConnection(c.Request.Context(), status.SupplierName)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	h.Success(c, gin.H{"supplier": status.SupplierName, "reachable": reachable})
}

// Sessions returns the most recent sync sessions for one supplier
func (h *SupplierHandler) Sessions(c *gin.Context) {
	id, ok := h.supplierID(c)
	if !ok {
		return
	}
	sessions, err := h.service.Sessions(c.Request.Context(), id, queryLimit(c, 20))
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	out := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.NewSessionResponse(s))
	}
	h.Success(c, out)
}

// CrashLogs returns the newest crash log entries
func (h *SupplierHandler) CrashLogs(c *gin.Context) {
	entries, err := h.service.CrashLogs(c.Request.Context(), queryLimit(c, 50))
	if err != nil {
		h.InternalError(c, "Failed to read crash logs")
		return
	}
	out := make([]dto.CrashLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.NewCrashLogResponse(e))
	}
	h.Success(c, out)
}

// jobResponse represents one scheduled job in API responses
type jobResponse struct {
	ID           string     `json:"id"`
	SupplierName string     `json:"supplier_name"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	RetryCount   int        `json:"retry_count"`
	Added        int        `json:"added"`
	Updated      int        `json:"updated"`
	Unchanged    int        `json:"unchanged"`
	Skipped      int        `json:"skipped"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Jobs returns the scheduler's recent job history
func (h *SupplierHandler) Jobs(c *gin.Context) {
	if h.jobs == nil {
		h.Success(c, []jobResponse{})
		return
	}
	history := h.jobs.GetJobHistory(queryLimit(c, 50))
	out := make([]jobResponse, 0, len(history))
	for _, job := range history {
		out = append(out, jobResponse{
			ID:           job.ID.String(),
			SupplierName: job.SupplierName,
			Status:       string(job.Status),
			Error:        job.Error,
			RetryCount:   job.RetryCount,
			Added:        job.Added,
			Updated:      job.Updated,
			Unchanged:    job.Unchanged,
			Skipped:      job.Skipped,
			StartedAt:    job.StartedAt,
			CompletedAt:  job.CompletedAt,
		})
	}
	h.Success(c, out)
}

// supplierID parses the :id path parameter
func (h *SupplierHandler) supplierID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid supplier ID")
		return uuid.Nil, false
	}
	return id, true
}

// handleSyncError maps domain errors to API error codes
func (h *SupplierHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, supplier.ErrSupplierNotFound):
		h.NotFound(c, "Supplier not found")
	case errors.Is(err, supplier.ErrSyncAlreadyRunning):
		h.ErrorWithCode(c, dto.ErrCodeSyncRunning, "A sync is already running for this supplier")
	case errors.Is(err, supplier.ErrSupplierInactive):
		h.ErrorWithCode(c, dto.ErrCodeSupplierInactive, "Supplier is inactive")
	case errors.Is(err, supplier.ErrConnectorNotFound):
		h.ErrorWithCode(c, dto.ErrCodeConnectorUnavailable, "No connector is configured for this supplier")
	case errors.Is(err, supplier.ErrEngineUnavailable),
		errors.Is(err, supplier.ErrTransport),
		errors.Is(err, supplier.ErrMissingCredentials),
		errors.Is(err, supplier.ErrMissingBaseURL):
		h.ErrorWithCode(c, dto.ErrCodeSyncFailed, err.Error())
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}

// queryLimit parses the limit query parameter with a default
func queryLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
