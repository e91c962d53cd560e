package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// SyncJobStatus represents the status of a scheduled sync job
type SyncJobStatus string

const (
	SyncJobStatusPending   SyncJobStatus = "PENDING"
	SyncJobStatusRunning   SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess   SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial   SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed    SyncJobStatus = "FAILED"
	SyncJobStatusCancelled SyncJobStatus = "CANCELLED"
)

// SyncJob represents one scheduled catalog sync for one supplier
type SyncJob struct {
	ID           uuid.UUID
	SupplierName string
	FullSync     bool
	Limit        int
	Status       SyncJobStatus
	Error        string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	RetryCount   int
	MaxRetries   int
	NextRetryAt  *time.Time

	// Sync results
	Added     int
	Updated   int
	Unchanged int
	Skipped   int
}

// NewSyncJob creates a new sync job
func NewSyncJob(supplierName string, fullSync bool, maxRetries int) *SyncJob {
	return &SyncJob{
		ID:           uuid.New(),
		SupplierName: supplierName,
		FullSync:     fullSync,
		Status:       SyncJobStatusPending,
		MaxRetries:   maxRetries,
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the run result and derives the terminal status
func (j *SyncJob) Complete(result *supplier.SyncResult) {
	now := time.Now()
	j.CompletedAt = &now
	j.Added = result.Counters.Added
	j.Updated = result.Counters.Updated
	j.Unchanged = result.Counters.Unchanged
	j.Skipped = result.Counters.Skipped

	switch result.Status {
	case supplier.SyncStatusCompleted:
		j.Status = SyncJobStatusSuccess
	case supplier.SyncStatusPartial:
		j.Status = SyncJobStatusPartial
		if len(result.Errors) > 0 {
			j.Error = result.Errors[0]
		}
	case supplier.SyncStatusCancelled:
		j.Status = SyncJobStatusCancelled
	default:
		j.Status = SyncJobStatusFailed
		if len(result.Errors) > 0 {
			j.Error = result.Errors[0]
		}
	}
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *SyncJob) ShouldRetry() bool {
	return j.Status == SyncJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff
func (j *SyncJob) ScheduleRetry(baseDelay time.Duration) {
	j.RetryCount++
	j.Status = SyncJobStatusPending
	// Exponential backoff: baseDelay * 2^(retryCount-1)
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute // Cap at 30 minutes
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// ---------------------------------------------------------------------------
// SyncExecutor Interface
// ---------------------------------------------------------------------------

// SyncExecutor runs one supplier sync for a job
type SyncExecutor interface {
	// Execute runs the sync and returns its session result
	Execute(ctx context.Context, job *SyncJob) (*supplier.SyncResult, error)
}

// ---------------------------------------------------------------------------
// SyncSchedulerConfig
// ---------------------------------------------------------------------------

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// MaxConcurrentJobs is the maximum number of supplier syncs running at once
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a sync can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// SyncInterval is how often the trigger enqueues all active suppliers
	SyncInterval time.Duration
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 2,
		JobTimeout:        45 * time.Minute,
		RetryAttempts:     2,
		RetryDelay:        1 * time.Minute,
		SyncInterval:      6 * time.Hour,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.SyncInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler manages scheduled supplier sync jobs
type SyncScheduler struct {
	config   SyncSchedulerConfig
	executor SyncExecutor
	logger   *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Job history for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*SyncJob
	maxHistory int
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, executor SyncExecutor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncScheduler{
		config:     config,
		executor:   executor,
		logger:     logger,
		jobs:       make(chan *SyncJob, 100),
		history:    make([]*SyncJob, 0, 100),
		maxHistory: 100,
	}, nil
}

// Start starts the scheduler
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Start worker pool
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Close job channel
	close(s.jobs)

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob submits a job for execution. The send happens under the
// lifecycle mutex: Stop flips isRunning before closing the channel, so a
// submission either lands in the open channel or is rejected, never sent
// on a closed one.
func (s *SyncScheduler) SubmitJob(job *SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("supplier", job.SupplierName),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleSync enqueues a sync job for one supplier
func (s *SyncScheduler) ScheduleSync(supplierName string, fullSync bool) error {
	job := NewSyncJob(supplierName, fullSync, s.config.RetryAttempts)
	return s.SubmitJob(job)
}

// worker processes jobs from the queue
func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				s.logger.Debug("Sync job channel closed", zap.Int("worker_id", workerID))
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	// A retried job waits out its backoff before running again.
	if job.NextRetryAt != nil {
		if wait := time.Until(*job.NextRetryAt); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}

	job.Start()
	s.logger.Info("Processing sync job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("supplier", job.SupplierName),
		zap.Bool("full_sync", job.FullSync),
	)

	// Create context with timeout
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	// Execute the job
	result, err := s.executor.Execute(jobCtx, job)
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Sync job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("supplier", job.SupplierName),
			zap.Error(err),
		)

		// Check if should retry
		if job.ShouldRetry() {
			job.ScheduleRetry(s.config.RetryDelay)
			s.logger.Info("Sync job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
				zap.Time("next_retry_at", *job.NextRetryAt),
			)
			// Re-submit through SubmitJob so the send is guarded
			// against a concurrent Stop.
			if err := s.SubmitJob(job); err != nil {
				s.logger.Warn("Failed to re-queue sync job for retry",
					zap.String("job_id", job.ID.String()),
					zap.Error(err),
				)
			}
		}

		// Add to history
		s.addToHistory(job)
		return
	}

	job.Complete(result)
	s.logger.Info("Sync job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("supplier", job.SupplierName),
		zap.String("status", string(job.Status)),
		zap.Int("added", job.Added),
		zap.Int("updated", job.Updated),
		zap.Int("unchanged", job.Unchanged),
		zap.Int("skipped", job.Skipped),
	)

	// Add to history
	s.addToHistory(job)
}

// addToHistory adds a completed job to history
func (s *SyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	// Add to front
	s.history = append([]*SyncJob{job}, s.history...)

	// Trim if over limit
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// GetJobHistory returns recent job history
func (s *SyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}

// GetJobHistoryBySupplier returns job history for one supplier
func (s *SyncScheduler) GetJobHistoryBySupplier(supplierName string, limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	result := make([]*SyncJob, 0, limit)
	for _, job := range s.history {
		if job.SupplierName == supplierName {
			result = append(result, job)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}
