package connector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// ---------------------------------------------------------------------------
// Pagination Modes
// ---------------------------------------------------------------------------

// PaginationMode selects how page boundaries are expressed to the upstream.
type PaginationMode string

const (
	// PaginationAuto probes page, since_id and offset in that order on the
	// first request and locks onto the first mode that yields records.
	PaginationAuto PaginationMode = "auto"
	// PaginationPage uses 1-based page numbers (page=N&page_size=S).
	PaginationPage PaginationMode = "page"
	// PaginationSinceID uses a cursor on the last record ID (since_id=X).
	PaginationSinceID PaginationMode = "since_id"
	// PaginationOffset uses absolute record offsets (offset=N&limit=S).
	PaginationOffset PaginationMode = "offset"
)

// IsValid returns true if the pagination mode is known.
func (m PaginationMode) IsValid() bool {
	switch m {
	case PaginationAuto, PaginationPage, PaginationSinceID, PaginationOffset:
		return true
	default:
		return false
	}
}

// PageRequest describes one page fetch to a FetchPageFunc. Exactly one of the
// cursor fields is meaningful depending on Mode.
type PageRequest struct {
	Mode     PaginationMode
	Page     int    // 1-based, PaginationPage
	Offset   int    // absolute record offset, PaginationOffset
	SinceID  string // last seen record ID, PaginationSinceID
	PageSize int
}

// FetchPageFunc fetches one page of raw records from the upstream. It is
// called with backoff retries already applied by the paginator; it should
// return transport errors wrapping supplier.ErrTransport and decode errors
// wrapping supplier.ErrInvalidResponse.
type FetchPageFunc func(ctx context.Context, req PageRequest) ([]supplier.RawRecord, error)

// ---------------------------------------------------------------------------
// Paginator
// ---------------------------------------------------------------------------

// PaginatorConfig bounds a paged fetch run.
type PaginatorConfig struct {
	Mode           PaginationMode
	PageSize       int
	PageCeiling    int
	InterPageDelay time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	// KeyFields are tried in order to extract a record's natural key for
	// duplicate-page detection and since_id cursor advance.
	KeyFields []string
	// Limit caps total records across all pages; 0 means no cap.
	Limit int
	// SeedSinceID starts a since_id walk from a cursor saved by an
	// earlier run instead of from the beginning.
	SeedSinceID string
}

// Paginator walks an upstream source page by page through a FetchPageFunc.
// It terminates on the first empty page, on a page consisting entirely of
// already-seen keys (some APIs repeat the last page forever), on the page
// ceiling, or on the record limit. It implements supplier.PageIterator.
type Paginator struct {
	cfg     PaginatorConfig
	fetch   FetchPageFunc
	limiter *rate.Limiter

	mode    PaginationMode
	page    int
	offset  int
	sinceID string
	fetched int
	seen    map[string]struct{}
	done    bool
}

var _ supplier.PageIterator = (*Paginator)(nil)

// NewPaginator creates a paginator over fetch. Zero-value config fields get
// conservative defaults.
func NewPaginator(cfg PaginatorConfig, fetch FetchPageFunc) *Paginator {
	if cfg.Mode == "" {
		cfg.Mode = PaginationAuto
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.PageCeiling <= 0 {
		cfg.PageCeiling = 100
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if len(cfg.KeyFields) == 0 {
		cfg.KeyFields = []string{"sku", "id", "model"}
	}

	var limiter *rate.Limiter
	if cfg.InterPageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.InterPageDelay), 1)
	}

	return &Paginator{
		cfg:     cfg,
		fetch:   fetch,
		limiter: limiter,
		mode:    cfg.Mode,
		page:    1,
		sinceID: cfg.SeedSinceID,
		seen:    make(map[string]struct{}),
	}
}

// Cursor returns the current since_id cursor. After an exhausted walk it
// points past the last record returned.
func (p *Paginator) Cursor() string {
	return p.sinceID
}

// Next returns the next page, or a nil page when the sequence is exhausted.
func (p *Paginator) Next(ctx context.Context) (*supplier.RawPage, error) {
	if p.done {
		return nil, nil
	}
	if p.page > p.cfg.PageCeiling {
		p.done = true
		return nil, nil
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	records, err := p.fetchPage(ctx)
	if err != nil {
		p.done = true
		return nil, err
	}
	if len(records) == 0 {
		p.done = true
		return nil, nil
	}

	fresh := p.markSeen(records)
	if !fresh {
		p.done = true
		return nil, nil
	}

	p.advance(records)

	if p.cfg.Limit > 0 && p.fetched+len(records) >= p.cfg.Limit {
		records = records[:p.cfg.Limit-p.fetched]
		p.done = true
	}
	p.fetched += len(records)

	pageNo := p.page - 1
	return &supplier.RawPage{Number: pageNo, Records: records}, nil
}

// fetchPage resolves auto mode on the first page and applies the retry
// budget with exponential backoff.
func (p *Paginator) fetchPage(ctx context.Context) ([]supplier.RawRecord, error) {
	if p.mode == PaginationAuto {
		return p.resolveAuto(ctx)
	}
	return p.fetchWithRetry(ctx, p.request())
}

// resolveAuto probes the candidate modes with the first page request and
// locks onto the first one that answers with records.
func (p *Paginator) resolveAuto(ctx context.Context) ([]supplier.RawRecord, error) {
	var lastErr error
	for _, mode := range []PaginationMode{PaginationPage, PaginationSinceID, PaginationOffset} {
		p.mode = mode
		records, err := p.fetchWithRetry(ctx, p.request())
		if err != nil {
			lastErr = err
			continue
		}
		if len(records) > 0 {
			return records, nil
		}
	}
	p.mode = PaginationAuto
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (p *Paginator) request() PageRequest {
	return PageRequest{
		Mode:     p.mode,
		Page:     p.page,
		Offset:   p.offset,
		SinceID:  p.sinceID,
		PageSize: p.cfg.PageSize,
	}
}

func (p *Paginator) fetchWithRetry(ctx context.Context, req PageRequest) ([]supplier.RawRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		records, err := p.fetch(ctx, req)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < p.cfg.RetryAttempts {
			backoff := p.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: page %d after %d attempts: %v",
		supplier.ErrPageRetriesExceeded, req.Page, p.cfg.RetryAttempts, lastErr)
}

// markSeen records the keys on this page and reports whether any record was
// new. Records with no extractable key always count as new.
func (p *Paginator) markSeen(records []supplier.RawRecord) bool {
	fresh := false
	for _, r := range records {
		key := r.Key(p.cfg.KeyFields...)
		if key == "" {
			fresh = true
			continue
		}
		if _, dup := p.seen[key]; !dup {
			fresh = true
			p.seen[key] = struct{}{}
		}
	}
	return fresh
}

// advance moves the cursor past the records just returned.
func (p *Paginator) advance(records []supplier.RawRecord) {
	p.page++
	p.offset += len(records)
	last := records[len(records)-1]
	if id := last.String("id"); id != "" {
		p.sinceID = id
	} else if key := last.Key(p.cfg.KeyFields...); key != "" {
		p.sinceID = key
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
