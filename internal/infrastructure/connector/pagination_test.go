package connector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

func fastRetry(cfg PaginatorConfig) PaginatorConfig {
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

func makeRecords(start, n int) []supplier.RawRecord {
	records := make([]supplier.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, supplier.RawRecord{
			"sku": fmt.Sprintf("SKU-%04d", start+i),
			"id":  fmt.Sprintf("%d", start+i),
		})
	}
	return records
}

func drain(t *testing.T, it supplier.PageIterator) []*supplier.RawPage {
	t.Helper()
	var pages []*supplier.RawPage
	for {
		page, err := it.Next(context.Background())
		require.NoError(t, err)
		if page == nil {
			return pages
		}
		pages = append(pages, page)
	}
}

func TestPaginator_PageModeStopsOnEmptyPage(t *testing.T) {
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationPage, PageSize: 3}),
		func(_ context.Context, req PageRequest) ([]supplier.RawRecord, error) {
			if req.Page > 2 {
				return nil, nil
			}
			return makeRecords((req.Page-1)*3, 3), nil
		})

	pages := drain(t, p)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 2, pages[1].Number)
	assert.Len(t, pages[0].Records, 3)

	// Exhausted iterators stay exhausted.
	page, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestPaginator_PageCeiling(t *testing.T) {
	calls := 0
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationPage, PageSize: 2, PageCeiling: 3}),
		func(_ context.Context, req PageRequest) ([]supplier.RawRecord, error) {
			calls++
			return makeRecords(req.Page*100, 2), nil
		})

	pages := drain(t, p)
	assert.Len(t, pages, 3, "runaway source must stop at the ceiling")
	assert.Equal(t, 3, calls)
}

func TestPaginator_DuplicatePageTerminates(t *testing.T) {
	// Some APIs keep answering with the last page forever.
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationPage, PageSize: 2}),
		func(_ context.Context, _ PageRequest) ([]supplier.RawRecord, error) {
			return makeRecords(0, 2), nil
		})

	pages := drain(t, p)
	assert.Len(t, pages, 1)
}

func TestPaginator_SinceIDCursorAdvances(t *testing.T) {
	var cursors []string
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationSinceID, PageSize: 2}),
		func(_ context.Context, req PageRequest) ([]supplier.RawRecord, error) {
			cursors = append(cursors, req.SinceID)
			switch req.SinceID {
			case "":
				return makeRecords(1, 2), nil // ids 1, 2
			case "2":
				return makeRecords(3, 2), nil // ids 3, 4
			default:
				return nil, nil
			}
		})

	pages := drain(t, p)
	require.Len(t, pages, 2)
	assert.Equal(t, []string{"", "2", "4"}, cursors)
}

func TestPaginator_OffsetAdvancesByRecordCount(t *testing.T) {
	var offsets []int
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationOffset, PageSize: 3}),
		func(_ context.Context, req PageRequest) ([]supplier.RawRecord, error) {
			offsets = append(offsets, req.Offset)
			if req.Offset >= 6 {
				return nil, nil
			}
			return makeRecords(req.Offset, 3), nil
		})

	pages := drain(t, p)
	require.Len(t, pages, 2)
	assert.Equal(t, []int{0, 3, 6}, offsets)
}

func TestPaginator_LimitTruncatesLastPage(t *testing.T) {
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationPage, PageSize: 3, Limit: 5}),
		func(_ context.Context, req PageRequest) ([]supplier.RawRecord, error) {
			return makeRecords(req.Page*10, 3), nil
		})

	pages := drain(t, p)
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Records, 3)
	assert.Len(t, pages[1].Records, 2)
}

func TestPaginator_RetryExhaustion(t *testing.T) {
	calls := 0
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationPage, RetryAttempts: 3}),
		func(_ context.Context, _ PageRequest) ([]supplier.RawRecord, error) {
			calls++
			return nil, fmt.Errorf("%w: HTTP 503", supplier.ErrTransport)
		})

	_, err := p.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, supplier.ErrPageRetriesExceeded)
	assert.Equal(t, 3, calls)

	// A failed iterator is exhausted, not retried.
	page, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestPaginator_RetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationPage, RetryAttempts: 3}),
		func(_ context.Context, req PageRequest) ([]supplier.RawRecord, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			if req.Page > 1 {
				return nil, nil
			}
			return makeRecords(0, 2), nil
		})

	page, err := p.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Len(t, page.Records, 2)
}

func TestPaginator_AutoLocksOntoFirstWorkingMode(t *testing.T) {
	var modes []PaginationMode
	p := NewPaginator(fastRetry(PaginatorConfig{Mode: PaginationAuto, PageSize: 2, RetryAttempts: 1}),
		func(_ context.Context, req PageRequest) ([]supplier.RawRecord, error) {
			modes = append(modes, req.Mode)
			if req.Mode != PaginationSinceID {
				return nil, nil // page and offset probes come back empty
			}
			if req.SinceID == "" {
				return makeRecords(1, 2), nil
			}
			return nil, nil
		})

	pages := drain(t, p)
	require.Len(t, pages, 1)
	assert.Equal(t, PaginationPage, modes[0], "page mode is probed first")
	assert.Equal(t, PaginationSinceID, modes[1])
	assert.Equal(t, PaginationSinceID, modes[len(modes)-1], "locked mode is reused")
}

func TestPaginator_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPaginator(PaginatorConfig{Mode: PaginationPage, InterPageDelay: time.Second},
		func(_ context.Context, _ PageRequest) ([]supplier.RawRecord, error) {
			t.Fatal("fetch must not run after cancellation")
			return nil, nil
		})

	_, err := p.Next(ctx)
	assert.Error(t, err)
}
