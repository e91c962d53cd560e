package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 32 << 20

// ---------------------------------------------------------------------------
// API Connector
// ---------------------------------------------------------------------------

// APIConfig configures a vendor REST API connector.
type APIConfig struct {
	Name         string
	BaseURL      string
	ProductsPath string

	// Token is sent as a Bearer credential; when empty, Username/Password
	// are sent as HTTP basic auth.
	Token    string
	Username string
	Password string

	Pagination     PaginationMode
	PageSize       int
	PageCeiling    int
	InterPageDelay time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Timeout        time.Duration

	// RecordsField names the array inside an enveloped JSON response.
	// Top-level array responses ignore it.
	RecordsField string
	KeyFields    []string
}

// APIConnector fetches catalog records from an authenticated vendor REST API.
// For since_id suppliers it remembers the cursor a completed run ended on, so
// the next run fetches only records published after it; a full sync discards
// the cursor and walks the catalog from the beginning.
type APIConnector struct {
	cfg    APIConfig
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	cursor string
}

var _ supplier.Connector = (*APIConnector)(nil)

// NewAPIConnector validates the configuration and builds the connector.
// Missing URLs or credentials surface here, not at fetch time.
func NewAPIConnector(cfg APIConfig, logger *zap.Logger) (*APIConnector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: supplier %q", supplier.ErrMissingBaseURL, cfg.Name)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("supplier %q: invalid base URL: %w", cfg.Name, err)
	}
	if cfg.Token == "" && (cfg.Username == "" || cfg.Password == "") {
		return nil, fmt.Errorf("%w: supplier %q", supplier.ErrMissingCredentials, cfg.Name)
	}
	if cfg.ProductsPath == "" {
		cfg.ProductsPath = "/products"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &APIConnector{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("api").With(zap.String("supplier", cfg.Name)),
	}, nil
}

// SupplierInfo implements supplier.Connector.
func (c *APIConnector) SupplierInfo() supplier.SupplierInfo {
	return supplier.SupplierInfo{Name: c.cfg.Name, Type: supplier.ConnectorTypeAPI}
}

// TestConnection requests a single record and reports reachability. Network
// failures and auth rejections come back as false, not as an error.
func (c *APIConnector) TestConnection(ctx context.Context) (bool, error) {
	if _, err := c.fetchPage(ctx, PageRequest{Mode: PaginationPage, Page: 1, PageSize: 1}); err != nil {
		c.logger.Debug("connection test failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// FetchProducts implements supplier.Connector. Incremental since_id runs
// resume from the cursor saved by the previous completed run; opts.FullSync
// ignores it.
func (c *APIConnector) FetchProducts(_ context.Context, opts supplier.FetchOptions) (supplier.PageIterator, error) {
	var seed string
	if c.cfg.Pagination == PaginationSinceID && !opts.FullSync {
		c.mu.Lock()
		seed = c.cursor
		c.mu.Unlock()
	}
	p := NewPaginator(PaginatorConfig{
		Mode:           c.cfg.Pagination,
		PageSize:       c.cfg.PageSize,
		PageCeiling:    c.cfg.PageCeiling,
		InterPageDelay: c.cfg.InterPageDelay,
		RetryAttempts:  c.cfg.RetryAttempts,
		RetryBaseDelay: c.cfg.RetryBaseDelay,
		KeyFields:      c.cfg.KeyFields,
		Limit:          opts.Limit,
		SeedSinceID:    seed,
	}, c.fetchPage)
	if c.cfg.Pagination != PaginationSinceID {
		return p, nil
	}
	return &cursorIterator{Paginator: p, save: c.saveCursor}, nil
}

// saveCursor records where the last completed since_id walk ended.
func (c *APIConnector) saveCursor(cursor string) {
	if cursor == "" {
		return
	}
	c.mu.Lock()
	c.cursor = cursor
	c.mu.Unlock()
}

// cursorIterator saves the paginator's since_id cursor once the page
// sequence is exhausted. Runs that fail or are cancelled mid-walk never
// reach exhaustion, so a later incremental run refetches their tail.
type cursorIterator struct {
	*Paginator
	save func(string)
}

func (it *cursorIterator) Next(ctx context.Context) (*supplier.RawPage, error) {
	page, err := it.Paginator.Next(ctx)
	if err == nil && page == nil {
		it.save(it.Cursor())
	}
	return page, err
}

// fetchPage performs one GET against the products endpoint.
func (c *APIConnector) fetchPage(ctx context.Context, req PageRequest) ([]supplier.RawRecord, error) {
	u, err := c.pageURL(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrTransport, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	} else {
		httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", supplier.ErrTransport, resp.StatusCode, u)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrTransport, err)
	}
	return decodeJSONRecords(body, c.cfg.RecordsField)
}

// pageURL builds the products URL with the cursor parameters for req.
func (c *APIConnector) pageURL(req PageRequest) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.ProductsPath)
	if err != nil {
		return "", fmt.Errorf("supplier %q: invalid products URL: %w", c.cfg.Name, err)
	}
	q := u.Query()
	switch req.Mode {
	case PaginationSinceID:
		q.Set("limit", strconv.Itoa(req.PageSize))
		if req.SinceID != "" {
			q.Set("since_id", req.SinceID)
		}
	case PaginationOffset:
		q.Set("limit", strconv.Itoa(req.PageSize))
		q.Set("offset", strconv.Itoa(req.Offset))
	default:
		q.Set("page", strconv.Itoa(req.Page))
		q.Set("page_size", strconv.Itoa(req.PageSize))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---------------------------------------------------------------------------
// JSON decoding shared by API and feed connectors
// ---------------------------------------------------------------------------

// decodeJSONRecords accepts either a top-level JSON array of objects or an
// object envelope holding the array under recordsField.
func decodeJSONRecords(body []byte, recordsField string) ([]supplier.RawRecord, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty response body", supplier.ErrInvalidResponse)
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []map[string]any
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", supplier.ErrInvalidResponse, err)
		}
		return toRawRecords(items), nil
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrInvalidResponse, err)
	}
	raw, ok := envelope[recordsField]
	if !ok {
		return nil, fmt.Errorf("%w: response has no %q field", supplier.ErrInvalidResponse, recordsField)
	}
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an array", supplier.ErrInvalidResponse, recordsField)
	}

	records := make([]supplier.RawRecord, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, supplier.RawRecord(m))
		}
	}
	return records, nil
}

func toRawRecords(items []map[string]any) []supplier.RawRecord {
	records := make([]supplier.RawRecord, 0, len(items))
	for _, m := range items {
		records = append(records, supplier.RawRecord(m))
	}
	return records
}
