package connector

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// ---------------------------------------------------------------------------
// Feed Connector
// ---------------------------------------------------------------------------

// FeedFormat identifies a feed's wire encoding.
type FeedFormat string

const (
	FeedFormatJSON FeedFormat = "json"
	FeedFormatXML  FeedFormat = "xml"
)

// FeedConfig configures an unauthenticated product feed connector.
type FeedConfig struct {
	Name    string
	FeedURL string
	Format  FeedFormat

	// RecordsField names the array inside an enveloped JSON feed.
	RecordsField string
	// ItemElement names the per-product element in an XML feed.
	ItemElement string
	KeyFields   []string

	// Paginated JSON feeds (Shopify-style products.json) accept page and
	// limit query parameters. XML feeds are always single-shot.
	Paginated      bool
	PageSize       int
	PageCeiling    int
	InterPageDelay time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

// FeedConnector fetches a public JSON or XML product feed.
type FeedConnector struct {
	cfg    FeedConfig
	client *http.Client
	logger *zap.Logger
}

var _ supplier.Connector = (*FeedConnector)(nil)

// NewFeedConnector validates the configuration and builds the connector.
func NewFeedConnector(cfg FeedConfig, logger *zap.Logger) (*FeedConnector, error) {
	if cfg.FeedURL == "" {
		return nil, fmt.Errorf("%w: supplier %q", supplier.ErrMissingBaseURL, cfg.Name)
	}
	if _, err := url.Parse(cfg.FeedURL); err != nil {
		return nil, fmt.Errorf("supplier %q: invalid feed URL: %w", cfg.Name, err)
	}
	switch cfg.Format {
	case FeedFormatJSON, FeedFormatXML:
	case "":
		cfg.Format = FeedFormatJSON
	default:
		return nil, fmt.Errorf("supplier %q: unknown feed format %q", cfg.Name, cfg.Format)
	}
	if cfg.ItemElement == "" {
		cfg.ItemElement = "product"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FeedConnector{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("feed").With(zap.String("supplier", cfg.Name)),
	}, nil
}

// SupplierInfo implements supplier.Connector.
func (c *FeedConnector) SupplierInfo() supplier.SupplierInfo {
	return supplier.SupplierInfo{Name: c.cfg.Name, Type: supplier.ConnectorTypeFeed}
}

// TestConnection issues a HEAD request against the feed URL.
func (c *FeedConnector) TestConnection(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.FeedURL, nil)
	if err != nil {
		return false, nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("connection test failed", zap.Error(err))
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest, nil
}

// FetchProducts implements supplier.Connector. Paginated JSON feeds walk
// pages like an API; everything else downloads once and yields one page.
func (c *FeedConnector) FetchProducts(ctx context.Context, opts supplier.FetchOptions) (supplier.PageIterator, error) {
	if c.cfg.Format == FeedFormatJSON && c.cfg.Paginated {
		return NewPaginator(PaginatorConfig{
			Mode:           PaginationPage,
			PageSize:       c.cfg.PageSize,
			PageCeiling:    c.cfg.PageCeiling,
			InterPageDelay: c.cfg.InterPageDelay,
			RetryAttempts:  c.cfg.RetryAttempts,
			RetryBaseDelay: c.cfg.RetryBaseDelay,
			KeyFields:      c.cfg.KeyFields,
			Limit:          opts.Limit,
		}, c.fetchJSONPage), nil
	}
	return &singleShotIterator{
		limit: opts.Limit,
		fetch: func(ctx context.Context) ([]supplier.RawRecord, error) {
			return c.download(ctx, c.cfg.FeedURL)
		},
	}, nil
}

// fetchJSONPage fetches one page of a paginated JSON feed.
func (c *FeedConnector) fetchJSONPage(ctx context.Context, req PageRequest) ([]supplier.RawRecord, error) {
	u, err := url.Parse(c.cfg.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("supplier %q: invalid feed URL: %w", c.cfg.Name, err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("limit", strconv.Itoa(req.PageSize))
	u.RawQuery = q.Encode()
	return c.download(ctx, u.String())
}

// download fetches and decodes the feed body.
func (c *FeedConnector) download(ctx context.Context, feedURL string) ([]supplier.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrTransport, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", supplier.ErrTransport, resp.StatusCode, feedURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", supplier.ErrTransport, err)
	}

	if c.cfg.Format == FeedFormatXML {
		return decodeXMLRecords(body, c.cfg.ItemElement)
	}
	return decodeJSONRecords(body, c.cfg.RecordsField)
}

// ---------------------------------------------------------------------------
// Single-shot iterator
// ---------------------------------------------------------------------------

// singleShotIterator yields the whole feed as one page, then nil.
type singleShotIterator struct {
	fetch func(ctx context.Context) ([]supplier.RawRecord, error)
	limit int
	done  bool
}

var _ supplier.PageIterator = (*singleShotIterator)(nil)

func (it *singleShotIterator) Next(ctx context.Context) (*supplier.RawPage, error) {
	if it.done {
		return nil, nil
	}
	it.done = true

	records, err := it.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if it.limit > 0 && len(records) > it.limit {
		records = records[:it.limit]
	}
	return &supplier.RawPage{Number: 1, Records: records}, nil
}

// ---------------------------------------------------------------------------
// XML decoding
// ---------------------------------------------------------------------------

// decodeXMLRecords walks the document and turns every itemElement subtree
// into a flat record. Child elements become keys; repeated children collect
// into a string slice. Attributes on the item element are kept as fields.
func decodeXMLRecords(body []byte, itemElement string) ([]supplier.RawRecord, error) {
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	dec.Strict = false

	var records []supplier.RawRecord
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", supplier.ErrInvalidResponse, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, itemElement) {
			continue
		}
		record, err := decodeXMLItem(dec, start)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// decodeXMLItem reads one item subtree into a record.
func decodeXMLItem(dec *xml.Decoder, start xml.StartElement) (supplier.RawRecord, error) {
	record := make(supplier.RawRecord)
	for _, attr := range start.Attr {
		record[strings.ToLower(attr.Name.Local)] = attr.Value
	}

	var field string
	var text strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated %s element: %v", supplier.ErrInvalidResponse, start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				field = strings.ToLower(t.Name.Local)
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				return record, nil
			}
			if depth == 1 && field != "" {
				setXMLField(record, field, strings.TrimSpace(text.String()))
				field = ""
			}
			depth--
		}
	}
}

// setXMLField stores a field value, collecting repeats into a slice.
func setXMLField(record supplier.RawRecord, field, value string) {
	existing, ok := record[field]
	if !ok {
		record[field] = value
		return
	}
	switch prev := existing.(type) {
	case string:
		record[field] = []string{prev, value}
	case []string:
		record[field] = append(prev, value)
	}
}
