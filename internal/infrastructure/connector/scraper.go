package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

const defaultActionTimeout = 30 * time.Second

// ---------------------------------------------------------------------------
// Scraper Connector
// ---------------------------------------------------------------------------

// ScrapeSelectors are the CSS selectors used against rendered pages.
// ProductLink, Name and Price are required; the rest are optional.
type ScrapeSelectors struct {
	ProductLink string
	Name        string
	Price       string
	Stock       string
	SKU         string
	SpecRow     string
	Image       string
	// Dismiss is clicked once per category page when present, for cookie
	// banners and region dialogs that cover the product grid.
	Dismiss string
}

// ScraperConfig configures a headless-browser scraper connector.
type ScraperConfig struct {
	Name         string
	CategoryURLs []string
	Selectors    ScrapeSelectors

	// RemoteURL points at a remote Chrome instance; empty launches locally.
	RemoteURL string
	// NoSandbox is required when running as root in containers.
	NoSandbox bool
	// ActionTimeout caps each navigation plus extraction step.
	ActionTimeout time.Duration
	// MaxPerCategory caps product pages visited per category; 0 means all.
	MaxPerCategory int
}

// ScraperConnector drives a headless browser over supplier category pages
// and extracts product records from the rendered DOM.
type ScraperConnector struct {
	cfg         ScraperConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

var _ supplier.Connector = (*ScraperConnector)(nil)

// NewScraperConnector validates the configuration and prepares the browser
// allocator. The browser itself is not launched until the first fetch.
func NewScraperConnector(cfg ScraperConfig, logger *zap.Logger) (*ScraperConnector, error) {
	if len(cfg.CategoryURLs) == 0 {
		return nil, fmt.Errorf("%w: supplier %q has no category URLs", supplier.ErrMissingBaseURL, cfg.Name)
	}
	for _, raw := range cfg.CategoryURLs {
		if _, err := url.Parse(raw); err != nil {
			return nil, fmt.Errorf("supplier %q: invalid category URL %q: %w", cfg.Name, raw, err)
		}
	}
	if cfg.Selectors.ProductLink == "" || cfg.Selectors.Name == "" || cfg.Selectors.Price == "" {
		return nil, fmt.Errorf("supplier %q: product_link, name and price selectors are required", cfg.Name)
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}

	c := &ScraperConnector{
		cfg:    cfg,
		logger: logger.Named("scraper").With(zap.String("supplier", cfg.Name)),
	}
	c.initAllocator()
	return c, nil
}

// initAllocator prepares the Chrome allocator context.
func (c *ScraperConnector) initAllocator() {
	if c.cfg.RemoteURL != "" {
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cfg.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
	)
	if c.cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Close releases the browser allocator.
func (c *ScraperConnector) Close() error {
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

// SupplierInfo implements supplier.Connector.
func (c *ScraperConnector) SupplierInfo() supplier.SupplierInfo {
	return supplier.SupplierInfo{Name: c.cfg.Name, Type: supplier.ConnectorTypeScraper}
}

// TestConnection launches a tab and navigates to the first category page.
func (c *ScraperConnector) TestConnection(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	browserCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()

	tabCtx, tabCancel := context.WithTimeout(browserCtx, c.cfg.ActionTimeout)
	defer tabCancel()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(c.cfg.CategoryURLs[0])); err != nil {
		c.logger.Debug("connection test failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// FetchProducts launches the browser and returns an iterator yielding one
// page per category URL. A browser that cannot start is fatal for the run.
func (c *ScraperConnector) FetchProducts(_ context.Context, opts supplier.FetchOptions) (supplier.PageIterator, error) {
	browserCtx, browserCancel := chromedp.NewContext(c.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	startCtx, startCancel := context.WithTimeout(browserCtx, c.cfg.ActionTimeout)
	defer startCancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		return nil, fmt.Errorf("%w: %v", supplier.ErrEngineUnavailable, err)
	}

	return &scrapeIterator{
		connector:     c,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		limit:         opts.Limit,
	}, nil
}

// ---------------------------------------------------------------------------
// Scrape iterator
// ---------------------------------------------------------------------------

// scrapeIterator yields one raw page per category URL and shuts the browser
// down when the last category is done.
type scrapeIterator struct {
	connector     *ScraperConnector
	browserCtx    context.Context
	browserCancel context.CancelFunc
	limit         int
	next          int
	fetched       int
	done          bool
}

var _ supplier.PageIterator = (*scrapeIterator)(nil)

func (it *scrapeIterator) Next(ctx context.Context) (*supplier.RawPage, error) {
	for !it.done {
		if err := ctx.Err(); err != nil {
			it.stop()
			return nil, err
		}
		if it.next >= len(it.connector.cfg.CategoryURLs) {
			it.stop()
			return nil, nil
		}

		categoryURL := it.connector.cfg.CategoryURLs[it.next]
		it.next++

		records, err := it.connector.scrapeCategory(it.browserCtx, categoryURL)
		if err != nil {
			it.stop()
			return nil, fmt.Errorf("%w: category %s: %v", supplier.ErrPageRetriesExceeded, categoryURL, err)
		}
		if len(records) == 0 {
			continue
		}
		if it.limit > 0 && it.fetched+len(records) >= it.limit {
			records = records[:it.limit-it.fetched]
			it.fetched += len(records)
			page := &supplier.RawPage{Number: it.next, Records: records}
			it.stop()
			return page, nil
		}
		it.fetched += len(records)
		return &supplier.RawPage{Number: it.next, Records: records}, nil
	}
	return nil, nil
}

func (it *scrapeIterator) stop() {
	if !it.done {
		it.done = true
		it.browserCancel()
	}
}

// ---------------------------------------------------------------------------
// Page extraction
// ---------------------------------------------------------------------------

// scrapeCategory renders one category page, collects product links, and
// extracts a record per product page.
func (c *ScraperConnector) scrapeCategory(browserCtx context.Context, categoryURL string) ([]supplier.RawRecord, error) {
	links, err := c.collectLinks(browserCtx, categoryURL)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("category rendered",
		zap.String("url", categoryURL),
		zap.Int("products", len(links)))

	if c.cfg.MaxPerCategory > 0 && len(links) > c.cfg.MaxPerCategory {
		links = links[:c.cfg.MaxPerCategory]
	}

	records := make([]supplier.RawRecord, 0, len(links))
	for _, link := range links {
		record, err := c.scrapeProduct(browserCtx, link)
		if err != nil {
			// One broken product page does not abort the category.
			c.logger.Warn("product page failed",
				zap.String("url", link),
				zap.Error(err))
			continue
		}
		record["category_url"] = categoryURL
		records = append(records, record)
	}
	return records, nil
}

// collectLinks navigates to the category page and pulls product page hrefs.
func (c *ScraperConnector) collectLinks(browserCtx context.Context, categoryURL string) ([]string, error) {
	tabCtx, cancel := context.WithTimeout(browserCtx, c.cfg.ActionTimeout)
	defer cancel()

	actions := []chromedp.Action{chromedp.Navigate(categoryURL)}
	if c.cfg.Selectors.Dismiss != "" {
		actions = append(actions, dismissOverlay(c.cfg.Selectors.Dismiss))
	}

	var nodes []*cdp.Node
	actions = append(actions,
		chromedp.WaitReady("body"),
		chromedp.Nodes(c.cfg.Selectors.ProductLink, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, err
	}

	base, err := url.Parse(categoryURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(nodes))
	links := make([]string, 0, len(nodes))
	for _, node := range nodes {
		href := node.AttributeValue("href")
		if href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}
	return links, nil
}

// scrapeProduct renders one product page and extracts its fields.
func (c *ScraperConnector) scrapeProduct(browserCtx context.Context, productURL string) (supplier.RawRecord, error) {
	tabCtx, cancel := context.WithTimeout(browserCtx, c.cfg.ActionTimeout)
	defer cancel()

	var out struct {
		Name   string   `json:"name"`
		Price  string   `json:"price"`
		Stock  string   `json:"stock"`
		SKU    string   `json:"sku"`
		Specs  []string `json:"specs"`
		Images []string `json:"images"`
	}

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(productURL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(c.extractScript(), &out),
	)
	if err != nil {
		return nil, err
	}
	if out.Name == "" {
		return nil, fmt.Errorf("no product name at %s", productURL)
	}

	record := supplier.RawRecord{
		"name":  out.Name,
		"price": out.Price,
		"url":   productURL,
	}
	if out.Stock != "" {
		record["stock"] = out.Stock
	}
	if out.SKU != "" {
		record["sku"] = out.SKU
	}
	if len(out.Images) > 0 {
		record["images"] = out.Images
	}
	if specs := parseSpecRows(out.Specs); len(specs) > 0 {
		record["specifications"] = specs
	}
	return record, nil
}

// extractScript builds the in-page extraction expression from the selectors.
func (c *ScraperConnector) extractScript() string {
	s := c.cfg.Selectors
	return fmt.Sprintf(`(() => {
	const text = sel => {
		if (!sel) return "";
		const el = document.querySelector(sel);
		return el ? el.textContent.trim() : "";
	};
	const list = (sel, attr) => {
		if (!sel) return [];
		return Array.from(document.querySelectorAll(sel))
			.map(el => attr ? (el.getAttribute(attr) || el.src || "") : el.innerText.trim())
			.filter(v => v);
	};
	return {
		name:   text(%q),
		price:  text(%q),
		stock:  text(%q),
		sku:    text(%q),
		specs:  list(%q, null),
		images: list(%q, "src"),
	};
})()`, s.Name, s.Price, s.Stock, s.SKU, s.SpecRow, s.Image)
}

// dismissOverlay clicks the dismiss selector when present and carries on
// silently when it is not.
func dismissOverlay(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		clickCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
		return nil
	})
}

// parseSpecRows splits rendered spec rows into key/value pairs. Rows are
// expected as "Key: Value" or tab separated; rows without a separator are
// dropped.
func parseSpecRows(rows []string) map[string]any {
	specs := make(map[string]any, len(rows))
	for _, row := range rows {
		var key, value string
		if i := strings.IndexByte(row, '\t'); i > 0 {
			key, value = row[:i], row[i+1:]
		} else if i := strings.IndexByte(row, ':'); i > 0 {
			key, value = row[:i], row[i+1:]
		} else {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			specs[key] = value
		}
	}
	return specs
}
