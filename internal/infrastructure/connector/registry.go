package connector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/config"
)

// Build constructs the connector for one configured supplier. Manual
// suppliers have no upstream to connect to and report ErrConnectorNotFound.
func Build(cfg config.SupplierConfig, browser config.BrowserConfig, logger *zap.Logger) (supplier.Connector, error) {
	switch supplier.ConnectorType(cfg.Type) {
	case supplier.ConnectorTypeAPI:
		return NewAPIConnector(APIConfig{
			Name:           cfg.Name,
			BaseURL:        cfg.BaseURL,
			ProductsPath:   cfg.ProductsPath,
			Token:          cfg.Token,
			Username:       cfg.Username,
			Password:       cfg.Password,
			Pagination:     PaginationMode(cfg.Pagination),
			PageSize:       cfg.PageSize,
			PageCeiling:    cfg.PageCeiling,
			InterPageDelay: cfg.InterPageDelay,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			Timeout:        cfg.Timeout,
			RecordsField:   cfg.RecordsField,
			KeyFields:      cfg.KeyFields,
		}, logger)

	case supplier.ConnectorTypeFeed:
		return NewFeedConnector(FeedConfig{
			Name:           cfg.Name,
			FeedURL:        cfg.FeedURL,
			Format:         FeedFormat(cfg.FeedFormat),
			RecordsField:   cfg.RecordsField,
			ItemElement:    cfg.ItemElement,
			KeyFields:      cfg.KeyFields,
			Paginated:      cfg.Pagination == string(PaginationPage),
			PageSize:       cfg.PageSize,
			PageCeiling:    cfg.PageCeiling,
			InterPageDelay: cfg.InterPageDelay,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			Timeout:        cfg.Timeout,
		}, logger)

	case supplier.ConnectorTypeScraper:
		return NewScraperConnector(ScraperConfig{
			Name:         cfg.Name,
			CategoryURLs: cfg.CategoryURLs,
			Selectors: ScrapeSelectors{
				ProductLink: cfg.Selectors.ProductLink,
				Name:        cfg.Selectors.Name,
				Price:       cfg.Selectors.Price,
				Stock:       cfg.Selectors.Stock,
				SKU:         cfg.Selectors.SKU,
				SpecRow:     cfg.Selectors.SpecRow,
				Image:       cfg.Selectors.Image,
				Dismiss:     cfg.Selectors.Dismiss,
			},
			RemoteURL:     browser.RemoteURL,
			NoSandbox:     browser.NoSandbox,
			ActionTimeout: browser.ActionTimeout,
		}, logger)

	case supplier.ConnectorTypeManual:
		return nil, fmt.Errorf("%w: %q is a manual supplier", supplier.ErrConnectorNotFound, cfg.Name)

	default:
		return nil, fmt.Errorf("%w: unknown connector type %q for %q",
			supplier.ErrConnectorNotFound, cfg.Type, cfg.Name)
	}
}

// BuildAll constructs connectors for every active non-manual supplier,
// keyed by supplier name.
func BuildAll(suppliers []config.SupplierConfig, browser config.BrowserConfig, logger *zap.Logger) (map[string]supplier.Connector, error) {
	connectors := make(map[string]supplier.Connector, len(suppliers))
	for _, cfg := range suppliers {
		if !cfg.Active || supplier.ConnectorType(cfg.Type) == supplier.ConnectorTypeManual {
			continue
		}
		conn, err := Build(cfg, browser, logger)
		if err != nil {
			return nil, err
		}
		connectors[cfg.Name] = conn
	}
	return connectors, nil
}
