package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var supplierValidator = validator.New()

// CategoryRule maps one supplier keyword to a canonical catalog category.
// Rules apply in declaration order; put specific keywords first.
type CategoryRule struct {
	Keyword  string `mapstructure:"keyword" validate:"required"`
	Category string `mapstructure:"category" validate:"required"`
}

// PricingConfig parameterizes the cost-to-selling-price computation for one
// supplier. Zero values with no flags set mean retail passthrough.
type PricingConfig struct {
	VATPercentage             float64 `mapstructure:"vat_percentage" validate:"gte=0,lte=100"`
	MarginPercentage          float64 `mapstructure:"margin_percentage" validate:"gte=0,lte=500"`
	ApplyVATToCost            bool    `mapstructure:"apply_vat_to_cost"`
	ApplyMarginToVATInclusive bool    `mapstructure:"apply_margin_to_vat_inclusive"`
}

// ScrapeSelectors holds the CSS selectors a scraper connector uses against
// rendered pages.
type ScrapeSelectors struct {
	ProductLink string `mapstructure:"product_link"`
	Name        string `mapstructure:"name"`
	Price       string `mapstructure:"price"`
	Stock       string `mapstructure:"stock"`
	SKU         string `mapstructure:"sku"`
	SpecRow     string `mapstructure:"spec_row"`
	Image       string `mapstructure:"image"`
	Dismiss     string `mapstructure:"dismiss"`
}

// SupplierConfig defines one upstream source: how to reach it, how to page
// through it, and how to normalize its records.
type SupplierConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	Type   string `mapstructure:"type" validate:"required,oneof=api feed scraper manual"`
	Active bool   `mapstructure:"active"`

	// API connector settings.
	BaseURL      string `mapstructure:"base_url" validate:"omitempty,url"`
	ProductsPath string `mapstructure:"products_path"`
	Token        string `mapstructure:"token"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`

	// Feed connector settings.
	FeedURL     string `mapstructure:"feed_url" validate:"omitempty,url"`
	FeedFormat  string `mapstructure:"feed_format" validate:"omitempty,oneof=json xml"`
	ItemElement string `mapstructure:"item_element"`

	// Scraper connector settings.
	CategoryURLs []string        `mapstructure:"category_urls" validate:"dive,url"`
	Selectors    ScrapeSelectors `mapstructure:"selectors"`

	// Pagination settings shared by API and feed connectors.
	Pagination     string        `mapstructure:"pagination" validate:"omitempty,oneof=page since_id offset auto"`
	PageSize       int           `mapstructure:"page_size" validate:"gte=0,lte=500"`
	PageCeiling    int           `mapstructure:"page_ceiling" validate:"gte=0"`
	InterPageDelay time.Duration `mapstructure:"inter_page_delay"`
	RetryAttempts  int           `mapstructure:"retry_attempts" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`

	// Record extraction settings.
	RecordsField string   `mapstructure:"records_field"`
	KeyFields    []string `mapstructure:"key_fields"`

	// Transform settings.
	Pricing          PricingConfig     `mapstructure:"pricing"`
	Categories       []CategoryRule    `mapstructure:"categories"`
	DefaultCategory  string            `mapstructure:"default_category"`
	PlaceholderStock int               `mapstructure:"placeholder_stock" validate:"gte=0"`
	FieldMap         map[string]string `mapstructure:"field_map"`
}

// applyDefaults fills per-supplier defaults.
func (s *SupplierConfig) applyDefaults() {
	if s.Pagination == "" {
		s.Pagination = "auto"
	}
	if s.PageSize == 0 {
		s.PageSize = 50
	}
	if s.PageCeiling == 0 {
		s.PageCeiling = 100
	}
	if s.InterPageDelay == 0 {
		s.InterPageDelay = 500 * time.Millisecond
	}
	if s.RetryAttempts == 0 {
		s.RetryAttempts = 3
	}
	if s.RetryBaseDelay == 0 {
		s.RetryBaseDelay = time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.RecordsField == "" {
		s.RecordsField = "products"
	}
	if len(s.KeyFields) == 0 {
		s.KeyFields = []string{"sku", "id", "model"}
	}
	if s.DefaultCategory == "" {
		s.DefaultCategory = "Uncategorised"
	}
	if s.PlaceholderStock == 0 {
		s.PlaceholderStock = 10
	}
	if s.ProductsPath == "" {
		s.ProductsPath = "/products"
	}
	if s.FeedFormat == "" {
		s.FeedFormat = "json"
	}
	if s.ItemElement == "" {
		s.ItemElement = "product"
	}
}

// Validate checks the supplier definition with struct tags plus the
// per-type requirements the tags cannot express.
func (s *SupplierConfig) Validate() error {
	if err := supplierValidator.Struct(s); err != nil {
		return err
	}
	switch s.Type {
	case "api":
		if s.BaseURL == "" {
			return errMissingField("base_url")
		}
	case "feed":
		if s.FeedURL == "" {
			return errMissingField("feed_url")
		}
	case "scraper":
		if len(s.CategoryURLs) == 0 {
			return errMissingField("category_urls")
		}
	}
	return nil
}

type missingFieldError struct{ field string }

func (e missingFieldError) Error() string {
	return "missing required field " + e.field
}

func errMissingField(field string) error {
	return missingFieldError{field: field}
}
