package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "catalog-sync", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Sync.RunLockTTL)
	assert.Equal(t, 3, cfg.Sync.MaxConcurrentJobs)
	assert.Equal(t, 30*time.Second, cfg.Browser.ActionTimeout)
}

func TestValidate_IdleExceedsOpen(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Database.MaxIdleConns = 50
	cfg.Database.MaxOpenConns = 10
	assert.Error(t, cfg.validate())
}

func TestValidate_ProductionHardening(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.App.Env = "production"
	assert.Error(t, cfg.validate(), "missing password must fail in production")

	cfg.Database.Password = "secret"
	assert.Error(t, cfg.validate(), "sslmode=disable must fail in production")

	cfg.Database.SSLMode = "require"
	assert.NoError(t, cfg.validate())
}

func TestValidate_DuplicateSupplierNames(t *testing.T) {
	cfg := &Config{
		Suppliers: []SupplierConfig{
			{Name: "Nology", Type: "api", BaseURL: "https://api.nology.example"},
			{Name: "nology", Type: "feed", FeedURL: "https://feed.example/products.json"},
		},
	}
	applyDefaults(cfg)
	assert.Error(t, cfg.validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "sync",
		Password: "p@ss/word",
		DBName:   "catalog",
		SSLMode:  "require",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	assert.NotContains(t, dsn, "p@ss/word", "password must be escaped")
}

func TestSupplierConfig_Validate(t *testing.T) {
	valid := func() SupplierConfig {
		s := SupplierConfig{
			Name:    "Nology",
			Type:    "api",
			BaseURL: "https://api.nology.example",
		}
		s.applyDefaults()
		return s
	}

	t.Run("valid api supplier", func(t *testing.T) {
		s := valid()
		require.NoError(t, s.Validate())
	})

	t.Run("api without base url", func(t *testing.T) {
		s := valid()
		s.BaseURL = ""
		assert.Error(t, s.Validate())
	})

	t.Run("feed without feed url", func(t *testing.T) {
		s := valid()
		s.Type = "feed"
		s.BaseURL = ""
		assert.Error(t, s.Validate())
	})

	t.Run("scraper without category urls", func(t *testing.T) {
		s := valid()
		s.Type = "scraper"
		assert.Error(t, s.Validate())
	})

	t.Run("manual needs no endpoint", func(t *testing.T) {
		s := valid()
		s.Type = "manual"
		s.BaseURL = ""
		assert.NoError(t, s.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		s := valid()
		s.Type = "carrier-pigeon"
		assert.Error(t, s.Validate())
	})
}

func TestSupplierConfig_Defaults(t *testing.T) {
	s := SupplierConfig{Name: "X", Type: "feed", FeedURL: "https://x.example/feed.xml"}
	s.applyDefaults()

	assert.Equal(t, "auto", s.Pagination)
	assert.Equal(t, 50, s.PageSize)
	assert.Equal(t, 100, s.PageCeiling)
	assert.Equal(t, 500*time.Millisecond, s.InterPageDelay)
	assert.Equal(t, 3, s.RetryAttempts)
	assert.Equal(t, []string{"sku", "id", "model"}, s.KeyFields)
	assert.Equal(t, 10, s.PlaceholderStock)
}
