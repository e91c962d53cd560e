package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Sync      SyncConfig
	Browser   BrowserConfig
	Suppliers []SupplierConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
}

// RedisConfig holds Redis connection settings for the run-lock backend.
// Leave Host empty to use in-process locks instead.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration for the admin surface.
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SyncConfig holds sync engine configuration.
type SyncConfig struct {
	// Workers bounds the per-page record processing pool.
	Workers int
	// RunLockTTL caps how long a per-supplier run lock can be held.
	RunLockTTL time.Duration
	// SchedulerEnabled turns the periodic sync-all scheduler on.
	SchedulerEnabled bool
	// SchedulerInterval is how often all active suppliers are enqueued.
	SchedulerInterval time.Duration
	// MaxConcurrentJobs bounds concurrent supplier syncs in the scheduler.
	MaxConcurrentJobs int
	// JobTimeout caps one supplier's sync run.
	JobTimeout time.Duration
	// RetryAttempts is the scheduler's retry budget for a failed job.
	RetryAttempts int
	// RetryDelay is the base delay between scheduler retries.
	RetryDelay time.Duration
}

// BrowserConfig holds headless-browser settings for scraper connectors.
type BrowserConfig struct {
	// RemoteURL points at a remote Chrome instance; empty launches locally.
	RemoteURL string
	// NoSandbox is required when running as root in containers.
	NoSandbox bool
	// ActionTimeout caps each navigation or extraction step.
	ActionTimeout time.Duration
}

// Load reads configuration from config.toml and SYNC_-prefixed environment
// variables. Env vars win over the file; built-in defaults fill the rest.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Sync: SyncConfig{
			Workers:           v.GetInt("sync.workers"),
			RunLockTTL:        v.GetDuration("sync.run_lock_ttl"),
			SchedulerEnabled:  v.GetBool("sync.scheduler_enabled"),
			SchedulerInterval: v.GetDuration("sync.scheduler_interval"),
			MaxConcurrentJobs: v.GetInt("sync.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("sync.job_timeout"),
			RetryAttempts:     v.GetInt("sync.retry_attempts"),
			RetryDelay:        v.GetDuration("sync.retry_delay"),
		},
		Browser: BrowserConfig{
			RemoteURL:     v.GetString("browser.remote_url"),
			NoSandbox:     v.GetBool("browser.no_sandbox"),
			ActionTimeout: v.GetDuration("browser.action_timeout"),
		},
	}

	if err := v.UnmarshalKey("suppliers", &cfg.Suppliers); err != nil {
		return nil, fmt.Errorf("error parsing supplier definitions: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for empty config fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalog-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "catalog"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.RunLockTTL == 0 {
		cfg.Sync.RunLockTTL = 30 * time.Minute
	}
	if cfg.Sync.SchedulerInterval == 0 {
		cfg.Sync.SchedulerInterval = time.Hour
	}
	if cfg.Sync.MaxConcurrentJobs == 0 {
		cfg.Sync.MaxConcurrentJobs = 3
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 30 * time.Minute
	}
	if cfg.Sync.RetryAttempts == 0 {
		cfg.Sync.RetryAttempts = 2
	}
	if cfg.Sync.RetryDelay == 0 {
		cfg.Sync.RetryDelay = time.Minute
	}
	if cfg.Browser.ActionTimeout == 0 {
		cfg.Browser.ActionTimeout = 30 * time.Second
	}

	for i := range cfg.Suppliers {
		cfg.Suppliers[i].applyDefaults()
	}
}

// validate performs validation on the configuration.
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	seen := make(map[string]struct{}, len(c.Suppliers))
	for i := range c.Suppliers {
		s := &c.Suppliers[i]
		if err := s.Validate(); err != nil {
			return fmt.Errorf("supplier %q: %w", s.Name, err)
		}
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate supplier name %q", s.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// DSN returns the database connection string with escaped values.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for the Redis client.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis backend is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}
