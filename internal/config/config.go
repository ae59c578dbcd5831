package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable pointing at an optional config file
const ConfigFileEnv = "MAILCORE_CONFIG"

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL  string
	TxMaxRetries int
	TxBackoff    time.Duration

	// Server ports
	APIPort int

	// SMTP ingestion
	SMTPAddr            string
	SMTPDomain          string
	SMTPMaxMessageBytes int64
	SMTPMaxRecipients   int
	SMTPAllowInsecure   bool
	SMTPTLSCert         string
	SMTPTLSKey          string

	// Storage
	AttachmentStoragePath string

	// Logging
	LogLevel string

	// Security
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int

	// Background work
	WorkerPoolSize int
	JobTimeout     time.Duration
	GCRetention    time.Duration
	GCSchedule     string
	RecalcSchedule string
	RuleCacheTTL   time.Duration
	EventQueueSize int
}

var defaults = map[string]interface{}{
	"api_port":                8080,
	"tx_max_retries":          3,
	"tx_backoff":              "50ms",
	"smtp_addr":               ":2525",
	"smtp_domain":             "localhost",
	"smtp_max_message_size":   25 * 1024 * 1024,
	"smtp_max_recipients":     100,
	"smtp_allow_insecure":     false,
	"attachment_storage_path": "./attachments",
	"log_level":               "info",
	"app_env":                 "development",
	"rate_limit_requests":     10.0,
	"rate_limit_burst":        20,
	"worker_pool_size":        4,
	"job_timeout":             "30m",
	"gc_retention":            "720h",
	"gc_schedule":             "@every 1h",
	"recalc_schedule":         "@daily",
	"rule_cache_ttl":          "5m",
	"event_queue_size":        1024,
}

var keys = []string{
	"database_url", "smtp_tls_cert", "smtp_tls_key", "api_key", "allowed_origins",
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	for k := range defaults {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, err
		}
	}
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads configuration from environment variables and the optional
// file named by MAILCORE_CONFIG. Environment variables win over the file.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:           v.GetString("database_url"),
		TxMaxRetries:          v.GetInt("tx_max_retries"),
		APIPort:               v.GetInt("api_port"),
		SMTPAddr:              v.GetString("smtp_addr"),
		SMTPDomain:            v.GetString("smtp_domain"),
		SMTPMaxMessageBytes:   v.GetInt64("smtp_max_message_size"),
		SMTPMaxRecipients:     v.GetInt("smtp_max_recipients"),
		SMTPAllowInsecure:     v.GetBool("smtp_allow_insecure"),
		SMTPTLSCert:           v.GetString("smtp_tls_cert"),
		SMTPTLSKey:            v.GetString("smtp_tls_key"),
		AttachmentStoragePath: v.GetString("attachment_storage_path"),
		LogLevel:              v.GetString("log_level"),
		APIKey:                v.GetString("api_key"),
		AllowedOrigins:        v.GetString("allowed_origins"),
		AppEnv:                v.GetString("app_env"),
		RateLimitRequests:     v.GetFloat64("rate_limit_requests"),
		RateLimitBurst:        v.GetInt("rate_limit_burst"),
		WorkerPoolSize:        v.GetInt("worker_pool_size"),
		GCSchedule:            v.GetString("gc_schedule"),
		RecalcSchedule:        v.GetString("recalc_schedule"),
		EventQueueSize:        v.GetInt("event_queue_size"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"tx_backoff", &cfg.TxBackoff},
		{"job_timeout", &cfg.JobTimeout},
		{"gc_retention", &cfg.GCRetention},
		{"rule_cache_ttl", &cfg.RuleCacheTTL},
	}
	for _, d := range durations {
		val, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("%s must be a valid duration: %w", strings.ToUpper(d.key), err)
		}
		*d.dst = val
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Origins splits AllowedOrigins into trimmed entries
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL cannot be empty"))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("APIPort must be between 1 and 65535"))
	}
	if c.SMTPAddr == "" {
		errs = append(errs, fmt.Errorf("SMTPAddr cannot be empty"))
	}
	if c.AttachmentStoragePath == "" {
		errs = append(errs, fmt.Errorf("AttachmentStoragePath cannot be empty"))
	}
	if c.TxMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("TxMaxRetries cannot be negative"))
	}
	if c.WorkerPoolSize <= 0 {
		errs = append(errs, fmt.Errorf("WorkerPoolSize must be positive"))
	}
	if c.EventQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("EventQueueSize must be positive"))
	}
	if c.GCRetention <= 0 {
		errs = append(errs, fmt.Errorf("GCRetention must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.SMTPAllowInsecure {
		return fmt.Errorf("SMTP_ALLOW_INSECURE is not allowed in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.String("smtp_addr", c.SMTPAddr),
		slog.String("smtp_domain", c.SMTPDomain),
		slog.String("storage_path", c.AttachmentStoragePath),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.Int("tx_max_retries", c.TxMaxRetries),
		slog.Int("worker_pool_size", c.WorkerPoolSize),
		slog.Duration("job_timeout", c.JobTimeout),
		slog.Duration("gc_retention", c.GCRetention),
		slog.String("gc_schedule", c.GCSchedule),
		slog.String("recalc_schedule", c.RecalcSchedule),
	)
}
