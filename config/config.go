package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds client configuration.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	CoverBaseURL    string        `yaml:"cover_base_url"`
	Subject         string        `yaml:"subject"`
	PageSize        int           `yaml:"page_size"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
	UserAgent       string        `yaml:"user_agent"`
	CacheSize       int           `yaml:"cache_size"`
	OutputFile      string        `yaml:"output_file"`
	OutputFormat    string        `yaml:"output_format"` // text, csv, json, or dual
	Verbose         bool          `yaml:"verbose"`
	MetricsAddr     string        `yaml:"metrics_addr"`
}

// DefaultConfig returns the defaults for the public Open Library host.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://openlibrary.org",
		CoverBaseURL:    "https://covers.openlibrary.org",
		Subject:         "love",
		PageSize:        10,
		Timeout:         10 * time.Second,
		MaxRetries:      0,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgent:       "go-openlibrary-books/1.0",
		CacheSize:       128,
		OutputFile:      "",
		OutputFormat:    "text",
		Verbose:         false,
		MetricsAddr:     "",
	}
}

// LoadFile overlays the YAML file at path on the defaults. An empty path
// returns the defaults unchanged.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateURL("base URL", c.BaseURL); err != nil {
		return err
	}
	if err := validateURL("cover base URL", c.CoverBaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("subject cannot be empty")
	}
	if strings.Contains(c.Subject, "/") {
		return fmt.Errorf("subject cannot contain '/'")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	switch c.OutputFormat {
	case "text", "csv", "json", "dual":
	default:
		return fmt.Errorf("output format must be text, csv, json, or dual")
	}
	if c.OutputFormat != "text" && c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty for %s output", c.OutputFormat)
	}

	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
