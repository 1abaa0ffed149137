package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "invalid cover url",
			mutate: func(cfg *Config) {
				cfg.CoverBaseURL = "covers"
			},
			wantErr: "cover base URL",
		},
		{
			name: "subject with slash",
			mutate: func(cfg *Config) {
				cfg.Subject = "love/hate"
			},
			wantErr: "subject",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "csv without file",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "csv"
			},
			wantErr: "output file",
		},
		{
			name: "zero cache",
			mutate: func(cfg *Config) {
				cfg.CacheSize = 0
			},
			wantErr: "cache size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.PageSize != 10 || cfg.Subject != "love" {
		t.Fatalf("defaults = %d/%q, want 10/love", cfg.PageSize, cfg.Subject)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.yaml")
	content := "subject: fantasy\ntimeout: 3s\nmax_retries: 2\noutput_format: JSON\noutput_file: out/books.json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Subject != "fantasy" || cfg.Timeout != 3*time.Second || cfg.MaxRetries != 2 {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.OutputFormat != "json" {
		t.Fatalf("output format = %q, want json", cfg.OutputFormat)
	}
	if cfg.BaseURL != "https://openlibrary.org" || cfg.PageSize != 10 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate, got %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("timeout: [not a duration"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadFileEmptyPath(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != DefaultConfig().BaseURL {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
