package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Concurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", cfg.Concurrency)
	}

	if cfg.RequestDelay != 1*time.Second {
		t.Errorf("Expected request delay 1s, got %v", cfg.RequestDelay)
	}

	if cfg.RequestTimeout != 20*time.Second {
		t.Errorf("Expected request timeout 20s, got %v", cfg.RequestTimeout)
	}

	if cfg.UserAgent != "PriceTrack/1.0" {
		t.Errorf("Expected user agent 'PriceTrack/1.0', got %s", cfg.UserAgent)
	}

	if cfg.IgnoreRobots {
		t.Errorf("Expected ignore robots false, got %v", cfg.IgnoreRobots)
	}

	if cfg.PageCap != 100 {
		t.Errorf("Expected page cap 100, got %d", cfg.PageCap)
	}

	if cfg.Currency != "UAH" {
		t.Errorf("Expected currency 'UAH', got %s", cfg.Currency)
	}

	if cfg.DatabasePath != "./listings.db" {
		t.Errorf("Expected database path './listings.db', got %s", cfg.DatabasePath)
	}
}

func validConfig() *SourceConfig {
	cfg := DefaultConfig()
	cfg.Site = "fora"
	cfg.StartURL = "https://fora.ua/category/dairy-2656"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SourceConfig)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(c *SourceConfig) {},
			wantErr: nil,
		},
		{
			name:    "empty site",
			mutate:  func(c *SourceConfig) { c.Site = "" },
			wantErr: ErrEmptySite,
		},
		{
			name:    "invalid concurrency",
			mutate:  func(c *SourceConfig) { c.Concurrency = 0 },
			wantErr: ErrInvalidConcurrency,
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *SourceConfig) { c.RequestTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "invalid page cap",
			mutate:  func(c *SourceConfig) { c.PageCap = 0 },
			wantErr: ErrInvalidPageCap,
		},
		{
			name:    "empty database path",
			mutate:  func(c *SourceConfig) { c.DatabasePath = "" },
			wantErr: ErrEmptyDatabasePath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnforcesMinimumDelay(t *testing.T) {
	cfg := validConfig()
	cfg.RequestDelay = 10 * time.Millisecond

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.RequestDelay < 100*time.Millisecond {
		t.Errorf("Expected minimum delay to be enforced, got %v", cfg.RequestDelay)
	}
}
