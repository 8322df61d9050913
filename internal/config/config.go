// Package config provides configuration management for the scraper.
// It defines the per-source crawl configuration and default values.
package config

import (
	"time"
)

// Selectors carries per-source extraction hints. Every field is optional;
// an empty selector falls through to the built-in heuristics.
type Selectors struct {
	ItemLinks   string `mapstructure:"item_links" yaml:"item_links"`   // CSS selector for product links on a category page
	ItemMarker  string `mapstructure:"item_marker" yaml:"item_marker"` // Path substring identifying product URLs (e.g. "/products/")
	Cards       string `mapstructure:"cards" yaml:"cards"`             // CSS selector for inline product cards
	Title       string `mapstructure:"title" yaml:"title"`             // CSS selector for the product title
	Price       string `mapstructure:"price" yaml:"price"`             // CSS selector for the price element
	Description string `mapstructure:"description" yaml:"description"` // CSS selector for the description/snippet
	Image       string `mapstructure:"image" yaml:"image"`             // CSS selector for the product image
	NextPage    string `mapstructure:"next_page" yaml:"next_page"`     // CSS selector for the next-page link
}

// SourceConfig holds the crawl configuration for one source site
type SourceConfig struct {
	// Source identity
	StartURL string `mapstructure:"start_url" yaml:"start_url"` // Category page to start pagination from
	Site     string `mapstructure:"site" yaml:"site"`           // Source identifier stored with each listing
	Category string `mapstructure:"category" yaml:"category"`   // Category identifier stored with each listing

	// Crawl behaviour
	MaxPages    int  `mapstructure:"max_pages" yaml:"max_pages"`       // Stop after N category pages (0=until pagination ends)
	FollowItems bool `mapstructure:"follow_items" yaml:"follow_items"` // Fetch item detail pages instead of extracting from cards
	Concurrency int  `mapstructure:"concurrency" yaml:"concurrency"`   // Concurrent item-page workers within one category page

	// Fetch policy
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum delay between requests to one host
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Per-request HTTP timeout
	RetryMax       int           `mapstructure:"retry_max" yaml:"retry_max"`             // Retry attempts for transient fetch failures
	RetryBudget    time.Duration `mapstructure:"retry_budget" yaml:"retry_budget"`       // Wall-clock cap across all retries of one fetch
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	IgnoreRobots   bool          `mapstructure:"ignore_robots" yaml:"ignore_robots"`     // Skip the robots.txt check

	// Extraction
	Selectors Selectors `mapstructure:"selectors" yaml:"selectors"` // Per-source selector hints
	Currency  string    `mapstructure:"currency" yaml:"currency"`   // Nominal currency when a price marker is ambiguous

	// Run identity and persistence
	SessionID    string `mapstructure:"session_id" yaml:"session_id"`       // Caller-supplied session id (generated when empty)
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // Path to SQLite database file

	// PageCap is the hard safety limit on category pages per crawl,
	// applied before MaxPages. Guards against runaway pagination.
	PageCap int `mapstructure:"page_cap" yaml:"page_cap"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *SourceConfig {
	return &SourceConfig{
		MaxPages:       0,
		FollowItems:    false,
		Concurrency:    4,
		RequestDelay:   1 * time.Second,
		RequestTimeout: 20 * time.Second,
		RetryMax:       5,
		RetryBudget:    60 * time.Second,
		UserAgent:      "PriceTrack/1.0",
		IgnoreRobots:   false,
		Currency:       "UAH",
		DatabasePath:   "./listings.db",
		PageCap:        100,
	}
}

// Validate checks if the configuration is valid
func (c *SourceConfig) Validate() error {
	if c.Site == "" {
		return ErrEmptySite
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.PageCap <= 0 {
		return ErrInvalidPageCap
	}

	// Enforce minimum politeness delay
	if c.RequestDelay < 100*time.Millisecond {
		c.RequestDelay = 100 * time.Millisecond
	}

	if c.RetryMax < 0 {
		c.RetryMax = 0
	}

	if c.DatabasePath == "" {
		return ErrEmptyDatabasePath
	}

	return nil
}
