package config

import "errors"

var (
	// ErrEmptySite is returned when no site identifier is configured
	ErrEmptySite = errors.New("site cannot be empty")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidPageCap is returned when the safety page cap is not greater than 0
	ErrInvalidPageCap = errors.New("page_cap must be greater than 0")
	// ErrEmptyDatabasePath is returned when database path is empty
	ErrEmptyDatabasePath = errors.New("database_path cannot be empty")
)
