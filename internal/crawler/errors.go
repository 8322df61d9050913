package crawler

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies fetch failures by how the pipeline reacts to them.
type FetchErrorKind string

const (
	// KindTimeout is a request that exceeded its deadline. Retryable.
	KindTimeout FetchErrorKind = "timeout"
	// KindNetwork is a connection-level failure. Retryable.
	KindNetwork FetchErrorKind = "network"
	// KindHTTPStatus is a non-2xx response. Retryable only for 5xx and 429.
	KindHTTPStatus FetchErrorKind = "http_status"
	// KindDisallowed means robots.txt forbids the URL. Never retried.
	KindDisallowed FetchErrorKind = "disallowed"
)

// FetchError describes a failed page fetch.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int // set only for KindHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case KindDisallowed:
		return fmt.Sprintf("fetch %s: disallowed by robots.txt", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt at the same URL can succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500 || e.StatusCode == 429
	default:
		return false
	}
}

// IsDisallowed reports whether err is a robots.txt denial.
func IsDisallowed(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindDisallowed
}
