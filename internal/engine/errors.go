package engine

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for expected conditions. Anything not covered here is a
// genuine fault and propagates wrapped with fmt.Errorf("%w").
var (
	// ErrNotFound means the authoritative API has no record for the
	// identifier. Callers decide whether to keep the item pending or drop it.
	ErrNotFound = errors.New("channel not found")

	// ErrQuotaExceeded means the API key ran out of quota. Per-item failure,
	// never crawl-fatal.
	ErrQuotaExceeded = errors.New("api quota exceeded")

	// ErrChannelRemoved marks a channel the platform has taken down. Terminal
	// for that item's expansion, not a fault.
	ErrChannelRemoved = errors.New("channel removed")

	// ErrBrowserCrashed is surfaced only after a relaunch-and-retry of the
	// browser context also fails.
	ErrBrowserCrashed = errors.New("browser context crashed")
)

// ResolutionError means a handle could not be mapped to a canonical ID via
// either the direct lookup or the search fallback. The item is recoverable:
// it re-enters the frontier in unresolved form for scrape-only follow-up.
type ResolutionError struct {
	Handle string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve handle %s: %v", e.Handle, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// StoreError wraps a document-store read or write failure. The store itself
// never retries; the engine decides whether the item is safe to re-enqueue.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ScrapeError covers page loads that never rendered the expected content
// within budget. Recoverable: callers treat it as empty results. Timeout is
// the navigation budget that ran out, zero for plain parse failures.
type ScrapeError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("scrape timeout %s after %s: %v", e.URL, e.Timeout, e.Err)
	}
	return fmt.Sprintf("scrape navigation %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }
