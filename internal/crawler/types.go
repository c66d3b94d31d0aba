package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/jobwatch/internal/listing"
)

// Status is the outcome of a single pipeline stage.
type Status string

// Stage status values recorded on a Result.
const (
	StatusSuccess        Status = "success"
	StatusTransportError Status = "transport_error"
	StatusParseDegraded  Status = "parse_degraded"
	StatusIOError        Status = "io_error"
	StatusDispatchError  Status = "dispatch_error"
	StatusSkipped        Status = "skipped"
)

// FetchRequest captures everything needed to fetch one listing page.
type FetchRequest struct {
	URL     string
	Page    int
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a page response outside the 2xx range.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// IsStatusError reports whether err wraps a non-2xx response and returns its code.
func IsStatusError(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// Extraction is what an Extractor pulls out of one page.
type Extraction struct {
	Listings []listing.Listing
	// Containers is the number of listing containers found on the page.
	Containers int
	// Degraded counts listings with at least one missing field.
	Degraded int
}

// PageOutcome records what happened to one page of the run.
type PageOutcome struct {
	Page       int
	URL        string
	Status     Status
	StatusCode int
	Listings   int
	Degraded   int
	Duration   time.Duration
	Err        error
}

// Result summarizes a complete run so callers can tell "nothing new" apart
// from "fetch failed" or "store write failed".
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Pages     []PageOutcome
	Extracted int
	New       []listing.Listing

	StoreStatus Status
	StoreErr    error
	Written     int

	MirrorStatus Status
	MirrorErr    error
	Mirrored     int

	NotifyStatus Status
	NotifyErr    error
}

// FetchFailures returns the number of pages that could not be fetched.
func (r Result) FetchFailures() int {
	n := 0
	for _, p := range r.Pages {
		if p.Status == StatusTransportError {
			n++
		}
	}
	return n
}

// Duration returns the wall time of the run.
func (r Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err joins every error recorded during the run. It returns nil for a clean run.
func (r Result) Err() error {
	var errs []error
	for _, p := range r.Pages {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", p.Page, p.Err))
		}
	}
	if r.StoreErr != nil {
		errs = append(errs, fmt.Errorf("store: %w", r.StoreErr))
	}
	if r.MirrorErr != nil {
		errs = append(errs, fmt.Errorf("mirror: %w", r.MirrorErr))
	}
	if r.NotifyErr != nil {
		errs = append(errs, fmt.Errorf("notify: %w", r.NotifyErr))
	}
	return errors.Join(errs...)
}
