package review

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Kind classifies a pipeline failure for user-facing reporting. Every error
// crossing the orchestrator boundary carries exactly one Kind; raw transport
// or SDK errors never reach the presentation layer directly.
type Kind string

// Failure kinds surfaced to the presentation layer.
const (
	// KindConfig marks missing or invalid credentials; the request never starts.
	KindConfig Kind = "config_error"
	// KindScrape marks a scrape failure, including a search with zero candidates.
	KindScrape Kind = "scrape_error"
	// KindRateLimit marks throttling signaled by the scraping API.
	KindRateLimit Kind = "rate_limit_error"
	// KindNoReviews marks a product with no reviews anywhere; terminal but not a fault.
	KindNoReviews Kind = "no_reviews_found"
	// KindAnalysis marks a failed or unparseable text-generation response.
	KindAnalysis Kind = "analysis_error"
	// KindStore marks storage unavailability; fatal environment misconfiguration.
	KindStore Kind = "store_error"
)

// Error is the taxonomy type wrapped around every external-call failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a taxonomy error wrapping an optional cause.
func E(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from an error chain; unclassified errors return
// the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage maps an error to the human-readable text shown on the user
// surface, including a retry hint where the failure is recoverable.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please retry the request."
	}
	switch e.Kind {
	case KindConfig:
		return "The service is misconfigured: " + e.Msg + ". Check the API keys in the configuration."
	case KindScrape:
		return "Review scraping failed: " + e.Msg + ". Retry, or reduce the page limit."
	case KindRateLimit:
		return "The scraping API is throttling requests. Wait a moment and retry, or reduce the page limit."
	case KindNoReviews:
		return "No reviews were found for this product. Try a different product URL."
	case KindAnalysis:
		return "Review analysis failed: " + e.Msg + ". Retry, or reduce the number of pages analyzed."
	case KindStore:
		return "The local database is unavailable: " + e.Msg + ". Check the store path and permissions."
	default:
		return "An unexpected error occurred. Please retry the request."
	}
}
