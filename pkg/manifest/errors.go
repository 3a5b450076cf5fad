package manifest

import (
	"fmt"
	"strings"
)

// FetchError reports a failed manifest retrieval: network failure, timeout,
// non-2xx response, or an exhausted host concurrency budget. It aborts the
// run before any state is touched.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError carries every violation found in a manifest, not just the
// first. Validation failure is all-or-nothing: nothing is applied.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest validation failed: %s", strings.Join(e.Violations, "; "))
}
