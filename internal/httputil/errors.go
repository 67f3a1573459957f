package httputil

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TransportError is returned by upstream clients after retries are exhausted.
type TransportError struct {
	Op         string // logical operation, e.g. "list models"
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s returned status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError marks a response status as retryable (5xx, 429) or permanent.
func StatusError(op, url string, status int) error {
	err := &TransportError{Op: op, URL: url, StatusCode: status}
	if status >= 500 || status == http.StatusTooManyRequests {
		return err
	}
	return backoff.Permanent(err)
}

// RetryPolicy returns the standard bounded exponential backoff used for
// upstream HTTP calls: 2s initial wait capped at 10s, maxAttempts tries total.
func RetryPolicy(maxAttempts int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 10 * time.Second
	return backoff.WithMaxRetries(b, uint64(maxAttempts-1))
}
