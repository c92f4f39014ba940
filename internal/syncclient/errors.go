package syncclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jwgray1010/PawCoin/internal/model"
)

// ErrorCategory decides whether a failed request is retried.
type ErrorCategory int

const (
	// Recoverable failures (network errors, 5xx, 408, 429) are retried with backoff.
	Recoverable ErrorCategory = iota
	// Irrecoverable failures (other 4xx) fail immediately.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError is a sync request failure tagged for the retry policy. Its
// chain carries model.ErrStoreUnavailable or model.ErrStoreRejected.
type ClassifiedError struct {
	Category   ErrorCategory
	StatusCode int
	Body       string
	Underlying error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error { return e.Underlying }

// IsIrrecoverable reports whether err must not be retried.
func IsIrrecoverable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category == Irrecoverable
	}
	return false
}

func categoryFor(status int) ErrorCategory {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Recoverable
	case status >= 400 && status < 500:
		return Irrecoverable
	default:
		return Recoverable
	}
}

func newHTTPError(op string, status int, body string) *ClassifiedError {
	cause := fmt.Errorf("HTTP %d", status)
	if msg := serverMessage(body); msg != "" {
		cause = fmt.Errorf("HTTP %d: %s", status, msg)
	}
	cat := categoryFor(status)
	underlying := model.Unavailable(op, cause)
	if cat == Irrecoverable {
		underlying = model.Rejected(op, cause)
	}
	return &ClassifiedError{Category: cat, StatusCode: status, Body: body, Underlying: underlying}
}

func newNetworkError(op string, err error) *ClassifiedError {
	return &ClassifiedError{Category: Recoverable, Underlying: model.Unavailable(op, err)}
}
