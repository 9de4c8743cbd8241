package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBackendUnavailable means the health probe failed, so no data call was made.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrParse wraps any body that is not valid JSON or fails schema validation.
	ErrParse = errors.New("malformed response")
)

// HTTPError is a non-2xx response from the market-data service.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("market-data api error %d: %s", e.StatusCode, e.Message)
}

func newHTTPError(status int, body []byte) *HTTPError {
	return &HTTPError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       body,
	}
}

func parseError(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrParse, what, err)
}

// UserMessage turns a fetch error into the text shown to dashboard users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrBackendUnavailable):
		return "Backend server is not available. It may still be starting up."
	case errors.As(err, &httpErr):
		return fmt.Sprintf("Failed to fetch data (HTTP %d)", httpErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out. The backend may be slow to respond."
	case errors.Is(err, ErrParse):
		return "Received malformed data from the backend."
	default:
		return "Failed to fetch data."
	}
}
