package contentsafety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// APIError is a non-200 answer from the Content Safety service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("content safety request failed with status %d (%s): %s", e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("content safety request failed with status %d: %s", e.Status, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message

		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))

	return apiErr
}

// ErrorReason classifies err into a bounded reason for metrics:
// unauthorized, rate_limited, bad_request, upstream, timeout or other.
func ErrorReason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return "unauthorized"
		case apiErr.Status == http.StatusTooManyRequests:
			return "rate_limited"
		case apiErr.Status >= http.StatusInternalServerError:
			return "upstream"
		case apiErr.Status >= http.StatusBadRequest:
			return "bad_request"
		}
	}

	if errors.Is(err, ErrTextTooLong) {
		return "bad_request"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	return "other"
}
