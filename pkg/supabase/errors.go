package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResult is returned when a call that should return data answers with an empty body or null.
var ErrEmptyResult = errors.New("supabase: empty result")

// Error is a non-2xx answer from PostgREST or an Edge Function.
// PostgREST fills Code, Message, Details and Hint; functions usually only send {"error": "..."}.
type Error struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
	Body    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "request failed with status %d", e.Status)

	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}

	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.Body != "":
		b.WriteString(": " + e.Body)
	}

	if e.Details != "" {
		b.WriteString("; details: " + e.Details)
	}

	if e.Hint != "" {
		b.WriteString("; hint: " + e.Hint)
	}

	return b.String()
}

// newError builds an Error from a response status and body. Unparseable bodies are kept verbatim.
func newError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
		Error   string `json:"error"`
		Msg     string `json:"msg"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Body = strings.TrimSpace(string(body))

		return apiErr
	}

	apiErr.Code = payload.Code
	apiErr.Details = payload.Details
	apiErr.Hint = payload.Hint

	switch {
	case payload.Message != "":
		apiErr.Message = payload.Message
	case payload.Error != "":
		apiErr.Message = payload.Error
	case payload.Msg != "":
		apiErr.Message = payload.Msg
	default:
		apiErr.Body = strings.TrimSpace(string(body))
	}

	return apiErr
}

// StatusCode returns the HTTP status of err when it is (or wraps) an *Error, otherwise 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}

	return 0
}
