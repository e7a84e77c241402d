// Package supabase is a small client for a Supabase project: PostgREST remote procedure calls
// (POST /rest/v1/rpc/{name}) and Edge Functions (POST /functions/v1/{name}).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrMissingURL is returned by NewClient when neither the project URL nor a functions URL is set.
var ErrMissingURL = errors.New("supabase: project URL is required")

// ErrMissingKey is returned when a call needs a key that was not configured.
var ErrMissingKey = errors.New("supabase: API key for the requested auth mode is not configured")

// Auth selects which key is sent as the bearer token of a request.
type Auth int

const (
	// AuthNone sends no Authorization header.
	AuthNone Auth = iota
	// AuthAnon sends the public anon key.
	AuthAnon
	// AuthServiceRole sends the privileged service-role key. Never ship it to a client device.
	AuthServiceRole
)

// String returns the auth mode name used in logs and reports.
func (a Auth) String() string {
	switch a {
	case AuthNone:
		return "none"
	case AuthAnon:
		return "anon"
	case AuthServiceRole:
		return "service_role"
	default:
		return "unknown"
	}
}

// Options configures the Supabase client.
type Options struct {
	// URL is the project URL, e.g. https://<ref>.supabase.co (no trailing path).
	URL string
	// AnonKey is the public anon key. Used for RPCs and client-side functions.
	AnonKey string
	// ServiceRoleKey is the service-role key. Used for server-side functions, and for RPCs when AnonKey is empty.
	ServiceRoleKey string
	// FunctionsURL overrides the Edge Functions base URL (default: URL + "/functions/v1").
	FunctionsURL string
	// RetryMax is the number of transport retries for connection errors and 5xx/429 responses.
	// Zero means every call is a single attempt.
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds).
	Timeout time.Duration
	// Transport overrides the HTTP transport (e.g. an otelhttp transport).
	Transport http.RoundTripper
}

// Client talks to one Supabase project.
type Client struct {
	restURL        string
	functionsURL   string
	anonKey        string
	serviceRoleKey string
	httpClient     *retryablehttp.Client
}

// NewClient creates a Supabase client with the given options.
func NewClient(opts Options) (*Client, error) {
	opts.URL = strings.TrimSuffix(strings.TrimSpace(opts.URL), "/")
	opts.FunctionsURL = strings.TrimSuffix(strings.TrimSpace(opts.FunctionsURL), "/")

	if opts.URL == "" && opts.FunctionsURL == "" {
		return nil, ErrMissingURL
	}

	if opts.FunctionsURL == "" {
		opts.FunctionsURL = opts.URL + "/functions/v1"
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(opts.RetryMax, 0)
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // Disable logging by default
	// Hand the last response back instead of a generic "giving up" error so PostgREST error bodies survive.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.Transport != nil {
		retryClient.HTTPClient.Transport = opts.Transport
	}

	return &Client{
		restURL:        opts.URL + "/rest/v1",
		functionsURL:   opts.FunctionsURL,
		anonKey:        strings.TrimSpace(opts.AnonKey),
		serviceRoleKey: strings.TrimSpace(opts.ServiceRoleKey),
		httpClient:     retryClient,
	}, nil
}

// keyFor returns the key for the auth mode, or ErrMissingKey.
func (c *Client) keyFor(auth Auth) (string, error) {
	switch auth {
	case AuthNone:
		return "", nil
	case AuthAnon:
		if c.anonKey == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, auth)
		}

		return c.anonKey, nil
	case AuthServiceRole:
		if c.serviceRoleKey == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, auth)
		}

		return c.serviceRoleKey, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrMissingKey, auth)
	}
}

// rpcAuth is the auth mode used for PostgREST calls: anon when available, service role otherwise.
func (c *Client) rpcAuth() Auth {
	if c.anonKey == "" && c.serviceRoleKey != "" {
		return AuthServiceRole
	}

	return AuthAnon
}

// post sends a JSON POST and returns the status code and the full response body.
// A nil body is sent as an empty JSON object.
func (c *Client) post(ctx context.Context, endpoint, key string, withAPIKey bool, body any) (int, []byte, error) {
	payload := []byte("{}")

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}

		payload = encoded
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)

		if withAPIKey {
			req.Header.Set("apikey", key)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// isEmptyPayload reports whether a response body carries no data (empty or JSON null).
func isEmptyPayload(body []byte) bool {
	trimmed := bytes.TrimSpace(body)

	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
