// Package contentsafety is a REST client for Azure AI Content Safety text analysis.
package contentsafety

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
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	// DefaultAPIVersion is the GA version of the text:analyze operation.
	DefaultAPIVersion = "2023-10-01"
	// OutputFourSeverityLevels returns severities 0, 2, 4 and 6.
	OutputFourSeverityLevels = "FourSeverityLevels"
	// OutputEightSeverityLevels returns severities 0 to 7.
	OutputEightSeverityLevels = "EightSeverityLevels"
	// MaxTextLength is the largest text (in characters) accepted by text:analyze.
	MaxTextLength = 10000
)

// ErrMissingCredentials is returned by NewClient when the key or endpoint is missing.
var ErrMissingCredentials = errors.New("missing AZURE_CONTENT_SAFETY_KEY or AZURE_CONTENT_SAFETY_ENDPOINT")

// ErrTextTooLong is returned when the text exceeds MaxTextLength characters.
var ErrTextTooLong = errors.New("text exceeds the content safety length limit")

// Options configures the Content Safety client.
type Options struct {
	Endpoint   string
	Key        string
	APIVersion string
	OutputType string
	// RateLimit is the maximum requests per second (0 = unlimited).
	RateLimit float64
	// RetryMax is the number of retries for connection errors and 429/5xx responses.
	RetryMax int
	Timeout  time.Duration
	// Transport overrides the HTTP transport (e.g. an otelhttp transport).
	Transport http.RoundTripper
}

// CategoryAnalysis is the severity reported for one harm category (Hate, SelfHarm, Sexual, Violence).
type CategoryAnalysis struct {
	Category string `json:"category"`
	Severity *int   `json:"severity"`
}

// AnalyzeTextResult is the response of text:analyze.
type AnalyzeTextResult struct {
	CategoriesAnalysis []CategoryAnalysis `json:"categoriesAnalysis"`
}

type analyzeTextRequest struct {
	Text       string `json:"text"`
	OutputType string `json:"outputType,omitempty"`
}

// Client calls the Content Safety REST API.
type Client struct {
	endpoint   string
	key        string
	apiVersion string
	outputType string
	limiter    *rate.Limiter
	httpClient *retryablehttp.Client
}

// NewClient creates a Content Safety client.
func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimSuffix(strings.TrimSpace(opts.Endpoint), "/")
	key := strings.TrimSpace(opts.Key)

	if endpoint == "" || key == "" {
		return nil, ErrMissingCredentials
	}

	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}

	if opts.OutputType == "" {
		opts.OutputType = OutputFourSeverityLevels
	}

	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(opts.RetryMax, 0)
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.Transport != nil {
		retryClient.HTTPClient.Transport = opts.Transport
	}

	return &Client{
		endpoint:   endpoint,
		key:        key,
		apiVersion: opts.APIVersion,
		outputType: opts.OutputType,
		limiter:    limiter,
		httpClient: retryClient,
	}, nil
}

// AnalyzeText returns the per-category severities for text.
func (c *Client) AnalyzeText(ctx context.Context, text string) (*AnalyzeTextResult, error) {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, ErrTextTooLong
	}

	payload, err := json.Marshal(analyzeTextRequest{Text: text, OutputType: c.outputType})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/contentsafety/text:analyze?api-version=%s", c.endpoint, c.apiVersion)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var result AnalyzeTextResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
