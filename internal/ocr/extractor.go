// Package ocr extracts text from screenshots.
package ocr

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

// DefaultAPIVersion is the Image Analysis 4.0 GA version.
const DefaultAPIVersion = "2024-02-01"

var (
	// ErrMissingCredentials is returned by NewAzureExtractor when the key or endpoint is missing.
	ErrMissingCredentials = errors.New("missing AZURE_VISION_KEY or AZURE_VISION_ENDPOINT")
	// ErrEmptyImage is returned for an empty image body.
	ErrEmptyImage = errors.New("image is empty")
)

// Extractor returns the text found in an image, one line per detected line.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// AzureOptions configures the Azure AI Vision extractor.
type AzureOptions struct {
	Endpoint   string
	Key        string
	APIVersion string
	RetryMax   int
	Timeout    time.Duration
	Transport  http.RoundTripper
}

// AzureExtractor runs the Image Analysis "read" feature.
type AzureExtractor struct {
	endpoint   string
	key        string
	apiVersion string
	httpClient *retryablehttp.Client
}

// NewAzureExtractor creates an extractor backed by Azure AI Vision.
func NewAzureExtractor(opts AzureOptions) (*AzureExtractor, error) {
	endpoint := strings.TrimSuffix(strings.TrimSpace(opts.Endpoint), "/")
	key := strings.TrimSpace(opts.Key)

	if endpoint == "" || key == "" {
		return nil, ErrMissingCredentials
	}

	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(opts.RetryMax, 0)
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.Transport != nil {
		retryClient.HTTPClient.Transport = opts.Transport
	}

	return &AzureExtractor{
		endpoint:   endpoint,
		key:        key,
		apiVersion: opts.APIVersion,
		httpClient: retryClient,
	}, nil
}

type analyzeResponse struct {
	ReadResult *struct {
		Blocks []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"blocks"`
	} `json:"readResult"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ExtractText sends image to the read feature and joins the detected lines with newlines.
func (e *AzureExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	url := fmt.Sprintf("%s/computervision/imageanalysis:analyze?features=read&api-version=%s", e.endpoint, e.apiVersion)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", e.key)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var result analyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("image analysis failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error != nil {
			return "", fmt.Errorf("image analysis failed with status %d (%s): %s", resp.StatusCode, result.Error.Code, result.Error.Message)
		}

		return "", fmt.Errorf("image analysis failed with status %d", resp.StatusCode)
	}

	if result.ReadResult == nil {
		return "", nil
	}

	var lines []string

	for _, block := range result.ReadResult.Blocks {
		for _, line := range block.Lines {
			lines = append(lines, line.Text)
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
