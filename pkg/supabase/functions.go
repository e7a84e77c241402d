package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Defaults used by the project's Edge Functions.
const (
	DefaultBucket            = "session-uploads"
	DefaultMime              = "image/jpeg"
	DefaultPathPrefix        = "tmp"
	DefaultReadExpiresSec    = 600
	DefaultModerateImageSecs = 180
	DefaultOutputType        = "FourSeverityLevels"
	DefaultLang              = "en"
	DefaultSearchK           = 5
)

// ErrOCRSourceRequired is returned by OCRExtract when neither an image URL nor a storage path is given.
var ErrOCRSourceRequired = errors.New("supabase: ocr-extract needs either an image URL or a storage path")

// Invoke calls the Edge Function fn with a JSON body using the given auth mode.
// Non-2xx answers are returned as *Error. When out is non-nil the response is decoded into it.
func (c *Client) Invoke(ctx context.Context, fn string, auth Auth, body, out any) error {
	key, err := c.keyFor(auth)
	if err != nil {
		return fmt.Errorf("function %s: %w", fn, err)
	}

	status, respBody, err := c.post(ctx, c.functionsURL+"/"+fn, key, false, body)
	if err != nil {
		return fmt.Errorf("function %s: %w", fn, err)
	}

	if !isSuccess(status) {
		return fmt.Errorf("function %s: %w", fn, newError(status, respBody))
	}

	if out == nil {
		return nil
	}

	if isEmptyPayload(respBody) {
		return fmt.Errorf("function %s: %w", fn, ErrEmptyResult)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("function %s: failed to unmarshal response: %w", fn, err)
	}

	return nil
}

// Probe calls fn and returns the raw status and body without treating non-2xx as an error.
// Used to compare how a function answers under different auth modes.
func (c *Client) Probe(ctx context.Context, fn string, auth Auth, body any) (int, []byte, error) {
	key, err := c.keyFor(auth)
	if err != nil {
		return 0, nil, fmt.Errorf("function %s: %w", fn, err)
	}

	status, respBody, err := c.post(ctx, c.functionsURL+"/"+fn, key, false, body)
	if err != nil {
		return 0, nil, fmt.Errorf("function %s: %w", fn, err)
	}

	return status, respBody, nil
}

// SignUploadRequest is the body of sign-upload.
type SignUploadRequest struct {
	SessionID  string `json:"sessionId"`
	Bucket     string `json:"bucket"`
	Mime       string `json:"mime"`
	PathPrefix string `json:"pathPrefix"`
}

// SignUploadResponse carries the storage path reserved for the upload and its signed URL.
type SignUploadResponse struct {
	Path      string `json:"path"`
	SignedURL string `json:"signedUrl,omitempty"`
	Token     string `json:"token,omitempty"`
}

// SignUpload reserves an upload path for a session (anon key).
func (c *Client) SignUpload(ctx context.Context, req SignUploadRequest) (*SignUploadResponse, error) {
	if req.Bucket == "" {
		req.Bucket = DefaultBucket
	}

	if req.Mime == "" {
		req.Mime = DefaultMime
	}

	if req.PathPrefix == "" {
		req.PathPrefix = DefaultPathPrefix
	}

	var out SignUploadResponse
	if err := c.Invoke(ctx, "sign-upload", AuthAnon, req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// SignReadRequest is the body of sign-read.
type SignReadRequest struct {
	Path       string `json:"path"`
	Bucket     string `json:"bucket"`
	ExpiresSec int    `json:"expiresSec"`
}

// SignRead returns a time-limited read URL for a stored object (anon key).
func (c *Client) SignRead(ctx context.Context, req SignReadRequest) (json.RawMessage, error) {
	if req.Bucket == "" {
		req.Bucket = DefaultBucket
	}

	if req.ExpiresSec == 0 {
		req.ExpiresSec = DefaultReadExpiresSec
	}

	var out json.RawMessage
	if err := c.Invoke(ctx, "sign-read", AuthAnon, req, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ModerateTextRequest is the body of moderate-text. Nil IDs are sent as JSON null.
type ModerateTextRequest struct {
	ReportID   string  `json:"report_id"`
	Text       string  `json:"text"`
	MediaID    *string `json:"media_id"`
	ChunkID    *string `json:"chunk_id"`
	OutputType string  `json:"outputType"`
}

// ModerateText runs text moderation for a report (service-role key).
func (c *Client) ModerateText(ctx context.Context, req ModerateTextRequest) (json.RawMessage, error) {
	if req.OutputType == "" {
		req.OutputType = DefaultOutputType
	}

	var out json.RawMessage
	if err := c.Invoke(ctx, "moderate-text", AuthServiceRole, req, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ModerateImageRequest is the body of moderate-image.
type ModerateImageRequest struct {
	ReportID   string  `json:"report_id"`
	Path       string  `json:"path"`
	Bucket     string  `json:"bucket"`
	ExpiresSec int     `json:"expiresSec"`
	MediaID    *string `json:"media_id"`
}

// ModerateImage runs image moderation on a stored object (service-role key).
func (c *Client) ModerateImage(ctx context.Context, req ModerateImageRequest) (json.RawMessage, error) {
	if req.Bucket == "" {
		req.Bucket = DefaultBucket
	}

	if req.ExpiresSec == 0 {
		req.ExpiresSec = DefaultModerateImageSecs
	}

	var out json.RawMessage
	if err := c.Invoke(ctx, "moderate-image", AuthServiceRole, req, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// OCRExtractRequest selects the image either by public URL or by storage path.
// ImageURL wins when both are set.
type OCRExtractRequest struct {
	ImageURL   string
	Path       string
	Bucket     string
	ExpiresSec int
}

// OCRExtract extracts text from an image (anon key).
func (c *Client) OCRExtract(ctx context.Context, req OCRExtractRequest) (json.RawMessage, error) {
	var body map[string]any

	switch {
	case req.ImageURL != "":
		body = map[string]any{"imageUrl": req.ImageURL}
	case req.Path != "":
		if req.Bucket == "" {
			req.Bucket = DefaultBucket
		}

		if req.ExpiresSec == 0 {
			req.ExpiresSec = DefaultReadExpiresSec
		}

		body = map[string]any{"bucket": req.Bucket, "path": req.Path, "expiresSec": req.ExpiresSec}
	default:
		return nil, ErrOCRSourceRequired
	}

	var out json.RawMessage
	if err := c.Invoke(ctx, "ocr-extract", AuthAnon, body, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// IngestTextRequest is the body of ingest-text. MediaID is omitted when nil.
type IngestTextRequest struct {
	ReportID string  `json:"report_id"`
	Text     string  `json:"text"`
	MediaID  *string `json:"media_id,omitempty"`
	Lang     string  `json:"lang"`
}

// IngestText chunks, embeds and stores text for a report (service-role key).
func (c *Client) IngestText(ctx context.Context, req IngestTextRequest) (json.RawMessage, error) {
	if req.Lang == "" {
		req.Lang = DefaultLang
	}

	var out json.RawMessage
	if err := c.Invoke(ctx, "ingest-text", AuthServiceRole, req, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// SearchRequest is the body of the search function. A nil ReportID searches across reports.
type SearchRequest struct {
	QueryText string  `json:"query_text"`
	K         int     `json:"k"`
	ReportID  *string `json:"report_id"`
	MinScore  float64 `json:"min_score"`
}

// Search runs a semantic search over ingested text (anon key).
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	if req.K == 0 {
		req.K = DefaultSearchK
	}

	var out json.RawMessage
	if err := c.Invoke(ctx, "search", AuthAnon, req, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ProcessScreenshotRequest is the body of process-screenshot.
type ProcessScreenshotRequest struct {
	ReportID string `json:"report_id"`
	Bucket   string `json:"bucket"`
	Path     string `json:"path"`
	Mime     string `json:"mime"`
}

// ProcessScreenshot runs OCR, moderation and ingestion on an uploaded screenshot (service-role key).
func (c *Client) ProcessScreenshot(ctx context.Context, req ProcessScreenshotRequest) (json.RawMessage, error) {
	if req.Bucket == "" {
		req.Bucket = DefaultBucket
	}

	if req.Mime == "" {
		req.Mime = DefaultMime
	}

	var out json.RawMessage
	if err := c.Invoke(ctx, "process-screenshot", AuthServiceRole, req, &out); err != nil {
		return nil, err
	}

	return out, nil
}
