package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/trustify/backend/pkg/supabase"
)

// Texts sent by the function smoke run. Unique phrases keep the ingested chunks easy to find.
const (
	checkModerationText = "This is a moderation test text unique phrase XJ092!"
	checkIngestText     = "This is an ingestion test phrase ZY882!"
	checkSearchQuery    = "ingestion test phrase ZY882"
)

// ErrNoUploadPath is returned when sign-upload succeeds without returning a storage path.
var ErrNoUploadPath = errors.New("sign-upload returned no path")

// FunctionsClient is the Edge Functions surface used by FunctionsCheckService. Implemented by *supabase.Client.
type FunctionsClient interface {
	SignUpload(ctx context.Context, req supabase.SignUploadRequest) (*supabase.SignUploadResponse, error)
	SignRead(ctx context.Context, req supabase.SignReadRequest) (json.RawMessage, error)
	ModerateText(ctx context.Context, req supabase.ModerateTextRequest) (json.RawMessage, error)
	ModerateImage(ctx context.Context, req supabase.ModerateImageRequest) (json.RawMessage, error)
	OCRExtract(ctx context.Context, req supabase.OCRExtractRequest) (json.RawMessage, error)
	IngestText(ctx context.Context, req supabase.IngestTextRequest) (json.RawMessage, error)
	Search(ctx context.Context, req supabase.SearchRequest) (json.RawMessage, error)
	ProcessScreenshot(ctx context.Context, req supabase.ProcessScreenshotRequest) (json.RawMessage, error)
	Probe(ctx context.Context, fn string, auth supabase.Auth, body any) (int, []byte, error)
}

// CheckStep is the outcome of one function call in a smoke run.
type CheckStep struct {
	Function string          `json:"function"           yaml:"function"`
	OK       bool            `json:"ok"                 yaml:"ok"`
	Status   int             `json:"status,omitempty"   yaml:"status,omitempty"`
	Error    string          `json:"error,omitempty"    yaml:"error,omitempty"`
	// Response is the function's reply: the decoded sign-upload result or the raw JSON of the others.
	Response any `json:"response,omitempty" yaml:"-"`
}

// CheckReport collects the steps of a smoke run.
type CheckReport struct {
	SessionID  string      `json:"session_id"  yaml:"session_id"`
	ReportID   string      `json:"report_id"   yaml:"report_id"`
	UploadPath string      `json:"upload_path" yaml:"upload_path"`
	Steps      []CheckStep `json:"steps"       yaml:"steps"`
}

// Failed returns the number of failed steps.
func (r *CheckReport) Failed() int {
	n := 0

	for _, step := range r.Steps {
		if !step.OK {
			n++
		}
	}

	return n
}

// AuthProbe is how a function answered under one auth mode.
type AuthProbe struct {
	Auth   string `json:"auth"            yaml:"auth"`
	Status int    `json:"status"          yaml:"status"`
	Body   string `json:"body,omitempty"  yaml:"body,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FunctionsCheckService exercises the deployed Edge Functions end to end.
type FunctionsCheckService struct {
	client FunctionsClient
	logger *slog.Logger
	newID  func() uuid.UUID
}

// NewFunctionsCheckService creates a FunctionsCheckService. logger may be nil.
func NewFunctionsCheckService(client FunctionsClient, logger *slog.Logger) *FunctionsCheckService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FunctionsCheckService{client: client, logger: logger, newID: uuid.New}
}

// Run calls every function in order against a fresh session and report.
// A failed sign-upload stops the run because later steps need its path; any other failure is
// recorded and the run continues.
func (s *FunctionsCheckService) Run(ctx context.Context) (*CheckReport, error) {
	report := &CheckReport{
		SessionID: "testsession-" + s.newID().String(),
		ReportID:  s.newID().String(),
	}

	upload, err := s.client.SignUpload(ctx, supabase.SignUploadRequest{SessionID: report.SessionID})
	if err == nil && upload.Path == "" {
		err = ErrNoUploadPath
	}

	if err != nil {
		report.Steps = append(report.Steps, s.record(ctx, "sign-upload", nil, err))

		return report, fmt.Errorf("sign-upload: %w", err)
	}

	report.Steps = append(report.Steps, s.record(ctx, "sign-upload", upload, nil))
	report.UploadPath = upload.Path

	steps := []struct {
		name string
		call func() (json.RawMessage, error)
	}{
		{"sign-read", func() (json.RawMessage, error) {
			return s.client.SignRead(ctx, supabase.SignReadRequest{Path: upload.Path})
		}},
		{"moderate-text", func() (json.RawMessage, error) {
			return s.client.ModerateText(ctx, supabase.ModerateTextRequest{ReportID: report.ReportID, Text: checkModerationText})
		}},
		{"ingest-text", func() (json.RawMessage, error) {
			return s.client.IngestText(ctx, supabase.IngestTextRequest{ReportID: report.ReportID, Text: checkIngestText})
		}},
		{"search", func() (json.RawMessage, error) {
			return s.client.Search(ctx, supabase.SearchRequest{QueryText: checkSearchQuery})
		}},
		{"process-screenshot", func() (json.RawMessage, error) {
			return s.client.ProcessScreenshot(ctx, supabase.ProcessScreenshotRequest{ReportID: report.ReportID, Path: upload.Path})
		}},
		{"moderate-image", func() (json.RawMessage, error) {
			return s.client.ModerateImage(ctx, supabase.ModerateImageRequest{ReportID: report.ReportID, Path: upload.Path})
		}},
		{"ocr-extract", func() (json.RawMessage, error) {
			return s.client.OCRExtract(ctx, supabase.OCRExtractRequest{Path: upload.Path})
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var out any

		resp, err := step.call()
		if len(resp) > 0 {
			out = resp
		}

		report.Steps = append(report.Steps, s.record(ctx, step.name, out, err))
	}

	return report, nil
}

func (s *FunctionsCheckService) record(ctx context.Context, name string, resp any, err error) CheckStep {
	if err != nil {
		s.logger.WarnContext(ctx, "Function call failed", "function", name, "error", err)

		return CheckStep{Function: name, Status: supabase.StatusCode(err), Error: err.Error()}
	}

	s.logger.InfoContext(ctx, "Function call succeeded", "function", name)

	return CheckStep{Function: name, OK: true, Response: resp}
}

// CompareAuth calls fn with no auth, the anon key and the service-role key and reports each answer.
// A nil body sends {"sessionId": "test-session-123"}, which suits sign-upload.
func (s *FunctionsCheckService) CompareAuth(ctx context.Context, fn string, body any) []AuthProbe {
	if body == nil {
		body = map[string]any{"sessionId": "test-session-123"}
	}

	modes := []supabase.Auth{supabase.AuthNone, supabase.AuthAnon, supabase.AuthServiceRole}
	probes := make([]AuthProbe, 0, len(modes))

	for _, auth := range modes {
		probe := AuthProbe{Auth: auth.String()}

		status, respBody, err := s.client.Probe(ctx, fn, auth, body)
		if err != nil {
			probe.Error = err.Error()
		} else {
			probe.Status = status
			probe.Body = string(respBody)
		}

		s.logger.InfoContext(ctx, "Auth probe", "function", fn, "auth", probe.Auth, "status", probe.Status)
		probes = append(probes, probe)
	}

	return probes
}
