package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustify/backend/internal/api/response"
	"github.com/trustify/backend/internal/api/validation"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/internal/observability"
	"github.com/trustify/backend/internal/ocr"
)

// Input kinds reported in analyze responses and metrics.
const (
	InputKindText  = "text"
	InputKindImage = "image"
)

// screenshotFormField is the multipart field that carries the screenshot.
const screenshotFormField = "file"

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// TextAnalyzer defines the interface for scoring a text.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string, debug bool) *models.Analysis
}

// AnalyzeTextRequest is the body for POST /analyze/text.
type AnalyzeTextRequest struct {
	Text *string `json:"text" validate:"required,no_null_bytes"`
}

// AnalyzeQuery holds the query parameters shared by both analyze endpoints.
type AnalyzeQuery struct {
	Debug bool `form:"debug"`
}

// AnalyzeResponse is the analysis plus what was analyzed.
type AnalyzeResponse struct {
	OK        bool    `json:"ok"`
	InputKind string  `json:"input_kind"`
	OCRText   *string `json:"ocr_text,omitempty"`
	*models.Analysis
}

// AnalyzeHandler handles HTTP requests for text and screenshot analysis.
type AnalyzeHandler struct {
	analyzer  TextAnalyzer
	extractor ocr.Extractor
	metrics   observability.AnalysisMetrics
}

// NewAnalyzeHandler creates an analyze handler. extractor may be nil, in which case every
// screenshot reports an OCR error; metrics may be nil.
func NewAnalyzeHandler(analyzer TextAnalyzer, extractor ocr.Extractor, metrics observability.AnalysisMetrics) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, extractor: extractor, metrics: metrics}
}

// AnalyzeText handles POST /analyze/text.
func (h *AnalyzeHandler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.RespondMethodNotAllowed(w, http.MethodPost)

		return
	}

	var query AnalyzeQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &query); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	var req AnalyzeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	start := time.Now()
	analysis := h.analyzer.Analyze(r.Context(), *req.Text, query.Debug)
	h.record(r.Context(), InputKindText, analysis, time.Since(start))

	response.RespondJSON(w, http.StatusOK, AnalyzeResponse{
		OK:        true,
		InputKind: InputKindText,
		Analysis:  analysis,
	})
}

// AnalyzeScreenshot handles POST /analyze/screenshot. An OCR failure is not an HTTP error:
// the text becomes "[OCR Error] <reason>" and is analyzed like any other.
func (h *AnalyzeHandler) AnalyzeScreenshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.RespondMethodNotAllowed(w, http.MethodPost)

		return
	}

	var query AnalyzeQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &query); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		response.RespondBadRequest(w, "Invalid multipart body")

		return
	}

	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile(screenshotFormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			response.RespondUnprocessableEntity(w, "file is required")

			return
		}

		response.RespondBadRequest(w, "Invalid file upload")

		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		response.RespondBadRequest(w, "Failed to read file")

		return
	}

	start := time.Now()
	text := h.extractText(r.Context(), image)
	analysis := h.analyzer.Analyze(r.Context(), text, query.Debug)
	h.record(r.Context(), InputKindImage, analysis, time.Since(start))

	response.RespondJSON(w, http.StatusOK, AnalyzeResponse{
		OK:        true,
		InputKind: InputKindImage,
		OCRText:   &text,
		Analysis:  analysis,
	})
}

func (h *AnalyzeHandler) extractText(ctx context.Context, image []byte) string {
	if h.extractor == nil {
		return "[OCR Error] " + ocr.ErrMissingCredentials.Error()
	}

	text, err := h.extractor.ExtractText(ctx, image)
	if err != nil {
		slog.WarnContext(ctx, "Screenshot OCR failed", "error", err)

		if h.metrics != nil {
			h.metrics.RecordOCRError(ctx)
		}

		return "[OCR Error] " + err.Error()
	}

	return text
}

func (h *AnalyzeHandler) record(ctx context.Context, kind string, analysis *models.Analysis, d time.Duration) {
	if h.metrics == nil {
		return
	}

	h.metrics.RecordAnalysis(ctx, kind, string(analysis.RiskLevel), analysis.IsHarmful, d)
}
