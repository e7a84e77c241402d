// Package analyzer decides whether a text is harmful from Content Safety category levels.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/trustify/backend/internal/contentsafety"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/internal/observability"
	"github.com/trustify/backend/pkg/cache"
)

// Summaries returned in analysis_summary.
const (
	SummarySafe       = "Content appears to be safe and appropriate."
	SummaryFlagged    = "Content flagged for review due to risk assessment."
	summaryCategories = "Potentially harmful content detected in categories: "

	// ErrEmptyText is the error reported for empty or whitespace-only input.
	ErrEmptyText = "Empty or whitespace-only text provided"
)

// highConfidence is the confidence above which a category alone marks the text harmful.
const highConfidence = 0.7

// Analyzer scores texts with a ContentSafetyProvider.
type Analyzer struct {
	provider     ContentSafetyProvider
	cache        *cache.LoaderCache[string, *models.ProviderAnalysis]
	cacheMetrics observability.CacheMetrics
	metrics      observability.AnalysisMetrics
	logger       *slog.Logger
}

// Params configures an Analyzer. CacheSize 0 disables the result cache; metrics may be nil.
type Params struct {
	Provider     ContentSafetyProvider
	CacheSize    int
	CacheTTL     time.Duration
	CacheMetrics observability.CacheMetrics
	Metrics      observability.AnalysisMetrics
	Logger       *slog.Logger
}

// New creates an Analyzer.
func New(p Params) (*Analyzer, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Analyzer{
		provider:     p.Provider,
		cacheMetrics: p.CacheMetrics,
		metrics:      p.Metrics,
		logger:       logger,
	}

	if p.CacheSize > 0 {
		c, err := cache.NewLoaderCache[string, *models.ProviderAnalysis](p.CacheSize, p.CacheTTL, func(k string) string { return k })
		if err != nil {
			return nil, fmt.Errorf("create analysis cache: %w", err)
		}

		a.cache = c
	}

	return a, nil
}

// Analyze never fails: empty text and provider errors come back as a Safe result with Error set.
// With debug the input, the provider result and the decision are logged.
func (a *Analyzer) Analyze(ctx context.Context, text string, debug bool) *models.Analysis {
	trimmed := strings.TrimSpace(text)

	if debug {
		a.logger.InfoContext(ctx, "Analyzing text", "preview", preview(text, 100), "chars", utf8.RuneCountInString(text))
	}

	if trimmed == "" {
		msg := ErrEmptyText

		return &models.Analysis{
			RiskLevel:        models.RiskSafe,
			Categories:       map[string]models.RiskLevel{},
			ConfidenceScores: map[string]float64{},
			Provider:         ProviderName,
			Error:            &msg,
		}
	}

	result := &models.Analysis{
		RiskLevel:        models.RiskSafe,
		Categories:       map[string]models.RiskLevel{},
		ConfidenceScores: map[string]float64{},
		Provider:         ProviderName,
		TextLength:       utf8.RuneCountInString(trimmed),
	}

	raw, err := a.providerAnalysis(ctx, trimmed)
	if err != nil {
		a.logger.ErrorContext(ctx, "Content safety analysis failed", "error", err)

		if a.metrics != nil {
			a.metrics.RecordProviderError(ctx, contentsafety.ErrorReason(err))
		}

		msg := err.Error()
		result.Error = &msg
	} else {
		if debug {
			a.logger.InfoContext(ctx, "Provider result", "risk_level", raw.RiskLevel, "categories", raw.Categories)
		}

		result.RiskLevel = raw.RiskLevel
		// Cached results are shared, so callers get their own maps.
		if raw.Categories != nil {
			result.Categories = maps.Clone(raw.Categories)
		}

		if raw.ConfidenceScores != nil {
			result.ConfidenceScores = maps.Clone(raw.ConfidenceScores)
		}
	}

	result.IsHarmful = isHarmful(result.Categories, result.RiskLevel, result.ConfidenceScores)
	result.Summary = summarize(result.Categories, result.IsHarmful)

	if debug {
		a.logger.InfoContext(ctx, "Harm decision",
			"harmful_categories", harmfulCategories(result.Categories),
			"risk_level", result.RiskLevel,
			"is_harmful", result.IsHarmful,
		)
	}

	return result
}

// providerAnalysis returns the provider result for text, from the cache when enabled.
// Failed calls are not cached.
func (a *Analyzer) providerAnalysis(ctx context.Context, text string) (*models.ProviderAnalysis, error) {
	if a.cache == nil {
		return a.provider.AnalyzeText(ctx, text)
	}

	raw, hit, err := a.cache.GetWithStats(ctx, CacheKey(text), func(ctx context.Context, _ string) (*models.ProviderAnalysis, error) {
		return a.provider.AnalyzeText(ctx, text)
	})

	if a.cacheMetrics != nil && err == nil {
		if hit {
			a.cacheMetrics.RecordHit(ctx, observability.CacheNameAnalysis)
		} else {
			a.cacheMetrics.RecordMiss(ctx, observability.CacheNameAnalysis)
		}
	}

	return raw, err
}

// CacheKey is the SHA-256 of the text, hex encoded.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))

	return hex.EncodeToString(sum[:])
}

// isHarmful is true when any category is above Safe, the overall risk level is a real band
// above Safe, or any category confidence exceeds 0.7.
func isHarmful(categories map[string]models.RiskLevel, risk models.RiskLevel, confidences map[string]float64) bool {
	if len(harmfulCategories(categories)) > 0 {
		return true
	}

	switch risk {
	case models.RiskSafe, models.RiskUnknown, "":
	default:
		return true
	}

	for _, score := range confidences {
		if score > highConfidence {
			return true
		}
	}

	return false
}

// harmfulCategories lists "Category (Level)" for every category above Safe, sorted by name.
func harmfulCategories(categories map[string]models.RiskLevel) []string {
	names := make([]string, 0, len(categories))

	for name, level := range categories {
		if level != "" && level != models.RiskSafe {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("%s (%s)", name, categories[name]))
	}

	return out
}

func summarize(categories map[string]models.RiskLevel, harmful bool) string {
	if !harmful {
		return SummarySafe
	}

	if flagged := harmfulCategories(categories); len(flagged) > 0 {
		return summaryCategories + strings.Join(flagged, ", ")
	}

	return SummaryFlagged
}

func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	return string([]rune(text)[:n]) + "..."
}
