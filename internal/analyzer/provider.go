package analyzer

import (
	"context"

	"github.com/trustify/backend/internal/contentsafety"
	"github.com/trustify/backend/internal/models"
)

// ProviderName is reported in every analysis.
const ProviderName = "azure"

// ContentSafetyProvider scores a text per harm category.
type ContentSafetyProvider interface {
	AnalyzeText(ctx context.Context, text string) (*models.ProviderAnalysis, error)
}

// TextAnalyzer is the Content Safety call, implemented by *contentsafety.Client.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) (*contentsafety.AnalyzeTextResult, error)
}

// AzureProvider turns Content Safety severities into risk levels.
type AzureProvider struct {
	client TextAnalyzer
}

// NewAzureProvider wraps a Content Safety client.
func NewAzureProvider(client TextAnalyzer) *AzureProvider {
	return &AzureProvider{client: client}
}

// AnalyzeText maps each category severity to its band. The overall risk level is the band of
// the highest severity; a missing severity counts as 0. The service does not return confidences,
// so every category scores 0.
func (p *AzureProvider) AnalyzeText(ctx context.Context, text string) (*models.ProviderAnalysis, error) {
	result, err := p.client.AnalyzeText(ctx, text)
	if err != nil {
		return nil, err
	}

	out := &models.ProviderAnalysis{
		Categories:       make(map[string]models.RiskLevel, len(result.CategoriesAnalysis)),
		ConfidenceScores: make(map[string]float64, len(result.CategoriesAnalysis)),
	}

	maxSeverity := 0

	for _, c := range result.CategoriesAnalysis {
		severity := 0
		if c.Severity != nil {
			severity = *c.Severity
		}

		out.Categories[c.Category] = SeverityToLevel(severity)
		out.ConfidenceScores[c.Category] = 0
		maxSeverity = max(maxSeverity, severity)
	}

	out.RiskLevel = SeverityToLevel(maxSeverity)

	return out, nil
}
