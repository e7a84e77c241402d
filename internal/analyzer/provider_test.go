package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustify/backend/internal/contentsafety"
	"github.com/trustify/backend/internal/models"
)

type stubTextAnalyzer struct {
	result *contentsafety.AnalyzeTextResult
	err    error
}

func (s stubTextAnalyzer) AnalyzeText(context.Context, string) (*contentsafety.AnalyzeTextResult, error) {
	return s.result, s.err
}

func severity(n int) *int { return &n }

func TestAzureProvider_AnalyzeText(t *testing.T) {
	t.Run("maps severities and takes the max", func(t *testing.T) {
		p := NewAzureProvider(stubTextAnalyzer{result: &contentsafety.AnalyzeTextResult{
			CategoriesAnalysis: []contentsafety.CategoryAnalysis{
				{Category: "Hate", Severity: severity(2)},
				{Category: "Violence", Severity: severity(4)},
				{Category: "Sexual", Severity: nil},
				{Category: "SelfHarm", Severity: severity(0)},
			},
		}})

		got, err := p.AnalyzeText(context.Background(), "hello")
		require.NoError(t, err)

		assert.Equal(t, models.RiskMedium, got.RiskLevel)
		assert.Equal(t, map[string]models.RiskLevel{
			"Hate":     models.RiskLow,
			"Violence": models.RiskMedium,
			"Sexual":   models.RiskSafe,
			"SelfHarm": models.RiskSafe,
		}, got.Categories)
		assert.Equal(t, map[string]float64{"Hate": 0, "Violence": 0, "Sexual": 0, "SelfHarm": 0}, got.ConfidenceScores)
	})

	t.Run("no categories is safe", func(t *testing.T) {
		p := NewAzureProvider(stubTextAnalyzer{result: &contentsafety.AnalyzeTextResult{}})

		got, err := p.AnalyzeText(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, models.RiskSafe, got.RiskLevel)
		assert.Empty(t, got.Categories)
	})

	t.Run("client error", func(t *testing.T) {
		boom := errors.New("boom")
		p := NewAzureProvider(stubTextAnalyzer{err: boom})

		got, err := p.AnalyzeText(context.Background(), "hello")
		require.ErrorIs(t, err, boom)
		assert.Nil(t, got)
	})
}
