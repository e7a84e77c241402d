package models

// RiskLevel is the banded severity reported for a category or a whole text.
type RiskLevel string

// Risk levels, ordered from least to most severe. Unknown is used for out-of-range severities.
const (
	RiskSafe    RiskLevel = "Safe"
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// ProviderAnalysis is the raw result of a content-safety provider for one text.
type ProviderAnalysis struct {
	Categories       map[string]RiskLevel `json:"categories"`
	ConfidenceScores map[string]float64   `json:"confidence_scores"`
	RiskLevel        RiskLevel            `json:"risk_level"`
}

// Analysis is the outcome of analyzing a text, as returned by the analyzer API.
// Error is set (and the text reported Safe) when the text was empty or the provider failed.
type Analysis struct {
	IsHarmful        bool                 `json:"is_harmful"`
	RiskLevel        RiskLevel            `json:"risk_level"`
	Categories       map[string]RiskLevel `json:"categories"`
	ConfidenceScores map[string]float64   `json:"confidence_scores"`
	Provider         string               `json:"provider"`
	Error            *string              `json:"error"`
	TextLength       int                  `json:"text_length"`
	Summary          string               `json:"analysis_summary,omitempty"`
}
