package analyzer

import "github.com/trustify/backend/internal/models"

// severityBands maps a Content Safety severity (0-7) to a risk level.
var severityBands = [...]models.RiskLevel{
	models.RiskSafe,
	models.RiskLow, models.RiskLow,
	models.RiskMedium, models.RiskMedium,
	models.RiskHigh, models.RiskHigh, models.RiskHigh,
}

// SeverityToLevel returns the band for severity, or Unknown when it is out of range.
func SeverityToLevel(severity int) models.RiskLevel {
	if severity < 0 || severity >= len(severityBands) {
		return models.RiskUnknown
	}

	return severityBands[severity]
}
