// Package observability provides structured logging, OpenTelemetry tracing and
// metrics (Prometheus scrape or OTLP push) for the analyzer API and the embedding workers.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameHTTPRequests        = "trustify_http_requests_total"
	MetricNameHTTPRequestDuration = "trustify_http_request_duration_seconds"
	MetricNameAnalyses            = "trustify_analyses_total"
	MetricNameAnalysisDuration    = "trustify_analysis_duration_seconds"
	MetricNameProviderErrors      = "trustify_content_safety_errors_total"
	MetricNameOCRErrors           = "trustify_ocr_errors_total"
	MetricNameCacheHits           = "trustify_cache_hits_total"
	MetricNameCacheMisses         = "trustify_cache_misses_total"
	MetricNameRequestBodyTooLarge = "trustify_request_body_too_large_total"
	MetricNameEmbeddingJobs       = "trustify_embedding_jobs_total"
	MetricNameEmbeddingJobLatency = "trustify_embedding_job_duration_seconds"
)

// Attribute keys.
const (
	AttrInputKind = "input_kind"
	AttrRiskLevel = "risk_level"
	AttrHarmful   = "harmful"
	AttrReason    = "reason"
	AttrCache     = "cache"
	AttrMethod    = "method"
	AttrRoute     = "route"
	AttrStatus    = "status"
	AttrOutcome   = "outcome"
)

// Embedding job outcomes.
const (
	JobOutcomeCompleted = "completed"
	JobOutcomeRetry     = "retry"
	JobOutcomeCancelled = "cancelled"
)

// AllowedJobOutcomes for trustify_embedding_jobs_total.
var AllowedJobOutcomes = map[string]bool{
	JobOutcomeCompleted: true,
	JobOutcomeRetry:     true,
	JobOutcomeCancelled: true,
}

// CacheNameAnalysis labels the analyzer result cache.
const CacheNameAnalysis = "analysis"

// AllowedInputKinds for trustify_analyses_total.
var AllowedInputKinds = map[string]bool{
	"text":  true,
	"image": true,
}

// AllowedRiskLevels for trustify_analyses_total.
var AllowedRiskLevels = map[string]bool{
	"Safe":    true,
	"Low":     true,
	"Medium":  true,
	"High":    true,
	"Unknown": true,
}

// AllowedProviderReasons for trustify_content_safety_errors_total.
var AllowedProviderReasons = map[string]bool{
	"unauthorized": true,
	"rate_limited": true,
	"bad_request":  true,
	"upstream":     true,
	"timeout":      true,
}

// AllowedCacheNames for trustify_cache_hits_total and trustify_cache_misses_total.
var AllowedCacheNames = map[string]bool{
	CacheNameAnalysis: true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeInputKind returns kind if allowed, otherwise "unknown".
func NormalizeInputKind(kind string) string {
	if AllowedInputKinds[kind] {
		return kind
	}

	return "unknown"
}

// NormalizeRiskLevel returns level if allowed, otherwise "Unknown".
func NormalizeRiskLevel(level string) string {
	if AllowedRiskLevels[level] {
		return level
	}

	return "Unknown"
}

// NormalizeCacheName returns name if allowed, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
