package analysis

import (
	"context"

	"github.com/avelichko/manager-pulse/internal/metrics"
)

// Provider is the interface for LLM providers.
type Provider interface {
	// Name identifies the provider ("gemini", "openai", "anthropic").
	Name() string
	// GenerateText sends a prompt to the named model and returns the
	// response text.
	GenerateText(ctx context.Context, model, prompt string) (string, error)
	// ListModels returns the models the provider currently offers.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo describes one model offered by a provider.
type ModelInfo struct {
	Name string
	// SupportsGeneration is true when the model can serve text-completion
	// requests. Fallback rotation only considers such models.
	SupportsGeneration bool
}

// Severity grades the issues the LLM found in a conversation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	// SeverityNone is only used by the degraded fallback record.
	SeverityNone Severity = "none"
)

// QualityRecord is the LLM's structured judgment about conversation health.
type QualityRecord struct {
	HasIssues   bool     `json:"has_issues"`
	IssuesFound []string `json:"issues_found"`
	Severity    Severity `json:"severity"`
	Summary     string   `json:"summary"`
}

// AnalyticsRecord joins the metric and LLM outputs for one counterparty.
type AnalyticsRecord struct {
	Performance           *metrics.Performance
	HasUnfinishedPromises bool
	// PromiseCheckError carries the error text when the promise check
	// itself failed; the flag above is meaningless in that case.
	PromiseCheckError string
	Quality           *QualityRecord
}
