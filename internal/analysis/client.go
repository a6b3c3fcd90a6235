package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const promisePromptTemplate = `Analyze this conversation and determine if:
1. The manager promised to do something by the end of the day
2. The promise wasn't fulfilled in the conversation

Return "true" if there's an unfulfilled promise, "false" otherwise.

Conversation:
%s`

const qualityPromptTemplate = `Analyze the quality of this conversation between a manager and a client.
Look for problems such as ignored questions, rude or dismissive tone, vague
answers, and unresolved client requests.

Respond with ONLY a JSON object in exactly this shape, no other text:
{"has_issues": true|false, "issues_found": ["..."], "severity": "low"|"medium"|"high", "summary": "..."}

Conversation:
%s`

// fallbackSummaryPrefix marks QualityRecords produced by the degraded path
// rather than by the model.
const fallbackSummaryPrefix = "Error analyzing conversation: "

// Client wraps an LLM provider with model-exhaustion fallback. It keeps one
// active model and a set of models already exhausted within the current
// rotation episode. Not safe for concurrent use; callers run conversations
// sequentially.
type Client struct {
	provider  Provider
	active    string
	exhausted map[string]struct{}
}

// NewClient creates a Client starting on the given model.
func NewClient(p Provider, model string) *Client {
	return &Client{
		provider:  p,
		active:    model,
		exhausted: make(map[string]struct{}),
	}
}

// ActiveModel returns the model the next Query will use.
func (c *Client) ActiveModel() string {
	return c.active
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Query sends the prompt to the active model. On failure it marks the active
// model exhausted, rotates to another generation-capable model offered by
// the provider (last listed candidate wins), clears the exhausted set, and
// returns the original error: the rotation only takes effect for the NEXT
// call, the failing call itself is never retried. Callers wanting retries
// must layer their own policy on top.
func (c *Client) Query(ctx context.Context, prompt string) (string, error) {
	text, err := c.provider.GenerateText(ctx, c.active, prompt)
	if err == nil {
		return text, nil
	}

	c.exhausted[c.active] = struct{}{}

	models, listErr := c.provider.ListModels(ctx)
	if listErr != nil {
		log.Printf("llm: listing %s models for fallback failed: %v", c.provider.Name(), listErr)
	} else {
		for _, m := range models {
			if !m.SupportsGeneration {
				continue
			}
			if _, used := c.exhausted[m.Name]; used {
				continue
			}
			c.active = m.Name
		}
	}

	c.exhausted = make(map[string]struct{})

	return "", err
}

// CheckUnfinishedPromises asks the model whether the manager made a same-day
// promise that remains unresolved at the end of the conversation. Only a
// response that trims and lower-cases to exactly "true" counts; anything
// else is false. Query errors propagate to the caller.
func (c *Client) CheckUnfinishedPromises(ctx context.Context, conversationText string) (bool, error) {
	result, err := c.Query(ctx, fmt.Sprintf(promisePromptTemplate, conversationText))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(strings.ToLower(result)) == "true", nil
}

// AnalyzeConversationQuality asks the model for a structured quality
// judgment. The model's output is untrusted: it is decoded strictly and any
// failure, including a Query error, degrades to the fixed fallback record.
// This method never returns an error.
func (c *Client) AnalyzeConversationQuality(ctx context.Context, conversationText string) *QualityRecord {
	raw, err := c.Query(ctx, fmt.Sprintf(qualityPromptTemplate, conversationText))
	if err != nil {
		return fallbackQualityRecord(err)
	}

	rec, err := decodeQualityRecord(raw)
	if err != nil {
		return fallbackQualityRecord(err)
	}
	return rec
}

// Degraded reports whether the record is the error fallback rather than an
// actual model judgment. Degraded records must not be cached.
func (r *QualityRecord) Degraded() bool {
	return strings.HasPrefix(r.Summary, fallbackSummaryPrefix)
}

func fallbackQualityRecord(err error) *QualityRecord {
	return &QualityRecord{
		HasIssues:   false,
		IssuesFound: []string{},
		Severity:    SeverityNone,
		Summary:     fallbackSummaryPrefix + err.Error(),
	}
}

// decodeQualityRecord parses the model output as a QualityRecord, rejecting
// unknown fields and out-of-range severities.
func decodeQualityRecord(raw string) (*QualityRecord, error) {
	cleaned := stripCodeFence(raw)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()

	var rec QualityRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("parsing quality JSON: %w", err)
	}

	switch rec.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return nil, fmt.Errorf("invalid severity %q", rec.Severity)
	}

	if rec.IssuesFound == nil {
		rec.IssuesFound = []string{}
	}
	return &rec, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// often add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
