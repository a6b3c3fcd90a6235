package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/avelichko/manager-pulse/internal/store"
)

// mockProvider implements Provider for testing.
type mockProvider struct {
	response   string
	genErr     error
	models     []ModelInfo
	listErr    error
	genCalls   atomic.Int64
	listCalls  atomic.Int64
	lastModel  string
	lastPrompt string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	m.genCalls.Add(1)
	m.lastModel = model
	m.lastPrompt = prompt
	if m.genErr != nil {
		return "", m.genErr
	}
	return m.response, nil
}

func (m *mockProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	m.listCalls.Add(1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.models, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Client tests
// ---------------------------------------------------------------------------

func TestQuery_Success(t *testing.T) {
	mock := &mockProvider{response: "hello"}
	c := NewClient(mock, "model-a")

	got, err := c.Query(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Query = %q, want %q", got, "hello")
	}
	if mock.lastModel != "model-a" {
		t.Errorf("model used = %q, want %q", mock.lastModel, "model-a")
	}
	if mock.listCalls.Load() != 0 {
		t.Errorf("ListModels called %d times, want 0", mock.listCalls.Load())
	}
}

func TestQuery_FailureRotatesAndReturnsOriginalError(t *testing.T) {
	genErr := errors.New("quota exceeded")
	mock := &mockProvider{
		genErr: genErr,
		models: []ModelInfo{
			{Name: "model-a", SupportsGeneration: true},
			{Name: "model-b", SupportsGeneration: true},
			{Name: "embedder", SupportsGeneration: false},
			{Name: "model-c", SupportsGeneration: true},
		},
	}
	c := NewClient(mock, "model-a")

	_, err := c.Query(context.Background(), "ping")
	if !errors.Is(err, genErr) {
		t.Fatalf("Query error = %v, want original %v", err, genErr)
	}

	// Last generation-capable, non-exhausted candidate wins.
	if c.ActiveModel() != "model-c" {
		t.Errorf("ActiveModel = %q, want %q", c.ActiveModel(), "model-c")
	}
	// The exhausted set is reset before the next call begins.
	if len(c.exhausted) != 0 {
		t.Errorf("exhausted set has %d entries after Query, want 0", len(c.exhausted))
	}
	// The failing call was never retried on the new model.
	if mock.genCalls.Load() != 1 {
		t.Errorf("GenerateText called %d times, want 1", mock.genCalls.Load())
	}
}

func TestQuery_RotationExcludesExhaustedModel(t *testing.T) {
	mock := &mockProvider{
		genErr: errors.New("boom"),
		models: []ModelInfo{
			{Name: "model-b", SupportsGeneration: true},
			{Name: "model-a", SupportsGeneration: true},
		},
	}
	c := NewClient(mock, "model-a")

	_, _ = c.Query(context.Background(), "ping")

	// model-a failed, so the rotation must land on model-b even though
	// model-a is listed last.
	if c.ActiveModel() != "model-b" {
		t.Errorf("ActiveModel = %q, want %q", c.ActiveModel(), "model-b")
	}
}

func TestQuery_NoCandidatesKeepsActiveModel(t *testing.T) {
	mock := &mockProvider{
		genErr: errors.New("boom"),
		models: []ModelInfo{
			{Name: "model-a", SupportsGeneration: true},
			{Name: "embedder", SupportsGeneration: false},
		},
	}
	c := NewClient(mock, "model-a")

	_, _ = c.Query(context.Background(), "ping")

	if c.ActiveModel() != "model-a" {
		t.Errorf("ActiveModel = %q, want %q", c.ActiveModel(), "model-a")
	}
	if len(c.exhausted) != 0 {
		t.Errorf("exhausted set has %d entries after Query, want 0", len(c.exhausted))
	}
}

func TestQuery_ListFailureStillReturnsOriginalError(t *testing.T) {
	genErr := errors.New("deadline exceeded")
	mock := &mockProvider{
		genErr:  genErr,
		listErr: errors.New("listing down"),
	}
	c := NewClient(mock, "model-a")

	_, err := c.Query(context.Background(), "ping")
	if !errors.Is(err, genErr) {
		t.Fatalf("Query error = %v, want original %v", err, genErr)
	}
	if c.ActiveModel() != "model-a" {
		t.Errorf("ActiveModel = %q, want %q", c.ActiveModel(), "model-a")
	}
	if len(c.exhausted) != 0 {
		t.Errorf("exhausted set has %d entries after Query, want 0", len(c.exhausted))
	}
}

func TestCheckUnfinishedPromises(t *testing.T) {
	tests := []struct {
		response string
		want     bool
	}{
		{"true", true},
		{"True ", true},
		{"\n TRUE \n", true},
		{"false", false},
		{"yes", false},
		{"there is an unfulfilled promise: true", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.response), func(t *testing.T) {
			mock := &mockProvider{response: tt.response}
			c := NewClient(mock, "model-a")

			got, err := c.CheckUnfinishedPromises(context.Background(), "transcript")
			if err != nil {
				t.Fatalf("CheckUnfinishedPromises failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckUnfinishedPromises(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestCheckUnfinishedPromises_QueryErrorPropagates(t *testing.T) {
	genErr := errors.New("api down")
	mock := &mockProvider{genErr: genErr}
	c := NewClient(mock, "model-a")

	_, err := c.CheckUnfinishedPromises(context.Background(), "transcript")
	if !errors.Is(err, genErr) {
		t.Fatalf("error = %v, want %v", err, genErr)
	}
}

func TestCheckUnfinishedPromises_PromptContainsTranscript(t *testing.T) {
	mock := &mockProvider{response: "false"}
	c := NewClient(mock, "model-a")

	transcript := "[2026-02-18 10:00] Manager: I'll send it today."
	if _, err := c.CheckUnfinishedPromises(context.Background(), transcript); err != nil {
		t.Fatalf("CheckUnfinishedPromises failed: %v", err)
	}
	if !strings.Contains(mock.lastPrompt, transcript) {
		t.Error("prompt should embed the conversation transcript")
	}
	if !strings.Contains(mock.lastPrompt, "by the end of the day") {
		t.Error("prompt should describe the same-day promise condition")
	}
}

func TestAnalyzeConversationQuality_ValidJSON(t *testing.T) {
	mock := &mockProvider{
		response: `{"has_issues": true, "issues_found": ["ignored question about refunds"], "severity": "high", "summary": "Client question left unanswered."}`,
	}
	c := NewClient(mock, "model-a")

	rec := c.AnalyzeConversationQuality(context.Background(), "transcript")

	if !rec.HasIssues {
		t.Error("HasIssues = false, want true")
	}
	if len(rec.IssuesFound) != 1 || rec.IssuesFound[0] != "ignored question about refunds" {
		t.Errorf("IssuesFound = %v", rec.IssuesFound)
	}
	if rec.Severity != SeverityHigh {
		t.Errorf("Severity = %q, want %q", rec.Severity, SeverityHigh)
	}
	if rec.Degraded() {
		t.Error("record should not be degraded")
	}
}

func TestAnalyzeConversationQuality_FencedJSON(t *testing.T) {
	mock := &mockProvider{
		response: "```json\n{\"has_issues\": false, \"issues_found\": [], \"severity\": \"low\", \"summary\": \"All good.\"}\n```",
	}
	c := NewClient(mock, "model-a")

	rec := c.AnalyzeConversationQuality(context.Background(), "transcript")
	if rec.Degraded() {
		t.Fatalf("fenced JSON should parse, got fallback: %s", rec.Summary)
	}
	if rec.Severity != SeverityLow {
		t.Errorf("Severity = %q, want %q", rec.Severity, SeverityLow)
	}
}

func TestAnalyzeConversationQuality_QueryErrorFallback(t *testing.T) {
	mock := &mockProvider{genErr: errors.New("service unavailable")}
	c := NewClient(mock, "model-a")

	rec := c.AnalyzeConversationQuality(context.Background(), "transcript")

	if rec.HasIssues {
		t.Error("fallback HasIssues = true, want false")
	}
	if len(rec.IssuesFound) != 0 {
		t.Errorf("fallback IssuesFound = %v, want empty", rec.IssuesFound)
	}
	if rec.Severity != SeverityNone {
		t.Errorf("fallback Severity = %q, want %q", rec.Severity, SeverityNone)
	}
	if rec.Summary != "Error analyzing conversation: service unavailable" {
		t.Errorf("fallback Summary = %q", rec.Summary)
	}
	if !rec.Degraded() {
		t.Error("fallback record should report Degraded")
	}
}

func TestAnalyzeConversationQuality_MalformedOutputFallback(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not JSON", "The conversation looks fine to me."},
		{"unknown field", `{"has_issues": false, "issues_found": [], "severity": "low", "summary": "ok", "confidence": 0.9}`},
		{"bad severity", `{"has_issues": true, "issues_found": ["x"], "severity": "critical", "summary": "bad"}`},
		{"fallback severity not accepted from model", `{"has_issues": false, "issues_found": [], "severity": "none", "summary": "ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockProvider{response: tt.response}
			c := NewClient(mock, "model-a")

			rec := c.AnalyzeConversationQuality(context.Background(), "transcript")
			if !rec.Degraded() {
				t.Fatalf("expected fallback record, got %+v", rec)
			}
			if rec.Severity != SeverityNone {
				t.Errorf("Severity = %q, want %q", rec.Severity, SeverityNone)
			}
			if !strings.HasPrefix(rec.Summary, "Error analyzing conversation: ") {
				t.Errorf("Summary = %q, want error prefix", rec.Summary)
			}
		})
	}
}

func TestAnalyzeConversationQuality_NullIssuesBecomesEmptySlice(t *testing.T) {
	mock := &mockProvider{
		response: `{"has_issues": false, "issues_found": null, "severity": "low", "summary": "fine"}`,
	}
	c := NewClient(mock, "model-a")

	rec := c.AnalyzeConversationQuality(context.Background(), "transcript")
	if rec.IssuesFound == nil {
		t.Error("IssuesFound should be an empty slice, not nil")
	}
}

// ---------------------------------------------------------------------------
// ConversationAnalyzer tests
// ---------------------------------------------------------------------------

func TestAnalyzerPromises_Caching(t *testing.T) {
	s := newTestStore(t)
	mock := &mockProvider{response: "true"}
	a := NewConversationAnalyzer(NewClient(mock, "model-a"), s)

	got, err := a.CheckUnfinishedPromises(context.Background(), 42, "transcript one")
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if !got {
		t.Error("first call = false, want true")
	}

	// Second call with the same transcript must be served from the cache.
	got, err = a.CheckUnfinishedPromises(context.Background(), 42, "transcript one")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !got {
		t.Error("cached call = false, want true")
	}
	if mock.genCalls.Load() != 1 {
		t.Errorf("GenerateText called %d times, want 1", mock.genCalls.Load())
	}

	// A different transcript misses the cache.
	if _, err := a.CheckUnfinishedPromises(context.Background(), 42, "transcript two"); err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if mock.genCalls.Load() != 2 {
		t.Errorf("GenerateText called %d times, want 2", mock.genCalls.Load())
	}
}

func TestAnalyzerPromises_ErrorNotCached(t *testing.T) {
	s := newTestStore(t)
	mock := &mockProvider{genErr: errors.New("down")}
	a := NewConversationAnalyzer(NewClient(mock, "model-a"), s)

	if _, err := a.CheckUnfinishedPromises(context.Background(), 7, "transcript"); err == nil {
		t.Fatal("expected error from failing provider")
	}

	// After the provider recovers, the same transcript is re-queried.
	mock.genErr = nil
	mock.response = "false"
	got, err := a.CheckUnfinishedPromises(context.Background(), 7, "transcript")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if got {
		t.Error("second call = true, want false")
	}
}

func TestAnalyzerQuality_Caching(t *testing.T) {
	s := newTestStore(t)
	mock := &mockProvider{
		response: `{"has_issues": true, "issues_found": ["slow replies"], "severity": "medium", "summary": "Replies lag."}`,
	}
	a := NewConversationAnalyzer(NewClient(mock, "model-a"), s)

	rec := a.AnalyzeQuality(context.Background(), 42, "transcript")
	if rec.Severity != SeverityMedium {
		t.Fatalf("Severity = %q, want %q", rec.Severity, SeverityMedium)
	}

	rec = a.AnalyzeQuality(context.Background(), 42, "transcript")
	if rec.Severity != SeverityMedium || len(rec.IssuesFound) != 1 {
		t.Errorf("cached record mismatch: %+v", rec)
	}
	if mock.genCalls.Load() != 1 {
		t.Errorf("GenerateText called %d times, want 1", mock.genCalls.Load())
	}
}

func TestAnalyzerQuality_DegradedNotCached(t *testing.T) {
	s := newTestStore(t)
	mock := &mockProvider{genErr: errors.New("down")}
	a := NewConversationAnalyzer(NewClient(mock, "model-a"), s)

	rec := a.AnalyzeQuality(context.Background(), 9, "transcript")
	if !rec.Degraded() {
		t.Fatal("expected degraded record from failing provider")
	}

	mock.genErr = nil
	mock.response = `{"has_issues": false, "issues_found": [], "severity": "low", "summary": "fine"}`
	rec = a.AnalyzeQuality(context.Background(), 9, "transcript")
	if rec.Degraded() {
		t.Fatal("recovered provider should yield a real record")
	}
	if rec.Severity != SeverityLow {
		t.Errorf("Severity = %q, want %q", rec.Severity, SeverityLow)
	}
}
