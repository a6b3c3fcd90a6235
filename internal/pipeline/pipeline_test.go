package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avelichko/manager-pulse/internal/analysis"
	"github.com/avelichko/manager-pulse/internal/config"
	"github.com/avelichko/manager-pulse/internal/report"
	"github.com/avelichko/manager-pulse/internal/store"
)

// scriptedProvider replays canned responses in call order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) GenerateText(_ context.Context, _, _ string) (string, error) {
	if p.calls >= len(p.responses) {
		return "", fmt.Errorf("unexpected call %d", p.calls)
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

func (p *scriptedProvider) ListModels(_ context.Context) ([]analysis.ModelInfo, error) {
	return nil, nil
}

func newTestPipeline(t *testing.T, provider analysis.Provider) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.OutputDir = t.TempDir()
	cfg.Offline = true
	cfg.ManagerID = 100

	s, err := store.New(cfg.DBPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	client := analysis.NewClient(provider, "scripted-model")
	var buf bytes.Buffer
	p := &Pipeline{
		cfg:      cfg,
		store:    s,
		provider: provider,
		client:   client,
		analyzer: analysis.NewConversationAnalyzer(client, s),
		console:  report.NewConsoleWriter(&buf),
		mdGen:    report.NewMarkdownGenerator(cfg.OutputDir),
		csvGen:   report.NewCSVGenerator(cfg.OutputDir),
	}
	t.Cleanup(func() { p.Close() })
	return p, &buf
}

func seedConversation(t *testing.T, s *store.Store) {
	t.Helper()
	base := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	if err := s.UpsertDialog(&store.Dialog{ID: 200, Name: "Anna Petrova", LastMessageDate: base}); err != nil {
		t.Fatalf("seeding dialog: %v", err)
	}
	msgs := []*store.Message{
		{DialogID: 200, MessageID: 1, SenderID: 200, SenderKnown: true, Text: "price?", MessageDate: base},
		{DialogID: 200, MessageID: 2, SenderID: 100, SenderKnown: true, Text: "calculating...", MessageDate: base.Add(3 * time.Minute)},
	}
	for _, m := range msgs {
		if err := s.UpsertMessage(m); err != nil {
			t.Fatalf("seeding message: %v", err)
		}
	}
}

func TestNewPipeline_WithAnthropicKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.Offline = true
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.AnthropicKey = "test-key"

	p, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error creating pipeline: %v", err)
	}
	defer p.Close()

	if p.store == nil {
		t.Error("pipeline store should not be nil")
	}
	if p.client == nil {
		t.Error("pipeline LLM client should not be nil")
	}
	if p.analyzer == nil {
		t.Error("pipeline analyzer should not be nil")
	}
	if p.fetcher != nil {
		t.Error("offline pipeline should not create a fetcher")
	}
	if p.mdGen == nil || p.csvGen == nil {
		t.Error("pipeline report generators should not be nil")
	}
}

func TestNewPipeline_UnsupportedProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.Offline = true
	cfg.LLM.Provider = "unsupported"

	_, err := New(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unsupported LLM provider")
	}
	want := "unsupported LLM provider: unsupported"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewPipeline_InvalidDBPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBPath = "/nonexistent/deep/path/that/doesnt/exist/test.db"
	cfg.Offline = true
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.AnthropicKey = "test-key"

	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid DB path")
	}
}

func TestPipeline_CloseNilStore(t *testing.T) {
	p := &Pipeline{}
	if err := p.Close(); err != nil {
		t.Errorf("Close() on empty pipeline returned unexpected error: %v", err)
	}
}

func TestFetchOnly_OfflineMode(t *testing.T) {
	p, _ := newTestPipeline(t, &scriptedProvider{})
	if err := p.FetchOnly(context.Background()); err == nil {
		t.Fatal("expected error fetching in offline mode")
	}
}

func TestAnalyzeOnly_EmptyStore(t *testing.T) {
	p, _ := newTestPipeline(t, &scriptedProvider{})
	err := p.AnalyzeOnly(context.Background())
	if err == nil {
		t.Fatal("expected error for empty store")
	}
	if !strings.Contains(err.Error(), "run fetch first") {
		t.Errorf("error = %q, want fetch hint", err.Error())
	}
}

func TestAnalyzeOnly_EndToEnd(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"true",
		`{"has_issues": true, "issues_found": ["ignored question"], "severity": "medium", "summary": "One question went unanswered"}`,
	}}
	p, buf := newTestPipeline(t, provider)
	seedConversation(t, p.store)

	if err := p.AnalyzeOnly(context.Background()); err != nil {
		t.Fatalf("AnalyzeOnly failed: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}

	out := buf.String()
	for _, want := range []string{
		"==== Anna Petrova ====",
		"Manager Performance Summary:",
		"WARNING: unfinished promises detected!",
		"WARNING: issues found (medium): ignored question",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q\noutput:\n%s", want, out)
		}
	}

	// Default format "all" writes markdown + two CSVs, each recorded.
	var count int
	if err := p.store.DB().QueryRow("SELECT COUNT(*) FROM reports").Scan(&count); err != nil {
		t.Fatalf("counting reports: %v", err)
	}
	if count != 3 {
		t.Errorf("reports count = %d, want 3", count)
	}
}

func TestAnalyzeOnly_EmptyConversationSkipsLLM(t *testing.T) {
	provider := &scriptedProvider{}
	p, buf := newTestPipeline(t, provider)
	if err := p.store.UpsertDialog(&store.Dialog{ID: 300, Name: "Silent Chat"}); err != nil {
		t.Fatalf("seeding dialog: %v", err)
	}

	if err := p.AnalyzeOnly(context.Background()); err != nil {
		t.Fatalf("AnalyzeOnly failed: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 for empty conversation", provider.calls)
	}
	if !strings.Contains(buf.String(), "No messages to analyze") {
		t.Errorf("console output missing empty-conversation summary:\n%s", buf.String())
	}
}

func TestResolveManagerID(t *testing.T) {
	p, _ := newTestPipeline(t, &scriptedProvider{})

	// Explicit config wins.
	id, err := p.resolveManagerID()
	if err != nil {
		t.Fatalf("resolveManagerID failed: %v", err)
	}
	if id != 100 {
		t.Errorf("id = %d, want 100", id)
	}

	// Fall back to the stored account ID.
	p.cfg.ManagerID = 0
	if _, err := p.resolveManagerID(); err == nil {
		t.Error("expected error with no stored manager id")
	}
	if err := p.store.SetMeta(store.MetaSelfUserID, "555"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}
	id, err = p.resolveManagerID()
	if err != nil {
		t.Fatalf("resolveManagerID failed: %v", err)
	}
	if id != 555 {
		t.Errorf("id = %d, want 555", id)
	}
}

func TestToMetricsMessages(t *testing.T) {
	at := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	stored := []*store.Message{
		{DialogID: 200, MessageID: 1, SenderID: 200, SenderKnown: true, Text: "hi", MessageDate: at},
		{DialogID: 200, MessageID: 2, SenderKnown: false, Text: "fwd", MessageDate: at.Add(time.Minute)},
	}
	msgs := toMetricsMessages(stored)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].SenderID != 200 || !msgs[0].SenderKnown || msgs[0].Text != "hi" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].SenderKnown {
		t.Error("second message should keep unknown sender")
	}
	if !msgs[1].Date.Equal(at.Add(time.Minute)) {
		t.Errorf("date = %s", msgs[1].Date)
	}
}
