package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/avelichko/manager-pulse/internal/analysis"
	"github.com/avelichko/manager-pulse/internal/config"
	"github.com/avelichko/manager-pulse/internal/metrics"
	"github.com/avelichko/manager-pulse/internal/report"
	"github.com/avelichko/manager-pulse/internal/sources"
	"github.com/avelichko/manager-pulse/internal/store"
)

// Pipeline orchestrates the full fetch -> analyze -> report workflow.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	provider analysis.Provider
	client   *analysis.Client
	analyzer *analysis.ConversationAnalyzer
	fetcher  *sources.TelegramFetcher
	console  *report.ConsoleWriter
	mdGen    *report.MarkdownGenerator
	csvGen   *report.CSVGenerator
}

// New initializes all components and returns a ready-to-run Pipeline.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	// Open the SQLite store.
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	provider, err := NewProvider(ctx, cfg.LLM)
	if err != nil {
		s.Close()
		return nil, err
	}

	client := analysis.NewClient(provider, cfg.LLM.Model)
	analyzer := analysis.NewConversationAnalyzer(client, s)

	// The Telegram client needs valid API credentials; in offline mode
	// analysis runs purely from the store so none are required.
	var fetcher *sources.TelegramFetcher
	if !cfg.Offline {
		tc, err := sources.NewTelegramClient(cfg.Telegram)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating telegram client: %w", err)
		}
		fetcher = sources.NewTelegramFetcher(tc, s)
	}

	return &Pipeline{
		cfg:      cfg,
		store:    s,
		provider: provider,
		client:   client,
		analyzer: analyzer,
		fetcher:  fetcher,
		console:  report.NewConsoleWriter(os.Stdout),
		mdGen:    report.NewMarkdownGenerator(cfg.OutputDir),
		csvGen:   report.NewCSVGenerator(cfg.OutputDir),
	}, nil
}

// NewProvider builds the configured LLM provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (analysis.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		p, err := analysis.NewGeminiProvider(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, fmt.Errorf("creating gemini provider: %w", err)
		}
		return p, nil
	case "openai":
		return analysis.NewOpenAIProvider(cfg.OpenAIKey), nil
	case "anthropic":
		return analysis.NewAnthropicProvider(cfg.AnthropicKey), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Close releases all resources held by the pipeline.
func (p *Pipeline) Close() error {
	if c, ok := p.provider.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("pipeline: closing provider: %v", err)
		}
	}
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Run executes the full pipeline: fetch messages, analyze, and generate reports.
func (p *Pipeline) Run(ctx context.Context) error {
	log.Println("pipeline: starting full run")

	if p.cfg.Offline {
		log.Println("pipeline: offline mode, skipping fetch phase")
	} else if err := p.FetchOnly(ctx); err != nil {
		return fmt.Errorf("fetch phase: %w", err)
	}

	if err := p.AnalyzeOnly(ctx); err != nil {
		return fmt.Errorf("analyze phase: %w", err)
	}

	log.Println("pipeline: run complete")
	return nil
}

// FetchOnly executes only the message-fetching phase of the pipeline.
func (p *Pipeline) FetchOnly(ctx context.Context) error {
	if p.fetcher == nil {
		return fmt.Errorf("fetching is disabled in offline mode")
	}
	log.Println("pipeline: starting fetch phase")
	log.Printf("pipeline: history depth %s, dialog age limit %s",
		p.cfg.HistoryDepth, p.cfg.MaxDialogAge)

	selfID, err := p.fetcher.FetchRecentChats(ctx, p.cfg.ChatLimit, p.cfg.HistoryDepth, p.cfg.MaxDialogAge)
	if err != nil {
		return err
	}
	log.Printf("pipeline: fetch phase complete (account %d)", selfID)
	return nil
}

// AnalyzeOnly executes only the analysis and report generation phase,
// using messages already cached in the store.
func (p *Pipeline) AnalyzeOnly(ctx context.Context) error {
	log.Println("pipeline: starting analysis phase")

	managerID, err := p.resolveManagerID()
	if err != nil {
		return err
	}

	dialogs, err := p.store.ListDialogs(p.cfg.ChatLimit)
	if err != nil {
		return fmt.Errorf("listing dialogs: %w", err)
	}
	if len(dialogs) == 0 {
		return fmt.Errorf("no dialogs found in store (run fetch first)")
	}
	log.Printf("pipeline: analyzing %d dialogs as manager %d", len(dialogs), managerID)

	// One dialog at a time: the model-fallback bookkeeping in the LLM
	// client mutates shared state and must not run concurrently.
	var entries []report.Entry
	for _, d := range dialogs {
		record, err := p.analyzeDialog(ctx, d, managerID)
		if err != nil {
			return fmt.Errorf("analyzing dialog %d: %w", d.ID, err)
		}
		entries = append(entries, report.Entry{Name: d.Name, Record: record})
	}

	if err := p.console.Write(entries); err != nil {
		return err
	}
	if err := p.generateReports(entries); err != nil {
		return err
	}

	log.Println("pipeline: analysis phase complete")
	return nil
}

func (p *Pipeline) analyzeDialog(ctx context.Context, d *store.Dialog, managerID int64) (*analysis.AnalyticsRecord, error) {
	stored, err := p.store.GetMessages(d.ID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	msgs := toMetricsMessages(stored)

	record := &analysis.AnalyticsRecord{
		Performance: metrics.Analyze(msgs, managerID),
	}
	if record.Performance.TotalMessages == 0 {
		return record, nil
	}

	transcript := metrics.Transcript(msgs, managerID)

	promises, err := p.analyzer.CheckUnfinishedPromises(ctx, d.ID, transcript)
	if err != nil {
		log.Printf("warning: promise check failed for %s: %v", d.Name, err)
		record.PromiseCheckError = err.Error()
	} else {
		record.HasUnfinishedPromises = promises
	}

	record.Quality = p.analyzer.AnalyzeQuality(ctx, d.ID, transcript)
	return record, nil
}

// resolveManagerID prefers the explicitly configured manager, falling back
// to the account ID recorded during the last fetch.
func (p *Pipeline) resolveManagerID() (int64, error) {
	if p.cfg.ManagerID != 0 {
		return p.cfg.ManagerID, nil
	}
	v, err := p.store.GetMeta(store.MetaSelfUserID)
	if err != nil {
		return 0, fmt.Errorf("manager identity unknown: set --manager-id or run fetch first")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing stored manager id %q: %w", v, err)
	}
	return id, nil
}

// generateReports writes file reports in the configured format and records
// them in the store.
func (p *Pipeline) generateReports(entries []report.Entry) error {
	now := time.Now()

	if p.cfg.Format == "markdown" || p.cfg.Format == "all" {
		path, err := p.mdGen.Generate(entries, now)
		if err != nil {
			return fmt.Errorf("generating markdown report: %w", err)
		}
		p.recordReport("markdown", path)
		log.Printf("pipeline: wrote markdown report %s", path)
	}

	if p.cfg.Format == "csv" || p.cfg.Format == "all" {
		paths, err := p.csvGen.Generate(entries, now)
		if err != nil {
			return fmt.Errorf("generating csv reports: %w", err)
		}
		for _, path := range paths {
			p.recordReport("csv", path)
			log.Printf("pipeline: wrote csv report %s", path)
		}
	}
	return nil
}

func (p *Pipeline) recordReport(reportType, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("warning: hashing report %s: %v", path, err)
		return
	}
	sum := sha256.Sum256(data)
	if err := p.store.InsertReport(&store.Report{
		ReportType:  reportType,
		FilePath:    path,
		ContentHash: hex.EncodeToString(sum[:]),
	}); err != nil {
		log.Printf("warning: recording report %s: %v", path, err)
	}
}

func toMetricsMessages(stored []*store.Message) []*metrics.Message {
	msgs := make([]*metrics.Message, len(stored))
	for i, m := range stored {
		msgs[i] = &metrics.Message{
			Date:        m.MessageDate,
			SenderID:    m.SenderID,
			SenderKnown: m.SenderKnown,
			Text:        m.Text,
		}
	}
	return msgs
}
