package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkdownGenerator writes Markdown-formatted reports to disk.
type MarkdownGenerator struct {
	outputDir string
}

// NewMarkdownGenerator creates a new MarkdownGenerator that writes to outputDir.
func NewMarkdownGenerator(outputDir string) *MarkdownGenerator {
	return &MarkdownGenerator{outputDir: outputDir}
}

// Generate writes the manager report with a per-conversation summary table
// and a detailed metrics table, returning the file path.
func (g *MarkdownGenerator) Generate(entries []Entry, at time.Time) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# Manager Responsiveness Report - %s\n\n", at.Format("2006-01-02"))
	fmt.Fprintf(&b, "> Generated: %s | Conversations: %d\n\n",
		at.UTC().Format("2006-01-02 15:04 UTC"), len(entries))

	// Summary table
	b.WriteString("## Summary\n\n")
	b.WriteString("| Counterparty | Messages | Response Rate | Avg Response (min) | Rating | Unfinished Promises | Issues |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, e := range entries {
		p := e.Record.Performance
		promises := formatBool(e.Record.HasUnfinishedPromises)
		if e.Record.PromiseCheckError != "" {
			promises = "n/a"
		}
		issues := "-"
		if q := e.Record.Quality; q != nil && q.HasIssues {
			issues = joinIssues(q.IssuesFound)
		}
		fmt.Fprintf(&b, "| %s | %d | %.2f | %.1f | %s | %s | %s |\n",
			e.Name, p.TotalMessages, p.ResponseRate, p.AvgResponseTime, p.Rating(), promises, issues)
	}
	b.WriteString("\n")

	// Detailed metrics table
	b.WriteString("## Detailed Metrics\n\n")
	b.WriteString("| Counterparty | Manager Msgs | Client Msgs | Max Response (min) | Working Hours Avg (min) | Quick | Slow | Out of Hours | Initiated by Manager | Severity | Quality Summary |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, e := range entries {
		p := e.Record.Performance
		severity := "-"
		quality := "-"
		if q := e.Record.Quality; q != nil {
			severity = string(q.Severity)
			quality = q.Summary
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %.1f | %.1f | %d | %d | %d | %s | %s | %s |\n",
			e.Name, p.ManagerMessages, p.ClientMessages, p.MaxResponseTime,
			p.WorkingHoursAvgResponse, p.QuickResponses, p.SlowResponses,
			p.OutOfHoursMessages, formatBool(p.InitiatedByManager), severity, quality)
	}
	b.WriteString("\n")

	filePath := filepath.Join(g.outputDir, reportFilename("report", "md", at))
	if err := os.WriteFile(filePath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing markdown report: %w", err)
	}
	return filePath, nil
}
