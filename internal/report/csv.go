package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVGenerator writes the summary and detailed metrics tables as CSV files.
type CSVGenerator struct {
	outputDir string
}

func NewCSVGenerator(outputDir string) *CSVGenerator {
	return &CSVGenerator{outputDir: outputDir}
}

// Generate writes both CSV files and returns their paths, summary first.
func (g *CSVGenerator) Generate(entries []Entry, at time.Time) ([]string, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	summaryPath := filepath.Join(g.outputDir, reportFilename("summary", "csv", at))
	if err := g.writeSummary(summaryPath, entries); err != nil {
		return nil, err
	}
	detailedPath := filepath.Join(g.outputDir, reportFilename("detailed", "csv", at))
	if err := g.writeDetailed(detailedPath, entries); err != nil {
		return nil, err
	}
	return []string{summaryPath, detailedPath}, nil
}

func (g *CSVGenerator) writeSummary(path string, entries []Entry) error {
	rows := [][]string{{
		"counterparty", "total_messages", "response_rate", "avg_response_time",
		"rating", "has_unfinished_promises", "has_issues",
	}}
	for _, e := range entries {
		p := e.Record.Performance
		promises := strconv.FormatBool(e.Record.HasUnfinishedPromises)
		if e.Record.PromiseCheckError != "" {
			promises = ""
		}
		hasIssues := ""
		if q := e.Record.Quality; q != nil {
			hasIssues = strconv.FormatBool(q.HasIssues)
		}
		rows = append(rows, []string{
			e.Name,
			strconv.Itoa(p.TotalMessages),
			formatFloat(p.ResponseRate),
			formatFloat(p.AvgResponseTime),
			p.Rating(),
			promises,
			hasIssues,
		})
	}
	return writeCSV(path, rows)
}

func (g *CSVGenerator) writeDetailed(path string, entries []Entry) error {
	rows := [][]string{{
		"counterparty", "manager_messages", "client_messages", "max_response_time",
		"working_hours_avg_response", "quick_responses", "slow_responses",
		"out_of_hours_messages", "initiated_by_manager", "severity", "issues_found", "quality_summary",
	}}
	for _, e := range entries {
		p := e.Record.Performance
		severity, issues, summary := "", "", ""
		if q := e.Record.Quality; q != nil {
			severity = string(q.Severity)
			issues = joinIssues(q.IssuesFound)
			summary = q.Summary
		}
		rows = append(rows, []string{
			e.Name,
			strconv.Itoa(p.ManagerMessages),
			strconv.Itoa(p.ClientMessages),
			formatFloat(p.MaxResponseTime),
			formatFloat(p.WorkingHoursAvgResponse),
			strconv.Itoa(p.QuickResponses),
			strconv.Itoa(p.SlowResponses),
			strconv.Itoa(p.OutOfHoursMessages),
			strconv.FormatBool(p.InitiatedByManager),
			severity,
			issues,
			summary,
		})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
