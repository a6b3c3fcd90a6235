package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/avelichko/manager-pulse/internal/analysis"
)

// Entry pairs a counterparty display name with its analytics record.
// Entries are rendered in slice order so reports are deterministic.
type Entry struct {
	Name   string
	Record *analysis.AnalyticsRecord
}

func reportFilename(kind, ext string, at time.Time) string {
	return fmt.Sprintf("manager_%s_%s.%s", kind, at.Format("20060102_150405"), ext)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func joinIssues(issues []string) string {
	if len(issues) == 0 {
		return "-"
	}
	return strings.Join(issues, "; ")
}
