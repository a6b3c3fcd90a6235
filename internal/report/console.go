package report

import (
	"fmt"
	"io"
	"strings"
)

// ConsoleWriter renders per-counterparty analytics blocks to a terminal.
// This is the default presentation surface.
type ConsoleWriter struct {
	w io.Writer
}

func NewConsoleWriter(w io.Writer) *ConsoleWriter {
	return &ConsoleWriter{w: w}
}

// Write prints one block per counterparty: the performance summary text, a
// warning line when unfinished promises were detected, and a warning line
// listing conversation issues.
func (c *ConsoleWriter) Write(entries []Entry) error {
	for _, e := range entries {
		header := fmt.Sprintf("==== %s ====", e.Name)
		if _, err := fmt.Fprintf(c.w, "\n%s\n", header); err != nil {
			return fmt.Errorf("writing console report: %w", err)
		}
		fmt.Fprintln(c.w, e.Record.Performance.Summary)
		if e.Record.PromiseCheckError != "" {
			fmt.Fprintf(c.w, "Promise check unavailable: %s\n", e.Record.PromiseCheckError)
		} else if e.Record.HasUnfinishedPromises {
			fmt.Fprintln(c.w, "WARNING: unfinished promises detected!")
		}
		if q := e.Record.Quality; q != nil && q.HasIssues {
			fmt.Fprintf(c.w, "WARNING: issues found (%s): %s\n", q.Severity, strings.Join(q.IssuesFound, "; "))
		}
	}
	return nil
}
