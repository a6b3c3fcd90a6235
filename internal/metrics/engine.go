package metrics

import (
	"fmt"
	"time"
)

// Message is a single chat message as seen by the metrics engine.
// SenderKnown is false when the source could not resolve the sender
// identity; such messages are skipped during classification.
type Message struct {
	Date        time.Time
	SenderID    int64
	SenderKnown bool
	Text        string
}

// Performance holds the per-conversation responsiveness metrics for
// the manager. Immutable once returned by Analyze.
type Performance struct {
	TotalMessages           int
	ManagerMessages         int
	ClientMessages          int
	ResponseRate            float64
	AvgResponseTime         float64 // minutes
	MaxResponseTime         float64 // minutes
	InitiatedByManager      bool
	QuickResponses          int
	SlowResponses           int
	WorkingHoursAvgResponse float64 // minutes
	OutOfHoursMessages      int
	Summary                 string
}

const (
	// maxResponseWindow clamps out replies arriving more than 24 hours
	// after the client message; those are treated as unrelated.
	maxResponseWindow = 24 * 60 // minutes

	quickResponseThreshold = 5  // minutes
	slowResponseThreshold  = 30 // minutes

	workdayStartHour = 9
	workdayEndHour   = 18
)

// responseSample is one measured client-message-to-manager-reply gap.
type responseSample struct {
	minutes   float64
	repliedAt time.Time
}

// Analyze computes a Performance record for one conversation between the
// manager and a single counterparty. messages must be in ascending
// chronological order. A nil or empty slice yields a zeroed record with the
// "No messages to analyze" summary; Analyze never fails.
func Analyze(messages []*Message, managerID int64) *Performance {
	if len(messages) == 0 {
		return &Performance{Summary: "No messages to analyze"}
	}

	// Only messages with text participate in any computation.
	valid := make([]*Message, 0, len(messages))
	for _, m := range messages {
		if m.Text != "" {
			valid = append(valid, m)
		}
	}

	p := &Performance{TotalMessages: len(valid)}

	var managerMsgs []*Message
	for _, m := range valid {
		if !m.SenderKnown {
			continue
		}
		if m.SenderID == managerID {
			p.ManagerMessages++
			managerMsgs = append(managerMsgs, m)
		} else {
			p.ClientMessages++
		}
	}

	// Response-time sampling. The pending client message is overwritten by
	// each newer client message but is intentionally NOT cleared when a
	// manager reply consumes it: every manager message following a given
	// client message scores against that same timestamp until a new client
	// message arrives. This matches the historical behavior and is pinned
	// by tests; do not "fix" it without revisiting those.
	var samples []responseSample
	var pending *Message
	for _, m := range valid {
		if !m.SenderKnown {
			continue
		}
		if m.SenderID != managerID {
			pending = m
			continue
		}
		if pending == nil {
			continue
		}
		elapsed := m.Date.Sub(pending.Date).Minutes()
		if elapsed >= 0 && elapsed <= maxResponseWindow {
			samples = append(samples, responseSample{minutes: elapsed, repliedAt: m.Date})
		}
	}

	if p.ClientMessages > 0 {
		p.ResponseRate = float64(p.ManagerMessages) / float64(p.ClientMessages)
	}

	var sum, workSum float64
	var workCount int
	for _, s := range samples {
		sum += s.minutes
		if s.minutes > p.MaxResponseTime {
			p.MaxResponseTime = s.minutes
		}
		if s.minutes < quickResponseThreshold {
			p.QuickResponses++
		}
		if s.minutes > slowResponseThreshold {
			p.SlowResponses++
		}
		if withinWorkingHours(s.repliedAt) {
			workSum += s.minutes
			workCount++
		}
	}
	if len(samples) > 0 {
		p.AvgResponseTime = sum / float64(len(samples))
	}
	if workCount > 0 {
		p.WorkingHoursAvgResponse = workSum / float64(workCount)
	}

	for _, m := range managerMsgs {
		if !withinWorkingHours(m.Date) {
			p.OutOfHoursMessages++
		}
	}

	if len(valid) > 0 {
		first := valid[0]
		p.InitiatedByManager = first.SenderKnown && first.SenderID == managerID
	}

	p.Summary = buildSummary(p)
	return p
}

// Rating returns the qualitative label for the average response time,
// as used in the summary text.
func (p *Performance) Rating() string {
	return responseTimeRating(p.AvgResponseTime)
}

// withinWorkingHours reports whether t falls on a weekday between 09:00
// and 18:00 in t's own location.
func withinWorkingHours(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	h := t.Hour()
	return h >= workdayStartHour && h < workdayEndHour
}

// responseTimeRating buckets the average response time into a qualitative
// label used in the summary text.
func responseTimeRating(avgMinutes float64) string {
	switch {
	case avgMinutes < 5:
		return "Excellent"
	case avgMinutes < 15:
		return "Good"
	case avgMinutes < 30:
		return "Fair"
	default:
		return "Poor"
	}
}

func buildSummary(p *Performance) string {
	initiative := "No"
	if p.InitiatedByManager {
		initiative = "Yes"
	}

	return fmt.Sprintf(
		"Manager Performance Summary:\n"+
			"- Total Messages: %d\n"+
			"- Response Rate: %.2f responses per client message\n"+
			"- Average Response Time: %.1f minutes (%s)\n"+
			"- Working Hours Avg Response: %.1f minutes\n"+
			"- Quick Responses (<5min): %d\n"+
			"- Slow Responses (>30min): %d\n"+
			"- Out of Hours Messages: %d\n"+
			"- Conversation Initiative: %s",
		p.TotalMessages,
		p.ResponseRate,
		p.AvgResponseTime,
		responseTimeRating(p.AvgResponseTime),
		p.WorkingHoursAvgResponse,
		p.QuickResponses,
		p.SlowResponses,
		p.OutOfHoursMessages,
		initiative,
	)
}
