package metrics

import (
	"fmt"
	"strings"
)

// Transcript renders a conversation as plain text suitable for LLM prompts,
// one message per line:
//
//	[2024-01-01 10:00] Manager: I'll send the calculation today.
//	[2024-01-01 10:05] Client: Great, thank you!
//
// Empty messages are dropped. Messages without a resolvable sender are
// attributed to the client side.
func Transcript(messages []*Message, managerID int64) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Text == "" {
			continue
		}
		role := "Client"
		if m.SenderKnown && m.SenderID == managerID {
			role = "Manager"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Date.Format("2006-01-02 15:04"), role, m.Text)
	}
	return b.String()
}
