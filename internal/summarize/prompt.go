package summarize

import (
	"fmt"
	"strings"
)

// marker is the literal per-message delimiter the generation endpoint is
// asked to emit and the parser searches for. Prompt and parser must stay
// in sync on this format.
func marker(n int) string {
	return fmt.Sprintf("Email %d:", n)
}

// BuildPrompt renders one batch into a single prompt. Messages are
// numbered by their 1-based absolute position in the run, and bodies are
// truncated to bodyLimit runes, a tighter cap than the one applied at
// fetch time. The output is deterministic for a given batch.
func BuildPrompt(b Batch, bodyLimit int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Below are %d emails. Summarize each one clearly in 2-3 sentences.\n", len(b.Messages))
	sb.WriteString("Begin each summary on a new line with the exact marker used below,\n")
	sb.WriteString("for example \"")
	sb.WriteString(marker(b.Start + 1))
	sb.WriteString("\" for the first email. Keep the numbering exactly as given\n")
	sb.WriteString("and do not skip any email.\n\n")

	for i, m := range b.Messages {
		n := b.Start + i + 1
		sb.WriteString(marker(n))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "From: %s\n", m.Sender)
		fmt.Fprintf(&sb, "To: %s\n", m.Recipient)
		fmt.Fprintf(&sb, "Subject: %s\n", m.Subject)
		fmt.Fprintf(&sb, "Date: %s\n", m.ReceivedAt)
		sb.WriteString(truncateRunes(m.Body, bodyLimit))
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// truncateRunes caps s at n runes without splitting a multi-byte
// character. n <= 0 disables the cap.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
