package summarize

import "context"

// SummaryMap maps the 1-based absolute position of a message across the
// whole run to its summary text. After a run it is total: every position
// in [1, totalMessages] holds either a genuine summary or one of the
// fallback strings below.
type SummaryMap map[int]string

// Fallback strings. They are distinct so downstream consumers can tell
// a failed generation call apart from a response that could not be
// parsed for one message.
const (
	// FallbackGenerationFailed marks every message of a batch whose
	// generation call failed outright.
	FallbackGenerationFailed = "Summary unavailable (generation failed)"

	// FallbackNotParsed marks a single message whose marker could not be
	// located in an otherwise successful response.
	FallbackNotParsed = "Summary not available"
)

// Generator produces raw summary text for one rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
