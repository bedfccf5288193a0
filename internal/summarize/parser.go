package summarize

import (
	"fmt"
	"regexp"
	"strings"
)

// Parser extracts one summary per message position from a raw generation
// response. The endpoint does not reliably reproduce the requested
// marker format, so each position is tried against an ordered list of
// extraction strategies; the first hit wins, and a position no strategy
// can recover gets FallbackNotParsed. The result always covers the full
// position range of the batch.
type Parser struct {
	summaryLimit int
}

// NewParser returns a parser that truncates cleaned summaries to
// summaryLimit runes.
func NewParser(summaryLimit int) *Parser {
	return &Parser{summaryLimit: summaryLimit}
}

// Parse extracts summaries for the count messages starting at the
// 0-based absolute offset start. The returned map has exactly count
// entries keyed [start+1, start+count].
func (p *Parser) Parse(text string, start, count int) SummaryMap {
	summaries := make(SummaryMap, count)

	for i := 0; i < count; i++ {
		n := start + i + 1

		raw, ok := extractPosition(text, n)
		if !ok {
			summaries[n] = FallbackNotParsed
			continue
		}

		cleaned := p.clean(raw)
		if cleaned == "" {
			summaries[n] = FallbackNotParsed
			continue
		}
		summaries[n] = cleaned
	}

	return summaries
}

// Block-capture pattern variants, most specific first. Each captures the
// text after the marker for position %d, up to the next marker for any
// position or the end of the response. Terminating on any marker rather
// than exactly n+1 keeps one omitted marker from poisoning its
// neighbor's capture.
var blockPatterns = []string{
	// Bold marker: **Email 5:** or **Email 5**:
	`(?s)\*\*\s*Email\s+%d\s*:?\s*\*\*\s*:?\s*(.*?)\s*(?:[*#]{0,4}\s*Email\s+\d+\s*[:.]|$)`,
	// Plain marker, the format the prompt asks for: Email 5:
	`(?s)Email\s+%d\s*:\s*(.*?)\s*(?:[*#]{0,4}\s*Email\s+\d+\s*[:.]|$)`,
	// Heading or list marker on its own line: ### Email 5 - ...
	`(?m)^\s*(?:#{1,4}|[-*])\s*Email\s+%d\s*[:.\-]?\s*(.+)$`,
}

// extractPosition runs the ordered strategy list for position n: the
// block patterns first, then a line-oriented scan. Later strategies are
// not tried once one matches.
func extractPosition(text string, n int) (string, bool) {
	for _, pattern := range blockPatterns {
		re := regexp.MustCompile(fmt.Sprintf(pattern, n))
		if m := re.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
			return m[1], true
		}
	}

	return scanLines(text, n)
}

var markerish = regexp.MustCompile(`(?i)^[*#\s]*Email\s+\d+`)

// scanLines is the last-resort strategy: find any line mentioning the
// position token, strip everything through the marker, and use the rest
// of the line if non-empty. A remainder that itself starts with another
// marker is a merged block, not a summary.
func scanLines(text string, n int) (string, bool) {
	token := regexp.MustCompile(fmt.Sprintf(`(?i)\bEmail\s+%d\b\s*[:.\-]?\s*`, n))

	for _, line := range strings.Split(text, "\n") {
		loc := token.FindStringIndex(line)
		if loc == nil {
			continue
		}
		rest := strings.TrimSpace(line[loc[1]:])
		if rest != "" && !markerish.MatchString(rest) {
			return rest, true
		}
	}
	return "", false
}

var (
	emphasisChars = strings.NewReplacer("*", "", "_", "", "`", "")
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// clean normalizes an extracted block: emphasis punctuation is stripped,
// whitespace runs collapse to single spaces, leftover marker punctuation
// at the start is trimmed, and the result is capped for display.
func (p *Parser) clean(s string) string {
	s = emphasisChars.Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimLeft(s, " :-–—")
	return truncateRunes(strings.TrimSpace(s), p.summaryLimit)
}
