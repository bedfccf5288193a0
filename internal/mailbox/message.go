package mailbox

import "context"

// Message is one retrieved email, decoded and truncated at fetch time.
// Messages are immutable after retrieval.
type Message struct {
	Sender     string
	Recipient  string
	Subject    string
	ReceivedAt string // raw Date header value, kept opaque
	Body       string // plain-text body, truncated to the fetch-time cap
}

// Fetcher retrieves all messages received within the lookback window.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Message, error)
}
