package summarize

import "github.com/tkuroda/mail-digest/internal/mailbox"

// Batch is a contiguous slice of the fetched message sequence. Start is
// the 0-based offset of its first message in the full sequence.
type Batch struct {
	Start    int
	Messages []mailbox.Message
}

// Split partitions msgs into batches of at most size messages, in the
// original order. Batches are disjoint and cover the whole sequence; the
// last batch may be shorter. An empty sequence yields no batches.
func Split(msgs []mailbox.Message, size int) []Batch {
	if size < 1 {
		size = 1
	}

	var batches []Batch
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		batches = append(batches, Batch{Start: start, Messages: msgs[start:end]})
	}
	return batches
}
