package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	// Importing charset also registers decoders for legacy encodings
	// (windows-1252, iso-8859-*, koi8-r, etc.) with go-message.
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// wordDecoder decodes RFC 2047 encoded-words, including headers that mix
// several differently-encoded fragments in one value.
var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// decodeHeader decodes a raw header value into one display string. An
// unknown or invalid encoding falls back to the raw bytes, with invalid
// UTF-8 sequences dropped.
func decodeHeader(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return toValidText(s)
	}
	return toValidText(decoded)
}

func toValidText(s string) string {
	return strings.ToValidUTF8(s, "")
}

// truncate caps s at n runes so a multi-byte character is never split.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// parseMessage decodes one raw RFC 5322 message into a Message. The
// body is the first inline text/plain part; if no part is marked
// plain-text, the first inline part of any type is used. Attachment
// parts are never considered.
func parseMessage(raw []byte, bodyLimit int) (Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	msg := Message{
		Sender:     decodeHeader(mr.Header.Get("From")),
		Recipient:  decodeHeader(mr.Header.Get("To")),
		Subject:    decodeHeader(mr.Header.Get("Subject")),
		ReceivedAt: mr.Header.Get("Date"),
	}

	var fallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken part ends body extraction; keep what we have.
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := inline.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		if strings.HasPrefix(contentType, "text/plain") {
			msg.Body = toValidText(string(body))
			break
		}
		if fallback == "" {
			fallback = toValidText(string(body))
		}
	}

	if msg.Body == "" {
		msg.Body = fallback
	}
	msg.Body = truncate(msg.Body, bodyLimit)

	return msg, nil
}
