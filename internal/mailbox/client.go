package mailbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Client fetches recent messages from an IMAP mailbox over TLS.
type Client struct {
	host      string
	port      int
	username  string
	password  string
	folder    string
	lookback  time.Duration
	bodyLimit int
}

func NewClient(host string, port int, username, password, folder string, lookback time.Duration, bodyLimit int) *Client {
	return &Client{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		folder:    folder,
		lookback:  lookback,
		bodyLimit: bodyLimit,
	}
}

func (c *Client) connect() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)

	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("mailbox: connecting to %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("mailbox: authentication failed for %s: %w", c.username, err)
	}

	return client, nil
}

// Fetch retrieves all messages received within the lookback window, in
// mailbox order. The server-side SINCE predicate operates on calendar
// dates, so the window is approximate near day boundaries. A message
// that fails to decode is skipped; it does not abort the fetch.
func (c *Client) Fetch(_ context.Context) ([]Message, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("mailbox: selecting %s: %w", c.folder, err)
	}

	criteria := &imap.SearchCriteria{
		Since: time.Now().Add(-c.lookback),
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("mailbox: searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			log.Printf("mailbox: skipping message: collect failed: %v", err)
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			log.Printf("mailbox: skipping message UID %d: no body section", buf.UID)
			continue
		}

		parsed, err := parseMessage(raw, c.bodyLimit)
		if err != nil {
			log.Printf("mailbox: skipping message UID %d: %v", buf.UID, err)
			continue
		}
		messages = append(messages, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("mailbox: fetching messages: %w", err)
	}

	log.Printf("mailbox: fetched %d messages from %s", len(messages), c.folder)
	return messages, nil
}
