// Package gmail provides Gmail API operations for mailscheduler.
//
// It is the mail gateway: scheduled emails are sent (optionally threaded
// into an existing conversation), templates are authored as drafts, and
// reply detection inspects thread message counts.
package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	gm "google.golang.org/api/gmail/v1"

	"github.com/phleudt/mailscheduler/internal/types"
)

// Message is one outbound message handed to the gateway.
type Message struct {
	From     string
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// SendResult identifies the message and conversation assigned by the mail
// service after a send.
type SendResult struct {
	ID       string
	ThreadID string
}

// Gateway is the mail-service contract consumed by dispatch and template
// reconciliation.
type Gateway interface {
	// Send delivers a message; a non-empty ThreadID threads it into an
	// existing conversation.
	Send(msg Message) (*SendResult, error)
	// CreateDraft stores a message as an unsent draft.
	CreateDraft(msg Message) (*types.Draft, error)
	// ListDrafts returns all current drafts with subject and body.
	ListDrafts() ([]*types.Draft, error)
	// HasReplies reports whether a thread holds more than minCount messages.
	HasReplies(threadID string, minCount int) (bool, error)
}

// Client implements Gateway against the Gmail API.
type Client struct {
	svc *gm.Service
}

// NewClient returns a gateway for the authenticated user.
func NewClient(svc *gm.Service) *Client {
	return &Client{svc: svc}
}

// Send delivers a message via Users.Messages.Send.
func (c *Client) Send(msg Message) (*SendResult, error) {
	raw := encodeRaw(msg)
	sent, err := c.svc.Users.Messages.Send("me", &gm.Message{
		Raw:      raw,
		ThreadId: msg.ThreadID,
	}).Do()
	if err != nil {
		return nil, fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return &SendResult{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// CreateDraft stores a message as a Gmail draft.
func (c *Client) CreateDraft(msg Message) (*types.Draft, error) {
	draft, err := c.svc.Users.Drafts.Create("me", &gm.Draft{
		Message: &gm.Message{Raw: encodeRaw(msg), ThreadId: msg.ThreadID},
	}).Do()
	if err != nil {
		return nil, fmt.Errorf("create draft %q: %w", msg.Subject, err)
	}
	return &types.Draft{ID: draft.Id, Subject: msg.Subject, Body: msg.Body}, nil
}

// ListDrafts fetches every draft with subject and decoded body.
func (c *Client) ListDrafts() ([]*types.Draft, error) {
	resp, err := c.svc.Users.Drafts.List("me").Do()
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	drafts := make([]*types.Draft, 0, len(resp.Drafts))
	for _, d := range resp.Drafts {
		detail, err := c.svc.Users.Drafts.Get("me", d.Id).Format("full").Do()
		if err != nil {
			return nil, fmt.Errorf("get draft %s: %w", d.Id, err)
		}
		if detail.Message == nil || detail.Message.Payload == nil {
			continue
		}
		headers := headerMap(detail.Message.Payload.Headers)
		drafts = append(drafts, &types.Draft{
			ID:      detail.Id,
			Subject: headers["Subject"],
			Body:    extractBody(detail.Message.Payload),
		})
	}
	return drafts, nil
}

// HasReplies reports whether a thread has grown past the messages we sent
// ourselves, i.e. the recipient answered.
func (c *Client) HasReplies(threadID string, minCount int) (bool, error) {
	thread, err := c.svc.Users.Threads.Get("me", threadID).Format("minimal").Do()
	if err != nil {
		return false, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	return len(thread.Messages) > minCount, nil
}

// encodeRaw assembles an RFC 2822 message and base64url-encodes it the way
// the Gmail API expects.
func encodeRaw(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(b.String()))
}

// extractBody gets the plain text body from a message payload.
// Handles multipart messages recursively, preferring text/plain over text/html.
func extractBody(payload *gm.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
			return decoded
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
	}

	return ""
}

// headerMap converts Gmail API headers into a simple key-value map.
func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// decodeBase64URL decodes Gmail's base64url-encoded content.
func decodeBase64URL(data string) (string, error) {
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
