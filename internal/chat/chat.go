// Package chat defines the capability herobot uses to talk to its single
// recipient, and the Telegram implementation of it.
package chat

import (
	"context"
	"time"
)

// Handle identifies a message previously sent to the chat. It is only used
// to edit that exact message.
type Handle struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether h refers to no message.
func (h Handle) IsZero() bool {
	return h.MessageID == 0
}

// Outbound is a message to post.
type Outbound struct {
	Text string
	// ReplyTo threads the message under an inbound message when non-zero.
	ReplyTo int
}

// Inbound is a text message received from the recipient's chat.
type Inbound struct {
	ID     int
	ChatID int64
	From   string
	Text   string
	Date   time.Time
}

// Endpoint is the remote chat service. Implementations report failures as
// *errors.ChatError and never retry.
type Endpoint interface {
	// SendMessage posts a new message to the recipient.
	SendMessage(ctx context.Context, msg Outbound) (Handle, error)
	// EditMessage replaces the text of a message sent earlier.
	EditMessage(ctx context.Context, h Handle, text string) error
	// PollInbound blocks until a message arrives or the poll times out, in
	// which case it returns nil, nil.
	PollInbound(ctx context.Context) (*Inbound, error)
}
