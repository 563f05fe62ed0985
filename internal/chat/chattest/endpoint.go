// Package chattest provides an in-memory chat.Endpoint that records every
// outbound call for assertions.
package chattest

import (
	"context"
	"sync"

	"github.com/Iron-Ham/herobot/internal/chat"
)

// ChatID is the chat every fake handle belongs to.
const ChatID int64 = 42

// CallKind distinguishes recorded outbound calls.
type CallKind string

const (
	KindSend CallKind = "send"
	KindEdit CallKind = "edit"
)

// Call is one recorded outbound call, successful or not.
type Call struct {
	Kind    CallKind
	Text    string
	ReplyTo int
	Handle  chat.Handle
	Err     error
}

// Endpoint is a recording fake. Inbound messages are queued with Push.
type Endpoint struct {
	// SendErr, when set, decides whether a send fails.
	SendErr func(msg chat.Outbound) error
	// EditErr, when set, decides whether an edit fails.
	EditErr func(h chat.Handle, text string) error
	// PollErr, when set, is consulted before every poll.
	PollErr func() error

	mu     sync.Mutex
	nextID int
	calls  []Call

	inbound chan chat.Inbound
}

var _ chat.Endpoint = (*Endpoint)(nil)

// New returns an empty fake.
func New() *Endpoint {
	return &Endpoint{inbound: make(chan chat.Inbound, 64)}
}

// SendMessage records msg and returns a fresh handle unless SendErr fails it.
func (e *Endpoint) SendMessage(_ context.Context, msg chat.Outbound) (chat.Handle, error) {
	var err error
	if e.SendErr != nil {
		err = e.SendErr(msg)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	call := Call{Kind: KindSend, Text: msg.Text, ReplyTo: msg.ReplyTo, Err: err}
	if err == nil {
		e.nextID++
		call.Handle = chat.Handle{ChatID: ChatID, MessageID: e.nextID}
	}
	e.calls = append(e.calls, call)
	return call.Handle, err
}

// EditMessage records the edit unless EditErr fails it.
func (e *Endpoint) EditMessage(_ context.Context, h chat.Handle, text string) error {
	var err error
	if e.EditErr != nil {
		err = e.EditErr(h, text)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Kind: KindEdit, Text: text, Handle: h, Err: err})
	return err
}

// PollInbound blocks until a message is pushed or ctx ends.
func (e *Endpoint) PollInbound(ctx context.Context) (*chat.Inbound, error) {
	if e.PollErr != nil {
		if err := e.PollErr(); err != nil {
			return nil, err
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-e.inbound:
		return &msg, nil
	}
}

// Push queues an inbound message.
func (e *Endpoint) Push(msg chat.Inbound) {
	if msg.ChatID == 0 {
		msg.ChatID = ChatID
	}
	e.inbound <- msg
}

// Calls returns every recorded call in order.
func (e *Endpoint) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Sent returns the texts of successful sends in order.
func (e *Endpoint) Sent() []string {
	return e.texts(KindSend)
}

// Edited returns the texts of successful edits in order.
func (e *Endpoint) Edited() []string {
	return e.texts(KindEdit)
}

func (e *Endpoint) texts(kind CallKind) []string {
	var out []string
	for _, c := range e.Calls() {
		if c.Kind == kind && c.Err == nil {
			out = append(out, c.Text)
		}
	}
	return out
}
