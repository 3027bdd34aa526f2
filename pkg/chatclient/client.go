// Package chatclient holds a chat conversation in memory and streams assistant
// replies from the daybook relay into it.
//
// A Client allows one request in flight at a time. Fragments are appended to
// the current assistant message as they arrive; when the stream ends, for
// whatever reason, the message stays as far as it got.
package chatclient

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jxucoder/daybook/pkg/model"
)

var (
	// ErrBusy is returned when a request is already in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrEmptyInput is returned for blank input, which is never submitted.
	ErrEmptyInput = errors.New("input is empty")
)

// Transport carries one conversation to the relay and reports each streamed
// fragment, in order, through emit.
type Transport interface {
	Send(ctx context.Context, conv model.Conversation, emit func(string) error) error
}

// Snapshot is a copy of the client state handed to update callbacks.
type Snapshot struct {
	Messages model.Conversation
	Loading  bool
}

// Option configures a Client.
type Option func(*Client)

// WithOnUpdate registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that caused the change and must not call back
// into the Client's mutating methods.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(c *Client) { c.onUpdate = fn }
}

// WithIDFunc overrides message id generation.
func WithIDFunc(fn func() string) Option {
	return func(c *Client) { c.newID = fn }
}

// Client is the chat state owned by one UI.
type Client struct {
	transport Transport
	onUpdate  func(Snapshot)
	newID     func() string

	mu       sync.Mutex
	messages model.Conversation
	loading  bool
}

// New creates a Client with an empty conversation.
func New(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit appends input as a user message, sends the whole conversation and
// streams the reply into a new assistant message. It blocks until the stream
// ends and returns the transport error, if any; the conversation keeps
// whatever arrived either way.
func (c *Client) Submit(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	c.messages = append(c.messages, model.Message{
		ID:      c.newID(),
		Role:    model.RoleUser,
		Content: input,
	})
	history := c.messages.Wire()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	assistant := -1
	err := c.transport.Send(ctx, history, func(fragment string) error {
		if fragment == "" {
			return nil
		}
		c.mu.Lock()
		if assistant < 0 {
			c.messages = append(c.messages, model.Message{
				ID:   c.newID(),
				Role: model.RoleAssistant,
			})
			assistant = len(c.messages) - 1
		}
		c.messages[assistant].Content += fragment
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return nil
	})

	c.mu.Lock()
	c.loading = false
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return err
}

// Messages returns a copy of the conversation.
func (c *Client) Messages() model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked().Messages
}

// Loading reports whether a request is in flight.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Clear empties the conversation. It is refused while a request is in flight.
func (c *Client) Clear() error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.messages = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

func (c *Client) snapshotLocked() Snapshot {
	msgs := make(model.Conversation, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{Messages: msgs, Loading: c.loading}
}

func (c *Client) notify(s Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(s)
	}
}
