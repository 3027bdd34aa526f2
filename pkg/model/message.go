// Package model defines the domain types shared across daybook packages.
package model

import "fmt"

// Role tags who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the roles the relay accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single role-tagged entry of a conversation.
//
// ID is assigned by the chat client for rendering and is never sent to the
// relay.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered list of messages exchanged so far.
type Conversation []Message

// Validate checks that the conversation is non-empty and every role is known.
func (c Conversation) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, m := range c {
		if !m.Role.Valid() {
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// Wire strips client-only fields so the conversation can be posted to the relay.
func (c Conversation) Wire() Conversation {
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Last returns the final message and true, or false for an empty conversation.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}
