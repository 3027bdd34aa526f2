// Package llm defines the streaming completion contract used by the relay.
//
// A Provider turns a system instruction plus a conversation into an ordered
// stream of text fragments. Implementations live in the sub-packages and wrap
// the vendor SDKs; tests use llmtest.
package llm

import (
	"context"

	"github.com/jxucoder/daybook/pkg/model"
)

// Request is everything a provider needs for one completion.
type Request struct {
	System   string
	Messages model.Conversation
	Model    string
}

// Chunk is one incremental fragment of a streamed completion. A chunk with a
// non-nil Err is the last one on its channel.
type Chunk struct {
	Text string
	Err  error
}

// Provider streams a completion. The returned channel is closed by the
// provider when the completion ends, fails, or ctx is cancelled.
type Provider interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// CompleteFunc adapts a plain function to the Provider interface.
type CompleteFunc func(ctx context.Context, system string, messages model.Conversation, modelID string) (<-chan Chunk, error)

// Stream implements Provider.
func (f CompleteFunc) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	return f(ctx, req.System, req.Messages, req.Model)
}

// Send delivers c on ch unless ctx is done first. It reports whether the
// chunk was delivered; producers stop when it returns false.
func Send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// SplitSystem separates system-role messages from the rest of the
// conversation, for vendors that carry system text out of band.
func SplitSystem(system string, messages model.Conversation) ([]string, model.Conversation) {
	var sys []string
	if system != "" {
		sys = append(sys, system)
	}
	rest := make(model.Conversation, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return sys, rest
}
