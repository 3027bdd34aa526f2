// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jxucoder/daybook/pkg/llm"
)

// Fake replays Fragments for every call and records each request it sees.
type Fake struct {
	// Fragments are emitted in order on every Stream call.
	Fragments []string
	// Delay is waited before each fragment.
	Delay time.Duration
	// FailAfter, when > 0, ends the stream with Err after that many fragments.
	FailAfter int
	// Err is returned from Stream itself when StartErr is set, otherwise it is
	// the terminal chunk error used by FailAfter.
	Err      error
	StartErr bool

	mu       sync.Mutex
	requests []llm.Request
}

// Stream implements llm.Provider.
func (f *Fake) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.StartErr {
		return nil, f.Err
	}

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for i, frag := range f.Fragments {
			if f.FailAfter > 0 && i == f.FailAfter {
				llm.Send(ctx, ch, llm.Chunk{Err: f.Err})
				return
			}
			if f.Delay > 0 {
				select {
				case <-time.After(f.Delay):
				case <-ctx.Done():
					llm.Send(ctx, ch, llm.Chunk{Err: ctx.Err()})
					return
				}
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: frag}) {
				return
			}
		}
	}()
	return ch, nil
}

// Requests returns a copy of every request received so far.
func (f *Fake) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Calls returns how many times Stream was invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Collect drains a stream and returns the concatenated text together with
// the first error seen.
func Collect(ch <-chan llm.Chunk) (string, error) {
	var b strings.Builder
	var err error
	for c := range ch {
		if c.Err != nil {
			if err == nil {
				err = c.Err
			}
			continue
		}
		b.WriteString(c.Text)
	}
	return b.String(), err
}
