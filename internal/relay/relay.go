// Package relay implements the chat relay endpoint: it forwards a
// conversation to the configured completion provider and streams the reply
// back to the caller as it is produced.
//
// The relay keeps no state between requests. Each request is bounded by a
// maximum duration; when it expires the stream simply ends and whatever was
// already written stands.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/model"
	"github.com/jxucoder/daybook/pkg/wire"
)

// SystemInstruction is sent ahead of every conversation.
const SystemInstruction = "You are a helpful assistant that helps users manage their Google Tasks and Calendar. " +
	"You can provide suggestions, reminders, and help organize their schedule efficiently."

// DefaultMaxDuration bounds a single relayed completion.
const DefaultMaxDuration = 30 * time.Second

const maxBodyBytes = 1 << 20

var (
	// ErrMalformedRequest means the body could not be parsed into a
	// conversation. No provider call is made.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrProviderFailure means the provider failed before or during streaming.
	ErrProviderFailure = errors.New("provider failure")
	// ErrTimeout means the duration bound expired before the provider finished.
	ErrTimeout = errors.New("timeout")
	// ErrClientGone means the caller disconnected mid-stream.
	ErrClientGone = errors.New("client gone")
)

// ChatRequest is the body accepted by the relay.
type ChatRequest struct {
	Messages model.Conversation `json:"messages"`
}

// Config holds relay settings.
type Config struct {
	// Model is the provider model identifier; empty lets the provider choose.
	Model string
	// MaxDuration bounds each request (default DefaultMaxDuration).
	MaxDuration time.Duration
	Logger      *slog.Logger
}

// Relay forwards chat requests to a provider.
type Relay struct {
	provider    llm.Provider
	model       string
	maxDuration time.Duration
	log         *slog.Logger
}

// New creates a Relay around provider.
func New(provider llm.Provider, cfg Config) *Relay {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		provider:    provider,
		model:       cfg.Model,
		maxDuration: cfg.MaxDuration,
		log:         cfg.Logger.With("component", "relay"),
	}
}

// DecodeRequest parses and validates a chat request body.
func DecodeRequest(r io.Reader) (model.Conversation, error) {
	var req struct {
		Messages *model.Conversation `json:"messages"`
	}
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedRequest, err)
	}
	if req.Messages == nil {
		return nil, fmt.Errorf("%w: messages is required", ErrMalformedRequest)
	}
	if err := req.Messages.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return req.Messages.Wire(), nil
}

// Stats describes one relayed completion.
type Stats struct {
	Messages  int
	Fragments int
	Bytes     int
	Elapsed   time.Duration
}

// turn is one bounded provider call.
type turn struct {
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

func (rl *Relay) begin(parent context.Context) *turn {
	ctx, cancel := context.WithTimeout(parent, rl.maxDuration)
	return &turn{parent: parent, ctx: ctx, cancel: cancel, started: time.Now()}
}

// open invokes the provider with the fixed system instruction.
func (rl *Relay) open(t *turn, conv model.Conversation) (<-chan llm.Chunk, error) {
	stream, err := rl.provider.Stream(t.ctx, llm.Request{
		System:   SystemInstruction,
		Messages: conv,
		Model:    rl.model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return stream, nil
}

// pump forwards fragments from stream to emit until the stream ends, the
// turn's deadline passes, or emit fails.
func (t *turn) pump(stream <-chan llm.Chunk, emit func(string) error, stats *Stats) error {
	defer func() { stats.Elapsed = time.Since(t.started) }()
	for {
		select {
		case c, ok := <-stream:
			if !ok {
				return t.classify(nil)
			}
			if c.Err != nil {
				return t.classify(c.Err)
			}
			if c.Text == "" {
				continue
			}
			if err := emit(c.Text); err != nil {
				return fmt.Errorf("%w: %v", ErrClientGone, err)
			}
			stats.Fragments++
			stats.Bytes += len(c.Text)
		case <-t.ctx.Done():
			return t.classify(t.ctx.Err())
		}
	}
}

// classify maps the way a stream ended onto the relay's error taxonomy.
func (t *turn) classify(err error) error {
	switch {
	case t.parent.Err() != nil:
		return fmt.Errorf("%w: %v", ErrClientGone, t.parent.Err())
	case errors.Is(t.ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case err != nil:
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return nil
}

// ServeHTTP handles POST /api/chat.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t := rl.begin(r.Context())
	defer t.cancel()

	conv, err := DecodeRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		rl.log.Warn("rejected chat request", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats := Stats{Messages: len(conv)}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	stream, err := rl.open(t, conv)
	if err != nil {
		rl.logTurn(r.Context(), stats, err)
		writeError(w, http.StatusBadGateway, "provider unavailable")
		return
	}

	enc := wire.NewEncoder(wire.Negotiate(r))
	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err = t.pump(stream, func(text string) error {
		if err := enc.Fragment(w, text); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}, &stats)
	if err == nil {
		if doneErr := enc.Done(w); doneErr == nil {
			flusher.Flush()
		}
	}
	rl.logTurn(r.Context(), stats, err)
}

// Outcome names how a relayed completion ended, for logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrClientGone):
		return "client_gone"
	case errors.Is(err, ErrMalformedRequest):
		return "malformed"
	default:
		return "provider_failure"
	}
}

func (rl *Relay) logTurn(ctx context.Context, stats Stats, err error) {
	attrs := []any{
		"request_id", middleware.GetReqID(ctx),
		"messages", stats.Messages,
		"fragments", stats.Fragments,
		"bytes", stats.Bytes,
		"elapsed", stats.Elapsed,
		"outcome", Outcome(err),
	}
	if err != nil && !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrClientGone) {
		rl.log.Error("chat relay failed", append(attrs, "error", err)...)
		return
	}
	rl.log.Info("chat relayed", attrs...)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
