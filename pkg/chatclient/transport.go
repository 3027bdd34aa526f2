package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/jxucoder/daybook/pkg/model"
	"github.com/jxucoder/daybook/pkg/wire"
)

const (
	// ChatPath is the relay's streaming HTTP route.
	ChatPath = "/api/chat"
	// ChatWSPath is the relay's websocket route.
	ChatWSPath = "/api/chat/ws"
)

type chatRequest struct {
	Messages model.Conversation `json:"messages"`
}

// StatusError is returned when the relay answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.Code, e.Message)
}

// HTTPTransport posts the conversation to the relay and decodes the streamed
// body in whatever framing the relay chose.
type HTTPTransport struct {
	BaseURL  string
	Protocol wire.Protocol
	Client   *http.Client
}

// NewHTTPTransport creates an HTTP transport for the relay at baseURL.
func NewHTTPTransport(baseURL string, proto wire.Protocol) *HTTPTransport {
	return &HTTPTransport{BaseURL: baseURL, Protocol: proto, Client: http.DefaultClient}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, conv model.Conversation, emit func(string) error) error {
	body, err := json.Marshal(chatRequest{Messages: conv})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	u := strings.TrimRight(t.BaseURL, "/") + ChatPath
	if t.Protocol == wire.ProtocolData {
		u += "?" + wire.ProtocolParam + "=" + string(wire.ProtocolData)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Protocol == wire.ProtocolSSE {
		req.Header.Set("Accept", wire.ContentTypeSSE)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return wire.Decode(wire.ProtocolFor(resp.Header.Get("Content-Type")), resp.Body, emit)
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}

// WSTransport streams over a websocket that is dialed on first use and
// reused across turns. Any failure drops the connection; the next Send
// dials again.
type WSTransport struct {
	URL string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSTransport creates a websocket transport for the relay at baseURL
// (http or https).
func NewWSTransport(baseURL string) *WSTransport {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WSTransport{URL: u + ChatWSPath}
}

// Send implements Transport.
func (t *WSTransport) Send(ctx context.Context, conv model.Conversation, emit func(string) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		conn, _, err := websocket.Dial(ctx, t.URL, nil)
		if err != nil {
			return fmt.Errorf("dialing relay: %w", err)
		}
		t.conn = conn
	}

	if err := wsjson.Write(ctx, t.conn, chatRequest{Messages: conv}); err != nil {
		t.resetLocked()
		return fmt.Errorf("sending chat: %w", err)
	}
	for {
		var f wire.Frame
		if err := wsjson.Read(ctx, t.conn, &f); err != nil {
			t.resetLocked()
			return fmt.Errorf("reading reply: %w", err)
		}
		switch f.Type {
		case wire.FrameDone:
			return nil
		case wire.FrameFragment:
			if err := emit(f.Text); err != nil {
				t.resetLocked()
				return err
			}
		}
	}
}

// Close closes the underlying connection, if any.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.conn = nil
	return err
}

func (t *WSTransport) resetLocked() {
	if t.conn != nil {
		t.conn.CloseNow()
		t.conn = nil
	}
}
