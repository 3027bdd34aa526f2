// Package wire implements the framings used to carry streamed completion
// fragments from the relay to chat clients.
//
// Three HTTP framings are supported:
//
//	text  raw fragments, chunked transfer (default)
//	sse   "data: <json string>" events, closed by "event: done"
//	data  "0:<json string>" lines, closed by a "d:" finish line
//
// Websocket connections exchange Frame values instead.
package wire

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Protocol names an HTTP response framing.
type Protocol string

const (
	ProtocolText Protocol = "text"
	ProtocolSSE  Protocol = "sse"
	ProtocolData Protocol = "data"
)

const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeSSE  = "text/event-stream"
	ContentTypeData = "text/x-data-stream; charset=utf-8"
)

// ProtocolParam is the query parameter that selects a framing explicitly.
const ProtocolParam = "protocol"

// Negotiate picks the framing for a request: an explicit ?protocol= wins,
// then an Accept header asking for event streams, then plain text.
func Negotiate(r *http.Request) Protocol {
	switch Protocol(r.URL.Query().Get(ProtocolParam)) {
	case ProtocolData:
		return ProtocolData
	case ProtocolSSE:
		return ProtocolSSE
	case ProtocolText:
		return ProtocolText
	}
	if strings.Contains(r.Header.Get("Accept"), ContentTypeSSE) {
		return ProtocolSSE
	}
	return ProtocolText
}

// ProtocolFor maps a response Content-Type back to its framing.
func ProtocolFor(contentType string) Protocol {
	switch {
	case strings.HasPrefix(contentType, ContentTypeSSE):
		return ProtocolSSE
	case strings.HasPrefix(contentType, "text/x-data-stream"):
		return ProtocolData
	default:
		return ProtocolText
	}
}

// Encoder writes fragments in one framing.
type Encoder struct {
	proto Protocol
}

// NewEncoder returns an encoder for proto.
func NewEncoder(proto Protocol) *Encoder {
	return &Encoder{proto: proto}
}

// ContentType is the response Content-Type for the encoder's framing.
func (e *Encoder) ContentType() string {
	switch e.proto {
	case ProtocolSSE:
		return ContentTypeSSE
	case ProtocolData:
		return ContentTypeData
	default:
		return ContentTypeText
	}
}

// Fragment writes one text fragment.
func (e *Encoder) Fragment(w io.Writer, text string) error {
	switch e.proto {
	case ProtocolSSE:
		_, err := fmt.Fprintf(w, "data: %s\n\n", quote(text))
		return err
	case ProtocolData:
		_, err := fmt.Fprintf(w, "0:%s\n", quote(text))
		return err
	default:
		_, err := io.WriteString(w, text)
		return err
	}
}

// Done marks a completion that ended normally. Plain text has no marker.
func (e *Encoder) Done(w io.Writer) error {
	switch e.proto {
	case ProtocolSSE:
		_, err := io.WriteString(w, "event: done\ndata: {}\n\n")
		return err
	case ProtocolData:
		_, err := io.WriteString(w, "d:{\"finishReason\":\"stop\"}\n")
		return err
	}
	return nil
}

func quote(s string) []byte {
	// Marshalling a string cannot fail.
	b, _ := json.Marshal(s)
	return b
}

// Frame is a websocket message sent by the relay.
type Frame struct {
	Type string `json:"type"` // "fragment" or "done"
	Text string `json:"text,omitempty"`
}

const (
	FrameFragment = "fragment"
	FrameDone     = "done"
)
