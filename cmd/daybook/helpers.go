package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook/pkg/chatclient"
	"github.com/jxucoder/daybook/pkg/model"
	"github.com/jxucoder/daybook/pkg/wire"
)

// transportFlags are shared by the chat and ask commands.
type transportFlags struct {
	protocol string
	ws       bool
}

func (f *transportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.protocol, "protocol", string(wire.ProtocolText), "HTTP response framing: text, sse or data")
	cmd.Flags().BoolVar(&f.ws, "ws", false, "Use the websocket endpoint instead of HTTP")
}

// transport builds the transport selected by the flags. The returned closer
// releases a websocket connection, if any.
func (f *transportFlags) transport() (chatclient.Transport, io.Closer, error) {
	if f.ws {
		t := chatclient.NewWSTransport(serverURL)
		return t, t, nil
	}

	proto := wire.Protocol(strings.ToLower(f.protocol))
	switch proto {
	case wire.ProtocolText, wire.ProtocolSSE, wire.ProtocolData:
	default:
		return nil, nil, fmt.Errorf("unknown protocol %q (want text, sse or data)", f.protocol)
	}
	return chatclient.NewHTTPTransport(serverURL, proto), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// streamPrinter writes only the newly streamed part of the assistant reply.
type streamPrinter struct {
	w       io.Writer
	printed int
}

func (p *streamPrinter) update(s chatclient.Snapshot) {
	last, ok := s.Messages.Last()
	if !ok || last.Role != model.RoleAssistant {
		return
	}
	if len(last.Content) > p.printed {
		io.WriteString(p.w, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}
