package relay

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/jxucoder/daybook/pkg/wire"
)

// ServeWS handles GET /api/chat/ws. Every text message from the client is a
// ChatRequest; the reply is streamed as fragment frames followed by a done
// frame. The connection then waits for the next request.
func (rl *Relay) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		rl.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "expected text message")
			return
		}

		conv, err := DecodeRequest(bytes.NewReader(data))
		if err != nil {
			rl.log.Warn("rejected chat request", "transport", "websocket", "error", err)
			conn.Close(websocket.StatusUnsupportedData, "malformed request")
			return
		}

		err = rl.relayWS(conn, r, func(t *turn) (Stats, error) {
			stats := Stats{Messages: len(conv)}
			stream, err := rl.open(t, conv)
			if err != nil {
				return stats, err
			}
			err = t.pump(stream, func(text string) error {
				return wsjson.Write(ctx, conn, wire.Frame{Type: wire.FrameFragment, Text: text})
			}, &stats)
			if err == nil {
				if werr := wsjson.Write(ctx, conn, wire.Frame{Type: wire.FrameDone}); werr != nil {
					err = fmt.Errorf("%w: %v", ErrClientGone, werr)
				}
			}
			return stats, err
		})
		if err != nil {
			return
		}
	}
}

// relayWS runs one bounded turn and closes the connection when it fails.
func (rl *Relay) relayWS(conn *websocket.Conn, r *http.Request, run func(*turn) (Stats, error)) error {
	t := rl.begin(r.Context())
	defer t.cancel()

	stats, err := run(t)
	rl.logTurn(r.Context(), stats, err)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout):
		conn.Close(websocket.StatusPolicyViolation, "duration exceeded")
	case errors.Is(err, ErrClientGone):
		// Nothing left to tell the peer.
	default:
		conn.Close(websocket.StatusInternalError, "provider failure")
	}
	return err
}
