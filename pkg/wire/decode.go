package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const maxLineBytes = 1 << 20

// Decode reads a framed response body and calls emit for every fragment in
// order. It returns when the body ends, a done marker is read, or emit fails.
// A body that ends without a done marker is not an error.
func Decode(proto Protocol, body io.Reader, emit func(string) error) error {
	switch proto {
	case ProtocolSSE:
		return decodeLines(body, emit, sseLine)
	case ProtocolData:
		return decodeLines(body, emit, dataLine)
	default:
		return decodeText(body, emit)
	}
}

var errDone = errors.New("done")

// decodeText forwards raw reads, holding back a trailing partial rune so
// every emitted fragment is valid UTF-8 when the input is.
func decodeText(body io.Reader, emit func(string) error) error {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := runeBoundary(pending)
			if cut > 0 {
				if emitErr := emit(string(pending[:cut])); emitErr != nil {
					return emitErr
				}
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				return emit(string(pending))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// runeBoundary returns the length of the longest prefix of b that does not
// end inside a multi-byte rune.
func runeBoundary(b []byte) int {
	for back := 1; back <= utf8.UTFMax && back <= len(b); back++ {
		i := len(b) - back
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

type lineFunc func(line string) (text string, ok bool, err error)

func decodeLines(body io.Reader, emit func(string) error, parse lineFunc) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		text, ok, err := parse(scanner.Text())
		if errors.Is(err, errDone) {
			return nil
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := emit(text); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func sseLine(line string) (string, bool, error) {
	switch {
	case strings.HasPrefix(line, "event:"):
		if strings.TrimSpace(strings.TrimPrefix(line, "event:")) == FrameDone {
			return "", false, errDone
		}
		return "", false, nil
	case strings.HasPrefix(line, "data:"):
		return unquote(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
	}
	return "", false, nil
}

func dataLine(line string) (string, bool, error) {
	switch {
	case strings.HasPrefix(line, "0:"):
		return unquote(line[2:])
	case strings.HasPrefix(line, "d:"):
		return "", false, errDone
	}
	return "", false, nil
}

func unquote(payload string) (string, bool, error) {
	var s string
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return "", false, fmt.Errorf("decoding fragment %q: %w", payload, err)
	}
	return s, true, nil
}
