package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// RawEvent is one parsed Server-Sent Event frame, before any shape-specific
// decoding.
type RawEvent struct {
	Event string
	Data  string
	ID    string
	Retry int
}

// RawParser parses Server-Sent Events from an upstream byte stream.
type RawParser struct {
	scanner *bufio.Scanner
	err     error
}

// NewRawParser creates a parser over r.
func NewRawParser(r io.Reader) *RawParser {
	return &RawParser{scanner: bufio.NewScanner(r)}
}

// Next returns the next frame, or io.EOF when the stream is complete.
func (p *RawParser) Next() (*RawEvent, error) {
	if p.err != nil {
		return nil, p.err
	}

	event := &RawEvent{}
	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}

		field := line[:colonIdx]
		value := line[colonIdx+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		case "retry":
			var retry int
			_, _ = fmt.Sscanf(value, "%d", &retry)
			event.Retry = retry
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = err
		return nil, err
	}

	if len(dataLines) > 0 || event.Event != "" {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}

	p.err = io.EOF
	return nil, io.EOF
}

// IsDone reports whether a frame is the terminal "[DONE]" sentinel.
func IsDone(event *RawEvent) bool {
	return event != nil && event.Data == "[DONE]"
}

// RawWriter writes Server-Sent Events to the downstream connection.
type RawWriter struct {
	w io.Writer
}

// NewRawWriter wraps w.
func NewRawWriter(w io.Writer) *RawWriter {
	return &RawWriter{w: w}
}

// WriteEvent writes one frame, flushing if w implements http.Flusher's
// Flush method (callers pass a flushing writer for real SSE responses).
func (w *RawWriter) WriteEvent(event RawEvent) error {
	var buf bytes.Buffer

	if event.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", event.Event)
	}
	if event.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", event.ID)
	}
	if event.Retry > 0 {
		fmt.Fprintf(&buf, "retry: %d\n", event.Retry)
	}
	if event.Data != "" {
		for _, line := range strings.Split(event.Data, "\n") {
			fmt.Fprintf(&buf, "data: %s\n", line)
		}
	}
	buf.WriteString("\n")

	_, err := w.w.Write(buf.Bytes())
	return err
}

// WriteData writes a data-only frame with no event name.
func (w *RawWriter) WriteData(data string) error {
	return w.WriteEvent(RawEvent{Data: data})
}

// WriteNamed writes a named event with a JSON data payload.
func (w *RawWriter) WriteNamed(eventType, data string) error {
	return w.WriteEvent(RawEvent{Event: eventType, Data: data})
}

// WriteDone writes the literal "[DONE]" sentinel Chat-shape streams
// terminate with.
func (w *RawWriter) WriteDone() error {
	return w.WriteEvent(RawEvent{Data: "[DONE]"})
}
