// Package sse decodes server-sent event streams into typed streaming
// events. The decoder is push-fed: callers append raw bytes with Feed as
// they arrive off the wire and pull decoded events with Next, so chunk
// boundaries never matter. Feeding one byte at a time and feeding the
// whole stream at once produce the same event sequence.
package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"parley/pkg/llm"
)

// ErrNeedMore is returned by Next when the buffered input does not yet
// contain a complete event. Feed more bytes, or CloseInput at end of
// stream, then call Next again.
var ErrNeedMore = errors.New("sse: need more input")

// ErrInvalidUTF8 is returned when the stream contains bytes that are not
// valid UTF-8. The failure is terminal: every subsequent Next returns it.
var ErrInvalidUTF8 = errors.New("sse: invalid UTF-8 in stream")

// DecodeError reports an event whose payload could not be decoded. It is
// recoverable: the broken event is discarded and Next continues with the
// following one.
type DecodeError struct {
	Label string // event type tag
	Data  string // joined data payload
	Err   error  // underlying parse failure
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("sse: decoding %s event: %v", e.Label, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder incrementally decodes an SSE byte stream. Events are delimited
// by blank lines; "event:" carries the type tag, "data:" lines are joined
// with newlines, comment lines and unknown fields are skipped. Events
// with unknown type tags are skipped entirely, so new server-side event
// types do not break decoding.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf    []byte
	closed bool
	failed error

	// Fields of the event being assembled.
	label    string
	data     []string
	sawField bool
	ready    bool
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw stream bytes. Chunks may split lines, fields, or
// multi-byte characters at any position. Feeding after CloseInput or
// after a terminal failure is a no-op.
func (d *Decoder) Feed(chunk []byte) {
	if d.closed || d.failed != nil {
		return
	}
	d.buf = append(d.buf, chunk...)
}

// CloseInput marks the end of the stream. Next drains any complete
// buffered events, then a trailing event not terminated by a blank line,
// then returns io.EOF.
func (d *Decoder) CloseInput() {
	d.closed = true
}

// Next returns the next decoded event. It returns ErrNeedMore when the
// buffer holds no complete event yet, a *DecodeError when a known event's
// payload fails to parse (recoverable), ErrInvalidUTF8 on broken encoding
// (terminal), and io.EOF once the closed stream is drained.
func (d *Decoder) Next() (llm.Event, error) {
	if d.failed != nil {
		return llm.Event{}, d.failed
	}

	for {
		line, ok := d.takeLine()
		if !ok {
			if !d.closed {
				return llm.Event{}, ErrNeedMore
			}
			if len(d.buf) > 0 {
				// Final line without a trailing newline.
				tail := d.buf
				d.buf = nil
				if err := d.consumeLine(tail); err != nil {
					return llm.Event{}, err
				}
				continue
			}
			if d.sawField {
				d.ready = true
			} else {
				return llm.Event{}, io.EOF
			}
		} else if err := d.consumeLine(line); err != nil {
			return llm.Event{}, err
		}

		if d.ready {
			event, emitted, err := d.dispatch()
			if emitted {
				return event, err
			}
		}
	}
}

// takeLine removes one newline-terminated line from the buffer.
func (d *Decoder) takeLine() ([]byte, bool) {
	idx := bytes.IndexByte(d.buf, '\n')
	if idx < 0 {
		return nil, false
	}
	line := d.buf[:idx]
	d.buf = d.buf[idx+1:]
	return line, true
}

// consumeLine folds one line into the pending event state.
func (d *Decoder) consumeLine(line []byte) error {
	line = bytes.TrimSuffix(line, []byte{'\r'})

	if !utf8.Valid(line) {
		d.failed = ErrInvalidUTF8
		return d.failed
	}

	if len(line) == 0 {
		if d.sawField {
			d.ready = true
		}
		return nil
	}
	if line[0] == ':' {
		// Comment line.
		return nil
	}

	field, value := splitField(line)
	switch field {
	case "event":
		d.label = value
		d.sawField = true
	case "data":
		d.data = append(d.data, value)
		d.sawField = true
	default:
		// Unknown fields (id, retry, ...) are skipped.
	}
	return nil
}

// dispatch finalizes the pending event. Unknown labels are dropped
// without emitting; malformed payloads of known labels emit a
// *DecodeError and the decoder keeps going.
func (d *Decoder) dispatch() (llm.Event, bool, error) {
	label := d.label
	data := strings.Join(d.data, "\n")
	d.label = ""
	d.data = nil
	d.sawField = false
	d.ready = false

	if !llm.KnownEventType(label) {
		return llm.Event{}, false, nil
	}

	event, err := llm.ParseEvent(label, []byte(data))
	if err != nil {
		return llm.Event{}, true, &DecodeError{Label: label, Data: data, Err: err}
	}
	return event, true, nil
}

// splitField separates an SSE field line into name and value. A single
// space after the colon is not part of the value.
func splitField(line []byte) (string, string) {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return string(line), ""
	}
	value := line[colon+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:colon]), string(value)
}
