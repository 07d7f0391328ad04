package anthropic

import (
	"errors"
	"io"

	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
	"parley/pkg/llm/sse"
)

// readChunkSize is how much of the response body one decoder refill reads.
const readChunkSize = 4096

// Stream adapts a streaming response body into a pull-based event stream:
// it reads body chunks on demand, feeds them to the frame decoder, and
// yields decoded events.
//
// Next returns io.EOF after the final event. An in-stream error event ends
// the stream with its classified error (the server closes the connection
// after sending one). A single undecodable event surfaces as a decode error
// and the stream continues; broken framing is terminal. Not safe for
// concurrent use.
type Stream struct {
	body    io.ReadCloser
	decoder *sse.Decoder
	buf     []byte
	err     error // terminal state, sticky
}

// NewStream wraps a response body. The caller must Close the stream.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:    body,
		decoder: sse.NewDecoder(),
		buf:     make([]byte, readChunkSize),
	}
}

// Next returns the next decoded event.
func (s *Stream) Next() (llm.Event, error) {
	if s.err != nil {
		return llm.Event{}, s.err
	}

	for {
		event, err := s.decoder.Next()
		switch {
		case err == nil:
			if event.Type == llm.EventTypeError {
				s.err = llmerrors.FromAPIType(event.Err.Type, event.Err.Message)
				return llm.Event{}, s.err
			}
			return event, nil

		case errors.Is(err, sse.ErrNeedMore):
			if refillErr := s.refill(); refillErr != nil {
				s.err = refillErr
				return llm.Event{}, s.err
			}

		case errors.Is(err, io.EOF):
			s.err = io.EOF
			return llm.Event{}, io.EOF

		default:
			var decodeErr *sse.DecodeError
			if errors.As(err, &decodeErr) {
				// One bad event; the stream keeps going.
				return llm.Event{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeDecode, err, "decoding event")
			}
			s.err = llmerrors.NewErrorWithCause(llmerrors.ErrorTypeStreamMalformed, err, "malformed stream")
			return llm.Event{}, s.err
		}
	}
}

// refill reads one body chunk into the decoder. At body EOF it closes the
// decoder's input so buffered events drain before the stream ends.
func (s *Stream) refill() error {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		s.decoder.Feed(s.buf[:n])
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.decoder.CloseInput()
			return nil
		}
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransport, err, "reading stream")
	}
	return nil
}

// Close releases the underlying response body. Safe to call more than once.
func (s *Stream) Close() error {
	return s.body.Close()
}
