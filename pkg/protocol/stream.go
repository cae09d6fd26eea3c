package protocol

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxPayloadSize is the largest CBOR payload a single frame may carry
// (spec §4.4, confirmed against the Rust original's MAX_PAYLOAD_SIZE).
const MaxPayloadSize = 512 * 1024

// ErrFileTooLarge is returned when a frame's declared length prefix exceeds
// MaxPayloadSize.
var ErrFileTooLarge = errors.New("protocol: frame exceeds MaxPayloadSize")

// WriteMessage frames msg as a big-endian u32 length prefix followed by its
// CBOR encoding, and writes it to w. This is the blocking variant; callers
// running under a context should use WriteMessageContext.
func WriteMessage(w io.Writer, msg Message) error {
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protocol: encode: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return ErrFileTooLarge
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("protocol: write length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed CBOR frame from r and decodes it.
// A length prefix over MaxPayloadSize is rejected without reading the
// (possibly absent) payload.
func ReadMessage(r io.Reader) (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Message{}, fmt.Errorf("protocol: read length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxPayloadSize {
		return Message{}, ErrFileTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("protocol: read payload: %w", err)
	}

	var msg Message
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("protocol: decode: %w", err)
	}
	return msg, nil
}

// result pairs a ReadMessage/WriteMessage outcome for use in the
// cooperative-suspension variants below.
type result struct {
	msg Message
	err error
}

// ReadMessageContext is the cooperative-suspension variant of ReadMessage:
// it behaves identically on the happy path but returns ctx.Err() promptly
// if ctx is cancelled before the frame arrives. The underlying read is not
// itself interrupted (io.Reader has no cancellation primitive); callers
// that need a hard abort should close the underlying connection, which
// unblocks the read goroutine below with an error.
func ReadMessageContext(ctx context.Context, r io.Reader) (Message, error) {
	ch := make(chan result, 1)
	go func() {
		msg, err := ReadMessage(r)
		ch <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case res := <-ch:
		return res.msg, res.err
	}
}

// WriteMessageContext is the cooperative-suspension variant of
// WriteMessage; see ReadMessageContext for the cancellation caveat.
func WriteMessageContext(ctx context.Context, w io.Writer, msg Message) error {
	ch := make(chan error, 1)
	go func() {
		ch <- WriteMessage(w, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-ch:
		return err
	}
}
