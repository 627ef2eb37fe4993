package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/context-cleaner/supervise-go/internal/errors"
)

// MaxFrameSize bounds the payload length a peer may declare. Frames above
// this are rejected before any allocation happens.
const MaxFrameSize = 4 << 20

// frameHeaderSize is the 4-byte unsigned big-endian length prefix.
const frameHeaderSize = 4

// WriteFrame writes one length-prefixed frame: a 4-byte unsigned big-endian
// payload length followed by exactly that many payload bytes.
//
// The framing is identical across every transport implementation so the
// in-memory transport and a real socket transport are interchangeable.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("payload %d bytes: %w", len(payload), errors.ErrFrameTooLarge)
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}

	return nil
}

// ReadFrame reads one length-prefixed frame, accumulating partial reads
// until the declared length is satisfied. A short read (peer closed
// mid-frame) surfaces as an error, never as a truncated payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("declared length %d: %w", length, errors.ErrFrameTooLarge)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	return payload, nil
}
