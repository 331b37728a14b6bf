package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single encoded message.
const MaxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("frame too large")

// ReadFrame reads one frame from r.
// Wire format: [4 bytes BE: payload length][payload].
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, fmt.Errorf("invalid frame length: %d", n)
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("frame length %d: %w", n, ErrFrameTooLarge)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", n, err)
	}
	return payload, nil
}

// WriteFrame writes data to w as one frame.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("write frame: empty payload")
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("write frame of %d bytes: %w", len(data), ErrFrameTooLarge)
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
