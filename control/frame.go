// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// DefaultMaxFrameSize bounds a frame payload when no other limit is
// configured: 1 MiB.
const DefaultMaxFrameSize uint32 = 1 << 20

// frameHeaderSize is the length prefix size.
const frameHeaderSize = 4

// WriteFrame writes payload with its big-endian length prefix in a
// single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("control: payload of %d bytes exceeds frame length field", len(payload))
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one frame and returns its payload. It returns io.EOF
// if the stream ends cleanly before the first header byte,
// ErrIncompleteFrame if it ends anywhere later within the frame, and
// ErrFrameTooLarge if the announced length exceeds maxSize. Zero maxSize
// means DefaultMaxFrameSize.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrIncompleteFrame
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, length, maxSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrIncompleteFrame
		}
		return nil, err
	}
	return payload, nil
}
