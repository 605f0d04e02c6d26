// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wire

import (
	"bytes"
	"errors"
)

// MaxFrameSize is the maximum number of bytes a Decoder buffers without
// finding a complete frame.
const MaxFrameSize = 8192

// ErrFrameTooLarge signals that a peer sent more than the buffer ceiling
// without terminating its frame.
var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// Decoder splits a byte stream into frames. A Decoder is owned by exactly one
// reader and is not safe for concurrent use.
type Decoder struct {
	buf []byte
	max int
}

// NewDecoder returns a new Decoder with the default buffer ceiling.
func NewDecoder() *Decoder {
	return NewDecoderWithLimit(MaxFrameSize)
}

// NewDecoderWithLimit returns a new Decoder that accepts at most limit bytes of
// an incomplete frame.
func NewDecoderWithLimit(limit int) *Decoder {
	return &Decoder{max: limit}
}

// Feed appends data to the decoder's buffer and returns all frames that are
// now complete, without their delimiters. If afterwards the remaining
// incomplete data exceeds the ceiling then Feed discards the buffer and
// returns ErrFrameTooLarge in addition to any complete frames found before.
func (d *Decoder) Feed(data []byte) ([][]byte, error) {
	d.buf = append(d.buf, data...)
	var frames [][]byte
	for {
		pos := bytes.IndexByte(d.buf, Delimiter)
		if pos < 0 {
			break
		}
		frame := make([]byte, pos)
		copy(frame, d.buf[:pos])
		frames = append(frames, frame)
		d.buf = d.buf[pos+1:]
	}
	if len(d.buf) > d.max {
		d.Reset()
		return frames, ErrFrameTooLarge
	}
	if len(d.buf) == 0 {
		d.buf = nil // ...let go of the consumed backing array.
	}
	return frames, nil
}

// Buffered returns the number of bytes of an incomplete frame currently held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered data.
func (d *Decoder) Reset() {
	d.buf = nil
}
