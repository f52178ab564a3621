package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrCapacityExceeded   = errors.New("framing: ring buffer capacity exceeded")
	ErrInsufficientData   = errors.New("framing: insufficient data in ring buffer")
	ErrMissingChunkHeader = errors.New("framing: chunked frame needs a chunk header")
)

// RingBuffer is a fixed-capacity circular byte buffer with frame aware reads.
//
// One slot is always kept free to tell a full buffer from an empty one, so at most
// Cap()-1 bytes are resident. A RingBuffer is not safe for concurrent use; each side
// of a connection owns its own instance.
type RingBuffer struct {
	buf   []byte
	start int
	end   int
}

// NewRingBuffer allocates a ring buffer of the given capacity (at least 2)
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 2 {
		panic("ring buffer capacity must be at least 2")
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}

// Len returns the number of bytes available for reading
func (r *RingBuffer) Len() int {
	return (r.end - r.start + len(r.buf)) % len(r.buf)
}

// Free returns the number of bytes that can be written
func (r *RingBuffer) Free() int {
	return len(r.buf) - r.Len() - 1
}

// Reset drops all buffered bytes
func (r *RingBuffer) Reset() {
	r.start = 0
	r.end = 0
}

// WriteBlock appends p, wrapping at the end of the backing array.
// Nothing is written if p does not fit.
func (r *RingBuffer) WriteBlock(p []byte) error {
	if len(p) > r.Free() {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrCapacityExceeded, len(p), r.Free())
	}
	r.write(p)
	return nil
}

// Read removes and returns exactly n bytes. Nothing is consumed if fewer than n are available.
func (r *RingBuffer) Read(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, fmt.Errorf("%w: want %d bytes, %d available", ErrInsufficientData, n, r.Len())
	}
	out := make([]byte, n)
	r.peek(out)
	r.start = (r.start + n) % len(r.buf)
	return out, nil
}

// ReadFrameHeader consumes the next frame header if the complete frame is buffered.
//
// It reports false without consuming anything if fewer than 5 bytes are available.
// If the header is readable but the declared payload (plus the chunk header for chunked
// frames) has not fully arrived, the read cursor is rolled back to the position before
// the header and false is returned, so the same header is read intact once more bytes
// arrive. On success the caller reads the chunk header (if chunked) and the payload next.
func (r *RingBuffer) ReadFrameHeader() (FrameHeader, bool) {
	if r.Len() < FrameHeaderSize {
		return FrameHeader{}, false
	}

	mark := r.start
	raw, _ := r.Read(FrameHeaderSize)
	header, _ := DecodeFrameHeader(raw)

	need := int(header.Length)
	if header.Chunked {
		need += ChunkHeaderSize
	}
	if r.Len() < need {
		r.start = mark
		return FrameHeader{}, false
	}
	return header, true
}

// FrameSize returns the total wire size of the frame described by header
func FrameSize(header FrameHeader) int {
	size := FrameHeaderSize + int(header.Length)
	if header.Chunked {
		size += ChunkHeaderSize
	}
	return size
}

// PeekFrameSize returns the wire size of the next frame if its header is buffered.
// It never consumes anything.
func (r *RingBuffer) PeekFrameSize() (int, bool) {
	if r.Len() < FrameHeaderSize {
		return 0, false
	}
	raw := make([]byte, FrameHeaderSize)
	r.peek(raw)
	header, _ := DecodeFrameHeader(raw)
	return FrameSize(header), true
}

// AddFrame writes a complete frame as a whole or not at all.
// Chunked frames carry a chunk header and must be written with AddChunk.
func (r *RingBuffer) AddFrame(payload []byte, chunked bool, messageID uint16) error {
	if chunked {
		return ErrMissingChunkHeader
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if FrameHeaderSize+len(payload) > r.Free() {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrCapacityExceeded, FrameHeaderSize+len(payload), r.Free())
	}

	var header [FrameHeaderSize]byte
	putFrameHeader(header[:], false, messageID, uint16(len(payload)))
	r.write(header[:])
	r.write(payload)
	return nil
}

// AddChunk writes one chunk frame (frame header, chunk header, payload) as a whole or not at all.
func (r *RingBuffer) AddChunk(payload []byte, messageID, chunkIndex, chunkCount uint16) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	size := FrameHeaderSize + ChunkHeaderSize + len(payload)
	if size > r.Free() {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrCapacityExceeded, size, r.Free())
	}

	var header [FrameHeaderSize + ChunkHeaderSize]byte
	putFrameHeader(header[:], true, messageID, uint16(len(payload)))
	binary.LittleEndian.PutUint16(header[5:7], chunkIndex)
	binary.LittleEndian.PutUint16(header[7:9], chunkCount)
	r.write(header[:])
	r.write(payload)
	return nil
}

// WriteFrames writes several encoded frames; either all of them fit or none is written.
func (r *RingBuffer) WriteFrames(frames [][]byte) error {
	total := 0
	for _, frame := range frames {
		total += len(frame)
	}
	if total > r.Free() {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrCapacityExceeded, total, r.Free())
	}
	for _, frame := range frames {
		r.write(frame)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// write copies p at end with at most two copies. The caller checked Free().
func (r *RingBuffer) write(p []byte) {
	n := copy(r.buf[r.end:], p)
	if n < len(p) {
		copy(r.buf, p[n:])
	}
	r.end = (r.end + len(p)) % len(r.buf)
}

// peek copies len(dst) bytes from start without consuming them. The caller checked Len().
func (r *RingBuffer) peek(dst []byte) {
	n := copy(dst, r.buf[r.start:])
	if n < len(dst) {
		copy(dst[n:], r.buf)
	}
}
