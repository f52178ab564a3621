package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire layout (all fields little endian):
//
//	frame header:  [u16 payloadLength][u8 flags][u16 messageID]
//	chunk header:  [u16 chunkIndex][u16 chunkCount]   (only if flags&FlagChunked)
//	payload:       payloadLength bytes
const (
	FrameHeaderSize = 5
	ChunkHeaderSize = 4

	// FlagChunked marks a frame that carries one chunk of a larger message
	FlagChunked byte = 1 << 0

	// MaxPayloadSize is the largest payload a single frame can describe
	MaxPayloadSize = 0xFFFF
	// MaxChunkCount is the largest number of chunks per message
	MaxChunkCount = 0xFFFF
)

var (
	ErrShortHeader       = errors.New("framing: header too short")
	ErrInvalidHeaderSize = errors.New("framing: frame header must be 5 bytes")
	ErrInvalidLimit      = errors.New("framing: invalid buffer limit")
	ErrPayloadTooLarge   = errors.New("framing: payload exceeds frame length field")
	ErrTooManyChunks     = errors.New("framing: message needs too many chunks")
)

// FrameHeader is the decoded 5-byte frame header
type FrameHeader struct {
	Length    uint16
	Chunked   bool
	MessageID uint16
}

// --------------------------------------------------------------------------
// Header encoding
// --------------------------------------------------------------------------

// EncodeFrameHeader creates a 5-byte frame header
func EncodeFrameHeader(chunked bool, messageID uint16, length uint16) []byte {
	header := make([]byte, FrameHeaderSize)
	putFrameHeader(header, chunked, messageID, length)
	return header
}

// AppendChunkHeader copies a frame header and appends the chunk header, returning 9 bytes
func AppendChunkHeader(chunkIndex, chunkCount uint16, header []byte) ([]byte, error) {
	if len(header) != FrameHeaderSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHeaderSize, len(header))
	}
	result := make([]byte, FrameHeaderSize+ChunkHeaderSize)
	copy(result, header)
	binary.LittleEndian.PutUint16(result[5:7], chunkIndex)
	binary.LittleEndian.PutUint16(result[7:9], chunkCount)
	return result, nil
}

// DecodeFrameHeader parses the first 5 bytes of b
func DecodeFrameHeader(b []byte) (FrameHeader, error) {
	if len(b) < FrameHeaderSize {
		return FrameHeader{}, ErrShortHeader
	}
	return FrameHeader{
		Length:    binary.LittleEndian.Uint16(b[0:2]),
		Chunked:   b[2]&FlagChunked != 0,
		MessageID: binary.LittleEndian.Uint16(b[3:5]),
	}, nil
}

// DecodeChunkHeader parses a 4-byte chunk header.
// A full 9-byte header (frame + chunk) is accepted as well.
func DecodeChunkHeader(b []byte) (chunkIndex, chunkCount uint16, err error) {
	switch {
	case len(b) >= FrameHeaderSize+ChunkHeaderSize:
		b = b[FrameHeaderSize:]
	case len(b) < ChunkHeaderSize:
		return 0, 0, ErrShortHeader
	}
	return binary.LittleEndian.Uint16(b[0:2]), binary.LittleEndian.Uint16(b[2:4]), nil
}

// SetLength overwrites the length field of an encoded header in place
func SetLength(header []byte, length uint16) error {
	if len(header) < FrameHeaderSize {
		return ErrShortHeader
	}
	binary.LittleEndian.PutUint16(header[0:2], length)
	return nil
}

// Prepend returns header followed by payload in a new slice
func Prepend(header, payload []byte) []byte {
	frame := make([]byte, len(header)+len(payload))
	copy(frame, header)
	copy(frame[len(header):], payload)
	return frame
}

func putFrameHeader(dst []byte, chunked bool, messageID uint16, length uint16) {
	binary.LittleEndian.PutUint16(dst[0:2], length)
	var flags byte
	if chunked {
		flags |= FlagChunked
	}
	dst[2] = flags
	binary.LittleEndian.PutUint16(dst[3:5], messageID)
}

// --------------------------------------------------------------------------
// Chunking
// --------------------------------------------------------------------------

// validateLimit checks that a frame limit leaves room for both headers and one payload
// byte, and that an unchunked payload still fits the u16 length field.
func validateLimit(limit int) error {
	if limit < FrameHeaderSize+ChunkHeaderSize+1 || limit-FrameHeaderSize > MaxPayloadSize {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return nil
}

// MaxUnchunkedPayload is the largest payload sent as a single frame under limit
func MaxUnchunkedPayload(limit int) int {
	return limit - FrameHeaderSize
}

// MaxChunkPayload is the payload carried by every chunk but the last under limit
func MaxChunkPayload(limit int) int {
	return limit - FrameHeaderSize - ChunkHeaderSize
}

// ChunkCount returns how many frames a payload of size bytes needs under limit.
// Payloads that fit a single unchunked frame return 1.
func ChunkCount(size, limit int) int {
	if size <= MaxUnchunkedPayload(limit) {
		return 1
	}
	per := MaxChunkPayload(limit)
	return (size + per - 1) / per
}

// EncodeFrames splits payload into wire frames of at most limit bytes each.
// A payload of up to limit-5 bytes becomes one unchunked frame; anything larger
// becomes ceil(len/(limit-9)) chunked frames in index order, all sharing messageID.
func EncodeFrames(payload []byte, messageID uint16, limit int) ([][]byte, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	if len(payload) <= MaxUnchunkedPayload(limit) {
		frame := make([]byte, FrameHeaderSize+len(payload))
		putFrameHeader(frame, false, messageID, uint16(len(payload)))
		copy(frame[FrameHeaderSize:], payload)
		return [][]byte{frame}, nil
	}

	count := ChunkCount(len(payload), limit)
	if count > MaxChunkCount {
		return nil, fmt.Errorf("%w: %d chunks for %d bytes", ErrTooManyChunks, count, len(payload))
	}

	per := MaxChunkPayload(limit)
	frames := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		slice := payload[i*per : min(len(payload), (i+1)*per)]

		frame := make([]byte, FrameHeaderSize+ChunkHeaderSize+len(slice))
		putFrameHeader(frame, true, messageID, uint16(len(slice)))
		binary.LittleEndian.PutUint16(frame[5:7], uint16(i))
		binary.LittleEndian.PutUint16(frame[7:9], uint16(count))
		copy(frame[FrameHeaderSize+ChunkHeaderSize:], slice)

		frames = append(frames, frame)
	}
	return frames, nil
}
