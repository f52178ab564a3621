package framing

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeFrameHeader(t *testing.T) {
	tests := []struct {
		name      string
		chunked   bool
		messageID uint16
		length    uint16
		want      []byte
	}{
		{"empty", false, 0, 0, []byte{0, 0, 0, 0, 0}},
		{"unchunked", false, 42, 5, []byte{5, 0, 0, 42, 0}},
		{"chunked", true, 0x0102, 0x0304, []byte{0x04, 0x03, 1, 0x02, 0x01}},
		{"max", true, 0xFFFF, 0xFFFF, []byte{0xFF, 0xFF, 1, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeFrameHeader(tt.chunked, tt.messageID, tt.length)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("EncodeFrameHeader() = %v, want %v", got, tt.want)
			}

			header, err := DecodeFrameHeader(got)
			if err != nil {
				t.Fatalf("DecodeFrameHeader() error = %v", err)
			}
			want := FrameHeader{Length: tt.length, Chunked: tt.chunked, MessageID: tt.messageID}
			if header != want {
				t.Errorf("DecodeFrameHeader() = %+v, want %+v", header, want)
			}
		})
	}
}

func TestDecodeFrameHeaderShort(t *testing.T) {
	if _, err := DecodeFrameHeader([]byte{1, 2, 3}); !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader, got %v", err)
	}
}

func TestAppendChunkHeader(t *testing.T) {
	header := EncodeFrameHeader(true, 7, 100)
	full, err := AppendChunkHeader(3, 9, header)
	if err != nil {
		t.Fatalf("AppendChunkHeader() error = %v", err)
	}
	if len(full) != FrameHeaderSize+ChunkHeaderSize {
		t.Fatalf("expected 9 bytes, got %d", len(full))
	}
	if !bytes.Equal(full[:FrameHeaderSize], header) {
		t.Errorf("frame header not preserved: %v", full[:FrameHeaderSize])
	}

	// both the 4-byte and the 9-byte form decode
	for _, b := range [][]byte{full, full[FrameHeaderSize:]} {
		idx, count, err := DecodeChunkHeader(b)
		if err != nil {
			t.Fatalf("DecodeChunkHeader() error = %v", err)
		}
		if idx != 3 || count != 9 {
			t.Errorf("DecodeChunkHeader() = (%d, %d), want (3, 9)", idx, count)
		}
	}

	if _, err := AppendChunkHeader(0, 1, []byte{1, 2}); !errors.Is(err, ErrInvalidHeaderSize) {
		t.Errorf("expected ErrInvalidHeaderSize, got %v", err)
	}
	if _, _, err := DecodeChunkHeader([]byte{1}); !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader, got %v", err)
	}
}

func TestSetLengthAndPrepend(t *testing.T) {
	header := EncodeFrameHeader(false, 1, 0)
	if err := SetLength(header, 513); err != nil {
		t.Fatalf("SetLength() error = %v", err)
	}
	decoded, _ := DecodeFrameHeader(header)
	if decoded.Length != 513 || decoded.MessageID != 1 {
		t.Errorf("unexpected header after SetLength: %+v", decoded)
	}
	if err := SetLength([]byte{0}, 1); !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader, got %v", err)
	}

	frame := Prepend(header, []byte("abc"))
	if !bytes.Equal(frame, append(append([]byte{}, header...), 'a', 'b', 'c')) {
		t.Errorf("Prepend() = %v", frame)
	}
}

func TestChunkCount(t *testing.T) {
	const limit = 100 // 95 bytes unchunked, 91 bytes per chunk
	tests := []struct {
		size int
		want int
	}{
		{0, 1},
		{95, 1},
		{96, 2},
		{182, 2},
		{183, 3},
		{1000, 11},
	}

	for _, tt := range tests {
		if got := ChunkCount(tt.size, limit); got != tt.want {
			t.Errorf("ChunkCount(%d, %d) = %d, want %d", tt.size, limit, got, tt.want)
		}
	}
}

func TestEncodeFrames(t *testing.T) {
	const limit = 64

	sizes := []int{0, 1, limit - FrameHeaderSize, limit - FrameHeaderSize + 1, limit, 10 * limit}
	for _, size := range sizes {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}

		frames, err := EncodeFrames(payload, 99, limit)
		if err != nil {
			t.Fatalf("size %d: EncodeFrames() error = %v", size, err)
		}
		if len(frames) != ChunkCount(size, limit) {
			t.Fatalf("size %d: got %d frames, want %d", size, len(frames), ChunkCount(size, limit))
		}

		var joined []byte
		for i, frame := range frames {
			if len(frame) > limit {
				t.Errorf("size %d: frame %d exceeds limit (%d bytes)", size, i, len(frame))
			}
			header, err := DecodeFrameHeader(frame)
			if err != nil {
				t.Fatal(err)
			}
			if header.MessageID != 99 {
				t.Errorf("size %d: frame %d has message id %d", size, i, header.MessageID)
			}

			body := frame[FrameHeaderSize:]
			if header.Chunked != (len(frames) > 1) {
				t.Errorf("size %d: frame %d chunked = %v", size, i, header.Chunked)
			}
			if header.Chunked {
				idx, count, err := DecodeChunkHeader(body)
				if err != nil {
					t.Fatal(err)
				}
				if int(idx) != i || int(count) != len(frames) {
					t.Errorf("size %d: frame %d has chunk header (%d, %d)", size, i, idx, count)
				}
				body = body[ChunkHeaderSize:]
			}
			if int(header.Length) != len(body) {
				t.Errorf("size %d: frame %d length field %d, body %d", size, i, header.Length, len(body))
			}
			joined = append(joined, body...)
		}

		if !bytes.Equal(joined, payload) {
			t.Errorf("size %d: payload not reproduced by concatenation", size)
		}
	}
}

func TestEncodeFramesInvalid(t *testing.T) {
	for _, limit := range []int{0, 9, MaxPayloadSize + FrameHeaderSize + 1} {
		if _, err := EncodeFrames([]byte("x"), 0, limit); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("limit %d: expected ErrInvalidLimit, got %v", limit, err)
		}
	}

	// 10 bytes leaves one payload byte per chunk
	payload := make([]byte, MaxChunkCount+1)
	if _, err := EncodeFrames(payload, 0, 10); !errors.Is(err, ErrTooManyChunks) {
		t.Errorf("expected ErrTooManyChunks, got %v", err)
	}
}
