// Package framing implements the wire format of the dNet transport: a fixed
// 5-byte frame header, an optional 4-byte chunk header for messages that exceed
// the frame limit, a ring buffer that stages bytes for one side of a connection,
// and an assembler that turns chunks back into complete messages.
//
// Wire layout (little endian):
//
//	+----------------+---------+----------------+
//	| length (u16)   | flags   | messageID (u16)|   frame header, 5 bytes
//	+----------------+---------+----------------+
//	| chunkIndex(u16)| chunkCount (u16)         |   only if flags bit 0 is set
//	+----------------+--------------------------+
//	| payload (length bytes)                    |
//	+-------------------------------------------+
//
// Key Components:
//
//   - Codec functions (EncodeFrameHeader, AppendChunkHeader, DecodeFrameHeader,
//     DecodeChunkHeader, SetLength, Prepend, EncodeFrames): pure and deterministic.
//
//   - RingBuffer: circular byte buffer. ReadFrameHeader only consumes a header
//     once the whole frame is buffered and otherwise rolls the read cursor back,
//     which lets the receive path retry after every socket read.
//
//   - Assembler: collects chunks per message id in arrival order and returns the
//     complete message once every chunk index has been seen.
//
// Nothing in this package is safe for concurrent use; the transport gives every
// connection its own instances.
package framing
