package framing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidChunkCount  = errors.New("framing: chunked frame with chunk count 0")
	ErrInvalidChunkIndex  = errors.New("framing: chunk index out of range")
	ErrChunkCountMismatch = errors.New("framing: chunk count changed within a message")
	ErrDuplicateChunk     = errors.New("framing: duplicate chunk index")
)

// pendingMessage accumulates the chunks of one message id
type pendingMessage struct {
	data  []byte
	seen  map[uint16]struct{}
	count uint16
}

// Assembler reconstructs messages from their chunks.
//
// Chunk payloads are concatenated in arrival order, not reordered by index, so the
// sender must emit chunks in index order over an ordered stream. A duplicate chunk
// index is treated as a protocol violation: its bytes are not appended and the whole
// pending message is discarded.
//
// An Assembler is not safe for concurrent use; it belongs to the receive side of one
// connection.
type Assembler struct {
	pending map[uint16]*pendingMessage
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[uint16]*pendingMessage)}
}

// Handle processes the payload of one frame. It returns the complete message bytes and
// true once the message is complete. Unchunked payloads are returned immediately.
// On error the pending entry for messageID is discarded.
func (a *Assembler) Handle(payload []byte, messageID uint16, chunked bool, chunkIndex, chunkCount uint16) ([]byte, bool, error) {
	if !chunked {
		return payload, true, nil
	}

	if chunkCount == 0 {
		a.Discard(messageID)
		return nil, false, fmt.Errorf("%w (message %d)", ErrInvalidChunkCount, messageID)
	}
	if chunkIndex >= chunkCount {
		a.Discard(messageID)
		return nil, false, fmt.Errorf("%w: %d of %d (message %d)", ErrInvalidChunkIndex, chunkIndex, chunkCount, messageID)
	}

	p, ok := a.pending[messageID]
	if !ok {
		p = &pendingMessage{
			seen:  make(map[uint16]struct{}, chunkCount),
			count: chunkCount,
		}
		a.pending[messageID] = p
	}

	if p.count != chunkCount {
		a.Discard(messageID)
		return nil, false, fmt.Errorf("%w: %d != %d (message %d)", ErrChunkCountMismatch, chunkCount, p.count, messageID)
	}
	if _, dup := p.seen[chunkIndex]; dup {
		a.Discard(messageID)
		return nil, false, fmt.Errorf("%w: %d (message %d)", ErrDuplicateChunk, chunkIndex, messageID)
	}

	p.data = append(p.data, payload...)
	p.seen[chunkIndex] = struct{}{}

	if len(p.seen) < int(p.count) {
		return nil, false, nil
	}

	delete(a.pending, messageID)
	if p.data == nil {
		p.data = []byte{}
	}
	return p.data, true, nil
}

// Discard drops the pending chunks of messageID, if any
func (a *Assembler) Discard(messageID uint16) {
	delete(a.pending, messageID)
}

// Pending returns the number of incomplete messages
func (a *Assembler) Pending() int {
	return len(a.pending)
}

// Reset drops every pending message
func (a *Assembler) Reset() {
	clear(a.pending)
}
