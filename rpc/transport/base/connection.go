package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/framing"
	"github.com/ValentinKolb/dNet/rpc/metrics"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/transport"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrReceiveBufferFull = errors.New("receive buffer full without a complete frame")
	ErrFrameTooLarge     = errors.New("frame can never fit the receive buffer")
)

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Connection is one framed stream between a client and the server. It is used by
// both sides: the server assigns ids starting at 1, the client always uses id 0.
//
// The reader goroutine owns the receive ring buffer and the assembler. The send ring
// buffer is shared between Send and the writer goroutine and guarded by sendMu.
type Connection struct {
	id           uint32
	conn         net.Conn
	serializer   serializer.IRPCSerializer
	observer     transport.IObserver
	limit        int
	writeTimeout time.Duration

	// receive side (reader goroutine only)
	recv      *framing.RingBuffer
	assembler *framing.Assembler
	pending   atomic.Int32

	// send side
	msgMu       sync.Mutex // held for a whole message, guards nextID
	sendMu      sync.Mutex // guards send
	send        *framing.RingBuffer
	sendSignal  chan struct{}
	spaceSignal chan struct{}
	seed        uint16
	nextID      uint16

	// statistics
	stats            gometrics.Registry
	bitsSent         gometrics.Counter
	bitsReceived     gometrics.Counter
	messagesSent     gometrics.Counter
	messagesReceived gometrics.Counter
	framesSent       gometrics.Counter
	framesReceived   gometrics.Counter
	connectedSince   time.Time

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
	onClose   func(c *Connection)
}

// newConnection wraps an established net.Conn. Nothing is read or written until start is called.
func newConnection(
	id uint32,
	conn net.Conn,
	conf common.FramingConf,
	writeTimeout time.Duration,
	s serializer.IRPCSerializer,
	o transport.IObserver,
	onClose func(c *Connection),
) *Connection {
	registry := gometrics.NewRegistry()

	return &Connection{
		id:           id,
		conn:         conn,
		serializer:   s,
		observer:     o,
		limit:        conf.MaxBufferSize,
		writeTimeout: writeTimeout,

		recv:      framing.NewRingBuffer(conf.RingBufferSize),
		assembler: framing.NewAssembler(),

		send:        framing.NewRingBuffer(conf.RingBufferSize),
		sendSignal:  make(chan struct{}, 1),
		spaceSignal: make(chan struct{}, 1),
		seed:        uint16(id),
		nextID:      uint16(id),

		stats:            registry,
		bitsSent:         gometrics.GetOrRegisterCounter("bits.sent", registry),
		bitsReceived:     gometrics.GetOrRegisterCounter("bits.received", registry),
		messagesSent:     gometrics.GetOrRegisterCounter("messages.sent", registry),
		messagesReceived: gometrics.GetOrRegisterCounter("messages.received", registry),
		framesSent:       gometrics.GetOrRegisterCounter("frames.sent", registry),
		framesReceived:   gometrics.GetOrRegisterCounter("frames.received", registry),
		connectedSince:   time.Now(),

		closed:  make(chan struct{}),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// ID returns the connection id
func (c *Connection) ID() uint32 {
	return c.id
}

// RemoteAddr returns the address of the peer
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// start launches the reader and writer goroutines
func (c *Connection) start() {
	go c.writeLoop()
	go c.readLoop()
}

// Send serializes msg and enqueues its frames in call order.
// A message that fits the send buffer is enqueued as a whole or not at all. A larger
// message is streamed: its frames are enqueued one at a time while the writer drains.
func (c *Connection) Send(msg common.Message) error {
	data, err := c.serializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s message: %w", msg.MsgType, err)
	}
	return c.sendRaw(data)
}

// sendRaw frames an already serialized message and hands it to the writer goroutine
func (c *Connection) sendRaw(data []byte) error {
	if c.IsClosed() {
		return transport.ErrConnectionClosed
	}

	// msgMu keeps the frames of one message together, sendMu only guards the ring
	c.msgMu.Lock()
	defer c.msgMu.Unlock()

	frames, err := framing.EncodeFrames(data, c.nextID, c.limit)
	if err != nil {
		metrics.MessagesDropped.Inc()
		return err
	}
	total := 0
	for _, frame := range frames {
		total += len(frame)
	}

	if total < c.send.Cap() {
		c.sendMu.Lock()
		err = c.send.WriteFrames(frames)
		c.sendMu.Unlock()
	} else {
		err = c.streamFrames(frames)
	}
	if err != nil {
		metrics.MessagesDropped.Inc()
		Logger.Warningf("Connection %d: dropped message of %d bytes: %v", c.id, len(data), err)
		return err
	}
	c.advanceMessageID()

	c.messagesSent.Inc(1)
	c.framesSent.Inc(int64(len(frames)))
	metrics.MessagesSent.Inc()
	metrics.FramesSent.Add(len(frames))
	if len(frames) > 1 {
		metrics.ChunksSent.Add(len(frames))
	}
	metrics.MessageSize.Update(float64(len(data)))

	c.wakeWriter()
	return nil
}

// streamFrames enqueues the frames of a message larger than the send buffer. Each frame
// waits until the writer freed enough space. Must be called with msgMu held.
func (c *Connection) streamFrames(frames [][]byte) error {
	for _, frame := range frames {
		for {
			c.sendMu.Lock()
			fits := len(frame) <= c.send.Free()
			if fits {
				_ = c.send.WriteBlock(frame)
			}
			c.sendMu.Unlock()

			c.wakeWriter()
			if fits {
				break
			}
			select {
			case <-c.closed:
				return transport.ErrConnectionClosed
			case <-c.spaceSignal:
			}
		}
	}
	return nil
}

// wakeWriter signals the writer goroutine, a pending signal is enough
func (c *Connection) wakeWriter() {
	select {
	case c.sendSignal <- struct{}{}:
	default:
	}
}

// advanceMessageID moves to the next message id. After 0xFFFF the counter restarts at
// the seed. Must be called with msgMu held.
func (c *Connection) advanceMessageID() {
	if c.nextID == 0xFFFF {
		c.nextID = c.seed
		return
	}
	c.nextID++
}

// Close closes the socket. The reader goroutine notices, releases the connection and
// notifies the observer. Close never blocks on the connection goroutines.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
		metrics.ConnectionsClosed.Inc()
		Logger.Debugf("Connection %d to %s closed", c.id, c.conn.RemoteAddr())
	})
	return err
}

// IsClosed reports whether Close was called
func (c *Connection) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Done is closed once the connection is fully released and OnDisconnected was called
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Stats returns a snapshot of the traffic counters
func (c *Connection) Stats() transport.ConnectionStats {
	return transport.ConnectionStats{
		ID:               c.id,
		RemoteAddr:       c.conn.RemoteAddr().String(),
		BitsSent:         c.bitsSent.Count(),
		BitsReceived:     c.bitsReceived.Count(),
		MessagesSent:     c.messagesSent.Count(),
		MessagesReceived: c.messagesReceived.Count(),
		FramesSent:       c.framesSent.Count(),
		FramesReceived:   c.framesReceived.Count(),
		PendingMessages:  int(c.pending.Load()),
		ConnectedSince:   c.connectedSince.UnixMilli(),
	}
}

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// writeLoop drains the send ring buffer into the socket
func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case <-c.sendSignal:
		}

		for {
			c.sendMu.Lock()
			n := c.send.Len()
			if n == 0 {
				c.sendMu.Unlock()
				break
			}
			data, _ := c.send.Read(n)
			c.sendMu.Unlock()

			select {
			case c.spaceSignal <- struct{}{}:
			default:
			}

			if c.writeTimeout > 0 {
				if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
					c.fail("failed to set write deadline", err)
					return
				}
			}

			written, err := c.conn.Write(data)
			c.bitsSent.Inc(int64(written) * 8)
			metrics.BytesSent.Add(written)
			if err != nil {
				c.fail("write failed", err)
				return
			}
		}
	}
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

// readLoop keeps exactly one read outstanding: read, process every complete frame,
// read again. Any read error ends the connection.
func (c *Connection) readLoop() {
	defer c.release()

	c.observer.OnConnected(c.id)

	scratch := make([]byte, c.recv.Cap()-1)
	for {
		free := c.recv.Free()
		if free == 0 {
			c.fail("receive failed", ErrReceiveBufferFull)
			return
		}

		n, err := c.conn.Read(scratch[:free])
		if n > 0 {
			c.bitsReceived.Inc(int64(n) * 8)
			metrics.BytesReceived.Add(n)

			// cannot fail, at most Free() bytes were read
			_ = c.recv.WriteBlock(scratch[:n])
			c.drain()

			if size, ok := c.recv.PeekFrameSize(); ok && size > c.recv.Cap()-1 {
				c.fail("receive failed", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size))
				return
			}
		}

		if err != nil {
			switch {
			case c.IsClosed():
			case errors.Is(err, io.EOF):
				Logger.Infof("Connection %d closed by peer", c.id)
			default:
				Logger.Warningf("Connection %d read error: %v", c.id, err)
			}
			_ = c.Close()
			return
		}

		if c.IsClosed() {
			return
		}
	}
}

// drain processes every complete frame in the receive buffer
func (c *Connection) drain() {
	for !c.IsClosed() {
		header, ok := c.recv.ReadFrameHeader()
		if !ok {
			return
		}
		c.framesReceived.Inc(1)
		metrics.FramesReceived.Inc()

		var chunkIndex, chunkCount uint16
		if header.Chunked {
			raw, _ := c.recv.Read(framing.ChunkHeaderSize)
			chunkIndex, chunkCount, _ = framing.DecodeChunkHeader(raw)
		}
		payload, _ := c.recv.Read(int(header.Length))

		data, complete, err := c.assembler.Handle(payload, header.MessageID, header.Chunked, chunkIndex, chunkCount)
		c.pending.Store(int32(c.assembler.Pending()))
		if err != nil {
			metrics.AssemblyErrors.Inc()
			Logger.Warningf("Connection %d: %v", c.id, err)
			c.observer.OnError(c.id, err)
			continue
		}
		if !complete {
			continue
		}

		c.dispatch(data)
	}
}

// dispatch decodes a complete message and routes it
func (c *Connection) dispatch(data []byte) {
	var msg common.Message
	if err := c.serializer.Deserialize(data, &msg); err != nil {
		metrics.DecodeErrors.Inc()
		Logger.Warningf("Connection %d: failed to decode message of %d bytes: %v", c.id, len(data), err)
		c.observer.OnError(c.id, fmt.Errorf("failed to decode message: %w", err))
		return
	}

	c.messagesReceived.Inc(1)
	metrics.MessagesReceived.Inc()

	if msg.IsReserved() && !c.handleReserved(msg) {
		return
	}
	c.observer.OnMessage(c.id, msg)
}

// handleReserved reacts to messages the transport core owns and reports whether the
// message is forwarded to the observer as well
func (c *Connection) handleReserved(msg common.Message) bool {
	switch msg.MsgType {
	case common.MsgTPing:
		if err := c.Send(*common.NewPongMessage()); err != nil {
			Logger.Warningf("Connection %d: failed to answer ping: %v", c.id, err)
		}
		return true
	case common.MsgTTransport:
		c.observer.OnTransportStatus(c.id, msg.Code)
		if msg.Code == common.TransportMaximumConnectionReached {
			Logger.Warningf("Connection %d rejected by peer: %s", c.id, msg.Code)
			_ = c.Close()
		}
		return false
	default:
		return true
	}
}

// fail logs an unrecoverable error and closes the connection
func (c *Connection) fail(reason string, err error) {
	if !c.IsClosed() {
		Logger.Errorf("Connection %d: %s: %v", c.id, reason, err)
	}
	_ = c.Close()
}

// release runs once on the reader goroutine after the connection ended
func (c *Connection) release() {
	if r := recover(); r != nil {
		Logger.Errorf("Connection %d: recovered from panic: %v", c.id, r)
		c.observer.OnError(c.id, fmt.Errorf("connection %d: panic: %v", c.id, r))
	}

	_ = c.Close()
	c.assembler.Reset()
	c.pending.Store(0)

	if c.onClose != nil {
		c.onClose(c)
	}
	c.observer.OnDisconnected(c.id)
	close(c.done)
}
