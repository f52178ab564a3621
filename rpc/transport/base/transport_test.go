package base

import (
	"bytes"
	"context"
	"errors"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"math/rand"
	"net"
	"slices"
	"testing"
	"time"
)

const testTimeout = 3 * time.Second

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// testServerConnector listens on plain TCP without socket tuning
type testServerConnector struct{}

func (testServerConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("tcp", config.Endpoint)
}
func (testServerConnector) GetName() string { return "test-tcp" }
func (testServerConnector) UpgradeConnection(net.Conn, common.TransportConf) error {
	return nil
}

// testClientConnector dials plain TCP, or runs dial if set
type testClientConnector struct {
	dial func(ctx context.Context, endpoint string) (net.Conn, error)
}

func (c testClientConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	if c.dial != nil {
		return c.dial(ctx, endpoint)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", endpoint)
}
func (testClientConnector) GetName() string { return "test-tcp" }
func (testClientConnector) UpgradeConnection(net.Conn, common.TransportConf) error {
	return nil
}

type receivedMessage struct {
	id  uint32
	msg common.Message
}

type receivedStatus struct {
	id   uint32
	code common.TransportCode
}

// recorder is an IObserver that forwards every event to a channel
type recorder struct {
	connected    chan uint32
	messages     chan receivedMessage
	statuses     chan receivedStatus
	errs         chan error
	disconnected chan uint32
}

func newRecorder() *recorder {
	return &recorder{
		connected:    make(chan uint32, 64),
		messages:     make(chan receivedMessage, 256),
		statuses:     make(chan receivedStatus, 64),
		errs:         make(chan error, 64),
		disconnected: make(chan uint32, 64),
	}
}

func (r *recorder) OnConnected(id uint32) { r.connected <- id }
func (r *recorder) OnMessage(id uint32, msg common.Message) {
	r.messages <- receivedMessage{id, msg}
}
func (r *recorder) OnTransportStatus(id uint32, code common.TransportCode) {
	r.statuses <- receivedStatus{id, code}
}
func (r *recorder) OnError(id uint32, err error) { r.errs <- err }
func (r *recorder) OnDisconnected(id uint32)     { r.disconnected <- id }

// waitFor receives one value or fails the test after testTimeout
func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("Timeout waiting for %s", what)
	}
	var zero T
	return zero
}

// waitForMessage skips messages until one of the given type arrives
func waitForMessage(t *testing.T, r *recorder, msgType common.MessageType) receivedMessage {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case m := <-r.messages:
			if m.msg.MsgType == msgType {
				return m
			}
		case <-deadline:
			t.Fatalf("Timeout waiting for %s message", msgType)
			return receivedMessage{}
		}
	}
}

// waitForStatus skips status codes until the given one arrives
func waitForStatus(t *testing.T, r *recorder, code common.TransportCode) {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case s := <-r.statuses:
			if s.code == code {
				return
			}
		case <-deadline:
			t.Fatalf("Timeout waiting for status %s", code)
			return
		}
	}
}

// expectNone fails if a value arrives within wait
func expectNone[T any](t *testing.T, ch <-chan T, wait time.Duration, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Errorf("Unexpected %s: %+v", what, v)
	case <-time.After(wait):
	}
}

func testServerConfig(maxConnections int) common.ServerConfig {
	config := common.DefaultServerConfig("127.0.0.1:0")
	config.MaxConnections = maxConnections
	return config
}

func testClientConfig(endpoint string) common.ClientConfig {
	config := common.DefaultClientConfig(endpoint)
	config.ConnectTimeoutSecond = 2
	return config
}

// startServer starts a server on a random local port
func startServer(t *testing.T, config common.ServerConfig) (transport.IServerTransport, *recorder) {
	t.Helper()
	rec := newRecorder()
	server := NewBaseServerTransport(testServerConnector{}, serializer.NewBinarySerializer(), rec)
	if err := server.Start(config); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server, rec
}

// startClient connects a client and expects the given code
func startClient(t *testing.T, config common.ClientConfig, want common.TransportCode) (transport.IClientTransport, *recorder) {
	t.Helper()
	rec := newRecorder()
	client := NewBaseClientTransport(testClientConnector{}, serializer.NewBinarySerializer(), rec)
	if code := client.Start(config); code != want {
		t.Fatalf("Client start returned %s, expected %s", code, want)
	}
	t.Cleanup(func() { _ = client.Stop() })
	return client, rec
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestPingPong verifies the automatic pong and that ping is still forwarded
func TestPingPong(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(10))
	client, clientRec := startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)

	id := waitFor(t, serverRec.connected, "server connect event")
	if id != 1 {
		t.Errorf("Expected first connection id 1, got %d", id)
	}
	if got := waitFor(t, clientRec.statuses, "client status"); got.code != common.TransportConnected || got.id != 0 {
		t.Errorf("Unexpected client status %+v", got)
	}

	if err := client.Send(*common.NewPingMessage()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ping := waitForMessage(t, serverRec, common.MsgTPing)
	if ping.id != id {
		t.Errorf("Ping arrived on connection %d, expected %d", ping.id, id)
	}
	waitForMessage(t, clientRec, common.MsgTPong)
}

// TestMirrorBothDirections sends messages both ways and checks their content
func TestMirrorBothDirections(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(10))
	client, clientRec := startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)
	id := waitFor(t, serverRec.connected, "server connect event")

	if err := client.Send(*common.NewMirrorMessage("to server")); err != nil {
		t.Fatal(err)
	}
	if got := waitForMessage(t, serverRec, common.MsgTMirror); got.msg.Text != "to server" {
		t.Errorf("Server received %q", got.msg.Text)
	}

	if err := server.SendTo(id, *common.NewMirrorMessage("to client")); err != nil {
		t.Fatal(err)
	}
	if got := waitForMessage(t, clientRec, common.MsgTMirror); got.msg.Text != "to client" {
		t.Errorf("Client received %q", got.msg.Text)
	}
}

// TestChunkedMessages sends messages around and far above the frame limit
func TestChunkedMessages(t *testing.T) {
	const limit = 64

	serverConfig := testServerConfig(10)
	serverConfig.Framing.MaxBufferSize = limit
	server, serverRec := startServer(t, serverConfig)

	clientConfig := testClientConfig(server.Addr().String())
	clientConfig.Framing.MaxBufferSize = limit
	client, _ := startClient(t, clientConfig, common.TransportConnected)
	waitFor(t, serverRec.connected, "server connect event")

	sizes := []int{0, limit - 1, limit, limit + 1, 10 * limit, 64 * 1024}
	for _, size := range sizes {
		value := make([]byte, size)
		rand.New(rand.NewSource(int64(size))).Read(value)

		if err := client.Send(*common.NewCustomMessage(value)); err != nil {
			t.Fatalf("Send of %d bytes failed: %v", size, err)
		}
		got := waitForMessage(t, serverRec, common.MsgTCustom)
		if !bytes.Equal(got.msg.Value, value) {
			t.Errorf("Message of %d bytes corrupted (got %d bytes)", size, len(got.msg.Value))
		}
	}

	stats, err := client.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.MessagesSent != int64(len(sizes)) {
		t.Errorf("Expected %d messages sent, got %d", len(sizes), stats.MessagesSent)
	}
	if stats.FramesSent <= stats.MessagesSent {
		t.Errorf("Expected chunked frames, got %d frames for %d messages", stats.FramesSent, stats.MessagesSent)
	}
}

// TestMessageLargerThanRingBuffer sends messages above the ring buffer capacity in both directions
func TestMessageLargerThanRingBuffer(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(10))
	client, clientRec := startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)
	id := waitFor(t, serverRec.connected, "server connect event")

	value := make([]byte, common.DefaultRingBufferSize+44*1024)
	rand.New(rand.NewSource(1)).Read(value)

	if err := server.SendTo(id, *common.NewCustomMessage(value)); err != nil {
		t.Fatalf("SendTo failed: %v", err)
	}
	if got := waitForMessage(t, clientRec, common.MsgTCustom); !bytes.Equal(got.msg.Value, value) {
		t.Errorf("Server message corrupted (got %d bytes)", len(got.msg.Value))
	}

	if err := client.Send(*common.NewCustomMessage(value)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := waitForMessage(t, serverRec, common.MsgTCustom); !bytes.Equal(got.msg.Value, value) {
		t.Errorf("Client message corrupted (got %d bytes)", len(got.msg.Value))
	}

	// a small message still follows in order
	if err := client.Send(*common.NewMirrorMessage("after")); err != nil {
		t.Fatal(err)
	}
	if got := waitForMessage(t, serverRec, common.MsgTMirror); got.msg.Text != "after" {
		t.Errorf("Unexpected message %+v", got.msg)
	}
}

// TestMessageOrder checks that messages arrive in send order
func TestMessageOrder(t *testing.T) {
	serverConfig := testServerConfig(10)
	serverConfig.Framing.MaxBufferSize = 128
	server, serverRec := startServer(t, serverConfig)
	client, _ := startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)
	waitFor(t, serverRec.connected, "server connect event")

	const count = 100
	for i := 0; i < count; i++ {
		// alternate small and chunked messages
		value := make([]byte, 1+(i%2)*500)
		value[0] = byte(i)
		if err := client.Send(*common.NewCustomMessage(value)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < count; i++ {
		got := waitForMessage(t, serverRec, common.MsgTCustom)
		if got.msg.Value[0] != byte(i) {
			t.Fatalf("Message %d arrived out of order (got %d)", i, got.msg.Value[0])
		}
	}
}

// TestAdmissionControl runs the MaxConnections=3 scenario
func TestAdmissionControl(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(3))
	endpoint := server.Addr().String()

	var accepted []*recorder
	for i := 0; i < 3; i++ {
		_, rec := startClient(t, testClientConfig(endpoint), common.TransportConnected)
		accepted = append(accepted, rec)
	}
	for i := 0; i < 3; i++ {
		waitFor(t, serverRec.connected, "server connect event")
	}

	// the socket is accepted by the OS, the server rejects it with a transport message
	fourth, rejectedRec := startClient(t, testClientConfig(endpoint), common.TransportConnected)
	waitForStatus(t, rejectedRec, common.TransportMaximumConnectionReached)
	waitFor(t, rejectedRec.disconnected, "rejected client disconnect")
	if fourth.IsConnected() {
		t.Errorf("Rejected client must stop itself")
	}
	if err := fourth.Send(*common.NewPingMessage()); !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	if got := server.Connections(); !slices.Equal(got, []uint32{1, 2, 3}) {
		t.Errorf("Expected connections [1 2 3], got %v", got)
	}
	expectNone(t, serverRec.connected, 50*time.Millisecond, "connect event for rejected socket")

	// broadcast reaches exactly the admitted clients
	if err := server.Send(*common.NewMirrorMessage("broadcast")); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	for i, rec := range accepted {
		if got := waitForMessage(t, rec, common.MsgTMirror); got.msg.Text != "broadcast" {
			t.Errorf("Client %d received %q", i, got.msg.Text)
		}
	}
	expectNone(t, rejectedRec.messages, 100*time.Millisecond, "message on rejected client")
}

// TestAdmissionFreesSlot checks that a disconnect makes room for a new client
func TestAdmissionFreesSlot(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(1))
	endpoint := server.Addr().String()

	first, firstRec := startClient(t, testClientConfig(endpoint), common.TransportConnected)
	waitFor(t, serverRec.connected, "server connect event")

	if err := first.Stop(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, serverRec.disconnected, "server disconnect event")
	waitFor(t, firstRec.disconnected, "client disconnect event")

	_, secondRec := startClient(t, testClientConfig(endpoint), common.TransportConnected)
	if id := waitFor(t, serverRec.connected, "second connect event"); id != 2 {
		t.Errorf("Expected id 2 (ids are never reused), got %d", id)
	}
	waitForStatus(t, secondRec, common.TransportConnected)
	expectNone(t, secondRec.statuses, 50*time.Millisecond, "status on admitted client")
}

// TestServerStopIdempotent stops twice and restarts
func TestServerStopIdempotent(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(10))
	_, clientRec := startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)
	waitFor(t, serverRec.connected, "server connect event")

	if err := server.Start(testServerConfig(10)); !errors.Is(err, transport.ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := server.Stop(); err != nil {
			t.Fatalf("Stop %d failed: %v", i, err)
		}
	}
	waitFor(t, clientRec.disconnected, "client disconnect event")

	if err := server.Send(*common.NewPingMessage()); !errors.Is(err, transport.ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
	if err := server.SendTo(1, *common.NewPingMessage()); !errors.Is(err, transport.ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
	if len(server.Connections()) != 0 {
		t.Errorf("Registry not cleared: %v", server.Connections())
	}
	if server.Addr() != nil {
		t.Errorf("Stopped server must not report an address")
	}

	// restart
	if err := server.Start(testServerConfig(10)); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)
	waitFor(t, serverRec.connected, "connect event after restart")
}

// TestClientStopIdempotent stops a client repeatedly and concurrently
func TestClientStopIdempotent(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(10))
	config := testClientConfig(server.Addr().String())
	client, _ := startClient(t, config, common.TransportConnected)
	waitFor(t, serverRec.connected, "server connect event")

	if code := client.Start(config); code != common.TransportAlreadyConnected {
		t.Errorf("Expected ALREADY_CONNECTED, got %s", code)
	}

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			_ = client.Stop()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		waitFor(t, done, "concurrent stop")
	}
	if client.IsConnected() {
		t.Errorf("Client still connected after Stop")
	}
	if err := client.Send(*common.NewPingMessage()); !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	waitFor(t, serverRec.disconnected, "server disconnect event")

	// the client is reusable
	if code := client.Start(config); code != common.TransportConnected {
		t.Errorf("Reconnect returned %s", code)
	}
}

// TestStopDuringConnect checks that Stop and the getters do not wait for a pending dial
func TestStopDuringConnect(t *testing.T) {
	dialing := make(chan struct{})
	connector := testClientConnector{dial: func(ctx context.Context, endpoint string) (net.Conn, error) {
		close(dialing)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rec := newRecorder()
	client := NewBaseClientTransport(connector, serializer.NewBinarySerializer(), rec)

	config := testClientConfig("127.0.0.1:1")
	config.ConnectTimeoutSecond = 10

	codes := make(chan common.TransportCode, 1)
	go func() { codes <- client.Start(config) }()
	waitFor(t, dialing, "dial")

	if code := client.Start(config); code != common.TransportAlreadyConnected {
		t.Errorf("Expected ALREADY_CONNECTED while dialing, got %s", code)
	}

	begin := time.Now()
	if client.IsConnected() {
		t.Errorf("Client must not be connected while dialing")
	}
	if err := client.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Errorf("Stop blocked for %s", elapsed)
	}

	if code := waitFor(t, codes, "start result"); code != common.TransportConnectionError {
		t.Errorf("Expected CONNECTION_ERROR after Stop, got %s", code)
	}
	if client.IsConnected() {
		t.Errorf("Client connected after Stop")
	}
}

// TestStopFromCallback stops the server from inside a message callback
func TestStopFromCallback(t *testing.T) {
	var server transport.IServerTransport
	stopped := make(chan error, 1)

	observer := transport.ObserverFuncs{
		Message: func(id uint32, msg common.Message) {
			stopped <- server.Stop()
		},
	}
	server = NewBaseServerTransport(testServerConnector{}, serializer.NewBinarySerializer(), observer)
	if err := server.Start(testServerConfig(10)); err != nil {
		t.Fatal(err)
	}
	defer server.Stop()

	client, clientRec := startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)
	if err := client.Send(*common.NewMirrorMessage("stop")); err != nil {
		t.Fatal(err)
	}

	if err := waitFor(t, stopped, "stop from callback"); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	waitFor(t, clientRec.disconnected, "client disconnect event")
}

// TestDisconnect closes a single connection from the server
func TestDisconnect(t *testing.T) {
	server, serverRec := startServer(t, testServerConfig(10))
	_, clientRec := startClient(t, testClientConfig(server.Addr().String()), common.TransportConnected)
	id := waitFor(t, serverRec.connected, "server connect event")

	if _, err := server.Stats(id); err != nil {
		t.Errorf("Stats failed: %v", err)
	}
	if err := server.Disconnect(id); err != nil {
		t.Fatal(err)
	}
	waitFor(t, clientRec.disconnected, "client disconnect event")
	waitFor(t, serverRec.disconnected, "server disconnect event")

	if err := server.Disconnect(id); !errors.Is(err, transport.ErrUnknownConnection) {
		t.Errorf("Expected ErrUnknownConnection, got %v", err)
	}
	if err := server.SendTo(id, *common.NewPingMessage()); !errors.Is(err, transport.ErrUnknownConnection) {
		t.Errorf("Expected ErrUnknownConnection, got %v", err)
	}
	if _, err := server.Stats(id); !errors.Is(err, transport.ErrUnknownConnection) {
		t.Errorf("Expected ErrUnknownConnection, got %v", err)
	}
}

// TestConnectRefused dials a port nobody listens on
func TestConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	endpoint := listener.Addr().String()
	_ = listener.Close()

	client, rec := startClient(t, testClientConfig(endpoint), common.TransportConnectionRefused)
	if got := waitFor(t, rec.statuses, "status"); got.code != common.TransportConnectionRefused {
		t.Errorf("Observer got %s", got.code)
	}
	if client.IsConnected() {
		t.Errorf("Client must not be connected")
	}
}

// TestConnectClassification covers timeout, generic errors and panics in the connector
func TestConnectClassification(t *testing.T) {
	tests := []struct {
		name string
		dial func(ctx context.Context, endpoint string) (net.Conn, error)
		want common.TransportCode
	}{
		{
			name: "timeout",
			dial: func(ctx context.Context, endpoint string) (net.Conn, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			want: common.TransportConnectionTimeout,
		},
		{
			name: "generic error",
			dial: func(ctx context.Context, endpoint string) (net.Conn, error) {
				return nil, errors.New("no route")
			},
			want: common.TransportConnectionError,
		},
		{
			name: "panic",
			dial: func(ctx context.Context, endpoint string) (net.Conn, error) {
				panic("broken connector")
			},
			want: common.TransportConnectionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			client := NewBaseClientTransport(testClientConnector{dial: tt.dial}, serializer.NewBinarySerializer(), rec)

			config := testClientConfig("127.0.0.1:1")
			config.ConnectTimeoutSecond = 1

			if code := client.Start(config); code != tt.want {
				t.Errorf("Start returned %s, expected %s", code, tt.want)
			}
			if got := waitFor(t, rec.statuses, "status"); got.code != tt.want {
				t.Errorf("Observer got %s, expected %s", got.code, tt.want)
			}
			if client.IsConnected() {
				t.Errorf("Client must not be connected")
			}
		})
	}
}

// TestClassifyConnectError checks the error to code mapping
func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want common.TransportCode
	}{
		{"nil", nil, common.TransportConnected},
		{"deadline", context.DeadlineExceeded, common.TransportConnectionTimeout},
		{"wrapped deadline", &net.OpError{Op: "dial", Err: context.DeadlineExceeded}, common.TransportConnectionTimeout},
		{"other", errors.New("boom"), common.TransportConnectionError},
		{"canceled", context.Canceled, common.TransportConnectionError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyConnectError(tt.err); got != tt.want {
				t.Errorf("classifyConnectError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

// TestInvalidConfig checks that bad configs are rejected before any socket is opened
func TestInvalidConfig(t *testing.T) {
	server := NewBaseServerTransport(testServerConnector{}, serializer.NewBinarySerializer(), nil)
	config := testServerConfig(0)
	if err := server.Start(config); err == nil {
		_ = server.Stop()
		t.Errorf("Expected error for MaxConnections=0")
	}

	client := NewBaseClientTransport(testClientConnector{}, serializer.NewBinarySerializer(), nil)
	clientConfig := testClientConfig("127.0.0.1:1")
	clientConfig.Framing.MaxBufferSize = 5
	if code := client.Start(clientConfig); code != common.TransportConnectionError {
		t.Errorf("Expected CONNECTION_ERROR, got %s", code)
	}
}
