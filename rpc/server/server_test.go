package server

import (
	"errors"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/ValentinKolb/dNet/rpc/transport/tcp"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

const testTimeout = 3 * time.Second

// startGameServer starts a server on a random local port
func startGameServer(t *testing.T, config common.ServerConfig) *GameServer {
	t.Helper()
	s := NewGameServer(config, tcp.NewTCPServerTransport, serializer.NewBinarySerializer())
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// connect starts a raw client transport that reports every message on the returned channel
func connect(t *testing.T, s *GameServer) (transport.IClientTransport, <-chan common.Message) {
	t.Helper()
	messages := make(chan common.Message, 64)
	c := tcp.NewTCPClientTransport(serializer.NewBinarySerializer(), transport.ObserverFuncs{
		Message: func(_ uint32, msg common.Message) { messages <- msg },
	})

	config := common.DefaultClientConfig(s.Addr().String())
	config.ConnectTimeoutSecond = 2
	if code := c.Start(config); code != common.TransportConnected {
		t.Fatalf("Expected CONNECTED, got %s", code)
	}
	t.Cleanup(func() { _ = c.Stop() })
	return c, messages
}

// next returns the next message of the given type, skipping others
func next(t *testing.T, messages <-chan common.Message, msgType common.MessageType) common.Message {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case msg := <-messages:
			if msg.MsgType == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %s message", msgType)
		}
	}
}

func localConfig() common.ServerConfig {
	return common.DefaultServerConfig("127.0.0.1:0")
}

// TestInitialStatePush checks that a new client first receives the full state
func TestInitialStatePush(t *testing.T) {
	s := startGameServer(t, localConfig())
	e, _ := s.State().AddEntity([]byte("player"))
	c, err := s.State().AddComponent(e.ID, []byte("position"))
	if err != nil {
		t.Fatal(err)
	}

	_, messages := connect(t, s)

	select {
	case msg := <-messages:
		if msg.MsgType != common.MsgTNetworkState {
			t.Fatalf("Expected network state first, got %s", msg.MsgType)
		}
		if len(msg.Entities) != 1 || msg.Entities[0].ID != e.ID {
			t.Errorf("Unexpected entities %+v", msg.Entities)
		}
		if len(msg.Components) != 1 || msg.Components[0].ID != c.ID {
			t.Errorf("Unexpected components %+v", msg.Components)
		}
	case <-time.After(testTimeout):
		t.Fatal("No network state received")
	}
}

// TestMirrorHandler checks the default echo handler
func TestMirrorHandler(t *testing.T) {
	s := startGameServer(t, localConfig())
	c, messages := connect(t, s)

	if err := c.Send(*common.NewMirrorMessage("hello")); err != nil {
		t.Fatal(err)
	}
	if got := next(t, messages, common.MsgTMirror); got.Text != "hello" {
		t.Errorf("Expected echo 'hello', got %q", got.Text)
	}
}

// TestRegisterHandler replaces and removes handlers
func TestRegisterHandler(t *testing.T) {
	s := startGameServer(t, localConfig())

	handled := make(chan uint32, 1)
	s.RegisterHandler(common.MsgTCustom, func(srv *GameServer, id uint32, msg *common.Message) error {
		handled <- id
		return srv.SendTo(id, *common.NewCustomMessage(append([]byte("re:"), msg.Value...)))
	})
	s.RegisterHandler(common.MsgTMirror, nil)

	c, messages := connect(t, s)
	if err := c.Send(*common.NewMirrorMessage("ignored")); err != nil {
		t.Fatal(err)
	}
	if err := c.Send(*common.NewCustomMessage([]byte("x"))); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-handled:
		if id != s.Connections()[0] {
			t.Errorf("Handler called with id %d", id)
		}
	case <-time.After(testTimeout):
		t.Fatal("Custom handler not called")
	}
	if got := next(t, messages, common.MsgTCustom); string(got.Value) != "re:x" {
		t.Errorf("Unexpected reply %q", got.Value)
	}

	// messages are processed in order, so a mirror reply would have arrived already
	select {
	case msg := <-messages:
		if msg.MsgType == common.MsgTMirror {
			t.Error("Removed mirror handler still answered")
		}
	default:
	}
}

// TestSync covers server initiated and client relayed field updates
func TestSync(t *testing.T) {
	s := startGameServer(t, localConfig())
	e, _ := s.State().AddEntity(nil)
	comp, _ := s.State().AddComponent(e.ID, nil)

	a, messagesA := connect(t, s)
	_, messagesB := connect(t, s)
	next(t, messagesA, common.MsgTNetworkState)
	next(t, messagesB, common.MsgTNetworkState)

	// server update reaches everybody
	if err := s.Sync(comp.ID, "hp", []byte{50}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	for _, ch := range []<-chan common.Message{messagesA, messagesB} {
		if got := next(t, ch, common.MsgTSync); got.FieldName != "hp" || got.Value[0] != 50 {
			t.Errorf("Unexpected sync %+v", got)
		}
	}

	// a client update is applied and relayed to the other client
	if err := a.Send(*common.NewSyncMessage(comp.ID, "hp", []byte{40})); err != nil {
		t.Fatal(err)
	}
	if got := next(t, messagesB, common.MsgTSync); got.Value[0] != 40 {
		t.Errorf("Unexpected relayed sync %+v", got)
	}
	if v, ok := s.State().Field(comp.ID, "hp"); !ok || v[0] != 40 {
		t.Errorf("Server state not updated: %v", v)
	}

	// invalid updates are rejected before anything is broadcast
	if err := s.Sync(comp.ID, "", nil); err == nil {
		t.Error("Expected error for an empty field name")
	}
}

// TestMetricsEndpoint checks the Prometheus exposition of a running server
func TestMetricsEndpoint(t *testing.T) {
	config := localConfig()
	config.MetricsEndpoint = "127.0.0.1:0"
	s := startGameServer(t, config)
	connect(t, s)

	s.mu.Lock()
	addr := s.metrics.Addr().String()
	s.mu.Unlock()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("Failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "dnet_connections_accepted_total") {
		t.Errorf("Metrics missing from exposition:\n%s", body)
	}
}

// TestStopIdempotent stops the server twice
func TestStopIdempotent(t *testing.T) {
	config := localConfig()
	config.MetricsEndpoint = "127.0.0.1:0"
	s := NewGameServer(config, tcp.NewTCPServerTransport, serializer.NewBinarySerializer())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("First stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}
	if s.Addr() != nil {
		t.Error("Stopped server still has an address")
	}
	if err := s.Broadcast(*common.NewPingMessage()); !errors.Is(err, transport.ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
}
