package metrics

import (
	"errors"
	"fmt"
	vm "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"net/http"
	"time"
)

var Logger = logger.GetLogger("metrics")

// set holds every dNet metric, separate from the global VictoriaMetrics registry
var set = vm.NewSet()

var (
	ConnectionsAccepted = set.NewCounter("dnet_connections_accepted_total")
	ConnectionsRejected = set.NewCounter("dnet_connections_rejected_total")
	ConnectionsClosed   = set.NewCounter("dnet_connections_closed_total")

	BytesSent     = set.NewCounter("dnet_bytes_sent_total")
	BytesReceived = set.NewCounter("dnet_bytes_received_total")

	MessagesSent     = set.NewCounter("dnet_messages_sent_total")
	MessagesReceived = set.NewCounter("dnet_messages_received_total")
	MessagesDropped  = set.NewCounter("dnet_messages_dropped_total")

	FramesSent     = set.NewCounter("dnet_frames_sent_total")
	FramesReceived = set.NewCounter("dnet_frames_received_total")
	ChunksSent     = set.NewCounter("dnet_chunks_sent_total")

	DecodeErrors   = set.NewCounter("dnet_decode_errors_total")
	AssemblyErrors = set.NewCounter("dnet_assembly_errors_total")

	MessageSize = set.NewHistogram("dnet_message_size_bytes")
)

// WritePrometheus writes all dNet metrics in the Prometheus text format.
// Process metrics (go runtime, fds, ...) are included if exposeProcessMetrics is set.
func WritePrometheus(w io.Writer, exposeProcessMetrics bool) {
	set.WritePrometheus(w)
	if exposeProcessMetrics {
		vm.WriteProcessMetrics(w)
	}
}

// Handler returns an http.Handler serving the Prometheus exposition
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		WritePrometheus(w, true)
	})
}

// Server exposes the metrics over http on a dedicated listener
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Serve starts an http server on endpoint that exposes /metrics. It returns once the
// listener is bound; requests are served in a background goroutine.
func Serve(endpoint string) (*Server, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics endpoint %s: %w", endpoint, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics server on %s failed: %v", endpoint, err)
		}
	}()

	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	return s, nil
}

// Addr returns the bound address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops the metrics server
func (s *Server) Close() error {
	return s.srv.Close()
}
