package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the http server that will be serving the /metrics request for prometheus
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a server on the given port that responds only to the
// `/metrics` endpoint with the metrics gathered from g.
func NewServer(log zerolog.Logger, port uint, g prometheus.Gatherer) *Server {
	addr := ":" + strconv.Itoa(int(port))

	mux := http.NewServeMux()
	endpoint := "/metrics"
	mux.Handle(endpoint, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log.With().Str("component", "metrics").Str("address", addr).Str("endpoint", endpoint).Logger(),
	}
}

// Ready returns a channel that will close once the listener is bound. A
// bind failure is logged and the channel still closes.
func (m *Server) Ready() <-chan struct{} {
	ready := make(chan struct{})
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		m.log.Err(err).Msg("metrics server failed to listen")
		close(ready)
		return ready
	}
	m.log.Info().Msg("metrics server started")
	go func() {
		if err := m.server.Serve(ln); err != nil {
			// http.ErrServerClosed is returned when Close or Shutdown is called
			if errors.Is(err, http.ErrServerClosed) {
				m.log.Debug().Err(err).Msg("metrics server shutdown")
			} else {
				m.log.Err(err).Msg("metrics server stopped")
			}
		}
	}()
	close(ready)
	return ready
}

// Done returns a channel that will close when shutdown is complete.
func (m *Server) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = m.server.Shutdown(ctx)
		cancel()
		close(done)
	}()
	return done
}
