package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/simbridge/internal/wire"
)

func TestBridgeCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	bc := NewBridgeCollector(reg)

	bc.TickCompleted(2*time.Millisecond, wire.StatusOK)
	bc.TickCompleted(time.Millisecond, wire.StatusOK)
	bc.TickCompleted(time.Second, wire.StatusSensorTimeout)
	bc.ResetCompleted(3, time.Millisecond, wire.StatusOK)
	bc.DatagramDropped("malformed")
	bc.OnTick(wire.Action{}, wire.State{SimTime: 0.25})

	assert.Equal(t, 2.0, testutil.ToFloat64(bc.ticks.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(bc.ticks.WithLabelValues("SENSOR_TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(bc.resets.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(bc.dropped.WithLabelValues("malformed")))
	assert.Equal(t, 0.25, testutil.ToFloat64(bc.lastSimTime))
}

func TestServerExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	bc := NewBridgeCollector(reg)
	bc.DatagramDropped("send")

	srv := NewServer(zerolog.Nop(), 0, reg)
	<-srv.Ready()
	defer func() { <-srv.Done() }()

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `simbridge_dropped_datagrams_total{reason="send"} 1`)
}
