package agent

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/control"
	"github.com/san-kum/simbridge/internal/physics"
	"github.com/san-kum/simbridge/internal/sim"
	"github.com/san-kum/simbridge/internal/transport"
	"github.com/san-kum/simbridge/internal/wire"
)

// startBridge serves an in-process quadcopter on a loopback port.
func startBridge(t *testing.T, sensors bridge.SensorSet) (*Client, *physics.Multirotor) {
	t.Helper()
	log := zerolog.Nop()
	const motors = 4

	agg := bridge.NewAggregator(motors, log)
	model := physics.NewMultirotor(motors)
	engine, err := sim.NewEngine(model, sim.Options{Dt: 0.001, Sensors: sensors}, agg, log)
	require.NoError(t, err)

	tr := transport.NewUDP(log)
	require.NoError(t, tr.Bind("127.0.0.1", 0))

	ctrl := bridge.NewController(bridge.Options{
		NumActuators:  motors,
		Sensors:       sensors,
		SensorTimeout: time.Second,
		PollInterval:  10 * time.Millisecond,
	}, engine, tr, agg, log)

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Serve(ctx) })

	client, err := Dial(tr.LocalAddr().String(), Options{Timeout: time.Second}, log)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, g.Wait())
		_ = client.Close()
		_ = tr.Close()
		_ = engine.Close()
	})
	return client, model
}

func TestResetAndStep(t *testing.T) {
	client, _ := startBridge(t, bridge.SensorIMU|bridge.SensorESC)
	ctx := context.Background()

	s, err := client.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, s.Status)
	assert.Equal(t, 0.0, s.SimTime)
	for _, r := range s.ImuAngularVelocityRPY {
		assert.Less(t, math.Abs(r), bridge.QuiescentRate)
	}

	s, err = client.Step(ctx, []float64{0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, s.Status)
	assert.InDelta(t, 0.001, s.SimTime, 1e-12)
	assert.Len(t, s.EscMotorAngularVelocity, 4)
	assert.Greater(t, s.EscMotorAngularVelocity[0], 0.0)
}

func TestStepWithWrongMotorCountIsDropped(t *testing.T) {
	client, _ := startBridge(t, bridge.SensorIMU)
	client.opts = Options{Timeout: 50 * time.Millisecond, Retries: 0}

	_, err := client.Step(context.Background(), []float64{0.5, 0.5, 0.5})
	assert.True(t, errors.Is(err, ErrNoReply))

	// The bridge keeps serving.
	client.opts.Timeout = time.Second
	_, err = client.Step(context.Background(), []float64{0.5, 0.5, 0.5, 0.5})
	assert.NoError(t, err)
}

func TestRunEpisodeWithRateController(t *testing.T) {
	client, model := startBridge(t, bridge.SensorIMU|bridge.SensorESC)
	rc := control.NewRateController(control.DefaultRateGains(), control.NewMixer(4))
	hover := model.HoverCommand()

	observed := 0
	ep, err := Run(context.Background(), client, func(s wire.State) []float64 {
		return rc.Compute(s, hover)
	}, 50, func(int, wire.State) { observed++ })
	require.NoError(t, err)

	assert.Len(t, ep.States, 50)
	assert.Len(t, ep.Actions, 50)
	assert.Equal(t, 50, observed)
	assert.Zero(t, ep.Timeouts)
	assert.InDelta(t, 0.05, ep.States[49].SimTime, 1e-9)
	assert.Len(t, ep.Rates()[0], 50)
}

func TestNoReply(t *testing.T) {
	silent, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer silent.Close()

	client, err := Dial(silent.LocalAddr().String(), Options{Timeout: 20 * time.Millisecond, Retries: 1}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Reset(context.Background())
	assert.True(t, errors.Is(err, ErrNoReply))

	buf := make([]byte, 64)
	for i := 0; i < 2; i++ {
		require.NoError(t, silent.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := silent.ReadFromUDP(buf)
		require.NoError(t, err, "attempt %d was not sent", i+1)
	}
}

func TestContextCancelled(t *testing.T) {
	silent, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer silent.Close()

	client, err := Dial(silent.LocalAddr().String(), Options{Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Reset(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
