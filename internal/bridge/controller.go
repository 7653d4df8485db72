package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/wire"
)

// DefaultPollInterval bounds each receive so the loop notices cancellation
// without spinning on an idle socket.
const DefaultPollInterval = 100 * time.Millisecond

// Options configure a Controller. They are fixed for its lifetime.
type Options struct {
	NumActuators int
	Sensors      SensorSet
	// SensorTimeout bounds the wait for one tick's sensor updates. Zero
	// waits forever.
	SensorTimeout time.Duration
	// MaxFlushSteps bounds the reset convergence loop. Zero is unbounded.
	MaxFlushSteps int
	PollInterval  time.Duration
}

// Controller is the bridge main loop: one Action in, one State out.
type Controller struct {
	opts      Options
	expected  int
	sim       Simulation
	transport Transport
	agg       *Aggregator
	flusher   *Flusher
	metrics   Metrics
	observers []TickObserver
	log       zerolog.Logger

	action   wire.Action
	ticks    uint64
	episodes uint64
	// stale is set when the last tick timed out with samples still owed.
	stale bool
}

// NewController wires a Controller. agg must be the SensorSink the
// simulation delivers samples to.
func NewController(opts Options, sim Simulation, tr Transport, agg *Aggregator, log zerolog.Logger) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Controller{
		opts:      opts,
		expected:  opts.Sensors.ExpectedCallbacks(opts.NumActuators),
		sim:       sim,
		transport: tr,
		agg:       agg,
		flusher:   NewFlusher(sim, agg, opts.Sensors, opts.MaxFlushSteps, log),
		metrics:   nopMetrics{},
		log:       log.With().Str("component", "controller").Logger(),
	}
}

func (c *Controller) AddObserver(o TickObserver) { c.observers = append(c.observers, o) }

func (c *Controller) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	c.metrics = m
}

// ExpectedCallbacks is the number of sensor updates awaited per tick.
func (c *Controller) ExpectedCallbacks() int { return c.expected }

// Action returns a copy of the last accepted Action.
func (c *Controller) Action() wire.Action { return c.action.Clone() }

// Ticks is the number of STEP actions executed.
func (c *Controller) Ticks() uint64 { return c.ticks }

// Episodes is the number of RESET actions executed.
func (c *Controller) Episodes() uint64 { return c.episodes }

// Serve answers actions until ctx is cancelled or a fatal error occurs.
// Malformed datagrams and failed replies are logged and dropped.
func (c *Controller) Serve(ctx context.Context) error {
	c.log.Info().
		Int("num_actuators", c.opts.NumActuators).
		Str("sensors", c.opts.Sensors.String()).
		Int("expected_callbacks", c.expected).
		Dur("sensor_timeout", c.opts.SensorTimeout).
		Msg("awaiting actions")

	for {
		if ctx.Err() != nil {
			return nil
		}
		data, ok, err := c.transport.Receive(c.opts.PollInterval)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			c.log.Warn().Err(err).Msg("receive failed")
			c.metrics.DatagramDropped("receive")
			continue
		}
		if !ok {
			continue
		}

		err = c.Handle(ctx, data)
		switch {
		case err == nil:
		case errors.Is(err, ErrMalformedMessage):
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping action")
			c.metrics.DatagramDropped("malformed")
		case errors.Is(err, ErrReplyFailed):
			c.log.Warn().Err(err).Msg("dropping state")
			c.metrics.DatagramDropped("send")
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// Handle processes one datagram. A malformed datagram, or a STEP whose motor
// vector does not match the actuator count or holds a non-finite value,
// leaves the held Action untouched and does not touch the simulation.
func (c *Controller) Handle(ctx context.Context, data []byte) error {
	action, err := wire.DecodeAction(data)
	if err != nil {
		return err
	}
	if action.Control == wire.ControlStep && len(action.Motor) != c.opts.NumActuators {
		return fmt.Errorf("%w: %d motor values, want %d", ErrMalformedMessage, len(action.Motor), c.opts.NumActuators)
	}
	for i, v := range action.Motor {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: motor %d is %v", ErrMalformedMessage, i, v)
		}
	}
	c.action = action

	if action.Control == wire.ControlReset {
		return c.reset(ctx)
	}
	return c.step(ctx)
}

func (c *Controller) reset(ctx context.Context) error {
	start := time.Now()
	steps, err := c.flusher.Flush(ctx)
	status := wire.StatusOK
	if err != nil {
		if !errors.Is(err, ErrNotConverged) {
			return &TickError{Tick: c.ticks, Phase: "reset", Err: err}
		}
		c.log.Warn().Err(err).Msg("reporting unsettled reset")
		status = wire.StatusFlushIncomplete
	}
	c.episodes++

	c.agg.Stamp(c.sim.SimTime(), status)
	state := c.agg.Snapshot()
	for _, o := range c.observers {
		o.OnReset(state)
	}
	c.metrics.ResetCompleted(steps, time.Since(start), status)
	c.log.Debug().Uint64("episode", c.episodes).Int("flush_steps", steps).Str("status", status.String()).Msg("reset")
	return c.reply(state)
}

func (c *Controller) step(ctx context.Context) error {
	start := time.Now()
	c.ticks++

	if c.stale {
		if d, ok := c.sim.(Drainer); ok {
			if err := d.Drain(ctx); err != nil {
				return err
			}
		}
		c.stale = false
	}
	c.agg.BeginTick(c.expected)
	if err := c.sim.PublishActuatorCommand(c.action.Motor); err != nil {
		return &TickError{Tick: c.ticks, Phase: "publish", Err: err}
	}
	if err := c.sim.StepSimulation(1); err != nil {
		return &TickError{Tick: c.ticks, Phase: "step", Err: err}
	}

	status := wire.StatusOK
	if err := c.agg.AwaitTick(ctx, c.opts.SensorTimeout); err != nil {
		if !errors.Is(err, ErrSensorTimeout) {
			return err
		}
		c.log.Warn().Err(err).Uint64("tick", c.ticks).Msg("reporting degraded state")
		status = wire.StatusSensorTimeout
		c.stale = true
	}
	if err := c.agg.Fault(); err != nil {
		return &TickError{Tick: c.ticks, Phase: "sensors", Err: err}
	}

	c.agg.Stamp(c.sim.SimTime(), status)
	state := c.agg.Snapshot()
	for _, o := range c.observers {
		o.OnTick(c.action, state)
	}
	c.metrics.TickCompleted(time.Since(start), status)
	return c.reply(state)
}

func (c *Controller) reply(state wire.State) error {
	b, err := wire.EncodeState(state)
	if err != nil {
		return fmt.Errorf("bridge: encode state: %w", err)
	}
	if err := c.transport.Send(b); err != nil {
		return fmt.Errorf("%w: %v", ErrReplyFailed, err)
	}
	return nil
}
