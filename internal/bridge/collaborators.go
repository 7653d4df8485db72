package bridge

import (
	"context"
	"time"

	"github.com/san-kum/simbridge/internal/wire"
)

// Simulation is the stepped engine the bridge drives. Only the Controller
// goroutine calls it.
type Simulation interface {
	// StepSimulation advances the engine by ticks, triggering sensor
	// samples that arrive asynchronously through the SensorSink.
	StepSimulation(ticks int) error
	// ResetSimulationTimeAndPose rewinds time and returns every entity to
	// its initial pose and velocity.
	ResetSimulationTimeAndPose() error
	// PublishActuatorCommand sets the command applied on the next step.
	PublishActuatorCommand(values []float64) error
	// SimTime is the current simulation time in seconds.
	SimTime() float64
}

// Drainer is implemented by simulations that can wait for the sensor samples
// they have already triggered. After a timed-out tick the Controller drains
// before arming the next barrier so late samples are not counted twice.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Transport carries datagrams to and from the agent.
type Transport interface {
	// Receive waits up to timeout for one datagram and reports false
	// when none arrived.
	Receive(timeout time.Duration) ([]byte, bool, error)
	// Send replies to the sender of the latest datagram.
	Send(b []byte) error
}

// TickObserver is notified with every State the Controller sends.
type TickObserver interface {
	OnReset(state wire.State)
	OnTick(action wire.Action, state wire.State)
}

// Metrics records Controller events.
type Metrics interface {
	TickCompleted(latency time.Duration, status wire.StatusCode)
	ResetCompleted(steps int, latency time.Duration, status wire.StatusCode)
	DatagramDropped(reason string)
}

type nopMetrics struct{}

func (nopMetrics) TickCompleted(time.Duration, wire.StatusCode)      {}
func (nopMetrics) ResetCompleted(int, time.Duration, wire.StatusCode) {}
func (nopMetrics) DatagramDropped(string)                            {}
