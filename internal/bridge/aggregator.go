package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/wire"
)

// Aggregator is the per-tick sensor barrier and the owner of the shared
// State snapshot.
//
// The counter holds the negated number of updates still owed for the tick
// in flight. BeginTick arms it, every sensor sample increments it, and the
// tick is complete once it is non-negative. Extra samples only push it
// further past zero.
type Aggregator struct {
	mu       sync.Mutex
	owed     int
	done     chan struct{}
	released bool

	state      wire.State
	imuSamples uint64
	fault      error

	log zerolog.Logger
}

var _ SensorSink = (*Aggregator)(nil)

// NewAggregator returns an Aggregator holding the active initial State for
// numActuators ESC channels. Nothing is owed until the first BeginTick.
func NewAggregator(numActuators int, log zerolog.Logger) *Aggregator {
	a := &Aggregator{
		state: wire.NewActiveState(numActuators),
		done:  make(chan struct{}),
		log:   log.With().Str("component", "aggregator").Logger(),
	}
	a.releaseLocked()
	return a
}

// BeginTick arms the barrier for a tick that will produce expected
// updates. It must run before the simulation is stepped so no update of
// the new tick can be missed.
func (a *Aggregator) BeginTick(expected int) {
	if expected < 0 {
		expected = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.owed = -expected
	a.done = make(chan struct{})
	a.released = false
	if a.owed >= 0 {
		a.releaseLocked()
	}
}

// ReportUpdate counts one sensor update toward the tick in flight.
func (a *Aggregator) ReportUpdate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reportLocked()
}

func (a *Aggregator) reportLocked() {
	a.owed++
	if a.owed >= 0 {
		a.releaseLocked()
	}
}

func (a *Aggregator) releaseLocked() {
	if !a.released {
		a.released = true
		close(a.done)
	}
}

// Owed returns the number of updates still missing for the tick in flight,
// zero once it is complete.
func (a *Aggregator) Owed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owed >= 0 {
		return 0
	}
	return -a.owed
}

// AwaitTick blocks until the tick in flight is complete. With a positive
// timeout it gives up after that long and returns ErrSensorTimeout; with
// zero it waits indefinitely.
func (a *Aggregator) AwaitTick(ctx context.Context, timeout time.Duration) error {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		return nil
	case <-expired:
		select {
		case <-done:
			return nil
		default:
		}
		return fmt.Errorf("%w: %d updates missing after %v", ErrSensorTimeout, a.Owed(), timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnImuSample copies an IMU reading into the State and counts it.
func (a *Aggregator) OnImuSample(s ImuSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.ImuAngularVelocityRPY = s.AngularVelocity
	a.state.ImuOrientationQuat = s.Orientation
	a.state.ImuLinearAccelerationXYZ = s.LinearAcceleration
	a.imuSamples++
	a.reportLocked()
}

// OnEscSample copies an ESC reading into the State slot of its actuator and
// counts it. A sample for an unknown actuator is dropped and latched as a
// fault; the waiter is released so the controller can report it.
func (a *Aggregator) OnEscSample(s EscSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.state.EscMotorAngularVelocity)
	if s.ID < 0 || s.ID >= n {
		if a.fault == nil {
			a.fault = fmt.Errorf("%w: esc id %d, configured for %d actuators", ErrUnknownActuator, s.ID, n)
		}
		a.log.Error().Int("esc_id", s.ID).Int("num_actuators", n).Msg("dropping esc sample")
		a.releaseLocked()
		return
	}
	a.state.EscMotorAngularVelocity[s.ID] = s.Speed
	a.state.EscTemperature[s.ID] = s.Temperature
	a.state.EscCurrent[s.ID] = s.Current
	a.state.EscVoltage[s.ID] = s.Voltage
	a.reportLocked()
}

// Fault returns the first sensor configuration fault observed, if any.
func (a *Aggregator) Fault() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fault
}

// Stamp sets the simulation time and status of the State.
func (a *Aggregator) Stamp(simTime float64, status wire.StatusCode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.SimTime = simTime
	a.state.Status = status
}

// Snapshot returns a copy of the State.
func (a *Aggregator) Snapshot() wire.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// AngularRates returns the latest IMU angular rates together with the
// number of IMU samples received since construction.
func (a *Aggregator) AngularRates() ([3]float64, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.ImuAngularVelocityRPY, a.imuSamples
}
