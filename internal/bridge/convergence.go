package bridge

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// QuiescentRate is the angular rate magnitude, in rad/s, below which all
// three axes must fall for the airframe to count as at rest. About 1°/s.
const QuiescentRate = 0.017

// minFlushSamples is the number of fresh angular rate samples required
// before convergence can be declared, so the active initial State or a
// single stale sample cannot end the loop.
const minFlushSamples = 2

// Flusher drives the simulation to a quiescent baseline after a reset.
// A reset alone does not guarantee that the next sensor sample reflects the
// reset pose, so it keeps stepping and resetting until the IMU reports rest.
type Flusher struct {
	sim      Simulation
	agg      *Aggregator
	imu      bool
	maxSteps int
	log      zerolog.Logger
}

// NewFlusher returns a Flusher. With maxSteps zero the loop is unbounded.
// Without an IMU there is nothing to measure and the loop runs exactly the
// minimum number of steps.
func NewFlusher(sim Simulation, agg *Aggregator, sensors SensorSet, maxSteps int, log zerolog.Logger) *Flusher {
	return &Flusher{
		sim:      sim,
		agg:      agg,
		imu:      sensors.Has(SensorIMU),
		maxSteps: maxSteps,
		log:      log.With().Str("component", "flusher").Logger(),
	}
}

// Flush resets the simulation and steps it until it has converged. It
// returns the number of steps taken. It reads the shared State directly
// rather than waiting on the barrier; a stale read only costs one more
// iteration.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	if err := f.sim.ResetSimulationTimeAndPose(); err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}
	_, start := f.agg.AngularRates()

	steps := 0
	for !f.converged(start, steps) {
		if f.maxSteps > 0 && steps >= f.maxSteps {
			rates, _ := f.agg.AngularRates()
			return steps, fmt.Errorf("%w: rates %v after %d steps", ErrNotConverged, rates, steps)
		}
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		if err := f.sim.StepSimulation(1); err != nil {
			return steps, fmt.Errorf("step: %w", err)
		}
		steps++
		if err := f.sim.ResetSimulationTimeAndPose(); err != nil {
			return steps, fmt.Errorf("reset: %w", err)
		}
	}
	f.log.Debug().Int("steps", steps).Msg("sensors flushed")
	return steps, nil
}

func (f *Flusher) converged(start uint64, steps int) bool {
	if !f.imu {
		return steps >= minFlushSamples
	}
	rates, samples := f.agg.AngularRates()
	if samples-start < minFlushSamples {
		return false
	}
	for _, r := range rates {
		if math.Abs(r) >= QuiescentRate {
			return false
		}
	}
	return true
}
