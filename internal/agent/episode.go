package agent

import (
	"context"
	"fmt"

	"github.com/san-kum/simbridge/internal/wire"
)

// Policy chooses the motor command for the latest State.
type Policy func(s wire.State) []float64

// Episode is the outcome of Run.
type Episode struct {
	Reset   wire.State
	States  []wire.State
	Actions [][]float64
	// Timeouts counts replies flagged with a sensor timeout.
	Timeouts int
}

// Run resets the bridge and steps it steps times under policy. observe, if
// not nil, sees every State as it arrives.
func Run(ctx context.Context, c *Client, policy Policy, steps int, observe func(i int, s wire.State)) (*Episode, error) {
	s, err := c.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: reset: %w", err)
	}
	ep := &Episode{
		Reset:   s,
		States:  make([]wire.State, 0, steps),
		Actions: make([][]float64, 0, steps),
	}
	for i := 0; i < steps; i++ {
		u := policy(s)
		s, err = c.Step(ctx, u)
		if err != nil {
			return ep, fmt.Errorf("agent: step %d: %w", i, err)
		}
		ep.Actions = append(ep.Actions, u)
		ep.States = append(ep.States, s)
		if s.Status == wire.StatusSensorTimeout {
			ep.Timeouts++
		}
		if observe != nil {
			observe(i, s)
		}
	}
	return ep, nil
}

// Rates returns the per-axis body rate series of the episode.
func (e *Episode) Rates() [3][]float64 {
	var out [3][]float64
	for axis := range out {
		out[axis] = make([]float64, len(e.States))
		for i, s := range e.States {
			out[axis][i] = s.ImuAngularVelocityRPY[axis]
		}
	}
	return out
}
