package metrics

import (
	"math"

	"github.com/san-kum/simbridge/internal/wire"
)

// EpisodeMetric summarizes the ticks of one episode.
type EpisodeMetric interface {
	Name() string
	Observe(action wire.Action, state wire.State)
	Value() float64
	Reset()
}

// DefaultEpisodeMetrics returns the metrics written to episode metadata.
func DefaultEpisodeMetrics(inertia [3]float64, quiescentRate float64) []EpisodeMetric {
	return []EpisodeMetric{
		NewControlEffort(),
		NewPeakRate(),
		NewSettled(quiescentRate),
		NewEnergy(inertia),
	}
}

// ControlEffort is the mean absolute motor command per tick.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(action wire.Action, _ wire.State) {
	for _, val := range action.Motor {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakRate is the largest absolute body rate seen on any axis.
type PeakRate struct {
	peak float64
}

func NewPeakRate() *PeakRate { return &PeakRate{} }

func (p *PeakRate) Name() string { return "peak_rate" }

func (p *PeakRate) Observe(_ wire.Action, s wire.State) {
	for _, r := range s.ImuAngularVelocityRPY {
		p.peak = math.Max(p.peak, math.Abs(r))
	}
}

func (p *PeakRate) Value() float64 { return p.peak }

func (p *PeakRate) Reset() { p.peak = 0 }

// Settled is the fraction of ticks whose body rates were all below the
// threshold.
type Settled struct {
	threshold float64
	settled   int
	samples   int
}

func NewSettled(threshold float64) *Settled {
	return &Settled{threshold: threshold}
}

func (s *Settled) Name() string { return "settled_fraction" }

func (s *Settled) Observe(_ wire.Action, st wire.State) {
	s.samples++
	for _, r := range st.ImuAngularVelocityRPY {
		if math.Abs(r) >= s.threshold {
			return
		}
	}
	s.settled++
}

func (s *Settled) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.settled) / float64(s.samples)
}

func (s *Settled) Reset() {
	s.settled = 0
	s.samples = 0
}

// Energy is the mean rotational kinetic energy of the airframe.
type Energy struct {
	inertia     [3]float64
	samples     int
	totalEnergy float64
}

func NewEnergy(inertia [3]float64) *Energy {
	return &Energy{inertia: inertia}
}

func (e *Energy) Name() string { return "rotational_energy" }

func (e *Energy) Observe(_ wire.Action, s wire.State) {
	ke := 0.0
	for i, w := range s.ImuAngularVelocityRPY {
		ke += 0.5 * e.inertia[i] * w * w
	}
	e.totalEnergy += ke
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}
