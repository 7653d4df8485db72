package control

import (
	"fmt"

	"github.com/san-kum/simbridge/internal/dynamo"
)

type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Target   float64
	Limit    float64 // integral clamp, zero for none
	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

var _ dynamo.Configurable = (*PID)(nil)

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		first:  true,
	}
}

// Update returns the control output for measurement x at time t.
func (p *PID) Update(x, t float64) float64 {
	err := p.Target - x

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		return p.Kp * err
	}

	dt := t - p.prevT
	if dt <= 0 {
		return p.Kp*err + p.Ki*p.integral
	}
	p.integral += err * dt
	if p.Limit > 0 {
		p.integral = clamp(p.integral, -p.Limit, p.Limit)
	}
	derivative := (err - p.prevErr) / dt

	p.prevErr = err
	p.prevT = t
	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":     p.Kp,
		"Ki":     p.Ki,
		"Kd":     p.Kd,
		"Target": p.Target,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Target":
		p.Target = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
