package control

// Manual holds keyboard-driven setpoints: a throttle in [0, 1] and body
// rate demands in rad/s.
type Manual struct {
	Throttle float64
	Rates    [3]float64

	MaxRate      float64
	RateStep     float64
	ThrottleStep float64
}

func NewManual(throttle float64) *Manual {
	return &Manual{
		Throttle:     throttle,
		MaxRate:      6,
		RateStep:     0.5,
		ThrottleStep: 0.02,
	}
}

// Nudge moves axis 0 roll, 1 pitch or 2 yaw by dir rate steps.
func (m *Manual) Nudge(axis int, dir float64) {
	m.Rates[axis] = clamp(m.Rates[axis]+dir*m.RateStep, -m.MaxRate, m.MaxRate)
}

func (m *Manual) NudgeThrottle(dir float64) {
	m.Throttle = clamp(m.Throttle+dir*m.ThrottleStep, 0, 1)
}

// Center zeroes the rate demands.
func (m *Manual) Center() {
	m.Rates = [3]float64{}
}

// Apply copies the setpoints into rc.
func (m *Manual) Apply(rc *RateController) {
	rc.SetSetpoint(m.Rates[0], m.Rates[1], m.Rates[2])
}
