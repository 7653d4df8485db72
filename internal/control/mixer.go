package control

import "github.com/san-kum/simbridge/internal/physics"

// Mixer distributes a throttle and roll, pitch and yaw demands over the
// motors of a physics.Layout airframe. Outputs are clamped to [0, 1].
type Mixer struct {
	motors []physics.Motor
}

func NewMixer(numMotors int) *Mixer {
	return &Mixer{motors: physics.Layout(numMotors)}
}

func (m *Mixer) NumMotors() int { return len(m.motors) }

func (m *Mixer) Mix(throttle, roll, pitch, yaw float64) []float64 {
	out := make([]float64, len(m.motors))
	for i, mot := range m.motors {
		out[i] = clamp(throttle+roll*mot.Y-pitch*mot.X-yaw*mot.Dir, 0, 1)
	}
	return out
}
