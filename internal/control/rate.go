package control

import (
	"fmt"
	"strings"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/wire"
)

var axisNames = [3]string{"roll", "pitch", "yaw"}

// RateGains are the PID gains shared by the roll and pitch axes, and those
// of the yaw axis.
type RateGains struct {
	RollPitch [3]float64 // kp, ki, kd
	Yaw       [3]float64
}

func DefaultRateGains() RateGains {
	return RateGains{
		RollPitch: [3]float64{0.08, 0.02, 0.0005},
		Yaw:       [3]float64{0.2, 0.05, 0},
	}
}

var _ dynamo.Configurable = (*RateController)(nil)

// RateController tracks body rate setpoints, the inner loop of an acro
// flight controller.
type RateController struct {
	axes  [3]*PID
	mixer *Mixer
}

func NewRateController(g RateGains, mixer *Mixer) *RateController {
	rc := &RateController{mixer: mixer}
	for i := 0; i < 2; i++ {
		rc.axes[i] = NewPID(g.RollPitch[0], g.RollPitch[1], g.RollPitch[2], 0)
		rc.axes[i].Limit = 5
	}
	rc.axes[2] = NewPID(g.Yaw[0], g.Yaw[1], g.Yaw[2], 0)
	rc.axes[2].Limit = 5
	return rc
}

// SetSetpoint sets the target roll, pitch and yaw rates in rad/s.
func (rc *RateController) SetSetpoint(roll, pitch, yaw float64) {
	rc.axes[0].Target = roll
	rc.axes[1].Target = pitch
	rc.axes[2].Target = yaw
}

// Axis exposes one axis controller for tuning: 0 roll, 1 pitch, 2 yaw.
func (rc *RateController) Axis(i int) *PID { return rc.axes[i] }

// Compute returns motor commands for the measured State.
func (rc *RateController) Compute(s wire.State, throttle float64) []float64 {
	var out [3]float64
	for i, pid := range rc.axes {
		out[i] = pid.Update(s.ImuAngularVelocityRPY[i], s.SimTime)
	}
	return rc.mixer.Mix(throttle, out[0], out[1], out[2])
}

// Reset clears the controller state, as when a new episode starts.
func (rc *RateController) Reset() {
	for _, pid := range rc.axes {
		pid.Reset()
	}
}

// GetParams returns the gains of every axis as axis.Kp, axis.Ki and axis.Kd.
func (rc *RateController) GetParams() map[string]float64 {
	out := make(map[string]float64, 9)
	for i, pid := range rc.axes {
		for _, g := range []string{"Kp", "Ki", "Kd"} {
			out[axisNames[i]+"."+g] = pid.GetParams()[g]
		}
	}
	return out
}

// SetParam sets one gain, named like roll.Kp.
func (rc *RateController) SetParam(name string, value float64) error {
	axis, gain, ok := strings.Cut(name, ".")
	if !ok || gain == "Target" {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	for i, n := range axisNames {
		if n == axis {
			return rc.axes[i].SetParam(gain, value)
		}
	}
	return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
}
