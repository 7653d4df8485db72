package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/simbridge/internal/dynamo"
)

const (
	DefaultGravity = 9.81

	// MinMotorTau keeps the motor lag well defined when a time constant of
	// zero is configured.
	MinMotorTau = 1e-4

	quatOffset  = 0
	rateOffset  = 4
	motorOffset = 7

	idleCurrent    = 0.2
	escEfficiency  = 0.8
	packResistance = 0.015
	thermalCoeff   = 0.05
)

// Motor is the position of one rotor in the body plane, as a unit vector
// from the center of mass, and its spin direction: +1 counter-clockwise
// seen from above, -1 clockwise.
type Motor struct {
	X, Y float64
	Dir  float64
}

// Layout spaces n motors evenly on a circle in an X arrangement, motor 0
// front-left, alternating spin directions.
func Layout(n int) []Motor {
	motors := make([]Motor, n)
	for i := range motors {
		a := math.Pi/float64(n) + 2*math.Pi*float64(i)/float64(n)
		dir := 1.0
		if i%2 == 1 {
			dir = -1
		}
		motors[i] = Motor{X: math.Cos(a), Y: math.Sin(a), Dir: dir}
	}
	return motors
}

type Multirotor struct {
	Mass, ArmLength          float64
	Inertia                  dynamo.Vec3
	ThrustCoeff, TorqueCoeff float64
	MotorTau, MaxSpeed       float64
	RateDamping              float64
	BatteryVoltage           float64
	AmbientTemp              float64
	Gravity                  float64

	motors []Motor
}

func NewMultirotor(numMotors int) *Multirotor {
	return &Multirotor{
		Mass:           0.8,
		ArmLength:      0.125,
		Inertia:        dynamo.Vec3{0.0035, 0.0035, 0.006},
		ThrustCoeff:    1.2e-6,
		TorqueCoeff:    1.6e-8,
		MotorTau:       0.02,
		MaxSpeed:       2800,
		RateDamping:    0.002,
		BatteryVoltage: 16.8,
		AmbientTemp:    25,
		Gravity:        DefaultGravity,
		motors:         Layout(numMotors),
	}
}

func (m *Multirotor) StateDim() int   { return motorOffset + len(m.motors) }
func (m *Multirotor) ControlDim() int { return len(m.motors) }

func (m *Multirotor) Motors() []Motor { return m.motors }

// InitialState is the level attitude with body rates w and motors stopped.
func (m *Multirotor) InitialState(w dynamo.Vec3) dynamo.State {
	x := make(dynamo.State, m.StateDim())
	copy(x[quatOffset:], dynamo.IdentityQuat[:])
	copy(x[rateOffset:], w[:])
	return x
}

// Derive maps motor commands in [0, 1] to rotor speed targets. Values
// outside the range are clamped.
func (m *Multirotor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, len(x))
	q := Attitude(x)
	w := Rates(x)

	var torque dynamo.Vec3
	tau := math.Max(m.MotorTau, MinMotorTau)
	for i, mot := range m.motors {
		speed := x[motorOffset+i]
		thrust := m.ThrustCoeff * speed * speed
		torque[0] += m.ArmLength * mot.Y * thrust
		torque[1] -= m.ArmLength * mot.X * thrust
		torque[2] -= mot.Dir * m.TorqueCoeff * speed * speed

		cmd := 0.0
		if i < len(u) && !math.IsNaN(u[i]) {
			cmd = math.Max(0, math.Min(1, u[i]))
		}
		dx[motorOffset+i] = (cmd*m.MaxSpeed - speed) / tau
	}

	// Euler's equations: I dw/dt = torque - w x (I w) - c w
	iw := dynamo.Vec3{m.Inertia[0] * w[0], m.Inertia[1] * w[1], m.Inertia[2] * w[2]}
	gyro := w.Cross(iw)
	for i := 0; i < 3; i++ {
		dx[rateOffset+i] = (torque[i] - gyro[i] - m.RateDamping*w[i]) / m.Inertia[i]
	}

	dq := q.Derivative(w)
	copy(dx[quatOffset:], dq[:])
	return dx
}

// Normalize renormalizes the attitude quaternion of x in place and clamps
// negative rotor speeds.
func (m *Multirotor) Normalize(x dynamo.State) {
	q := Attitude(x).Normalize()
	copy(x[quatOffset:], q[:])
	for i := motorOffset; i < len(x); i++ {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

func Attitude(x dynamo.State) dynamo.Quat {
	return dynamo.Quat{x[0], x[1], x[2], x[3]}
}

func Rates(x dynamo.State) dynamo.Vec3 {
	return dynamo.Vec3{x[rateOffset], x[rateOffset+1], x[rateOffset+2]}
}

func SetRates(x dynamo.State, w dynamo.Vec3) {
	copy(x[rateOffset:rateOffset+3], w[:])
}

func MotorSpeed(x dynamo.State, i int) float64 {
	return x[motorOffset+i]
}

// SpecificForce is what an accelerometer at the center of mass reads. The
// pivot holds the airframe still, so it is gravity's reaction expressed in
// the body frame.
func (m *Multirotor) SpecificForce(x dynamo.State) dynamo.Vec3 {
	return Attitude(x).Conj().Rotate(dynamo.Vec3{0, 0, m.Gravity})
}

// EscReading is the electrical state of one motor channel.
type EscReading struct {
	Speed, Temperature, Current, Voltage float64
}

// Esc models the readings of every ESC. Current follows shaft power; the
// pack voltage sags with the total draw.
func (m *Multirotor) Esc(x dynamo.State) []EscReading {
	out := make([]EscReading, len(m.motors))
	total := 0.0
	for i := range m.motors {
		speed := x[motorOffset+i]
		power := m.TorqueCoeff * speed * speed * speed
		current := idleCurrent
		if m.BatteryVoltage > 0 {
			current += power / (escEfficiency * m.BatteryVoltage)
		}
		out[i] = EscReading{
			Speed:       speed,
			Current:     current,
			Temperature: m.AmbientTemp + thermalCoeff*current*current,
		}
		total += current
	}
	voltage := math.Max(0, m.BatteryVoltage-packResistance*total)
	for i := range out {
		out[i].Voltage = voltage
	}
	return out
}

// HoverCommand is the uniform motor command whose thrust would carry the
// airframe's weight in free flight.
func (m *Multirotor) HoverCommand() float64 {
	n := float64(len(m.motors))
	if n == 0 || m.ThrustCoeff <= 0 || m.MaxSpeed <= 0 {
		return 0
	}
	return math.Sqrt(m.Mass*m.Gravity/(n*m.ThrustCoeff)) / m.MaxSpeed
}

func (m *Multirotor) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":            m.Mass,
		"arm_length":      m.ArmLength,
		"ixx":             m.Inertia[0],
		"iyy":             m.Inertia[1],
		"izz":             m.Inertia[2],
		"thrust_coeff":    m.ThrustCoeff,
		"torque_coeff":    m.TorqueCoeff,
		"motor_tau":       m.MotorTau,
		"max_speed":       m.MaxSpeed,
		"rate_damping":    m.RateDamping,
		"battery_voltage": m.BatteryVoltage,
		"ambient_temp":    m.AmbientTemp,
		"gravity":         m.Gravity,
	}
}

func (m *Multirotor) SetParam(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v", dynamo.ErrParameterBounds, name, value)
	}
	positive := func(dst *float64) error {
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", dynamo.ErrParameterBounds, name, value)
		}
		*dst = value
		return nil
	}
	nonNegative := func(dst *float64) error {
		if value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %v", dynamo.ErrParameterBounds, name, value)
		}
		*dst = value
		return nil
	}

	switch name {
	case "mass":
		return positive(&m.Mass)
	case "arm_length":
		return positive(&m.ArmLength)
	case "ixx":
		return positive(&m.Inertia[0])
	case "iyy":
		return positive(&m.Inertia[1])
	case "izz":
		return positive(&m.Inertia[2])
	case "thrust_coeff":
		return nonNegative(&m.ThrustCoeff)
	case "torque_coeff":
		return nonNegative(&m.TorqueCoeff)
	case "motor_tau":
		return nonNegative(&m.MotorTau)
	case "max_speed":
		return positive(&m.MaxSpeed)
	case "rate_damping":
		return nonNegative(&m.RateDamping)
	case "battery_voltage":
		return nonNegative(&m.BatteryVoltage)
	case "ambient_temp":
		m.AmbientTemp = value
	case "gravity":
		return nonNegative(&m.Gravity)
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
