package wire

import "fmt"

// MaxDatagramSize is the largest payload either side will send or accept.
const MaxDatagramSize = 1024

// Control selects what the bridge does with an Action.
type Control int32

const (
	ControlStep  Control = 0
	ControlReset Control = 1
)

func (c Control) String() string {
	switch c {
	case ControlStep:
		return "STEP"
	case ControlReset:
		return "RESET"
	default:
		return fmt.Sprintf("Control(%d)", int32(c))
	}
}

func (c Control) valid() bool {
	return c == ControlStep || c == ControlReset
}

// StatusCode qualifies the State returned for an Action.
type StatusCode int32

const (
	StatusOK StatusCode = 0
	// StatusSensorTimeout marks a tick reported before every expected
	// sensor update arrived.
	StatusSensorTimeout StatusCode = 1
	// StatusFlushIncomplete marks a reset whose convergence loop hit its
	// step bound before the airframe came to rest.
	StatusFlushIncomplete StatusCode = 2
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSensorTimeout:
		return "SENSOR_TIMEOUT"
	case StatusFlushIncomplete:
		return "FLUSH_INCOMPLETE"
	default:
		return fmt.Sprintf("StatusCode(%d)", int32(s))
	}
}

func (s StatusCode) valid() bool {
	return s >= StatusOK && s <= StatusFlushIncomplete
}

// Action is the agent's request for one control cycle.
type Action struct {
	Motor   []float64
	Control Control
}

// Clone returns a deep copy of a.
func (a Action) Clone() Action {
	c := Action{Control: a.Control}
	if a.Motor != nil {
		c.Motor = make([]float64, len(a.Motor))
		copy(c.Motor, a.Motor)
	}
	return c
}

// State is the bridge's reply to an Action.
type State struct {
	SimTime float64
	Status  StatusCode

	ImuAngularVelocityRPY    [3]float64
	ImuOrientationQuat       [4]float64
	ImuLinearAccelerationXYZ [3]float64

	EscMotorAngularVelocity []float64
	EscTemperature          []float64
	EscCurrent              []float64
	EscVoltage              []float64
}

// Values of the State an agent sees before the first sensor update. They
// describe an airframe in motion so the first reset cannot mistake the
// initial snapshot for a quiescent one.
const (
	ActiveAngularRate = 1.0
	ActiveLinearAccel = 0.0
	ActiveOrientation = 0.0
	ActiveMotorSpeed  = 100.0
	ActiveEscTemp     = 10000.0
	ActiveEscCurrent  = -1.0
	ActiveEscVoltage  = -1.0
)

// NewActiveState returns the initial State for an airframe with
// numActuators ESC channels.
func NewActiveState(numActuators int) State {
	s := State{
		EscMotorAngularVelocity: make([]float64, numActuators),
		EscTemperature:          make([]float64, numActuators),
		EscCurrent:              make([]float64, numActuators),
		EscVoltage:              make([]float64, numActuators),
	}
	for i := range s.ImuAngularVelocityRPY {
		s.ImuAngularVelocityRPY[i] = ActiveAngularRate
		s.ImuLinearAccelerationXYZ[i] = ActiveLinearAccel
	}
	for i := range s.ImuOrientationQuat {
		s.ImuOrientationQuat[i] = ActiveOrientation
	}
	for i := 0; i < numActuators; i++ {
		s.EscMotorAngularVelocity[i] = ActiveMotorSpeed
		s.EscTemperature[i] = ActiveEscTemp
		s.EscCurrent[i] = ActiveEscCurrent
		s.EscVoltage[i] = ActiveEscVoltage
	}
	return s
}

// NumActuators reports the number of ESC channels carried by s.
func (s State) NumActuators() int {
	return len(s.EscMotorAngularVelocity)
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.EscMotorAngularVelocity = cloneFloats(s.EscMotorAngularVelocity)
	c.EscTemperature = cloneFloats(s.EscTemperature)
	c.EscCurrent = cloneFloats(s.EscCurrent)
	c.EscVoltage = cloneFloats(s.EscVoltage)
	return c
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	c := make([]float64, len(v))
	copy(c, v)
	return c
}
