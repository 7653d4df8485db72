package bridge

import (
	"fmt"
	"strings"
)

// SensorSet is the set of sensor kinds the simulation reports each tick.
type SensorSet uint8

const (
	SensorIMU SensorSet = 1 << iota
	SensorESC
)

// ParseSensors parses a comma separated, case-insensitive list such as
// "imu,esc". Empty entries are ignored.
func ParseSensors(list string) (SensorSet, error) {
	return ParseSensorNames(strings.Split(list, ","))
}

// ParseSensorNames parses sensor names one per element.
func ParseSensorNames(names []string) (SensorSet, error) {
	var set SensorSet
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
		case "imu":
			set |= SensorIMU
		case "esc":
			set |= SensorESC
		default:
			return 0, fmt.Errorf("bridge: unknown sensor %q", name)
		}
	}
	return set, nil
}

func (s SensorSet) Has(kind SensorSet) bool { return s&kind == kind }

// ExpectedCallbacks is the number of sensor updates one tick produces: one
// IMU sample and one ESC sample per actuator.
func (s SensorSet) ExpectedCallbacks(numActuators int) int {
	n := 0
	if s.Has(SensorIMU) {
		n++
	}
	if s.Has(SensorESC) {
		n += numActuators
	}
	return n
}

func (s SensorSet) String() string {
	var names []string
	if s.Has(SensorIMU) {
		names = append(names, "imu")
	}
	if s.Has(SensorESC) {
		names = append(names, "esc")
	}
	return strings.Join(names, ",")
}

// ImuSample is one inertial reading in the body frame.
type ImuSample struct {
	AngularVelocity    [3]float64 // rad/s, roll pitch yaw
	Orientation        [4]float64 // w x y z
	LinearAcceleration [3]float64 // m/s²
}

// EscSample is one electronic speed controller reading.
type EscSample struct {
	ID          int
	Speed       float64 // rad/s
	Temperature float64 // °C
	Current     float64 // A
	Voltage     float64 // V
}

// SensorSink receives sensor samples from the simulation. Implementations
// must be safe to call from any goroutine and must return promptly.
type SensorSink interface {
	OnImuSample(ImuSample)
	OnEscSample(EscSample)
}
