package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrMalformedMessage indicates bytes that do not decode to a valid message.
	ErrMalformedMessage = errors.New("wire: malformed message")

	// ErrMessageTooLarge indicates an encoded message above MaxDatagramSize.
	ErrMessageTooLarge = errors.New("wire: message exceeds datagram size")
)

const (
	actionMotor        protowire.Number = 1
	actionWorldControl protowire.Number = 2
)

const (
	stateSimTime protowire.Number = iota + 1
	stateImuAngularVelocity
	stateImuOrientation
	stateImuLinearAcceleration
	stateEscMotorSpeed
	stateEscTemperature
	stateEscCurrent
	stateEscVoltage
	stateStatusCode
)

// EncodeAction serializes a.
func EncodeAction(a Action) ([]byte, error) {
	if !a.Control.valid() {
		return nil, fmt.Errorf("%w: unknown control %d", ErrMalformedMessage, a.Control)
	}
	var b []byte
	b = appendPackedDoubles(b, actionMotor, a.Motor)
	b = appendEnum(b, actionWorldControl, int32(a.Control))
	return checkSize(b)
}

// DecodeAction parses an Action. Any failure wraps ErrMalformedMessage and
// leaves no partially decoded result behind.
func DecodeAction(b []byte) (Action, error) {
	var a Action
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case actionMotor:
			vals, n, err := consumeDoubles(typ, b)
			if err != nil {
				return 0, err
			}
			a.Motor = append(a.Motor, vals...)
			return n, nil
		case actionWorldControl:
			v, n, err := consumeEnum(typ, b)
			if err != nil {
				return 0, err
			}
			a.Control = Control(v)
			if !a.Control.valid() {
				return 0, fmt.Errorf("unknown control %d", v)
			}
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return Action{}, err
	}
	return a, nil
}

// EncodeState serializes s. It fails rather than truncates when the result
// would not fit in one datagram.
func EncodeState(s State) ([]byte, error) {
	if !s.Status.valid() {
		return nil, fmt.Errorf("%w: unknown status %d", ErrMalformedMessage, s.Status)
	}
	var b []byte
	if bits := math.Float64bits(s.SimTime); bits != 0 {
		b = protowire.AppendTag(b, stateSimTime, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, bits)
	}
	b = appendPackedDoubles(b, stateImuAngularVelocity, s.ImuAngularVelocityRPY[:])
	b = appendPackedDoubles(b, stateImuOrientation, s.ImuOrientationQuat[:])
	b = appendPackedDoubles(b, stateImuLinearAcceleration, s.ImuLinearAccelerationXYZ[:])
	b = appendPackedDoubles(b, stateEscMotorSpeed, s.EscMotorAngularVelocity)
	b = appendPackedDoubles(b, stateEscTemperature, s.EscTemperature)
	b = appendPackedDoubles(b, stateEscCurrent, s.EscCurrent)
	b = appendPackedDoubles(b, stateEscVoltage, s.EscVoltage)
	b = appendEnum(b, stateStatusCode, int32(s.Status))
	return checkSize(b)
}

// DecodeState parses a State. IMU fields must carry exactly 3, 4 and 3
// values when present; ESC fields must agree in length.
func DecodeState(b []byte) (State, error) {
	var s State
	var rates, quat, accel []float64
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *[]float64
		switch num {
		case stateSimTime:
			if typ != protowire.Fixed64Type {
				return 0, fmt.Errorf("field %d: wire type %d", num, typ)
			}
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			s.SimTime = math.Float64frombits(v)
			return n, nil
		case stateStatusCode:
			v, n, err := consumeEnum(typ, b)
			if err != nil {
				return 0, err
			}
			s.Status = StatusCode(v)
			if !s.Status.valid() {
				return 0, fmt.Errorf("unknown status %d", v)
			}
			return n, nil
		case stateImuAngularVelocity:
			dst = &rates
		case stateImuOrientation:
			dst = &quat
		case stateImuLinearAcceleration:
			dst = &accel
		case stateEscMotorSpeed:
			dst = &s.EscMotorAngularVelocity
		case stateEscTemperature:
			dst = &s.EscTemperature
		case stateEscCurrent:
			dst = &s.EscCurrent
		case stateEscVoltage:
			dst = &s.EscVoltage
		default:
			return skipField(num, typ, b)
		}
		vals, n, err := consumeDoubles(typ, b)
		if err != nil {
			return 0, err
		}
		*dst = append(*dst, vals...)
		return n, nil
	})
	if err != nil {
		return State{}, err
	}

	if err := fillFixed(s.ImuAngularVelocityRPY[:], rates, "imu_angular_velocity_rpy"); err != nil {
		return State{}, err
	}
	if err := fillFixed(s.ImuOrientationQuat[:], quat, "imu_orientation_quat"); err != nil {
		return State{}, err
	}
	if err := fillFixed(s.ImuLinearAccelerationXYZ[:], accel, "imu_linear_acceleration_xyz"); err != nil {
		return State{}, err
	}
	n := len(s.EscMotorAngularVelocity)
	if len(s.EscTemperature) != n || len(s.EscCurrent) != n || len(s.EscVoltage) != n {
		return State{}, fmt.Errorf("%w: esc fields disagree in length", ErrMalformedMessage)
	}
	return s, nil
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		b = b[m:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

func appendPackedDoubles(b []byte, num protowire.Number, vals []float64) []byte {
	if len(vals) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(len(vals)*8))
	for _, v := range vals {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func appendEnum(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// consumeDoubles reads one occurrence of a repeated double field in either
// packed or unpacked form.
func consumeDoubles(typ protowire.Type, b []byte) ([]float64, int, error) {
	switch typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return []float64{math.Float64frombits(v)}, n, nil
	case protowire.BytesType:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		if len(raw)%8 != 0 {
			return nil, 0, fmt.Errorf("packed doubles: %d trailing bytes", len(raw)%8)
		}
		vals := make([]float64, 0, len(raw)/8)
		for len(raw) > 0 {
			v, m := protowire.ConsumeFixed64(raw)
			if m < 0 {
				return nil, 0, protowire.ParseError(m)
			}
			vals = append(vals, math.Float64frombits(v))
			raw = raw[m:]
		}
		return vals, n, nil
	default:
		return nil, 0, fmt.Errorf("repeated double: wire type %d", typ)
	}
}

func consumeEnum(typ protowire.Type, b []byte) (int32, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("enum: wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return int32(v), n, nil
}

func fillFixed(dst, src []float64, name string) error {
	if len(src) == 0 {
		return nil
	}
	if len(src) != len(dst) {
		return fmt.Errorf("%w: %s has %d values, want %d", ErrMalformedMessage, name, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

func checkSize(b []byte) ([]byte, error) {
	if len(b) > MaxDatagramSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, len(b), MaxDatagramSize)
	}
	return b, nil
}
