package config

import "sort"

// Presets are named airframes. Each one fixes the actuator count, the
// sensor set and the engine parameters.
var Presets = map[string]*Config{
	"quadx": {
		Airframe:     "quadx",
		NumActuators: intPtr(4),
		Sensors:      strPtr("imu,esc"),
		Engine:       DefaultEngine(),
	},
	"hexx": {
		Airframe:     "hexx",
		NumActuators: intPtr(6),
		Sensors:      strPtr("imu,esc"),
		Engine: func() EngineConfig {
			e := DefaultEngine()
			e.Mass = 1.6
			e.ArmLength = 0.275
			e.Inertia = [3]float64{0.016, 0.016, 0.028}
			e.ThrustCoeff = 3.4e-6
			e.TorqueCoeff = 5.5e-8
			e.MotorTau = 0.035
			e.MaxSpeed = 1400
			e.RateDamping = 0.006
			e.BatteryVoltage = 25.2
			return e
		}(),
	},
	"imu_only": {
		Airframe:     "imu_only",
		NumActuators: intPtr(4),
		Sensors:      strPtr("imu"),
		Engine:       DefaultEngine(),
	},
	"tumbling": {
		Airframe:     "tumbling",
		NumActuators: intPtr(4),
		Sensors:      strPtr("imu,esc"),
		Engine: func() EngineConfig {
			e := DefaultEngine()
			e.InitialRates = [3]float64{3, -2, 1}
			e.GyroNoiseStdDev = 0.002
			e.AccelNoiseStdDev = 0.05
			return e
		}(),
	},
}

// GetPreset returns a copy of the named preset applied over the defaults,
// or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.ApplyPreset(p)
	return cfg
}

// ApplyPreset copies the airframe settings of p into c.
func (c *Config) ApplyPreset(p *Config) {
	c.Airframe = p.Airframe
	if p.NumActuators != nil {
		c.SetNumActuators(*p.NumActuators)
	}
	if p.Sensors != nil {
		c.SetSensors(*p.Sensors)
	}
	c.Engine = p.Engine
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
