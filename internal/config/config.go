package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddress       = "127.0.0.1"
	DefaultPort          = 9002
	DefaultSensorTimeout = time.Second
	DefaultDt            = 0.001
	DefaultIntegrator    = "rk4"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"

	DefaultCommandPubTopic   = "/aircraft/command/motor"
	DefaultImuSubTopic       = "/aircraft/sensor/imu"
	DefaultEscSubTopicPrefix = "/aircraft/sensor/esc"

	// MaxActuators is the largest actuator count whose State still fits
	// in one datagram.
	MaxActuators = 28
)

// Environment variables read by ApplyEnv.
const (
	EnvPort             = "SITL_PORT"
	EnvNumMotors        = "NUM_MOTORS"
	EnvSupportedSensors = "SUPPORTED_SENSORS"
	EnvDigitalTwinSDF   = "DIGITAL_TWIN_SDF"
)

// ErrConfigurationMissing indicates a required setting was not provided by
// the file, the environment or the command line.
var ErrConfigurationMissing = errors.New("config: required setting missing")

type Config struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// Airframe names the preset the engine parameters came from.
	Airframe string `yaml:"airframe,omitempty"`
	// NumActuators and Sensors have no default; nil means unset.
	NumActuators  *int          `yaml:"num_actuators"`
	Sensors       *string       `yaml:"sensors"`
	SensorTimeout time.Duration `yaml:"sensor_timeout"`
	MaxFlushSteps int           `yaml:"max_flush_steps"`

	DigitalTwin DigitalTwinConfig `yaml:"digital_twin"`
	Engine      EngineConfig      `yaml:"engine"`
	Log         LogConfig         `yaml:"log"`

	RecordDir   string `yaml:"record_dir,omitempty"`
	MetricsPort int    `yaml:"metrics_port,omitempty"`
}

type DigitalTwinConfig struct {
	SDF               string `yaml:"sdf,omitempty"`
	RobotNamespace    string `yaml:"robot_namespace,omitempty"`
	CommandPubTopic   string `yaml:"command_pub_topic"`
	ImuSubTopic       string `yaml:"imu_sub_topic"`
	EscSubTopicPrefix string `yaml:"esc_sub_topic_prefix"`
}

// EngineConfig parameterizes the in-process multirotor engine.
type EngineConfig struct {
	Dt         float64 `yaml:"dt"`
	Integrator string  `yaml:"integrator"`
	Seed       int64   `yaml:"seed"`

	Mass        float64    `yaml:"mass"`
	ArmLength   float64    `yaml:"arm_length"`
	Inertia     [3]float64 `yaml:"inertia,flow"`
	ThrustCoeff float64    `yaml:"thrust_coeff"`
	TorqueCoeff float64    `yaml:"torque_coeff"`
	MotorTau    float64    `yaml:"motor_tau"`
	MaxSpeed    float64    `yaml:"max_speed"`
	RateDamping float64    `yaml:"rate_damping"`

	BatteryVoltage   float64 `yaml:"battery_voltage"`
	AmbientTemp      float64 `yaml:"ambient_temp"`
	GyroNoiseStdDev  float64 `yaml:"gyro_noise_stddev"`
	AccelNoiseStdDev float64 `yaml:"accel_noise_stddev"`

	// InitialRates is the body rate each episode starts from.
	InitialRates [3]float64 `yaml:"initial_rates,flow"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Address:       DefaultAddress,
		Port:          DefaultPort,
		SensorTimeout: DefaultSensorTimeout,
		DigitalTwin: DigitalTwinConfig{
			CommandPubTopic:   DefaultCommandPubTopic,
			ImuSubTopic:       DefaultImuSubTopic,
			EscSubTopicPrefix: DefaultEscSubTopicPrefix,
		},
		Engine: DefaultEngine(),
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// DefaultEngine describes a 250 mm class quadcopter.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		Dt:             DefaultDt,
		Integrator:     DefaultIntegrator,
		Mass:           0.8,
		ArmLength:      0.125,
		Inertia:        [3]float64{0.0035, 0.0035, 0.006},
		ThrustCoeff:    1.2e-6,
		TorqueCoeff:    1.6e-8,
		MotorTau:       0.02,
		MaxSpeed:       2800,
		RateDamping:    0.002,
		BatteryVoltage: 16.8,
		AmbientTemp:    25,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var result *multierror.Error
	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", EnvPort, err))
		} else {
			c.Port = port
		}
	}
	if v, ok := lookup(EnvNumMotors); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", EnvNumMotors, err))
		} else {
			c.NumActuators = &n
		}
	}
	if v, ok := lookup(EnvSupportedSensors); ok {
		c.Sensors = &v
	}
	if v, ok := lookup(EnvDigitalTwinSDF); ok {
		c.DigitalTwin.SDF = v
	}
	return result.ErrorOrNil()
}

// SetNumActuators and SetSensors record values given on the command line.
func (c *Config) SetNumActuators(n int) { c.NumActuators = &n }

func (c *Config) SetSensors(list string) { c.Sensors = &list }

// Actuators returns the configured actuator count, zero when unset.
func (c *Config) Actuators() int {
	if c.NumActuators == nil {
		return 0
	}
	return *c.NumActuators
}

// SensorList returns the configured sensor list, empty when unset.
func (c *Config) SensorList() string {
	if c.Sensors == nil {
		return ""
	}
	return *c.Sensors
}

// Validate reports every problem at once. Missing required settings wrap
// ErrConfigurationMissing.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.NumActuators == nil {
		result = multierror.Append(result, fmt.Errorf("%w: num_actuators (%s)", ErrConfigurationMissing, EnvNumMotors))
	} else if n := *c.NumActuators; n < 0 || n > MaxActuators {
		result = multierror.Append(result, fmt.Errorf("config: num_actuators %d out of range [0, %d]", n, MaxActuators))
	}
	if c.Sensors == nil {
		result = multierror.Append(result, fmt.Errorf("%w: sensors (%s)", ErrConfigurationMissing, EnvSupportedSensors))
	} else {
		for _, name := range strings.Split(*c.Sensors, ",") {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "", "imu", "esc":
			default:
				result = multierror.Append(result, fmt.Errorf("config: unknown sensor %q", name))
			}
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("config: port %d out of range", c.Port))
	}
	if c.SensorTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("config: negative sensor_timeout %v", c.SensorTimeout))
	}
	if c.MaxFlushSteps < 0 {
		result = multierror.Append(result, fmt.Errorf("config: negative max_flush_steps %d", c.MaxFlushSteps))
	}
	if c.Engine.Dt <= 0 {
		result = multierror.Append(result, fmt.Errorf("config: engine.dt must be positive"))
	}
	if c.Engine.Mass <= 0 {
		result = multierror.Append(result, fmt.Errorf("config: engine.mass must be positive"))
	}
	for i, j := range c.Engine.Inertia {
		if j <= 0 {
			result = multierror.Append(result, fmt.Errorf("config: engine.inertia[%d] must be positive", i))
		}
	}
	if c.Engine.MotorTau < 0 {
		result = multierror.Append(result, fmt.Errorf("config: negative engine.motor_tau"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("config: metrics_port %d out of range", c.MetricsPort))
	}
	return result.ErrorOrNil()
}
