package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.Address)
	assert.Equal(t, 9002, cfg.Port)
	assert.Equal(t, time.Second, cfg.SensorTimeout)
	assert.Nil(t, cfg.NumActuators)
	assert.Nil(t, cfg.Sensors)
	assert.Greater(t, cfg.Engine.Dt, 0.0)
}

func TestValidateListsEveryMissingSetting(t *testing.T) {
	err := DefaultConfig().Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMissing))

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), "num_actuators")
	assert.Contains(t, err.Error(), "sensors")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty sensor set", func(c *Config) { c.SetSensors("") }, ""},
		{"too many actuators", func(c *Config) { c.SetNumActuators(MaxActuators + 1) }, "out of range"},
		{"negative actuators", func(c *Config) { c.SetNumActuators(-1) }, "out of range"},
		{"unknown sensor", func(c *Config) { c.SetSensors("imu,gps") }, "gps"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port"},
		{"negative timeout", func(c *Config) { c.SensorTimeout = -time.Second }, "sensor_timeout"},
		{"zero dt", func(c *Config) { c.Engine.Dt = 0 }, "engine.dt"},
		{"zero inertia", func(c *Config) { c.Engine.Inertia[2] = 0 }, "inertia[2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SetNumActuators(4)
			cfg.SetSensors("imu,esc")
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvPort:             "9010",
		EnvNumMotors:        "6",
		EnvSupportedSensors: "IMU,Esc",
		EnvDigitalTwinSDF:   "/models/iris.sdf",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9010, cfg.Port)
	assert.Equal(t, 6, cfg.Actuators())
	assert.Equal(t, "IMU,Esc", cfg.SensorList())
	assert.Equal(t, "/models/iris.sdf", cfg.DigitalTwin.SDF)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvPort:      "ninety",
		EnvNumMotors: "four",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvPort)
	assert.Contains(t, err.Error(), EnvNumMotors)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Nil(t, cfg.NumActuators)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	cfg := GetPreset("hexx")
	require.NotNil(t, cfg)
	cfg.SensorTimeout = 250 * time.Millisecond
	cfg.RecordDir = "episodes"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_actuators: 4\nsensors: imu\nsensor_timeout: 50ms\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Actuators())
	assert.Equal(t, "imu", cfg.SensorList())
	assert.Equal(t, 50*time.Millisecond, cfg.SensorTimeout)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultImuSubTopic, cfg.DigitalTwin.ImuSubTopic)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("quadx")
	require.NotNil(t, cfg)
	assert.Equal(t, 4, cfg.Actuators())
	assert.Equal(t, "imu,esc", cfg.SensorList())
	assert.NoError(t, cfg.Validate())

	// Presets are copied, not shared.
	cfg.SetNumActuators(8)
	assert.Equal(t, 4, GetPreset("quadx").Actuators())
}

func TestGetPreset_NotFound(t *testing.T) {
	assert.Nil(t, GetPreset("octo"))
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	assert.Equal(t, []string{"hexx", "imu_only", "quadx", "tumbling"}, names)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, GetPreset(name).Validate())
		})
	}
}
