package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/simbridge/internal/agent"
	"github.com/san-kum/simbridge/internal/config"
)

var (
	configFile string
	preset     string
	logLevel   string
	logFormat  string
	dataDir    string

	// serve
	address       string
	port          int
	numMotors     int
	sensors       string
	sensorTimeout time.Duration
	maxFlush      int
	dt            float64
	integrator    string
	seed          int64
	recordDir     string
	metricsPort   int
	params        []string

	// agent commands
	bridgeAddr string
	timeout    time.Duration
	retries    int
	steps      int
	throttle   float64
	motors     int
	gains      []string

	plotOut string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "simbridge",
		Short:         "lockstep UDP bridge between a control agent and a multirotor simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "airframe preset")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".simbridge", "episode directory")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the bridge on UDP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&address, "address", config.DefaultAddress, "bind address")
	serveCmd.Flags().IntVar(&port, "port", config.DefaultPort, "bind port")
	serveCmd.Flags().IntVar(&numMotors, "motors", 0, "number of actuators")
	serveCmd.Flags().StringVar(&sensors, "sensors", "", "comma separated sensors (imu, esc)")
	serveCmd.Flags().DurationVar(&sensorTimeout, "sensor-timeout", config.DefaultSensorTimeout, "bound on the wait for sensor callbacks, 0 waits forever")
	serveCmd.Flags().IntVar(&maxFlush, "max-flush-steps", 0, "bound on reset flush steps, 0 is unbounded")
	serveCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "engine timestep")
	serveCmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "engine integrator")
	serveCmd.Flags().Int64Var(&seed, "seed", 0, "sensor noise seed")
	serveCmd.Flags().StringVar(&recordDir, "record", "", "record episodes into this directory")
	serveCmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "prometheus port, 0 disables")
	serveCmd.Flags().StringArrayVar(&params, "param", nil, "airframe parameter override name=value, repeatable")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "reset a bridge, hold a hover and print what came back",
		Args:  cobra.NoArgs,
		RunE:  runProbe,
	}
	probeCmd.Flags().IntVar(&steps, "steps", 500, "steps after the reset")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "fly a bridge from the keyboard",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}

	for _, c := range []*cobra.Command{probeCmd, tuiCmd} {
		c.Flags().StringVar(&bridgeAddr, "bridge", fmt.Sprintf("%s:%d", config.DefaultAddress, config.DefaultPort), "bridge address")
		c.Flags().DurationVar(&timeout, "timeout", agent.DefaultOptions().Timeout, "reply timeout")
		c.Flags().IntVar(&retries, "retries", agent.DefaultOptions().Retries, "resends after a timeout")
		c.Flags().Float64Var(&throttle, "throttle", 0, "collective throttle, 0 is hover")
		c.Flags().IntVar(&motors, "motors", 0, "motor count, 0 reads it from the first State")
		c.Flags().StringArrayVar(&gains, "gain", nil, "rate controller gain override like roll.Kp=0.1, repeatable")
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded episodes",
		Args:  cobra.NoArgs,
		RunE:  listEpisodes,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [episode_id]",
		Short: "plot the body rates of an episode",
		Args:  cobra.ExactArgs(1),
		RunE:  plotEpisode,
	}
	plotCmd.Flags().StringVar(&plotOut, "out", "", "also save the plot as .png, .svg or .pdf")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [episode_id]",
		Short: "export an episode to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list airframe presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(serveCmd, probeCmd, tuiCmd, listCmd, plotCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "simbridge:", err)
		os.Exit(1)
	}
}
