package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/metrics"
	"github.com/san-kum/simbridge/internal/sim"
	"github.com/san-kum/simbridge/internal/storage"
	"github.com/san-kum/simbridge/internal/transport"
)

// loadConfig layers the config file, the preset, the environment and the
// flags that were set, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	}
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.ApplyPreset(p)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Lookup("address") == nil {
		return cfg, nil
	}
	if flags.Changed("address") {
		cfg.Address = address
	}
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("motors") {
		cfg.SetNumActuators(numMotors)
	}
	if flags.Changed("sensors") {
		cfg.SetSensors(sensors)
	}
	if flags.Changed("sensor-timeout") {
		cfg.SensorTimeout = sensorTimeout
	}
	if flags.Changed("max-flush-steps") {
		cfg.MaxFlushSteps = maxFlush
	}
	if flags.Changed("dt") {
		cfg.Engine.Dt = dt
	}
	if flags.Changed("integrator") {
		cfg.Engine.Integrator = integrator
	}
	if flags.Changed("seed") {
		cfg.Engine.Seed = seed
	}
	if flags.Changed("record") {
		cfg.RecordDir = recordDir
	}
	if flags.Changed("metrics-port") {
		cfg.MetricsPort = metricsPort
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	n := cfg.Actuators()
	set, err := bridge.ParseSensors(cfg.SensorList())
	if err != nil {
		return err
	}

	opts := sim.OptionsFromConfig(cfg, set)
	if cfg.DigitalTwin.SDF != "" {
		twin, err := sim.LoadTwin(cfg.DigitalTwin.SDF)
		if err != nil {
			log.Error().Err(err).Str("sdf", cfg.DigitalTwin.SDF).Msg("failed to load digital twin")
			return err
		}
		opts.Twin = twin
	}

	model := sim.ModelFromConfig(cfg.Engine, n)
	if err := dynamo.ApplyParams(model, params); err != nil {
		log.Error().Err(err).Strs("known", dynamo.ParamNames(model)).Msg("invalid airframe parameter")
		return err
	}

	agg := bridge.NewAggregator(n, log)
	engine, err := sim.NewEngine(model, opts, agg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to start engine")
		return err
	}
	defer engine.Close()

	tr := transport.NewUDP(log)
	if err := tr.Bind(cfg.Address, cfg.Port); err != nil {
		log.Error().Err(err).Msg("failed to bind")
		return err
	}
	defer tr.Close()

	ctrl := bridge.NewController(bridge.Options{
		NumActuators:  n,
		Sensors:       set,
		SensorTimeout: cfg.SensorTimeout,
		MaxFlushSteps: cfg.MaxFlushSteps,
	}, engine, tr, agg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsPort > 0 {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector := metrics.NewBridgeCollector(reg)
		ctrl.SetMetrics(collector)
		ctrl.AddObserver(collector)

		srv := metrics.NewServer(log, uint(cfg.MetricsPort), reg)
		<-srv.Ready()
		g.Go(func() error {
			<-ctx.Done()
			<-srv.Done()
			return nil
		})
	}

	if cfg.RecordDir != "" {
		st := storage.New(cfg.RecordDir)
		if err := st.Init(); err != nil {
			return err
		}
		rec := storage.NewRecorder(st, storage.EpisodeInfo{
			Airframe:     cfg.Airframe,
			Seed:         cfg.Engine.Seed,
			Dt:           cfg.Engine.Dt,
			Integrator:   cfg.Engine.Integrator,
			NumActuators: n,
			Sensors:      set.String(),
		}, func() []metrics.EpisodeMetric {
			return metrics.DefaultEpisodeMetrics([3]float64(model.Inertia), bridge.QuiescentRate)
		}, log)
		ctrl.AddObserver(rec)
		defer func() {
			if err := rec.Close(); err != nil {
				log.Error().Err(err).Msg("failed to finish recording")
			}
			log.Info().Int("episodes", rec.Episodes()).Str("dir", st.Dir()).Msg("recording closed")
		}()
	}

	g.Go(func() error {
		err := ctrl.Serve(ctx)
		if err != nil {
			log.Error().Err(err).Uint64("ticks", ctrl.Ticks()).Msg("bridge stopped")
		}
		return err
	})

	err = g.Wait()
	log.Info().Uint64("ticks", ctrl.Ticks()).Uint64("episodes", ctrl.Episodes()).Msg("shutting down")
	return err
}
