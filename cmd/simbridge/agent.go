package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/simbridge/internal/agent"
	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/control"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/metrics"
	"github.com/san-kum/simbridge/internal/physics"
	"github.com/san-kum/simbridge/internal/sim"
	"github.com/san-kum/simbridge/internal/viz"
	"github.com/san-kum/simbridge/internal/wire"
)

func dialBridge(cmd *cobra.Command) (*agent.Client, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := agent.Dial(bridgeAddr, agent.Options{Timeout: timeout, Retries: retries}, log)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// airframe returns the motor count and the hover throttle the agent flies
// with. The count comes from the flag or the ESC fields of s.
func airframe(cfg *config.Config, s wire.State) (int, float64, error) {
	n := motors
	if n == 0 {
		n = s.NumActuators()
	}
	if n <= 0 {
		return 0, 0, fmt.Errorf("cannot tell the motor count from the bridge, set --motors")
	}
	u := throttle
	if u == 0 {
		u = sim.ModelFromConfig(cfg.Engine, n).HoverCommand()
	}
	return n, u, nil
}

// rateController builds the agent's controller with the --gain overrides.
func rateController(n int) (*control.RateController, error) {
	rc := control.NewRateController(control.DefaultRateGains(), control.NewMixer(n))
	if err := dynamo.ApplyParams(rc, gains); err != nil {
		return nil, fmt.Errorf("%w (have %v)", err, dynamo.ParamNames(rc))
	}
	return rc, nil
}

func runProbe(cmd *cobra.Command, _ []string) error {
	client, cfg, err := dialBridge(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	first, err := client.Reset(ctx)
	if err != nil {
		return err
	}
	n, hover, err := airframe(cfg, first)
	if err != nil {
		return err
	}

	rc, err := rateController(n)
	if err != nil {
		return err
	}
	episodeMetrics := metrics.DefaultEpisodeMetrics(cfg.Engine.Inertia, bridge.QuiescentRate)
	var last wire.Action
	ep, err := agent.Run(ctx, client, func(s wire.State) []float64 {
		last.Motor = rc.Compute(s, hover)
		return last.Motor
	}, steps, func(_ int, s wire.State) {
		for _, m := range episodeMetrics {
			m.Observe(last, s)
		}
	})
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render("reset"))
	fmt.Println(viz.RenderState(ep.Reset))
	fmt.Println()
	if len(ep.States) > 0 {
		fmt.Println(viz.Title.Render(fmt.Sprintf("after %d steps at throttle %.3f", len(ep.States), hover)))
		fmt.Println(viz.RenderState(ep.States[len(ep.States)-1]))
		fmt.Println()
		fmt.Println(viz.PlotRates(ep.Rates(), 60, 8, "body rates (rad/s)"))
		fmt.Println(viz.Legend())
		fmt.Println()
		printRateAnalysis(ep.Rates(), tickPeriod(ep, cfg.Engine.Dt))
		fmt.Println()
	}

	fmt.Printf("motors: %d\n", n)
	fmt.Printf("sensor timeouts: %d\n", ep.Timeouts)
	for _, m := range episodeMetrics {
		fmt.Printf("%s: %.4f\n", m.Name(), m.Value())
	}
	return nil
}

// tickPeriod reads the bridge tick from the sim times it reported.
func tickPeriod(ep *agent.Episode, fallback float64) float64 {
	if len(ep.States) < 2 {
		return fallback
	}
	if dt := ep.States[1].SimTime - ep.States[0].SimTime; dt > 0 {
		return dt
	}
	return fallback
}

func runTUI(cmd *cobra.Command, _ []string) error {
	client, cfg, err := dialBridge(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	first, err := client.Reset(context.Background())
	if err != nil {
		return err
	}
	n, hover, err := airframe(cfg, first)
	if err != nil {
		return err
	}
	rc, err := rateController(n)
	if err != nil {
		return err
	}
	return viz.RunDashboard(client, viz.DashboardOptions{
		Motors:     physics.Layout(n),
		Hover:      hover,
		Controller: rc,
	})
}
