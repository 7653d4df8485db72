package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/simbridge/internal/analysis"
	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/export"
	"github.com/san-kum/simbridge/internal/storage"
	"github.com/san-kum/simbridge/internal/viz"
)

func listEpisodes(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	episodes, err := st.List()
	if err != nil {
		return err
	}

	if len(episodes) == 0 {
		fmt.Println("no episodes found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEP\tAIRFRAME\tTIME\tTICKS\tSIM\tTIMEOUTS\tPEAK")

	for _, ep := range episodes {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%.3fs\t%d\t%.3f\n",
			ep.ID,
			ep.Episode,
			ep.Airframe,
			ep.Timestamp.Format("2006-01-02 15:04:05"),
			ep.Ticks,
			ep.SimTime,
			ep.Timeouts,
			ep.Metrics["peak_rate"],
		)
	}

	return w.Flush()
}

func plotEpisode(cmd *cobra.Command, args []string) error {
	id := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(id)
	if err != nil {
		return err
	}
	trace, err := st.LoadStates(id)
	if err != nil {
		return err
	}
	if len(trace.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("episode: %s (%d)\n", meta.ID, meta.Episode)
	fmt.Printf("airframe: %s, %d motors, sensors %s\n", meta.Airframe, meta.NumActuators, meta.Sensors)
	fmt.Printf("ticks: %d\n\n", len(trace.Rows))

	rates := [3][]float64{trace.Column("p"), trace.Column("q"), trace.Column("r")}
	fmt.Println(viz.PlotRates(rates, 60, 10, "body rates (rad/s)"))
	fmt.Println(viz.Legend())
	fmt.Println()

	var commands [][]float64
	for i := 0; i < meta.NumActuators; i++ {
		if c := trace.Column(fmt.Sprintf("u%d", i)); c != nil {
			commands = append(commands, c)
		}
	}
	if len(commands) > 0 {
		fmt.Println(asciigraph.PlotMany(commands,
			asciigraph.Height(6), asciigraph.Width(60), asciigraph.Caption("motor commands")))
	}

	printRateAnalysis(rates, meta.Dt)

	if plotOut != "" {
		if err := export.SavePlot(plotOut, meta, trace); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", plotOut)
	}

	if len(meta.Metrics) > 0 {
		fmt.Println()
		names := make([]string, 0, len(meta.Metrics))
		for name := range meta.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s: %.4f\n", name, meta.Metrics[name])
		}
	}
	return nil
}

func printRateAnalysis(rates [3][]float64, dt float64) {
	summaries, err := analysis.SummarizeRates(rates, dt)
	if err != nil {
		fmt.Println(err)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AXIS\tMEAN\tSTDDEV\tPEAK\tDOMINANT")
	for i, axis := range []string{"roll", "pitch", "yaw"} {
		s := summaries[i]
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.1fHz (%.4f)\n", axis, s.Mean, s.StdDev, s.Peak, s.DominantHz, s.DominantAmp)
	}
	w.Flush()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMOTORS\tSENSORS\tMASS\tINITIAL RATES")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		rates := make([]string, 3)
		for i, r := range p.Engine.InitialRates {
			rates[i] = fmt.Sprintf("%.1f", r)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%.2fkg\t%s\n", name, p.Actuators(), p.SensorList(), p.Engine.Mass, strings.Join(rates, " "))
	}
	return w.Flush()
}
