// Package export renders recorded episodes to image files.
package export

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/simbridge/internal/storage"
)

var rateColors = []color.Color{
	color.RGBA{R: 220, G: 50, B: 47, A: 255},
	color.RGBA{R: 133, G: 153, B: 0, A: 255},
	color.RGBA{R: 38, G: 139, B: 210, A: 255},
}

// Formats lists the file extensions SavePlot accepts.
var Formats = []string{".png", ".svg", ".pdf"}

// SavePlot draws the body rates of trace over sim time into path. The
// format follows the file extension.
func SavePlot(path string, meta *storage.EpisodeMetadata, trace *storage.Trace) error {
	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, f := range Formats {
		supported = supported || f == ext
	}
	if !supported {
		return fmt.Errorf("export: unsupported format %q (want one of %v)", ext, Formats)
	}
	if len(trace.Times) == 0 {
		return fmt.Errorf("export: episode %s has no ticks", meta.ID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Episode %d (%s) - body rates", meta.Episode, meta.Airframe)
	p.X.Label.Text = "Sim time (s)"
	p.Y.Label.Text = "Rate (rad/s)"
	p.Add(plotter.NewGrid())

	for i, name := range []string{"p", "q", "r"} {
		col := trace.Column(name)
		if col == nil {
			return fmt.Errorf("export: episode %s has no %s column", meta.ID, name)
		}
		pts := make(plotter.XYs, len(col))
		for j, v := range col {
			pts[j] = plotter.XY{X: trace.Times[j], Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("export: %s line: %w", name, err)
		}
		line.Color = rateColors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}
