package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/wire"
)

const rad2deg = 180 / math.Pi

// RenderState formats one bridge State as a labelled panel.
func RenderState(s wire.State) string {
	q := dynamo.Quat(s.ImuOrientationQuat)
	euler := q.Euler()
	rates := s.ImuAngularVelocityRPY
	acc := s.ImuLinearAccelerationXYZ

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.3f s", s.SimTime))
	row("status", StatusBadge(s.Status))
	row("rates", fmt.Sprintf("% 7.3f % 7.3f % 7.3f rad/s", rates[0], rates[1], rates[2]))
	row("attitude", fmt.Sprintf("% 7.1f % 7.1f % 7.1f deg", euler[0]*rad2deg, euler[1]*rad2deg, euler[2]*rad2deg))
	row("accel", fmt.Sprintf("% 7.2f % 7.2f % 7.2f m/s²", acc[0], acc[1], acc[2]))

	if n := s.NumActuators(); n > 0 {
		b.WriteString("\n" + Subtle.Render(fmt.Sprintf("%-4s %9s %7s %7s %7s", "esc", "rad/s", "°C", "A", "V")) + "\n")
		for i := 0; i < n; i++ {
			b.WriteString(fmt.Sprintf("%-4d %9.1f %7.1f %7.2f %7.2f\n", i,
				s.EscMotorAngularVelocity[i], s.EscTemperature[i], s.EscCurrent[i], s.EscVoltage[i]))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// MotorBars renders one bar per motor command.
func MotorBars(motor []float64, width int) string {
	lines := make([]string, len(motor))
	for i, u := range motor {
		lines[i] = fmt.Sprintf("m%-2d %s %4.2f", i, ProgressBar(u, width), u)
	}
	return strings.Join(lines, "\n")
}

// PlotRates draws the roll, pitch and yaw rate series on one chart.
func PlotRates(rates [3][]float64, width, height int, caption string) string {
	if len(rates[0]) == 0 {
		return Subtle.Render("no samples")
	}
	series := make([][]float64, 0, 3)
	for _, r := range rates {
		if len(r) == 1 {
			r = []float64{r[0], r[0]}
		}
		series = append(series, r)
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green, asciigraph.Blue),
		asciigraph.Caption(caption),
	)
}

// Legend names the series colors of PlotRates.
func Legend() string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Render("■ roll  "),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00")).Render("■ pitch  "),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#0000ff")).Render("■ yaw"),
	)
}
