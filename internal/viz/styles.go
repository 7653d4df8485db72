package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/simbridge/internal/wire"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(10)

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	ErrorText = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444")).
			Bold(true)

	statusOK      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	statusDegrade = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))
	statusPaused  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8888ff"))

	barHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	barMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	barLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
)

// StatusBadge renders a status code in its color.
func StatusBadge(s wire.StatusCode) string {
	if s == wire.StatusOK {
		return statusOK.Render(s.String())
	}
	return statusDegrade.Render(s.String())
}

// GradientText colors each rune of text between two #rrggbb colors.
func GradientText(text string, from, to lipgloss.Color) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	fr, fg, fb := parseHex(string(from))
	tr, tg, tb := parseHex(string(to))

	var b strings.Builder
	for i, r := range runes {
		t := 0.0
		if len(runes) > 1 {
			t = float64(i) / float64(len(runes)-1)
		}
		c := fmt.Sprintf("#%02x%02x%02x", lerp(fr, tr, t), lerp(fg, tg, t), lerp(fb, tb, t))
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true).Render(string(r)))
	}
	return b.String()
}

// ProgressBar renders a filled bar for a fraction in [0, 1]. Higher fills
// are drawn hotter.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case fraction > 0.85:
		return barHigh.Render(bar)
	case fraction > 0.6:
		return barMid.Render(bar)
	}
	return barLow.Render(bar)
}

// Sparkline renders the last width values using block characters scaled to
// the series range.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	blocks := []rune("▁▂▃▄▅▆▇█")

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	out := make([]rune, len(values))
	for i, v := range values {
		idx := int((v - lo) / span * float64(len(blocks)-1))
		out[i] = blocks[max(0, min(idx, len(blocks)-1))]
	}
	return string(out)
}

func parseHex(s string) (r, g, b int) {
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return 255, 255, 255
	}
	return r, g, b
}

func lerp(a, b int, t float64) int {
	return a + int(t*float64(b-a))
}
