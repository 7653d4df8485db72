package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/simbridge/internal/control"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/physics"
	"github.com/san-kum/simbridge/internal/wire"
)

// Stepper is the bridge as seen by a control agent.
type Stepper interface {
	Reset(ctx context.Context) (wire.State, error)
	Step(ctx context.Context, motor []float64) (wire.State, error)
}

type DashboardOptions struct {
	Motors []physics.Motor
	// Hover is the initial throttle.
	Hover float64
	// StepsPerFrame bridge ticks are run between redraws.
	StepsPerFrame int
	FrameInterval time.Duration
	// History is the number of samples kept for the rate plot.
	History int
	// Controller flies the airframe. Nil uses the default gains.
	Controller *control.RateController
}

func (o *DashboardOptions) defaults() {
	if o.StepsPerFrame <= 0 {
		o.StepsPerFrame = 10
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = time.Second / 30
	}
	if o.History <= 0 {
		o.History = 300
	}
}

type (
	frameMsg time.Time
	resetMsg struct {
		state wire.State
		err   error
	}
	stepMsg struct {
		state wire.State
		motor []float64
		err   error
	}
)

// Dashboard flies the bridge from the keyboard through a rate controller
// and draws the airframe, body rates and ESC telemetry.
type Dashboard struct {
	bridge  Stepper
	opts    DashboardOptions
	manual  *control.Manual
	rc      *control.RateController
	canvas  *Canvas
	view    View
	state   wire.State
	motor   []float64
	rates   [3][]float64
	pending int
	busy    bool
	paused  bool
	ticks   uint64
	resets  int
	err     error
	width   int
}

func NewDashboard(bridge Stepper, opts DashboardOptions) Dashboard {
	opts.defaults()
	rc := opts.Controller
	if rc == nil {
		rc = control.NewRateController(control.DefaultRateGains(), control.NewMixer(len(opts.Motors)))
	}
	canvas := NewCanvas(30, 12)
	return Dashboard{
		bridge: bridge,
		opts:   opts,
		manual: control.NewManual(opts.Hover),
		rc:     rc,
		canvas: canvas,
		view:   NewView(canvas),
		motor:  make([]float64, len(opts.Motors)),
		width:  100,
	}
}

func (d Dashboard) Init() tea.Cmd { return d.reset() }

func (d Dashboard) reset() tea.Cmd {
	b := d.bridge
	return func() tea.Msg {
		s, err := b.Reset(context.Background())
		return resetMsg{state: s, err: err}
	}
}

func (d Dashboard) step(motor []float64) tea.Cmd {
	b := d.bridge
	return func() tea.Msg {
		s, err := b.Step(context.Background(), motor)
		return stepMsg{state: s, motor: motor, err: err}
	}
}

func (d Dashboard) frame() tea.Cmd {
	return tea.Tick(d.opts.FrameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return d.handleKey(msg)

	case tea.WindowSizeMsg:
		d.width = msg.Width
		return d, nil

	case resetMsg:
		d.busy = false
		if msg.err != nil {
			d.err = msg.err
			return d, d.frame()
		}
		d.err = nil
		d.resets++
		d.state = msg.state
		d.rates = [3][]float64{}
		d.rc.Reset()
		d.manual.Center()
		return d, d.frame()

	case frameMsg:
		if d.paused || d.busy || d.resets == 0 {
			return d, d.frame()
		}
		d.pending = d.opts.StepsPerFrame
		return d.next()

	case stepMsg:
		d.busy = false
		if msg.err != nil {
			d.err = msg.err
			return d, d.frame()
		}
		d.err = nil
		d.record(msg.state, msg.motor)
		if d.pending > 0 && !d.paused {
			return d.next()
		}
		return d, d.frame()
	}
	return d, nil
}

// next sends one closed-loop step.
func (d Dashboard) next() (tea.Model, tea.Cmd) {
	d.pending--
	d.busy = true
	d.manual.Apply(d.rc)
	return d, d.step(d.rc.Compute(d.state, d.manual.Throttle))
}

func (d *Dashboard) record(s wire.State, motor []float64) {
	d.state = s
	d.motor = motor
	d.ticks++
	for i := range d.rates {
		d.rates[i] = append(d.rates[i], s.ImuAngularVelocityRPY[i])
		if over := len(d.rates[i]) - d.opts.History; over > 0 {
			d.rates[i] = d.rates[i][over:]
		}
	}
}

func (d Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return d, tea.Quit
	case " ":
		d.paused = !d.paused
	case "r":
		if d.busy {
			return d, nil
		}
		d.busy = true
		return d, d.reset()
	case "c":
		d.manual.Center()
	case "w":
		d.manual.NudgeThrottle(1)
	case "s":
		d.manual.NudgeThrottle(-1)
	case "left":
		d.manual.Nudge(0, -1)
	case "right":
		d.manual.Nudge(0, 1)
	case "up":
		d.manual.Nudge(1, 1)
	case "down":
		d.manual.Nudge(1, -1)
	case "a":
		d.manual.Nudge(2, 1)
	case "d":
		d.manual.Nudge(2, -1)
	}
	return d, nil
}

func (d Dashboard) View() string {
	d.canvas.Clear()
	d.view.DrawAirframe(d.canvas, d.opts.Motors, dynamo.Quat(d.state.ImuOrientationQuat))

	run := statusOK.Render("RUNNING")
	if d.paused {
		run = statusPaused.Render("PAUSED")
	}
	header := GradientText("SIMBRIDGE", "#00ffff", "#ff00ff") + "  " + run +
		Subtle.Render(fmt.Sprintf("  episode %d  tick %d", d.resets, d.ticks))

	setpoint := fmt.Sprintf("throttle %.2f  rates % .1f % .1f % .1f rad/s",
		d.manual.Throttle, d.manual.Rates[0], d.manual.Rates[1], d.manual.Rates[2])

	left := Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		Title.Render("airframe"), d.canvas.String(), "", MotorBars(d.motor, 16)))
	right := Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		Title.Render("state"), RenderState(d.state)))

	plotWidth := max(20, d.width-16)
	plot := Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		PlotRates(d.rates, plotWidth, 6, "body rates (rad/s)"), Legend()))

	var b strings.Builder
	b.WriteString(header + "\n" + MetricValue.Render(setpoint) + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right) + "\n")
	b.WriteString(plot + "\n")
	if d.err != nil {
		b.WriteString(ErrorText.Render(d.err.Error()) + "\n")
	}
	b.WriteString(KeyHint.Render("w/s throttle  arrows roll/pitch  a/d yaw  c center  space pause  r reset  q quit"))
	return b.String()
}

// RunDashboard runs the dashboard full screen until the user quits.
func RunDashboard(bridge Stepper, opts DashboardOptions) error {
	_, err := tea.NewProgram(NewDashboard(bridge, opts), tea.WithAltScreen()).Run()
	return err
}
