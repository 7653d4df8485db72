package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/simbridge/internal/wire"
)

func state(rates ...float64) wire.State {
	var s wire.State
	copy(s.ImuAngularVelocityRPY[:], rates)
	return s
}

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	if m.Value() != 0 {
		t.Errorf("expected 0 before any sample, got %f", m.Value())
	}

	m.Observe(wire.Action{Motor: []float64{0.5, -0.5, 0.25, 0.25}}, wire.State{})
	m.Observe(wire.Action{Motor: []float64{0, 0, 0, 0}}, wire.State{})
	if got := m.Value(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("expected mean effort 0.75, got %f", got)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected 0 after reset, got %f", m.Value())
	}
}

func TestPeakRate(t *testing.T) {
	m := NewPeakRate()
	m.Observe(wire.Action{}, state(0.1, -2.5, 0.3))
	m.Observe(wire.Action{}, state(1, 1, 1))
	if m.Value() != 2.5 {
		t.Errorf("expected peak 2.5, got %f", m.Value())
	}
}

func TestSettled(t *testing.T) {
	m := NewSettled(0.017)
	m.Observe(wire.Action{}, state(0.5, 0, 0))
	m.Observe(wire.Action{}, state(0.001, -0.002, 0))
	m.Observe(wire.Action{}, state(0, 0.017, 0))
	m.Observe(wire.Action{}, state(0, 0, 0))
	if m.Value() != 0.5 {
		t.Errorf("expected half the ticks settled, got %f", m.Value())
	}
}

func TestEnergy(t *testing.T) {
	m := NewEnergy([3]float64{0.01, 0.02, 0.04})
	m.Observe(wire.Action{}, state(1, 1, 1))
	expected := 0.5 * (0.01 + 0.02 + 0.04)
	if math.Abs(m.Value()-expected) > 1e-12 {
		t.Errorf("expected energy %f, got %f", expected, m.Value())
	}

	m.Reset()
	m.Observe(wire.Action{}, state(0, 0, 2))
	expected = 0.5 * 0.04 * 4
	if math.Abs(m.Value()-expected) > 1e-12 {
		t.Errorf("expected energy %f after reset, got %f", expected, m.Value())
	}
}

func TestDefaultEpisodeMetricNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range DefaultEpisodeMetrics([3]float64{1, 1, 1}, 0.017) {
		if seen[m.Name()] {
			t.Errorf("duplicate metric %s", m.Name())
		}
		seen[m.Name()] = true
	}
}
