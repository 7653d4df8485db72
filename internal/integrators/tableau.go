package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/simbridge/internal/dynamo"
)

// Tableau is the Butcher tableau of an explicit Runge-Kutta method: A is
// strictly lower triangular, B weights the stages and C offsets their time.
type Tableau struct {
	A [][]float64
	B []float64
	C []float64
}

// Explicit integrates with a fixed Butcher tableau. Stage buffers are reused
// between steps, so one Explicit must not be shared across goroutines.
type Explicit struct {
	name    string
	tab     Tableau
	k       []dynamo.State
	scratch dynamo.State
}

func NewExplicit(name string, tab Tableau) *Explicit {
	return &Explicit{name: name, tab: tab}
}

func (e *Explicit) Name() string { return e.name }

func (e *Explicit) ensureScratch(n int) {
	if len(e.scratch) == n && len(e.k) == len(e.tab.B) {
		return
	}
	e.k = make([]dynamo.State, len(e.tab.B))
	for i := range e.k {
		e.k[i] = make(dynamo.State, n)
	}
	e.scratch = make(dynamo.State, n)
}

func (e *Explicit) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	e.ensureScratch(n)

	for s := range e.tab.B {
		copy(e.scratch, x)
		for j := 0; j < s; j++ {
			a := e.tab.A[s][j]
			if a == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				e.scratch[i] += dt * a * e.k[j][i]
			}
		}
		copy(e.k[s], dyn.Derive(e.scratch, u, t+e.tab.C[s]*dt))
	}

	result := x.Clone()
	for s, b := range e.tab.B {
		for i := 0; i < n; i++ {
			result[i] += dt * b * e.k[s][i]
		}
	}
	return result
}

var (
	eulerTableau = Tableau{
		A: [][]float64{{}},
		B: []float64{1},
		C: []float64{0},
	}
	midpointTableau = Tableau{
		A: [][]float64{{}, {0.5}},
		B: []float64{0, 1},
		C: []float64{0, 0.5},
	}
	rk4Tableau = Tableau{
		A: [][]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}},
		B: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		C: []float64{0, 0.5, 0.5, 1},
	}
)

func NewEuler() *Explicit { return NewExplicit("euler", eulerTableau) }

func NewMidpoint() *Explicit { return NewExplicit("midpoint", midpointTableau) }

func NewRK4() *Explicit { return NewExplicit("rk4", rk4Tableau) }

var registry = map[string]func() *Explicit{
	"euler":    NewEuler,
	"midpoint": NewMidpoint,
	"rk4":      NewRK4,
}

// ByName returns a new integrator by name.
func ByName(name string) (dynamo.Integrator, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q, have %v", dynamo.ErrUnknownIntegrator, name, List())
	}
	return ctor(), nil
}

func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
