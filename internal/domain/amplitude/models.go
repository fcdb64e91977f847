package amplitude

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

// Stand-in model defaults.
const (
	defaultPoleWidth    = 0.5
	defaultPoleCoupling = 1.0
)

// Constant returns the same amplitude for every event.
type Constant struct {
	Magnitude float64
	Phase     float64
}

// Evaluate returns Magnitude*exp(i*Phase).
func (c Constant) Evaluate(_, _, _, _ float64) (complex128, error) {
	return cmplx.Rect(c.Magnitude, c.Phase), nil
}

// ConcurrencySafe reports true; Constant holds no mutable state.
func (Constant) ConcurrencySafe() bool { return true }

// Pole is a crossing-symmetric sum of s-, t- and u-channel resonance poles
// with squared mass p and fixed width:
//
//	a = g * sum_x 1 / (p - x - i*w),  x in {s, t, u}
type Pole struct {
	Coupling float64
	Width    float64
}

// NewPole returns a Pole with default coupling and width.
func NewPole() Pole {
	return Pole{Coupling: defaultPoleCoupling, Width: defaultPoleWidth}
}

// Evaluate fails with ErrDomain when p is not a positive finite squared mass.
func (m Pole) Evaluate(s, t, u, p float64) (complex128, error) {
	if !(p > 0) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: squared mass %v", ErrDomain, p)
	}
	w := complex(0, m.Width)
	sum := 1/(complex(p-s, 0)-w) + 1/(complex(p-t, 0)-w) + 1/(complex(p-u, 0)-w)
	return complex(m.Coupling, 0) * sum, nil
}

// ConcurrencySafe reports true; Pole holds no mutable state.
func (Pole) ConcurrencySafe() bool { return true }

var registry = map[string]func() Amplitude{ //nolint:gochecknoglobals // static model table
	"constant": func() Amplitude { return Constant{Magnitude: math.E} },
	"pole":     func() Amplitude { return NewPole() },
}

// New returns the stand-in model registered under name.
func New(name string) (Amplitude, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return ctor(), nil
}

// Names lists the registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
