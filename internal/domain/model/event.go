// Package model contains domain models passed between layers.
package model

import "math"

// Event is one record of kinematic invariants as read from the input.
// Events are immutable once loaded into a store.
type Event struct {
	S float64 // Mandelstam s
	T float64 // Mandelstam t
	U float64 // Mandelstam u
	P float64 // per-event parameter column of the input format
}

// Finite reports whether every field holds a finite number.
func (e Event) Finite() bool {
	return isFinite(e.S) && isFinite(e.T) && isFinite(e.U) && isFinite(e.P)
}

// MassSum returns s+t+u, which equals the sum of the squared external masses
// for a physical 2->2 event.
func (e Event) MassSum() float64 {
	return e.S + e.T + e.U
}

// Params is the parameter vector shared by every amplitude evaluation of one
// likelihood computation. It is passed by value and never mutated mid-call.
type Params struct {
	P float64
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
