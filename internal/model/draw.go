package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/statespace"
)

// ParameterDraw is one parameter vector from the posterior sampler, plus the
// precomputed system matrices and terminal filter state when the store has
// them. Draws are independent and safe to process in parallel.
type ParameterDraw struct {
	System *statespace.System
	Zend   *mat.VecDense
	Pend   *mat.Dense
	Values []float64
	ID     int
}

// HasSystem reports whether the draw carries precomputed system matrices.
func (d *ParameterDraw) HasSystem() bool {
	return d.System != nil
}

// HasTerminalState reports whether the draw carries a precomputed terminal
// state and covariance for forecast initialization.
func (d *ParameterDraw) HasTerminalState() bool {
	return d.Zend != nil && d.Pend != nil
}
