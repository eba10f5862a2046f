package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/statespace"
)

// The decompositions below rely on linearity of the transition equation: the
// deterministic trend carries the initial condition and constants, each shock
// contribution carries exactly one shock series from a zero initial state,
// and their sum reconstructs the full state path period by period.

// Decomposition is a state/observable pair over history plus horizon.
type Decomposition struct {
	States *mat.Dense
	Obs    *mat.Dense
}

// Dettrend propagates the initial condition and constants with every shock
// zeroed. init is the period-0 smoothed state, which anchors the trend so
// that contributions from later shocks account for all remaining variation.
// The path runs for periods columns.
func Dettrend(sys *statespace.System, init *mat.VecDense, periods int) (*Decomposition, error) {
	ns := sys.NumStates()
	if init.Len() != ns {
		return nil, fmt.Errorf("%w: initial state has length %d, want %d", common.ErrDimensionMismatch, init.Len(), ns)
	}
	if periods <= 0 {
		return nil, fmt.Errorf("%w: periods must be positive, got %d", common.ErrInvalidConfig, periods)
	}

	states := mat.NewDense(ns, periods, nil)
	states.SetCol(0, vecData(init))

	z := mat.VecDenseCopyOf(init)
	next := mat.NewVecDense(ns, nil)
	for t := 1; t < periods; t++ {
		next.MulVec(sys.T, z)
		next.AddVec(next, sys.C)
		states.SetCol(t, vecData(next))
		z.CopyVec(next)
	}

	return &Decomposition{States: states, Obs: observe(sys, states)}, nil
}

// Shockdec isolates each shock's contribution: a zero-initial, constant-free
// recursion driven by that shock's non-standardized smoothed history from
// period 1 on (the period-0 innovation is part of the smoothed initial state
// and belongs to the trend), then propagated shock-free over the horizon.
// Output stacks one block of rows per shock; observable blocks exclude the
// measurement constant, which also belongs to the deterministic trend.
func Shockdec(sys *statespace.System, shocksNS *mat.Dense, horizon int) (*Decomposition, error) {
	ns := sys.NumStates()
	nshocks, nper := shocksNS.Dims()
	if nshocks != sys.NumShocks() {
		return nil, fmt.Errorf("%w: shock history has %d rows, system has %d shocks", common.ErrDimensionMismatch, nshocks, sys.NumShocks())
	}
	if horizon < 0 {
		return nil, fmt.Errorf("%w: horizon cannot be negative, got %d", common.ErrInvalidConfig, horizon)
	}

	total := nper + horizon
	ny := sys.NumObservables()
	states := mat.NewDense(nshocks*ns, total, nil)
	obs := mat.NewDense(nshocks*ny, total, nil)

	for j := 0; j < nshocks; j++ {
		path := mat.NewDense(ns, total, nil)
		z := mat.NewVecDense(ns, nil)
		next := mat.NewVecDense(ns, nil)
		for t := 0; t < total; t++ {
			next.MulVec(sys.T, z)
			if t >= 1 && t < nper {
				eps := shocksNS.At(j, t)
				for i := 0; i < ns; i++ {
					next.SetVec(i, next.AtVec(i)+sys.R.At(i, j)*eps)
				}
			}
			path.SetCol(t, vecData(next))
			z.CopyVec(next)
		}

		states.Slice(j*ns, (j+1)*ns, 0, total).(*mat.Dense).Copy(path)
		obsBlock := obs.Slice(j*ny, (j+1)*ny, 0, total).(*mat.Dense)
		var zpath mat.Dense
		zpath.Mul(sys.Z, path)
		obsBlock.Copy(&zpath)
	}

	return &Decomposition{States: states, Obs: obs}, nil
}

// Counterfactual replays history from the smoothed initial state with the
// chosen shocks zeroed, then runs the horizon shock-free. An empty shock
// list zeroes them all.
func Counterfactual(sys *statespace.System, init *mat.VecDense, shocksNS *mat.Dense, zeroShocks []int, horizon int) (*Decomposition, error) {
	ns := sys.NumStates()
	nshocks, nper := shocksNS.Dims()
	if nshocks != sys.NumShocks() {
		return nil, fmt.Errorf("%w: shock history has %d rows, system has %d shocks", common.ErrDimensionMismatch, nshocks, sys.NumShocks())
	}
	if init.Len() != ns {
		return nil, fmt.Errorf("%w: initial state has length %d, want %d", common.ErrDimensionMismatch, init.Len(), ns)
	}

	zeroed := make(map[int]bool, nshocks)
	if len(zeroShocks) == 0 {
		for j := 0; j < nshocks; j++ {
			zeroed[j] = true
		}
	}
	for _, j := range zeroShocks {
		if j < 0 || j >= nshocks {
			return nil, fmt.Errorf("%w: counterfactual shock %d outside [0, %d)", common.ErrInvalidConfig, j, nshocks)
		}
		zeroed[j] = true
	}

	total := nper + horizon
	states := mat.NewDense(ns, total, nil)

	z := mat.NewVecDense(ns, nil)
	next := mat.NewVecDense(ns, nil)
	for t := 0; t < total; t++ {
		if t == 0 {
			next.CopyVec(init)
		} else {
			next.MulVec(sys.T, z)
			next.AddVec(next, sys.C)
		}
		if t >= 1 && t < nper {
			for j := 0; j < nshocks; j++ {
				if zeroed[j] {
					continue
				}
				eps := shocksNS.At(j, t)
				for i := 0; i < ns; i++ {
					next.SetVec(i, next.AtVec(i)+sys.R.At(i, j)*eps)
				}
			}
		}
		states.SetCol(t, vecData(next))
		z.CopyVec(next)
	}

	return &Decomposition{States: states, Obs: observe(sys, states)}, nil
}
