package forecast

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/statespace"
)

// Projection is a multi-horizon path for states and observables.
type Projection struct {
	States *mat.Dense // states x horizon
	Obs    *mat.Dense // observables x horizon
}

// Project iterates the transition equation forward from a terminal state.
// A nil shocks matrix means the deterministic path; otherwise shocks must be
// shocks x horizon.
func Project(sys *statespace.System, z0 *mat.VecDense, horizon int, shocks *mat.Dense) (*Projection, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", common.ErrInvalidConfig, horizon)
	}
	ns := sys.NumStates()
	if z0.Len() != ns {
		return nil, fmt.Errorf("%w: terminal state has length %d, want %d", common.ErrDimensionMismatch, z0.Len(), ns)
	}
	if shocks != nil {
		if r, c := shocks.Dims(); r != sys.NumShocks() || c != horizon {
			return nil, fmt.Errorf("%w: shocks are %dx%d, want %dx%d", common.ErrDimensionMismatch, r, c, sys.NumShocks(), horizon)
		}
	}

	states := mat.NewDense(ns, horizon, nil)
	z := mat.VecDenseCopyOf(z0)
	next := mat.NewVecDense(ns, nil)
	for h := 0; h < horizon; h++ {
		next.MulVec(sys.T, z)
		next.AddVec(next, sys.C)
		if shocks != nil {
			var re mat.VecDense
			re.MulVec(sys.R, shocks.ColView(h))
			next.AddVec(next, &re)
		}
		states.SetCol(h, vecData(next))
		z.CopyVec(next)
	}

	return &Projection{States: states, Obs: observe(sys, states)}, nil
}

// DrawShocks samples horizon periods of structural shocks from N(0, Q).
func DrawShocks(sys *statespace.System, horizon int, seed uint64) (*mat.Dense, error) {
	nshocks := sys.NumShocks()

	sym := mat.NewSymDense(nshocks, nil)
	for i := 0; i < nshocks; i++ {
		for j := i; j < nshocks; j++ {
			sym.SetSym(i, j, 0.5*(sys.Q.At(i, j)+sys.Q.At(j, i)))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, fmt.Errorf("%w: shock covariance is not positive definite", common.ErrNumericalDegeneracy)
	}
	var l mat.TriDense
	chol.LTo(&l)

	std := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	raw := mat.NewDense(nshocks, horizon, nil)
	for i := 0; i < nshocks; i++ {
		for h := 0; h < horizon; h++ {
			raw.Set(i, h, std.Rand())
		}
	}

	shocks := mat.NewDense(nshocks, horizon, nil)
	shocks.Mul(&l, raw)
	return shocks, nil
}

// observe maps a state path through the measurement equation.
func observe(sys *statespace.System, states *mat.Dense) *mat.Dense {
	ny := sys.NumObservables()
	_, nper := states.Dims()

	obs := mat.NewDense(ny, nper, nil)
	obs.Mul(sys.Z, states)
	for t := 0; t < nper; t++ {
		for i := 0; i < ny; i++ {
			obs.Set(i, t, obs.At(i, t)+sys.D.AtVec(i))
		}
	}
	return obs
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
