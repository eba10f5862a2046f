package kalman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/model"
	"github.com/statespace/dsgefc/internal/statespace"
)

// SmootherOptions configures a smoother pass.
type SmootherOptions struct {
	// Pseudo requests smoothed pseudo-observables; the system must carry a
	// pseudo-observable mapping.
	Pseudo bool
}

// Smoothed holds full-sample smoothed quantities. Read-only once produced.
type Smoothed struct {
	States   *mat.Dense // states x periods
	Shocks   *mat.Dense // standardized, shocks x periods
	ShocksNS *mat.Dense // non-standardized, shocks x periods
	Pseudo   *mat.Dense // pseudo-observables x periods, nil unless requested
}

// Classical runs the fixed-interval smoother: a backward recursion combining
// filtered and predicted moments at t and t+1. Shock estimates are recovered
// afterwards from the smoothed state path.
func Classical(sys *statespace.System, data *model.Dataset, out *Output, opts SmootherOptions) (*Smoothed, error) {
	if err := checkSmootherInputs(sys, data, out, opts); err != nil {
		return nil, err
	}

	ns := sys.NumStates()
	nper := out.Periods()

	states := make([]*mat.VecDense, nper)
	states[nper-1] = mat.VecDenseCopyOf(out.FiltState[nper-1])

	for t := nper - 2; t >= 0; t-- {
		// J_t = Pfilt_t T' Ppred_{t+1}^-1, via Ppred_{t+1} X = T Pfilt_t.
		var tpf mat.Dense
		tpf.Mul(sys.T, out.FiltCov[t])
		var jT mat.Dense
		if err := jT.Solve(out.PredCov[t+1], &tpf); err != nil {
			return nil, fmt.Errorf("%w: predicted covariance at %d is singular: %v", common.ErrNumericalDegeneracy, t+1, err)
		}

		diff := mat.NewVecDense(ns, nil)
		diff.SubVec(states[t+1], out.PredState[t+1])

		s := mat.NewVecDense(ns, nil)
		s.MulVec(jT.T(), diff)
		s.AddVec(s, out.FiltState[t])
		states[t] = s
	}

	sm := &Smoothed{States: vecsToDense(states)}

	// Shocks by least squares against the transition identity
	// R eps_t = s_t - T s_{t-1} - C.
	nshocks := sys.NumShocks()
	sm.ShocksNS = mat.NewDense(nshocks, nper, nil)
	for t := 0; t < nper; t++ {
		rhs := mat.NewVecDense(ns, nil)
		if t == 0 {
			rhs.SubVec(states[0], out.PredState[0])
		} else {
			rhs.MulVec(sys.T, states[t-1])
			rhs.AddVec(rhs, sys.C)
			rhs.SubVec(states[t], rhs)
		}

		eps := mat.NewVecDense(nshocks, nil)
		if err := eps.SolveVec(sys.R, rhs); err != nil {
			return nil, fmt.Errorf("%w: shock loading is rank deficient: %v", common.ErrNumericalDegeneracy, err)
		}
		for j := 0; j < nshocks; j++ {
			sm.ShocksNS.Set(j, t, eps.AtVec(j))
		}
	}

	finishSmoothed(sys, sm, opts)
	return sm, nil
}

// DurbinKoopman runs the disturbance smoother: a single backward pass over
// the innovations that yields smoothed states and shocks together. It agrees
// with the classical smoother on state point estimates and degrades better
// when the state dimension is large relative to the observables.
func DurbinKoopman(sys *statespace.System, data *model.Dataset, out *Output, opts SmootherOptions) (*Smoothed, error) {
	if err := checkSmootherInputs(sys, data, out, opts); err != nil {
		return nil, err
	}

	ns := sys.NumStates()
	nshocks := sys.NumShocks()
	nper := out.Periods()

	sm := &Smoothed{
		States:   mat.NewDense(ns, nper, nil),
		ShocksNS: mat.NewDense(nshocks, nper, nil),
	}

	var qrT mat.Dense
	qrT.Mul(sys.Q, sys.R.T())

	r := mat.NewVecDense(ns, nil)
	for t := nper - 1; t >= 0; t-- {
		rPrev, err := disturbanceStep(sys, data, out, t, r)
		if err != nil {
			return nil, err
		}

		s := mat.NewVecDense(ns, nil)
		s.MulVec(out.PredCov[t], rPrev)
		s.AddVec(s, out.PredState[t])
		for i := 0; i < ns; i++ {
			sm.States.Set(i, t, s.AtVec(i))
		}

		eps := mat.NewVecDense(nshocks, nil)
		eps.MulVec(&qrT, rPrev)
		for j := 0; j < nshocks; j++ {
			sm.ShocksNS.Set(j, t, eps.AtVec(j))
		}

		r = rPrev
	}

	finishSmoothed(sys, sm, opts)
	return sm, nil
}

// disturbanceStep computes r_{t-1} = Z' F^-1 v + L' r_t for the observed
// rows at t, or T' r_t when the whole period is missing.
func disturbanceStep(sys *statespace.System, data *model.Dataset, out *Output, t int, r *mat.VecDense) (*mat.VecDense, error) {
	ns := sys.NumStates()
	obs := data.ObservedRows(t)

	if len(obs) == 0 {
		rp := mat.NewVecDense(ns, nil)
		rp.MulVec(sys.T.T(), r)
		return rp, nil
	}

	k := len(obs)
	zt := mat.NewDense(k, ns, nil)
	dt := mat.NewVecDense(k, nil)
	et := mat.NewDense(k, k, nil)
	yv := mat.NewVecDense(k, nil)
	for i, row := range obs {
		for j := 0; j < ns; j++ {
			zt.Set(i, j, sys.Z.At(row, j))
		}
		dt.SetVec(i, sys.D.AtVec(row))
		yv.SetVec(i, data.Y.At(row, t))
		for jj, rr := range obs {
			et.Set(i, jj, sys.E.At(row, rr))
		}
	}

	v := mat.NewVecDense(k, nil)
	v.MulVec(zt, out.PredState[t])
	v.AddVec(v, dt)
	v.SubVec(yv, v)

	var pzt mat.Dense
	pzt.Mul(out.PredCov[t], zt.T())
	f := mat.NewDense(k, k, nil)
	f.Mul(zt, &pzt)
	f.Add(f, et)
	symmetrize(f)

	fv := mat.NewVecDense(k, nil)
	if err := fv.SolveVec(f, v); err != nil {
		return nil, fmt.Errorf("%w: innovation covariance at %d is singular: %v", common.ErrNumericalDegeneracy, t, err)
	}

	// K = T Ppred Z' F^-1, L = T - K Z.
	var tpzt mat.Dense
	tpzt.Mul(sys.T, &pzt)
	var kT mat.Dense
	if err := kT.Solve(f, tpzt.T()); err != nil {
		return nil, fmt.Errorf("%w: innovation covariance at %d is singular: %v", common.ErrNumericalDegeneracy, t, err)
	}

	var l mat.Dense
	l.Mul(kT.T(), zt)
	l.Sub(sys.T, &l)

	rp := mat.NewVecDense(ns, nil)
	rp.MulVec(zt.T(), fv)
	lr := mat.NewVecDense(ns, nil)
	lr.MulVec(l.T(), r)
	rp.AddVec(rp, lr)
	return rp, nil
}

func checkSmootherInputs(sys *statespace.System, data *model.Dataset, out *Output, opts SmootherOptions) error {
	if sys.T == nil || sys.R == nil || sys.Z == nil || sys.Q == nil || sys.E == nil {
		return fmt.Errorf("%w: system container is incomplete", common.ErrMissingSystemMatrix)
	}
	if opts.Pseudo && !sys.HasPseudo() {
		return fmt.Errorf("%w: pseudo-observable mapping not defined", common.ErrMissingSystemMatrix)
	}
	if data.Periods() != out.Periods() {
		return fmt.Errorf("%w: filter history has %d periods, data has %d (smoothers need the presample included)",
			common.ErrDimensionMismatch, out.Periods(), data.Periods())
	}
	return nil
}

// finishSmoothed fills the standardized shocks and optional pseudo rows.
func finishSmoothed(sys *statespace.System, sm *Smoothed, opts SmootherOptions) {
	nshocks, nper := sm.ShocksNS.Dims()

	sm.Shocks = mat.NewDense(nshocks, nper, nil)
	for j := 0; j < nshocks; j++ {
		sd := math.Sqrt(sys.Q.At(j, j))
		for t := 0; t < nper; t++ {
			if sd > 0 {
				sm.Shocks.Set(j, t, sm.ShocksNS.At(j, t)/sd)
			}
		}
	}

	if opts.Pseudo {
		np := sys.NumPseudo()
		sm.Pseudo = mat.NewDense(np, nper, nil)
		var zp mat.Dense
		zp.Mul(sys.ZPseudo, sm.States)
		for i := 0; i < np; i++ {
			for t := 0; t < nper; t++ {
				sm.Pseudo.Set(i, t, zp.At(i, t)+sys.DPseudo.AtVec(i))
			}
		}
	}
}

func vecsToDense(vecs []*mat.VecDense) *mat.Dense {
	n := vecs[0].Len()
	out := mat.NewDense(n, len(vecs), nil)
	for t, v := range vecs {
		for i := 0; i < n; i++ {
			out.Set(i, t, v.AtVec(i))
		}
	}
	return out
}
