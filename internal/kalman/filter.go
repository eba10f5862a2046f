// Package kalman implements the Kalman filter and smoothers for a linear
// state-space system with possibly missing observations.
package kalman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/model"
	"github.com/statespace/dsgefc/internal/statespace"
)

// Options configures one filter pass.
type Options struct {
	// InitState and InitCov seed the recursion. When nil the stationary
	// distribution of the transition equation is used.
	InitState *mat.VecDense
	InitCov   *mat.Dense

	// Presample is the number of warm-up periods. They always run through
	// the recursion; they are excluded from the returned history and the
	// cumulative log-likelihood unless IncludePresample is set.
	Presample        int
	IncludePresample bool
}

// Output holds the full filter history. Produced once per filter call,
// consumed by the smoothers and by forecast initialization, never mutated.
type Output struct {
	PredState    []*mat.VecDense
	PredCov      []*mat.Dense
	FiltState    []*mat.VecDense
	FiltCov      []*mat.Dense
	PeriodLogLik []float64

	// LogLik excludes the presample; AllLogLik sums every period.
	LogLik    float64
	AllLogLik float64

	Zend *mat.VecDense
	Pend *mat.Dense
}

// Periods returns the number of periods retained in the history.
func (o *Output) Periods() int {
	return len(o.FiltState)
}

// Run executes the filter recursion over every period of the dataset.
func Run(sys *statespace.System, data *model.Dataset, opts Options) (*Output, error) {
	if data.Observables() != sys.NumObservables() {
		return nil, fmt.Errorf("%w: data has %d rows, system has %d observables",
			common.ErrDimensionMismatch, data.Observables(), sys.NumObservables())
	}
	nper := data.Periods()
	if opts.Presample < 0 || opts.Presample > nper {
		return nil, fmt.Errorf("%w: presample %d outside [0, %d]", common.ErrInvalidConfig, opts.Presample, nper)
	}

	ns := sys.NumStates()
	rqr := sys.RQR()

	z, p, err := initialConditions(sys, rqr, opts)
	if err != nil {
		return nil, err
	}

	out := &Output{
		PredState:    make([]*mat.VecDense, 0, nper),
		PredCov:      make([]*mat.Dense, 0, nper),
		FiltState:    make([]*mat.VecDense, 0, nper),
		FiltCov:      make([]*mat.Dense, 0, nper),
		PeriodLogLik: make([]float64, 0, nper),
	}

	for t := 0; t < nper; t++ {
		// Predict.
		zp := mat.NewVecDense(ns, nil)
		zp.MulVec(sys.T, z)
		zp.AddVec(zp, sys.C)

		pp := mat.NewDense(ns, ns, nil)
		var tp mat.Dense
		tp.Mul(sys.T, p)
		pp.Mul(&tp, sys.T.T())
		pp.Add(pp, rqr)
		symmetrize(pp)

		zf, pf, ll, err := update(sys, data, t, zp, pp)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", t, err)
		}

		out.PredState = append(out.PredState, zp)
		out.PredCov = append(out.PredCov, pp)
		out.FiltState = append(out.FiltState, zf)
		out.FiltCov = append(out.FiltCov, pf)
		out.PeriodLogLik = append(out.PeriodLogLik, ll)

		z, p = zf, pf
	}

	out.Zend = out.FiltState[nper-1]
	out.Pend = out.FiltCov[nper-1]

	// The cumulative likelihood always excludes the presample; the
	// all-period total is reported alongside it.
	for t, ll := range out.PeriodLogLik {
		out.AllLogLik += ll
		if t >= opts.Presample {
			out.LogLik += ll
		}
	}
	if !opts.IncludePresample {
		out.PredState = out.PredState[opts.Presample:]
		out.PredCov = out.PredCov[opts.Presample:]
		out.FiltState = out.FiltState[opts.Presample:]
		out.FiltCov = out.FiltCov[opts.Presample:]
		out.PeriodLogLik = out.PeriodLogLik[opts.Presample:]
	}

	return out, nil
}

// update applies the measurement step at period t. Entirely missing periods
// propagate the prediction unchanged; partially missing periods restrict the
// measurement equation to the observed rows.
func update(sys *statespace.System, data *model.Dataset, t int, zp *mat.VecDense, pp *mat.Dense) (*mat.VecDense, *mat.Dense, float64, error) {
	obs := data.ObservedRows(t)
	if len(obs) == 0 {
		return mat.VecDenseCopyOf(zp), mat.DenseCopyOf(pp), 0, nil
	}

	ns := sys.NumStates()
	k := len(obs)

	zt := mat.NewDense(k, ns, nil)
	dt := mat.NewVecDense(k, nil)
	et := mat.NewDense(k, k, nil)
	yv := mat.NewVecDense(k, nil)
	for i, r := range obs {
		for j := 0; j < ns; j++ {
			zt.Set(i, j, sys.Z.At(r, j))
		}
		dt.SetVec(i, sys.D.AtVec(r))
		yv.SetVec(i, data.Y.At(r, t))
		for jj, rr := range obs {
			et.Set(i, jj, sys.E.At(r, rr))
		}
	}

	// Innovation and its covariance.
	v := mat.NewVecDense(k, nil)
	v.MulVec(zt, zp)
	v.AddVec(v, dt)
	v.SubVec(yv, v)

	var pzt mat.Dense
	pzt.Mul(pp, zt.T())

	f := mat.NewDense(k, k, nil)
	f.Mul(zt, &pzt)
	f.Add(f, et)
	symmetrize(f)

	var ktT mat.Dense
	if err := ktT.Solve(f, pzt.T()); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: innovation covariance is singular: %v", common.ErrNumericalDegeneracy, err)
	}

	fv := mat.NewVecDense(k, nil)
	if err := fv.SolveVec(f, v); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: innovation covariance is singular: %v", common.ErrNumericalDegeneracy, err)
	}

	ld, sign := mat.LogDet(f)
	if sign <= 0 {
		return nil, nil, 0, fmt.Errorf("%w: innovation covariance is not positive definite", common.ErrNumericalDegeneracy)
	}
	ll := -0.5 * (float64(k)*math.Log(2*math.Pi) + ld + mat.Dot(v, fv))

	zf := mat.NewVecDense(ns, nil)
	zf.MulVec(ktT.T(), v)
	zf.AddVec(zf, zp)

	var kz mat.Dense
	kz.Mul(ktT.T(), zt)
	pf := mat.NewDense(ns, ns, nil)
	pf.Mul(&kz, pp)
	pf.Sub(pp, pf)
	symmetrize(pf)

	return zf, pf, ll, nil
}

func initialConditions(sys *statespace.System, rqr *mat.Dense, opts Options) (*mat.VecDense, *mat.Dense, error) {
	z := opts.InitState
	p := opts.InitCov

	if z == nil {
		var err error
		z, err = stationaryMean(sys)
		if err != nil {
			return nil, nil, err
		}
	}
	if p == nil {
		var err error
		p, err = Lyapunov(sys.T, rqr)
		if err != nil {
			return nil, nil, err
		}
	}

	ns := sys.NumStates()
	if z.Len() != ns {
		return nil, nil, fmt.Errorf("%w: initial state has length %d, want %d", common.ErrDimensionMismatch, z.Len(), ns)
	}
	if r, c := p.Dims(); r != ns || c != ns {
		return nil, nil, fmt.Errorf("%w: initial covariance is %dx%d, want %dx%d", common.ErrDimensionMismatch, r, c, ns, ns)
	}

	return mat.VecDenseCopyOf(z), mat.DenseCopyOf(p), nil
}

// stationaryMean solves (I - T) z = C.
func stationaryMean(sys *statespace.System) (*mat.VecDense, error) {
	ns := sys.NumStates()
	imt := mat.NewDense(ns, ns, nil)
	for i := 0; i < ns; i++ {
		imt.Set(i, i, 1)
	}
	imt.Sub(imt, sys.T)

	z := mat.NewVecDense(ns, nil)
	if err := z.SolveVec(imt, sys.C); err != nil {
		return nil, fmt.Errorf("%w: transition is not stationary: %v", common.ErrNumericalDegeneracy, err)
	}
	return z, nil
}

// symmetrize averages a covariance with its transpose to stop asymmetric
// drift from floating-point error.
func symmetrize(p *mat.Dense) {
	r, _ := p.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			avg := 0.5 * (p.At(i, j) + p.At(j, i))
			p.Set(i, j, avg)
			p.Set(j, i, avg)
		}
	}
}
