package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/kalman"
	"github.com/statespace/dsgefc/internal/statespace"
	"github.com/statespace/dsgefc/internal/testutil"
)

func TestDecompositionAdditivity(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 60, 31)

	out, err := kalman.Run(sys, data, kalman.Options{})
	require.NoError(t, err)
	sm, err := kalman.DurbinKoopman(sys, data, out, kalman.SmootherOptions{})
	require.NoError(t, err)

	horizon := 8
	total := out.Periods() + horizon
	ns := sys.NumStates()
	nshocks := sys.NumShocks()

	dt, err := Dettrend(sys, smoothedInit(sm), total)
	require.NoError(t, err)
	sd, err := Shockdec(sys, sm.ShocksNS, horizon)
	require.NoError(t, err)

	// Deterministic trend plus every shock contribution reconstructs the
	// smoothed history exactly, period by period.
	for tt := 0; tt < out.Periods(); tt++ {
		for i := 0; i < ns; i++ {
			sum := dt.States.At(i, tt)
			for j := 0; j < nshocks; j++ {
				sum += sd.States.At(j*ns+i, tt)
			}
			assert.InDelta(t, sm.States.At(i, tt), sum, 1e-8, "history period %d state %d", tt, i)
		}
	}

	// The same identity extends through the forecast horizon.
	z0 := mat.NewVecDense(ns, nil)
	for i := 0; i < ns; i++ {
		z0.SetVec(i, sm.States.At(i, out.Periods()-1))
	}
	proj, err := Project(sys, z0, horizon, nil)
	require.NoError(t, err)

	for h := 0; h < horizon; h++ {
		tt := out.Periods() + h
		for i := 0; i < ns; i++ {
			sum := dt.States.At(i, tt)
			for j := 0; j < nshocks; j++ {
				sum += sd.States.At(j*ns+i, tt)
			}
			assert.InDelta(t, proj.States.At(i, h), sum, 1e-8, "horizon %d state %d", h, i)
		}
	}

	// And for observables, where the measurement constant lives in the
	// trend blocks only.
	ny := sys.NumObservables()
	for h := 0; h < horizon; h++ {
		tt := out.Periods() + h
		for i := 0; i < ny; i++ {
			sum := dt.Obs.At(i, tt)
			for j := 0; j < nshocks; j++ {
				sum += sd.Obs.At(j*ny+i, tt)
			}
			assert.InDelta(t, proj.Obs.At(i, h), sum, 1e-8)
		}
	}
}

// singleShockSystem has one shock, no constants, and direct observation, so
// the lone shock contribution must carry the entire forecast.
func singleShockSystem(t *testing.T) *statespace.System {
	t.Helper()
	sys, err := statespace.New(
		mat.NewDense(2, 2, []float64{0.8, 0.1, 0.0, 0.7}),
		mat.NewDense(2, 1, []float64{1, 0.5}),
		mat.NewVecDense(2, nil),
		mat.NewDense(1, 1, []float64{0.09}),
		mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1}),
		mat.NewVecDense(3, nil),
		mat.NewDense(3, 3, []float64{0.01, 0, 0, 0, 0.01, 0, 0, 0, 0.01}),
	)
	require.NoError(t, err)
	return sys
}

func TestSingleShockDecompositionEqualsForecast(t *testing.T) {
	sys := singleShockSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 10, 37)

	out, err := kalman.Run(sys, data, kalman.Options{})
	require.NoError(t, err)
	sm, err := kalman.DurbinKoopman(sys, data, out, kalman.SmootherOptions{})
	require.NoError(t, err)

	horizon := 6
	total := out.Periods() + horizon
	sd, err := Shockdec(sys, sm.ShocksNS, horizon)
	require.NoError(t, err)
	dt, err := Dettrend(sys, smoothedInit(sm), total)
	require.NoError(t, err)

	ns := sys.NumStates()
	z0 := mat.NewVecDense(ns, nil)
	for i := 0; i < ns; i++ {
		z0.SetVec(i, sm.States.At(i, out.Periods()-1))
	}
	proj, err := Project(sys, z0, horizon, nil)
	require.NoError(t, err)

	// With a single shock process, everything the forecast does beyond the
	// deterministic trend is attributed to that one shock exactly.
	for h := 0; h < horizon; h++ {
		tt := out.Periods() + h
		for i := 0; i < ns; i++ {
			assert.InDelta(t, proj.States.At(i, h)-dt.States.At(i, tt), sd.States.At(i, tt), 1e-8)
		}
		for i := 0; i < sys.NumObservables(); i++ {
			assert.InDelta(t, proj.Obs.At(i, h)-dt.Obs.At(i, tt), sd.Obs.At(i, tt), 1e-8)
		}
	}
}

// smoothedInit extracts the period-0 smoothed state.
func smoothedInit(sm *kalman.Smoothed) *mat.VecDense {
	r, _ := sm.States.Dims()
	z := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		z.SetVec(i, sm.States.At(i, 0))
	}
	return z
}

func TestCounterfactualZeroAllShocksMatchesDettrend(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 40, 41)

	out, err := kalman.Run(sys, data, kalman.Options{})
	require.NoError(t, err)
	sm, err := kalman.DurbinKoopman(sys, data, out, kalman.SmootherOptions{})
	require.NoError(t, err)

	horizon := 4
	total := out.Periods() + horizon
	cf, err := Counterfactual(sys, smoothedInit(sm), sm.ShocksNS, nil, horizon)
	require.NoError(t, err)
	dt, err := Dettrend(sys, smoothedInit(sm), total)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(cf.States, dt.States, 1e-10))
	assert.True(t, mat.EqualApprox(cf.Obs, dt.Obs, 1e-10))
}

func TestCounterfactualRejectsOutOfRangeShock(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 40, 43)

	out, err := kalman.Run(sys, data, kalman.Options{})
	require.NoError(t, err)
	sm, err := kalman.DurbinKoopman(sys, data, out, kalman.SmootherOptions{})
	require.NoError(t, err)

	// Zeroing an out-of-range set is rejected.
	_, err = Counterfactual(sys, smoothedInit(sm), sm.ShocksNS, []int{9}, 2)
	require.Error(t, err)
}

func TestProjectWithShockDraws(t *testing.T) {
	sys := testutil.NewTestSystem(t)

	z0 := mat.NewVecDense(2, []float64{1, -1})
	shocks, err := DrawShocks(sys, 12, 7)
	require.NoError(t, err)

	r, c := shocks.Dims()
	assert.Equal(t, sys.NumShocks(), r)
	assert.Equal(t, 12, c)

	// Same seed, same draws.
	again, err := DrawShocks(sys, 12, 7)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(shocks, again, 0))

	det, err := Project(sys, z0, 12, nil)
	require.NoError(t, err)
	stoch, err := Project(sys, z0, 12, shocks)
	require.NoError(t, err)
	assert.False(t, mat.EqualApprox(det.States, stoch.States, 1e-10))
}
