package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/testutil"
)

func TestFilterAndSmoothScenario(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 10, 9)

	fout, err := Run(sys, data, Options{})
	require.NoError(t, err)
	sm, err := DurbinKoopman(sys, data, fout, SmootherOptions{})
	require.NoError(t, err)

	r, c := sm.States.Dims()
	assert.Equal(t, sys.NumStates(), r)
	assert.Equal(t, 10, c)
	assert.GreaterOrEqual(t, fout.AllLogLik, fout.LogLik,
		"the full-sample likelihood covers at least the post-presample periods")
}

func TestSmootherAgreement(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 120, 13)

	// Punch a few holes so the missing-data paths are exercised too.
	data.Y.Set(1, 30, math.NaN())
	for i := 0; i < data.Observables(); i++ {
		data.Y.Set(i, 60, math.NaN())
	}

	out, err := Run(sys, data, Options{})
	require.NoError(t, err)

	classical, err := Classical(sys, data, out, SmootherOptions{})
	require.NoError(t, err)
	dk, err := DurbinKoopman(sys, data, out, SmootherOptions{})
	require.NoError(t, err)

	// Both recursions compute the same conditional expectation.
	assert.True(t, mat.EqualApprox(classical.States, dk.States, 1e-6),
		"classical and Durbin-Koopman smoothed states must agree")

	// Shocks agree from period 1 on; the period-0 innovation absorbs the
	// initial-state revision differently under the two conventions.
	nshocks := sys.NumShocks()
	nper := out.Periods()
	assert.True(t, mat.EqualApprox(
		classical.ShocksNS.Slice(0, nshocks, 1, nper),
		dk.ShocksNS.Slice(0, nshocks, 1, nper), 1e-6))
}

func TestSmoothedStatesSatisfyTransition(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 80, 17)

	out, err := Run(sys, data, Options{})
	require.NoError(t, err)
	sm, err := DurbinKoopman(sys, data, out, SmootherOptions{})
	require.NoError(t, err)

	// s_t = T s_{t-1} + C + R eps_t for the smoothed path.
	ns := sys.NumStates()
	for tt := 1; tt < out.Periods(); tt++ {
		for i := 0; i < ns; i++ {
			want := sys.C.AtVec(i)
			for j := 0; j < ns; j++ {
				want += sys.T.At(i, j) * sm.States.At(j, tt-1)
			}
			for j := 0; j < sys.NumShocks(); j++ {
				want += sys.R.At(i, j) * sm.ShocksNS.At(j, tt)
			}
			assert.InDelta(t, want, sm.States.At(i, tt), 1e-8, "period %d state %d", tt, i)
		}
	}
}

func TestSmoothedShockStandardization(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 50, 19)

	out, err := Run(sys, data, Options{})
	require.NoError(t, err)
	sm, err := DurbinKoopman(sys, data, out, SmootherOptions{})
	require.NoError(t, err)

	for j := 0; j < sys.NumShocks(); j++ {
		sd := math.Sqrt(sys.Q.At(j, j))
		for tt := 0; tt < out.Periods(); tt++ {
			assert.InDelta(t, sm.ShocksNS.At(j, tt)/sd, sm.Shocks.At(j, tt), 1e-10)
		}
	}
}

func TestSmootherPseudoObservables(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 30, 23)

	out, err := Run(sys, data, Options{})
	require.NoError(t, err)

	// Requesting pseudo-observables without a mapping is an error.
	_, err = DurbinKoopman(sys, data, out, SmootherOptions{Pseudo: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingSystemMatrix)

	zp := mat.NewDense(1, 2, []float64{1, 1})
	dp := mat.NewVecDense(1, []float64{0.5})
	withPseudo, err := sys.WithPseudo(zp, dp)
	require.NoError(t, err)

	sm, err := DurbinKoopman(withPseudo, data, out, SmootherOptions{Pseudo: true})
	require.NoError(t, err)
	require.NotNil(t, sm.Pseudo)

	for tt := 0; tt < out.Periods(); tt++ {
		want := sm.States.At(0, tt) + sm.States.At(1, tt) + 0.5
		assert.InDelta(t, want, sm.Pseudo.At(0, tt), 1e-10)
	}
}

func TestSmootherHistoryMismatch(t *testing.T) {
	sys := testutil.NewTestSystem(t)
	data, _ := testutil.SimulateDataset(t, sys, 40, 29)

	// A presample-trimmed history no longer lines up with the data.
	out, err := Run(sys, data, Options{Presample: 5})
	require.NoError(t, err)

	_, err = Classical(sys, data, out, SmootherOptions{})
	require.Error(t, err)
	_, err = DurbinKoopman(sys, data, out, SmootherOptions{})
	require.Error(t, err)
}
