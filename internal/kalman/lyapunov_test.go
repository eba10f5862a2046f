package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

func TestLyapunovScalar(t *testing.T) {
	// For scalar rho, q the fixed point is q / (1 - rho^2).
	p, err := Lyapunov(mat.NewDense(1, 1, []float64{0.9}), mat.NewDense(1, 1, []float64{0.19}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.At(0, 0), 1e-10)
}

func TestLyapunovFixedPoint(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{0.8, 0.1, 0.0, 0.5})
	q := mat.NewDense(2, 2, []float64{0.2, 0.05, 0.05, 0.1})

	p, err := Lyapunov(a, q)
	require.NoError(t, err)

	// P = A P A' + Q.
	var apa mat.Dense
	apa.Mul(a, p)
	apa.Mul(&apa, a.T())
	apa.Add(&apa, q)
	assert.True(t, mat.EqualApprox(p, &apa, 1e-10))

	// Symmetric by construction.
	assert.InDelta(t, p.At(0, 1), p.At(1, 0), 1e-12)
}

func TestLyapunovDiverges(t *testing.T) {
	_, err := Lyapunov(mat.NewDense(1, 1, []float64{1.1}), mat.NewDense(1, 1, []float64{1.0}))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNumericalDegeneracy)
}
