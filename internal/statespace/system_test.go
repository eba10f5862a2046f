package statespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

func validSystem(t *testing.T) *System {
	t.Helper()
	sys, err := New(
		mat.NewDense(2, 2, []float64{0.9, 0, 0, 0.5}),
		mat.NewDense(2, 1, []float64{1, 0.3}),
		mat.NewVecDense(2, nil),
		mat.NewDense(1, 1, []float64{0.04}),
		mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0.5, 0.5}),
		mat.NewVecDense(3, nil),
		mat.NewDense(3, 3, []float64{0.01, 0, 0, 0, 0.01, 0, 0, 0, 0.01}),
	)
	require.NoError(t, err)
	return sys
}

func TestSystemDimensions(t *testing.T) {
	sys := validSystem(t)

	assert.Equal(t, 2, sys.NumStates())
	assert.Equal(t, 1, sys.NumShocks())
	assert.Equal(t, 3, sys.NumObservables())
	assert.False(t, sys.HasPseudo())
	assert.Equal(t, 0, sys.NumPseudo())
}

func TestSystemValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(T, R *mat.Dense, C *mat.VecDense, Q, Z *mat.Dense, D *mat.VecDense, E *mat.Dense) (*mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense)
	}{
		{
			name: "non-square transition",
			mutate: func(T, R *mat.Dense, C *mat.VecDense, Q, Z *mat.Dense, D *mat.VecDense, E *mat.Dense) (*mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense) {
				return mat.NewDense(2, 3, nil), R, C, Q, Z, D, E
			},
		},
		{
			name: "shock loading row mismatch",
			mutate: func(T, R *mat.Dense, C *mat.VecDense, Q, Z *mat.Dense, D *mat.VecDense, E *mat.Dense) (*mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense) {
				return T, mat.NewDense(3, 1, nil), C, Q, Z, D, E
			},
		},
		{
			name: "shock covariance mismatch",
			mutate: func(T, R *mat.Dense, C *mat.VecDense, Q, Z *mat.Dense, D *mat.VecDense, E *mat.Dense) (*mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense) {
				return T, R, C, mat.NewDense(2, 2, nil), Z, D, E
			},
		},
		{
			name: "observation constant mismatch",
			mutate: func(T, R *mat.Dense, C *mat.VecDense, Q, Z *mat.Dense, D *mat.VecDense, E *mat.Dense) (*mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense, *mat.Dense, *mat.VecDense, *mat.Dense) {
				return T, R, C, Q, Z, mat.NewVecDense(2, nil), E
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			T := mat.NewDense(2, 2, []float64{0.9, 0, 0, 0.5})
			R := mat.NewDense(2, 1, []float64{1, 0.3})
			C := mat.NewVecDense(2, nil)
			Q := mat.NewDense(1, 1, []float64{0.04})
			Z := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0.5, 0.5})
			D := mat.NewVecDense(3, nil)
			E := mat.NewDense(3, 3, nil)

			_, err := New(tt.mutate(T, R, C, Q, Z, D, E))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrDimensionMismatch)
		})
	}
}

func TestSystemWithPseudo(t *testing.T) {
	sys := validSystem(t)

	withPseudo, err := sys.WithPseudo(mat.NewDense(1, 2, []float64{1, 1}), mat.NewVecDense(1, nil))
	require.NoError(t, err)
	assert.True(t, withPseudo.HasPseudo())
	assert.Equal(t, 1, withPseudo.NumPseudo())

	_, err = sys.WithPseudo(mat.NewDense(1, 3, nil), mat.NewVecDense(1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDimensionMismatch)
}

func TestRQR(t *testing.T) {
	sys := validSystem(t)
	rqr := sys.RQR()

	// R Q R' for R = [1, 0.3]' and Q = 0.04.
	assert.InDelta(t, 0.04, rqr.At(0, 0), 1e-12)
	assert.InDelta(t, 0.012, rqr.At(0, 1), 1e-12)
	assert.InDelta(t, 0.012, rqr.At(1, 0), 1e-12)
	assert.InDelta(t, 0.0036, rqr.At(1, 1), 1e-12)
}
