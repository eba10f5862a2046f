package armodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/solve"
)

func TestModelSolvesToDiagonalTransition(t *testing.T) {
	m, err := New(2, 3, false)
	require.NoError(t, err)
	require.Equal(t, 9, m.NumParams())

	params := []float64{0.9, 0.6, 0.1, -0.2, 0.04, 0.01, 0.01, 0.01, 0.01}
	sc, err := m.StructuralCoefficients(params)
	require.NoError(t, err)

	sol, err := solve.Solve(sc)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, sol.T.At(0, 0), 1e-12)
	assert.InDelta(t, 0.6, sol.T.At(1, 1), 1e-12)
	assert.InDelta(t, 0, sol.T.At(0, 1), 1e-12)
	assert.InDelta(t, 0.1, sol.C.AtVec(0), 1e-12)
	assert.InDelta(t, -0.2, sol.C.AtVec(1), 1e-12)
}

func TestModelMeasurement(t *testing.T) {
	m, err := New(2, 3, true)
	require.NoError(t, err)

	params := []float64{0.9, 0.6, 0.1, 0.0, 0.04, 0.01, 0.01, 0.02, 0.03}
	meas, err := m.Measurement(params, nil)
	require.NoError(t, err)

	// First two observables load their state directly; the third averages.
	assert.Equal(t, 1.0, meas.Z.At(0, 0))
	assert.Equal(t, 1.0, meas.Z.At(1, 1))
	assert.Equal(t, 0.5, meas.Z.At(2, 0))
	assert.Equal(t, 0.5, meas.Z.At(2, 1))

	assert.Equal(t, 0.04, meas.Q.At(0, 0))
	assert.Equal(t, 0.03, meas.E.At(2, 2))

	require.NotNil(t, meas.ZPseudo)
	assert.Equal(t, 1.0, meas.ZPseudo.At(0, 0))
	assert.Equal(t, 1.0, meas.ZPseudo.At(0, 1))
}

func TestModelParamValidation(t *testing.T) {
	m, err := New(2, 3, false)
	require.NoError(t, err)

	tests := []struct {
		name   string
		params []float64
	}{
		{name: "wrong length", params: []float64{0.9}},
		{name: "explosive persistence", params: []float64{1.0, 0.6, 0, 0, 0.04, 0.01, 0.01, 0.01, 0.01}},
		{name: "negative variance", params: []float64{0.9, 0.6, 0, 0, -0.04, 0.01, 0.01, 0.01, 0.01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.StructuralCoefficients(tt.params)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}

	_, err = New(0, 3, false)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
