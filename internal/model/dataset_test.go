package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	y := mat.NewDense(2, 3, []float64{
		1.0, math.NaN(), 3.0,
		4.0, math.NaN(), math.NaN(),
	})
	d, err := NewDataset([]string{"gdp", "inflation"}, y)
	require.NoError(t, err)
	return d
}

func TestNewDatasetValidation(t *testing.T) {
	_, err := NewDataset([]string{"gdp"}, mat.NewDense(2, 3, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDimensionMismatch)
}

func TestObservedRows(t *testing.T) {
	d := newTestDataset(t)

	assert.Equal(t, []int{0, 1}, d.ObservedRows(0))
	assert.Empty(t, d.ObservedRows(1))
	assert.Equal(t, []int{0}, d.ObservedRows(2))
}

func TestCloneIsIndependent(t *testing.T) {
	d := newTestDataset(t)
	c := d.Clone()

	c.Y.Set(0, 0, 99)
	assert.Equal(t, 1.0, d.Y.At(0, 0))
	assert.Equal(t, d.Series, c.Series)
}

func TestAppendPeriods(t *testing.T) {
	d := newTestDataset(t)

	extra := mat.NewDense(2, 2, []float64{
		5.0, math.NaN(),
		math.NaN(), math.NaN(),
	})
	out, err := d.AppendPeriods(extra)
	require.NoError(t, err)

	assert.Equal(t, 5, out.Periods())
	assert.Equal(t, 3, d.Periods(), "original untouched")
	assert.Equal(t, 5.0, out.Y.At(0, 3))
	assert.True(t, math.IsNaN(out.Y.At(1, 4)))

	_, err = d.AppendPeriods(mat.NewDense(3, 1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDimensionMismatch)
}
