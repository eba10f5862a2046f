package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

// Dataset holds an observables-by-time data matrix. Rows are observed series,
// columns are periods. NaN marks a missing observation.
type Dataset struct {
	Y      *mat.Dense
	Series []string
}

// NewDataset validates that the series names match the matrix rows.
func NewDataset(series []string, y *mat.Dense) (*Dataset, error) {
	r, _ := y.Dims()
	if len(series) != r {
		return nil, fmt.Errorf("%w: %d series names for %d data rows", common.ErrDimensionMismatch, len(series), r)
	}
	return &Dataset{Series: series, Y: y}, nil
}

// Observables returns the number of observed series.
func (d *Dataset) Observables() int {
	r, _ := d.Y.Dims()
	return r
}

// Periods returns the number of time periods.
func (d *Dataset) Periods() int {
	_, c := d.Y.Dims()
	return c
}

// ObservedRows returns the row indices with non-missing values at period t.
func (d *Dataset) ObservedRows(t int) []int {
	rows := make([]int, 0, d.Observables())
	for i := 0; i < d.Observables(); i++ {
		if !math.IsNaN(d.Y.At(i, t)) {
			rows = append(rows, i)
		}
	}
	return rows
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	series := make([]string, len(d.Series))
	copy(series, d.Series)
	return &Dataset{Series: series, Y: mat.DenseCopyOf(d.Y)}
}

// AppendPeriods returns a copy of the dataset with extra trailing time
// columns. Conditioning adds future periods, never new series.
func (d *Dataset) AppendPeriods(extra *mat.Dense) (*Dataset, error) {
	er, ec := extra.Dims()
	if er != d.Observables() {
		return nil, fmt.Errorf("%w: appended periods have %d rows, dataset has %d", common.ErrDimensionMismatch, er, d.Observables())
	}

	n := d.Observables()
	out := mat.NewDense(n, d.Periods()+ec, nil)
	for i := 0; i < n; i++ {
		for t := 0; t < d.Periods(); t++ {
			out.Set(i, t, d.Y.At(i, t))
		}
		for t := 0; t < ec; t++ {
			out.Set(i, d.Periods()+t, extra.At(i, t))
		}
	}

	series := make([]string, len(d.Series))
	copy(series, d.Series)
	return &Dataset{Series: series, Y: out}, nil
}
