package testutil

import (
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/stretchr/testify/require"

	"github.com/statespace/dsgefc/internal/model"
	"github.com/statespace/dsgefc/internal/statespace"
)

// NewTestSystem returns a stationary 2-state, 3-observable system. The third
// observable loads the average of both states so partially missing rows
// still identify the states.
func NewTestSystem(t *testing.T) *statespace.System {
	t.Helper()

	T := mat.NewDense(2, 2, []float64{
		0.9, 0.0,
		0.1, 0.6,
	})
	R := mat.NewDense(2, 2, []float64{
		1.0, 0.0,
		0.0, 1.0,
	})
	C := mat.NewVecDense(2, []float64{0.1, 0.0})
	Q := mat.NewDense(2, 2, []float64{
		0.04, 0.0,
		0.0, 0.01,
	})
	Z := mat.NewDense(3, 2, []float64{
		1.0, 0.0,
		0.0, 1.0,
		0.5, 0.5,
	})
	D := mat.NewVecDense(3, []float64{0.0, 0.2, 0.0})
	E := mat.NewDense(3, 3, []float64{
		0.01, 0.0, 0.0,
		0.0, 0.01, 0.0,
		0.0, 0.0, 0.01,
	})

	sys, err := statespace.New(T, R, C, Q, Z, D, E)
	require.NoError(t, err)
	return sys
}

// SimulateDataset runs the system forward under drawn shocks and returns the
// observed dataset plus the true state path (states x periods).
func SimulateDataset(t *testing.T, sys *statespace.System, periods int, seed uint64) (*model.Dataset, *mat.Dense) {
	t.Helper()

	src := rand.NewSource(seed)
	std := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	ns := sys.NumStates()
	ny := sys.NumObservables()
	nshocks := sys.NumShocks()

	states := mat.NewDense(ns, periods, nil)
	y := mat.NewDense(ny, periods, nil)

	z := mat.NewVecDense(ns, nil)
	for tt := 0; tt < periods; tt++ {
		next := mat.NewVecDense(ns, nil)
		next.MulVec(sys.T, z)
		next.AddVec(next, sys.C)
		for j := 0; j < nshocks; j++ {
			eps := std.Rand() * math.Sqrt(sys.Q.At(j, j))
			for i := 0; i < ns; i++ {
				next.SetVec(i, next.AtVec(i)+sys.R.At(i, j)*eps)
			}
		}
		for i := 0; i < ns; i++ {
			states.Set(i, tt, next.AtVec(i))
		}

		for i := 0; i < ny; i++ {
			v := sys.D.AtVec(i)
			for j := 0; j < ns; j++ {
				v += sys.Z.At(i, j) * next.AtVec(j)
			}
			v += std.Rand() * math.Sqrt(sys.E.At(i, i))
			y.Set(i, tt, v)
		}
		z = next
	}

	names := make([]string, ny)
	for i := range names {
		names[i] = fmt.Sprintf("obs%d", i+1)
	}
	data, err := model.NewDataset(names, y)
	require.NoError(t, err)
	return data, states
}
