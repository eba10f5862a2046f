// Package armodel provides a small autoregressive model specification. Each
// state follows an independent AR(1) with its own persistence, constant, and
// shock variance; observables load either one state directly or the average
// of all states. It is the built-in model for the command-line tools and a
// fixture for exercising the full pipeline.
package armodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/solve"
	"github.com/statespace/dsgefc/internal/statespace"
)

// Model is an n-state AR(1) system with m observables. The parameter vector
// is laid out as [rho_1..rho_n, c_1..c_n, q_1..q_n, e_1..e_m]: persistences,
// constants, shock variances, measurement error variances.
type Model struct {
	states int
	obs    int
	pseudo bool
}

// New builds a model with the given dimensions. Observables beyond the state
// count load the average of all states. When pseudo is set the model also
// maps a pseudo-observable equal to the sum of the states.
func New(states, obs int, pseudo bool) (*Model, error) {
	if states <= 0 || obs <= 0 {
		return nil, fmt.Errorf("%w: need positive dimensions, got %d states and %d observables",
			common.ErrInvalidConfig, states, obs)
	}
	return &Model{states: states, obs: obs, pseudo: pseudo}, nil
}

// Name identifies the model in artifact metadata and logs.
func (m *Model) Name() string {
	return fmt.Sprintf("ar%dx%d", m.states, m.obs)
}

// NumParams returns the expected parameter vector length.
func (m *Model) NumParams() int {
	return 3*m.states + m.obs
}

// StructuralCoefficients maps a parameter vector to the expectational
// difference equation. The model is purely backward-looking, so the
// expectational loading Pi is nil.
func (m *Model) StructuralCoefficients(params []float64) (*solve.StructuralCoefficients, error) {
	if err := m.checkParams(params); err != nil {
		return nil, err
	}
	n := m.states

	g0 := mat.NewDense(n, n, nil)
	g1 := mat.NewDense(n, n, nil)
	psi := mat.NewDense(n, n, nil)
	c := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		g0.Set(i, i, 1)
		g1.Set(i, i, params[i])
		psi.Set(i, i, 1)
		c.SetVec(i, params[n+i])
	}

	return &solve.StructuralCoefficients{
		Gamma0: g0,
		Gamma1: g1,
		Psi:    psi,
		C:      c,
	}, nil
}

// Measurement maps a parameter vector to the measurement equation. The
// reduced-form solution is not needed here: observation loadings are fixed
// by the model's dimensions.
func (m *Model) Measurement(params []float64, _ *solve.Solution) (*statespace.Measurement, error) {
	if err := m.checkParams(params); err != nil {
		return nil, err
	}
	n, ny := m.states, m.obs

	z := mat.NewDense(ny, n, nil)
	for i := 0; i < ny; i++ {
		if i < n {
			z.Set(i, i, 1)
			continue
		}
		for j := 0; j < n; j++ {
			z.Set(i, j, 1/float64(n))
		}
	}

	q := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		q.Set(i, i, params[2*n+i])
	}
	e := mat.NewDense(ny, ny, nil)
	for i := 0; i < ny; i++ {
		e.Set(i, i, params[3*n+i])
	}

	meas := &statespace.Measurement{
		Z: z,
		D: mat.NewVecDense(ny, nil),
		Q: q,
		E: e,
	}
	if m.pseudo {
		zp := mat.NewDense(1, n, nil)
		for j := 0; j < n; j++ {
			zp.Set(0, j, 1)
		}
		meas.ZPseudo = zp
		meas.DPseudo = mat.NewVecDense(1, nil)
	}
	return meas, nil
}

func (m *Model) checkParams(params []float64) error {
	if len(params) != m.NumParams() {
		return fmt.Errorf("%w: got %d parameters, want %d", common.ErrInvalidConfig, len(params), m.NumParams())
	}
	n := m.states
	for i := 0; i < n; i++ {
		if math.Abs(params[i]) >= 1 {
			return fmt.Errorf("%w: persistence %d is %g, must lie inside the unit circle",
				common.ErrInvalidConfig, i, params[i])
		}
	}
	for i := 2 * n; i < len(params); i++ {
		if params[i] < 0 {
			return fmt.Errorf("%w: variance parameter %d is negative", common.ErrInvalidConfig, i)
		}
	}
	return nil
}
