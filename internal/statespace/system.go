// Package statespace bundles the transition and measurement matrices of a
// solved model into a single immutable container:
//
//	s_t = T s_{t-1} + C + R eps_t,  eps_t ~ N(0, Q)
//	y_t = Z s_t + D + u_t,          u_t  ~ N(0, E)
//
// with an optional pseudo-observable mapping y'_t = Zpseudo s_t + Dpseudo.
package statespace

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

// System holds the state-space matrices. It is never mutated after
// construction; filter and smoother consume it read-only.
type System struct {
	T       *mat.Dense
	R       *mat.Dense
	C       *mat.VecDense
	Q       *mat.Dense
	Z       *mat.Dense
	D       *mat.VecDense
	E       *mat.Dense
	ZPseudo *mat.Dense
	DPseudo *mat.VecDense
}

// New validates dimension conformance and returns the assembled system.
func New(T, R *mat.Dense, C *mat.VecDense, Q, Z *mat.Dense, D *mat.VecDense, E *mat.Dense) (*System, error) {
	sys := &System{T: T, R: R, C: C, Q: Q, Z: Z, D: D, E: E}
	if err := sys.validate(); err != nil {
		return nil, err
	}
	return sys, nil
}

// WithPseudo attaches a pseudo-observable mapping, validating its dimensions.
func (s *System) WithPseudo(zPseudo *mat.Dense, dPseudo *mat.VecDense) (*System, error) {
	_, zc := zPseudo.Dims()
	if zc != s.NumStates() {
		return nil, fmt.Errorf("%w: Zpseudo has %d columns, system has %d states", common.ErrDimensionMismatch, zc, s.NumStates())
	}
	zr, _ := zPseudo.Dims()
	if dPseudo.Len() != zr {
		return nil, fmt.Errorf("%w: Dpseudo has length %d, Zpseudo has %d rows", common.ErrDimensionMismatch, dPseudo.Len(), zr)
	}

	out := *s
	out.ZPseudo = zPseudo
	out.DPseudo = dPseudo
	return &out, nil
}

func (s *System) validate() error {
	tr, tc := s.T.Dims()
	if tr != tc {
		return fmt.Errorf("%w: transition matrix is %dx%d, want square", common.ErrDimensionMismatch, tr, tc)
	}

	rr, rc := s.R.Dims()
	if rr != tr {
		return fmt.Errorf("%w: shock loading has %d rows, transition has %d", common.ErrDimensionMismatch, rr, tr)
	}
	if s.C.Len() != tr {
		return fmt.Errorf("%w: constant has length %d, transition has %d rows", common.ErrDimensionMismatch, s.C.Len(), tr)
	}

	qr, qc := s.Q.Dims()
	if qr != rc || qc != rc {
		return fmt.Errorf("%w: shock covariance is %dx%d, want %dx%d", common.ErrDimensionMismatch, qr, qc, rc, rc)
	}

	zr, zc := s.Z.Dims()
	if zc != tr {
		return fmt.Errorf("%w: observation loading has %d columns, transition has %d rows", common.ErrDimensionMismatch, zc, tr)
	}
	if s.D.Len() != zr {
		return fmt.Errorf("%w: observation constant has length %d, loading has %d rows", common.ErrDimensionMismatch, s.D.Len(), zr)
	}

	er, ec := s.E.Dims()
	if er != zr || ec != zr {
		return fmt.Errorf("%w: measurement error covariance is %dx%d, want %dx%d", common.ErrDimensionMismatch, er, ec, zr, zr)
	}

	return nil
}

// NumStates returns the state dimension.
func (s *System) NumStates() int {
	r, _ := s.T.Dims()
	return r
}

// NumShocks returns the structural shock dimension.
func (s *System) NumShocks() int {
	_, c := s.R.Dims()
	return c
}

// NumObservables returns the observable dimension.
func (s *System) NumObservables() int {
	r, _ := s.Z.Dims()
	return r
}

// NumPseudo returns the pseudo-observable dimension, zero when undefined.
func (s *System) NumPseudo() int {
	if s.ZPseudo == nil {
		return 0
	}
	r, _ := s.ZPseudo.Dims()
	return r
}

// HasPseudo reports whether the pseudo-observable mapping is defined.
func (s *System) HasPseudo() bool {
	return s.ZPseudo != nil && s.DPseudo != nil
}

// RQR returns R Q R', the state-equation innovation covariance.
func (s *System) RQR() *mat.Dense {
	var rq, rqr mat.Dense
	rq.Mul(s.R, s.Q)
	rqr.Mul(&rq, s.R.T())
	return &rqr
}
