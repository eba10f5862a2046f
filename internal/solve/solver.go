// Package solve computes the reduced-form solution of a linear rational
// expectations model
//
//	Gamma0 y_t = Gamma1 y_{t-1} + C + Psi eps_t + Pi eta_t
//
// where eps_t are structural shocks and eta_t are expectational errors. The
// eigensystem of Gamma0^-1 Gamma1 is partitioned into stable and unstable
// roots; the Blanchard-Kahn condition (as many unstable roots as
// expectational errors) decides existence and uniqueness. On success the
// stable solution is returned as
//
//	y_t = T y_{t-1} + C + R eps_t.
package solve

import (
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

// Root modulus threshold separating stable from unstable eigenvalues. Roots
// within tolerance of the unit circle count as stable.
const stabilityThreshold = 1.0 + 1e-6

// Singular values of Gamma0 below this fraction of the largest signal a
// numerically singular system.
const conditionTol = 1e-12

// Imaginary residue above this magnitude after recombining the eigensystem
// means complex pairs failed to cancel.
const imagTol = 1e-6

// StructuralCoefficients are the matrices of the expectational difference
// equation, owned by the model specification and consumed read-only here.
// A nil Pi means the model has no expectational errors (purely
// backward-looking).
type StructuralCoefficients struct {
	Gamma0 *mat.Dense
	Gamma1 *mat.Dense
	Psi    *mat.Dense
	Pi     *mat.Dense
	C      *mat.VecDense
}

// Solution is the reduced-form transition. Immutable once computed.
type Solution struct {
	T *mat.Dense
	R *mat.Dense
	C *mat.VecDense
}

// Solve computes the reduced form for one parameter draw. It is
// deterministic for a given input; callers reject the draw on failure.
func Solve(sc *StructuralCoefficients) (*Solution, error) {
	n, err := validateDims(sc)
	if err != nil {
		return nil, err
	}
	neta := 0
	if sc.Pi != nil {
		_, neta = sc.Pi.Dims()
	}

	// Gamma0 must be well conditioned to form Gamma0^-1 Gamma1.
	var svd mat.SVD
	if !svd.Factorize(sc.Gamma0, mat.SVDNone) {
		return nil, fmt.Errorf("%w: SVD of Gamma0 failed", common.ErrNumericalDegeneracy)
	}
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[n-1] <= conditionTol*sv[0] {
		return nil, fmt.Errorf("%w: Gamma0 is singular to working precision", common.ErrNumericalDegeneracy)
	}

	g0inv, err := invert(sc.Gamma0)
	if err != nil {
		return nil, fmt.Errorf("%w: inverting Gamma0: %v", common.ErrNumericalDegeneracy, err)
	}

	var a, b mat.Dense
	a.Mul(g0inv, sc.Gamma1)
	b.Mul(g0inv, sc.Psi)
	c0 := mat.NewVecDense(n, nil)
	c0.MulVec(g0inv, sc.C)

	var eig mat.Eigen
	if !eig.Factorize(&a, mat.EigenRight) {
		return nil, fmt.Errorf("%w: eigendecomposition failed", common.ErrNumericalDegeneracy)
	}
	vals := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	// Stable roots first, ordered by modulus.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return cmplx.Abs(vals[idx[i]]) < cmplx.Abs(vals[idx[j]])
	})

	nunstab := 0
	for _, i := range idx {
		if cmplx.Abs(vals[i]) > stabilityThreshold {
			nunstab++
		}
	}

	// Blanchard-Kahn counting condition.
	if nunstab > neta {
		return nil, fmt.Errorf("%w: %d unstable roots for %d expectational errors", common.ErrSolutionDoesNotExist, nunstab, neta)
	}
	if nunstab < neta {
		return nil, fmt.Errorf("%w: %d unstable roots for %d expectational errors", common.ErrSolutionNotUnique, nunstab, neta)
	}

	if nunstab == 0 {
		// Purely backward-looking system: the reduced form is immediate.
		return &Solution{T: &a, R: &b, C: c0}, nil
	}

	ns := n - nunstab

	// Ordered eigenvector basis V and its inverse W.
	v := newCDense(n, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			v.set(i, j, vecs.At(i, idx[j]))
		}
	}
	w, ok := cSolve(v, cEye(n))
	if !ok {
		return nil, fmt.Errorf("%w: eigenvector basis is singular", common.ErrNumericalDegeneracy)
	}

	v1 := newCDense(n, ns)
	v1l := newCDense(n, ns)
	for j := 0; j < ns; j++ {
		lambda := vals[idx[j]]
		for i := 0; i < n; i++ {
			v1.set(i, j, v.at(i, j))
			v1l.set(i, j, v.at(i, j)*lambda)
		}
	}
	w1 := newCDense(ns, n)
	w2 := newCDense(nunstab, n)
	for j := 0; j < n; j++ {
		for i := 0; i < ns; i++ {
			w1.set(i, j, w.at(i, j))
		}
		for i := 0; i < nunstab; i++ {
			w2.set(i, j, w.at(ns+i, j))
		}
	}

	// Expectational errors are pinned down by requiring the unstable block to
	// stay at zero: eta_t = -(W2 Gamma0^-1 Pi)^-1 W2 Gamma0^-1 (C + Psi eps_t).
	g0invC := cFromReal(g0inv)
	g0invPi := cMul(g0invC, cFromReal(sc.Pi))
	etawt := cMul(w2, g0invPi)
	phi, ok := cSolve(etawt, cEye(nunstab))
	if !ok {
		return nil, fmt.Errorf("%w: expectational loading W2 Gamma0^-1 Pi is singular", common.ErrNumericalDegeneracy)
	}

	// Effective input map with the unstable directions projected out.
	mtil := cSub(g0invC, cMul(cMul(g0invPi, phi), cMul(w2, g0invC)))

	// Recombine on the stable subspace.
	proj := cMul(cMul(v1, w1), mtil)
	tC := cMul(v1l, w1)
	rC := cMul(proj, cFromReal(sc.Psi))
	cC := cMul(proj, cFromVec(sc.C))

	tOut, imT := realPart(tC)
	rOut, imR := realPart(rC)
	cMat, imC := realPart(cC)
	if imT > imagTol || imR > imagTol || imC > imagTol {
		return nil, fmt.Errorf("%w: complex residue in recombined solution", common.ErrNumericalDegeneracy)
	}

	cOut := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		cOut.SetVec(i, cMat.At(i, 0))
	}

	return &Solution{T: tOut, R: rOut, C: cOut}, nil
}

func validateDims(sc *StructuralCoefficients) (int, error) {
	n, nc := sc.Gamma0.Dims()
	if n != nc {
		return 0, fmt.Errorf("%w: Gamma0 is %dx%d, want square", common.ErrDimensionMismatch, n, nc)
	}
	if r, c := sc.Gamma1.Dims(); r != n || c != n {
		return 0, fmt.Errorf("%w: Gamma1 is %dx%d, want %dx%d", common.ErrDimensionMismatch, r, c, n, n)
	}
	if r, _ := sc.Psi.Dims(); r != n {
		return 0, fmt.Errorf("%w: Psi has %d rows, want %d", common.ErrDimensionMismatch, r, n)
	}
	if sc.Pi != nil {
		if r, _ := sc.Pi.Dims(); r != n {
			return 0, fmt.Errorf("%w: Pi has %d rows, want %d", common.ErrDimensionMismatch, r, n)
		}
	}
	if sc.C.Len() != n {
		return 0, fmt.Errorf("%w: C has length %d, want %d", common.ErrDimensionMismatch, sc.C.Len(), n)
	}
	return n, nil
}

func invert(a *mat.Dense) (*mat.Dense, error) {
	n, _ := a.Dims()
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	var out mat.Dense
	if err := out.Solve(a, eye); err != nil {
		return nil, err
	}
	return &out, nil
}

func cFromVec(v *mat.VecDense) *cdense {
	out := newCDense(v.Len(), 1)
	for i := 0; i < v.Len(); i++ {
		out.set(i, 0, complex(v.AtVec(i), 0))
	}
	return out
}
