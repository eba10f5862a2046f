package solve

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Small complex linear algebra helpers. The eigenvector basis of a general
// real matrix is complex, and gonum's mat package has no complex solver, so
// the factorization is done here directly.

type cdense struct {
	data []complex128
	r, c int
}

func newCDense(r, c int) *cdense {
	return &cdense{data: make([]complex128, r*c), r: r, c: c}
}

func (m *cdense) at(i, j int) complex128     { return m.data[i*m.c+j] }
func (m *cdense) set(i, j int, v complex128) { m.data[i*m.c+j] = v }

func cEye(n int) *cdense {
	m := newCDense(n, n)
	for i := 0; i < n; i++ {
		m.set(i, i, 1)
	}
	return m
}

func cFromReal(a *mat.Dense) *cdense {
	r, c := a.Dims()
	m := newCDense(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.set(i, j, complex(a.At(i, j), 0))
		}
	}
	return m
}

func cMul(a, b *cdense) *cdense {
	out := newCDense(a.r, b.c)
	for i := 0; i < a.r; i++ {
		for k := 0; k < a.c; k++ {
			aik := a.at(i, k)
			if aik == 0 {
				continue
			}
			for j := 0; j < b.c; j++ {
				out.set(i, j, out.at(i, j)+aik*b.at(k, j))
			}
		}
	}
	return out
}

func cSub(a, b *cdense) *cdense {
	out := newCDense(a.r, a.c)
	for i := range out.data {
		out.data[i] = a.data[i] - b.data[i]
	}
	return out
}

// cSolve solves A X = B by LU factorization with partial pivoting. It
// reports ok=false when a pivot is numerically zero.
func cSolve(a, b *cdense) (*cdense, bool) {
	n := a.r
	lu := newCDense(n, n)
	copy(lu.data, a.data)
	x := newCDense(b.r, b.c)
	copy(x.data, b.data)

	const pivotTol = 1e-14

	for k := 0; k < n; k++ {
		// Partial pivot on the largest remaining modulus.
		p := k
		pmax := cmplx.Abs(lu.at(k, k))
		for i := k + 1; i < n; i++ {
			if v := cmplx.Abs(lu.at(i, k)); v > pmax {
				p, pmax = i, v
			}
		}
		if pmax < pivotTol {
			return nil, false
		}
		if p != k {
			for j := 0; j < n; j++ {
				tmp := lu.at(k, j)
				lu.set(k, j, lu.at(p, j))
				lu.set(p, j, tmp)
			}
			for j := 0; j < x.c; j++ {
				tmp := x.at(k, j)
				x.set(k, j, x.at(p, j))
				x.set(p, j, tmp)
			}
		}

		for i := k + 1; i < n; i++ {
			f := lu.at(i, k) / lu.at(k, k)
			lu.set(i, k, f)
			for j := k + 1; j < n; j++ {
				lu.set(i, j, lu.at(i, j)-f*lu.at(k, j))
			}
			for j := 0; j < x.c; j++ {
				x.set(i, j, x.at(i, j)-f*x.at(k, j))
			}
		}
	}

	// Back substitution.
	for j := 0; j < x.c; j++ {
		for i := n - 1; i >= 0; i-- {
			sum := x.at(i, j)
			for k := i + 1; k < n; k++ {
				sum -= lu.at(i, k) * x.at(k, j)
			}
			x.set(i, j, sum/lu.at(i, i))
		}
	}

	return x, true
}

// realPart extracts the real part of a complex matrix, returning the largest
// imaginary magnitude seen so callers can detect a failed cancellation.
func realPart(a *cdense) (*mat.Dense, float64) {
	out := mat.NewDense(a.r, a.c, nil)
	maxImag := 0.0
	for i := 0; i < a.r; i++ {
		for j := 0; j < a.c; j++ {
			v := a.at(i, j)
			out.Set(i, j, real(v))
			if im := imagAbs(v); im > maxImag {
				maxImag = im
			}
		}
	}
	return out, maxImag
}

func imagAbs(v complex128) float64 {
	im := imag(v)
	if im < 0 {
		return -im
	}
	return im
}
