package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
)

const (
	lyapunovMaxIter = 60
	lyapunovTol     = 1e-12
)

// Lyapunov solves the discrete Lyapunov equation P = T P T' + Q by the
// doubling iteration. It requires a stable T (spectral radius below one);
// divergence is reported as numerical degeneracy.
func Lyapunov(t, q *mat.Dense) (*mat.Dense, error) {
	n, _ := t.Dims()

	p := mat.DenseCopyOf(q)
	a := mat.DenseCopyOf(t)

	for iter := 0; iter < lyapunovMaxIter; iter++ {
		// P_{k+1} = P_k + A_k P_k A_k'
		var ap, apa mat.Dense
		ap.Mul(a, p)
		apa.Mul(&ap, a.T())

		delta := mat.Norm(&apa, 1)
		p.Add(p, &apa)

		var aa mat.Dense
		aa.Mul(a, a)
		a = &aa

		if delta < lyapunovTol {
			symmetrize(p)
			return p, nil
		}

		if delta > 1e12 {
			break
		}
	}

	return nil, fmt.Errorf("%w: Lyapunov iteration did not converge for a %dx%d transition", common.ErrNumericalDegeneracy, n, n)
}
