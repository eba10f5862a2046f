package statespace

import "gonum.org/v1/gonum/mat"

// Measurement holds the model-specific measurement-equation matrices supplied
// by a model specification: observation loading Z, constant D, structural
// shock covariance Q, measurement error covariance E, and the optional
// pseudo-observable mapping.
type Measurement struct {
	Z       *mat.Dense
	D       *mat.VecDense
	Q       *mat.Dense
	E       *mat.Dense
	ZPseudo *mat.Dense
	DPseudo *mat.VecDense
}
