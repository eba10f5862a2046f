// Package service defines the interfaces between the numerical core and its
// external collaborators: the model specification and the persistence layer.
package service

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/model"
	"github.com/statespace/dsgefc/internal/solve"
	"github.com/statespace/dsgefc/internal/statespace"
)

// ModelSpec supplies the structural and measurement matrices for a parameter
// vector. Implementations live outside the numerical core.
type ModelSpec interface {
	// Name identifies the model in artifact metadata and logs.
	Name() string

	// StructuralCoefficients maps a parameter vector to the matrices of the
	// expectational difference equation.
	StructuralCoefficients(params []float64) (*solve.StructuralCoefficients, error)

	// Measurement maps a parameter vector and a reduced-form solution to the
	// measurement-equation matrices.
	Measurement(params []float64, sol *solve.Solution) (*statespace.Measurement, error)
}

// Store is the persistence layer: parameter draws in, forecast artifacts
// out. Each artifact is uniquely keyed, so concurrent writers never race on
// the same record.
type Store interface {
	// SaveDraws persists parameter draws (with any attached systems and
	// terminal states) under an input type.
	SaveDraws(ctx context.Context, input model.InputType, draws []model.ParameterDraw) error

	// LoadDraws returns every draw stored under an input type, in draw-ID
	// order. Mode and mean input types hold exactly one draw.
	LoadDraws(ctx context.Context, input model.InputType) ([]model.ParameterDraw, error)

	// PutArtifact persists one named matrix.
	PutArtifact(ctx context.Context, key string, m *mat.Dense) error

	// GetArtifact retrieves a previously persisted matrix.
	GetArtifact(ctx context.Context, key string) (*mat.Dense, error)

	// ListArtifacts returns every artifact key with the given prefix.
	ListArtifacts(ctx context.Context, prefix string) ([]string, error)

	Close() error
}
