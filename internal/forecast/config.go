// Package forecast orchestrates the full pipeline for a batch of parameter
// draws: system computation, conditional data, filtering, smoothing,
// projection, and decomposition, with artifacts persisted per output type.
package forecast

import (
	"fmt"
	"runtime"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/conditional"
)

// SmootherType selects which smoother backs the historical outputs.
type SmootherType string

// Smoother constants.
const (
	SmootherDurbinKoopman SmootherType = "durbin_koopman"
	SmootherClassical     SmootherType = "classical"
)

// Config holds every engine setting. Zero values get sensible defaults from
// Validate.
type Config struct {
	// Horizon is the number of forecast periods beyond the data.
	Horizon int

	// Presample is the number of warm-up periods excluded from the
	// likelihood.
	Presample int

	// Smoother picks the smoothing recursion. Defaults to Durbin-Koopman.
	Smoother SmootherType

	// Pseudo requests smoothed pseudo-observables where the system carries
	// a pseudo mapping.
	Pseudo bool

	// ShockDraws enables stochastic forecast simulation: future shocks are
	// drawn from their distribution instead of being set to zero.
	ShockDraws bool

	// Seed feeds the shock generator. Each draw offsets it by its ID so
	// results do not depend on scheduling order.
	Seed uint64

	// Workers caps batch parallelism. Zero means one worker per CPU.
	Workers int

	// SubsetStart and SubsetEnd bound the contiguous draw-ID range used by
	// the subset input type (inclusive start, exclusive end).
	SubsetStart int
	SubsetEnd   int

	// CounterShocks lists the shock rows zeroed in the counterfactual
	// history replay. Empty means zero all shocks.
	CounterShocks []int

	// Conditional configures the nowcast periods for semi and full
	// conditioning.
	Conditional conditional.Config
}

// Validate normalizes defaults and rejects malformed settings.
func (c *Config) Validate() error {
	if c.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %d", common.ErrInvalidConfig, c.Horizon)
	}
	if c.Presample < 0 {
		return fmt.Errorf("%w: presample cannot be negative, got %d", common.ErrInvalidConfig, c.Presample)
	}
	if c.Smoother == "" {
		c.Smoother = SmootherDurbinKoopman
	}
	if c.Smoother != SmootherDurbinKoopman && c.Smoother != SmootherClassical {
		return fmt.Errorf("%w: smoother %q", common.ErrInvalidEnumValue, c.Smoother)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.SubsetEnd < c.SubsetStart {
		return fmt.Errorf("%w: subset range [%d, %d) is empty", common.ErrInvalidConfig, c.SubsetStart, c.SubsetEnd)
	}
	return nil
}
