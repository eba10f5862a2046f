// Package conditional extends an observed dataset with nowcast periods for
// conditional forecasting. Conditioning appends trailing time columns; it
// never adds series.
package conditional

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/model"
)

// Config describes the conditional periods available for the current
// forecast origin.
type Config struct {
	// QuarterToDate maps a series row to its quarter-to-date high-frequency
	// readings. Their simple average becomes the first conditional period
	// for series eligible under semi conditioning.
	QuarterToDate map[int][]float64

	// Nowcasts maps a series row to externally supplied values for each
	// conditional period. Used only under full conditioning.
	Nowcasts map[int][]float64

	// SemiSeries lists the rows eligible for semi conditioning.
	SemiSeries []int

	// Periods is the number of conditional periods to append.
	Periods int
}

// Build returns the dataset extended according to the conditioning type.
// CondNone returns an untouched copy.
func Build(data *model.Dataset, ct model.CondType, cfg Config) (*model.Dataset, error) {
	switch ct {
	case model.CondNone:
		return data.Clone(), nil
	case model.CondSemi, model.CondFull:
	default:
		return nil, fmt.Errorf("%w: conditioning type %q", common.ErrInvalidEnumValue, ct)
	}

	if cfg.Periods <= 0 {
		return nil, fmt.Errorf("%w: conditional periods must be positive, got %d", common.ErrInvalidConfig, cfg.Periods)
	}

	n := data.Observables()
	extra := mat.NewDense(n, cfg.Periods, nil)
	for i := 0; i < n; i++ {
		for t := 0; t < cfg.Periods; t++ {
			extra.Set(i, t, math.NaN())
		}
	}

	// Semi: quarter-to-date averages for eligible series, first period only.
	for _, row := range cfg.SemiSeries {
		if row < 0 || row >= n {
			return nil, fmt.Errorf("%w: semi-conditional series %d outside [0, %d)", common.ErrInvalidConfig, row, n)
		}
		readings := cfg.QuarterToDate[row]
		if len(readings) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range readings {
			sum += v
		}
		extra.Set(row, 0, sum/float64(len(readings)))
	}

	// Full: additionally fill supplied nowcast values.
	if ct == model.CondFull {
		for row, vals := range cfg.Nowcasts {
			if row < 0 || row >= n {
				return nil, fmt.Errorf("%w: nowcast series %d outside [0, %d)", common.ErrInvalidConfig, row, n)
			}
			for t, v := range vals {
				if t >= cfg.Periods {
					break
				}
				if !math.IsNaN(v) {
					extra.Set(row, t, v)
				}
			}
		}
	}

	return data.AppendPeriods(extra)
}
