package forecast

import (
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/model"
)

// Result collects everything one (draw, conditioning) unit produced. Fields
// are nil when the corresponding output type was not requested. Matrices are
// variables x periods; decomposition matrices stack one block of rows per
// shock.
type Result struct {
	HistStates   *mat.Dense
	HistShocks   *mat.Dense
	HistShocksNS *mat.Dense
	HistPseudo   *mat.Dense

	ForecastStates *mat.Dense
	ForecastObs    *mat.Dense

	ShockdecStates *mat.Dense
	ShockdecObs    *mat.Dense

	DettrendStates *mat.Dense
	DettrendObs    *mat.Dense

	CounterStates *mat.Dense
	CounterObs    *mat.Dense

	SimpleStates *mat.Dense
	SimpleObs    *mat.Dense

	SimpleCondStates *mat.Dense
	SimpleCondObs    *mat.Dense
}

// Artifacts maps persistence result names to matrices for the requested
// output types. Missing fields are skipped rather than erroring so a partial
// result can still be flushed.
func (r *Result) Artifacts(outputs []model.OutputType) map[string]*mat.Dense {
	byName := map[string]*mat.Dense{
		"histstates":       r.HistStates,
		"histpseudo":       r.HistPseudo,
		"histshocks":       r.HistShocks,
		"histshocksns":     r.HistShocksNS,
		"forecaststates":   r.ForecastStates,
		"forecastobs":      r.ForecastObs,
		"shockdecstates":   r.ShockdecStates,
		"shockdecobs":      r.ShockdecObs,
		"dettrendstates":   r.DettrendStates,
		"dettrendobs":      r.DettrendObs,
		"counterstates":    r.CounterStates,
		"counterobs":       r.CounterObs,
		"simplestates":     r.SimpleStates,
		"simpleobs":        r.SimpleObs,
		"simplecondstates": r.SimpleCondStates,
		"simplecondobs":    r.SimpleCondObs,
	}

	out := make(map[string]*mat.Dense)
	for _, ot := range model.ExpandOutputTypes(outputs) {
		for _, name := range ot.ResultNames() {
			if m := byName[name]; m != nil {
				out[name] = m
			}
		}
	}
	return out
}
