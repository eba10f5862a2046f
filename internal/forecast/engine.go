package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/conditional"
	"github.com/statespace/dsgefc/internal/kalman"
	"github.com/statespace/dsgefc/internal/model"
	"github.com/statespace/dsgefc/internal/service"
	"github.com/statespace/dsgefc/internal/solve"
	"github.com/statespace/dsgefc/internal/statespace"
)

// Engine runs the forecast pipeline over the cross-product of input types,
// conditioning types, and parameter draws.
type Engine struct {
	store service.Store
	spec  service.ModelSpec
	cfg   Config
	log   *slog.Logger
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(store service.Store, spec service.ModelSpec, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", common.ErrMissingConfig)
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: model spec is required", common.ErrMissingConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		store: store,
		spec:  spec,
		cfg:   cfg,
		log:   slog.Default().With("component", "forecast", "model", spec.Name()),
	}, nil
}

// Summary reports how a batch went. Recoverable per-unit failures are
// collected here; they never abort the batch.
type Summary struct {
	Units     int
	Completed int
	Failed    int
	Failures  []*common.UnitError
}

// unit is one (draw, input, conditioning) work item.
type unit struct {
	draw  model.ParameterDraw
	input model.InputType
	cond  model.CondType
}

// Run executes the batch. Malformed enum values and empty draw sets are
// fatal; numerical failures inside a unit are recorded in the summary and
// the rest of the batch continues. The progress callback, when non-nil, is
// invoked after every finished unit.
func (e *Engine) Run(ctx context.Context, data *model.Dataset, conds []model.CondType, inputs []model.InputType, outputs []model.OutputType, progress func(done, total int)) (*Summary, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: dataset is required", common.ErrInvalidConfig)
	}
	for _, ct := range conds {
		if _, err := model.ParseCondType(string(ct)); err != nil {
			return nil, err
		}
	}
	for _, it := range inputs {
		if _, err := model.ParseInputType(string(it)); err != nil {
			return nil, err
		}
	}
	for _, ot := range outputs {
		if _, err := model.ParseOutputType(string(ot)); err != nil {
			return nil, err
		}
	}
	if len(conds) == 0 || len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: conditioning, input, and output types must all be non-empty", common.ErrInvalidConfig)
	}
	expanded := model.ExpandOutputTypes(outputs)

	units, err := e.buildUnits(ctx, conds, inputs)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Units: len(units)}
	e.log.Info("starting forecast batch",
		"units", len(units),
		"workers", e.cfg.Workers,
		"horizon", e.cfg.Horizon,
		"outputs", len(expanded))

	jobs := make(chan unit)
	var mu sync.Mutex
	var wg sync.WaitGroup
	done := 0

	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				err := e.runUnit(ctx, u, data, expanded)

				mu.Lock()
				done++
				if err != nil {
					summary.Failed++
					var uerr *common.UnitError
					if ue, ok := err.(*common.UnitError); ok {
						uerr = ue
					} else {
						uerr = &common.UnitError{Err: err, Cond: string(u.cond), Draw: u.draw.ID}
					}
					summary.Failures = append(summary.Failures, uerr)
					common.LogError(err, "forecast unit failed", common.Fields{
						"draw": u.draw.ID,
						"cond": u.cond,
					})
				} else {
					summary.Completed++
				}
				if progress != nil {
					progress(done, summary.Units)
				}
				mu.Unlock()
			}
		}()
	}

	for _, u := range units {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return summary, ctx.Err()
		case jobs <- u:
		}
	}
	close(jobs)
	wg.Wait()

	e.log.Info("forecast batch finished",
		"completed", summary.Completed,
		"failed", summary.Failed)
	return summary, nil
}

// buildUnits loads the draws behind each input type and crosses them with
// the conditioning types. Mode and mean carry exactly one draw; subset is a
// contiguous draw-ID range of full.
func (e *Engine) buildUnits(ctx context.Context, conds []model.CondType, inputs []model.InputType) ([]unit, error) {
	var units []unit
	for _, it := range inputs {
		source := it
		if it == model.InputSubset {
			source = model.InputFull
		}
		draws, err := e.store.LoadDraws(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("input type %s: %w", it, err)
		}

		switch it {
		case model.InputMode, model.InputMean:
			if len(draws) != 1 {
				return nil, fmt.Errorf("%w: input type %s holds %d draws, want exactly 1",
					common.ErrInvalidConfig, it, len(draws))
			}
		case model.InputSubset:
			kept := draws[:0]
			for _, d := range draws {
				if d.ID >= e.cfg.SubsetStart && d.ID < e.cfg.SubsetEnd {
					kept = append(kept, d)
				}
			}
			draws = kept
			if len(draws) == 0 {
				return nil, fmt.Errorf("%w: subset range [%d, %d) matches no draws",
					common.ErrInvalidConfig, e.cfg.SubsetStart, e.cfg.SubsetEnd)
			}
		}

		for _, ct := range conds {
			for _, d := range draws {
				units = append(units, unit{draw: d, input: it, cond: ct})
			}
		}
	}
	return units, nil
}

// needsFilter reports whether any requested output requires a fresh filter
// pass. Only the unconditioned projection can ride on a precomputed
// terminal state.
func needsFilter(u unit, outputs []model.OutputType) bool {
	if !u.draw.HasTerminalState() {
		return true
	}
	for _, ot := range outputs {
		if ot != model.OutputSimple {
			return true
		}
	}
	return false
}

// runUnit shields the worker from a panicking model specification or
// numerical kernel: the unit fails, the batch continues.
func (e *Engine) runUnit(ctx context.Context, u unit, data *model.Dataset, outputs []model.OutputType) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.NewUnitError(u.draw.ID, string(u.cond), "", fmt.Errorf("panic: %v", r))
		}
	}()
	return e.processUnit(ctx, u, data, outputs)
}

// processUnit runs the full pipeline for one unit and persists its
// artifacts.
func (e *Engine) processUnit(ctx context.Context, u unit, data *model.Dataset, outputs []model.OutputType) error {
	sys := u.draw.System
	if sys == nil {
		var err error
		sys, err = e.computeSystem(u.draw.Values)
		if err != nil {
			return common.NewUnitError(u.draw.ID, string(u.cond), "", err)
		}
	}

	cdata, err := conditional.Build(data, u.cond, e.cfg.Conditional)
	if err != nil {
		return common.NewUnitError(u.draw.ID, string(u.cond), "", err)
	}

	// A draw that arrived with its terminal filter state lets a purely
	// projection-based unit skip the filter pass altogether.
	var fout *kalman.Output
	if needsFilter(u, outputs) {
		fout, err = kalman.Run(sys, cdata, kalman.Options{
			Presample:        e.cfg.Presample,
			IncludePresample: true,
		})
		if err != nil {
			return common.NewUnitError(u.draw.ID, string(u.cond), "", err)
		}
	}

	res, err := e.computeOutputs(sys, data, cdata, fout, u, outputs)
	if err != nil {
		return err
	}

	for name, m := range res.Artifacts(outputs) {
		key := model.ArtifactKey(u.draw.ID, u.input, u.cond, name)
		if err := e.store.PutArtifact(ctx, key, m); err != nil {
			return common.NewUnitError(u.draw.ID, string(u.cond), name, err)
		}
	}
	return nil
}

func (e *Engine) computeOutputs(sys *statespace.System, data, cdata *model.Dataset, fout *kalman.Output, u unit, outputs []model.OutputType) (*Result, error) {
	res := &Result{}
	want := make(map[model.OutputType]bool, len(outputs))
	for _, ot := range outputs {
		want[ot] = true
	}

	needSmooth := want[model.OutputStates] || want[model.OutputShocks] ||
		want[model.OutputShocksNS] || want[model.OutputForecast] ||
		want[model.OutputShockdec] || want[model.OutputDettrend] ||
		want[model.OutputCounter]

	var sm *kalman.Smoothed
	if needSmooth {
		var err error
		opts := kalman.SmootherOptions{Pseudo: e.cfg.Pseudo && sys.HasPseudo()}
		switch e.cfg.Smoother {
		case SmootherClassical:
			sm, err = kalman.Classical(sys, cdata, fout, opts)
		default:
			sm, err = kalman.DurbinKoopman(sys, cdata, fout, opts)
		}
		if err != nil {
			return nil, common.NewUnitError(u.draw.ID, string(u.cond), "", err)
		}
		res.HistStates = sm.States
		res.HistShocks = sm.Shocks
		res.HistShocksNS = sm.ShocksNS
		res.HistPseudo = sm.Pseudo
	}

	if want[model.OutputForecast] {
		z0 := terminalState(sm)
		var sh *mat.Dense
		if e.cfg.ShockDraws {
			s, err := DrawShocks(sys, e.cfg.Horizon, e.cfg.Seed+uint64(u.draw.ID))
			if err != nil {
				return nil, common.NewUnitError(u.draw.ID, string(u.cond), "forecast", err)
			}
			sh = s
		}
		proj, err := Project(sys, z0, e.cfg.Horizon, sh)
		if err != nil {
			return nil, common.NewUnitError(u.draw.ID, string(u.cond), "forecast", err)
		}
		res.ForecastStates = proj.States
		res.ForecastObs = proj.Obs
	}

	if want[model.OutputDettrend] {
		dt, err := Dettrend(sys, initialState(sm), fout.Periods()+e.cfg.Horizon)
		if err != nil {
			return nil, common.NewUnitError(u.draw.ID, string(u.cond), "dettrend", err)
		}
		res.DettrendStates = dt.States
		res.DettrendObs = dt.Obs
	}

	if want[model.OutputShockdec] {
		sd, err := Shockdec(sys, sm.ShocksNS, e.cfg.Horizon)
		if err != nil {
			return nil, common.NewUnitError(u.draw.ID, string(u.cond), "shockdec", err)
		}
		res.ShockdecStates = sd.States
		res.ShockdecObs = sd.Obs
	}

	if want[model.OutputCounter] {
		cf, err := Counterfactual(sys, initialState(sm), sm.ShocksNS, e.cfg.CounterShocks, e.cfg.Horizon)
		if err != nil {
			return nil, common.NewUnitError(u.draw.ID, string(u.cond), "counter", err)
		}
		res.CounterStates = cf.States
		res.CounterObs = cf.Obs
	}

	if want[model.OutputSimple] {
		// Unconditioned projection, no smoothing. A terminal state stored
		// with the draw stands in for re-filtering the raw data.
		z0 := u.draw.Zend
		if z0 == nil {
			base := fout
			if u.cond != model.CondNone {
				var err error
				base, err = kalman.Run(sys, data, kalman.Options{Presample: e.cfg.Presample, IncludePresample: true})
				if err != nil {
					return nil, common.NewUnitError(u.draw.ID, string(u.cond), "simple", err)
				}
			}
			z0 = base.Zend
		}
		proj, err := Project(sys, z0, e.cfg.Horizon, nil)
		if err != nil {
			return nil, common.NewUnitError(u.draw.ID, string(u.cond), "simple", err)
		}
		res.SimpleStates = proj.States
		res.SimpleObs = proj.Obs
	}

	if want[model.OutputSimpleCond] {
		proj, err := Project(sys, fout.Zend, e.cfg.Horizon, nil)
		if err != nil {
			return nil, common.NewUnitError(u.draw.ID, string(u.cond), "simple_cond", err)
		}
		res.SimpleCondStates = proj.States
		res.SimpleCondObs = proj.Obs
	}

	return res, nil
}

// terminalState returns the final smoothed state as a vector.
func terminalState(sm *kalman.Smoothed) *mat.VecDense {
	_, c := sm.States.Dims()
	return smoothedCol(sm, c-1)
}

// initialState returns the period-0 smoothed state, the anchor for the
// deterministic trend and counterfactual replays.
func initialState(sm *kalman.Smoothed) *mat.VecDense {
	return smoothedCol(sm, 0)
}

func smoothedCol(sm *kalman.Smoothed, t int) *mat.VecDense {
	r, _ := sm.States.Dims()
	z := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		z.SetVec(i, sm.States.At(i, t))
	}
	return z
}

// computeSystem solves the model at a parameter vector and assembles the
// state-space system.
func (e *Engine) computeSystem(params []float64) (*statespace.System, error) {
	sc, err := e.spec.StructuralCoefficients(params)
	if err != nil {
		return nil, err
	}
	sol, err := solve.Solve(sc)
	if err != nil {
		return nil, err
	}
	meas, err := e.spec.Measurement(params, sol)
	if err != nil {
		return nil, err
	}
	sys, err := statespace.New(sol.T, sol.R, sol.C, meas.Q, meas.Z, meas.D, meas.E)
	if err != nil {
		return nil, err
	}
	if meas.ZPseudo != nil {
		sys, err = sys.WithPseudo(meas.ZPseudo, meas.DPseudo)
		if err != nil {
			return nil, err
		}
	}
	return sys, nil
}
