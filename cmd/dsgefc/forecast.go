package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/statespace/dsgefc/internal/armodel"
	"github.com/statespace/dsgefc/internal/conditional"
	"github.com/statespace/dsgefc/internal/forecast"
	"github.com/statespace/dsgefc/internal/model"
)

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast <data.csv>",
		Short: "Run the forecast pipeline over stored parameter draws",
		Long: `Run the full pipeline for every combination of input type, conditioning
type, and parameter draw: solve, filter, smooth, project, decompose, and
persist one artifact per output result.`,
		Args: cobra.ExactArgs(1),
		RunE: runForecast,
	}

	cmd.Flags().Int("horizon", 8, "forecast periods beyond the data")
	cmd.Flags().Int("presample", 0, "warm-up periods excluded from the likelihood")
	cmd.Flags().Int("workers", 0, "parallel workers (0 = one per CPU)")
	cmd.Flags().Int("cond-periods", 1, "conditional periods appended under semi/full conditioning")
	cmd.Flags().String("smoother", "durbin_koopman", "smoother (durbin_koopman, classical)")
	cmd.Flags().Bool("shock-draws", false, "draw future shocks instead of zeroing them")
	cmd.Flags().Uint64("seed", 42, "seed for shock draws")
	cmd.Flags().StringSlice("cond", []string{"none"}, "conditioning types (none, semi, full)")
	cmd.Flags().StringSlice("input", []string{"mode"}, "input types (mode, mean, full, subset)")
	cmd.Flags().StringSlice("output", []string{"forecast"}, "output types (states, shocks, ..., all)")
	cmd.Flags().Int("subset-start", 0, "first draw ID for the subset input type")
	cmd.Flags().Int("subset-end", 0, "one past the last draw ID for the subset input type")
	cmd.Flags().Int("states", 2, "state count of the built-in autoregressive model")
	cmd.Flags().Bool("pseudo", false, "also smooth pseudo-observables")

	return cmd
}

func runForecast(cmd *cobra.Command, args []string) error {
	data, err := readDataset(args[0])
	if err != nil {
		return err
	}

	conds, err := parseEnums(cmd, "cond", model.ParseCondType)
	if err != nil {
		return err
	}
	inputs, err := parseEnums(cmd, "input", model.ParseInputType)
	if err != nil {
		return err
	}
	outputs, err := parseEnums(cmd, "output", model.ParseOutputType)
	if err != nil {
		return err
	}

	horizon, _ := cmd.Flags().GetInt("horizon")
	presample, _ := cmd.Flags().GetInt("presample")
	workers, _ := cmd.Flags().GetInt("workers")
	condPeriods, _ := cmd.Flags().GetInt("cond-periods")
	smoother, _ := cmd.Flags().GetString("smoother")
	shockDraws, _ := cmd.Flags().GetBool("shock-draws")
	seed, _ := cmd.Flags().GetUint64("seed")
	subsetStart, _ := cmd.Flags().GetInt("subset-start")
	subsetEnd, _ := cmd.Flags().GetInt("subset-end")
	states, _ := cmd.Flags().GetInt("states")
	pseudo, _ := cmd.Flags().GetBool("pseudo")

	spec, err := armodel.New(states, data.Observables(), pseudo)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	semiSeries := make([]int, data.Observables())
	for i := range semiSeries {
		semiSeries[i] = i
	}

	cfg := forecast.Config{
		Horizon:     horizon,
		Presample:   presample,
		Smoother:    forecast.SmootherType(smoother),
		Pseudo:      pseudo,
		ShockDraws:  shockDraws,
		Seed:        seed,
		Workers:     workers,
		SubsetStart: subsetStart,
		SubsetEnd:   subsetEnd,
		Conditional: conditional.Config{
			Periods:    condPeriods,
			SemiSeries: semiSeries,
		},
	}

	engine, err := forecast.NewEngine(store, spec, cfg)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Forecasting..."),
			)
		}
		_ = bar.Set(done)
	}

	summary, err := engine.Run(cmd.Context(), data, conds, inputs, outputs, progress)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	slog.Info("Forecast batch finished",
		"units", summary.Units,
		"completed", summary.Completed,
		"failed", summary.Failed)
	for _, f := range summary.Failures {
		slog.Warn("Unit failed", "draw", f.Draw, "cond", f.Cond, "error", f.Err)
	}
	if summary.Failed > 0 && summary.Completed == 0 {
		return fmt.Errorf("every forecast unit failed")
	}
	return nil
}

func parseEnums[T any](cmd *cobra.Command, flag string, parse func(string) (T, error)) ([]T, error) {
	raw, _ := cmd.Flags().GetStringSlice(flag)
	out := make([]T, 0, len(raw))
	for _, s := range raw {
		v, err := parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
