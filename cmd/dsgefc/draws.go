package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/statespace/dsgefc/internal/model"
)

func drawsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draws",
		Short: "Manage stored parameter draws",
	}
	cmd.AddCommand(drawsImportCmd())
	return cmd
}

func drawsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import parameter draws from a CSV file",
		Long: `Import parameter draws into the database. Each row of the CSV is one
parameter vector; all rows must have the same length. Draw IDs are assigned
in file order starting at zero.`,
		Args: cobra.ExactArgs(1),
		RunE: runDrawsImport,
	}
	cmd.Flags().String("input-type", "full", "input type to store the draws under (mode, mean, full)")
	return cmd
}

func runDrawsImport(cmd *cobra.Command, args []string) error {
	inputStr, _ := cmd.Flags().GetString("input-type")
	input, err := model.ParseInputType(inputStr)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open draws file: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse draws file: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("draws file %s is empty", args[0])
	}

	draws := make([]model.ParameterDraw, 0, len(records))
	for i, rec := range records {
		if len(rec) != len(records[0]) {
			return fmt.Errorf("row %d has %d fields, want %d", i+1, len(rec), len(records[0]))
		}
		vals := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
			vals[j] = v
		}
		draws = append(draws, model.ParameterDraw{ID: i, Values: vals})
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := store.SaveDraws(cmd.Context(), input, draws); err != nil {
		return fmt.Errorf("failed to save draws: %w", err)
	}

	slog.Info("Imported parameter draws",
		"count", len(draws),
		"parameters", len(records[0]),
		"input_type", input)
	return nil
}
