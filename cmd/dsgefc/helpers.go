package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
	"gonum.org/v1/gonum/mat"

	"github.com/statespace/dsgefc/internal/model"
	"github.com/statespace/dsgefc/internal/storage"
)

// openStore resolves the database path from flags/config and opens it.
func openStore() (*storage.SQLiteStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "dsgefc", "dsgefc.db")
	}
	return storage.NewSQLiteStore(dbPath)
}

// readDataset loads a CSV with one row per series: the first field is the
// series name, the rest are values in time order. Empty fields and "NaN"
// mark missing observations.
func readDataset(path string) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("data file %s is empty", path)
	}

	periods := len(records[0]) - 1
	if periods <= 0 {
		return nil, fmt.Errorf("data file %s has no observation columns", path)
	}

	names := make([]string, len(records))
	y := mat.NewDense(len(records), periods, nil)
	for i, rec := range records {
		if len(rec) != periods+1 {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i+1, len(rec), periods+1)
		}
		names[i] = rec[0]
		for t, field := range rec[1:] {
			if field == "" || field == "NaN" {
				y.Set(i, t, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, t+2, err)
			}
			y.Set(i, t, v)
		}
	}

	return model.NewDataset(names, y)
}

// writeMatrixCSV writes a matrix row by row.
func writeMatrixCSV(path string, m *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	r, c := m.Dims()
	rec := make([]string, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			rec[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}
