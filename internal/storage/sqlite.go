// Package storage implements the persistence layer on SQLite: parameter
// draws, precomputed systems, and forecast artifacts stored as named binary
// tensors.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/mattn/go-sqlite3"

	"github.com/statespace/dsgefc/internal/common"
	"github.com/statespace/dsgefc/internal/model"
	"github.com/statespace/dsgefc/internal/statespace"
)

// SQLiteStore implements the service.Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS draws (
			input_type TEXT NOT NULL,
			draw_id    INTEGER NOT NULL,
			params     BLOB NOT NULL,
			PRIMARY KEY (input_type, draw_id)
		)`,
		`CREATE TABLE IF NOT EXISTS systems (
			input_type TEXT NOT NULL,
			draw_id    INTEGER NOT NULL,
			name       TEXT NOT NULL,
			rows       INTEGER NOT NULL,
			cols       INTEGER NOT NULL,
			data       BLOB NOT NULL,
			PRIMARY KEY (input_type, draw_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			key        TEXT PRIMARY KEY,
			rows       INTEGER NOT NULL,
			cols       INTEGER NOT NULL,
			data       BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// SaveDraws persists parameter draws with any attached systems and terminal
// states.
func (s *SQLiteStore) SaveDraws(ctx context.Context, input model.InputType, draws []model.ParameterDraw) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := model.ParseInputType(string(input)); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range draws {
		d := &draws[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO draws (input_type, draw_id, params) VALUES (?, ?, ?)`,
			string(input), d.ID, encodeVector(d.Values)); err != nil {
			return fmt.Errorf("failed to save draw %d: %w", d.ID, err)
		}

		if d.HasSystem() {
			if err := s.saveSystemTx(ctx, tx, input, d.ID, d.System); err != nil {
				return err
			}
		}
		if d.HasTerminalState() {
			if err := s.saveTensorTx(ctx, tx, input, d.ID, "zend", vecAsDense(d.Zend)); err != nil {
				return err
			}
			if err := s.saveTensorTx(ctx, tx, input, d.ID, "pend", d.Pend); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draws: %w", err)
	}
	return nil
}

// LoadDraws returns every draw stored under an input type, in draw-ID order,
// reattaching precomputed systems and terminal states where present.
func (s *SQLiteStore) LoadDraws(ctx context.Context, input model.InputType) ([]model.ParameterDraw, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if _, err := model.ParseInputType(string(input)); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT draw_id, params FROM draws WHERE input_type = ? ORDER BY draw_id`, string(input))
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var draws []model.ParameterDraw
	for rows.Next() {
		var id int
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		vals, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", id, err)
		}
		draws = append(draws, model.ParameterDraw{ID: id, Values: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draws: %w", err)
	}
	if len(draws) == 0 {
		return nil, fmt.Errorf("%w: no draws for input type %q", common.ErrNotFound, input)
	}

	for i := range draws {
		if err := s.attachSystem(ctx, input, &draws[i]); err != nil {
			return nil, err
		}
	}
	return draws, nil
}

// PutArtifact persists one named matrix, retrying on transient lock
// contention.
func (s *SQLiteStore) PutArtifact(ctx context.Context, key string, m *mat.Dense) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	r, c := m.Dims()
	blob := encodeMatrix(m)

	return common.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO artifacts (key, rows, cols, data) VALUES (?, ?, ?, ?)`,
			key, r, c, blob)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: isBusy(err)}
		}
		return nil
	}, common.RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	})
}

// GetArtifact retrieves a previously persisted matrix.
func (s *SQLiteStore) GetArtifact(ctx context.Context, key string) (*mat.Dense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	var r, c int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT rows, cols, data FROM artifacts WHERE key = ?`, key).Scan(&r, &c, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artifact %q", common.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact %q: %w", key, err)
	}

	return decodeMatrix(r, c, blob)
}

// ListArtifacts returns every artifact key with the given prefix.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, prefix string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM artifacts WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan artifact key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) saveSystemTx(ctx context.Context, tx *sql.Tx, input model.InputType, drawID int, sys *statespace.System) error {
	tensors := map[string]*mat.Dense{
		"T": sys.T,
		"R": sys.R,
		"C": vecAsDense(sys.C),
		"Q": sys.Q,
		"Z": sys.Z,
		"D": vecAsDense(sys.D),
		"E": sys.E,
	}
	if sys.HasPseudo() {
		tensors["Zpseudo"] = sys.ZPseudo
		tensors["Dpseudo"] = vecAsDense(sys.DPseudo)
	}
	for name, m := range tensors {
		if err := s.saveTensorTx(ctx, tx, input, drawID, name, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) saveTensorTx(ctx context.Context, tx *sql.Tx, input model.InputType, drawID int, name string, m *mat.Dense) error {
	r, c := m.Dims()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO systems (input_type, draw_id, name, rows, cols, data) VALUES (?, ?, ?, ?, ?, ?)`,
		string(input), drawID, name, r, c, encodeMatrix(m)); err != nil {
		return fmt.Errorf("failed to save tensor %s for draw %d: %w", name, drawID, err)
	}
	return nil
}

func (s *SQLiteStore) attachSystem(ctx context.Context, input model.InputType, d *model.ParameterDraw) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, rows, cols, data FROM systems WHERE input_type = ? AND draw_id = ?`,
		string(input), d.ID)
	if err != nil {
		return fmt.Errorf("failed to query systems for draw %d: %w", d.ID, err)
	}
	defer func() { _ = rows.Close() }()

	tensors := make(map[string]*mat.Dense)
	for rows.Next() {
		var name string
		var r, c int
		var blob []byte
		if err := rows.Scan(&name, &r, &c, &blob); err != nil {
			return fmt.Errorf("failed to scan tensor for draw %d: %w", d.ID, err)
		}
		m, err := decodeMatrix(r, c, blob)
		if err != nil {
			return fmt.Errorf("tensor %s for draw %d: %w", name, d.ID, err)
		}
		tensors[name] = m
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tensors for draw %d: %w", d.ID, err)
	}
	if len(tensors) == 0 {
		return nil
	}

	if zend, ok := tensors["zend"]; ok {
		d.Zend = denseAsVec(zend)
	}
	if pend, ok := tensors["pend"]; ok {
		d.Pend = pend
	}

	required := []string{"T", "R", "C", "Q", "Z", "D", "E"}
	for _, name := range required {
		if _, ok := tensors[name]; !ok {
			// Terminal state alone is fine; a partial system is not.
			if name == "T" && len(tensors) <= 2 {
				return nil
			}
			return fmt.Errorf("%w: tensor %s for draw %d", common.ErrMissingSystemMatrix, name, d.ID)
		}
	}

	sys, err := statespace.New(tensors["T"], tensors["R"], denseAsVec(tensors["C"]),
		tensors["Q"], tensors["Z"], denseAsVec(tensors["D"]), tensors["E"])
	if err != nil {
		return fmt.Errorf("draw %d: %w", d.ID, err)
	}
	if zp, ok := tensors["Zpseudo"]; ok {
		sys, err = sys.WithPseudo(zp, denseAsVec(tensors["Dpseudo"]))
		if err != nil {
			return fmt.Errorf("draw %d: %w", d.ID, err)
		}
	}
	d.System = sys
	return nil
}

func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}
