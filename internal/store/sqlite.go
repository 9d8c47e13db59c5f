package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shalyse/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ InstrumentStore = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements InstrumentStore and RunStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		symbol     TEXT PRIMARY KEY,
		short_name TEXT NOT NULL,
		currency   TEXT NOT NULL,
		exchange   TEXT NOT NULL DEFAULT '',
		years      INTEGER NOT NULL,
		first_date INTEGER NOT NULL,
		last_date  INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker        TEXT NOT NULL,
		initial       REAL NOT NULL,
		topup         REAL NOT NULL,
		period        INTEGER NOT NULL,
		horizon       INTEGER NOT NULL,
		total_contrib REAL NOT NULL,
		windows       INTEGER NOT NULL,
		summary       TEXT NOT NULL,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_ticker_created ON runs (ticker, created_at)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// InstrumentStore implementation
// ---------------------------------------------------------------------------

// SaveInstrument inserts or replaces the metadata for info.Symbol.
func (s *SQLiteStore) SaveInstrument(ctx context.Context, info *domain.InstrumentInfo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO instruments
			(symbol, short_name, currency, exchange, years, first_date, last_date, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(info.Symbol), info.ShortName, info.Currency, info.Exchange, info.Years,
		info.FirstDate.UnixMilli(), info.LastDate.UnixMilli(), time.Now().UnixMilli())
	return err
}

// GetInstrument retrieves the metadata for symbol.
func (s *SQLiteStore) GetInstrument(ctx context.Context, symbol string) (*domain.InstrumentInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, short_name, currency, exchange, years, first_date, last_date
		 FROM instruments WHERE symbol = ?`, strings.ToUpper(symbol))

	info, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListInstruments returns all known instruments ordered by symbol.
func (s *SQLiteStore) ListInstruments(ctx context.Context) ([]domain.InstrumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, short_name, currency, exchange, years, first_date, last_date
		 FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InstrumentInfo
	for rows.Next() {
		info, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstrument(sc scanner) (domain.InstrumentInfo, error) {
	var (
		info        domain.InstrumentInfo
		first, last int64
	)
	err := sc.Scan(&info.Symbol, &info.ShortName, &info.Currency, &info.Exchange,
		&info.Years, &first, &last)
	if err != nil {
		return info, err
	}
	info.FirstDate = time.UnixMilli(first).UTC()
	info.LastDate = time.UnixMilli(last).UTC()
	return info, nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts run and sets its ID. A zero CreatedAt is set to now.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs
			(ticker, initial, topup, period, horizon, total_contrib, windows, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(run.Ticker), run.Scenario.Initial, run.Scenario.Topup,
		run.Scenario.Period, run.Scenario.Horizon, run.TotalContribution, run.Windows,
		string(summary), run.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}

	run.ID, err = res.LastInsertId()
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, ticker string, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, ticker, initial, topup, period, horizon, total_contrib, windows, summary, created_at
		FROM runs`
	args := []any{}
	if ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, strings.ToUpper(ticker))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		var (
			r       domain.Run
			summary string
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &r.Scenario.Initial, &r.Scenario.Topup,
			&r.Scenario.Period, &r.Scenario.Horizon, &r.TotalContribution, &r.Windows,
			&summary, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary of run %d: %w", r.ID, err)
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
