// Package store defines storage interfaces for persisting and retrieving
// price history, instrument metadata and simulation runs.
package store

import (
	"context"
	"errors"
	"time"

	"shalyse/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market, merging with
	// any bars already stored for the same symbol and day.
	WriteBars(ctx context.Context, market string, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ReadAllBars returns every stored bar for the symbol in ascending order.
	ReadAllBars(ctx context.Context, symbol string, market string) ([]domain.Bar, error)

	// LastTimestamp returns the timestamp of the newest stored bar, or
	// ErrNotFound when the symbol has no data.
	LastTimestamp(ctx context.Context, symbol string, market string) (time.Time, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// InstrumentStore persists display metadata for tickers.
type InstrumentStore interface {
	// SaveInstrument inserts or replaces the metadata for info.Symbol.
	SaveInstrument(ctx context.Context, info *domain.InstrumentInfo) error

	// GetInstrument returns the metadata for symbol, or ErrNotFound.
	GetInstrument(ctx context.Context, symbol string) (*domain.InstrumentInfo, error)

	// ListInstruments returns all known instruments ordered by symbol.
	ListInstruments(ctx context.Context) ([]domain.InstrumentInfo, error)
}

// RunStore persists the history of simulations served to clients.
type RunStore interface {
	// SaveRun inserts run and sets its ID.
	SaveRun(ctx context.Context, run *domain.Run) error

	// ListRuns returns the most recent runs, newest first, up to limit. An
	// empty ticker matches every ticker.
	ListRuns(ctx context.Context, ticker string, limit int) ([]domain.Run, error)
}
