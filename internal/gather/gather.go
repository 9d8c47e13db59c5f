// Package gather defines the data-gathering processes and the provider
// interfaces they fetch price history through.
package gather

import (
	"context"
	"errors"
	"time"

	"shalyse/internal/domain"
)

// ErrUnknownSymbol is returned by a BarSource when the provider has no
// history at all for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// BarSource fetches adjusted daily bars from a market-data provider.
type BarSource interface {
	// DailyBars returns split- and dividend-adjusted daily bars for symbol
	// within the range, in ascending order.
	DailyBars(ctx context.Context, symbol string, r DateRange) ([]domain.Bar, error)
}

// Asset is the provider's descriptive metadata for a symbol.
type Asset struct {
	Symbol   string
	Name     string
	Exchange string
}

// AssetSource looks up descriptive metadata for a symbol.
type AssetSource interface {
	Asset(ctx context.Context, symbol string) (*Asset, error)
}
