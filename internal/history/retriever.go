// Package history loads the adjusted price history and display metadata of a
// ticker, serving from the local cache and falling back to the market-data
// provider on a miss.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"shalyse/internal/domain"
	"shalyse/internal/gather"
	"shalyse/internal/store"
)

// Retriever loads (PriceSeries, InstrumentInfo) pairs for tickers. It is
// safe for concurrent use; concurrent loads of one ticker share a fetch.
type Retriever struct {
	bars        store.BarStore
	instruments store.InstrumentStore
	source      gather.BarSource   // nil: cache only
	assets      gather.AssetSource // nil: ticker doubles as name
	startDate   time.Time
	currency    string
	market      string
	now         func() time.Time
	onUpdate    func(ticker string)
	group       singleflight.Group
	log         *slog.Logger
}

// Options configures a Retriever.
type Options struct {
	Source    gather.BarSource
	Assets    gather.AssetSource
	StartDate time.Time
	Currency  string
	Logger    *slog.Logger
	// OnUpdate is called with the ticker after its cached history changes.
	OnUpdate  func(ticker string)
}

type loaded struct {
	series domain.PriceSeries
	info   *domain.InstrumentInfo
}

// NewRetriever creates a Retriever over the given stores.
func NewRetriever(bars store.BarStore, instruments store.InstrumentStore, opts Options) *Retriever {
	r := &Retriever{
		bars:        bars,
		instruments: instruments,
		source:      opts.Source,
		assets:      opts.Assets,
		startDate:   opts.StartDate,
		currency:    opts.Currency,
		market:      string(domain.MarketUS),
		now:         time.Now,
		onUpdate:    opts.OnUpdate,
		log:         opts.Logger,
	}
	if r.currency == "" {
		r.currency = "USD"
	}
	if r.startDate.IsZero() {
		r.startDate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.log = r.log.With("component", "retriever")
	return r
}

// NormalizeTicker upper-cases and trims a user-supplied ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Load returns the ascending price series and metadata for ticker. Unknown
// tickers yield an error wrapping store.ErrNotFound.
func (r *Retriever) Load(ctx context.Context, ticker string) (domain.PriceSeries, *domain.InstrumentInfo, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return domain.PriceSeries{}, nil, fmt.Errorf("%w: empty ticker", store.ErrNotFound)
	}

	// The shared load outlives any single caller; each caller stops waiting
	// when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(ticker, func() (any, error) {
		series, info, err := r.load(shared, ticker)
		if err != nil {
			return nil, err
		}
		return loaded{series: series, info: info}, nil
	})

	select {
	case <-ctx.Done():
		return domain.PriceSeries{}, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.PriceSeries{}, nil, res.Err
		}
		l := res.Val.(loaded)
		return l.series, l.info, nil
	}
}

func (r *Retriever) load(ctx context.Context, ticker string) (domain.PriceSeries, *domain.InstrumentInfo, error) {
	bars, err := r.bars.ReadAllBars(ctx, ticker, r.market)
	if err != nil {
		return domain.PriceSeries{}, nil, fmt.Errorf("reading cached bars for %s: %w", ticker, err)
	}

	if len(bars) == 0 {
		bars, err = r.fetch(ctx, ticker)
		if err != nil {
			return domain.PriceSeries{}, nil, err
		}
	} else {
		r.log.Debug("cache hit", "ticker", ticker, "bars", len(bars))
	}

	series := domain.SeriesFromBars(ticker, bars)
	if err := series.Validate(); err != nil {
		return domain.PriceSeries{}, nil, err
	}

	info, err := r.instrument(ctx, series)
	if err != nil {
		return domain.PriceSeries{}, nil, err
	}
	return series, info, nil
}

// fetch downloads the full history of ticker and stores it.
func (r *Retriever) fetch(ctx context.Context, ticker string) ([]domain.Bar, error) {
	if r.source == nil {
		return nil, fmt.Errorf("%w: no cached history for %s", store.ErrNotFound, ticker)
	}

	r.log.Info("cache miss, fetching", "ticker", ticker, "from", r.startDate.Format("2006-01-02"))
	bars, err := r.source.DailyBars(ctx, ticker, gather.DateRange{Start: r.startDate, End: r.now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s (%w)", store.ErrNotFound, ticker, gather.ErrUnknownSymbol)
	}

	if err := r.bars.WriteBars(ctx, r.market, bars); err != nil {
		return nil, fmt.Errorf("caching %s: %w", ticker, err)
	}
	r.updated(ticker)
	// Re-read so the series has the store's ordering and deduplication.
	return r.bars.ReadAllBars(ctx, ticker, r.market)
}

// instrument returns stored metadata when it matches the series, otherwise
// rebuilds and saves it.
func (r *Retriever) instrument(ctx context.Context, series domain.PriceSeries) (*domain.InstrumentInfo, error) {
	info, err := r.instruments.GetInstrument(ctx, series.Symbol)
	switch {
	case err == nil:
		if series.Len() > 0 && info.LastDate.Equal(series.Points[series.Len()-1].Date) {
			return info, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("reading metadata for %s: %w", series.Symbol, err)
	}

	name, exchange := series.Symbol, ""
	if info != nil {
		name, exchange = info.ShortName, info.Exchange
	} else if r.assets != nil {
		a, err := r.assets.Asset(ctx, series.Symbol)
		if err != nil {
			r.log.Warn("asset lookup failed, using ticker as name", "ticker", series.Symbol, "err", err)
		} else {
			name, exchange = a.Name, a.Exchange
		}
	}

	fresh := BuildInstrument(series, name, exchange, r.currency)
	if err := r.instruments.SaveInstrument(ctx, fresh); err != nil {
		return nil, fmt.Errorf("saving metadata for %s: %w", series.Symbol, err)
	}
	return fresh, nil
}

// Import stores an externally sourced series (e.g. a CSV file) in the cache
// under its symbol, replacing overlapping days.
func (r *Retriever) Import(ctx context.Context, series domain.PriceSeries, name string) (*domain.InstrumentInfo, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: empty series for %s", domain.ErrInsufficientData, series.Symbol)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, series.Len())
	for i, p := range series.Points {
		bars[i] = domain.Bar{Symbol: series.Symbol, Timestamp: p.Date, Close: p.Price}
	}
	if err := r.bars.WriteBars(ctx, r.market, bars); err != nil {
		return nil, err
	}
	r.updated(series.Symbol)

	if name == "" {
		name = series.Symbol
	}
	info := BuildInstrument(series, name, "", r.currency)
	if err := r.instruments.SaveInstrument(ctx, info); err != nil {
		return nil, err
	}
	r.log.Info("imported series", "ticker", series.Symbol, "points", series.Len())
	return info, nil
}

func (r *Retriever) updated(ticker string) {
	if r.onUpdate != nil {
		r.onUpdate(ticker)
	}
}

// BuildInstrument derives display metadata from a series.
func BuildInstrument(series domain.PriceSeries, name, exchange, currency string) *domain.InstrumentInfo {
	info := &domain.InstrumentInfo{
		Symbol:    series.Symbol,
		ShortName: name,
		Currency:  currency,
		Exchange:  exchange,
		Years:     series.YearsOfHistory(),
	}
	if n := series.Len(); n > 0 {
		info.FirstDate = series.Points[0].Date
		info.LastDate = series.Points[n-1].Date
	}
	return info
}
