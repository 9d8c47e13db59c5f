package us

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"shalyse/internal/domain"
	"shalyse/internal/gather"
	"shalyse/internal/store"
	"shalyse/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ gather.BarSource = (*AlpacaSource)(nil)
var _ gather.AssetSource = (*AlpacaSource)(nil)
var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// ---------------------------------------------------------------------------
// AlpacaSource: adjusted daily bars and asset metadata from Alpaca.
// ---------------------------------------------------------------------------

// AlpacaOpts configures an AlpacaSource.
type AlpacaOpts struct {
	APIKey          string
	APISecret       string
	BaseURL         string // trading API, used for assets and the calendar
	DataURL         string // market-data API
	Feed            string
	RateLimitPerMin int
	MaxAttempts     int
}

// AlpacaSource implements gather.BarSource and gather.AssetSource on top of
// the Alpaca REST clients. Every request is rate limited and retried.
type AlpacaSource struct {
	data        *marketdata.Client
	trading     *alpaca.Client
	feed        string
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource from the given options.
func NewAlpacaSource(o AlpacaOpts) *AlpacaSource {
	dataOpts := marketdata.ClientOpts{
		APIKey:    o.APIKey,
		APISecret: o.APISecret,
	}
	if o.DataURL != "" {
		dataOpts.BaseURL = o.DataURL
	}

	attempts := o.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return &AlpacaSource{
		data: marketdata.NewClient(dataOpts),
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    o.APIKey,
			APISecret: o.APISecret,
			BaseURL:   o.BaseURL,
		}),
		feed:        o.Feed,
		limiter:     util.NewRateLimiter(o.RateLimitPerMin),
		maxAttempts: attempts,
		retryDelay:  time.Second,
		log:         slog.Default().With("source", "alpaca"),
	}
}

// DailyBars fetches fully adjusted daily bars for one symbol.
func (s *AlpacaSource) DailyBars(ctx context.Context, symbol string, r gather.DateRange) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)

	var raw []marketdata.Bar
	err := util.Retry(ctx, s.maxAttempts, s.retryDelay, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = s.data.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Adjustment: marketdata.All,
			Start:      r.Start,
			End:        r.End,
			Feed:       s.feed,
		})
		if err != nil {
			s.log.Warn("GetBars failed", "symbol", symbol, "err", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	return barsFromAlpaca(symbol, raw), nil
}

// Asset looks up the asset name and listing exchange.
func (s *AlpacaSource) Asset(ctx context.Context, symbol string) (*gather.Asset, error) {
	symbol = strings.ToUpper(symbol)

	var a *alpaca.Asset
	err := util.Retry(ctx, s.maxAttempts, s.retryDelay, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		a, err = s.trading.GetAsset(symbol)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetAsset %s: %w", symbol, err)
	}

	return &gather.Asset{
		Symbol:   symbol,
		Name:     a.Name,
		Exchange: string(a.Exchange),
	}, nil
}

func barsFromAlpaca(symbol string, raw []marketdata.Bar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars
}

// ---------------------------------------------------------------------------
// DailyBarGatherer: keeps the Parquet cache current for a ticker list.
// ---------------------------------------------------------------------------

// DailyBarGatherer refreshes the stored daily history of a fixed list of
// tickers. Each ticker is fetched from the day after its newest stored bar,
// or from startDate when nothing is stored yet.
type DailyBarGatherer struct {
	source     gather.BarSource
	store      store.BarStore
	tickers    []string
	maxWorkers int
	startDate  string
	endDate    func(ctx context.Context) (time.Time, error)
	log        *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer. endDate reports the last
// day to request; nil means today in UTC.
func NewDailyBarGatherer(src gather.BarSource, s store.BarStore, tickers []string, maxWorkers int, startDate string, endDate func(ctx context.Context) (time.Time, error)) *DailyBarGatherer {
	if endDate == nil {
		endDate = func(context.Context) (time.Time, error) {
			return time.Now().UTC().Truncate(24 * time.Hour), nil
		}
	}
	return &DailyBarGatherer{
		source:     src,
		store:      s,
		tickers:    tickers,
		maxWorkers: max(maxWorkers, 1),
		startDate:  startDate,
		endDate:    endDate,
		log:        slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run refreshes every configured ticker. A failing ticker is logged and does
// not stop the others; Run reports how many failed.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}

	end, err := g.endDate(ctx)
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}

	var (
		eg       errgroup.Group
		written  atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)
	eg.SetLimit(g.maxWorkers)

	g.log.Info("starting us-daily", "tickers", len(g.tickers), "endDate", end.Format("2006-01-02"))

	for _, ticker := range g.tickers {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			n, err := g.refresh(ctx, ticker, start, end)
			if err != nil {
				failed.Add(1)
				g.log.Error("refresh failed", "ticker", ticker, "err", err)
				return nil
			}
			written.Add(int64(n))
			g.log.Info("ticker done", "ticker", ticker, "bars", n)
			return nil
		})
	}
	_ = eg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	g.log.Info("complete",
		"bars", written.Load(),
		"failed", failed.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d tickers failed", n, len(g.tickers))
	}
	return nil
}

// refresh fetches and stores the missing tail of one ticker's history.
func (g *DailyBarGatherer) refresh(ctx context.Context, ticker string, start, end time.Time) (int, error) {
	last, err := g.store.LastTimestamp(ctx, ticker, string(domain.MarketUS))
	switch {
	case err == nil:
		start = last.AddDate(0, 0, 1)
	case !errors.Is(err, store.ErrNotFound):
		return 0, err
	}
	if start.After(end) {
		return 0, nil
	}

	bars, err := g.source.DailyBars(ctx, ticker, gather.DateRange{Start: start, End: end})
	if err != nil {
		return 0, err
	}
	if err := g.store.WriteBars(ctx, string(domain.MarketUS), bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}
