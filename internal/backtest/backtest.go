// Package backtest wires price retrieval, the simulation engine, the report
// memo and run history into the single operation the API surfaces expose.
package backtest

import (
	"context"
	"log/slog"
	"time"

	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
	"shalyse/internal/engine"
	"shalyse/internal/history"
	"shalyse/internal/store"
)

// Loader returns the price series and metadata of a ticker.
type Loader interface {
	Load(ctx context.Context, ticker string) (domain.PriceSeries, *domain.InstrumentInfo, error)
}

// Result is the outcome of one backtest request.
type Result struct {
	Ticker     string
	Instrument *domain.InstrumentInfo
	Report     *engine.Report
}

// Backtester runs scenarios against ticker histories. Reports are memoized
// per (ticker, scenario) and every request is recorded when a RunStore is
// configured.
type Backtester struct {
	loader Loader
	runs   store.RunStore // optional
	memo   *dashboard.Memo
	log    *slog.Logger
}

// NewBacktester creates a Backtester. runs may be nil; memo may be nil to
// disable memoization.
func NewBacktester(loader Loader, runs store.RunStore, memo *dashboard.Memo, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{
		loader: loader,
		runs:   runs,
		memo:   memo,
		log:    log.With("component", "backtest"),
	}
}

// Instrument returns the metadata of ticker and the number of entries in its
// history.
func (bt *Backtester) Instrument(ctx context.Context, ticker string) (*domain.InstrumentInfo, int, error) {
	series, info, err := bt.loader.Load(ctx, ticker)
	if err != nil {
		return nil, 0, err
	}
	return info, series.Len(), nil
}

// Prices returns the price history of ticker.
func (bt *Backtester) Prices(ctx context.Context, ticker string) (domain.PriceSeries, error) {
	series, _, err := bt.loader.Load(ctx, ticker)
	return series, err
}

// Run evaluates scenario against the history of ticker. The scenario is
// validated before any data is loaded.
func (bt *Backtester) Run(ctx context.Context, ticker string, scenario domain.Scenario) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	ticker = history.NormalizeTicker(ticker)

	series, info, err := bt.loader.Load(ctx, ticker)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	compute := func() (*engine.Report, error) {
		return engine.Run(series, scenario, info.Currency)
	}
	var report *engine.Report
	if bt.memo != nil {
		report, err = bt.memo.GetOrCompute(dashboard.MemoKey{Ticker: ticker, Scenario: scenario}, compute)
	} else {
		report, err = compute()
	}
	if err != nil {
		bt.log.Info("simulation rejected", "ticker", ticker, "scenario", scenario, "err", err)
		return nil, err
	}

	bt.log.Info("simulation done",
		"ticker", ticker,
		"windows", len(report.Result),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	bt.record(ctx, ticker, report)

	return &Result{Ticker: ticker, Instrument: info, Report: report}, nil
}

// record saves the run; failures are logged and do not fail the request.
func (bt *Backtester) record(ctx context.Context, ticker string, report *engine.Report) {
	if bt.runs == nil {
		return
	}
	run := &domain.Run{
		Ticker:            ticker,
		Scenario:          report.Scenario,
		TotalContribution: report.TotalContribution,
		Windows:           len(report.Result),
		Summary:           report.Summary,
	}
	if err := bt.runs.SaveRun(ctx, run); err != nil {
		bt.log.Warn("recording run failed", "ticker", ticker, "err", err)
	}
}

// Runs lists recorded runs, newest first.
func (bt *Backtester) Runs(ctx context.Context, ticker string, limit int) ([]domain.Run, error) {
	if bt.runs == nil {
		return []domain.Run{}, nil
	}
	return bt.runs.ListRuns(ctx, history.NormalizeTicker(ticker), limit)
}
