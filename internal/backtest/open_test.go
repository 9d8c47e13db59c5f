package backtest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shalyse/internal/config"
	"shalyse/internal/domain"
	"shalyse/internal/store"
)

func TestOpenOffline(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage:  config.Storage{DataDir: dir},
		Gather:   config.GatherConfig{StartDate: "2016-01-01"},
		Defaults: config.Defaults{Currency: "USD"},
	}

	env, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer env.Close()

	if env.Source != nil {
		t.Error("expected no source without credentials")
	}

	ctx := context.Background()
	if _, _, err := env.Retriever.Load(ctx, "SPY"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Load before import: got %v, want ErrNotFound", err)
	}

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, 500)
	for i := range points {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Price: 50 + float64(i)/5}
	}
	if _, err := env.Retriever.Import(ctx, domain.PriceSeries{Symbol: "SPY", Points: points}, "S&P 500"); err != nil {
		t.Fatalf("Import: %v", err)
	}

	res, err := env.Backtester.Run(ctx, "spy", domain.Scenario{Initial: 1000, Horizon: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Report.Result) != 500-365 {
		t.Errorf("got %d windows, want %d", len(res.Report.Result), 500-365)
	}

	runs, err := env.Backtester.Runs(ctx, "SPY", 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Ticker != "SPY" {
		t.Errorf("runs = %+v", runs)
	}

	// Re-importing a longer history invalidates the memoized report.
	longer := make([]domain.PricePoint, 600)
	for i := range longer {
		longer[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Price: 50 + float64(i)/5}
	}
	if _, err := env.Retriever.Import(ctx, domain.PriceSeries{Symbol: "SPY", Points: longer}, "S&P 500"); err != nil {
		t.Fatalf("second Import: %v", err)
	}
	res, err = env.Backtester.Run(ctx, "SPY", domain.Scenario{Initial: 1000, Horizon: 1})
	if err != nil {
		t.Fatalf("Run after import: %v", err)
	}
	if len(res.Report.Result) != 600-365 {
		t.Errorf("after import got %d windows, want %d", len(res.Report.Result), 600-365)
	}

	if _, err := os.Stat(filepath.Join(dir, "shalyse.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestOpenBadStartDate(t *testing.T) {
	cfg := &config.Config{
		Storage: config.Storage{DataDir: t.TempDir()},
		Gather:  config.GatherConfig{StartDate: "01/02/2016"},
	}
	if _, err := Open(cfg, nil); err == nil {
		t.Fatal("expected error for malformed start date")
	}
}
