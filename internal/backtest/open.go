package backtest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shalyse/internal/config"
	"shalyse/internal/dashboard"
	"shalyse/internal/gather/us"
	"shalyse/internal/history"
	"shalyse/internal/store"
)

// memoCapacity bounds the number of cached reports per process.
const memoCapacity = 256

// Env is the storage and retrieval stack assembled from a Config.
type Env struct {
	Bars       *store.ParquetStore
	DB         *store.SQLiteStore
	Source     *us.AlpacaSource // nil without Alpaca credentials
	Retriever  *history.Retriever
	Memo       *dashboard.Memo
	Backtester *Backtester
}

// Open builds the parquet cache, the SQLite database, the optional Alpaca
// source and a Backtester over them. Callers must Close the Env.
func Open(cfg *config.Config, log *slog.Logger) (*Env, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	startDate, err := time.Parse("2006-01-02", cfg.Gather.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parsing gather.start_date %q: %w", cfg.Gather.StartDate, err)
	}

	dbPath := cfg.Storage.SQLitePath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Storage.DataDir, "shalyse.db")
	}
	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	env := &Env{
		Bars: store.NewParquetStore(cfg.Storage.DataDir),
		DB:   db,
		Memo: dashboard.NewMemo(memoCapacity),
	}

	opts := history.Options{
		StartDate: startDate,
		Currency:  cfg.Defaults.Currency,
		Logger:    log,
		OnUpdate:  env.Memo.Forget,
	}
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		env.Source = us.NewAlpacaSource(us.AlpacaOpts{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			BaseURL:         cfg.Alpaca.BaseURL,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            cfg.Alpaca.Feed,
			RateLimitPerMin: cfg.Gather.RateLimitPerMin,
			MaxAttempts:     cfg.Gather.MaxAttempts,
		})
		opts.Source = env.Source
		opts.Assets = env.Source
	} else {
		log.Warn("alpaca credentials not set, serving cached history only")
	}

	env.Retriever = history.NewRetriever(env.Bars, env.DB, opts)
	env.Backtester = NewBacktester(env.Retriever, env.DB, env.Memo, log)
	return env, nil
}

// Close releases the database.
func (e *Env) Close() error {
	return e.DB.Close()
}
