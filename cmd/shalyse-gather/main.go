package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shalyse/internal/config"
	"shalyse/internal/gather/us"
	"shalyse/internal/store"
	"shalyse/internal/util"
)

func main() {
	tickers := flag.String("tickers", "", "comma-separated tickers, overrides gather.tickers")
	flag.Parse()

	cfgPath := "config/shalyse.yaml"
	if p := os.Getenv("SHALYSE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatalf("alpaca credentials are required (APCA_API_KEY_ID, APCA_API_SECRET_KEY)")
	}

	list := cfg.Gather.Tickers
	if *tickers != "" {
		list = nil
		for _, t := range strings.Split(*tickers, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				list = append(list, t)
			}
		}
	}
	if len(list) == 0 {
		log.Fatalf("no tickers configured")
	}

	src := us.NewAlpacaSource(us.AlpacaOpts{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		BaseURL:         cfg.Alpaca.BaseURL,
		DataURL:         cfg.Alpaca.DataURL,
		Feed:            cfg.Alpaca.Feed,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
		MaxAttempts:     cfg.Gather.MaxAttempts,
	})
	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	endDate := func(context.Context) (time.Time, error) {
		return us.LatestFinishedTradingDay(src.Trading(), time.Now())
	}
	gatherer := us.NewDailyBarGatherer(src, pstore, list, cfg.Gather.MaxWorkers, cfg.Gather.StartDate, endDate)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gatherer", "name", gatherer.Name(), "tickers", len(list))
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
}
