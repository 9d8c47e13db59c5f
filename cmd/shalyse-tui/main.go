package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"shalyse/internal/backtest"
	"shalyse/internal/config"
	"shalyse/internal/presets"
	"shalyse/internal/util"
)

func main() {
	cfgPath := "config/shalyse.yaml"
	if p := os.Getenv("SHALYSE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logPath := fmt.Sprintf("/tmp/shalyse-tui-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: util.ParseLevel(cfg.Logging.Level)}))
	util.SetDefault(logger)

	env, err := backtest.Open(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening stores: %v\n", err)
		os.Exit(1)
	}
	defer env.Close()

	ps := presets.NewStore(cfg.Storage.PresetsPath, logger)
	ps.Seed("default", cfg.DefaultScenario())

	p := tea.NewProgram(
		initialModel(env.Backtester, ps, cfg.Defaults.Ticker, cfg.DefaultScenario(), logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	hits, misses := env.Memo.Stats()
	logger.Info("exiting", "memoHits", hits, "memoMisses", misses)
}
