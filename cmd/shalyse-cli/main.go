package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shalyse/internal/api"
	"shalyse/internal/backtest"
	"shalyse/internal/config"
	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
	"shalyse/internal/engine"
	"shalyse/internal/history"
	"shalyse/internal/util"
	"shalyse/pkg/shalyse"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shalyse-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  simulate   Backtest a scenario against a ticker or CSV file\n")
	fmt.Fprintf(os.Stderr, "  fetch      Fetch and cache a ticker, or import a CSV file\n")
	fmt.Fprintf(os.Stderr, "  info       Show instrument metadata\n")
	fmt.Fprintf(os.Stderr, "  runs       List recorded simulations\n")
	fmt.Fprintf(os.Stderr, "\nRun 'shalyse-cli <command> -h' for command options.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("shalyse-cli %s\n", version)
	case "simulate":
		err = runSimulate(ctx, os.Args[2:])
	case "fetch":
		err = runFetch(ctx, os.Args[2:])
	case "info":
		err = runInfo(ctx, os.Args[2:])
	case "runs":
		err = runRuns(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfgPath := "config/shalyse.yaml"
	if p := os.Getenv("SHALYSE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
	return cfg
}

func openEnv(cfg *config.Config) *backtest.Env {
	env, err := backtest.Open(cfg, nil)
	if err != nil {
		log.Fatalf("opening stores: %v", err)
	}
	return env
}

func scenarioFlags(fs *flag.FlagSet, def domain.Scenario) *domain.Scenario {
	s := &domain.Scenario{}
	fs.Float64Var(&s.Initial, "initial", def.Initial, "initial lump sum")
	fs.Float64Var(&s.Topup, "topup", def.Topup, "amount added every period")
	fs.IntVar(&s.Period, "period", def.Period, "entries between top-ups, 0 disables them")
	fs.IntVar(&s.Horizon, "horizon", def.Horizon, "holding period in years")
	return s
}

func runSimulate(ctx context.Context, args []string) error {
	cfg := loadConfig()

	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	ticker := fs.String("ticker", cfg.Defaults.Ticker, "ticker to backtest")
	csvPath := fs.String("csv", "", "backtest a CSV file (Date, Adj Close) instead of a ticker")
	server := fs.String("server", "", "run on a shalyse-server REST endpoint, e.g. http://localhost:8080")
	grpcAddr := fs.String("grpc", "", "run on a shalyse-server gRPC endpoint, e.g. localhost:9090")
	bins := fs.Int("bins", 20, "histogram bins, 0 to hide")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	scenario := scenarioFlags(fs, cfg.DefaultScenario())
	fs.Parse(args)

	var (
		title        string
		totalContrib float64
		result       domain.SimulationResult
		summary      domain.DistributionSummary
		report       any
	)

	switch {
	case *server != "":
		sim, err := shalyse.NewClient(*server).Simulate(ctx, *ticker, shalyse.Scenario(*scenario))
		if err != nil {
			return err
		}
		title, totalContrib, result, report = sim.Ticker, sim.TotalContrib, sim.Result, sim
		summary = make(domain.DistributionSummary, len(sim.Summary))
		for name, st := range sim.Summary {
			summary[domain.StatName(name)] = domain.Statistic(st)
		}

	case *grpcAddr != "":
		client, err := api.Dial(*grpcAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		reply, err := client.Simulate(ctx, *ticker, *scenario)
		if err != nil {
			return err
		}
		title, totalContrib, result, summary, report = reply.Ticker, reply.TotalContrib, reply.Result, reply.Summary, reply

	case *csvPath != "":
		series, err := history.LoadCSV(*csvPath, "")
		if err != nil {
			return err
		}
		rep, err := engine.Run(series, *scenario, cfg.Defaults.Currency)
		if err != nil {
			return err
		}
		title, totalContrib, result, summary, report = series.Symbol, rep.TotalContribution, rep.Result, rep.Summary, rep

	default:
		env := openEnv(cfg)
		defer env.Close()
		res, err := env.Backtester.Run(ctx, *ticker, *scenario)
		if err != nil {
			return err
		}
		title = fmt.Sprintf("%s  %s", res.Ticker, res.Instrument.ShortName)
		totalContrib, result, summary, report = res.Report.TotalContribution, res.Report.Result, res.Report.Summary, res.Report
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println(dashboard.RenderSummary(title, summary))
	fmt.Printf("contributed %s over %d windows\n", dashboard.FormatInt(int(totalContrib)), len(result))
	if *bins > 0 {
		fmt.Println(dashboard.RenderHistogram(dashboard.Histogram(result, *bins), 40))
	}
	return nil
}

func runFetch(ctx context.Context, args []string) error {
	cfg := loadConfig()

	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	ticker := fs.String("ticker", cfg.Defaults.Ticker, "ticker to fetch and cache")
	csvPath := fs.String("csv", "", "import a CSV file (Date, Adj Close) into the cache")
	symbol := fs.String("symbol", "", "symbol for the imported CSV, defaults to the file name")
	name := fs.String("name", "", "display name for the imported CSV")
	fs.Parse(args)

	env := openEnv(cfg)
	defer env.Close()

	if *csvPath != "" {
		series, err := history.LoadCSV(*csvPath, *symbol)
		if err != nil {
			return err
		}
		info, err := env.Retriever.Import(ctx, series, *name)
		if err != nil {
			return err
		}
		printInstrument(info, series.Len())
		return nil
	}

	start := time.Now()
	series, info, err := env.Retriever.Load(ctx, *ticker)
	if err != nil {
		return err
	}
	printInstrument(info, series.Len())
	fmt.Printf("loaded in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runInfo(ctx context.Context, args []string) error {
	cfg := loadConfig()

	fs := flag.NewFlagSet("info", flag.ExitOnError)
	ticker := fs.String("ticker", cfg.Defaults.Ticker, "ticker to describe")
	fs.Parse(args)

	env := openEnv(cfg)
	defer env.Close()

	info, points, err := env.Backtester.Instrument(ctx, *ticker)
	if err != nil {
		return err
	}
	printInstrument(info, points)
	return nil
}

func printInstrument(info *domain.InstrumentInfo, points int) {
	fmt.Printf("%-10s %s\n", info.Symbol, info.ShortName)
	fmt.Printf("  currency   %s\n", info.Currency)
	if info.Exchange != "" {
		fmt.Printf("  exchange   %s\n", info.Exchange)
	}
	fmt.Printf("  history    %s .. %s (%d years, %s points)\n",
		info.FirstDate.Format("2006-01-02"), info.LastDate.Format("2006-01-02"),
		info.Years, dashboard.FormatInt(points))
	fmt.Printf("  max horizon %d years\n", dashboard.MaxHorizon(info, points))
}

func runRuns(ctx context.Context, args []string) error {
	cfg := loadConfig()

	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	ticker := fs.String("ticker", "", "only show runs of this ticker")
	limit := fs.Int("limit", 20, "maximum number of runs")
	fs.Parse(args)

	env := openEnv(cfg)
	defer env.Close()

	runs, err := env.Backtester.Runs(ctx, *ticker, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	fmt.Printf("%-5s %-17s %-8s %10s %8s %5s %4s %10s %10s %8s\n",
		"ID", "CREATED", "TICKER", "INITIAL", "TOPUP", "EVERY", "YRS", "CONTRIB", "MEDIAN", "MEDIAN%")
	for _, r := range runs {
		median := r.Summary[domain.StatMedian]
		fmt.Printf("%-5d %-17s %-8s %10s %8s %5d %4d %10s %10s %8s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Ticker,
			dashboard.FormatInt(int(r.Scenario.Initial)),
			dashboard.FormatInt(int(r.Scenario.Topup)),
			r.Scenario.Period,
			r.Scenario.Horizon,
			dashboard.FormatInt(int(r.TotalContribution)),
			dashboard.FormatSigned(median.Absolute),
			dashboard.FormatPercent(median.Percentage))
	}
	return nil
}
