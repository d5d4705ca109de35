package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"market-backtest/internal/backtest"
	"market-backtest/internal/config"
	"market-backtest/internal/data"
	"market-backtest/internal/logging"
	"market-backtest/internal/recorder"
	"market-backtest/internal/strategy"
)

var (
	configPath string
	dataDir    string
	verbose    bool
)

func main() {
	app := cli.NewApp()
	app.Name = "marketsim"
	app.Usage = "replay trading strategies over minute bars"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "examples/config.yaml",
			Usage:       "path to the YAML config",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "data",
			Usage:       "directory of <TICKER>.csv files, overrides data.dir",
			Destination: &dataDir,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Usage:       "development logging",
			Destination: &verbose,
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		sweepCommand,
		tickersCommand,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "runs the configured strategy once over run.start..run.end",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "out",
			Value: "results/fills.csv",
			Usage: "fills CSV output path",
		},
		&cli.StringSliceFlag{
			Name:  "ticker",
			Usage: "overrides run.tickers (repeatable)",
		},
	},
	Action: runOnce,
}

var sweepCommand = &cli.Command{
	Name:  "sweep",
	Usage: "runs randomized trials over sweep.tickers and prints the ratio distribution",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "trials", Usage: "overrides sweep.trials"},
		&cli.IntFlag{Name: "workers", Usage: "overrides sweep.workers"},
		&cli.Int64Flag{Name: "seed", Usage: "overrides sweep.seed"},
	},
	Action: runSweep,
}

var tickersCommand = &cli.Command{
	Name:  "tickers",
	Usage: "lists the price files in the data directory",
	Action: func(c *cli.Context) error {
		cfg, err := config.LoadUnchecked(configPath)
		if err != nil {
			cfg, _ = config.Parse(nil)
		}
		dir := cfg.Data.Dir
		if dataDir != "" {
			dir = dataDir
		}
		list, err := data.ListTickers(dir)
		if err != nil {
			return err
		}
		for _, t := range list {
			fmt.Printf("%-8s %10d %s\n", t.Symbol, t.Bytes, t.File)
		}
		return nil
	},
}

type setup struct {
	cfg   *config.Config
	log   *zap.Logger
	sim   *backtest.Simulator
	close func()
}

func newSetup() (*setup, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	log := logging.Must(cfg.Log.Level, verbose || cfg.Log.Development)

	cal, err := cfg.Calendar.Build()
	if err != nil {
		return nil, err
	}
	var table *strategy.LuckyTable
	if cfg.Data.LuckyTable != "" {
		if table, err = data.LoadLuckyTable(cfg.Data.LuckyTable); err != nil {
			return nil, err
		}
	}
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Recorder.SQLitePath != "" {
		if rec, err = recorder.NewSQLiteRecorder(cfg.Recorder.SQLitePath, log); err != nil {
			return nil, err
		}
	}
	return &setup{
		cfg: cfg,
		log: log,
		sim: backtest.NewSimulator(cal, data.NewCSVLoader(cfg.Data.Dir, cal.Location), rec, table, log),
		close: func() {
			rec.Close()
			_ = log.Sync()
		},
	}, nil
}

func (s *setup) costs() backtest.Costs {
	return backtest.Costs{
		InitialCash:    s.cfg.Account.InitialCash,
		BuyCommission:  s.cfg.Broker.BuyCommission,
		SellCommission: s.cfg.Broker.Sell(),
	}
}

func runOnce(c *cli.Context) error {
	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.close()

	if t := c.StringSlice("ticker"); len(t) > 0 {
		s.cfg.Run.Tickers = t
	}
	if err := s.cfg.ValidateRun(); err != nil {
		return err
	}
	start, end, err := s.cfg.RunWindow()
	if err != nil {
		return err
	}

	res, err := s.sim.Run(backtest.RunSpec{
		Strategy: s.cfg.Strategy,
		Tickers:  upper(s.cfg.Run.Tickers),
		Start:    start,
		End:      end,
		Step:     s.cfg.Run.Step,
		Costs:    s.costs(),
	})
	if err != nil {
		return err
	}

	out := c.String("out")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := backtest.WriteFillsCSV(out, res.Fills, s.sim.Calendar.Location); err != nil {
		return err
	}

	fmt.Printf("Wrote %d fills to %s\n", len(res.Fills), out)
	fmt.Printf("%s %s\n", res.Strategy, res.Params)
	fmt.Printf("steps=%d aborted=%t initial=$%.2f final=$%.2f ratio=%.4f commission=$%.2f\n",
		res.Steps, res.Aborted, res.InitialCash, res.FinalValue, res.Return(), res.CommissionPaid)
	return nil
}

func runSweep(c *cli.Context) error {
	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.close()

	sw := s.cfg.Sweep
	if c.IsSet("trials") {
		sw.Trials = c.Int("trials")
	}
	if c.IsSet("workers") {
		sw.Workers = c.Int("workers")
	}
	if c.IsSet("seed") {
		sw.Seed = c.Int64("seed")
	}
	s.cfg.Sweep = sw
	if err := s.cfg.ValidateSweep(); err != nil {
		return err
	}

	res, err := s.sim.Sweep(c.Context, backtest.SweepSpec{
		Strategy: s.cfg.Strategy,
		Tickers:  upper(sw.Tickers),
		Trials:   sw.Trials,
		Window:   sw.Window,
		Step:     sw.Step,
		Workers:  sw.Workers,
		Seed:     sw.Seed,
		Costs:    s.costs(),
	})
	if err != nil {
		return err
	}

	sum := res.Summary
	fmt.Printf("sweep %s: %d trials, %d exited early, %d failed\n", res.ID, sum.Count, sum.Exited, res.Failed)
	if len(res.Skipped) > 0 {
		fmt.Printf("skipped (history shorter than %s): %s\n", sw.Window, strings.Join(res.Skipped, ","))
	}
	fmt.Printf("mean=%.4f stddev=%.4f win_rate=%.3f\n", sum.Mean, sum.StdDev, sum.WinRate)
	for _, q := range sum.Quantiles {
		fmt.Printf("  p%-3.0f %.4f\n", q.Level*100, q.Value)
	}

	fmt.Printf("%-4s %-8s %-6s %-8s %-8s %-8s %-8s\n", "rank", "ticker", "count", "mean", "median", "min", "max")
	for i, r := range res.Ranking {
		fmt.Printf("%-4d %-8s %-6d %-8.4f %-8.4f %-8.4f %-8.4f\n", i+1, r.Ticker, r.Count, r.Mean, r.Median, r.Min, r.Max)
	}
	return nil
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	return out
}
