package main

import (
	"flag"
	"fmt"
	"math"
	"time"

	"market-backtest/internal/backtest"
	"market-backtest/internal/calendar"
	"market-backtest/internal/config"
	"market-backtest/internal/market"
	"market-backtest/internal/model"
	"market-backtest/internal/strategy"
)

// Demo:
// - Generate two weeks of synthetic minute bars for a few tickers
// - Run each strategy once over the same window
// - Print the account outcome and the first fills
func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional, only account/broker are used)")
	days := flag.Int("days", 10, "Number of trading days to generate")
	outCSV := flag.String("out", "", "Optional path to write the lucky_indicator fills CSV")
	flag.Parse()

	cal, err := calendar.Default()
	if err != nil {
		panic(err)
	}

	costs := backtest.Costs{InitialCash: 10000, BuyCommission: 7, SellCommission: 7}
	if *cfgPath != "" {
		cfg, err := config.LoadUnchecked(*cfgPath)
		if err != nil {
			panic(err)
		}
		costs = backtest.Costs{
			InitialCash:    cfg.Account.InitialCash,
			BuyCommission:  cfg.Broker.BuyCommission,
			SellCommission: cfg.Broker.Sell(),
		}
	}

	start := time.Date(2024, 6, 3, 8, 30, 0, 0, cal.Location)
	series := map[string]*model.Series{
		"WAVE":  synthetic("WAVE", cal, start, *days, 50, 0.00002, 0.04),
		"DRIFT": synthetic("DRIFT", cal, start, *days, 120, 0.00008, 0.01),
	}
	loader := market.LoaderFunc(func(ticker string) (*model.Series, error) {
		s, ok := series[ticker]
		if !ok {
			return nil, fmt.Errorf("%s: %w", ticker, market.ErrNoData)
		}
		return s, nil
	})

	// A small hand-made table: the 50th and 90th percentile gain after 0, 1 and 5 days.
	table, err := strategy.NewLuckyTable(
		[]float64{50, 90},
		[]float64{0, 86400, 5 * 86400},
		[][]float64{
			{1.000, 1.004, 1.010},
			{1.000, 1.012, 1.030},
		},
	)
	if err != nil {
		panic(err)
	}

	sim := backtest.NewSimulator(cal, loader, nil, table, nil)
	last, _ := series["WAVE"].Last()
	end := last.Time(cal.Location)

	runs := []config.StrategyConfig{
		{Name: backtest.BuyAndHoldName},
		{Name: backtest.ExpectationMeanName, Params: map[string]any{"direction": "long"}},
		{Name: backtest.ExpectationMeanName, Params: map[string]any{"direction": "short"}},
		{Name: backtest.LuckyIndicatorName, Params: map[string]any{"percentile": 90.0}},
	}

	fmt.Printf("Window %s .. %s (%s)\n\n", start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"), cal.Location)
	for _, sc := range runs {
		res, err := sim.Run(backtest.RunSpec{
			Strategy: sc,
			Tickers:  []string{"WAVE", "DRIFT"},
			Start:    start,
			End:      end,
			Step:     5 * time.Minute,
			Costs:    costs,
			Seed:     1,
		})
		if err != nil {
			panic(err)
		}

		fmt.Printf("%s\n", res.Params)
		fmt.Printf("  steps=%d aborted=%t fills=%d commission=$%.2f final=$%.2f ratio=%.4f\n",
			res.Steps, res.Aborted, len(res.Fills), res.CommissionPaid, res.FinalValue, res.Return())
		for i := 0; i < min(4, len(res.Fills)); i++ {
			f := res.Fills[i]
			fmt.Printf("  %s %-12s %-5s %6d @ %8.3f  cash=%10.2f\n",
				time.Unix(f.Time, 0).In(cal.Location).Format("2006-01-02 15:04"),
				f.Side, f.Ticker, f.Shares, f.Price, f.CashAfter)
		}
		fmt.Println()

		if *outCSV != "" && sc.Name == backtest.LuckyIndicatorName {
			if err := backtest.WriteFillsCSV(*outCSV, res.Fills, cal.Location); err != nil {
				panic(err)
			}
			fmt.Printf("Wrote CSV: %s\n", *outCSV)
		}
	}
}

// synthetic builds one bar per minute of every trading session: a daily sine
// wave of relative amplitude amp around an exponential drift per minute.
func synthetic(ticker string, cal calendar.Calendar, start time.Time, days int, base, drift, amp float64) *model.Series {
	var bars []model.Bar
	minute := 0
	session := int((cal.Close - cal.Open) / time.Minute)
	for t := start; days > 0; t = t.AddDate(0, 0, 1) {
		if !cal.IsTradingDay(t) {
			continue
		}
		days--
		open := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, cal.Location).Add(cal.Open)
		for m := 0; m <= session; m++ {
			phase := 2 * math.Pi * float64(m) / float64(session)
			price := base * math.Exp(drift*float64(minute)) * (1 + amp*math.Sin(phase))
			bars = append(bars, model.Bar{
				Timestamp: open.Add(time.Duration(m) * time.Minute).Unix(),
				Open:      price,
				High:      price,
				Low:       price,
				Close:     price,
			})
			minute++
		}
	}
	return model.NewSeries(ticker, bars)
}
