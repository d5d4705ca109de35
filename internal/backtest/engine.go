package backtest

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"market-backtest/internal/calendar"
	"market-backtest/internal/strategy"
)

var (
	// ErrInvalidRun is returned for windows or step sizes that cannot be simulated.
	ErrInvalidRun = errors.New("invalid run")
	// ErrValuation is returned alongside a result whose final account value could not be priced.
	ErrValuation = errors.New("account valuation failed")
)

type Engine struct {
	Calendar calendar.Calendar
	log      *zap.Logger
}

func New(cal calendar.Calendar, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Calendar: cal, log: log}
}

// Run steps strat through every trading instant in [start, end], step apart,
// skipping closed periods. At each instant the account cash is split evenly
// across the strategy's tickers and Decide is called for each ticker in order.
// A strategy returning Abort ends the run at that instant.
func (e *Engine) Run(strat strategy.Strategy, start, end time.Time, step time.Duration) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("%w: strategy is nil", ErrInvalidRun)
	}
	if err := e.Calendar.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be > 0, got %s", ErrInvalidRun, step)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRun, end, start)
	}

	acct := strat.Account()
	tickers := strat.Tickers()
	res := &Result{
		Strategy: strat.Name(),
		Params:   strat.Describe(),
		Tickers:  tickers,
		Start:    start,
		End:      end,
	}

	t := e.Calendar.Next(start)
	res.FirstStep = t

loop:
	for !t.After(end) {
		perTicker := acct.Cash / float64(len(tickers))
		for _, ticker := range tickers {
			d := strat.Decide(strategy.Context{
				Ticker:          ticker,
				Time:            t,
				AmountPerTicker: perTicker,
			})
			if d == strategy.Abort {
				res.Aborted = true
				res.AbortedAt = t
				res.Steps++
				res.LastStep = t
				break loop
			}
		}
		res.Steps++
		res.LastStep = t
		t = e.Calendar.Next(t.Add(step))
	}

	res.ValuedAt = end
	if res.Aborted {
		res.ValuedAt = res.AbortedAt
	}
	res.Fills = acct.Fills()
	res.Cash = acct.Cash
	res.CommissionPaid = acct.CommissionPaid
	res.InitialCash = acct.InitialCash()

	e.log.Debug("run finished",
		zap.String("strategy", res.Strategy),
		zap.Strings("tickers", tickers),
		zap.Int("steps", res.Steps),
		zap.Bool("aborted", res.Aborted),
		zap.Int("fills", len(res.Fills)),
	)

	v, err := acct.Value(res.ValuedAt.Unix())
	if err != nil {
		return res, fmt.Errorf("%w at %s: %v", ErrValuation, res.ValuedAt, err)
	}
	res.FinalValue = v
	return res, nil
}
