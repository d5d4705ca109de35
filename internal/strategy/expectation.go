package strategy

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"market-backtest/internal/ledger"
)

// Direction is the side ExpectationMean trades for a whole trial.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// ParseDirection accepts "long" or "short".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	}
	return 0, fmt.Errorf("%w: direction %q", ErrInvalidConfig, s)
}

// RandomDirection picks long or short with equal probability.
func RandomDirection(rng *rand.Rand) Direction {
	return Direction(rng.Intn(2))
}

// Thresholds are gain levels relative to the entry price, e.g. 0.05 and -0.10.
type Thresholds struct {
	SmallGain float64
	LargeGain float64
	SmallLoss float64
	LargeLoss float64
}

func (t Thresholds) Validate() error {
	if !(t.LargeLoss < t.SmallLoss && t.SmallLoss < 0 && 0 < t.SmallGain && t.SmallGain <= t.LargeGain) {
		return fmt.Errorf("%w: thresholds must satisfy large_loss < small_loss < 0 < small_gain <= large_gain, got %+v",
			ErrInvalidConfig, t)
	}
	return nil
}

// Expectation-mean states.
const (
	stateFlat = iota
	stateEntered
	stateLargeTier
	stateClosed
)

// ExpectationMean makes exactly one round trip per trial. It enters in the
// injected direction, then exits on the first threshold it crosses:
//
//	entered:    gain >= small gain or gain <= large loss exits; gain <= small loss moves to the large tier
//	large tier: gain >= large gain or gain <= large loss exits
//
// Exiting aborts the run.
type ExpectationMean struct {
	base
	Thresholds Thresholds
	Direction  Direction

	state       int
	entryTicker string
	entryPrice  float64
	entryTime   time.Time
	entryShares int64
	exitTime    time.Time
}

func NewExpectationMean(account *ledger.Account, tickers []string, th Thresholds, dir Direction) (*ExpectationMean, error) {
	b, err := newBase(account, tickers)
	if err != nil {
		return nil, err
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if dir != Long && dir != Short {
		return nil, fmt.Errorf("%w: direction %d", ErrInvalidConfig, dir)
	}
	return &ExpectationMean{base: b, Thresholds: th, Direction: dir}, nil
}

func (s *ExpectationMean) Name() string { return "expectation_mean" }

func (s *ExpectationMean) Decide(ctx Context) Decision {
	switch s.state {
	case stateFlat:
		s.enter(ctx)
		return Continue
	case stateClosed:
		return Abort
	}
	if ctx.Ticker != s.entryTicker {
		return Continue
	}

	gain, ok := s.gain(ctx)
	if !ok {
		return Continue
	}
	th := s.Thresholds
	switch s.state {
	case stateEntered:
		if gain >= th.SmallGain || gain <= th.LargeLoss {
			return s.exit(ctx)
		}
		if gain <= th.SmallLoss {
			s.state = stateLargeTier
		}
	case stateLargeTier:
		if gain >= th.LargeGain || gain <= th.LargeLoss {
			return s.exit(ctx)
		}
	}
	return Continue
}

func (s *ExpectationMean) enter(ctx Context) {
	ts := ctx.Timestamp()
	price, ok := s.account.Broker().Quote(ctx.Ticker, ts)
	if !ok {
		return
	}
	switch s.Direction {
	case Long:
		s.entryShares = s.account.BuyMax(ctx.Ticker, ts, ctx.AmountPerTicker)
	case Short:
		s.entryShares = s.account.SellShortMax(ctx.Ticker, ts, ctx.AmountPerTicker)
	}
	s.entryTicker = ctx.Ticker
	s.entryPrice = price
	s.entryTime = ctx.Time
	s.state = stateEntered
}

func (s *ExpectationMean) exit(ctx Context) Decision {
	ts := ctx.Timestamp()
	switch s.Direction {
	case Long:
		s.account.SellAll(ctx.Ticker, ts)
	case Short:
		s.account.BuyToCover(ctx.Ticker, s.entryShares, ts)
	}
	s.exitTime = ctx.Time
	s.state = stateClosed
	return Abort
}

func (s *ExpectationMean) gain(ctx Context) (float64, bool) {
	price, ok := s.account.Broker().Quote(ctx.Ticker, ctx.Timestamp())
	if !ok {
		return 0, false
	}
	if s.Direction == Short {
		return s.entryPrice/price - 1, true
	}
	return price/s.entryPrice - 1, true
}

// State is 0 (flat), 1 (entered), 2 (large tier) or 3 (closed).
func (s *ExpectationMean) State() int { return s.state }

// Entry returns the entry price and instant; ok is false before entering.
func (s *ExpectationMean) Entry() (price float64, at time.Time, ok bool) {
	return s.entryPrice, s.entryTime, s.state != stateFlat
}

// ExitTime is the instant the position was closed, zero while open.
func (s *ExpectationMean) ExitTime() time.Time { return s.exitTime }

// Reset returns the strategy and its account to the start of a trial.
// dir replaces the direction for the next trial.
func (s *ExpectationMean) Reset(dir Direction) {
	s.account.Reset()
	s.Direction = dir
	s.state = stateFlat
	s.entryTicker = ""
	s.entryPrice = 0
	s.entryTime = time.Time{}
	s.entryShares = 0
	s.exitTime = time.Time{}
}

func (s *ExpectationMean) Describe() string {
	th := s.Thresholds
	return fmt.Sprintf("ExpectationMean: small gain/loss %g/%g; large gain/loss %g/%g; mode %s",
		th.SmallGain, th.SmallLoss, th.LargeGain, th.LargeLoss, s.Direction)
}
