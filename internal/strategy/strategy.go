package strategy

import (
	"errors"
	"fmt"
	"time"

	"market-backtest/internal/ledger"
)

// ErrInvalidConfig wraps every constructor validation failure.
var ErrInvalidConfig = errors.New("invalid strategy configuration")

// Decision tells the run loop whether to keep stepping.
type Decision int

const (
	Continue Decision = iota
	// Abort ends the run immediately; no further tickers or steps are visited.
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "continue"
}

// Context is what a strategy sees for one ticker at one trading instant.
type Context struct {
	Ticker string
	Time   time.Time
	// AmountPerTicker is the account cash divided evenly across the traded
	// tickers, recomputed at the start of every step.
	AmountPerTicker float64
}

// Timestamp is Context.Time in Unix seconds.
func (c Context) Timestamp() int64 { return c.Time.Unix() }

type Strategy interface {
	Name() string
	Account() *ledger.Account
	Tickers() []string
	Decide(ctx Context) Decision
	// Describe renders the parameter set.
	Describe() string
}

// base carries what every strategy shares.
type base struct {
	account *ledger.Account
	tickers []string
}

func newBase(account *ledger.Account, tickers []string) (base, error) {
	if account == nil {
		return base{}, fmt.Errorf("%w: account is nil", ErrInvalidConfig)
	}
	if len(tickers) == 0 {
		return base{}, fmt.Errorf("%w: no tickers to trade", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		if t == "" {
			return base{}, fmt.Errorf("%w: empty ticker symbol", ErrInvalidConfig)
		}
		if seen[t] {
			return base{}, fmt.Errorf("%w: duplicate ticker %q", ErrInvalidConfig, t)
		}
		seen[t] = true
	}
	return base{account: account, tickers: append([]string(nil), tickers...)}, nil
}

func (b base) Account() *ledger.Account { return b.account }

func (b base) Tickers() []string { return append([]string(nil), b.tickers...) }
