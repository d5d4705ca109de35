package strategy

import (
	"fmt"
	"strings"
	"time"

	"market-backtest/internal/ledger"
)

// BuyAndHold spends its share of cash on each ticker as soon as cash is
// available and liquidates everything at SellAt. A zero SellAt holds to the
// end of the run.
type BuyAndHold struct {
	base
	SellAt time.Time

	sold bool
}

func NewBuyAndHold(account *ledger.Account, tickers []string, sellAt time.Time) (*BuyAndHold, error) {
	b, err := newBase(account, tickers)
	if err != nil {
		return nil, err
	}
	return &BuyAndHold{base: b, SellAt: sellAt}, nil
}

func (s *BuyAndHold) Name() string { return "buy_and_hold" }

func (s *BuyAndHold) Decide(ctx Context) Decision {
	ts := ctx.Timestamp()
	if !s.SellAt.IsZero() && !ctx.Time.Before(s.SellAt) {
		if s.account.Holding(ctx.Ticker) > 0 {
			s.account.SellAll(ctx.Ticker, ts)
		}
		s.sold = true
		return Continue
	}
	if s.sold {
		return Continue
	}
	if s.account.Cash > 0 {
		s.account.BuyMax(ctx.Ticker, ts, ctx.AmountPerTicker)
	}
	return Continue
}

// Reset clears the sold flag and the account.
func (s *BuyAndHold) Reset() {
	s.account.Reset()
	s.sold = false
}

func (s *BuyAndHold) Describe() string {
	sellAt := "end of run"
	if !s.SellAt.IsZero() {
		sellAt = s.SellAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("Buy-and-Hold: sell at %s; tickers %s", sellAt, strings.Join(s.tickers, ", "))
}
