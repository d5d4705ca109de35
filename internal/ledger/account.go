package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"market-backtest/internal/model"
)

// Fill records one executed order.
type Fill struct {
	Time       int64
	Ticker     string
	Side       model.Side
	Shares     int64
	Price      float64
	Commission float64
	CashAfter  float64
}

// Account holds cash and signed share counts per ticker.
// Holdings go negative only through short sales.
type Account struct {
	Cash           float64
	CommissionPaid float64

	broker      *Broker
	initialCash float64
	holdings    map[string]int64
	fills       []Fill
}

func newAccount(b *Broker, cash float64) *Account {
	return &Account{
		Cash:        cash,
		broker:      b,
		initialCash: cash,
		holdings:    make(map[string]int64),
	}
}

func (a *Account) Broker() *Broker { return a.broker }

func (a *Account) InitialCash() float64 { return a.initialCash }

// Reset restores the opening balance so the account can be reused for another trial.
func (a *Account) Reset() {
	a.Cash = a.initialCash
	a.CommissionPaid = 0
	clear(a.holdings)
	a.fills = a.fills[:0]
}

// Holding returns the signed share count for ticker (0 when never traded).
func (a *Account) Holding(ticker string) int64 { return a.holdings[ticker] }

// Holdings returns a copy of the non-zero positions.
func (a *Account) Holdings() map[string]int64 {
	out := make(map[string]int64, len(a.holdings))
	for t, n := range a.holdings {
		if n != 0 {
			out[t] = n
		}
	}
	return out
}

// HasShort reports whether any position is short.
func (a *Account) HasShort() bool {
	for _, n := range a.holdings {
		if n < 0 {
			return true
		}
	}
	return false
}

// Fills returns the executed orders in execution order.
func (a *Account) Fills() []Fill {
	out := make([]Fill, len(a.fills))
	copy(out, a.fills)
	return out
}

// Value is cash plus every position marked at its quote for ts.
func (a *Account) Value(ts int64) (float64, error) {
	v := a.Cash
	for ticker, shares := range a.holdings {
		if shares == 0 {
			continue
		}
		q, err := a.broker.quotes.Quote(ticker, ts)
		if err != nil {
			return 0, fmt.Errorf("value %s: %w", ticker, err)
		}
		v += float64(shares) * q
	}
	return v, nil
}

func (a *Account) apply(ts int64, ticker string, side model.Side, delta int64, price, cashDelta, commission float64) {
	a.Cash += cashDelta
	a.holdings[ticker] += delta
	a.CommissionPaid += commission
	shares := delta
	if shares < 0 {
		shares = -shares
	}
	a.fills = append(a.fills, Fill{
		Time:       ts,
		Ticker:     ticker,
		Side:       side,
		Shares:     shares,
		Price:      price,
		Commission: commission,
		CashAfter:  a.Cash,
	})
}

func (a *Account) BuyMax(ticker string, ts int64, budget float64) int64 {
	return a.broker.BuyMax(a, ticker, ts, budget)
}

func (a *Account) Buy(ticker string, shares, ts int64) int64 {
	return a.broker.Buy(a, ticker, shares, ts)
}

func (a *Account) SellAll(ticker string, ts int64) int64 {
	return a.broker.SellAll(a, ticker, ts)
}

func (a *Account) Sell(ticker string, shares, ts int64) int64 {
	return a.broker.Sell(a, ticker, shares, ts)
}

func (a *Account) SellShortMax(ticker string, ts int64, budget float64) int64 {
	return a.broker.SellShortMax(a, ticker, ts, budget)
}

func (a *Account) SellShort(ticker string, shares, ts int64) int64 {
	return a.broker.SellShort(a, ticker, shares, ts)
}

func (a *Account) BuyToCover(ticker string, shares, ts int64) int64 {
	return a.broker.BuyToCover(a, ticker, shares, ts)
}

func (a *Account) CoverAll(ticker string, ts int64) int64 {
	return a.broker.CoverAll(a, ticker, ts)
}

// Describe renders the account like a statement as of ts.
func (a *Account) Describe(ts int64) string {
	tickers := make([]string, 0, len(a.holdings))
	for t, n := range a.holdings {
		if n != 0 {
			tickers = append(tickers, t)
		}
	}
	sort.Strings(tickers)
	parts := make([]string, len(tickers))
	for i, t := range tickers {
		parts[i] = fmt.Sprintf("%s:%d", t, a.holdings[t])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "cash: %.2f\n", a.Cash)
	fmt.Fprintf(&b, "commission_paid: %.2f\n", a.CommissionPaid)
	fmt.Fprintf(&b, "holdings as of %s: {%s}\n", time.Unix(ts, 0).UTC().Format(time.RFC3339), strings.Join(parts, ", "))
	if v, err := a.Value(ts); err == nil {
		fmt.Fprintf(&b, "value: %.2f", v)
	} else {
		fmt.Fprintf(&b, "value: unavailable (%v)", err)
	}
	return b.String()
}
