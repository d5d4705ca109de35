package ledger

import (
	"errors"
	"math"

	"market-backtest/internal/model"
)

// Quoter supplies close prices. *market.Exchange satisfies it.
type Quoter interface {
	Quote(ticker string, ts int64) (float64, error)
}

// Broker executes all-or-nothing orders against an exchange with a fixed
// per-trade commission. It holds no per-trade state.
//
// Every order method returns the number of shares transacted. Zero means the
// order did not execute: insufficient cash or holdings, or no usable quote.
type Broker struct {
	BuyCommission  float64
	SellCommission float64

	quotes Quoter
}

func NewBroker(q Quoter, buyCommission, sellCommission float64) (*Broker, error) {
	if q == nil {
		return nil, errors.New("broker needs a quote source")
	}
	if buyCommission < 0 || sellCommission < 0 {
		return nil, errors.New("commissions must be >= 0")
	}
	return &Broker{
		BuyCommission:  buyCommission,
		SellCommission: sellCommission,
		quotes:         q,
	}, nil
}

// NewAccount opens an account with the given starting cash.
func (b *Broker) NewAccount(cash float64) *Account {
	return newAccount(b, cash)
}

// Quote returns a usable (positive, finite) price or ok=false.
func (b *Broker) Quote(ticker string, ts int64) (price float64, ok bool) {
	q, err := b.quotes.Quote(ticker, ts)
	if err != nil || q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, false
	}
	return q, true
}

// BuyMax buys as many whole shares as budget allows after commission.
// budget is clamped to the account's cash.
func (b *Broker) BuyMax(a *Account, ticker string, ts int64, budget float64) int64 {
	if budget > a.Cash {
		budget = a.Cash
	}
	q, ok := b.Quote(ticker, ts)
	if !ok {
		return 0
	}
	shares := int64(math.Floor((budget - b.BuyCommission) / q))
	if shares <= 0 {
		return 0
	}
	cost := q * float64(shares)
	if a.Cash < cost+b.BuyCommission {
		return 0
	}
	a.apply(ts, ticker, model.SideBuy, shares, q, -(cost + b.BuyCommission), b.BuyCommission)
	return shares
}

// Buy buys exactly shares, or nothing if cash does not cover cost plus commission.
func (b *Broker) Buy(a *Account, ticker string, shares int64, ts int64) int64 {
	if shares <= 0 {
		return 0
	}
	q, ok := b.Quote(ticker, ts)
	if !ok {
		return 0
	}
	cost := q * float64(shares)
	if a.Cash < cost+b.BuyCommission {
		return 0
	}
	a.apply(ts, ticker, model.SideBuy, shares, q, -(cost + b.BuyCommission), b.BuyCommission)
	return shares
}

// SellAll liquidates the long holding of ticker.
func (b *Broker) SellAll(a *Account, ticker string, ts int64) int64 {
	return b.Sell(a, ticker, a.Holding(ticker), ts)
}

// Sell sells up to shares of the long holding of ticker.
func (b *Broker) Sell(a *Account, ticker string, shares int64, ts int64) int64 {
	held := a.Holding(ticker)
	if shares > held {
		shares = held
	}
	if held <= 0 || shares <= 0 {
		return 0
	}
	q, ok := b.Quote(ticker, ts)
	if !ok {
		return 0
	}
	proceeds := q * float64(shares)
	if a.Cash+proceeds < b.SellCommission {
		return 0
	}
	a.apply(ts, ticker, model.SideSell, -shares, q, proceeds-b.SellCommission, b.SellCommission)
	return shares
}

// SellShort sells shares the account does not hold, taking holdings negative.
func (b *Broker) SellShort(a *Account, ticker string, shares int64, ts int64) int64 {
	if shares <= 0 {
		return 0
	}
	q, ok := b.Quote(ticker, ts)
	if !ok {
		return 0
	}
	proceeds := q * float64(shares)
	if a.Cash+proceeds < b.SellCommission {
		return 0
	}
	a.apply(ts, ticker, model.SideSellShort, -shares, q, proceeds-b.SellCommission, b.SellCommission)
	return shares
}

// SellShortMax shorts as many shares as budget covers after commission.
// budget is clamped to the account's non-negative cash.
func (b *Broker) SellShortMax(a *Account, ticker string, ts int64, budget float64) int64 {
	cash := math.Max(a.Cash, 0)
	if budget > cash {
		budget = cash
	}
	q, ok := b.Quote(ticker, ts)
	if !ok {
		return 0
	}
	shares := int64(math.Floor((budget - b.SellCommission) / q))
	if shares <= 0 {
		return 0
	}
	return b.SellShort(a, ticker, shares, ts)
}

// BuyToCover buys back up to shares of an open short position, limited to
// what cash pays for after commission, mirroring BuyMax. A cover the account
// cannot fully afford closes only part of the short, so cash stays >= 0 and
// the remainder stays open.
func (b *Broker) BuyToCover(a *Account, ticker string, shares int64, ts int64) int64 {
	short := -a.Holding(ticker)
	if shares > short {
		shares = short
	}
	if shares <= 0 {
		return 0
	}
	q, ok := b.Quote(ticker, ts)
	if !ok {
		return 0
	}
	if affordable := int64(math.Floor((a.Cash - b.BuyCommission) / q)); shares > affordable {
		shares = affordable
	}
	if shares <= 0 {
		return 0
	}
	cost := q * float64(shares)
	a.apply(ts, ticker, model.SideBuyToCover, shares, q, -(cost + b.BuyCommission), b.BuyCommission)
	return shares
}

// CoverAll closes as much of the short position in ticker as cash allows.
func (b *Broker) CoverAll(a *Account, ticker string, ts int64) int64 {
	return b.BuyToCover(a, ticker, -a.Holding(ticker), ts)
}
