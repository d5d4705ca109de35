package strategy

import (
	"fmt"
	"math"
	"time"

	"market-backtest/internal/ledger"
)

// LuckyParams configures LuckyIndicator.
type LuckyParams struct {
	// Percentile selects the row of the lucky table, e.g. 90.
	Percentile float64
	// HoldTimeFraction and HoldTimeExponent define the cooldown after a sale:
	// HoldTimeFraction * lastHoldSeconds ^ HoldTimeExponent.
	HoldTimeFraction float64
	HoldTimeExponent float64
	// PriceDrop re-enters early once price falls this fraction below the last sale.
	PriceDrop float64
}

func (p LuckyParams) Validate() error {
	switch {
	case p.HoldTimeFraction < 0:
		return fmt.Errorf("%w: hold_time_fraction must be >= 0", ErrInvalidConfig)
	case p.HoldTimeExponent < 0:
		return fmt.Errorf("%w: hold_time_exponent must be >= 0", ErrInvalidConfig)
	case p.PriceDrop < 0 || p.PriceDrop >= 1:
		return fmt.Errorf("%w: price_drop must be in [0, 1)", ErrInvalidConfig)
	}
	return nil
}

type trade struct {
	price float64
	at    time.Time
}

// LuckyIndicator keeps independent state per ticker. It buys when flat and
// either it never bought the ticker, the price dropped far enough below the
// last sale, or the cooldown since the last sale elapsed. It sells once the
// gain since purchase reaches the lucky table's multiple for the current hold
// duration.
type LuckyIndicator struct {
	base
	Params LuckyParams

	table        *LuckyTable
	lastPurchase map[string]trade
	lastSale     map[string]trade
}

func NewLuckyIndicator(account *ledger.Account, tickers []string, table *LuckyTable, p LuckyParams) (*LuckyIndicator, error) {
	b, err := newBase(account, tickers)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: lucky table is nil", ErrInvalidConfig)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !table.HasPercentile(p.Percentile) {
		return nil, fmt.Errorf("%w: percentile %g outside lucky table", ErrInvalidConfig, p.Percentile)
	}
	return &LuckyIndicator{
		base:         b,
		Params:       p,
		table:        table,
		lastPurchase: make(map[string]trade),
		lastSale:     make(map[string]trade),
	}, nil
}

func (s *LuckyIndicator) Name() string { return "lucky_indicator" }

func (s *LuckyIndicator) Decide(ctx Context) Decision {
	ts := ctx.Timestamp()
	price, ok := s.account.Broker().Quote(ctx.Ticker, ts)
	if !ok {
		return Continue
	}

	if s.account.Holding(ctx.Ticker) == 0 {
		if s.account.Cash > 0 && s.shouldBuy(ctx.Ticker, price, ctx.Time) {
			// Only a filled buy sets the purchase basis; a zero-share attempt leaves the ticker flat.
			if s.account.BuyMax(ctx.Ticker, ts, ctx.AmountPerTicker) > 0 {
				s.lastPurchase[ctx.Ticker] = trade{price: price, at: ctx.Time}
			}
		}
		return Continue
	}

	purchase := s.lastPurchase[ctx.Ticker]
	if purchase.price == 0 || price/purchase.price >= s.LuckyGain(s.currentHold(ctx.Ticker, ctx.Time)) {
		s.account.SellAll(ctx.Ticker, ts)
		s.lastSale[ctx.Ticker] = trade{price: price, at: ctx.Time}
	}
	return Continue
}

func (s *LuckyIndicator) shouldBuy(ticker string, price float64, now time.Time) bool {
	if _, bought := s.lastPurchase[ticker]; !bought {
		return true
	}
	sale, sold := s.lastSale[ticker]
	if !sold {
		return true
	}
	if price <= (1-s.Params.PriceDrop)*sale.price {
		return true
	}
	cooldown := s.Params.HoldTimeFraction * math.Pow(s.lastHold(ticker), s.Params.HoldTimeExponent)
	return s.sinceLastSale(ticker, now) >= cooldown
}

// LuckyGain is the gain multiple required to sell after holding for holdSeconds.
func (s *LuckyIndicator) LuckyGain(holdSeconds float64) float64 {
	return s.table.Gain(s.Params.Percentile, holdSeconds)
}

// lastHold is the duration of the last completed position in seconds, or 0.
func (s *LuckyIndicator) lastHold(ticker string) float64 {
	sale, sold := s.lastSale[ticker]
	purchase, bought := s.lastPurchase[ticker]
	if !sold || !bought {
		return 0
	}
	if d := sale.at.Sub(purchase.at); d >= 0 {
		return d.Seconds()
	}
	return 0
}

// sinceLastSale is 0 when nothing was sold yet, meaning the cooldown is satisfied.
func (s *LuckyIndicator) sinceLastSale(ticker string, now time.Time) float64 {
	sale, sold := s.lastSale[ticker]
	if !sold {
		return 0
	}
	return now.Sub(sale.at).Seconds()
}

func (s *LuckyIndicator) currentHold(ticker string, now time.Time) float64 {
	purchase, bought := s.lastPurchase[ticker]
	if !bought {
		return 0
	}
	return now.Sub(purchase.at).Seconds()
}

// Reset forgets all purchase and sale history and resets the account.
func (s *LuckyIndicator) Reset() {
	s.account.Reset()
	clear(s.lastPurchase)
	clear(s.lastSale)
}

func (s *LuckyIndicator) Describe() string {
	p := s.Params
	return fmt.Sprintf("Lucky: percentile %g; hold time fraction %g; hold time exponent %g; price drop %g",
		p.Percentile, p.HoldTimeFraction, p.HoldTimeExponent, p.PriceDrop)
}
