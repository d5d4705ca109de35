package backtest

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"market-backtest/internal/config"
	"market-backtest/internal/ledger"
	"market-backtest/internal/strategy"
)

// Strategy names accepted by BuildStrategy.
const (
	BuyAndHoldName      = "buy_and_hold"
	ExpectationMeanName = "expectation_mean"
	LuckyIndicatorName  = "lucky_indicator"
)

// StrategyNames lists every strategy BuildStrategy can construct.
func StrategyNames() []string {
	names := make([]string, 0, len(catalogue))
	for _, info := range catalogue {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// ParamInfo describes one strategy parameter.
type ParamInfo struct {
	Name        string
	Type        string // "float", "string" or "time"
	Description string
	Default     any
}

// StrategyInfo describes a strategy and the params BuildStrategy accepts for it.
type StrategyInfo struct {
	Name        string
	Description string
	Params      []ParamInfo
}

var catalogue = []StrategyInfo{
	{
		Name:        BuyAndHoldName,
		Description: "Spends each ticker's share of cash as soon as it can and liquidates at a fixed instant.",
		Params: []ParamInfo{
			{Name: "sell_at", Type: "time", Description: "Instant to liquidate (YYYY-MM-DD HH:MM in the calendar timezone); empty holds to the end"},
		},
	},
	{
		Name:        ExpectationMeanName,
		Description: "One round trip per run: enters long or short, exits on the first gain or loss threshold, then aborts.",
		Params: []ParamInfo{
			{Name: "small_gain", Type: "float", Description: "Exit gain while in the first tier", Default: 0.02},
			{Name: "large_gain", Type: "float", Description: "Exit gain once a small loss moved the position to the large tier", Default: 0.05},
			{Name: "small_loss", Type: "float", Description: "Loss that moves the position to the large tier", Default: -0.02},
			{Name: "large_loss", Type: "float", Description: "Stop loss in either tier", Default: -0.10},
			{Name: "direction", Type: "string", Description: "long, short or random", Default: "long"},
		},
	},
	{
		Name:        LuckyIndicatorName,
		Description: "Per-ticker cooldown strategy that sells once the gain reaches the lucky-table percentile for the hold time.",
		Params: []ParamInfo{
			{Name: "percentile", Type: "float", Description: "Row of the lucky table", Default: 90.0},
			{Name: "hold_time_fraction", Type: "float", Description: "Cooldown as a fraction of the last hold duration", Default: 0.25},
			{Name: "hold_time_exponent", Type: "float", Description: "Exponent applied to the last hold duration", Default: 1.0},
			{Name: "price_drop", Type: "float", Description: "Re-enter early once price falls this fraction below the last sale", Default: 0.02},
		},
	},
}

// Catalogue returns the supported strategies sorted by name.
func Catalogue() []StrategyInfo {
	out := make([]StrategyInfo, len(catalogue))
	copy(out, catalogue)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func lookupStrategy(name string) (StrategyInfo, bool) {
	for _, info := range catalogue {
		if info.Name == name {
			return info, true
		}
	}
	return StrategyInfo{}, false
}

// BuildDeps carries what some strategies need beyond their params.
type BuildDeps struct {
	// Location interprets wall-clock params such as sell_at.
	Location *time.Location
	// Rand resolves direction "random" for expectation_mean.
	Rand *rand.Rand
	// LuckyTable is required by lucky_indicator.
	LuckyTable *strategy.LuckyTable
}

// BuildStrategy constructs the configured strategy over acct and tickers.
// Params must be ones the strategy's catalogue entry lists, with values of
// the listed type; absent params take the listed default.
func BuildStrategy(sc config.StrategyConfig, acct *ledger.Account, tickers []string, deps BuildDeps) (strategy.Strategy, error) {
	info, ok := lookupStrategy(sc.Name)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported strategy %q", strategy.ErrInvalidConfig, sc.Name)
	}
	p, err := newParamReader(info, sc.Params)
	if err != nil {
		return nil, err
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	switch sc.Name {
	case BuyAndHoldName:
		var sellAt time.Time
		if s := p.str("sell_at"); s != "" {
			t, err := config.ParseTime(s, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: sell_at: %v", strategy.ErrInvalidConfig, err)
			}
			sellAt = t
		}
		if p.err != nil {
			return nil, p.err
		}
		return strategy.NewBuyAndHold(acct, tickers, sellAt)

	case ExpectationMeanName:
		th := strategy.Thresholds{
			SmallGain: p.num("small_gain"),
			LargeGain: p.num("large_gain"),
			SmallLoss: p.num("small_loss"),
			LargeLoss: p.num("large_loss"),
		}
		direction := p.str("direction")
		if p.err != nil {
			return nil, p.err
		}
		dir, err := resolveDirection(direction, deps.Rand)
		if err != nil {
			return nil, err
		}
		return strategy.NewExpectationMean(acct, tickers, th, dir)

	default: // LuckyIndicatorName
		if deps.LuckyTable == nil {
			return nil, fmt.Errorf("%w: lucky_indicator needs data.lucky_table", strategy.ErrInvalidConfig)
		}
		lp := strategy.LuckyParams{
			Percentile:       p.num("percentile"),
			HoldTimeFraction: p.num("hold_time_fraction"),
			HoldTimeExponent: p.num("hold_time_exponent"),
			PriceDrop:        p.num("price_drop"),
		}
		if p.err != nil {
			return nil, p.err
		}
		return strategy.NewLuckyIndicator(acct, tickers, deps.LuckyTable, lp)
	}
}

func resolveDirection(s string, rng *rand.Rand) (strategy.Direction, error) {
	if strings.EqualFold(strings.TrimSpace(s), "random") {
		if rng == nil {
			return 0, fmt.Errorf("%w: direction random needs a random source", strategy.ErrInvalidConfig)
		}
		return strategy.RandomDirection(rng), nil
	}
	return strategy.ParseDirection(s)
}

// paramReader reads typed params, keeping the first type error in err.
type paramReader struct {
	strategy string
	values   map[string]any
	defaults map[string]any
	err      error
}

func newParamReader(info StrategyInfo, values map[string]any) (*paramReader, error) {
	p := &paramReader{strategy: info.Name, values: values, defaults: map[string]any{}}
	for _, param := range info.Params {
		p.defaults[param.Name] = param.Default
	}
	var unknown []string
	for k := range values {
		if _, ok := p.defaults[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s does not take %s", strategy.ErrInvalidConfig, info.Name, strings.Join(unknown, ", "))
	}
	return p, nil
}

func (p *paramReader) fail(key, want string, v any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s.%s must be a %s, got %T", strategy.ErrInvalidConfig, p.strategy, key, want, v)
	}
}

func (p *paramReader) num(key string) float64 {
	v, ok := p.values[key]
	if !ok {
		def, _ := p.defaults[key].(float64)
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	p.fail(key, "number", v)
	return 0
}

func (p *paramReader) str(key string) string {
	v, ok := p.values[key]
	if ok {
		s, isStr := v.(string)
		if !isStr {
			p.fail(key, "string", v)
			return ""
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	def, _ := p.defaults[key].(string)
	return def
}
