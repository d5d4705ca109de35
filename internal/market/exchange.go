package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"market-backtest/internal/model"
)

var (
	// ErrNoData is returned when a ticker has no bar at or before the requested instant.
	// It replaces the historical behaviour of fabricating a zero-priced bar.
	ErrNoData = errors.New("no price data")
	// ErrNotLoaded is returned for tickers whose series is not installed.
	ErrNotLoaded = errors.New("ticker not loaded")
)

// Loader builds the price series for a ticker from some external source.
type Loader interface {
	Load(ticker string) (*model.Series, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ticker string) (*model.Series, error)

func (f LoaderFunc) Load(ticker string) (*model.Series, error) { return f(ticker) }

// BoundsReader is implemented by loaders that can report a ticker's first and
// last bar without building the whole series.
type BoundsReader interface {
	Bounds(ticker string) (first, last model.Bar, err error)
}

// Exchange maps ticker symbols to loaded price series.
// The map is guarded so workers may share an Exchange; the series themselves are read-only.
type Exchange struct {
	loader Loader

	mu     sync.RWMutex
	series map[string]*model.Series
}

func NewExchange(loader Loader) *Exchange {
	return &Exchange{
		loader: loader,
		series: make(map[string]*model.Series),
	}
}

// Load builds and installs the series for ticker, replacing any existing one.
func (e *Exchange) Load(ticker string) error {
	if e.loader == nil {
		return fmt.Errorf("load %s: exchange has no loader", ticker)
	}
	s, err := e.loader.Load(ticker)
	if err != nil {
		return fmt.Errorf("load %s: %w", ticker, err)
	}
	e.Install(ticker, s)
	return nil
}

// EnsureLoaded loads ticker only when it is not already installed.
func (e *Exchange) EnsureLoaded(ticker string) error {
	if e.IsLoaded(ticker) {
		return nil
	}
	return e.Load(ticker)
}

// Install registers an already built series.
func (e *Exchange) Install(ticker string, s *model.Series) {
	e.mu.Lock()
	e.series[ticker] = s
	e.mu.Unlock()
}

// Unload drops the series for ticker. It reports whether anything was installed.
func (e *Exchange) Unload(ticker string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.series[ticker]
	delete(e.series, ticker)
	return ok
}

func (e *Exchange) IsLoaded(ticker string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.series[ticker]
	return ok
}

// Loaded returns the installed tickers in sorted order.
func (e *Exchange) Loaded() []string {
	e.mu.RLock()
	out := make([]string, 0, len(e.series))
	for t := range e.series {
		out = append(out, t)
	}
	e.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Series returns the installed series for ticker.
func (e *Exchange) Series(ticker string) (*model.Series, error) {
	e.mu.RLock()
	s, ok := e.series[ticker]
	e.mu.RUnlock()
	if !ok || s == nil {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNotLoaded)
	}
	return s, nil
}

// Bar returns the latest bar at or before ts.
func (e *Exchange) Bar(ticker string, ts int64) (model.Bar, error) {
	s, err := e.Series(ticker)
	if err != nil {
		return model.Bar{}, err
	}
	b, ok := s.Search(ts, model.AtOrBefore)
	if !ok {
		return model.Bar{}, fmt.Errorf("%s at %d: %w", ticker, ts, ErrNoData)
	}
	return b, nil
}

// Quote returns the close of the latest bar at or before ts.
func (e *Exchange) Quote(ticker string, ts int64) (float64, error) {
	b, err := e.Bar(ticker, ts)
	if err != nil {
		return 0, err
	}
	return b.Close, nil
}
