package backtest

import (
	"time"

	"market-backtest/internal/ledger"
)

// Result summarises one run. Fills is the primary artifact for "what happened".
type Result struct {
	// ID is assigned when the run is recorded.
	ID       string
	Strategy string
	Params   string
	Tickers  []string

	Start time.Time
	End   time.Time

	// FirstStep is start aligned to the trading calendar; LastStep is the last instant visited.
	FirstStep time.Time
	LastStep  time.Time
	Steps     int

	Aborted   bool
	AbortedAt time.Time
	// ValuedAt is the abort instant for aborted runs, End otherwise.
	ValuedAt time.Time

	Fills []ledger.Fill

	InitialCash    float64
	Cash           float64
	CommissionPaid float64
	FinalValue     float64
}

// Return is FinalValue relative to the opening cash (1.0 = break-even).
func (r *Result) Return() float64 {
	if r.InitialCash == 0 {
		return 0
	}
	return r.FinalValue / r.InitialCash
}
