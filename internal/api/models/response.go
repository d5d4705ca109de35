package models

import (
	"time"

	"market-backtest/internal/analysis"
	"market-backtest/internal/backtest"
)

// SimulateResponse represents the response from a simulation
type SimulateResponse struct {
	ID      string     `json:"id,omitempty"`
	Status  string     `json:"status"`
	Summary RunSummary `json:"summary"`
	Fills   []FillRow  `json:"fills,omitempty"`
}

// RunSummary contains the outcome of one simulation
type RunSummary struct {
	Strategy       string     `json:"strategy"`
	Params         string     `json:"params"`
	Tickers        []string   `json:"tickers"`
	Window         TimeWindow `json:"window"`
	Steps          int        `json:"steps"`
	Aborted        bool       `json:"aborted"`
	AbortedAt      *time.Time `json:"aborted_at,omitempty"`
	InitialCash    float64    `json:"initial_cash"`
	Cash           float64    `json:"cash"`
	FinalValue     float64    `json:"final_value"`
	Return         float64    `json:"return"`
	CommissionPaid float64    `json:"commission_paid"`
	FillCount      int        `json:"fill_count"`
}

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FillRow represents one executed order
type FillRow struct {
	Index      int       `json:"index"`
	Time       time.Time `json:"time"`
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side"`
	Shares     int64     `json:"shares"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	CashAfter  float64   `json:"cash_after"`
}

// CompareResponse represents the response from a comparison
type CompareResponse struct {
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation
type ComparisonResult struct {
	Name    string     `json:"name"`
	Summary RunSummary `json:"summary"`
}

// SweepResponse summarises a randomized sweep
type SweepResponse struct {
	ID       string                  `json:"id"`
	Strategy string                  `json:"strategy"`
	Seed     int64                   `json:"seed"`
	Trials   int                     `json:"trials"`
	Failed   int                     `json:"failed"`
	Skipped  []string                `json:"skipped,omitempty"`
	Summary  analysis.Summary        `json:"summary"`
	Ranking  []analysis.RankedTicker `json:"ranking"`
	Results  []backtest.TrialResult  `json:"results,omitempty"`
}

// RankResponse represents the response from ranking a recorded sweep
type RankResponse struct {
	SweepID  string    `json:"sweep_id"`
	Rankings []Ranking `json:"rankings"`
}

// Ranking represents one ranked ticker
type Ranking struct {
	Rank    int     `json:"rank"`
	Ticker  string  `json:"ticker"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	WinRate float64 `json:"win_rate"`
}

// PresetInfo represents a stored strategy preset
type PresetInfo struct {
	ID       string         `json:"id"`
	File     string         `json:"file"`
	Strategy StrategyConfig `json:"strategy"`
	Account  PresetAccount  `json:"account"`
}

// PresetAccount contains the account settings of a preset
type PresetAccount struct {
	InitialCash    float64 `json:"initial_cash"`
	BuyCommission  float64 `json:"buy_commission"`
	SellCommission float64 `json:"sell_commission"`
}

// StrategyInfo represents information about a strategy
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "string", "time"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// TickerInfo represents a price file available for simulation
type TickerInfo struct {
	Symbol string `json:"symbol"`
	File   string `json:"file"`
	Bytes  int64  `json:"bytes"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
