package models

// SimulateRequest represents the request body for a single simulation
type SimulateRequest struct {
	// Preset names a YAML file in the preset directory whose strategy and
	// account settings form the base that this request overrides.
	Preset   string          `json:"preset,omitempty"`
	Tickers  []string        `json:"tickers" binding:"required,min=1"`
	Start    string          `json:"start" binding:"required"` // YYYY-MM-DD[ HH:MM[:SS]] or RFC3339
	End      string          `json:"end" binding:"required"`
	Step     string          `json:"step,omitempty"` // Go duration, default from server config
	Strategy StrategyConfig  `json:"strategy"`
	Account  AccountConfig   `json:"account,omitempty"`
	Options  SimulateOptions `json:"options,omitempty"`
}

// StrategyConfig defines strategy and its parameters
type StrategyConfig struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// AccountConfig overrides the server's account and commission defaults
type AccountConfig struct {
	InitialCash    *float64 `json:"initial_cash,omitempty"`
	BuyCommission  *float64 `json:"buy_commission,omitempty"`
	SellCommission *float64 `json:"sell_commission,omitempty"`
}

// SimulateOptions contains optional simulation parameters
type SimulateOptions struct {
	IncludeFills bool  `json:"include_fills,omitempty"` // default: false
	Seed         int64 `json:"seed,omitempty"`          // drives direction "random"
}

// CompareRequest runs one base simulation per variation over the same window
type CompareRequest struct {
	Base       SimulateRequest `json:"base" binding:"required"`
	Variations []Variation     `json:"variations" binding:"required,min=1"`
}

// Variation defines a strategy override to test
type Variation struct {
	Name     string         `json:"name" binding:"required"`
	Strategy StrategyConfig `json:"strategy"`
}

// SweepRequest represents a randomized sweep
type SweepRequest struct {
	Preset   string         `json:"preset,omitempty"`
	Tickers  []string       `json:"tickers" binding:"required,min=1"`
	Trials   int            `json:"trials,omitempty"`
	Window   string         `json:"window,omitempty"` // Go duration
	Step     string         `json:"step,omitempty"`
	Workers  int            `json:"workers,omitempty"`
	Seed     int64          `json:"seed,omitempty"`
	Strategy StrategyConfig `json:"strategy"`
	Account  AccountConfig  `json:"account,omitempty"`
	// IncludeTrials returns every trial instead of only the summary.
	IncludeTrials bool `json:"include_trials,omitempty"`
}

// RankRequest ranks the tickers of a recorded sweep
type RankRequest struct {
	SweepID string `form:"sweep_id" binding:"required"`
	Limit   int    `form:"limit,omitempty"` // default: 10
}
