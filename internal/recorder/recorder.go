package recorder

import "time"

// Run is the summary of one simulation over a fixed window.
type Run struct {
	RunID       string
	Strategy    string
	Params      string
	Tickers     []string
	Start       time.Time
	End         time.Time
	Steps       int
	Aborted     bool
	InitialCash float64
	FinalValue  float64
	Commission  float64
	Fills       int
}

// Trial is one randomized window of a sweep.
type Trial struct {
	SweepID  string    `json:"sweep_id"`
	TrialID  string    `json:"trial_id"`
	Strategy string    `json:"strategy"`
	Params   string    `json:"params,omitempty"`
	Ticker   string    `json:"ticker"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	// ExitTime is zero when the strategy held to the end of the window.
	ExitTime    time.Time `json:"exit_time"`
	Aborted     bool      `json:"aborted"`
	InitialCash float64   `json:"initial_cash"`
	FinalValue  float64   `json:"final_value"`
	Ratio       float64   `json:"ratio"`
	Commission  float64   `json:"commission"`
	Fills       int       `json:"fills"`
}

// Recorder persists simulation results for later analysis.
type Recorder interface {
	RecordRun(run *Run) error
	RecordTrial(trial *Trial) error
	Close() error
}
