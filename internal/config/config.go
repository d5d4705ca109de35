package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"market-backtest/internal/calendar"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Broker   BrokerConfig   `yaml:"broker"`
	Calendar CalendarConfig `yaml:"calendar"`
	Data     DataConfig     `yaml:"data"`
	Run      RunConfig      `yaml:"run"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Strategy StrategyConfig `yaml:"strategy"`
	Recorder RecorderConfig `yaml:"recorder"`
	Log      LogConfig      `yaml:"log"`
}

type AccountConfig struct {
	InitialCash float64 `yaml:"initial_cash"`
}

type BrokerConfig struct {
	BuyCommission float64 `yaml:"buy_commission"`
	// SellCommission defaults to BuyCommission when omitted.
	SellCommission *float64 `yaml:"sell_commission"`
}

// Sell returns the effective sell commission.
func (b BrokerConfig) Sell() float64 {
	if b.SellCommission == nil {
		return b.BuyCommission
	}
	return *b.SellCommission
}

type CalendarConfig struct {
	Timezone string `yaml:"timezone"`
	FirstDay string `yaml:"first_day"`
	LastDay  string `yaml:"last_day"`
	Open     string `yaml:"open"`
	Close    string `yaml:"close"`
}

type DataConfig struct {
	// Dir holds one <TICKER>.csv file per ticker.
	Dir string `yaml:"dir"`
	// LuckyTable is the CSV percentile table used by lucky_indicator.
	// Relative paths resolve against the config file directory.
	LuckyTable string `yaml:"lucky_table"`
}

type RunConfig struct {
	Tickers []string      `yaml:"tickers"`
	Start   string        `yaml:"start"`
	End     string        `yaml:"end"`
	Step    time.Duration `yaml:"step"`
}

type SweepConfig struct {
	Tickers []string      `yaml:"tickers"`
	Trials  int           `yaml:"trials"`
	Window  time.Duration `yaml:"window"`
	Step    time.Duration `yaml:"step"`
	Workers int           `yaml:"workers"`
	Seed    int64         `yaml:"seed"`
}

type StrategyConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

type RecorderConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when a field is left empty:
// $10,000, $7 commissions, Monday-Friday 08:30-15:00 America/Chicago, one-minute steps.
func Default() Config {
	return Config{
		Account: AccountConfig{InitialCash: 10000},
		Broker:  BrokerConfig{BuyCommission: 7},
		Calendar: CalendarConfig{
			Timezone: "America/Chicago",
			FirstDay: "monday",
			LastDay:  "friday",
			Open:     "08:30",
			Close:    "15:00",
		},
		Data:  DataConfig{Dir: "./data"},
		Run:   RunConfig{Step: time.Minute},
		Sweep: SweepConfig{Trials: 100, Window: 7 * 24 * time.Hour, Step: time.Minute, Workers: 1, Seed: 1},
		Log:   LogConfig{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked reads the file over Default() and applies environment
// overrides, but does not validate.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Data.LuckyTable != "" && !filepath.IsAbs(c.Data.LuckyTable) {
		// Prefer paths relative to the config file, but fall back to the
		// provided path (relative to cwd) if that doesn't exist.
		cand := filepath.Join(filepath.Dir(path), c.Data.LuckyTable)
		if _, err := os.Stat(cand); err == nil {
			c.Data.LuckyTable = cand
		}
	}
	return c, nil
}

// Parse decodes YAML over Default() and applies environment overrides.
func Parse(raw []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MARKETSIM_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("MARKETSIM_LUCKY_TABLE"); v != "" {
		c.Data.LuckyTable = v
	}
	if v := os.Getenv("MARKETSIM_SQLITE_PATH"); v != "" {
		c.Recorder.SQLitePath = v
	}
	if v := os.Getenv("MARKETSIM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the parts every command needs: account, broker, calendar, strategy.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("%w: account.initial_cash must be > 0", ErrInvalid)
	}
	if c.Broker.BuyCommission < 0 || c.Broker.Sell() < 0 {
		return fmt.Errorf("%w: broker commissions must be >= 0", ErrInvalid)
	}
	if _, err := c.Calendar.Build(); err != nil {
		return fmt.Errorf("%w: calendar: %v", ErrInvalid, err)
	}
	if strings.TrimSpace(c.Strategy.Name) == "" {
		return fmt.Errorf("%w: strategy.name is required", ErrInvalid)
	}
	return nil
}

// ValidateRun checks the single-run section.
func (c *Config) ValidateRun() error {
	if len(c.Run.Tickers) == 0 {
		return fmt.Errorf("%w: run.tickers is empty", ErrInvalid)
	}
	if c.Run.Step <= 0 {
		return fmt.Errorf("%w: run.step must be > 0", ErrInvalid)
	}
	start, end, err := c.RunWindow()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: run.end is before run.start", ErrInvalid)
	}
	return nil
}

// RunWindow parses run.start and run.end in the calendar timezone.
func (c *Config) RunWindow() (time.Time, time.Time, error) {
	cal, err := c.Calendar.Build()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: calendar: %v", ErrInvalid, err)
	}
	start, err := ParseTime(c.Run.Start, cal.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: run.start: %v", ErrInvalid, err)
	}
	end, err := ParseTime(c.Run.End, cal.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: run.end: %v", ErrInvalid, err)
	}
	return start, end, nil
}

// ValidateSweep checks the randomized sweep section.
func (c *Config) ValidateSweep() error {
	s := c.Sweep
	switch {
	case len(s.Tickers) == 0:
		return fmt.Errorf("%w: sweep.tickers is empty", ErrInvalid)
	case s.Trials <= 0:
		return fmt.Errorf("%w: sweep.trials must be > 0", ErrInvalid)
	case s.Window <= 0:
		return fmt.Errorf("%w: sweep.window must be > 0", ErrInvalid)
	case s.Step <= 0:
		return fmt.Errorf("%w: sweep.step must be > 0", ErrInvalid)
	case s.Workers <= 0:
		return fmt.Errorf("%w: sweep.workers must be > 0", ErrInvalid)
	}
	return nil
}

// Build turns the calendar section into a calendar.Calendar.
func (cc CalendarConfig) Build() (calendar.Calendar, error) {
	loc, err := time.LoadLocation(cc.Timezone)
	if err != nil {
		return calendar.Calendar{}, err
	}
	first, err := calendar.ParseWeekday(cc.FirstDay)
	if err != nil {
		return calendar.Calendar{}, err
	}
	last, err := calendar.ParseWeekday(cc.LastDay)
	if err != nil {
		return calendar.Calendar{}, err
	}
	open, err := calendar.ParseClock(cc.Open)
	if err != nil {
		return calendar.Calendar{}, err
	}
	closing, err := calendar.ParseClock(cc.Close)
	if err != nil {
		return calendar.Calendar{}, err
	}
	return calendar.New(loc, first, last, open, closing)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC3339 or a local "YYYY-MM-DD[ HH:MM[:SS]]" in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("time is empty")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// MergeStrategy overlays override onto base: params are merged key by key,
// except that naming a different strategy discards base's params.
func MergeStrategy(base, override StrategyConfig) StrategyConfig {
	out := StrategyConfig{Name: base.Name, Params: map[string]any{}}
	if override.Name != "" && override.Name != base.Name {
		out.Name = override.Name
	} else {
		for k, v := range base.Params {
			out.Params[k] = v
		}
	}
	for k, v := range override.Params {
		out.Params[k] = v
	}
	return out
}
