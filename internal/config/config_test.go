package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("strategy:\n  name: buy_and_hold\n"))
	require.NoError(t, err)

	assert.Equal(t, 10000.0, c.Account.InitialCash)
	assert.Equal(t, 7.0, c.Broker.BuyCommission)
	assert.Equal(t, 7.0, c.Broker.Sell())
	assert.Equal(t, time.Minute, c.Run.Step)
	assert.Equal(t, "America/Chicago", c.Calendar.Timezone)
	require.NoError(t, c.Validate())
}

func TestParseOverrides(t *testing.T) {
	c, err := Parse([]byte(`
account:
  initial_cash: 500
broker:
  buy_commission: 1
  sell_commission: 0
run:
  step: 5m
sweep:
  window: 48h
strategy:
  name: expectation_mean
  params:
    direction: short
    small_gain: 0.01
`))
	require.NoError(t, err)
	assert.Equal(t, 500.0, c.Account.InitialCash)
	assert.Equal(t, 0.0, c.Broker.Sell())
	assert.Equal(t, 5*time.Minute, c.Run.Step)
	assert.Equal(t, 48*time.Hour, c.Sweep.Window)
	assert.Equal(t, "short", c.Strategy.Params["direction"])
	assert.Equal(t, 0.01, c.Strategy.Params["small_gain"])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETSIM_DATA_DIR", "/srv/bars")
	t.Setenv("MARKETSIM_SQLITE_PATH", "/tmp/sim.db")
	t.Setenv("MARKETSIM_LOG_LEVEL", "debug")

	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/bars", c.Data.Dir)
	assert.Equal(t, "/tmp/sim.db", c.Recorder.SQLitePath)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		edit func(c *Config)
	}{
		{"no cash", func(c *Config) { c.Account.InitialCash = 0 }},
		{"negative commission", func(c *Config) { c.Broker.BuyCommission = -1 }},
		{"bad timezone", func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" }},
		{"inverted session", func(c *Config) { c.Calendar.Open, c.Calendar.Close = "15:00", "08:30" }},
		{"no strategy", func(c *Config) { c.Strategy.Name = " " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			c.Strategy.Name = "buy_and_hold"
			tc.edit(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrInvalid)
}

func TestValidateRunAndWindow(t *testing.T) {
	c := Default()
	c.Strategy.Name = "buy_and_hold"
	assert.ErrorIs(t, c.ValidateRun(), ErrInvalid)

	c.Run.Tickers = []string{"AAPL"}
	c.Run.Start = "2024-06-03 08:30"
	c.Run.End = "2024-06-07"
	require.NoError(t, c.ValidateRun())

	start, end, err := c.RunWindow()
	require.NoError(t, err)
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 6, 3, 8, 30, 0, 0, chicago)))
	assert.True(t, end.Equal(time.Date(2024, 6, 7, 0, 0, 0, 0, chicago)))

	c.Run.End = "2024-06-01"
	assert.ErrorIs(t, c.ValidateRun(), ErrInvalid)
	c.Run.End = "next week"
	assert.ErrorIs(t, c.ValidateRun(), ErrInvalid)
}

func TestValidateSweep(t *testing.T) {
	c := Default()
	assert.ErrorIs(t, c.ValidateSweep(), ErrInvalid)
	c.Sweep.Tickers = []string{"IBM"}
	require.NoError(t, c.ValidateSweep())
	c.Sweep.Workers = 0
	assert.ErrorIs(t, c.ValidateSweep(), ErrInvalid)
}

func TestParseTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := ParseTime("2024-06-03 09:30:15", ny)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 6, 3, 9, 30, 15, 0, ny)))

	got, err = ParseTime("2024-06-03T13:30:00Z", ny)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 6, 3, 9, 30, 0, 0, ny)))

	_, err = ParseTime("", ny)
	assert.Error(t, err)
	_, err = ParseTime("06/03/2024", ny)
	assert.Error(t, err)
}

func TestMergeStrategy(t *testing.T) {
	base := StrategyConfig{Name: "expectation_mean", Params: map[string]any{"direction": "long", "small_gain": 0.02}}

	got := MergeStrategy(base, StrategyConfig{Params: map[string]any{"direction": "short"}})
	assert.Equal(t, "expectation_mean", got.Name)
	assert.Equal(t, map[string]any{"direction": "short", "small_gain": 0.02}, got.Params)
	assert.Equal(t, "long", base.Params["direction"])

	got = MergeStrategy(base, StrategyConfig{Name: "expectation_mean", Params: map[string]any{"large_gain": 0.1}})
	assert.Equal(t, map[string]any{"direction": "long", "small_gain": 0.02, "large_gain": 0.1}, got.Params)

	got = MergeStrategy(base, StrategyConfig{Name: "buy_and_hold"})
	assert.Equal(t, "buy_and_hold", got.Name)
	assert.Empty(t, got.Params)
}

func TestLoadResolvesLuckyTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lucky.csv"), []byte("p,0\n50,1\n"), 0o644))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  lucky_table: lucky.csv
strategy:
  name: lucky_indicator
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lucky.csv"), c.Data.LuckyTable)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  initial_cash: -5\nstrategy:\n  name: buy_and_hold\n"), 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)

	c, err := LoadUnchecked(path)
	require.NoError(t, err)
	assert.Equal(t, -5.0, c.Account.InitialCash)
}
