package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"market-backtest/internal/api/models"
	"market-backtest/internal/backtest"
	"market-backtest/internal/config"
	"market-backtest/internal/market"
	"market-backtest/internal/recorder"
	"market-backtest/internal/strategy"
)

// TrialStore reads back recorded sweep trials. *recorder.SQLiteRecorder satisfies it.
type TrialStore interface {
	ListTrials(sweepID string) ([]recorder.Trial, error)
}

// Env is shared by all handlers.
type Env struct {
	Sim *backtest.Simulator
	// Defaults supplies account, broker, step and sweep settings a request leaves out.
	Defaults  config.Config
	DataDir   string
	PresetDir string
	// Trials is nil when no SQLite recorder is configured.
	Trials TrialStore
	Log    *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeRunError maps simulation errors onto HTTP status codes.
func writeRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, strategy.ErrInvalidConfig), errors.Is(err, backtest.ErrInvalidRun), errors.Is(err, config.ErrInvalid):
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
	case errors.Is(err, backtest.ErrNoEligibleTickers):
		writeError(c, http.StatusUnprocessableEntity, "NO_ELIGIBLE_TICKERS", err.Error())
	case errors.Is(err, market.ErrNoData), errors.Is(err, market.ErrNotLoaded), errors.Is(err, fs.ErrNotExist):
		writeError(c, http.StatusNotFound, "DATA_NOT_FOUND", err.Error())
	case errors.Is(err, backtest.ErrValuation):
		writeError(c, http.StatusUnprocessableEntity, "VALUATION_ERROR", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "SIMULATION_ERROR", err.Error())
	}
}

// base returns the server defaults, overlaid with a named preset when given.
func (e *Env) base(preset string) (config.Config, error) {
	cfg := e.Defaults
	if preset == "" {
		return cfg, nil
	}
	if strings.ContainsAny(preset, `/\`) || strings.HasPrefix(preset, ".") {
		return cfg, fmt.Errorf("%w: invalid preset name %q", config.ErrInvalid, preset)
	}
	loaded, err := config.LoadUnchecked(filepath.Join(e.PresetDir, preset+".yaml"))
	if err != nil {
		return cfg, fmt.Errorf("%w: preset %q: %v", config.ErrInvalid, preset, err)
	}
	cfg.Account = loaded.Account
	cfg.Broker = loaded.Broker
	cfg.Strategy = config.MergeStrategy(cfg.Strategy, loaded.Strategy)
	return cfg, nil
}

func costs(cfg config.Config, acct models.AccountConfig) backtest.Costs {
	c := backtest.Costs{
		InitialCash:    cfg.Account.InitialCash,
		BuyCommission:  cfg.Broker.BuyCommission,
		SellCommission: cfg.Broker.Sell(),
	}
	if acct.InitialCash != nil {
		c.InitialCash = *acct.InitialCash
	}
	if acct.BuyCommission != nil {
		c.BuyCommission = *acct.BuyCommission
		if acct.SellCommission == nil && cfg.Broker.SellCommission == nil {
			c.SellCommission = *acct.BuyCommission
		}
	}
	if acct.SellCommission != nil {
		c.SellCommission = *acct.SellCommission
	}
	return c
}

func strategyConfig(base config.StrategyConfig, req models.StrategyConfig) config.StrategyConfig {
	return config.MergeStrategy(base, config.StrategyConfig{Name: req.Name, Params: req.Params})
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	return d, nil
}

// runSpec resolves a request against the defaults and optional preset.
func (e *Env) runSpec(req models.SimulateRequest) (backtest.RunSpec, error) {
	cfg, err := e.base(req.Preset)
	if err != nil {
		return backtest.RunSpec{}, err
	}
	loc := e.Sim.Calendar.Location
	start, err := config.ParseTime(req.Start, loc)
	if err != nil {
		return backtest.RunSpec{}, fmt.Errorf("%w: start: %v", config.ErrInvalid, err)
	}
	end, err := config.ParseTime(req.End, loc)
	if err != nil {
		return backtest.RunSpec{}, fmt.Errorf("%w: end: %v", config.ErrInvalid, err)
	}
	step, err := parseDuration(req.Step, cfg.Run.Step)
	if err != nil {
		return backtest.RunSpec{}, err
	}
	return backtest.RunSpec{
		Strategy: strategyConfig(cfg.Strategy, req.Strategy),
		Tickers:  normalizeTickers(req.Tickers),
		Start:    start,
		End:      end,
		Step:     step,
		Costs:    costs(cfg, req.Account),
		Seed:     req.Options.Seed,
	}, nil
}

func normalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
