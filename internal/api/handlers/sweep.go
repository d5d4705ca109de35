package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"market-backtest/internal/api/models"
	"market-backtest/internal/backtest"
)

// maxSweepTrials caps a single HTTP sweep; larger sweeps belong in the CLI.
const maxSweepTrials = 100000

// SweepHandler handles randomized sweep requests
type SweepHandler struct {
	env *Env
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(env *Env) *SweepHandler {
	return &SweepHandler{env: env}
}

// RunSweep handles POST /api/v1/sweep
func (h *SweepHandler) RunSweep(c *gin.Context) {
	var req models.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	cfg, err := h.env.base(req.Preset)
	if err != nil {
		writeRunError(c, err)
		return
	}
	spec := backtest.SweepSpec{
		Strategy: strategyConfig(cfg.Strategy, req.Strategy),
		Tickers:  normalizeTickers(req.Tickers),
		Trials:   cfg.Sweep.Trials,
		Workers:  cfg.Sweep.Workers,
		Seed:     cfg.Sweep.Seed,
		Costs:    costs(cfg, req.Account),
	}
	if req.Trials > 0 {
		spec.Trials = req.Trials
	}
	if spec.Trials > maxSweepTrials {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", "trials exceeds the per-request limit")
		return
	}
	if req.Workers > 0 {
		spec.Workers = req.Workers
	}
	if req.Seed != 0 {
		spec.Seed = req.Seed
	}
	if spec.Window, err = parseDuration(req.Window, cfg.Sweep.Window); err != nil {
		writeRunError(c, err)
		return
	}
	if spec.Step, err = parseDuration(req.Step, cfg.Sweep.Step); err != nil {
		writeRunError(c, err)
		return
	}

	result, err := h.env.Sim.Sweep(c.Request.Context(), spec)
	if err != nil {
		writeRunError(c, err)
		return
	}

	resp := models.SweepResponse{
		ID:       result.ID,
		Strategy: result.Strategy,
		Seed:     result.Seed,
		Trials:   len(result.Trials),
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Summary:  result.Summary,
		Ranking:  result.Ranking,
	}
	if req.IncludeTrials {
		resp.Results = result.Trials
	}
	c.JSON(http.StatusOK, resp)
}

// ListTrials handles GET /api/v1/sweeps/:id/trials
func (h *SweepHandler) ListTrials(c *gin.Context) {
	if h.env.Trials == nil {
		writeError(c, http.StatusServiceUnavailable, "RECORDER_DISABLED", "no sqlite recorder is configured")
		return
	}
	id := c.Param("id")
	trials, err := h.env.Trials.ListTrials(id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "RECORDER_ERROR", err.Error())
		return
	}
	if len(trials) == 0 {
		writeError(c, http.StatusNotFound, "SWEEP_NOT_FOUND", "no trials recorded for sweep "+id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sweep_id": id, "trials": trials})
}
