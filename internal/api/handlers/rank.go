package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"market-backtest/internal/analysis"
	"market-backtest/internal/api/models"
)

// RankHandler handles ranking-related requests
type RankHandler struct {
	env *Env
}

// NewRankHandler creates a new rank handler
func NewRankHandler(env *Env) *RankHandler {
	return &RankHandler{env: env}
}

// RankTickers handles GET /api/v1/rank
// It ranks the tickers of a recorded sweep by mean value ratio.
func (h *RankHandler) RankTickers(c *gin.Context) {
	var req models.RankRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if h.env.Trials == nil {
		writeError(c, http.StatusServiceUnavailable, "RECORDER_DISABLED", "no sqlite recorder is configured")
		return
	}

	trials, err := h.env.Trials.ListTrials(req.SweepID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "RECORDER_ERROR", err.Error())
		return
	}
	if len(trials) == 0 {
		writeError(c, http.StatusNotFound, "SWEEP_NOT_FOUND", "no trials recorded for sweep "+req.SweepID)
		return
	}

	outcomes := make([]analysis.Outcome, 0, len(trials))
	for _, t := range trials {
		outcomes = append(outcomes, analysis.Outcome{Ticker: t.Ticker, Ratio: t.Ratio, Exited: t.Aborted})
	}
	ranked := analysis.RankByMeanRatio(outcomes)

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}

	rankings := make([]models.Ranking, limit)
	for i := 0; i < limit; i++ {
		r := ranked[i]
		rankings[i] = models.Ranking{
			Rank:    i + 1,
			Ticker:  r.Ticker,
			Count:   r.Count,
			Mean:    r.Mean,
			Median:  r.Median,
			Min:     r.Min,
			Max:     r.Max,
			WinRate: r.WinRate,
		}
	}
	c.JSON(http.StatusOK, models.RankResponse{SweepID: req.SweepID, Rankings: rankings})
}
