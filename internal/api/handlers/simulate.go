package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"market-backtest/internal/api/models"
	"market-backtest/internal/backtest"
	"market-backtest/internal/config"
	"market-backtest/internal/ledger"
)

// maxStoredRuns bounds how many run fill journals are kept for GetFills.
const maxStoredRuns = 100

// SimulateHandler handles simulation requests
type SimulateHandler struct {
	env *Env

	mu    sync.Mutex
	fills map[string][]models.FillRow
	order []string
}

// NewSimulateHandler creates a new simulation handler
func NewSimulateHandler(env *Env) *SimulateHandler {
	return &SimulateHandler{env: env, fills: make(map[string][]models.FillRow)}
}

// RunSimulation handles POST /api/v1/simulate
func (h *SimulateHandler) RunSimulation(c *gin.Context) {
	var req models.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	spec, err := h.env.runSpec(req)
	if err != nil {
		writeRunError(c, err)
		return
	}
	result, err := h.env.Sim.Run(spec)
	if err != nil {
		writeRunError(c, err)
		return
	}

	rows := convertFills(result)
	h.store(result.ID, rows)

	resp := models.SimulateResponse{
		ID:      result.ID,
		Status:  "completed",
		Summary: buildSummary(result),
	}
	if req.Options.IncludeFills {
		resp.Fills = rows
	}
	c.JSON(http.StatusOK, resp)
}

// GetFills handles GET /api/v1/simulate/:id/fills
func (h *SimulateHandler) GetFills(c *gin.Context) {
	id := c.Param("id")
	h.mu.Lock()
	rows, ok := h.fills[id]
	h.mu.Unlock()
	if !ok {
		writeError(c, http.StatusNotFound, "RUN_NOT_FOUND", "no stored fills for run "+id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "fills": rows})
}

// CompareSimulations handles POST /api/v1/simulate/compare
func (h *SimulateHandler) CompareSimulations(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	results := make([]models.ComparisonResult, 0, len(req.Variations))
	for _, v := range req.Variations {
		variant := req.Base
		merged := config.MergeStrategy(
			config.StrategyConfig{Name: req.Base.Strategy.Name, Params: req.Base.Strategy.Params},
			config.StrategyConfig{Name: v.Strategy.Name, Params: v.Strategy.Params},
		)
		variant.Strategy = models.StrategyConfig{Name: merged.Name, Params: merged.Params}

		spec, err := h.env.runSpec(variant)
		if err != nil {
			writeRunError(c, err)
			return
		}
		result, err := h.env.Sim.Run(spec)
		if err != nil {
			h.env.logger().Warn("comparison variation failed", zap.String("variation", v.Name), zap.Error(err))
			writeRunError(c, err)
			return
		}
		results = append(results, models.ComparisonResult{Name: v.Name, Summary: buildSummary(result)})
	}

	c.JSON(http.StatusOK, models.CompareResponse{Comparison: results})
}

func (h *SimulateHandler) store(id string, rows []models.FillRow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.fills[id]; !ok {
		h.order = append(h.order, id)
	}
	h.fills[id] = rows
	for len(h.order) > maxStoredRuns {
		delete(h.fills, h.order[0])
		h.order = h.order[1:]
	}
}
