package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"market-backtest/internal/api/models"
	"market-backtest/internal/backtest"
)

// StrategyHandler handles strategy-related requests
type StrategyHandler struct{}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler() *StrategyHandler {
	return &StrategyHandler{}
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	catalogue := backtest.Catalogue()
	strategies := make([]models.StrategyInfo, 0, len(catalogue))
	for _, info := range catalogue {
		params := make([]models.ParameterInfo, 0, len(info.Params))
		for _, p := range info.Params {
			params = append(params, models.ParameterInfo{
				Name:        p.Name,
				Type:        p.Type,
				Description: p.Description,
				Default:     p.Default,
			})
		}
		strategies = append(strategies, models.StrategyInfo{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  params,
		})
	}

	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}
