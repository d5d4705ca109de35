package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"market-backtest/internal/api/models"
	"market-backtest/internal/data"
)

// TickerHandler lists the price histories available to simulations
type TickerHandler struct {
	env *Env
}

// NewTickerHandler creates a new ticker handler
func NewTickerHandler(env *Env) *TickerHandler {
	return &TickerHandler{env: env}
}

// ListTickers handles GET /api/v1/tickers
func (h *TickerHandler) ListTickers(c *gin.Context) {
	list, err := data.ListTickers(h.env.DataDir)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "TICKERS_LOAD_ERROR", fmt.Sprintf("Failed to list tickers: %v", err))
		return
	}

	tickers := make([]models.TickerInfo, len(list))
	for i, t := range list {
		tickers[i] = models.TickerInfo{Symbol: t.Symbol, File: t.File, Bytes: t.Bytes}
	}
	c.JSON(http.StatusOK, gin.H{"tickers": tickers, "count": len(tickers)})
}
