// Package api assembles the HTTP surface over the simulator.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"market-backtest/internal/api/handlers"
	"market-backtest/internal/api/middleware"
)

// NewRouter wires middleware, handlers, /health and /metrics.
func NewRouter(env *handlers.Env) *gin.Engine {
	router := gin.New()
	router.Use(middleware.ErrorHandler(env.Log))
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(env.Log))

	simulate := handlers.NewSimulateHandler(env)
	sweep := handlers.NewSweepHandler(env)
	rank := handlers.NewRankHandler(env)
	presets := handlers.NewPresetHandler(env)
	tickers := handlers.NewTickerHandler(env)
	strategies := handlers.NewStrategyHandler()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/simulate", simulate.RunSimulation)
		v1.POST("/simulate/compare", simulate.CompareSimulations)
		v1.GET("/simulate/:id/fills", simulate.GetFills)

		v1.POST("/sweep", sweep.RunSweep)
		v1.GET("/sweeps/:id/trials", sweep.ListTrials)
		v1.GET("/rank", rank.RankTickers)

		v1.GET("/strategies", strategies.ListStrategies)
		v1.GET("/presets", presets.ListPresets)
		v1.GET("/tickers", tickers.ListTickers)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
