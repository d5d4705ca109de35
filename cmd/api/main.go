package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"market-backtest/internal/api"
	"market-backtest/internal/api/handlers"
	"market-backtest/internal/backtest"
	"market-backtest/internal/config"
	"market-backtest/internal/data"
	"market-backtest/internal/logging"
	"market-backtest/internal/recorder"
	"market-backtest/internal/strategy"
)

func main() {
	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	presetDir := os.Getenv("PRESET_DIR")
	if presetDir == "" {
		presetDir = "./examples/presets"
	}

	cfg, err := loadConfig(os.Getenv("MARKETSIM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.Must(cfg.Log.Level, os.Getenv("API_ENV") != "production")
	defer log.Sync()

	cal, err := cfg.Calendar.Build()
	if err != nil {
		log.Fatal("invalid calendar", zap.Error(err))
	}

	cache := data.NewSeriesCache(data.NewCSVLoader(cfg.Data.Dir, cal.Location), 30*time.Minute)
	defer cache.Close()

	var table *strategy.LuckyTable
	if cfg.Data.LuckyTable != "" {
		table, err = data.LoadLuckyTable(cfg.Data.LuckyTable)
		if err != nil {
			log.Fatal("failed to load lucky table", zap.String("path", cfg.Data.LuckyTable), zap.Error(err))
		}
	}

	env := &handlers.Env{
		Defaults:  *cfg,
		DataDir:   cfg.Data.Dir,
		PresetDir: presetDir,
		Log:       log,
	}
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Recorder.SQLitePath != "" {
		sqlite, err := recorder.NewSQLiteRecorder(cfg.Recorder.SQLitePath, log)
		if err != nil {
			log.Fatal("failed to open recorder", zap.Error(err))
		}
		rec = sqlite
		env.Trials = sqlite
	}
	defer rec.Close()
	env.Sim = backtest.NewSimulator(cal, cache, rec, table, log)

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(env)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting API server",
			zap.String("addr", srv.Addr),
			zap.String("data_dir", cfg.Data.Dir),
			zap.String("timezone", cal.Location.String()),
			zap.Bool("recorder", env.Trials != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// loadConfig reads path when set, otherwise the defaults plus environment overrides.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse(nil)
	}
	return config.LoadUnchecked(path)
}
