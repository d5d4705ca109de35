package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"market-backtest/internal/api/models"
	"market-backtest/internal/config"
)

// PresetHandler lists the YAML strategy presets a request may name
type PresetHandler struct {
	env *Env
}

// NewPresetHandler creates a new preset handler
func NewPresetHandler(env *Env) *PresetHandler {
	return &PresetHandler{env: env}
}

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets := []models.PresetInfo{}

	entries, err := os.ReadDir(h.env.PresetDir)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"presets": presets})
			return
		}
		writeError(c, http.StatusInternalServerError, "PRESET_DIR_ERROR", err.Error())
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		cfg, err := config.LoadUnchecked(filepath.Join(h.env.PresetDir, e.Name()))
		if err != nil {
			h.env.logger().Warn("skipping unreadable preset", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		presets = append(presets, models.PresetInfo{
			ID:   strings.TrimSuffix(e.Name(), ".yaml"),
			File: e.Name(),
			Strategy: models.StrategyConfig{
				Name:   cfg.Strategy.Name,
				Params: cfg.Strategy.Params,
			},
			Account: models.PresetAccount{
				InitialCash:    cfg.Account.InitialCash,
				BuyCommission:  cfg.Broker.BuyCommission,
				SellCommission: cfg.Broker.Sell(),
			},
		})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].ID < presets[j].ID })

	c.JSON(http.StatusOK, gin.H{"presets": presets})
}
