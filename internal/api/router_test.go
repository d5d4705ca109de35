package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-backtest/internal/api/handlers"
	"market-backtest/internal/api/models"
	"market-backtest/internal/backtest"
	"market-backtest/internal/calendar"
	"market-backtest/internal/config"
	"market-backtest/internal/data"
	"market-backtest/internal/recorder"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// writeWeek writes a CSV with one bar per minute over Monday-Friday 08:30-15:00
// of the week of 2024-06-03, rising by step per minute.
func writeWeek(t *testing.T, dir, ticker string, step float64) {
	t.Helper()
	var b strings.Builder
	price := 100.0
	for d := 3; d <= 7; d++ {
		for m := 0; m <= 390; m++ {
			at := time.Date(2024, 6, d, 8, 30, 0, 0, time.UTC).Add(time.Duration(m) * time.Minute)
			price += step
			b.WriteString(at.Format("20060102,1504"))
			b.WriteString(strings.Repeat(","+formatPrice(price), 4))
			b.WriteString("\n")
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ticker+".csv"), []byte(b.String()), 0o644))
}

func formatPrice(p float64) string {
	out, _ := json.Marshal(p)
	return string(out)
}

type fixture struct {
	router *gin.Engine
	rec    *recorder.SQLiteRecorder
}

func newFixture(t *testing.T, withRecorder bool) *fixture {
	t.Helper()
	dataDir := t.TempDir()
	writeWeek(t, dataDir, "UP", 0.01)
	writeWeek(t, dataDir, "DOWN", -0.01)

	presetDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(presetDir, "cheap.yaml"), []byte(`
account:
  initial_cash: 5000
broker:
  buy_commission: 1
strategy:
  name: buy_and_hold
`), 0o644))

	cal, err := calendar.New(time.UTC, time.Monday, time.Friday, 8*time.Hour+30*time.Minute, 15*time.Hour)
	require.NoError(t, err)

	cache := data.NewSeriesCache(data.NewCSVLoader(dataDir, time.UTC), time.Hour)
	t.Cleanup(cache.Close)

	env := &handlers.Env{
		Defaults:  config.Default(),
		DataDir:   dataDir,
		PresetDir: presetDir,
	}
	env.Defaults.Broker.BuyCommission = 0
	f := &fixture{}
	var rec recorder.Recorder
	if withRecorder {
		f.rec, err = recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "api.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { f.rec.Close() })
		rec = f.rec
		env.Trials = f.rec
	}
	env.Sim = backtest.NewSimulator(cal, cache, rec, nil, nil)
	f.router = NewRouter(env)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = f.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSimulate(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/api/v1/simulate", models.SimulateRequest{
		Tickers:  []string{"up"},
		Start:    "2024-06-03 08:30",
		End:      "2024-06-04 15:00",
		Strategy: models.StrategyConfig{Name: backtest.BuyAndHoldName},
		Options:  models.SimulateOptions{IncludeFills: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.SimulateResponse](t, w)
	assert.Equal(t, "completed", resp.Status)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, []string{"UP"}, resp.Summary.Tickers)
	assert.Greater(t, resp.Summary.Return, 1.0)
	require.Len(t, resp.Fills, 1)
	assert.Equal(t, "BUY", resp.Fills[0].Side)

	w = f.do(t, http.MethodGet, "/api/v1/simulate/"+resp.ID+"/fills", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/simulate/unknown/fills", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSimulateWithPreset(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/api/v1/simulate", models.SimulateRequest{
		Preset:  "cheap",
		Tickers: []string{"UP"},
		Start:   "2024-06-03 08:30",
		End:     "2024-06-03 09:00",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.SimulateResponse](t, w)
	assert.Equal(t, 5000.0, resp.Summary.InitialCash)
	assert.Equal(t, 1.0, resp.Summary.CommissionPaid)
	assert.Equal(t, backtest.BuyAndHoldName, resp.Summary.Strategy)

	w = f.do(t, http.MethodPost, "/api/v1/simulate", models.SimulateRequest{
		Preset: "../etc/passwd", Tickers: []string{"UP"}, Start: "2024-06-03", End: "2024-06-04",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimulateErrors(t *testing.T) {
	f := newFixture(t, false)
	cases := []struct {
		name string
		req  models.SimulateRequest
		code int
	}{
		{"missing tickers", models.SimulateRequest{Start: "2024-06-03", End: "2024-06-04"}, http.StatusBadRequest},
		{"bad start", models.SimulateRequest{Tickers: []string{"UP"}, Start: "soon", End: "2024-06-04",
			Strategy: models.StrategyConfig{Name: backtest.BuyAndHoldName}}, http.StatusBadRequest},
		{"unknown strategy", models.SimulateRequest{Tickers: []string{"UP"}, Start: "2024-06-03", End: "2024-06-04",
			Strategy: models.StrategyConfig{Name: "martingale"}}, http.StatusBadRequest},
		{"unknown ticker", models.SimulateRequest{Tickers: []string{"NOPE"}, Start: "2024-06-03", End: "2024-06-04",
			Strategy: models.StrategyConfig{Name: backtest.BuyAndHoldName}}, http.StatusNotFound},
		{"inverted window", models.SimulateRequest{Tickers: []string{"UP"}, Start: "2024-06-04", End: "2024-06-03",
			Strategy: models.StrategyConfig{Name: backtest.BuyAndHoldName}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/simulate", tc.req)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
			resp := decode[models.ErrorResponse](t, w)
			assert.NotEmpty(t, resp.Error.Code)
		})
	}
}

func TestCompare(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/api/v1/simulate/compare", models.CompareRequest{
		Base: models.SimulateRequest{
			Tickers:  []string{"DOWN"},
			Start:    "2024-06-03 08:30",
			End:      "2024-06-07 15:00",
			Strategy: models.StrategyConfig{Name: backtest.ExpectationMeanName},
		},
		Variations: []models.Variation{
			{Name: "long", Strategy: models.StrategyConfig{Params: map[string]any{"direction": "long"}}},
			{Name: "short", Strategy: models.StrategyConfig{Params: map[string]any{"direction": "short"}}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.CompareResponse](t, w)
	require.Len(t, resp.Comparison, 2)
	assert.Less(t, resp.Comparison[0].Summary.Return, 1.0)
	assert.Greater(t, resp.Comparison[1].Summary.Return, 1.0)
	assert.True(t, resp.Comparison[1].Summary.Aborted)
}

func TestSweepAndRank(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodPost, "/api/v1/sweep", models.SweepRequest{
		Tickers:       []string{"UP", "DOWN"},
		Trials:        20,
		Window:        "24h",
		Step:          "5m",
		Workers:       2,
		Seed:          3,
		Strategy:      models.StrategyConfig{Name: backtest.BuyAndHoldName},
		IncludeTrials: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.SweepResponse](t, w)
	assert.Equal(t, 20, resp.Trials)
	assert.Len(t, resp.Results, 20)
	assert.Equal(t, 20, resp.Summary.Count)

	w = f.do(t, http.MethodGet, "/api/v1/sweeps/"+resp.ID+"/trials", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/rank?sweep_id="+resp.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rank := decode[models.RankResponse](t, w)
	require.NotEmpty(t, rank.Rankings)
	assert.Equal(t, 1, rank.Rankings[0].Rank)
	if len(rank.Rankings) == 2 {
		assert.Equal(t, "UP", rank.Rankings[0].Ticker)
	}

	w = f.do(t, http.MethodGet, "/api/v1/rank?sweep_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/rank", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepWithoutRecorder(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodGet, "/api/v1/sweeps/x/trials", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sweep", models.SweepRequest{
		Tickers: []string{"UP"}, Trials: 2, Window: "720h",
		Strategy: models.StrategyConfig{Name: backtest.BuyAndHoldName},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sweep", models.SweepRequest{
		Tickers: []string{"UP"}, Window: "a while",
		Strategy: models.StrategyConfig{Name: backtest.BuyAndHoldName},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListings(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/v1/tickers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tickers := decode[struct {
		Tickers []models.TickerInfo `json:"tickers"`
	}](t, w)
	require.Len(t, tickers.Tickers, 2)
	assert.Equal(t, "DOWN", tickers.Tickers[0].Symbol)

	w = f.do(t, http.MethodGet, "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	strategies := decode[struct {
		Strategies []models.StrategyInfo `json:"strategies"`
	}](t, w)
	assert.Len(t, strategies.Strategies, len(backtest.StrategyNames()))

	w = f.do(t, http.MethodGet, "/api/v1/presets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	presets := decode[struct {
		Presets []models.PresetInfo `json:"presets"`
	}](t, w)
	require.Len(t, presets.Presets, 1)
	assert.Equal(t, "cheap", presets.Presets[0].ID)
	assert.Equal(t, 1.0, presets.Presets[0].Account.SellCommission)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/simulate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
