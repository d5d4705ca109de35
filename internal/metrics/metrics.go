// Package metrics holds the Prometheus collectors updated by runs and sweeps.
//
// Exposed series:
//   - marketsim_runs_total{strategy}             simulations completed
//   - marketsim_trials_total{strategy,outcome}   sweep trials (outcome: exited|held|failed)
//   - marketsim_fills_total{side,effect}         executed orders (effect: open|close)
//   - marketsim_trial_value_ratio{strategy}      final value / initial cash per trial
//   - marketsim_series_loads_total{result}       price series loads (result: ok|error)
//
// Collectors are registered in init() and served by cmd/api at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"market-backtest/internal/ledger"
)

var (
	mtxRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsim_runs_total",
			Help: "Simulations completed",
		},
		[]string{"strategy"},
	)

	mtxTrials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsim_trials_total",
			Help: "Sweep trials split by outcome",
		},
		[]string{"strategy", "outcome"},
	)

	mtxFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsim_fills_total",
			Help: "Executed orders by side and whether they open or close a position",
		},
		[]string{"side", "effect"},
	)

	mtxRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketsim_trial_value_ratio",
			Help:    "Final account value over initial cash for each sweep trial",
			Buckets: []float64{0.8, 0.9, 0.95, 0.98, 0.99, 1, 1.01, 1.02, 1.05, 1.1, 1.2},
		},
		[]string{"strategy"},
	)

	mtxLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsim_series_loads_total",
			Help: "Price series loads",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(mtxRuns, mtxTrials, mtxFills)
	prometheus.MustRegister(mtxRatio, mtxLoads)
}

// Trial outcomes.
const (
	OutcomeExited = "exited"
	OutcomeHeld   = "held"
	OutcomeFailed = "failed"
)

func ObserveRun(strategy string, fills []ledger.Fill) {
	mtxRuns.WithLabelValues(strategy).Inc()
	ObserveFills(fills)
}

func ObserveTrial(strategy, outcome string, ratio float64, fills []ledger.Fill) {
	mtxTrials.WithLabelValues(strategy, outcome).Inc()
	if outcome != OutcomeFailed {
		mtxRatio.WithLabelValues(strategy).Observe(ratio)
	}
	ObserveFills(fills)
}

func ObserveFills(fills []ledger.Fill) {
	for _, f := range fills {
		effect := "close"
		if f.Side.Opens() {
			effect = "open"
		}
		mtxFills.WithLabelValues(string(f.Side), effect).Inc()
	}
}

func IncSeriesLoad(err error) {
	if err != nil {
		mtxLoads.WithLabelValues("error").Inc()
		return
	}
	mtxLoads.WithLabelValues("ok").Inc()
}
