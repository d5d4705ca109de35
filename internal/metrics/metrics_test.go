package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"market-backtest/internal/ledger"
	"market-backtest/internal/model"
)

func TestObserveFillsSplitsByEffect(t *testing.T) {
	buyOpen := mtxFills.WithLabelValues("BUY", "open")
	sellClose := mtxFills.WithLabelValues("SELL", "close")
	shortOpen := mtxFills.WithLabelValues("SELL_SHORT", "open")
	before := testutil.ToFloat64(buyOpen) + testutil.ToFloat64(sellClose) + testutil.ToFloat64(shortOpen)

	ObserveFills([]ledger.Fill{
		{Side: model.SideBuy},
		{Side: model.SideSell},
		{Side: model.SideSellShort},
	})

	after := testutil.ToFloat64(buyOpen) + testutil.ToFloat64(sellClose) + testutil.ToFloat64(shortOpen)
	assert.Equal(t, before+3, after)
}

func TestObserveTrial(t *testing.T) {
	c := mtxTrials.WithLabelValues("test_strategy", OutcomeFailed)
	before := testutil.ToFloat64(c)
	ObserveTrial("test_strategy", OutcomeFailed, 0, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	ObserveTrial("test_strategy", OutcomeExited, 1.02, nil)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(mtxRatio), 1)
}

func TestIncSeriesLoad(t *testing.T) {
	ok := testutil.ToFloat64(mtxLoads.WithLabelValues("ok"))
	bad := testutil.ToFloat64(mtxLoads.WithLabelValues("error"))
	IncSeriesLoad(nil)
	IncSeriesLoad(errors.New("boom"))
	assert.Equal(t, ok+1, testutil.ToFloat64(mtxLoads.WithLabelValues("ok")))
	assert.Equal(t, bad+1, testutil.ToFloat64(mtxLoads.WithLabelValues("error")))
}
