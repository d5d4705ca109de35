package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]Outcome{
		{Ticker: "A", Ratio: 1.1, Exited: true},
		{Ticker: "A", Ratio: 0.9},
		{Ticker: "B", Ratio: 1.0},
		{Ticker: "B", Ratio: 1.2, Exited: true},
		{Ticker: "C", Ratio: 0.8},
	}, nil)

	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 2, s.Exited)
	assert.Equal(t, 0.8, s.Min)
	assert.Equal(t, 1.2, s.Max)
	assert.InDelta(t, 1.0, s.Mean, 1e-12)
	assert.InDelta(t, 0.4, s.WinRate, 1e-12)
	assert.InDelta(t, 0.141421356, s.StdDev, 1e-6)

	require.Len(t, s.Quantiles, len(DefaultLevels))
	assert.Equal(t, 0.8, s.Quantiles[0].Value)
	assert.InDelta(t, 1.0, s.Quantiles[5].Value, 1e-12)
	assert.InDelta(t, 1.0, s.Median, 1e-12)
	assert.Equal(t, 1.2, s.Quantiles[10].Value)
	// 0.1 sits 40% of the way from 0.8 to 0.9.
	assert.InDelta(t, 0.84, s.Quantiles[1].Value, 1e-12)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Zero(t, s.Count)
	assert.Empty(t, s.Quantiles)
}

func TestRankByMeanRatio(t *testing.T) {
	got := RankByMeanRatio([]Outcome{
		{Ticker: "A", Ratio: 1.1},
		{Ticker: "A", Ratio: 0.9},
		{Ticker: "B", Ratio: 1.05},
		{Ticker: "C", Ratio: 1.0},
		{Ticker: "D", Ratio: 0.7},
	})
	require.Len(t, got, 4)
	assert.Equal(t, "B", got[0].Ticker)
	assert.Equal(t, "A", got[1].Ticker)
	assert.Equal(t, "C", got[2].Ticker)
	assert.Equal(t, "D", got[3].Ticker)
	assert.Equal(t, 2, got[1].Count)
	assert.InDelta(t, 1.0, got[1].Quantiles[0].Value, 1e-12)
}
