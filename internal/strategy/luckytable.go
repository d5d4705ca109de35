package strategy

import (
	"fmt"
	"math"
	"sort"
)

// LuckyTable maps (percentile, hold duration) to the gain multiple a position
// must reach before its gain counts as lucky. Durations are in seconds.
// Lookups interpolate linearly along both axes and clamp outside the table.
type LuckyTable struct {
	percentiles []float64
	durations   []float64
	gains       [][]float64
}

// NewLuckyTable validates and wraps the table. gains[i][j] belongs to
// percentiles[i] and durations[j]; both key slices must be strictly ascending.
func NewLuckyTable(percentiles, durations []float64, gains [][]float64) (*LuckyTable, error) {
	if len(percentiles) == 0 || len(durations) == 0 {
		return nil, fmt.Errorf("%w: lucky table needs at least one percentile row and one duration column", ErrInvalidConfig)
	}
	if !strictlyAscending(percentiles) {
		return nil, fmt.Errorf("%w: lucky table percentiles must be strictly ascending", ErrInvalidConfig)
	}
	if !strictlyAscending(durations) {
		return nil, fmt.Errorf("%w: lucky table durations must be strictly ascending", ErrInvalidConfig)
	}
	if len(gains) != len(percentiles) {
		return nil, fmt.Errorf("%w: lucky table has %d rows for %d percentiles", ErrInvalidConfig, len(gains), len(percentiles))
	}
	for i, row := range gains {
		if len(row) != len(durations) {
			return nil, fmt.Errorf("%w: lucky table row %g has %d values for %d durations",
				ErrInvalidConfig, percentiles[i], len(row), len(durations))
		}
		for _, g := range row {
			if math.IsNaN(g) || math.IsInf(g, 0) {
				return nil, fmt.Errorf("%w: lucky table row %g holds a non-finite gain", ErrInvalidConfig, percentiles[i])
			}
		}
	}
	return &LuckyTable{percentiles: percentiles, durations: durations, gains: gains}, nil
}

func (t *LuckyTable) Percentiles() []float64 { return append([]float64(nil), t.percentiles...) }

func (t *LuckyTable) Durations() []float64 { return append([]float64(nil), t.durations...) }

// HasPercentile reports whether p lies within the table's percentile range.
func (t *LuckyTable) HasPercentile(p float64) bool {
	return p >= t.percentiles[0] && p <= t.percentiles[len(t.percentiles)-1]
}

// Gain returns the required gain multiple for percentile and hold duration.
func (t *LuckyTable) Gain(percentile, holdSeconds float64) float64 {
	i0, i1, fi := bracket(t.percentiles, percentile)
	j0, j1, fj := bracket(t.durations, holdSeconds)
	top := lerp(t.gains[i0][j0], t.gains[i0][j1], fj)
	bottom := lerp(t.gains[i1][j0], t.gains[i1][j1], fj)
	return lerp(top, bottom, fi)
}

// bracket finds neighbours lo, hi in keys around x and the fraction of the way from lo to hi.
func bracket(keys []float64, x float64) (lo, hi int, frac float64) {
	n := len(keys)
	if x <= keys[0] {
		return 0, 0, 0
	}
	if x >= keys[n-1] {
		return n - 1, n - 1, 0
	}
	hi = sort.SearchFloat64s(keys, x)
	if keys[hi] == x {
		return hi, hi, 0
	}
	lo = hi - 1
	return lo, hi, (x - keys[lo]) / (keys[hi] - keys[lo])
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

func strictlyAscending(xs []float64) bool {
	for i := range xs {
		if math.IsNaN(xs[i]) || (i > 0 && xs[i] <= xs[i-1]) {
			return false
		}
	}
	return true
}
