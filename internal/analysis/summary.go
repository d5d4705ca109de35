package analysis

import (
	"math"
	"sort"
)

// Outcome is the result of one sweep trial as seen by reporting.
type Outcome struct {
	Ticker string
	// Ratio is final account value over initial cash.
	Ratio float64
	// Exited is true when the strategy closed out before the window ended.
	Exited bool
}

// Quantile pairs a level in [0, 1] with the ratio at that level.
type Quantile struct {
	Level float64 `json:"level"`
	Value float64 `json:"value"`
}

// DefaultLevels are the quantile levels reported when none are requested: 0, 0.1, ..., 1.
var DefaultLevels = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// Summary describes the distribution of value ratios over many trials.
type Summary struct {
	Count  int `json:"count"`
	Exited int `json:"exited"`

	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`

	// WinRate is the fraction of trials that ended above break-even.
	WinRate float64 `json:"win_rate"`

	Quantiles []Quantile `json:"quantiles"`
}

// Summarize computes distribution statistics of the outcomes' ratios.
// levels defaults to DefaultLevels.
func Summarize(outcomes []Outcome, levels []float64) Summary {
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	s := Summary{}
	if len(outcomes) == 0 {
		return s
	}
	s.Count = len(outcomes)

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	wins := 0
	vals := make([]float64, 0, len(outcomes))
	for _, o := range outcomes {
		v := o.Ratio
		vals = append(vals, v)
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
		if v > 1 {
			wins++
		}
		if o.Exited {
			s.Exited++
		}
	}
	sort.Float64s(vals)
	s.Min = minv
	s.Max = maxv
	s.Mean = sum / float64(len(vals))
	s.WinRate = float64(wins) / float64(len(vals))
	s.Median = percentileSorted(vals, 0.5)

	ss := 0.0
	for _, v := range vals {
		ss += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDev = math.Sqrt(ss / float64(len(vals)))

	s.Quantiles = make([]Quantile, len(levels))
	for i, q := range levels {
		s.Quantiles[i] = Quantile{Level: q, Value: percentileSorted(vals, q)}
	}
	return s
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
