package analysis

import "sort"

type RankedTicker struct {
	Ticker string `json:"ticker"`
	Summary
}

// RankByMeanRatio summarises outcomes per ticker and sorts descending by mean
// ratio, breaking ties by ticker.
func RankByMeanRatio(outcomes []Outcome) []RankedTicker {
	byTicker := map[string][]Outcome{}
	for _, o := range outcomes {
		byTicker[o.Ticker] = append(byTicker[o.Ticker], o)
	}
	out := make([]RankedTicker, 0, len(byTicker))
	for ticker, group := range byTicker {
		out = append(out, RankedTicker{Ticker: ticker, Summary: Summarize(group, []float64{0.5})})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			return out[i].Mean > out[j].Mean
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}
