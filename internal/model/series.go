package model

import "math"

// Policy selects which bar a lookup returns when no bar sits exactly on the query.
type Policy int

const (
	// AtOrBefore returns the last bar whose timestamp is <= the query.
	AtOrBefore Policy = iota
	// AtOrAfter returns the first bar whose timestamp is >= the query.
	AtOrAfter
)

// maxInterpolationProbes bounds the interpolation phase of a search. Past it the
// search falls back to bisection so irregular spacing cannot degrade to O(n).
const maxInterpolationProbes = 32

// Series is an immutable, time-ascending sequence of bars for one ticker.
// Ordering and uniqueness of timestamps are assumed, not enforced.
type Series struct {
	Ticker string
	bars   []Bar
}

// NewSeries wraps bars without copying. Callers must not mutate bars afterwards.
func NewSeries(ticker string, bars []Bar) *Series {
	return &Series{Ticker: ticker, bars: bars}
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

// At returns the i-th bar. It panics when i is out of range, like a slice index.
func (s *Series) At(i int) Bar { return s.bars[i] }

// First and Last return the boundary bars; ok is false for an empty series.
func (s *Series) First() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.bars[0], true
}

func (s *Series) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Span is the number of seconds between the first and last bar.
func (s *Series) Span() int64 {
	first, ok := s.First()
	if !ok {
		return 0
	}
	last, _ := s.Last()
	return last.Timestamp - first.Timestamp
}

// Sorted reports whether timestamps are strictly ascending.
func (s *Series) Sorted() bool {
	for i := 1; i < s.Len(); i++ {
		if s.bars[i].Timestamp <= s.bars[i-1].Timestamp {
			return false
		}
	}
	return true
}

// Search returns the bar for ts under policy. ok is false when no bar qualifies.
func (s *Series) Search(ts int64, policy Policy) (Bar, bool) {
	i := s.Index(ts, policy)
	if i < 0 {
		return Bar{}, false
	}
	return s.bars[i], true
}

// Index is Search returning the bar position, or -1.
func (s *Series) Index(ts int64, policy Policy) int {
	i := s.atOrBefore(ts)
	if policy == AtOrBefore {
		return i
	}
	if i >= 0 && s.bars[i].Timestamp == ts {
		return i
	}
	if i+1 < s.Len() {
		return i + 1
	}
	return -1
}

// atOrBefore is an interpolation search for the last index with timestamp <= ts.
func (s *Series) atOrBefore(ts int64) int {
	n := s.Len()
	if n == 0 || ts < s.bars[0].Timestamp {
		return -1
	}
	lo, hi := 0, n-1
	if ts >= s.bars[hi].Timestamp {
		return hi
	}

	// bars[lo] <= ts < bars[hi] holds for the rest of the loop.
	for probes := 0; hi-lo > 1; probes++ {
		var mid int
		if probes < maxInterpolationProbes {
			tlo, thi := s.bars[lo].Timestamp, s.bars[hi].Timestamp
			frac := float64(ts-tlo) / float64(thi-tlo)
			mid = lo + int(math.Floor(frac*float64(hi-lo)))
		} else {
			mid = lo + (hi-lo)/2
		}
		if mid <= lo {
			mid = lo + 1
		} else if mid >= hi {
			mid = hi - 1
		}

		if s.bars[mid].Timestamp <= ts {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
