package model

import (
	"fmt"
	"time"
)

// Bar is one sampled OHLC price record.
// Timestamp is Unix seconds.
type Bar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

// Time returns the bar timestamp in loc (UTC when loc is nil).
func (b Bar) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(b.Timestamp, 0).In(loc)
}

func (b Bar) String() string {
	return fmt.Sprintf("%d o=%.4f h=%.4f l=%.4f c=%.4f", b.Timestamp, b.Open, b.High, b.Low, b.Close)
}
