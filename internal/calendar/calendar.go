package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Calendar is a trading window made of a contiguous day-of-week range and a
// daily time-of-day range, both interpreted in a fixed location.
//
// Open and Close are offsets from local midnight; both ends are inclusive.
type Calendar struct {
	Location *time.Location
	FirstDay time.Weekday
	LastDay  time.Weekday
	Open     time.Duration
	Close    time.Duration
}

// Default is Monday-Friday 08:30-15:00 US Central time.
func Default() (Calendar, error) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return Calendar{}, err
	}
	return New(loc, time.Monday, time.Friday, 8*time.Hour+30*time.Minute, 15*time.Hour)
}

func New(loc *time.Location, firstDay, lastDay time.Weekday, open, close time.Duration) (Calendar, error) {
	c := Calendar{Location: loc, FirstDay: firstDay, LastDay: lastDay, Open: open, Close: close}
	if err := c.Validate(); err != nil {
		return Calendar{}, err
	}
	return c, nil
}

func (c Calendar) Validate() error {
	if c.Location == nil {
		return fmt.Errorf("calendar location is nil")
	}
	if c.FirstDay < time.Sunday || c.LastDay > time.Saturday || c.FirstDay > c.LastDay {
		return fmt.Errorf("trading days must satisfy Sunday<=first<=last<=Saturday, got %s..%s", c.FirstDay, c.LastDay)
	}
	if c.Open < 0 || c.Close >= 24*time.Hour || c.Open > c.Close {
		return fmt.Errorf("trading hours must satisfy 00:00<=open<=close<24:00, got %s..%s", c.Open, c.Close)
	}
	return nil
}

// IsTradingDay reports whether t falls on a day inside the weekday window.
func (c Calendar) IsTradingDay(t time.Time) bool {
	wd := t.In(c.Location).Weekday()
	return c.FirstDay <= wd && wd <= c.LastDay
}

// IsTradingHour reports whether the local time of day of t is inside [Open, Close].
func (c Calendar) IsTradingHour(t time.Time) bool {
	tod := timeOfDay(t.In(c.Location))
	return c.Open <= tod && tod <= c.Close
}

// IsOpen reports whether t is a valid trading instant.
func (c Calendar) IsOpen(t time.Time) bool {
	return c.IsTradingDay(t) && c.IsTradingHour(t)
}

// Next returns t when it is a valid trading instant, otherwise the opening
// time of the next trading session. It is pure.
func (c Calendar) Next(t time.Time) time.Time {
	t = t.In(c.Location)
	wd := t.Weekday()

	if c.IsTradingDay(t) {
		tod := timeOfDay(t)
		switch {
		case tod < c.Open:
			return c.openingOn(t, 0)
		case tod <= c.Close:
			return t
		case wd == c.LastDay:
			return c.openingOn(t, int(c.FirstDay)+7-int(wd))
		default:
			return c.openingOn(t, 1)
		}
	}

	if wd < c.FirstDay {
		return c.openingOn(t, int(c.FirstDay-wd))
	}
	return c.openingOn(t, int(c.FirstDay)+7-int(wd))
}

// openingOn returns the opening instant days calendar days after t's date.
// Building from date fields keeps the wall-clock open across DST changes.
func (c Calendar) openingOn(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	open := int(c.Open / time.Second)
	return time.Date(y, m, d+days, open/3600, open%3600/60, open%60, 0, c.Location)
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if _, err := fmt.Sscanf(parts[2], "%d", &sec); err != nil {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// ParseWeekday accepts full or three-letter English day names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if key == name || key == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
