package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestNext(t *testing.T) {
	t.Parallel()
	cal, err := Default()
	require.NoError(t, err)
	loc := chicago(t)
	at := func(y int, m time.Month, d, hh, mm int) time.Time {
		return time.Date(y, m, d, hh, mm, 0, 0, loc)
	}

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"inside window is unchanged", at(2024, time.June, 12, 10, 15), at(2024, time.June, 12, 10, 15)},
		{"open bound is inside", at(2024, time.June, 12, 8, 30), at(2024, time.June, 12, 8, 30)},
		{"close bound is inside", at(2024, time.June, 12, 15, 0), at(2024, time.June, 12, 15, 0)},
		{"before open", at(2024, time.June, 12, 6, 0), at(2024, time.June, 12, 8, 30)},
		{"after close midweek", at(2024, time.June, 12, 15, 1), at(2024, time.June, 13, 8, 30)},
		{"after close friday", at(2024, time.June, 14, 18, 0), at(2024, time.June, 17, 8, 30)},
		{"saturday afternoon", at(2024, time.June, 15, 14, 0), at(2024, time.June, 17, 8, 30)},
		{"sunday morning", at(2024, time.June, 16, 9, 0), at(2024, time.June, 17, 8, 30)},
		{"weekend across DST start", at(2024, time.March, 9, 14, 0), at(2024, time.March, 11, 8, 30)},
		{"month rollover", at(2024, time.May, 31, 16, 0), at(2024, time.June, 3, 8, 30)},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := cal.Next(tc.in)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			assert.True(t, cal.IsOpen(got))
			assert.True(t, got.Equal(cal.Next(got)), "Next must be idempotent")
		})
	}
}

func TestNextConvertsLocation(t *testing.T) {
	t.Parallel()
	cal, err := Default()
	require.NoError(t, err)
	// 13:00 UTC on a Wednesday in June is 08:00 in Chicago
	in := time.Date(2024, time.June, 12, 13, 0, 0, 0, time.UTC)
	got := cal.Next(in)
	assert.Equal(t, time.Date(2024, time.June, 12, 8, 30, 0, 0, chicago(t)).Unix(), got.Unix())
}

func TestNextCustomWindow(t *testing.T) {
	t.Parallel()
	// Tuesday-Thursday 22:00-23:00 UTC
	cal, err := New(time.UTC, time.Tuesday, time.Thursday, 22*time.Hour, 23*time.Hour)
	require.NoError(t, err)

	mon := time.Date(2024, time.June, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.June, 11, 22, 0, 0, 0, time.UTC), cal.Next(mon))

	thuLate := time.Date(2024, time.June, 13, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.June, 18, 22, 0, 0, 0, time.UTC), cal.Next(thuLate))

	fri := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.June, 18, 22, 0, 0, 0, time.UTC), cal.Next(fri))
}

func TestNewRejectsInvalidWindows(t *testing.T) {
	t.Parallel()
	_, err := New(nil, time.Monday, time.Friday, 0, time.Hour)
	assert.Error(t, err)
	_, err = New(time.UTC, time.Friday, time.Monday, 0, time.Hour)
	assert.Error(t, err)
	_, err = New(time.UTC, time.Monday, time.Friday, 2*time.Hour, time.Hour)
	assert.Error(t, err)
	_, err = New(time.UTC, time.Monday, time.Friday, 0, 24*time.Hour)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	d, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, d)

	d, err = ParseClock(" 15:00:05 ")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Hour+5*time.Second, d)

	for _, bad := range []string{"", "8", "24:00", "12:60", "aa:bb", "1:2:3:4"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	d, err := ParseWeekday("Monday")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)

	d, err = ParseWeekday("fri")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}
