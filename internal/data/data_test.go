package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-backtest/internal/market"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestReadBars(t *testing.T) {
	loc := chicago(t)
	in := strings.Join([]string{
		"date,time,open,high,low,close",
		"20240603,0830,100,101,99,100.5",
		"2024-06-03,08:31:00,100.5,102,100,101.25",
		"",
		"20240603,083200,101.25,101.5,100.75,101",
	}, "\n")

	bars, err := ReadBars(strings.NewReader(in), loc)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	want := time.Date(2024, 6, 3, 8, 30, 0, 0, loc).Unix()
	assert.Equal(t, want, bars[0].Timestamp)
	assert.Equal(t, want+60, bars[1].Timestamp)
	assert.Equal(t, want+120, bars[2].Timestamp)
	assert.Equal(t, 101.25, bars[1].Close)
	assert.Equal(t, 99.0, bars[0].Low)
}

func TestReadBarsRejectsBadRecords(t *testing.T) {
	loc := chicago(t)
	_, err := ReadBars(strings.NewReader("20240603,0830,100,101,99,100\n20240603,0831,1,2,3\n"), loc)
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadBars(strings.NewReader("20240603,0830,100,101,99,100\n20240603,2561,1,2,3,4\n"), loc)
	assert.ErrorContains(t, err, "invalid")
}

func TestParseStamp(t *testing.T) {
	loc := chicago(t)
	cases := map[string]time.Time{
		"930":    time.Date(2024, 1, 2, 9, 30, 0, 0, loc),
		"0930":   time.Date(2024, 1, 2, 9, 30, 0, 0, loc),
		"93015":  time.Date(2024, 1, 2, 9, 30, 15, 0, loc),
		"14:59":  time.Date(2024, 1, 2, 14, 59, 0, 0, loc),
		"150000": time.Date(2024, 1, 2, 15, 0, 0, 0, loc),
	}
	for clock, want := range cases {
		got, err := ParseStamp("20240102", clock, loc)
		require.NoError(t, err, clock)
		assert.True(t, want.Equal(got), "%s: got %v", clock, got)
	}
	_, err := ParseStamp("2024013", "0930", loc)
	assert.Error(t, err)
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestCSVLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ACME.csv", "20240603,0830,10,10,10,10\n20240603,0831,11,11,11,11\n")
	writeFile(t, dir, "BAD.csv", "20240603,0831,10,10,10,10\n20240603,0830,11,11,11,11\n")

	l := NewCSVLoader(dir, chicago(t))
	s, err := l.Load("acme")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "acme", s.Ticker)

	_, err = l.Load("BAD")
	assert.ErrorIs(t, err, ErrUnsorted)

	_, err = l.Load("MISSING")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListTickers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "msft.csv", "x")
	writeFile(t, dir, "AAPL.CSV", "xy")
	writeFile(t, dir, "notes.txt", "z")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	got, err := ListTickers(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, int64(2), got[0].Bytes)
	assert.Equal(t, "MSFT", got[1].Symbol)

	_, err = ListTickers(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestLoadLuckyTable(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "lucky.csv", strings.Join([]string{
		"percentile,3600,86400",
		"50,1.01,1.02",
		"90,1.05,1.10",
	}, "\n"))

	tbl, err := LoadLuckyTable(p)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 90}, tbl.Percentiles())
	assert.Equal(t, []float64{3600, 86400}, tbl.Durations())
	assert.InDelta(t, 1.10, tbl.Gain(90, 86400), 1e-12)
	assert.InDelta(t, 1.03, tbl.Gain(70, 3600), 1e-12)

	_, err = ReadLuckyTable(strings.NewReader("percentile,3600\n"))
	assert.Error(t, err)
	_, err = ReadLuckyTable(strings.NewReader("percentile,3600\n50,abc\n"))
	assert.ErrorContains(t, err, "row 1")
}

func TestSeriesCache(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "ACME.csv", "20240603,0830,10,10,10,10\n")

	c := NewSeriesCache(NewCSVLoader(dir, chicago(t)), time.Hour)
	defer c.Close()

	first, err := c.Load("ACME")
	require.NoError(t, err)
	second, err := c.Load("acme")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, os.WriteFile(p, []byte("20240603,0830,10,10,10,10\n20240603,0831,12,12,12,12\n"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(p, later, later))

	third, err := c.Load("ACME")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, third.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCSVLoaderBounds(t *testing.T) {
	dir := t.TempDir()
	loc := chicago(t)
	var b strings.Builder
	b.WriteString("date,time,open,high,low,close\n\n")
	for m := 0; m < 390; m++ {
		ts := time.Date(2024, 6, 3, 8, 30, 0, 0, loc).Add(time.Duration(m) * time.Minute)
		b.WriteString(ts.Format("20060102,1504") + ",10,10,10,10.25\n")
	}
	b.WriteString("\n\n")
	writeFile(t, dir, "LONG.csv", b.String())
	writeFile(t, dir, "HEADER.csv", "date,time,open,high,low,close\n")
	writeFile(t, dir, "ONE.csv", "20240603,0830,10,10,10,12\r\n")

	l := NewCSVLoader(dir, loc)
	first, last, err := l.Bounds("long")
	require.NoError(t, err)
	start := time.Date(2024, 6, 3, 8, 30, 0, 0, loc).Unix()
	assert.Equal(t, start, first.Timestamp)
	assert.Equal(t, start+389*60, last.Timestamp)
	assert.Equal(t, 10.25, last.Close)

	series, err := l.Load("long")
	require.NoError(t, err)
	assert.Equal(t, series.Span(), last.Timestamp-first.Timestamp)

	first, last, err = l.Bounds("ONE")
	require.NoError(t, err)
	assert.Equal(t, first, last)
	assert.Equal(t, 12.0, last.Close)

	_, _, err = l.Bounds("HEADER")
	assert.ErrorIs(t, err, market.ErrNoData)

	_, _, err = l.Bounds("MISSING")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
