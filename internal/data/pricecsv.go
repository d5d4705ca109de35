package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"market-backtest/internal/market"
	"market-backtest/internal/model"
)

// ErrUnsorted is returned for price files whose timestamps are not strictly ascending.
var ErrUnsorted = errors.New("price history is not strictly ascending")

// CSVLoader reads <Dir>/<TICKER>.csv price histories.
// Record format: date,time,open,high,low,close, oldest first.
// Dates are YYYYMMDD or YYYY-MM-DD; times are HHMMSS, HHMM or HH:MM[:SS],
// interpreted in Location.
type CSVLoader struct {
	Dir      string
	Location *time.Location
}

func NewCSVLoader(dir string, loc *time.Location) *CSVLoader {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVLoader{Dir: dir, Location: loc}
}

// Path is the file backing ticker.
func (l *CSVLoader) Path(ticker string) string {
	return filepath.Join(l.Dir, strings.ToUpper(ticker)+".csv")
}

func (l *CSVLoader) Load(ticker string) (*model.Series, error) {
	f, err := os.Open(l.Path(ticker))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadBars(f, l.Location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path(ticker), err)
	}
	s := model.NewSeries(ticker, bars)
	if !s.Sorted() {
		return nil, fmt.Errorf("%s: %w", l.Path(ticker), ErrUnsorted)
	}
	return s, nil
}

// Bounds reads only the first record and the last line of the ticker's file.
func (l *CSVLoader) Bounds(ticker string) (first, last model.Bar, err error) {
	path := l.Path(ticker)
	f, err := os.Open(path)
	if err != nil {
		return first, last, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return first, last, err
	}

	if first, err = firstBar(f, l.Location); err != nil {
		return first, last, fmt.Errorf("%s: %w", path, err)
	}
	if last, err = lastBar(f, info.Size(), l.Location); err != nil {
		return first, last, fmt.Errorf("%s: %w", path, err)
	}
	return first, last, nil
}

func firstBar(r io.Reader, loc *time.Location) (model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return model.Bar{}, market.ErrNoData
		}
		if err != nil {
			return model.Bar{}, err
		}
		line++
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 6 {
			return model.Bar{}, fmt.Errorf("line %d: expected 6 fields, got %d", line, len(rec))
		}
		b, err := parseBar(rec, loc)
		if err != nil {
			if line == 1 {
				continue
			}
			return model.Bar{}, fmt.Errorf("line %d: %w", line, err)
		}
		return b, nil
	}
}

// lastBar parses the last non-blank line, reading backwards from the end of
// the file in growing chunks until that line is complete.
func lastBar(r io.ReaderAt, size int64, loc *time.Location) (model.Bar, error) {
	for chunk := int64(4096); ; chunk *= 2 {
		off := size - chunk
		if off < 0 {
			off = 0
		}
		buf := make([]byte, size-off)
		if _, err := r.ReadAt(buf, off); err != nil && err != io.EOF {
			return model.Bar{}, err
		}
		lines := strings.Split(strings.TrimRight(string(buf), "\r\n\t "), "\n")
		if len(lines) < 2 && off > 0 {
			continue
		}
		tail := strings.TrimSpace(lines[len(lines)-1])
		if tail == "" {
			return model.Bar{}, market.ErrNoData
		}
		cr := csv.NewReader(strings.NewReader(tail))
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rec, err := cr.Read()
		if err != nil {
			return model.Bar{}, err
		}
		if len(rec) < 6 {
			return model.Bar{}, fmt.Errorf("last line: expected 6 fields, got %d", len(rec))
		}
		b, err := parseBar(rec, loc)
		if err != nil {
			return model.Bar{}, fmt.Errorf("last line: %w", err)
		}
		return b, nil
	}
}

// ReadBars parses price records. A non-numeric first line is treated as a header.
func ReadBars(r io.Reader, loc *time.Location) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []model.Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: expected 6 fields, got %d", line, len(rec))
		}
		b, err := parseBar(rec, loc)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseBar(rec []string, loc *time.Location) (model.Bar, error) {
	ts, err := ParseStamp(rec[0], rec[1], loc)
	if err != nil {
		return model.Bar{}, err
	}
	var px [4]float64
	for i := range px {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[2+i]), 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("price field %d: %w", 3+i, err)
		}
		px[i] = v
	}
	return model.Bar{Timestamp: ts.Unix(), Open: px[0], High: px[1], Low: px[2], Close: px[3]}, nil
}

// ParseStamp combines a date and a time-of-day field into an instant.
func ParseStamp(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.ReplaceAll(strings.TrimSpace(date), "-", "")
	d, err := time.ParseInLocation("20060102", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", date, err)
	}
	clock = strings.ReplaceAll(strings.TrimSpace(clock), ":", "")
	switch len(clock) {
	case 3, 5:
		clock = "0" + clock
	}
	if len(clock) == 4 {
		clock += "00"
	}
	if len(clock) != 6 {
		return time.Time{}, fmt.Errorf("time %q: unsupported length", clock)
	}
	h, err1 := strconv.Atoi(clock[0:2])
	m, err2 := strconv.Atoi(clock[2:4])
	s, err3 := strconv.Atoi(clock[4:6])
	if err := errors.Join(err1, err2, err3); err != nil || h > 23 || m > 59 || s > 59 {
		return time.Time{}, fmt.Errorf("time %q: invalid", clock)
	}
	y, mo, dd := d.Date()
	return time.Date(y, mo, dd, h, m, s, 0, loc), nil
}
