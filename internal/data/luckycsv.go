package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"market-backtest/internal/strategy"
)

// LoadLuckyTable reads a lucky percentile table from a CSV file.
//
// The first row is a header whose first cell is ignored and whose remaining
// cells are hold durations in seconds. Each following row is a percentile
// followed by one gain multiple per duration.
func LoadLuckyTable(path string) (*strategy.LuckyTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadLuckyTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func ReadLuckyTable(r io.Reader) (*strategy.LuckyTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) < 2 {
		return nil, fmt.Errorf("lucky table needs a header and at least one row")
	}

	durations, err := parseFloats(recs[0][1:])
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	percentiles := make([]float64, 0, len(recs)-1)
	gains := make([][]float64, 0, len(recs)-1)
	for i, rec := range recs[1:] {
		row, err := parseFloats(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		percentiles = append(percentiles, row[0])
		gains = append(gains, row[1:])
	}
	return strategy.NewLuckyTable(percentiles, durations, gains)
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
