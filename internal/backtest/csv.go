package backtest

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"market-backtest/internal/ledger"
)

// WriteFillsCSV writes one row per executed order. Times are rendered in loc.
func WriteFillsCSV(path string, fills []ledger.Fill, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"index",
		"time",
		"timestamp",
		"ticker",
		"side",
		"shares",
		"price",
		"notional",
		"commission",
		"cash_after",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	if loc == nil {
		loc = time.UTC
	}
	for i, fl := range fills {
		row := []string{
			strconv.Itoa(i),
			fmtTime(time.Unix(fl.Time, 0).In(loc)),
			strconv.FormatInt(fl.Time, 10),
			fl.Ticker,
			string(fl.Side),
			strconv.FormatInt(fl.Shares, 10),
			fmtFloat(fl.Price),
			fmtFloat(fl.Price * float64(fl.Shares)),
			fmtFloat(fl.Commission),
			fmtFloat(fl.CashAfter),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
