package data

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// TickerInfo describes one price file available to the simulator.
type TickerInfo struct {
	Symbol string `json:"symbol"`
	File   string `json:"file"`
	Bytes  int64  `json:"bytes"`
}

// ListTickers returns every <TICKER>.csv in dir, sorted by symbol.
func ListTickers(dir string) ([]TickerInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	out := make([]TickerInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(extOf(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, TickerInfo{
			Symbol: strings.ToUpper(strings.TrimSuffix(e.Name(), extOf(e.Name()))),
			File:   e.Name(),
			Bytes:  info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// GetDefaultDataDir returns the price directory from the environment or ./data.
func GetDefaultDataDir() string {
	if dir := os.Getenv("MARKETSIM_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
