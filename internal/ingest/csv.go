// Package ingest turns external price sources into model.Observation
// streams: a CSV file loader for historical bars and a Binance kline
// feed for live data.
package ingest

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"pnf-systemv1/internal/model"
)

// csvTimeLayout matches the first field of exported bar files,
// e.g. "2023.01.02 00:00:00".
const csvTimeLayout = "2006.01.02 15:04:05"

// CSVLoader reads OHLC bars from a comma-separated file with rows of
// the form timestamp,date,open,high,low,close. The first line is a
// header and the date field duplicates the timestamp; both are ignored.
type CSVLoader struct {
	path    string
	symbol  string
	skipped int
}

// NewCSVLoader creates a loader for path, tagging every observation
// with symbol.
func NewCSVLoader(path, symbol string) *CSVLoader {
	return &CSVLoader{path: path, symbol: symbol}
}

// Load reads the whole file in row order. Malformed rows are dropped
// rather than fatal; Skipped reports how many.
func (l *CSVLoader) Load() ([]model.Observation, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", l.path, err)
	}
	defer f.Close()

	l.skipped = 0
	var obs []model.Observation

	sc := bufio.NewScanner(f)
	header := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if header {
			header = false
			continue
		}
		if line == "" {
			continue
		}
		o, ok := l.parseRow(line)
		if !ok {
			l.skipped++
			continue
		}
		obs = append(obs, o)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read csv %s: %w", l.path, err)
	}

	log.Printf("[csv] loaded %d observations from %s (%d rows skipped)", len(obs), l.path, l.skipped)
	return obs, nil
}

// Skipped returns the number of malformed rows dropped by the last Load.
func (l *CSVLoader) Skipped() int { return l.skipped }

func (l *CSVLoader) parseRow(line string) (model.Observation, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return model.Observation{}, false
	}

	ts, err := time.Parse(csvTimeLayout, strings.TrimSpace(fields[0]))
	if err != nil {
		return model.Observation{}, false
	}
	// fields[1] is a redundant date column.

	var vals [4]float64
	for i, s := range fields[2:6] {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return model.Observation{}, false
		}
		vals[i] = v
	}

	return model.Observation{
		Symbol: l.symbol,
		Time:   ts.UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
	}, true
}
