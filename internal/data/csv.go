// Package data loads historical bar series for backtesting.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantforge/backcast/internal/core"
)

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadCSV reads bars for a symbol from a CSV file with columns
// time,open,high,low,close,volume. A header row is detected and skipped.
// Rows must be in ascending time order; gaps between timestamps are
// accepted. Rows that fail OHLC sanity checks are dropped with a warning.
func LoadCSV(path, symbol string, logger ...*zap.Logger) ([]core.Bar, error) {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, err)
	}
	defer f.Close()

	bars, err := parseCSV(f, symbol, l)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	return bars, nil
}

func parseCSV(r io.Reader, symbol string, l *zap.Logger) ([]core.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var bars []core.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("line %d: %w", line+1, err))
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) < 6 {
			return nil, core.WrapError(core.ErrNoData,
				fmt.Errorf("line %d: expected 6 columns, got %d", line, len(record)))
		}

		bar, err := parseRow(record, symbol)
		if err != nil {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("line %d: %w", line, err))
		}
		if !bar.IsValid() {
			l.Warn("dropping malformed bar", zap.Int("line", line), zap.Time("time", bar.Time))
			continue
		}
		if len(bars) > 0 && !bar.Time.After(bars[len(bars)-1].Time) {
			return nil, core.WrapError(core.ErrNoData,
				fmt.Errorf("line %d: timestamps not strictly ascending", line))
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseRow(record []string, symbol string) (core.Bar, error) {
	ts, err := parseTime(record[0])
	if err != nil {
		return core.Bar{}, err
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		fields[i] = v
	}

	return core.Bar{
		Symbol: symbol,
		Time:   ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	// Unix seconds as a fallback
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := parseTime(record[0])
	return err != nil
}
