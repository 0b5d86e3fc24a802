// Package data loads and validates historical bar series. Bad data ruins a
// backtest silently, so everything entering the pipeline passes through the
// same structural checks regardless of source format.
package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/helios-labs/strategy-validator/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Loader reads bar series from disk.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new bar loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads a bar series from a CSV or JSON file, picking the codec from
// the file extension, and validates it before returning.
func (l *Loader) Load(path string) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()

	var bars []types.Bar
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		bars, err = l.readCSV(f)
	case ".json":
		bars, err = l.readJSON(f)
	default:
		return nil, fmt.Errorf("unsupported bar file format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Validate(bars); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	if l.logger != nil {
		l.logger.Info("bar series loaded",
			zap.String("path", path),
			zap.Int("bars", len(bars)),
			zap.Time("first", bars[0].Timestamp),
			zap.Time("last", bars[len(bars)-1].Timestamp),
		)
	}
	return bars, nil
}

// readCSV parses timestamp,open,high,low,close,volume rows. A header row is
// detected by a non-numeric first field and skipped.
func (l *Loader) readCSV(r io.Reader) ([]types.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var bars []types.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if len(record) < 6 {
			return nil, fmt.Errorf("line %d: expected 6 columns, got %d", line, len(record))
		}
		if line == 1 {
			if _, err := parseTimestamp(record[0]); err != nil {
				continue // header row
			}
		}

		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (l *Loader) readJSON(r io.Reader) ([]types.Bar, error) {
	var bars []types.Bar
	if err := json.NewDecoder(r).Decode(&bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseBarRecord(record []string) (types.Bar, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return types.Bar{}, fmt.Errorf("timestamp %q: %w", record[0], err)
	}

	fields := [5]decimal.Decimal{}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		d, err := decimal.NewFromString(strings.TrimSpace(record[i+1]))
		if err != nil {
			return types.Bar{}, fmt.Errorf("%s %q: %w", names[i], record[i+1], err)
		}
		fields[i] = d
	}

	return types.Bar{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// parseTimestamp accepts RFC3339 or Unix seconds/milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}

	var unix int64
	if _, err := fmt.Sscanf(s, "%d", &unix); err != nil || fmt.Sprintf("%d", unix) != s {
		return time.Time{}, fmt.Errorf("unrecognized timestamp format")
	}
	if unix > 1e12 {
		return time.UnixMilli(unix).UTC(), nil
	}
	return time.Unix(unix, 0).UTC(), nil
}
