// Package indicator_test provides tests for the indicator engine.
package indicator_test

import (
	"math"
	"testing"
	"time"

	"github.com/helios-labs/strategy-validator/internal/indicator"
	"github.com/helios-labs/strategy-validator/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func makeBars(closes []float64, interval time.Duration) []types.Bar {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * interval),
			Open:      decimal.NewFromFloat(c),
			High:      decimal.NewFromFloat(c + 1),
			Low:       decimal.NewFromFloat(c - 1),
			Close:     decimal.NewFromFloat(c),
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return bars
}

func TestSMAKnownValues(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	sma := indicator.SMA(values, 3)

	if sma.Valid(0) || sma.Valid(1) {
		t.Error("SMA should be undefined during warm-up")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		got := sma[i+2]
		if math.Abs(got-w) > 1e-9 {
			t.Errorf("SMA[%d] = %f, want %f", i+2, got, w)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	ema := indicator.EMA(values, 3)

	if ema.Valid(0) || ema.Valid(1) {
		t.Error("EMA should be undefined during warm-up")
	}
	if math.Abs(ema[2]-4) > 1e-9 {
		t.Errorf("EMA seed = %f, want 4 (SMA of first 3 values)", ema[2])
	}
	// multiplier = 2/(3+1) = 0.5, next = (8-4)*0.5 + 4 = 6
	if math.Abs(ema[3]-6) > 1e-9 {
		t.Errorf("EMA[3] = %f, want 6", ema[3])
	}
}

func TestRSIClampsWhenNoLosses(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi := indicator.RSI(closes, 14)

	for i := 14; i < len(closes); i++ {
		if rsi[i] != 100 {
			t.Errorf("RSI[%d] = %f, want 100 for an all-gains series", i, rsi[i])
		}
	}
}

func TestRSIBounded(t *testing.T) {
	closes := []float64{100, 102, 99, 103, 98, 104, 97, 105, 96, 106, 95, 107, 94, 108, 93, 109, 92}
	rsi := indicator.RSI(closes, 14)

	for i := range rsi {
		if !rsi.Valid(i) {
			continue
		}
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Errorf("RSI[%d] = %f outside [0,100]", i, rsi[i])
		}
	}
}

func TestATRWarmupAndPositivity(t *testing.T) {
	closes := []float64{100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 95, 106, 94, 107, 93, 108, 92}
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	for i, c := range closes {
		highs[i] = c + 2
		lows[i] = c - 2
	}
	atr := indicator.ATR(highs, lows, closes, 14)

	for i := 0; i < 14; i++ {
		if atr.Valid(i) {
			t.Errorf("ATR[%d] defined during warm-up", i)
		}
	}
	for i := 14; i < len(closes); i++ {
		if !atr.Valid(i) || atr[i] <= 0 {
			t.Errorf("ATR[%d] = %f, want positive", i, atr[i])
		}
	}
}

func TestADXDefinedAfterDoubleWarmup(t *testing.T) {
	n := 60
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100 + float64(i%7) - float64(i%3)
		highs[i] = closes[i] + 1.5
		lows[i] = closes[i] - 1.5
	}
	adx := indicator.ADX(highs, lows, closes, 14)

	if adx.Valid(2*14 - 2) {
		t.Error("ADX defined before double warm-up completes")
	}
	for i := 2 * 14; i < n; i++ {
		if !adx.Valid(i) {
			t.Errorf("ADX[%d] undefined after warm-up", i)
			continue
		}
		if adx[i] < 0 || adx[i] > 100 {
			t.Errorf("ADX[%d] = %f outside [0,100]", i, adx[i])
		}
	}
}

func TestBollingerBandsBracketMid(t *testing.T) {
	closes := []float64{100, 102, 99, 103, 98, 104, 97, 105, 96, 106}
	mid, upper, lower := indicator.Bollinger(closes, 5, 2)

	for i := 4; i < len(closes); i++ {
		if !(lower[i] <= mid[i] && mid[i] <= upper[i]) {
			t.Errorf("bands inverted at %d: %f / %f / %f", i, lower[i], mid[i], upper[i])
		}
	}
}

func TestComputeRejectsShortHistory(t *testing.T) {
	engine := indicator.NewEngine(zap.NewNop())
	bars := makeBars([]float64{100, 101, 102}, time.Hour)

	if _, err := engine.Compute(bars, types.DefaultParameterSet()); err == nil {
		t.Fatal("expected error for insufficient history")
	}
}

func TestComputeRejectsNonMonotonicTimestamps(t *testing.T) {
	engine := indicator.NewEngine(zap.NewNop())
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	bars := makeBars(closes, time.Hour)
	bars[30].Timestamp = bars[29].Timestamp

	if _, err := engine.Compute(bars, types.DefaultParameterSet()); err == nil {
		t.Fatal("expected error for non-monotonic timestamps")
	}
}

func TestComputeRejectsInvalidParameters(t *testing.T) {
	engine := indicator.NewEngine(zap.NewNop())
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	bars := makeBars(closes, time.Hour)

	params := types.DefaultParameterSet()
	params.FastPeriod = 50
	params.SlowPeriod = 10

	if _, err := engine.Compute(bars, params); err == nil {
		t.Fatal("expected error for fast period >= slow period")
	}
}

func TestComputeAlignsAllSeries(t *testing.T) {
	engine := indicator.NewEngine(zap.NewNop())
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/5)*3
	}
	bars := makeBars(closes, time.Hour)

	set, err := engine.Compute(bars, types.DefaultParameterSet())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for name, series := range set.Map() {
		if len(series) != len(bars) {
			t.Errorf("series %s has length %d, want %d", name, len(series), len(bars))
		}
	}
}
