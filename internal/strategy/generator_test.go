// Package strategy_test provides tests for the signal generator.
package strategy_test

import (
	"testing"
	"time"

	"github.com/helios-labs/strategy-validator/internal/indicator"
	"github.com/helios-labs/strategy-validator/internal/strategy"
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

// flatThenTrend returns a series that is flat at 100 for flatLen bars and
// then moves by step per bar, forcing exactly one crossover at index flatLen.
func flatThenTrend(flatLen, total int, step float64) []float64 {
	closes := make([]float64, total)
	for i := 0; i < total; i++ {
		if i < flatLen {
			closes[i] = 100
		} else {
			closes[i] = 100 + float64(i-flatLen+1)*step
		}
	}
	return closes
}

func crossoverParams() types.ParameterSet {
	p := types.DefaultParameterSet()
	p.FastPeriod = 3
	p.SlowPeriod = 8
	return p
}

func computeSet(t *testing.T, bars []types.Bar, params types.ParameterSet) *indicator.Set {
	t.Helper()
	set, err := indicator.NewEngine(zap.NewNop()).Compute(bars, params)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	return set
}

func TestBullishCrossoverEmitsExactlyOneSignal(t *testing.T) {
	params := crossoverParams()
	bars := makeBars(flatThenTrend(30, 60, 1), time.Hour)
	set := computeSet(t, bars, params)

	signals := strategy.NewGenerator(zap.NewNop()).Generate(bars, set, params)

	if len(signals) != 1 {
		t.Fatalf("got %d signals, want exactly 1", len(signals))
	}
	sig := signals[0]
	if sig.Direction != types.DirectionLong {
		t.Errorf("direction = %s, want long", sig.Direction)
	}
	if sig.BarIndex != 30 {
		t.Errorf("signal at bar %d, want 30 (the transition bar)", sig.BarIndex)
	}
	if sig.Strength <= 0 || sig.Strength > 1 {
		t.Errorf("strength = %f outside (0,1]", sig.Strength)
	}
}

func TestBearishCrossoverEmitsShortSignal(t *testing.T) {
	params := crossoverParams()
	bars := makeBars(flatThenTrend(30, 60, -1), time.Hour)
	set := computeSet(t, bars, params)

	signals := strategy.NewGenerator(zap.NewNop()).Generate(bars, set, params)

	if len(signals) != 1 {
		t.Fatalf("got %d signals, want exactly 1", len(signals))
	}
	if signals[0].Direction != types.DirectionShort {
		t.Errorf("direction = %s, want short", signals[0].Direction)
	}
}

func TestNoSignalWithoutCrossover(t *testing.T) {
	params := crossoverParams()
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i) // monotone from the start, no transition after warm-up
	}
	bars := makeBars(closes, time.Hour)
	set := computeSet(t, bars, params)

	signals := strategy.NewGenerator(zap.NewNop()).Generate(bars, set, params)

	for _, sig := range signals {
		if sig.BarIndex > 10 {
			t.Errorf("unexpected signal at bar %d in a straight trend", sig.BarIndex)
		}
	}
}

func TestVolumeFilterBlocksWithoutExpansion(t *testing.T) {
	params := crossoverParams()
	params.VolumeMultiplier = 10 // constant volume can never be 10x its own average
	bars := makeBars(flatThenTrend(30, 60, 1), time.Hour)
	set := computeSet(t, bars, params)

	signals := strategy.NewGenerator(zap.NewNop()).Generate(bars, set, params)

	if len(signals) != 0 {
		t.Fatalf("got %d signals, want 0 with volume filter active", len(signals))
	}
}

func TestSessionFilterBlocksOutOfWindow(t *testing.T) {
	params := crossoverParams()
	params.SessionStartHour = 9
	params.SessionEndHour = 16
	bars := makeBars(flatThenTrend(30, 60, 1), time.Hour)
	set := computeSet(t, bars, params)

	// The crossover bar sits at 20:30 UTC, outside the window.
	if h := bars[30].Timestamp.UTC().Hour(); h >= 9 && h < 16 {
		t.Fatalf("test setup: crossover bar hour %d is inside the window", h)
	}

	signals := strategy.NewGenerator(zap.NewNop()).Generate(bars, set, params)

	if len(signals) != 0 {
		t.Fatalf("got %d signals, want 0 outside the session window", len(signals))
	}
}

func TestTrendFilterBlocksRangeBoundMarket(t *testing.T) {
	params := crossoverParams()
	params.TrendFloor = 99 // nearly impossible ADX in a mixed market
	closes := make([]float64, 80)
	for i := range closes {
		switch i % 4 {
		case 0:
			closes[i] = 100
		case 1:
			closes[i] = 102
		case 2:
			closes[i] = 100
		case 3:
			closes[i] = 98
		}
	}
	bars := makeBars(closes, time.Hour)
	set := computeSet(t, bars, params)

	signals := strategy.NewGenerator(zap.NewNop()).Generate(bars, set, params)

	if len(signals) != 0 {
		t.Fatalf("got %d signals, want 0 with trend floor at %v", len(signals), params.TrendFloor)
	}
}
