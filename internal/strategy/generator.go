// Package strategy turns indicator series into directional entry signals.
//
// A single generator covers every strategy variant: the crossover pair plus
// the set of qualifying filters is described declaratively by the parameter
// set, so the search controller can sweep variants without one type per
// combination.
package strategy

import (
	"math"

	"github.com/helios-labs/strategy-validator/internal/indicator"
	"github.com/helios-labs/strategy-validator/pkg/types"
	"go.uber.org/zap"
)

// atrPercentileWindow is the trailing sample the volatility floor ranks the
// current ATR against.
const atrPercentileWindow = 100

// Generator produces at most one signal per bar from an indicator set. It
// holds no state across bars; a crossover is detected from adjacent series
// values, never from remembered position state.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a new signal generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate scans the bar sequence and emits a directional signal on each bar
// where the fast series crosses the slow series and every active filter
// passes. Signals fire only on the transition bar, not on every bar where
// the inequality holds.
func (g *Generator) Generate(bars []types.Bar, ind *indicator.Set, params types.ParameterSet) []types.Signal {
	signals := make([]types.Signal, 0)

	for i := 1; i < len(bars); i++ {
		if !ind.FastEMA.Valid(i-1) || !ind.SlowEMA.Valid(i-1) ||
			!ind.FastEMA.Valid(i) || !ind.SlowEMA.Valid(i) {
			continue
		}

		prevFast, prevSlow := ind.FastEMA[i-1], ind.SlowEMA[i-1]
		fast, slow := ind.FastEMA[i], ind.SlowEMA[i]

		crossedUp := prevFast <= prevSlow && fast > slow
		crossedDown := prevFast >= prevSlow && fast < slow

		var direction types.Direction
		var reason string
		switch {
		case crossedUp && crossedDown:
			// Cannot happen with mutually exclusive crossover conditions,
			// but a conflicting bar must resolve deterministically.
			direction = types.DirectionFlat
			reason = "conflicting crossover"
		case crossedUp:
			direction = types.DirectionLong
			reason = "bullish crossover"
		case crossedDown:
			direction = types.DirectionShort
			reason = "bearish crossover"
		default:
			continue
		}

		if direction != types.DirectionFlat && !g.filtersPass(bars, ind, params, i) {
			continue
		}

		signals = append(signals, types.Signal{
			BarIndex:  i,
			Direction: direction,
			Strength:  crossoverStrength(fast, slow),
			Reason:    reason,
		})
	}

	if g.logger != nil {
		g.logger.Debug("signals generated",
			zap.Int("bars", len(bars)),
			zap.Int("signals", len(signals)),
		)
	}

	return signals
}

// filtersPass applies every active qualifying filter; filters gate
// independently and combine by logical AND.
func (g *Generator) filtersPass(bars []types.Bar, ind *indicator.Set, params types.ParameterSet, i int) bool {
	if params.VolatilityFloorPct > 0 && !volatilityFloorPasses(ind.ATR, params.VolatilityFloorPct, i) {
		return false
	}
	if params.TrendFloor > 0 && !trendFloorPasses(ind.ADX, params.TrendFloor, i) {
		return false
	}
	if params.VolumeMultiplier > 0 && !volumeConfirms(bars, ind.VolumeAvg, params.VolumeMultiplier, i) {
		return false
	}
	if params.SessionWindowEnabled() && !inSession(bars[i], params.SessionStartHour, params.SessionEndHour) {
		return false
	}
	return true
}

// volatilityFloorPasses requires the current ATR to exceed the pct-quantile
// of its own trailing distribution, filtering out dead-market crossovers.
func volatilityFloorPasses(atr indicator.Series, pct float64, i int) bool {
	if !atr.Valid(i) {
		return false
	}

	start := i - atrPercentileWindow
	if start < 0 {
		start = 0
	}
	window := make([]float64, 0, i-start)
	for j := start; j < i; j++ {
		if atr.Valid(j) {
			window = append(window, atr[j])
		}
	}
	if len(window) < 2 {
		return false
	}

	return atr[i] > trailingQuantile(window, pct)
}

// trailingQuantile returns the pct-quantile of the sample by rank; the input
// slice is owned by the caller of volatilityFloorPasses and safe to sort.
func trailingQuantile(sample []float64, pct float64) float64 {
	for i := 1; i < len(sample); i++ {
		for j := i; j > 0 && sample[j] < sample[j-1]; j-- {
			sample[j], sample[j-1] = sample[j-1], sample[j]
		}
	}
	idx := int(pct * float64(len(sample)-1))
	return sample[idx]
}

func trendFloorPasses(adx indicator.Series, floor float64, i int) bool {
	return adx.Valid(i) && adx[i] >= floor
}

func volumeConfirms(bars []types.Bar, volumeAvg indicator.Series, mult float64, i int) bool {
	if !volumeAvg.Valid(i) || volumeAvg[i] <= 0 {
		return false
	}
	return bars[i].Volume.InexactFloat64() > volumeAvg[i]*mult
}

// inSession checks the bar's hour of day against the configured trading
// window; windows wrapping midnight (start > end) are supported.
func inSession(bar types.Bar, startHour, endHour int) bool {
	h := bar.Timestamp.UTC().Hour()
	if startHour <= endHour {
		return h >= startHour && h < endHour
	}
	return h >= startHour || h < endHour
}

// crossoverStrength maps the relative gap between the crossing series to
// (0,1]. A fresh crossover has a small gap, so the scale factor keeps
// typical values meaningfully above zero.
func crossoverStrength(fast, slow float64) float64 {
	if slow == 0 {
		return 1
	}
	strength := math.Abs(fast-slow) / math.Abs(slow) * 100
	if strength > 1 {
		return 1
	}
	if strength < 0.1 {
		return 0.1
	}
	return strength
}
