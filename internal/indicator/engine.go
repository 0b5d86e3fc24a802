// Package indicator computes derived time series from raw bars.
package indicator

import (
	"fmt"
	"math"

	"github.com/helios-labs/strategy-validator/pkg/types"
	"go.uber.org/zap"
)

// volumeWindow is the trailing window for the rolling volume average used by
// the volume-confirmation filter.
const volumeWindow = 20

// Series is a numeric sequence aligned with the bar sequence that produced
// it. Positions before warm-up completion hold NaN and must never generate
// signals.
type Series []float64

// Valid reports whether the series holds a defined value at index i.
func (s Series) Valid(i int) bool {
	return i >= 0 && i < len(s) && !math.IsNaN(s[i])
}

// Set holds every indicator series one parameter set needs, all aligned to
// the same bar sequence. A Set is owned by the pipeline run that computed it
// and is never mutated afterwards.
type Set struct {
	FastEMA   Series
	SlowEMA   Series
	RSI       Series
	ATR       Series
	ADX       Series
	BollMid   Series
	BollUpper Series
	BollLower Series
	VolumeAvg Series
}

// Map returns the set as a name-to-series mapping, the report-friendly view.
func (s *Set) Map() map[string]Series {
	return map[string]Series{
		"fast_ema":   s.FastEMA,
		"slow_ema":   s.SlowEMA,
		"rsi":        s.RSI,
		"atr":        s.ATR,
		"adx":        s.ADX,
		"boll_mid":   s.BollMid,
		"boll_upper": s.BollUpper,
		"boll_lower": s.BollLower,
		"volume_avg": s.VolumeAvg,
	}
}

// Engine computes indicator sets. It is stateless between calls; every
// Compute works only from the bars and parameters it is given.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new indicator engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Compute derives the full indicator set for one parameter set. Data errors
// (too little history, non-monotonic timestamps) are caught here so a bad
// configuration rejects a single run instead of crashing a sweep.
func (e *Engine) Compute(bars []types.Bar, params types.ParameterSet) (*Set, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameter set: %w", err)
	}

	minHistory := params.SlowPeriod
	if n := params.ATRPeriod + 1; n > minHistory {
		minHistory = n
	}
	if n := 2 * params.ADXPeriod; n > minHistory {
		minHistory = n
	}
	if n := params.RSIPeriod + 1; n > minHistory {
		minHistory = n
	}
	if volumeWindow > minHistory {
		minHistory = volumeWindow
	}
	if len(bars) < minHistory+1 {
		return nil, fmt.Errorf("insufficient bar history: have %d bars, need at least %d", len(bars), minHistory+1)
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("non-monotonic timestamps at bar %d: %s !> %s",
				i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
		volumes[i] = b.Volume.InexactFloat64()
	}

	mid, upper, lower := Bollinger(closes, params.SlowPeriod, 2.0)

	set := &Set{
		FastEMA:   EMA(closes, params.FastPeriod),
		SlowEMA:   EMA(closes, params.SlowPeriod),
		RSI:       RSI(closes, params.RSIPeriod),
		ATR:       ATR(highs, lows, closes, params.ATRPeriod),
		ADX:       ADX(highs, lows, closes, params.ADXPeriod),
		BollMid:   mid,
		BollUpper: upper,
		BollLower: lower,
		VolumeAvg: SMA(volumes, volumeWindow),
	}

	if e.logger != nil {
		e.logger.Debug("indicator set computed",
			zap.Int("bars", len(bars)),
			zap.Int("fast_period", params.FastPeriod),
			zap.Int("slow_period", params.SlowPeriod),
		)
	}

	return set, nil
}

// warmup returns a series of n NaNs.
func warmup(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// SMA computes a simple moving average. The first period-1 positions are
// undefined.
func SMA(values []float64, period int) Series {
	out := warmup(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes an exponential moving average seeded with the SMA of the
// first period values.
func EMA(values []float64, period int) Series {
	out := warmup(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	mult := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*mult + out[i-1]
	}
	return out
}

// RSI computes the Wilder relative strength index, bounded to [0,100]. A
// zero average loss is clamped to RSI=100 instead of propagating NaN into
// downstream logic.
func RSI(closes []float64, period int) Series {
	out := warmup(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes the Wilder average true range.
func ATR(highs, lows, closes []float64, period int) Series {
	out := warmup(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	tr := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		tr[i] = trueRange(highs[i], lows[i], closes[i-1])
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)

	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		out[i] = (out[i-1]*(n-1) + tr[i]) / n
	}
	return out
}

func trueRange(high, low, prevClose float64) float64 {
	r := high - low
	if d := math.Abs(high - prevClose); d > r {
		r = d
	}
	if d := math.Abs(low - prevClose); d > r {
		r = d
	}
	return r
}

// ADX computes the Wilder average directional index, a trend-strength
// measure bounded to [0,100]. Values are defined from index 2*period on.
func ADX(highs, lows, closes []float64, period int) Series {
	out := warmup(len(closes))
	if period <= 0 || len(closes) < 2*period+1 {
		return out
	}

	var smTR, smPlusDM, smMinusDM float64
	for i := 1; i <= period; i++ {
		plusDM, minusDM := directionalMovement(highs, lows, i)
		smTR += trueRange(highs[i], lows[i], closes[i-1])
		smPlusDM += plusDM
		smMinusDM += minusDM
	}

	dx := warmup(len(closes))
	dx[period] = dxValue(smPlusDM, smMinusDM, smTR)

	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		plusDM, minusDM := directionalMovement(highs, lows, i)
		smTR = smTR - smTR/n + trueRange(highs[i], lows[i], closes[i-1])
		smPlusDM = smPlusDM - smPlusDM/n + plusDM
		smMinusDM = smMinusDM - smMinusDM/n + minusDM
		dx[i] = dxValue(smPlusDM, smMinusDM, smTR)
	}

	var dxSum float64
	for i := period; i < 2*period; i++ {
		dxSum += dx[i]
	}
	out[2*period-1] = dxSum / n
	for i := 2 * period; i < len(closes); i++ {
		out[i] = (out[i-1]*(n-1) + dx[i]) / n
	}
	return out
}

func directionalMovement(highs, lows []float64, i int) (plusDM, minusDM float64) {
	up := highs[i] - highs[i-1]
	down := lows[i-1] - lows[i]
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	return plusDM, minusDM
}

func dxValue(plusDM, minusDM, tr float64) float64 {
	if tr == 0 {
		return 0
	}
	plusDI := 100 * plusDM / tr
	minusDI := 100 * minusDM / tr
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}

// Bollinger computes a volatility band: moving average plus/minus k standard
// deviations over the same window.
func Bollinger(closes []float64, period int, k float64) (mid, upper, lower Series) {
	mid = SMA(closes, period)
	upper = warmup(len(closes))
	lower = warmup(len(closes))
	if period <= 1 || len(closes) < period {
		return mid, upper, lower
	}

	for i := period - 1; i < len(closes); i++ {
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := closes[j] - mid[i]
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(period))
		upper[i] = mid[i] + k*std
		lower[i] = mid[i] - k*std
	}
	return mid, upper, lower
}
