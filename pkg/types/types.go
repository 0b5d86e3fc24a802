// Package types provides shared type definitions for the strategy validator.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the direction of a signal or position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitReasonStopLoss       ExitReason = "stop_loss"
	ExitReasonTakeProfit     ExitReason = "take_profit"
	ExitReasonSignalReversal ExitReason = "signal_reversal"
)

// Timeframe represents the bar interval of a series.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// PeriodsPerYear returns the approximate number of bars in a trading year
// for the timeframe, used to annualize Sharpe ratios.
func (tf Timeframe) PeriodsPerYear() float64 {
	switch tf {
	case Timeframe1m:
		return 252 * 390
	case Timeframe5m:
		return 252 * 78
	case Timeframe15m:
		return 252 * 26
	case Timeframe1h:
		return 252 * 6.5
	case Timeframe4h:
		return 252 * 1.625
	default:
		return 252
	}
}

// Bar represents a single OHLCV candlestick. Bars are immutable once loaded;
// a sequence carries one instrument and timeframe with strictly increasing
// timestamps.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Signal is a directional event emitted for a single bar index. At most one
// signal is produced per bar; qualifying filters are combined inside the
// generator rather than emitted separately.
type Signal struct {
	BarIndex  int       `json:"barIndex"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	Reason    string    `json:"reason,omitempty"`
}

// Position is the transient single open position of a simulation run.
type Position struct {
	Direction  Direction       `json:"direction"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	EntryIndex int             `json:"entryIndex"`
	EntryTime  time.Time       `json:"entryTime"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
	Size       decimal.Decimal `json:"size"`
}

// Trade is the immutable record created when a position closes. Trades
// accumulate in an append-only ordered sequence, the sole input to the
// metrics calculator and the Monte Carlo validator.
type Trade struct {
	ID         string          `json:"id"`
	Direction  Direction       `json:"direction"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	EntryTime  time.Time       `json:"entryTime"`
	ExitTime   time.Time       `json:"exitTime"`
	PnL        decimal.Decimal `json:"pnl"`
	Return     float64         `json:"return"` // normalized, net of costs
	ExitReason ExitReason      `json:"exitReason"`
}

// IsWin reports whether the trade closed with a positive net return.
func (t Trade) IsWin() bool { return t.Return > 0 }

// MetricsReport is the flat scalar summary of one trade sequence.
type MetricsReport struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`
	TotalReturn   float64 `json:"totalReturn"`
	SharpeRatio   float64 `json:"sharpeRatio"`
	MaxDrawdown   float64 `json:"maxDrawdown"`
	ProfitFactor  float64 `json:"profitFactor"`
	Expectancy    float64 `json:"expectancy"`
	KellyFraction float64 `json:"kellyFraction"`
	AvgWin        float64 `json:"avgWin"`
	AvgLoss       float64 `json:"avgLoss"`
}

// ResamplingMethod identifies one Monte Carlo resampling scheme.
type ResamplingMethod string

const (
	MethodShuffle    ResamplingMethod = "shuffle"
	MethodBlock      ResamplingMethod = "block_bootstrap"
	MethodParametric ResamplingMethod = "parametric"
	MethodRegime     ResamplingMethod = "regime"
)

// AllResamplingMethods lists the schemes in report order.
var AllResamplingMethods = []ResamplingMethod{
	MethodShuffle, MethodBlock, MethodParametric, MethodRegime,
}

// MethodResult summarizes the simulated outcome distribution for one
// resampling scheme.
type MethodResult struct {
	Method       ResamplingMethod `json:"method"`
	Runs         int              `json:"runs"`
	SurvivalRate float64          `json:"survivalRate"`
	MeanReturn   float64          `json:"meanReturn"`
	P5Return     float64          `json:"p5Return"`
	P95Return    float64          `json:"p95Return"`
	MeanSharpe   float64          `json:"meanSharpe"`
}

// Consensus aggregates survival across all resampling schemes. The minimum
// survival rate is the conservative robustness signal: a strategy is trusted
// only if it survives the least favorable resampling assumption.
type Consensus struct {
	AvgSurvival float64 `json:"avgSurvival"`
	MinSurvival float64 `json:"minSurvival"`
}

// MonteCarloResult is the full validation report for one trade sequence.
// Reliable is false when the sequence is too short for meaningful
// resampling; in that case the per-method results are degenerate and must
// not be read as confidence numbers.
type MonteCarloResult struct {
	TradeCount int            `json:"tradeCount"`
	Reliable   bool           `json:"reliable"`
	Methods    []MethodResult `json:"methods"`
	Consensus  Consensus      `json:"consensus"`
}

// MethodResultFor returns the result for a scheme, or a zero value if the
// validator did not run it.
func (r *MonteCarloResult) MethodResultFor(m ResamplingMethod) MethodResult {
	for _, mr := range r.Methods {
		if mr.Method == m {
			return mr
		}
	}
	return MethodResult{Method: m}
}
