package backtester

import (
	"math"

	"github.com/helios-labs/strategy-validator/pkg/types"
	"gonum.org/v1/gonum/stat"
)

// MetricsCalculator reduces a trade sequence to a fixed set of scalar
// statistics. It is a pure function of its input: calling it twice on the
// same sequence yields identical reports, and zero- or single-trade inputs
// produce neutral values instead of panicking.
type MetricsCalculator struct {
	periodsPerYear float64
}

// NewMetricsCalculator creates a calculator annualizing for the given number
// of trading periods per year.
func NewMetricsCalculator(periodsPerYear float64) *MetricsCalculator {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &MetricsCalculator{periodsPerYear: periodsPerYear}
}

// Calculate computes the full metrics report for a closed-trade sequence.
func (mc *MetricsCalculator) Calculate(trades []types.Trade) *types.MetricsReport {
	report := &types.MetricsReport{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return report
	}

	returns := make([]float64, len(trades))
	var winReturns, lossReturns []float64
	var grossProfit, grossLoss float64

	for i, t := range trades {
		returns[i] = t.Return
		report.TotalReturn += t.Return
		// A flat trade counts as a loss: it paid costs without winning.
		if t.Return > 0 {
			winReturns = append(winReturns, t.Return)
			grossProfit += t.Return
		} else {
			lossReturns = append(lossReturns, t.Return)
			grossLoss += -t.Return
		}
	}

	report.WinningTrades = len(winReturns)
	report.LosingTrades = len(lossReturns)
	report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades)

	if len(winReturns) > 0 {
		report.AvgWin = stat.Mean(winReturns, nil)
	}
	if len(lossReturns) > 0 {
		// AvgLoss is the mean losing return and therefore negative.
		report.AvgLoss = stat.Mean(lossReturns, nil)
	}

	report.SharpeRatio = mc.sharpe(returns)
	report.MaxDrawdown = maxDrawdown(returns)
	report.ProfitFactor = profitFactor(grossProfit, grossLoss)
	report.Expectancy = report.WinRate*report.AvgWin + (1-report.WinRate)*report.AvgLoss
	report.KellyFraction = kellyFraction(report.WinRate, report.AvgWin, report.AvgLoss)

	return report
}

// sharpe annualizes mean/std of per-trade returns; defined as 0 when the
// deviation is zero or the sample has fewer than two points.
func (mc *MetricsCalculator) sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	std := stat.StdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(mc.periodsPerYear)
}

// maxDrawdown walks the trade sequence chronologically, compounding returns
// into an equity curve, and returns the largest peak-to-trough fraction.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
			continue
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// profitFactor is gross profit over absolute gross loss: +Inf with no
// losses, 0 with no wins.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return grossProfit / grossLoss
}

// kellyFraction computes the Kelly criterion from win rate and win/loss
// ratio, clamped to [0,1]. A sequence without losses maps to full Kelly.
func kellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if winRate == 0 || avgWin <= 0 {
		return 0
	}
	if avgLoss == 0 {
		return 1
	}
	ratio := avgWin / -avgLoss
	if ratio <= 0 {
		return 0
	}
	kelly := (winRate*ratio - (1 - winRate)) / ratio
	if kelly < 0 {
		return 0
	}
	if kelly > 1 {
		return 1
	}
	return kelly
}
