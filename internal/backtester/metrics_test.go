package backtester_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/helios-labs/strategy-validator/internal/backtester"
	"github.com/helios-labs/strategy-validator/pkg/types"
	"github.com/shopspring/decimal"
)

// tradesFromReturns builds a synthetic trade sequence carrying the given net
// returns, for exercising the statistics without running a simulation.
func tradesFromReturns(returns []float64) []types.Trade {
	start := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	trades := make([]types.Trade, len(returns))
	for i, r := range returns {
		entry := decimal.NewFromInt(100)
		trades[i] = types.Trade{
			ID:         uuid.New().String(),
			Direction:  types.DirectionLong,
			EntryPrice: entry,
			ExitPrice:  entry.Mul(decimal.NewFromFloat(1 + r)),
			EntryTime:  start.Add(time.Duration(2*i) * time.Hour),
			ExitTime:   start.Add(time.Duration(2*i+1) * time.Hour),
			PnL:        entry.Mul(decimal.NewFromFloat(r)),
			Return:     r,
			ExitReason: types.ExitReasonTakeProfit,
		}
	}
	return trades
}

func TestTradeCountsAreConsistent(t *testing.T) {
	calc := backtester.NewMetricsCalculator(252)
	report := calc.Calculate(tradesFromReturns([]float64{0.02, -0.01, 0.03, 0, -0.02, 0.01}))

	if report.TotalTrades != 6 {
		t.Fatalf("total trades = %d, want 6", report.TotalTrades)
	}
	if report.WinningTrades+report.LosingTrades != report.TotalTrades {
		t.Errorf("wins %d + losses %d != total %d",
			report.WinningTrades, report.LosingTrades, report.TotalTrades)
	}
	if report.WinRate < 0 || report.WinRate > 1 {
		t.Errorf("win rate = %f outside [0,1]", report.WinRate)
	}
	if report.WinningTrades != 3 {
		t.Errorf("winning trades = %d, want 3", report.WinningTrades)
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	calc := backtester.NewMetricsCalculator(252)
	trades := tradesFromReturns([]float64{0.05, -0.02, 0.01, -0.03, 0.04})

	first := calc.Calculate(trades)
	second := calc.Calculate(trades)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ across identical calls:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestEmptyAndSingleTradeInputs(t *testing.T) {
	calc := backtester.NewMetricsCalculator(252)

	empty := calc.Calculate(nil)
	if empty.TotalTrades != 0 || empty.SharpeRatio != 0 || empty.WinRate != 0 {
		t.Errorf("empty input produced non-neutral report: %+v", empty)
	}

	single := calc.Calculate(tradesFromReturns([]float64{0.02}))
	if single.SharpeRatio != 0 {
		t.Errorf("single trade Sharpe = %f, want 0 (undefined deviation)", single.SharpeRatio)
	}
	if single.WinRate != 1 {
		t.Errorf("single winning trade win rate = %f, want 1", single.WinRate)
	}
}

func TestProfitFactorEdgeCases(t *testing.T) {
	calc := backtester.NewMetricsCalculator(252)

	allWins := calc.Calculate(tradesFromReturns([]float64{0.01, 0.02, 0.03}))
	if !math.IsInf(allWins.ProfitFactor, 1) {
		t.Errorf("profit factor without losses = %f, want +Inf", allWins.ProfitFactor)
	}

	allLosses := calc.Calculate(tradesFromReturns([]float64{-0.01, -0.02}))
	if allLosses.ProfitFactor != 0 {
		t.Errorf("profit factor without wins = %f, want 0", allLosses.ProfitFactor)
	}
}

func TestMaxDrawdownKnownSequence(t *testing.T) {
	calc := backtester.NewMetricsCalculator(252)
	// Equity walks 1.0 -> 1.1 -> 0.55 -> 0.66; worst trough is half the peak.
	report := calc.Calculate(tradesFromReturns([]float64{0.1, -0.5, 0.2}))

	if math.Abs(report.MaxDrawdown-0.5) > 1e-9 {
		t.Errorf("max drawdown = %f, want 0.5", report.MaxDrawdown)
	}
}

func TestKellyFractionBounds(t *testing.T) {
	calc := backtester.NewMetricsCalculator(252)

	mixed := calc.Calculate(tradesFromReturns([]float64{0.02, -0.01, 0.02, -0.01, 0.02, -0.01}))
	if mixed.KellyFraction < 0 || mixed.KellyFraction > 1 {
		t.Errorf("Kelly fraction = %f outside [0,1]", mixed.KellyFraction)
	}

	allWins := calc.Calculate(tradesFromReturns([]float64{0.01, 0.02}))
	if allWins.KellyFraction != 1 {
		t.Errorf("Kelly fraction without losses = %f, want 1", allWins.KellyFraction)
	}

	allLosses := calc.Calculate(tradesFromReturns([]float64{-0.01, -0.02}))
	if allLosses.KellyFraction != 0 {
		t.Errorf("Kelly fraction without wins = %f, want 0", allLosses.KellyFraction)
	}
}

func TestSharpeSignMatchesMeanReturn(t *testing.T) {
	calc := backtester.NewMetricsCalculator(252)

	positive := calc.Calculate(tradesFromReturns([]float64{0.03, 0.01, -0.01, 0.02, 0.015}))
	if positive.SharpeRatio <= 0 {
		t.Errorf("Sharpe = %f for positive-mean returns, want > 0", positive.SharpeRatio)
	}

	negative := calc.Calculate(tradesFromReturns([]float64{-0.03, -0.01, 0.01, -0.02, -0.015}))
	if negative.SharpeRatio >= 0 {
		t.Errorf("Sharpe = %f for negative-mean returns, want < 0", negative.SharpeRatio)
	}
}
