// Package backtester provides the trade-lifecycle simulator and the
// performance metrics calculator.
package backtester

import (
	"github.com/google/uuid"
	"github.com/helios-labs/strategy-validator/internal/indicator"
	"github.com/helios-labs/strategy-validator/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Simulator runs the single-position state machine over a bar sequence and
// its signals, producing the closed-trade sequence.
//
// Fill conventions, fixed and test-covered:
//   - entries fill at the next bar's open after the signal bar;
//   - exits check, in priority order per bar: stop loss, take profit,
//     opposite-direction signal;
//   - when a bar's range touches both stop and target, the stop is assumed
//     to trigger first (the conservative reading of an ambiguous bar).
type Simulator struct {
	logger *zap.Logger
}

// NewSimulator creates a new trade simulator.
func NewSimulator(logger *zap.Logger) *Simulator {
	return &Simulator{logger: logger}
}

// Run produces the ordered closed-trade sequence for one parameter set.
// Entries whose signal bar has a zero or undefined volatility measure are
// skipped rather than opened with a degenerate stop distance; a position
// still open after the last bar is discarded, never fabricated into a trade.
func (s *Simulator) Run(bars []types.Bar, signals []types.Signal, ind *indicator.Set, params types.ParameterSet) []types.Trade {
	signalAt := make(map[int]types.Signal, len(signals))
	for _, sig := range signals {
		signalAt[sig.BarIndex] = sig
	}

	trades := make([]types.Trade, 0)
	var position *types.Position
	var pending *types.Signal
	skippedEntries := 0

	for i := 0; i < len(bars); i++ {
		// Fill a pending entry at this bar's open.
		if position == nil && pending != nil {
			pos, ok := s.openPosition(bars, ind, params, *pending, i)
			if ok {
				position = pos
			} else {
				skippedEntries++
			}
			pending = nil
		}

		if position != nil {
			if trade, closed := s.checkExit(bars, signalAt, params, position, i); closed {
				trades = append(trades, trade)
				position = nil
				// A reversal signal both closes the position and queues the
				// opposite entry for the next bar.
				if trade.ExitReason == types.ExitReasonSignalReversal {
					sig := signalAt[i]
					pending = &sig
				}
			}
			continue
		}

		if sig, ok := signalAt[i]; ok && sig.Direction != types.DirectionFlat {
			pending = &sig
		}
	}

	if s.logger != nil {
		s.logger.Debug("simulation complete",
			zap.Int("bars", len(bars)),
			zap.Int("trades", len(trades)),
			zap.Int("skipped_entries", skippedEntries),
		)
	}

	return trades
}

// openPosition derives the entry, stop and target for a signal. The stop
// distance is the signal bar's ATR scaled by the stop multiplier; the target
// sits at that distance times the reward ratio, on the opposite side.
func (s *Simulator) openPosition(bars []types.Bar, ind *indicator.Set, params types.ParameterSet, sig types.Signal, entryIndex int) (*types.Position, bool) {
	if !ind.ATR.Valid(sig.BarIndex) || ind.ATR[sig.BarIndex] <= 0 {
		return nil, false
	}

	entry := bars[entryIndex].Open
	if entry.IsZero() {
		return nil, false
	}

	stopDist := decimal.NewFromFloat(ind.ATR[sig.BarIndex] * params.StopMultiplier)
	targetDist := stopDist.Mul(decimal.NewFromFloat(params.RewardRatio))

	pos := &types.Position{
		Direction:  sig.Direction,
		EntryPrice: entry,
		EntryIndex: entryIndex,
		EntryTime:  bars[entryIndex].Timestamp,
		Size:       decimal.NewFromInt(1),
	}
	if sig.Direction == types.DirectionLong {
		pos.StopLoss = entry.Sub(stopDist)
		pos.TakeProfit = entry.Add(targetDist)
	} else {
		pos.StopLoss = entry.Add(stopDist)
		pos.TakeProfit = entry.Sub(targetDist)
	}
	return pos, true
}

// checkExit applies the per-bar exit priority and closes the position when
// any trigger fires. Only one exit happens per bar.
func (s *Simulator) checkExit(bars []types.Bar, signalAt map[int]types.Signal, params types.ParameterSet, pos *types.Position, i int) (types.Trade, bool) {
	bar := bars[i]

	if pos.Direction == types.DirectionLong {
		if bar.Low.LessThanOrEqual(pos.StopLoss) {
			return s.closePosition(pos, pos.StopLoss, bar, params, types.ExitReasonStopLoss), true
		}
		if bar.High.GreaterThanOrEqual(pos.TakeProfit) {
			return s.closePosition(pos, pos.TakeProfit, bar, params, types.ExitReasonTakeProfit), true
		}
	} else {
		if bar.High.GreaterThanOrEqual(pos.StopLoss) {
			return s.closePosition(pos, pos.StopLoss, bar, params, types.ExitReasonStopLoss), true
		}
		if bar.Low.LessThanOrEqual(pos.TakeProfit) {
			return s.closePosition(pos, pos.TakeProfit, bar, params, types.ExitReasonTakeProfit), true
		}
	}

	if sig, ok := signalAt[i]; ok && isOpposite(pos.Direction, sig.Direction) {
		return s.closePosition(pos, bar.Close, bar, params, types.ExitReasonSignalReversal), true
	}

	return types.Trade{}, false
}

// closePosition realizes the trade, subtracting the per-trade transaction
// cost (spread and slippage as a fraction of entry price) from the return.
func (s *Simulator) closePosition(pos *types.Position, exitPrice decimal.Decimal, bar types.Bar, params types.ParameterSet, reason types.ExitReason) types.Trade {
	move := exitPrice.Sub(pos.EntryPrice)
	if pos.Direction == types.DirectionShort {
		move = move.Neg()
	}

	cost := pos.EntryPrice.Mul(decimal.NewFromFloat(params.CostRate))
	pnl := move.Sub(cost).Mul(pos.Size)

	grossReturn := move.Div(pos.EntryPrice).InexactFloat64()

	return types.Trade{
		ID:         uuid.New().String(),
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  pos.EntryTime,
		ExitTime:   bar.Timestamp,
		PnL:        pnl,
		Return:     grossReturn - params.CostRate,
		ExitReason: reason,
	}
}

func isOpposite(a, b types.Direction) bool {
	return (a == types.DirectionLong && b == types.DirectionShort) ||
		(a == types.DirectionShort && b == types.DirectionLong)
}
