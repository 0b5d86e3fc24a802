// Package types provides configuration types for the strategy validator.
package types

import "fmt"

// ParameterSet is one fully specified strategy configuration under test.
// It is a value object: the pipeline treats caller-supplied sets as
// immutable and never writes back into them. Key() makes it usable as a
// map key and as the report key of a sweep.
type ParameterSet struct {
	// Indicator periods.
	FastPeriod int `json:"fastPeriod" mapstructure:"fast_period"`
	SlowPeriod int `json:"slowPeriod" mapstructure:"slow_period"`
	ATRPeriod  int `json:"atrPeriod" mapstructure:"atr_period"`
	ADXPeriod  int `json:"adxPeriod" mapstructure:"adx_period"`
	RSIPeriod  int `json:"rsiPeriod" mapstructure:"rsi_period"`

	// Exit geometry. Stop distance = ATR * StopMultiplier; target distance =
	// stop distance * RewardRatio.
	StopMultiplier float64 `json:"stopMultiplier" mapstructure:"stop_multiplier"`
	RewardRatio    float64 `json:"rewardRatio" mapstructure:"reward_ratio"`

	// Qualifying filters. A zero threshold disables the filter.
	VolatilityFloorPct float64 `json:"volatilityFloorPct" mapstructure:"volatility_floor_pct"` // ATR percentile in [0,1)
	TrendFloor         float64 `json:"trendFloor" mapstructure:"trend_floor"`                  // minimum ADX
	VolumeMultiplier   float64 `json:"volumeMultiplier" mapstructure:"volume_multiplier"`      // vs rolling average
	SessionStartHour   int     `json:"sessionStartHour" mapstructure:"session_start_hour"`
	SessionEndHour     int     `json:"sessionEndHour" mapstructure:"session_end_hour"` // 0,0 disables the window

	// Per-trade transaction cost as a fraction of entry price.
	CostRate float64 `json:"costRate" mapstructure:"cost_rate"`
}

// DefaultParameterSet returns a reasonable starting configuration.
func DefaultParameterSet() ParameterSet {
	return ParameterSet{
		FastPeriod:     9,
		SlowPeriod:     21,
		ATRPeriod:      14,
		ADXPeriod:      14,
		RSIPeriod:      14,
		StopMultiplier: 2.0,
		RewardRatio:    2.0,
		CostRate:       0.0005,
	}
}

// Key returns a stable string identity for the set, used as the sweep
// report key.
func (p ParameterSet) Key() string {
	return fmt.Sprintf("f%d_s%d_atr%d_adx%d_rsi%d_sl%.2f_rr%.2f_vf%.2f_tf%.1f_vm%.2f_h%d-%d_c%.4f",
		p.FastPeriod, p.SlowPeriod, p.ATRPeriod, p.ADXPeriod, p.RSIPeriod,
		p.StopMultiplier, p.RewardRatio,
		p.VolatilityFloorPct, p.TrendFloor, p.VolumeMultiplier,
		p.SessionStartHour, p.SessionEndHour, p.CostRate)
}

// Validate checks structural soundness of the set. Invalid sets are
// rejected before the pipeline runs rather than failing mid-sweep.
func (p ParameterSet) Validate() error {
	if p.FastPeriod <= 0 || p.SlowPeriod <= 0 {
		return fmt.Errorf("moving average periods must be positive, got fast=%d slow=%d", p.FastPeriod, p.SlowPeriod)
	}
	if p.FastPeriod >= p.SlowPeriod {
		return fmt.Errorf("fast period %d must be shorter than slow period %d", p.FastPeriod, p.SlowPeriod)
	}
	if p.ATRPeriod <= 0 || p.ADXPeriod <= 0 || p.RSIPeriod <= 0 {
		return fmt.Errorf("oscillator periods must be positive")
	}
	if p.StopMultiplier <= 0 || p.RewardRatio <= 0 {
		return fmt.Errorf("stop multiplier and reward ratio must be positive")
	}
	if p.VolatilityFloorPct < 0 || p.VolatilityFloorPct >= 1 {
		return fmt.Errorf("volatility floor percentile must be in [0,1), got %f", p.VolatilityFloorPct)
	}
	if p.SessionStartHour < 0 || p.SessionStartHour > 23 || p.SessionEndHour < 0 || p.SessionEndHour > 24 {
		return fmt.Errorf("session hours out of range: %d-%d", p.SessionStartHour, p.SessionEndHour)
	}
	if p.CostRate < 0 {
		return fmt.Errorf("cost rate must be non-negative, got %f", p.CostRate)
	}
	return nil
}

// SessionWindowEnabled reports whether the session-time filter is active.
func (p ParameterSet) SessionWindowEnabled() bool {
	return !(p.SessionStartHour == 0 && p.SessionEndHour == 0)
}

// ValidationConfig configures the Monte Carlo validator.
type ValidationConfig struct {
	Runs      int   `json:"runs" mapstructure:"runs"`
	Seed      int64 `json:"seed" mapstructure:"seed"`
	BlockSize int   `json:"blockSize" mapstructure:"block_size"`
	MinTrades int   `json:"minTrades" mapstructure:"min_trades"`
	Workers   int   `json:"workers" mapstructure:"workers"`
}

// SearchSpace describes the Cartesian grid of candidate parameter values for
// a sweep. Empty slices fall back to the corresponding default knob value.
type SearchSpace struct {
	FastPeriods     []int     `json:"fastPeriods" mapstructure:"fast_periods"`
	SlowPeriods     []int     `json:"slowPeriods" mapstructure:"slow_periods"`
	ATRPeriods      []int     `json:"atrPeriods" mapstructure:"atr_periods"`
	StopMultipliers []float64 `json:"stopMultipliers" mapstructure:"stop_multipliers"`
	RewardRatios    []float64 `json:"rewardRatios" mapstructure:"reward_ratios"`
	TrendFloors     []float64 `json:"trendFloors" mapstructure:"trend_floors"`
	VolumeMults     []float64 `json:"volumeMults" mapstructure:"volume_mults"`

	// Base supplies every knob the grid does not vary.
	Base ParameterSet `json:"base" mapstructure:"base"`

	// MaxCandidates caps the expanded grid; when exceeded, a seeded random
	// subsample of this size is evaluated instead of the full product.
	MaxCandidates int `json:"maxCandidates" mapstructure:"max_candidates"`
}

// SweepConfig is the input to the parameter search controller.
type SweepConfig struct {
	Space      SearchSpace      `json:"space" mapstructure:"space"`
	Timeframe  Timeframe        `json:"timeframe" mapstructure:"timeframe"`
	Validation ValidationConfig `json:"validation" mapstructure:"validation"`

	// Gates applied before ranking.
	MinTrades   int     `json:"minTrades" mapstructure:"min_trades"`
	MinSurvival float64 `json:"minSurvival" mapstructure:"min_survival"`

	// Composite score weights.
	WinRateWeight   float64 `json:"winRateWeight" mapstructure:"win_rate_weight"`
	FrequencyWeight float64 `json:"frequencyWeight" mapstructure:"frequency_weight"`
	SharpeWeight    float64 `json:"sharpeWeight" mapstructure:"sharpe_weight"`
	SurvivalWeight  float64 `json:"survivalWeight" mapstructure:"survival_weight"`

	Workers int   `json:"workers" mapstructure:"workers"`
	Seed    int64 `json:"seed" mapstructure:"seed"`
}
