// Package montecarlo estimates how trustworthy a strategy's measured
// performance is by resampling its realized trade sequence.
//
// Four schemes perturb the sequence in different ways: shuffling tests
// ordering luck, block bootstrap preserves local autocorrelation, the
// parametric bootstrap tests sensitivity to the empirical distribution's
// exact shape, and regime resampling bootstraps the win and loss subsets
// separately. The cross-method consensus keeps the minimum survival rate:
// a strategy is only trusted if it survives the least favorable resampling
// assumption.
package montecarlo

import (
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/helios-labs/strategy-validator/pkg/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Config configures the validator.
type Config struct {
	Runs      int   // simulated alternate histories per method
	Seed      int64 // base seed; per-method and per-worker offsets derive from it
	BlockSize int   // contiguous block length for the block bootstrap
	MinTrades int   // below this the result is flagged unreliable
	Workers   int   // parallel workers per method
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Runs:      1000,
		Seed:      1,
		BlockSize: 10,
		MinTrades: 20,
		Workers:   runtime.NumCPU(),
	}
}

// ConfigFrom builds a Config from the shared validation settings, filling
// zero fields with defaults.
func ConfigFrom(v types.ValidationConfig) *Config {
	c := DefaultConfig()
	if v.Runs > 0 {
		c.Runs = v.Runs
	}
	if v.Seed != 0 {
		c.Seed = v.Seed
	}
	if v.BlockSize > 0 {
		c.BlockSize = v.BlockSize
	}
	if v.MinTrades > 0 {
		c.MinTrades = v.MinTrades
	}
	if v.Workers > 0 {
		c.Workers = v.Workers
	}
	return c
}

// Validator runs the Monte Carlo robustness analysis. All randomness derives
// from the configured seed, so results are reproducible; the input trade
// sequence is never modified.
type Validator struct {
	logger *zap.Logger
	config *Config
}

// NewValidator creates a new validator.
func NewValidator(logger *zap.Logger, config *Config) *Validator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Runs < 1 {
		config.Runs = DefaultConfig().Runs
	}
	return &Validator{logger: logger, config: config}
}

// Run produces the full validation report for a closed-trade sequence. A
// sequence shorter than MinTrades yields a degenerate, explicitly flagged
// result instead of misleading confidence numbers.
func (v *Validator) Run(trades []types.Trade) *types.MonteCarloResult {
	result := &types.MonteCarloResult{TradeCount: len(trades)}

	if len(trades) < v.config.MinTrades {
		if v.logger != nil {
			v.logger.Warn("trade sequence too short for Monte Carlo inference",
				zap.Int("trades", len(trades)),
				zap.Int("min_trades", v.config.MinTrades),
			)
		}
		return result
	}

	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.Return
	}

	result.Reliable = true
	result.Methods = make([]types.MethodResult, 0, len(types.AllResamplingMethods))

	minSurvival := math.Inf(1)
	var sumSurvival float64
	for offset, method := range types.AllResamplingMethods {
		mr := v.runMethod(method, int64(offset), returns)
		result.Methods = append(result.Methods, mr)
		sumSurvival += mr.SurvivalRate
		if mr.SurvivalRate < minSurvival {
			minSurvival = mr.SurvivalRate
		}
	}

	result.Consensus = types.Consensus{
		AvgSurvival: sumSurvival / float64(len(result.Methods)),
		MinSurvival: minSurvival,
	}

	if v.logger != nil {
		v.logger.Info("Monte Carlo validation complete",
			zap.Int("trades", len(trades)),
			zap.Int("runs_per_method", v.config.Runs),
			zap.Float64("avg_survival", result.Consensus.AvgSurvival),
			zap.Float64("min_survival", result.Consensus.MinSurvival),
		)
	}

	return result
}

// runMethod simulates the configured number of alternate histories for one
// scheme. Runs are striped across workers, each with an independently seeded
// RNG; run index owns its slot in the result arrays, so the outcome is
// deterministic regardless of scheduling.
func (v *Validator) runMethod(method types.ResamplingMethod, methodOffset int64, returns []float64) types.MethodResult {
	runs := v.config.Runs
	terminal := make([]float64, runs)
	sharpes := make([]float64, runs)

	workers := v.config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > runs {
		workers = runs
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(v.config.Seed + methodOffset*100003 + int64(workerID)))
			for run := workerID; run < runs; run += workers {
				sample := v.resample(method, returns, rng)
				terminal[run] = terminalReturn(sample)
				sharpes[run] = sampleSharpe(sample)
			}
		}(w)
	}
	wg.Wait()

	survived := 0
	for _, t := range terminal {
		if t > 0 {
			survived++
		}
	}

	sorted := make([]float64, runs)
	copy(sorted, terminal)
	sort.Float64s(sorted)

	return types.MethodResult{
		Method:       method,
		Runs:         runs,
		SurvivalRate: float64(survived) / float64(runs),
		MeanReturn:   stat.Mean(terminal, nil),
		P5Return:     stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P95Return:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		MeanSharpe:   stat.Mean(sharpes, nil),
	}
}

// resample produces one simulated alternate history of the return sample.
func (v *Validator) resample(method types.ResamplingMethod, returns []float64, rng *rand.Rand) []float64 {
	switch method {
	case types.MethodShuffle:
		return shuffleResample(returns, rng)
	case types.MethodBlock:
		return blockResample(returns, v.config.BlockSize, rng)
	case types.MethodParametric:
		return parametricResample(returns, rng)
	case types.MethodRegime:
		return regimeResample(returns, rng)
	default:
		return shuffleResample(returns, rng)
	}
}

// shuffleResample permutes trade order, testing sequencing luck.
func shuffleResample(returns []float64, rng *rand.Rand) []float64 {
	out := make([]float64, len(returns))
	for i, idx := range rng.Perm(len(returns)) {
		out[i] = returns[idx]
	}
	return out
}

// blockResample draws contiguous blocks with replacement, preserving local
// autocorrelation, then truncates to the original count.
func blockResample(returns []float64, blockSize int, rng *rand.Rand) []float64 {
	n := len(returns)
	if blockSize < 1 {
		blockSize = 1
	}
	if blockSize > n {
		blockSize = n
	}

	out := make([]float64, 0, n+blockSize)
	for len(out) < n {
		start := rng.Intn(n - blockSize + 1)
		out = append(out, returns[start:start+blockSize]...)
	}
	return out[:n]
}

// parametricResample fits a normal distribution to the sample and draws
// independently from it.
func parametricResample(returns []float64, rng *rand.Rand) []float64 {
	mean := stat.Mean(returns, nil)
	std := stat.StdDev(returns, nil)
	if math.IsNaN(std) {
		std = 0
	}

	out := make([]float64, len(returns))
	for i := range out {
		out[i] = mean + std*rng.NormFloat64()
	}
	return out
}

// regimeResample bootstraps the winning and losing subsets separately,
// preserving the win rate in expectation, and interleaves the draws.
func regimeResample(returns []float64, rng *rand.Rand) []float64 {
	var wins, losses []float64
	for _, r := range returns {
		if r > 0 {
			wins = append(wins, r)
		} else {
			losses = append(losses, r)
		}
	}

	if len(wins) == 0 || len(losses) == 0 {
		// One-regime sequence degenerates to a plain bootstrap.
		out := make([]float64, len(returns))
		for i := range out {
			out[i] = returns[rng.Intn(len(returns))]
		}
		return out
	}

	winProb := float64(len(wins)) / float64(len(returns))
	out := make([]float64, len(returns))
	for i := range out {
		if rng.Float64() < winProb {
			out[i] = wins[rng.Intn(len(wins))]
		} else {
			out[i] = losses[rng.Intn(len(losses))]
		}
	}
	return out
}

// terminalReturn compounds the sample into a terminal outcome.
func terminalReturn(sample []float64) float64 {
	equity := 1.0
	for _, r := range sample {
		equity *= 1 + r
	}
	return equity - 1
}

// sampleSharpe is the annualized mean/std ratio of the simulated sample,
// defined as 0 for a zero-deviation sample.
func sampleSharpe(sample []float64) float64 {
	if len(sample) < 2 {
		return 0
	}
	mean := stat.Mean(sample, nil)
	std := stat.StdDev(sample, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(252)
}
