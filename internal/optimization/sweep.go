// Package optimization runs the parameter search: every candidate set from
// the search grid goes through the full evaluation pipeline in parallel, one
// candidate's failure never aborts the sweep, and survivors are gated and
// ranked by a composite robustness score.
package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/helios-labs/strategy-validator/internal/backtester"
	"github.com/helios-labs/strategy-validator/internal/indicator"
	"github.com/helios-labs/strategy-validator/internal/montecarlo"
	"github.com/helios-labs/strategy-validator/internal/strategy"
	"github.com/helios-labs/strategy-validator/internal/workers"
	"github.com/helios-labs/strategy-validator/pkg/types"
	"go.uber.org/zap"
)

// EvaluationStatus classifies the outcome of one candidate evaluation.
type EvaluationStatus string

const (
	StatusPassed EvaluationStatus = "passed"
	StatusGated  EvaluationStatus = "gated"
	StatusFailed EvaluationStatus = "failed"
)

// FailureKind classifies why a failed evaluation failed.
type FailureKind string

const (
	FailureData       FailureKind = "data"
	FailureSimulation FailureKind = "simulation"
	FailureCanceled   FailureKind = "canceled"
)

// Gate names for gated records.
const (
	GateMinTrades   = "min_trades"
	GateReliability = "reliability"
	GateMinSurvival = "min_survival"
)

// Record is the per-candidate evaluation outcome. Failed and gated records
// stay in the report with their reason; only passed records carry a rank.
type Record struct {
	RunID       string                  `json:"runId"`
	Params      types.ParameterSet      `json:"params"`
	Key         string                  `json:"key"`
	Status      EvaluationStatus        `json:"status"`
	FailureKind FailureKind             `json:"failureKind,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Gate        string                  `json:"gate,omitempty"`
	Metrics     *types.MetricsReport    `json:"metrics,omitempty"`
	Validation  *types.MonteCarloResult `json:"validation,omitempty"`
	Score       float64                 `json:"score"`
	Rank        int                     `json:"rank,omitempty"`
}

// Result is the full sweep report.
type Result struct {
	SweepID    string        `json:"sweepId"`
	Candidates int           `json:"candidates"`
	Passed     int           `json:"passed"`
	Gated      int           `json:"gated"`
	Failed     int           `json:"failed"`
	Records    []Record      `json:"records"`
	Best       *Record       `json:"best,omitempty"`
	Duration   time.Duration `json:"duration"`
	PoolStats  workers.Stats `json:"poolStats"`
}

// Controller coordinates a parameter sweep. Candidate evaluations run on a
// worker pool; each writes only its own pre-allocated record slot, so no
// locking is needed and the report order matches the grid order.
type Controller struct {
	logger  *zap.Logger
	config  *types.SweepConfig
	metrics *Metrics

	engine    *indicator.Engine
	generator *strategy.Generator
	simulator *backtester.Simulator

	// Progress, when set, is called after every finished evaluation.
	Progress func(done, total int)
}

// NewController creates a sweep controller. A nil metrics disables counter
// updates without branching at every call site in tests.
func NewController(logger *zap.Logger, config *types.SweepConfig, metrics *Metrics) *Controller {
	return &Controller{
		logger:    logger,
		config:    config,
		metrics:   metrics,
		engine:    indicator.NewEngine(logger),
		generator: strategy.NewGenerator(logger),
		simulator: backtester.NewSimulator(logger),
	}
}

// Run evaluates every candidate in the search space against the bar
// sequence. Cancellation is honored between evaluations: candidates not yet
// submitted when the context is canceled are recorded as canceled, while
// in-flight evaluations run to completion.
func (c *Controller) Run(ctx context.Context, bars []types.Bar) (*Result, error) {
	start := time.Now()
	candidates := ExpandSpace(c.config.Space, c.config.Seed)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("search space expanded to zero valid candidates")
	}

	if c.logger != nil {
		c.logger.Info("starting parameter sweep",
			zap.Int("candidates", len(candidates)),
			zap.Int64("seed", c.config.Seed),
			zap.String("timeframe", string(c.config.Timeframe)),
		)
	}

	poolCfg := workers.DefaultConfig("sweep")
	if c.config.Workers > 0 {
		poolCfg.NumWorkers = c.config.Workers
	}
	pool := workers.NewPool(c.logger, poolCfg)
	pool.Start()

	records := make([]Record, len(candidates))
	var done atomic.Int64

	canceledFrom := len(candidates)
	for i, params := range candidates {
		select {
		case <-ctx.Done():
			canceledFrom = i
		default:
		}
		if i >= canceledFrom {
			records[i] = Record{
				RunID:       uuid.New().String(),
				Params:      params,
				Key:         params.Key(),
				Status:      StatusFailed,
				FailureKind: FailureCanceled,
				Error:       ctx.Err().Error(),
			}
			continue
		}

		i, params := i, params
		if err := pool.SubmitFunc(func() error {
			records[i] = c.evaluate(bars, params, i)
			if c.Progress != nil {
				c.Progress(int(done.Add(1)), len(candidates))
			}
			return nil
		}); err != nil {
			records[i] = Record{
				RunID:       uuid.New().String(),
				Params:      params,
				Key:         params.Key(),
				Status:      StatusFailed,
				FailureKind: FailureCanceled,
				Error:       err.Error(),
			}
		}
	}

	if err := pool.Stop(); err != nil && c.logger != nil {
		c.logger.Warn("sweep pool did not stop cleanly", zap.Error(err))
	}

	result := &Result{
		SweepID:    uuid.New().String(),
		Candidates: len(candidates),
		Records:    records,
		Duration:   time.Since(start),
		PoolStats:  pool.Stats(),
	}
	c.rank(result)

	if c.logger != nil {
		c.logger.Info("parameter sweep complete",
			zap.Int("candidates", result.Candidates),
			zap.Int("passed", result.Passed),
			zap.Int("gated", result.Gated),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", result.Duration),
		)
	}

	if canceledFrom < len(candidates) {
		return result, ctx.Err()
	}
	return result, nil
}

// evaluate runs the full pipeline for one candidate. Every return path
// produces a complete record; nothing here is allowed to abort the sweep.
func (c *Controller) evaluate(bars []types.Bar, params types.ParameterSet, idx int) (rec Record) {
	evalStart := time.Now()
	rec = Record{
		RunID:  uuid.New().String(),
		Params: params,
		Key:    params.Key(),
	}

	defer func() {
		if r := recover(); r != nil {
			rec.Status = StatusFailed
			rec.FailureKind = FailureSimulation
			rec.Error = fmt.Sprintf("panic: %v", r)
			c.countFailure(FailureSimulation)
		}
		if c.metrics != nil {
			c.metrics.EvaluationsTotal.Inc()
			c.metrics.EvaluationSeconds.Observe(time.Since(evalStart).Seconds())
		}
	}()

	ind, err := c.engine.Compute(bars, params)
	if err != nil {
		rec.Status = StatusFailed
		rec.FailureKind = FailureData
		rec.Error = err.Error()
		c.countFailure(FailureData)
		return rec
	}

	signals := c.generator.Generate(bars, ind, params)
	trades := c.simulator.Run(bars, signals, ind, params)
	rec.Metrics = backtester.NewMetricsCalculator(c.config.Timeframe.PeriodsPerYear()).Calculate(trades)

	if rec.Metrics.TotalTrades < c.config.MinTrades {
		rec.Status = StatusGated
		rec.Gate = GateMinTrades
		c.countGate(GateMinTrades)
		return rec
	}

	vcfg := montecarlo.ConfigFrom(c.config.Validation)
	// Per-candidate seed offset keeps runs independent yet reproducible.
	vcfg.Seed += int64(idx) * 1009
	rec.Validation = montecarlo.NewValidator(c.logger, vcfg).Run(trades)

	if !rec.Validation.Reliable {
		rec.Status = StatusGated
		rec.Gate = GateReliability
		c.countGate(GateReliability)
		return rec
	}
	if rec.Validation.Consensus.MinSurvival < c.config.MinSurvival {
		rec.Status = StatusGated
		rec.Gate = GateMinSurvival
		c.countGate(GateMinSurvival)
		return rec
	}

	rec.Status = StatusPassed
	rec.Score = c.score(rec.Metrics, rec.Validation)
	return rec
}

// score blends win rate, trade frequency, risk-adjusted return and
// worst-case Monte Carlo survival into a single [0,1] ranking value. The
// frequency and Sharpe terms are squashed so no single component can
// dominate the blend.
func (c *Controller) score(report *types.MetricsReport, mc *types.MonteCarloResult) float64 {
	wWin, wFreq, wSharpe, wSurv := c.config.WinRateWeight, c.config.FrequencyWeight, c.config.SharpeWeight, c.config.SurvivalWeight
	total := wWin + wFreq + wSharpe + wSurv
	if total <= 0 {
		wWin, wFreq, wSharpe, wSurv = 0.25, 0.25, 0.25, 0.25
		total = 1
	}

	freq := float64(report.TotalTrades) / (float64(report.TotalTrades) + 100)
	sharpe := (report.SharpeRatio/(1+math.Abs(report.SharpeRatio)) + 1) / 2

	return (wWin*report.WinRate + wFreq*freq + wSharpe*sharpe + wSurv*mc.Consensus.MinSurvival) / total
}

// rank assigns dense ranks to passed records by descending score, breaking
// ties by key so the ordering is stable across runs.
func (c *Controller) rank(result *Result) {
	passed := make([]*Record, 0, len(result.Records))
	for i := range result.Records {
		rec := &result.Records[i]
		switch rec.Status {
		case StatusPassed:
			result.Passed++
			passed = append(passed, rec)
		case StatusGated:
			result.Gated++
		case StatusFailed:
			result.Failed++
		}
	}

	sort.Slice(passed, func(i, j int) bool {
		if passed[i].Score != passed[j].Score {
			return passed[i].Score > passed[j].Score
		}
		return passed[i].Key < passed[j].Key
	})
	for i, rec := range passed {
		rec.Rank = i + 1
	}
	if len(passed) > 0 {
		best := *passed[0]
		result.Best = &best
	}
}

func (c *Controller) countFailure(kind FailureKind) {
	if c.metrics != nil {
		c.metrics.FailuresTotal.WithLabelValues(string(kind)).Inc()
	}
}

func (c *Controller) countGate(gate string) {
	if c.metrics != nil {
		c.metrics.GateRejectionsTotal.WithLabelValues(gate).Inc()
	}
}
