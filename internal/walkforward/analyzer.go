// Package walkforward drives repeated in-sample parameter optimization
// followed by out-of-sample validation across rolling windows, to detect
// overfitting. The backtest engine is consumed as a black box; every window
// and trial owns isolated run state, so trials run in parallel.
package walkforward

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/engine"
)

// ParamSet is one candidate parameter combination for the signal generator.
type ParamSet map[string]float64

// GeneratorFactory builds a signal generator from a parameter set. Each call
// must return a fresh, independent generator.
type GeneratorFactory func(params ParamSet) engine.SignalGenerator

// Config holds walk-forward analysis parameters.
type Config struct {
	// InSampleBars and OutOfSampleBars are the window lengths in bars.
	InSampleBars    int `json:"in_sample_bars" mapstructure:"in_sample_bars"`
	OutOfSampleBars int `json:"out_of_sample_bars" mapstructure:"out_of_sample_bars"`
	// StepBars is how far the window slides each iteration.
	StepBars int `json:"step_bars" mapstructure:"step_bars"`
	// ParamGrid is the search space evaluated on each in-sample slice.
	ParamGrid []ParamSet `json:"param_grid" mapstructure:"param_grid"`
	// ComplexityPenalty is subtracted from the objective per parameter,
	// discouraging overfit parameter-heavy candidates.
	ComplexityPenalty float64 `json:"complexity_penalty" mapstructure:"complexity_penalty"`
	// Workers bounds the parallel in-sample trials. Zero means one.
	Workers int `json:"workers" mapstructure:"workers"`
	// Timeout aborts the batch and returns partial aggregated results.
	// Zero disables the timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Validate checks the analysis configuration, collecting every violation.
func (c Config) Validate() error {
	verr := &core.ValidationError{}
	if c.InSampleBars < 1 {
		verr.Addf("in_sample_bars must be at least 1, got %d", c.InSampleBars)
	}
	if c.OutOfSampleBars < 1 {
		verr.Addf("out_of_sample_bars must be at least 1, got %d", c.OutOfSampleBars)
	}
	if c.StepBars < 1 {
		verr.Addf("step_bars must be at least 1, got %d", c.StepBars)
	}
	if len(c.ParamGrid) == 0 {
		verr.Addf("param_grid must contain at least one parameter set")
	}
	if c.ComplexityPenalty < 0 {
		verr.Addf("complexity_penalty cannot be negative, got %f", c.ComplexityPenalty)
	}
	if c.Workers < 0 {
		verr.Addf("workers cannot be negative, got %d", c.Workers)
	}
	return verr.Err()
}

// Window is one completed walk-forward iteration.
type Window struct {
	Index             int            `json:"index"`
	InSampleStart     time.Time      `json:"in_sample_start"`
	InSampleEnd       time.Time      `json:"in_sample_end"`
	OutOfSampleStart  time.Time      `json:"out_of_sample_start"`
	OutOfSampleEnd    time.Time      `json:"out_of_sample_end"`
	OptimalParams     ParamSet       `json:"optimal_params"`
	InSampleResult    *engine.Result `json:"in_sample_result"`
	OutOfSampleResult *engine.Result `json:"out_of_sample_result"`
}

// Result aggregates all windows plus the robustness verdict.
type Result struct {
	Windows []Window `json:"windows"`
	// OverfittingIndicator is mean in-sample return minus mean
	// out-of-sample return, as a fraction.
	OverfittingIndicator float64 `json:"overfitting_indicator"`
	// ParameterStabilityRate is the fraction of successive windows whose
	// optimal parameters vary by less than 20%.
	ParameterStabilityRate float64 `json:"parameter_stability_rate"`
	Robust                 bool    `json:"robust"`
	// Partial is true when a timeout or cancellation aborted remaining
	// windows; the aggregates cover the completed ones.
	Partial bool `json:"partial"`
}

// Robustness thresholds: a strategy is reported robust only when the
// overfitting indicator stays below 5% and parameters are stable across
// more than 70% of successive windows.
const (
	overfitThreshold   = 0.05
	stabilityThreshold = 0.7
	// stabilityTolerance is the maximum relative parameter change still
	// considered stable.
	stabilityTolerance = 0.20
)

// Analyzer runs walk-forward analysis on top of a configured engine.
type Analyzer struct {
	engine  *engine.Engine
	factory GeneratorFactory
	logger  *zap.Logger
}

// New creates an analyzer.
func New(eng *engine.Engine, factory GeneratorFactory, logger ...*zap.Logger) *Analyzer {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Analyzer{engine: eng, factory: factory, logger: l}
}

// Analyze slides in-sample/out-of-sample windows across the bars. Per
// window it searches the parameter grid on the in-sample slice, then runs
// the winning parameters once on the out-of-sample slice with no further
// tuning. Failed windows are excluded from the aggregates and logged.
func (a *Analyzer) Analyze(ctx context.Context, bars []core.Bar, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bars) < cfg.InSampleBars+cfg.OutOfSampleBars {
		return nil, core.WrapError(core.ErrInsufficientData, nil)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result := &Result{}
	index := 0
	for start := 0; start+cfg.InSampleBars+cfg.OutOfSampleBars <= len(bars); start += cfg.StepBars {
		select {
		case <-ctx.Done():
			result.Partial = true
			a.logger.Warn("walk-forward aborted, returning partial results",
				zap.Int("completed_windows", len(result.Windows)))
			a.aggregate(result)
			return result, nil
		default:
		}

		inSample := bars[start : start+cfg.InSampleBars]
		outOfSample := bars[start+cfg.InSampleBars : start+cfg.InSampleBars+cfg.OutOfSampleBars]

		best, inResult, ok := a.search(ctx, inSample, cfg)
		if !ok {
			a.logger.Warn("no viable parameter set for window, skipping",
				zap.Int("window", index))
			index++
			continue
		}

		outResult, err := a.engine.Run(ctx, outOfSample, a.factory(best))
		if err != nil {
			a.logger.Warn("out-of-sample run failed, window excluded",
				zap.Int("window", index), zap.Error(err))
			index++
			continue
		}

		result.Windows = append(result.Windows, Window{
			Index:             index,
			InSampleStart:     inSample[0].Time,
			InSampleEnd:       inSample[len(inSample)-1].Time,
			OutOfSampleStart:  outOfSample[0].Time,
			OutOfSampleEnd:    outOfSample[len(outOfSample)-1].Time,
			OptimalParams:     best,
			InSampleResult:    inResult,
			OutOfSampleResult: outResult,
		})
		index++
	}

	a.aggregate(result)
	return result, nil
}

type trialOutcome struct {
	gridIndex int
	params    ParamSet
	result    *engine.Result
	objective float64
}

// search evaluates the parameter grid on the in-sample slice across a
// bounded worker pool and returns the best candidate. The winner is
// deterministic: highest objective, earliest grid position on ties.
func (a *Analyzer) search(ctx context.Context, inSample []core.Bar, cfg Config) (ParamSet, *engine.Result, bool) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	outcomes := make([]*trialOutcome, len(cfg.ParamGrid))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				params := cfg.ParamGrid[i]
				res, err := a.engine.Run(ctx, inSample, a.factory(params))
				if err != nil {
					a.logger.Warn("in-sample trial failed",
						zap.Int("grid_index", i), zap.Error(err))
					continue
				}
				if len(res.Trades) == 0 {
					a.logger.Debug("in-sample trial produced no trades",
						zap.Int("grid_index", i))
					continue
				}
				outcomes[i] = &trialOutcome{
					gridIndex: i,
					params:    params,
					result:    res,
					objective: a.objective(res, params, cfg),
				}
			}
		}()
	}

feed:
	for i := range cfg.ParamGrid {
		if ctx.Err() != nil {
			break feed
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	var best *trialOutcome
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if best == nil || o.objective > best.objective {
			best = o
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best.params, best.result, true
}

// objective is the in-sample selection criterion: a risk-adjusted metric
// minus a complexity penalty proportional to parameter count.
func (a *Analyzer) objective(res *engine.Result, params ParamSet, cfg Config) float64 {
	return res.Metrics.SharpeRatio - cfg.ComplexityPenalty*float64(len(params))
}

// aggregate computes the overfitting indicator, the parameter stability
// rate, and the robustness verdict over the completed windows.
func (a *Analyzer) aggregate(result *Result) {
	if len(result.Windows) == 0 {
		return
	}

	var inSum, outSum float64
	for _, w := range result.Windows {
		inSum += w.InSampleResult.Metrics.TotalReturn / 100
		outSum += w.OutOfSampleResult.Metrics.TotalReturn / 100
	}
	n := float64(len(result.Windows))
	result.OverfittingIndicator = inSum/n - outSum/n

	result.ParameterStabilityRate = stabilityRate(result.Windows)
	result.Robust = result.OverfittingIndicator < overfitThreshold &&
		result.ParameterStabilityRate > stabilityThreshold
}

// stabilityRate returns the fraction of successive window pairs whose
// optimal parameter sets changed by less than the tolerance. A single
// window is fully stable by definition.
func stabilityRate(windows []Window) float64 {
	if len(windows) < 2 {
		return 1.0
	}

	var stable int
	for i := 1; i < len(windows); i++ {
		if paramsWithin(windows[i-1].OptimalParams, windows[i].OptimalParams, stabilityTolerance) {
			stable++
		}
	}
	return float64(stable) / float64(len(windows)-1)
}

// paramsWithin reports whether every shared parameter changed by less than
// tol relative to the previous value.
func paramsWithin(prev, next ParamSet, tol float64) bool {
	for key, pv := range prev {
		nv, ok := next[key]
		if !ok {
			return false
		}
		base := math.Abs(pv)
		if base == 0 {
			if nv != 0 {
				return false
			}
			continue
		}
		if math.Abs(nv-pv)/base >= tol {
			return false
		}
	}
	return true
}
