// Package montecarlo estimates the distribution of possible strategy
// outcomes by bootstrap-resampling the closed-trade list of a completed
// backtest. Randomness is never ambient: every trial derives its stream
// from an explicit seed, so results reproduce exactly.
package montecarlo

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantforge/backcast/internal/core"
)

// Config holds Monte Carlo simulation parameters.
type Config struct {
	// Simulations is the number of resampling trials.
	Simulations int `json:"simulations" mapstructure:"simulations"`
	// InitialCapital seeds each synthetic equity curve.
	InitialCapital float64 `json:"initial_capital" mapstructure:"initial_capital"`
	// RuinThreshold is the max-drawdown fraction counted as ruin.
	RuinThreshold float64 `json:"ruin_threshold" mapstructure:"ruin_threshold"`
	// Seed anchors the per-trial random streams.
	Seed int64 `json:"seed" mapstructure:"seed"`
	// Bootstrap draws trades with replacement. When false each trial
	// replays the historical sequence unchanged, which degenerates to the
	// original backtest statistics.
	Bootstrap bool `json:"bootstrap" mapstructure:"bootstrap"`
	// Workers bounds the parallel trials. Zero means one.
	Workers int `json:"workers" mapstructure:"workers"`
	// Timeout aborts the batch and aggregates the completed trials.
	// Zero disables the timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns a Monte Carlo configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Simulations:    1000,
		InitialCapital: 100_000,
		RuinThreshold:  0.5,
		Bootstrap:      true,
		Workers:        4,
	}
}

// Validate checks the simulation configuration, collecting every violation.
func (c Config) Validate() error {
	verr := &core.ValidationError{}
	if c.Simulations < 1 {
		verr.Addf("simulations must be at least 1, got %d", c.Simulations)
	}
	if c.InitialCapital <= 0 {
		verr.Addf("initial_capital must be positive, got %f", c.InitialCapital)
	}
	if c.RuinThreshold <= 0 || c.RuinThreshold > 1 {
		verr.Addf("ruin_threshold must be in (0,1], got %f", c.RuinThreshold)
	}
	if c.Workers < 0 {
		verr.Addf("workers cannot be negative, got %d", c.Workers)
	}
	return verr.Err()
}

// Percentiles holds the distribution cut points reported per metric.
type Percentiles struct {
	P5  float64 `json:"p5"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
}

// Result aggregates the outcome distribution across all completed trials.
type Result struct {
	Simulations int `json:"simulations"`
	// Return is the total-return distribution as fractions.
	Return Percentiles `json:"return"`
	// Drawdown is the max-drawdown distribution as fractions.
	Drawdown            Percentiles `json:"drawdown"`
	ProbabilityOfProfit float64     `json:"probability_of_profit"`
	ProbabilityOfRuin   float64     `json:"probability_of_ruin"`
	// Partial is true when a timeout or cancellation aborted remaining
	// trials; the aggregates cover the completed ones.
	Partial bool `json:"partial"`
}

// Simulator runs bootstrap resampling over closed trades.
type Simulator struct {
	logger *zap.Logger
}

// New creates a simulator.
func New(logger ...*zap.Logger) *Simulator {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Simulator{logger: l}
}

type trialOutcome struct {
	totalReturn float64
	maxDrawdown float64
}

// Run draws len(trades) trades with replacement per trial, rebuilds a
// synthetic equity curve from initial capital, and aggregates the return
// and drawdown distributions. Trials are independent and run on a bounded
// worker pool; cancellation between trials yields partial aggregates.
func (s *Simulator) Run(ctx context.Context, trades []core.Trade, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, core.ErrNoTrades
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.PnL
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var mu sync.Mutex
	outcomes := make([]trialOutcome, 0, cfg.Simulations)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trial := range jobs {
				outcome := runTrial(pnls, cfg, trial)
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}
		}()
	}

	partial := false
feed:
	for trial := 0; trial < cfg.Simulations; trial++ {
		// ctx.Err is checked first so a cancelled context never feeds
		// another trial, even when a worker is ready to receive.
		if ctx.Err() != nil {
			partial = true
		} else {
			select {
			case <-ctx.Done():
				partial = true
			case jobs <- trial:
			}
		}
		if partial {
			s.logger.Warn("monte carlo aborted, aggregating partial trials",
				zap.Int("fed", trial), zap.Int("requested", cfg.Simulations))
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if len(outcomes) == 0 {
		return nil, core.WrapError(core.ErrBatchAborted, ctx.Err())
	}
	return aggregate(outcomes, cfg, partial), nil
}

// runTrial replays one resampled P&L sequence. The random stream is derived
// from the seed and trial index, so the outcome does not depend on worker
// scheduling.
func runTrial(pnls []float64, cfg Config, trial int) trialOutcome {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(trial)))

	equity := cfg.InitialCapital
	peak := equity
	var maxDD float64

	for i := range pnls {
		pnl := pnls[i]
		if cfg.Bootstrap {
			pnl = pnls[rng.Intn(len(pnls))]
		}
		equity += pnl
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return trialOutcome{
		totalReturn: (equity - cfg.InitialCapital) / cfg.InitialCapital,
		maxDrawdown: maxDD,
	}
}

func aggregate(outcomes []trialOutcome, cfg Config, partial bool) *Result {
	returns := make([]float64, len(outcomes))
	drawdowns := make([]float64, len(outcomes))
	var profitable, ruined int
	for i, o := range outcomes {
		returns[i] = o.totalReturn
		drawdowns[i] = o.maxDrawdown
		if o.totalReturn > 0 {
			profitable++
		}
		if o.maxDrawdown > cfg.RuinThreshold {
			ruined++
		}
	}
	sort.Float64s(returns)
	sort.Float64s(drawdowns)

	n := float64(len(outcomes))
	return &Result{
		Simulations:         len(outcomes),
		Return:              percentiles(returns),
		Drawdown:            percentiles(drawdowns),
		ProbabilityOfProfit: float64(profitable) / n,
		ProbabilityOfRuin:   float64(ruined) / n,
		Partial:             partial,
	}
}

func percentiles(sorted []float64) Percentiles {
	return Percentiles{
		P5:  percentile(sorted, 5),
		P25: percentile(sorted, 25),
		P50: percentile(sorted, 50),
		P75: percentile(sorted, 75),
		P95: percentile(sorted, 95),
	}
}

// percentile interpolates linearly between the two nearest ranks of an
// already sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
