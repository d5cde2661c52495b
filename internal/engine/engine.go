// Package engine runs the event-driven backtest loop: per bar it asks the
// signal generator for a decision, sizes and executes orders through the
// simulator, and updates the ledger. A single run is single-threaded and
// deterministic; no step depends on future bars.
package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/cost"
	"github.com/quantforge/backcast/internal/execution"
	"github.com/quantforge/backcast/internal/portfolio"
	"github.com/quantforge/backcast/internal/stats"
)

// Engine drives one or more backtest runs with a fixed configuration.
// It holds no per-run state, so the same engine may serve parallel runs.
type Engine struct {
	cfg      Config
	cost     *cost.Model
	sim      *execution.Simulator
	closeSim *execution.Simulator
	logger   *zap.Logger
}

// New creates an engine. The configuration is validated here; an invalid
// config is rejected before any simulation step can execute.
func New(cfg Config, logger ...*zap.Logger) (*Engine, error) {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model := cost.NewModel(cfg.Cost)
	return &Engine{
		cfg:  cfg,
		cost: model,
		sim:  execution.NewSimulator(model, cfg.FillAt, l),
		// End-of-data closes always reference the final close price.
		closeSim: execution.NewSimulator(model, execution.FillAtClose, l),
		logger:   l,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// CostModel returns the single cost model shared by every fill of this
// engine's runs.
func (e *Engine) CostModel() *cost.Model {
	return e.cost
}

// Run replays the bars against the signal generator and returns the
// completed result. Bars must be in timestamp order; malformed bars are
// skipped with a warning, never fatal. Cancellation is checked between bars.
func (e *Engine) Run(ctx context.Context, bars []core.Bar, gen SignalGenerator) (*Result, error) {
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}

	ledger := portfolio.NewLedger(e.cfg.InitialCapital)
	var lastValid core.Bar
	lastValidIdx := -1

	for i := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bar := bars[i]
		if !bar.IsValid() {
			e.logger.Warn("skipping malformed bar",
				zap.String("symbol", bar.Symbol),
				zap.Time("time", bar.Time))
			continue
		}
		lastValid = bar
		lastValidIdx = i

		// DECIDE
		windowStart := maxInt(0, i-e.cfg.WindowSize+1)
		signal, err := gen.GenerateSignal(bars[windowStart : i+1])
		if err != nil {
			e.logger.Warn("signal generation failed",
				zap.Time("time", bar.Time), zap.Error(err))
			ledger.MarkToMarket(bar)
			continue
		}

		state := e.marketState(bars, i)

		switch signal.Action {
		case core.ActionBuy:
			e.handleEntry(ledger, signal, bar, state)
		case core.ActionSell:
			e.handleExit(ledger, bar, state)
		}

		// Mark-to-market at the end of every bar, independent of
		// realized trade P&L.
		ledger.MarkToMarket(bar)
	}

	e.finalize(ledger, bars, lastValidIdx)

	result := &Result{
		Symbol:      lastValid.Symbol,
		StartDate:   bars[0].Time,
		EndDate:     lastValid.Time,
		Trades:      ledger.Trades(),
		EquityCurve: ledger.EquityCurve(),
		Metrics:     stats.Compute(ledger.Trades(), ledger.EquityCurve(), e.cfg.InitialCapital),
	}
	return result, nil
}

// handleEntry sizes and executes a new position. Entries while a position is
// already open are ignored; pyramiding is out of scope.
func (e *Engine) handleEntry(ledger *portfolio.Ledger, signal core.Signal, bar core.Bar, state cost.MarketState) {
	if ledger.HasPosition(bar.Symbol) {
		return
	}

	price := bar.Close
	quantity := e.positionSize(price, signal.StopLoss)
	if quantity <= 0 {
		return
	}

	intent := core.OrderIntent{
		ID:            uuid.NewString(),
		Symbol:        bar.Symbol,
		Side:          core.SideBuy,
		Type:          core.OrderTypeMarket,
		Quantity:      quantity,
		DecisionPrice: price,
		DecisionTime:  bar.Time,
	}

	exec := e.sim.Fill(intent, state)
	if exec.IsZeroFill() {
		return
	}
	if err := ledger.Open(bar.Symbol, exec, signal.StopLoss, signal.TakeProfit); err != nil {
		e.logger.Warn("entry rejected by ledger",
			zap.String("symbol", bar.Symbol), zap.Error(err))
	}
}

// handleExit closes the existing open position for the symbol. The position
// is an explicit ledger lookup: an exit signal with no open position is a
// logged no-op, never a fabricated trade.
func (e *Engine) handleExit(ledger *portfolio.Ledger, bar core.Bar, state cost.MarketState) {
	pos, ok := ledger.Position(bar.Symbol)
	if !ok {
		e.logger.Warn("exit signal without open position",
			zap.String("symbol", bar.Symbol), zap.Time("time", bar.Time))
		return
	}

	intent := core.OrderIntent{
		ID:            uuid.NewString(),
		Symbol:        bar.Symbol,
		Side:          core.SideSell,
		Type:          core.OrderTypeMarket,
		Quantity:      pos.Quantity,
		DecisionPrice: bar.Close,
		DecisionTime:  bar.Time,
	}

	exec := e.sim.Fill(intent, state)
	if exec.IsZeroFill() {
		e.logger.Warn("exit order filled nothing, position stays open",
			zap.String("symbol", bar.Symbol))
		return
	}
	if _, err := ledger.Close(bar.Symbol, exec, core.ExitReasonSignal, e.cost); err != nil {
		e.logger.Warn("exit rejected by ledger",
			zap.String("symbol", bar.Symbol), zap.Error(err))
	}
}

// finalize force-closes any still-open position at the last valid bar's
// close price for reporting purposes. Market state is derived at that bar's
// index so trailing malformed bars cannot leak into the closing costs.
func (e *Engine) finalize(ledger *portfolio.Ledger, bars []core.Bar, lastValidIdx int) {
	if lastValidIdx < 0 {
		return
	}
	lastValid := bars[lastValidIdx]
	state := e.marketState(bars, lastValidIdx)

	for _, pos := range ledger.OpenPositions() {
		intent := core.OrderIntent{
			ID:            uuid.NewString(),
			Symbol:        pos.Symbol,
			Side:          core.SideSell,
			Type:          core.OrderTypeMarket,
			Quantity:      pos.Quantity,
			DecisionPrice: lastValid.Close,
			DecisionTime:  lastValid.Time,
		}
		exec := e.closeSim.Fill(intent, state)
		if exec.IsZeroFill() {
			continue
		}
		if _, err := ledger.Close(pos.Symbol, exec, core.ExitReasonEndOfData, e.cost); err != nil {
			e.logger.Warn("end-of-data close failed",
				zap.String("symbol", pos.Symbol), zap.Error(err))
		}
		ledger.MarkToMarket(lastValid)
	}
}

// positionSize converts the risk budget into shares: budget divided by the
// stop distance, with the distance floored to prevent division by a
// zero or near-zero stop. Cash is not a constraint; margin is assumed.
func (e *Engine) positionSize(price, stopLoss float64) float64 {
	if price <= 0 {
		return 0
	}

	distance := price * e.cfg.DefaultStopDistancePct / 100
	if stopLoss > 0 {
		distance = math.Abs(price - stopLoss)
	}
	minDistance := price * e.cfg.MinStopDistancePct / 100
	if distance < minDistance {
		distance = minDistance
	}

	budget := e.cfg.InitialCapital * e.cfg.RiskPerTrade
	quantity := budget / distance

	if e.cfg.MaxPositionPct > 0 {
		maxValue := e.cfg.InitialCapital * e.cfg.MaxPositionPct / 100
		if quantity*price > maxValue {
			quantity = maxValue / price
		}
	}

	if quantity <= 0 || math.IsInf(quantity, 0) || math.IsNaN(quantity) {
		return 0
	}
	return quantity
}

// marketState assembles the observable market context for bar i: trailing
// average volume, intrabar volatility and the time-of-session factor.
func (e *Engine) marketState(bars []core.Bar, i int) cost.MarketState {
	bar := bars[i]

	start := maxInt(0, i-e.cfg.VolumeLookback+1)
	var sumVol float64
	var n int
	for _, b := range bars[start : i+1] {
		if b.Volume > 0 {
			sumVol += b.Volume
			n++
		}
	}
	var avgVol float64
	if n > 0 {
		avgVol = sumVol / float64(n)
	}

	var volatility float64
	if bar.Close > 0 {
		volatility = bar.Range() / bar.Close
	}

	return cost.MarketState{
		Bar:           bar,
		AverageVolume: avgVol,
		Volatility:    volatility,
		SessionFactor: sessionFactor(bar.Time),
	}
}

// sessionFactor widens expected spread costs near the session open and
// close for intraday bars. Daily bars (midnight timestamps) are unaffected.
func sessionFactor(t time.Time) float64 {
	if t.Hour() == 0 && t.Minute() == 0 {
		return 1.0
	}
	switch t.Hour() {
	case 9, 15:
		return 1.25
	default:
		return 1.0
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
