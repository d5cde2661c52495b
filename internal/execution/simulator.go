// Package execution simulates order fills against historical bars.
package execution

import (
	"go.uber.org/zap"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/cost"
)

// FillReference selects which bar price a market order fills against.
type FillReference string

const (
	// FillAtOpen fills market orders at the bar open.
	FillAtOpen FillReference = "open"
	// FillAtClose fills market orders at the bar close.
	FillAtClose FillReference = "close"
)

// Simulator turns an order intent, a market bar and the cost model into an
// execution. It holds no mutable state and is safe to share across
// independent runs.
type Simulator struct {
	cost   *cost.Model
	fillAt FillReference
	logger *zap.Logger
}

// NewSimulator creates a fill simulator backed by the given cost model.
func NewSimulator(model *cost.Model, fillAt FillReference, logger ...*zap.Logger) *Simulator {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	if fillAt != FillAtOpen && fillAt != FillAtClose {
		fillAt = FillAtClose
	}
	return &Simulator{cost: model, fillAt: fillAt, logger: l}
}

// Fill simulates the execution of an order intent against the bar carried in
// the market state. A zero quantity or an unusable bar yields a zero-fill
// execution rather than an error, so the engine loop can continue.
func (s *Simulator) Fill(intent core.OrderIntent, state cost.MarketState) core.Execution {
	exec := core.Execution{
		OrderID: intent.ID,
		Time:    state.Bar.Time,
	}

	if intent.Quantity <= 0 || !state.Bar.IsValid() {
		s.logger.Warn("zero-fill execution",
			zap.String("order_id", intent.ID),
			zap.String("symbol", intent.Symbol),
			zap.Float64("quantity", intent.Quantity))
		return exec
	}

	switch intent.Type {
	case core.OrderTypeLimit:
		return s.fillLimit(intent, state)
	default:
		return s.fillMarket(intent, state)
	}
}

// fillMarket fills the full quantity at the configured reference price. The
// adverse slippage and impact adjustment is recorded as explicit cost
// components so downstream P&L subtracts it exactly once.
func (s *Simulator) fillMarket(intent core.OrderIntent, state cost.MarketState) core.Execution {
	ref := s.referencePrice(state.Bar)
	qty := intent.Quantity

	var costs cost.Breakdown
	if intent.Side == core.SideSell {
		costs = s.cost.ExitCost(ref, qty, state)
	} else {
		costs = s.cost.EntryCost(ref, qty, state)
	}
	effective := s.cost.FillPrice(intent.Side, ref, state, qty)

	exec := core.Execution{
		OrderID:        intent.ID,
		FilledQuantity: qty,
		AveragePrice:   ref,
		Commission:     costs.Commission,
		Slippage:       costs.Slippage,
		MarketImpact:   costs.MarketImpact,
		Time:           state.Bar.Time,
	}
	exec.OpportunityCost = s.cost.OpportunityCost(
		intent.Side, qty, 0, intent.DecisionPrice, effective, state)
	return exec
}

// fillLimit fills only when the bar traded through the limit price and never
// at a price worse than the limit. A deterministic partial-fill ratio based
// on participation decides how much of the order fills; the remainder feeds
// opportunity cost.
func (s *Simulator) fillLimit(intent core.OrderIntent, state cost.MarketState) core.Execution {
	bar := state.Bar
	exec := core.Execution{
		OrderID: intent.ID,
		Time:    bar.Time,
	}

	var fillPrice float64
	switch intent.Side {
	case core.SideBuy:
		if bar.Low > intent.LimitPrice {
			exec.OpportunityCost = s.cost.OpportunityCost(
				intent.Side, 0, intent.Quantity, intent.DecisionPrice, 0, state)
			return exec
		}
		fillPrice = min(intent.LimitPrice, bar.Open)
	case core.SideSell:
		if bar.High < intent.LimitPrice {
			exec.OpportunityCost = s.cost.OpportunityCost(
				intent.Side, 0, intent.Quantity, intent.DecisionPrice, 0, state)
			return exec
		}
		fillPrice = max(intent.LimitPrice, bar.Open)
	}

	ratio := fillRatio(state.ParticipationRatio(intent.Quantity))
	filled := intent.Quantity * ratio
	unfilled := intent.Quantity - filled

	exec.FilledQuantity = filled
	exec.AveragePrice = fillPrice
	exec.Commission = s.cost.Commission(fillPrice * filled)
	exec.OpportunityCost = s.cost.OpportunityCost(
		intent.Side, filled, unfilled, intent.DecisionPrice, fillPrice, state)
	return exec
}

func (s *Simulator) referencePrice(bar core.Bar) float64 {
	if s.fillAt == FillAtOpen {
		return bar.Open
	}
	return bar.Close
}

// fillRatio maps participation ratio to the deterministic partial-fill
// ladder: small orders fill completely, large orders only partially.
func fillRatio(participation float64) float64 {
	switch {
	case participation < 0.01:
		return 1.0
	case participation < 0.05:
		return 0.9
	case participation < 0.10:
		return 0.7
	default:
		return 0.5
	}
}
