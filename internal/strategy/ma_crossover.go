// Package strategy provides reference signal generators for the backtest
// engine. Each generator inspects a trailing bar window and emits at most
// one signal per bar; hold means no action.
package strategy

import (
	"fmt"
	"time"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/indicator"
)

// signalTime stamps signals with the latest bar's timestamp so repeated runs
// over the same data produce identical signals.
func signalTime(window []core.Bar) time.Time {
	if len(window) == 0 {
		return time.Time{}
	}
	return window[len(window)-1].Time
}

// MACrossover trades golden and death crosses of two simple moving averages.
// A positive stop percent attaches a protective stop below the entry price.
type MACrossover struct {
	FastPeriod int
	SlowPeriod int
	// StopPct sets the stop loss as a percent below the signal close.
	// Zero leaves the stop unset.
	StopPct float64
}

// NewMACrossover creates a crossover generator. Periods below 1 are lifted
// to the 10/30 defaults, and fast is swapped with slow when inverted.
func NewMACrossover(fast, slow int, stopPct float64) *MACrossover {
	if fast < 1 {
		fast = 10
	}
	if slow < 1 {
		slow = 30
	}
	if fast > slow {
		fast, slow = slow, fast
	}
	return &MACrossover{FastPeriod: fast, SlowPeriod: slow, StopPct: stopPct}
}

func (m *MACrossover) Name() string {
	return fmt.Sprintf("ma_crossover_%d_%d", m.FastPeriod, m.SlowPeriod)
}

// GenerateSignal emits buy on a golden cross and sell on a death cross of
// the fast over the slow average at the latest bar.
func (m *MACrossover) GenerateSignal(window []core.Bar) (core.Signal, error) {
	hold := core.Signal{Action: core.ActionHold, GeneratedAt: signalTime(window)}
	if len(window) < m.SlowPeriod+1 {
		return hold, nil
	}

	prices := make([]float64, len(window))
	for i, bar := range window {
		prices[i] = bar.Close
	}

	fastMA := indicator.SMA(prices, m.FastPeriod)
	slowMA := indicator.SMA(prices, m.SlowPeriod)
	if len(fastMA) < 2 || len(slowMA) < 2 {
		return hold, nil
	}

	currFast := fastMA[len(fastMA)-1]
	prevFast := fastMA[len(fastMA)-2]
	currSlow := slowMA[len(slowMA)-1]
	prevSlow := slowMA[len(slowMA)-2]

	last := window[len(window)-1]

	// Golden cross: fast crosses above slow
	if prevFast <= prevSlow && currFast > currSlow {
		return core.Signal{
			Action:      core.ActionBuy,
			Confidence:  crossConfidence(currFast, currSlow),
			StopLoss:    m.stopFor(last.Close),
			Reason:      fmt.Sprintf("golden cross: MA%d (%.2f) above MA%d (%.2f)", m.FastPeriod, currFast, m.SlowPeriod, currSlow),
			GeneratedAt: last.Time,
		}, nil
	}

	// Death cross: fast crosses below slow
	if prevFast >= prevSlow && currFast < currSlow {
		return core.Signal{
			Action:      core.ActionSell,
			Confidence:  crossConfidence(currFast, currSlow),
			Reason:      fmt.Sprintf("death cross: MA%d (%.2f) below MA%d (%.2f)", m.FastPeriod, currFast, m.SlowPeriod, currSlow),
			GeneratedAt: last.Time,
		}, nil
	}

	return hold, nil
}

func (m *MACrossover) stopFor(close float64) float64 {
	if m.StopPct <= 0 {
		return 0
	}
	return close * (1 - m.StopPct/100)
}

// crossConfidence returns higher confidence for larger divergence between
// the averages, scaled to the 0.5-0.9 range.
func crossConfidence(fast, slow float64) float64 {
	if slow == 0 {
		return 0.5
	}
	diff := (fast - slow) / slow
	if diff < 0 {
		diff = -diff
	}
	confidence := 0.5 + diff*10
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
