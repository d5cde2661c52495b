package strategy

import (
	"fmt"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/indicator"
)

// RSIReversion buys oversold conditions and exits when momentum recovers.
// Stops are placed one ATR below the entry close.
type RSIReversion struct {
	Period     int
	Oversold   float64
	Overbought float64
	// ATRMultiple scales the protective stop distance. Zero disables the
	// stop.
	ATRMultiple float64
}

// NewRSIReversion creates a mean reversion generator with 14/30/70 defaults
// for unset parameters.
func NewRSIReversion(period int, oversold, overbought, atrMultiple float64) *RSIReversion {
	if period < 1 {
		period = 14
	}
	if oversold <= 0 {
		oversold = 30
	}
	if overbought <= 0 || overbought <= oversold {
		overbought = 70
	}
	return &RSIReversion{
		Period:      period,
		Oversold:    oversold,
		Overbought:  overbought,
		ATRMultiple: atrMultiple,
	}
}

func (r *RSIReversion) Name() string {
	return fmt.Sprintf("rsi_reversion_%d", r.Period)
}

// GenerateSignal emits buy when RSI drops below the oversold threshold and
// sell when it rises above the overbought threshold.
func (r *RSIReversion) GenerateSignal(window []core.Bar) (core.Signal, error) {
	hold := core.Signal{Action: core.ActionHold, GeneratedAt: signalTime(window)}
	if len(window) <= r.Period+1 {
		return hold, nil
	}

	prices := make([]float64, len(window))
	for i, bar := range window {
		prices[i] = bar.Close
	}

	rsi := indicator.RSI(prices, r.Period)
	if len(rsi) == 0 {
		return hold, nil
	}
	curr := rsi[len(rsi)-1]
	last := window[len(window)-1]

	switch {
	case curr <= r.Oversold:
		return core.Signal{
			Action:      core.ActionBuy,
			Confidence:  reversionConfidence(r.Oversold - curr),
			StopLoss:    r.stopFor(window, last.Close),
			Reason:      fmt.Sprintf("RSI%d oversold at %.1f", r.Period, curr),
			GeneratedAt: last.Time,
		}, nil
	case curr >= r.Overbought:
		return core.Signal{
			Action:      core.ActionSell,
			Confidence:  reversionConfidence(curr - r.Overbought),
			Reason:      fmt.Sprintf("RSI%d overbought at %.1f", r.Period, curr),
			GeneratedAt: last.Time,
		}, nil
	}
	return hold, nil
}

func (r *RSIReversion) stopFor(window []core.Bar, close float64) float64 {
	if r.ATRMultiple <= 0 {
		return 0
	}
	atr := indicator.ATR(window, r.Period)
	if len(atr) == 0 {
		return 0
	}
	stop := close - r.ATRMultiple*atr[len(atr)-1]
	if stop <= 0 {
		return 0
	}
	return stop
}

// reversionConfidence scales penetration depth past the threshold into the
// 0.5-0.9 range.
func reversionConfidence(depth float64) float64 {
	confidence := 0.5 + depth/50
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
