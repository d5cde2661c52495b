package observability

import (
	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/engine"
)

type instrumentedGenerator struct {
	inner    engine.SignalGenerator
	strategy string
	metrics  *Registry
}

// InstrumentGenerator wraps a signal generator so every non-hold signal is
// counted in the registry.
func InstrumentGenerator(gen engine.SignalGenerator, strategy string, metrics *Registry) engine.SignalGenerator {
	return &instrumentedGenerator{inner: gen, strategy: strategy, metrics: metrics}
}

func (g *instrumentedGenerator) GenerateSignal(window []core.Bar) (core.Signal, error) {
	sig, err := g.inner.GenerateSignal(window)
	if err == nil && sig.Action != core.ActionHold {
		g.metrics.RecordSignal(g.strategy, string(sig.Action))
	}
	return sig, err
}
