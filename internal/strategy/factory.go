package strategy

import (
	"fmt"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/engine"
)

// New builds a named generator from a flat parameter map. Unknown keys are
// ignored; missing keys fall back to the generator's defaults. This is the
// entry point both for the CLI and for parameter grids, which is why the
// values are all float64.
func New(name string, params map[string]float64) (engine.SignalGenerator, error) {
	switch name {
	case "ma_crossover":
		return NewMACrossover(
			int(params["fast_period"]),
			int(params["slow_period"]),
			params["stop_pct"],
		), nil
	case "rsi_reversion":
		return NewRSIReversion(
			int(params["period"]),
			params["oversold"],
			params["overbought"],
			params["atr_multiple"],
		), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown strategy %q", name))
	}
}

// Names lists the registered strategy names.
func Names() []string {
	return []string{"ma_crossover", "rsi_reversion"}
}
