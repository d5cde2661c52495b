package engine

import (
	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/cost"
	"github.com/quantforge/backcast/internal/execution"
)

// Config holds all parameters for one backtest run. It is validated before
// the first simulation step executes and is immutable afterwards.
type Config struct {
	// InitialCapital is the starting account value. Must be positive.
	InitialCapital float64 `json:"initial_capital" mapstructure:"initial_capital"`
	// RiskPerTrade is the fraction of capital risked per position, in (0,1].
	RiskPerTrade float64 `json:"risk_per_trade" mapstructure:"risk_per_trade"`
	// MaxPositionPct caps a single position as a percentage of equity.
	// Zero disables the cap.
	MaxPositionPct float64 `json:"max_position_pct" mapstructure:"max_position_pct"`
	// MinStopDistancePct floors the stop distance used for sizing, as a
	// percentage of price. Protects against degenerate stops at or near
	// the entry price.
	MinStopDistancePct float64 `json:"min_stop_distance_pct" mapstructure:"min_stop_distance_pct"`
	// DefaultStopDistancePct is the sizing distance assumed when a signal
	// carries no stop, as a percentage of price.
	DefaultStopDistancePct float64 `json:"default_stop_distance_pct" mapstructure:"default_stop_distance_pct"`
	// WindowSize is the number of trailing bars handed to the signal
	// generator each bar.
	WindowSize int `json:"window_size" mapstructure:"window_size"`
	// VolumeLookback is the number of trailing bars averaged for the
	// participation ratio.
	VolumeLookback int `json:"volume_lookback" mapstructure:"volume_lookback"`
	// FillAt selects the market order fill reference price.
	FillAt execution.FillReference `json:"fill_at" mapstructure:"fill_at"`
	// Cost configures the cost model shared by every fill in the run.
	Cost cost.Config `json:"cost" mapstructure:"cost"`
}

// DefaultConfig returns a backtest configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		InitialCapital:         100_000,
		RiskPerTrade:           0.01,
		MaxPositionPct:         25,
		MinStopDistancePct:     0.5,
		DefaultStopDistancePct: 2.0,
		WindowSize:             60,
		VolumeLookback:         20,
		FillAt:                 execution.FillAtClose,
		Cost:                   cost.DefaultConfig(),
	}
}

// Validate checks the configuration and reports every violation at once.
func (c Config) Validate() error {
	verr := &core.ValidationError{}

	if c.InitialCapital <= 0 {
		verr.Addf("initial_capital must be positive, got %f", c.InitialCapital)
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		verr.Addf("risk_per_trade must be in (0,1], got %f", c.RiskPerTrade)
	}
	if c.MaxPositionPct < 0 || c.MaxPositionPct > 100 {
		verr.Addf("max_position_pct must be between 0 and 100, got %f", c.MaxPositionPct)
	}
	if c.MinStopDistancePct <= 0 {
		verr.Addf("min_stop_distance_pct must be positive, got %f", c.MinStopDistancePct)
	}
	if c.DefaultStopDistancePct < c.MinStopDistancePct {
		verr.Addf("default_stop_distance_pct %f below min_stop_distance_pct %f",
			c.DefaultStopDistancePct, c.MinStopDistancePct)
	}
	if c.WindowSize < 1 {
		verr.Addf("window_size must be at least 1, got %d", c.WindowSize)
	}
	if c.VolumeLookback < 1 {
		verr.Addf("volume_lookback must be at least 1, got %d", c.VolumeLookback)
	}
	if c.FillAt != execution.FillAtOpen && c.FillAt != execution.FillAtClose {
		verr.Addf("fill_at must be %q or %q, got %q", execution.FillAtOpen, execution.FillAtClose, c.FillAt)
	}

	if err := c.Cost.Validate(); err != nil {
		if cerr, ok := err.(*core.ValidationError); ok {
			verr.Violations = append(verr.Violations, cerr.Violations...)
		} else {
			verr.Addf("cost: %v", err)
		}
	}

	return verr.Err()
}
