// Package cost provides the single source of truth for all trading cost
// calculations: commission, slippage, market impact, and opportunity cost.
// Every execution path in the system (engine runs, walk-forward re-runs,
// Monte Carlo replays) must price costs through this package.
package cost

import (
	"math"

	"github.com/quantforge/backcast/internal/core"
)

// CommissionType selects the commission formula.
type CommissionType string

const (
	// CommissionFixed charges a flat amount per trade.
	CommissionFixed CommissionType = "fixed"
	// CommissionPercentage charges a percentage of order value.
	CommissionPercentage CommissionType = "percentage"
	// CommissionTiered charges per cumulative value band.
	CommissionTiered CommissionType = "tiered"
)

// Tier is one commission band. Rate applies only to the slice of order value
// falling between the previous tier's ceiling and UpTo. UpTo of zero means
// unbounded and is only valid on the last tier.
type Tier struct {
	UpTo float64 `json:"up_to" mapstructure:"up_to"`
	// Rate is a percentage, e.g. 0.1 means 0.1% of the band value.
	Rate float64 `json:"rate" mapstructure:"rate"`
}

// Config holds all cost model parameters. It is immutable for the duration
// of one backtest run.
type Config struct {
	Commission CommissionType `json:"commission" mapstructure:"commission"`
	// Amount is the flat commission per trade (fixed type).
	Amount float64 `json:"amount" mapstructure:"amount"`
	// Rate is the commission percentage of order value (percentage type).
	Rate  float64 `json:"rate" mapstructure:"rate"`
	Tiers []Tier  `json:"tiers,omitempty" mapstructure:"tiers"`
	// MinCommission and MaxCommission clamp the computed commission when > 0.
	MinCommission float64 `json:"min_commission" mapstructure:"min_commission"`
	MaxCommission float64 `json:"max_commission" mapstructure:"max_commission"`

	// HalfSpread is the half bid-ask spread as a fraction of price.
	HalfSpread float64 `json:"half_spread" mapstructure:"half_spread"`
	// VolatilityCoeff scales the volatility contribution to slippage.
	VolatilityCoeff float64 `json:"volatility_coeff" mapstructure:"volatility_coeff"`

	// TempImpactCoeff and PermImpactCoeff are the Almgren-Chriss style
	// temporary and permanent market impact coefficients.
	TempImpactCoeff float64 `json:"temp_impact_coeff" mapstructure:"temp_impact_coeff"`
	PermImpactCoeff float64 `json:"perm_impact_coeff" mapstructure:"perm_impact_coeff"`

	// DelayCostCoeff scales the execution delay component of opportunity cost.
	DelayCostCoeff float64 `json:"delay_cost_coeff" mapstructure:"delay_cost_coeff"`
	// LatencySeconds is the assumed decision-to-execution latency.
	LatencySeconds float64 `json:"latency_seconds" mapstructure:"latency_seconds"`
}

// DefaultConfig returns a cost configuration with conservative defaults.
func DefaultConfig() Config {
	return Config{
		Commission:      CommissionPercentage,
		Rate:            0.1,
		HalfSpread:      0.0005,
		VolatilityCoeff: 0.1,
		TempImpactCoeff: 0.01,
		PermImpactCoeff: 0.005,
		DelayCostCoeff:  0.05,
		LatencySeconds:  1.0,
	}
}

// Validate checks the cost configuration, collecting every violation.
func (c Config) Validate() error {
	verr := &core.ValidationError{}

	switch c.Commission {
	case CommissionFixed:
		if c.Amount < 0 {
			verr.Addf("commission amount cannot be negative, got %f", c.Amount)
		}
	case CommissionPercentage:
		if c.Rate < 0 || c.Rate > 100 {
			verr.Addf("commission rate must be between 0 and 100, got %f", c.Rate)
		}
	case CommissionTiered:
		if len(c.Tiers) == 0 {
			verr.Addf("tiered commission requires at least one tier")
		}
		var prev float64
		for i, t := range c.Tiers {
			if t.Rate < 0 || t.Rate > 100 {
				verr.Addf("tier %d rate must be between 0 and 100, got %f", i, t.Rate)
			}
			if t.UpTo == 0 && i != len(c.Tiers)-1 {
				verr.Addf("tier %d: only the last tier may be unbounded", i)
			}
			if t.UpTo != 0 && t.UpTo <= prev {
				verr.Addf("tier %d ceiling %f must exceed previous ceiling %f", i, t.UpTo, prev)
			}
			prev = t.UpTo
		}
	default:
		verr.Addf("unknown commission type %q", c.Commission)
	}

	if c.MinCommission < 0 {
		verr.Addf("min_commission cannot be negative, got %f", c.MinCommission)
	}
	if c.MaxCommission < 0 {
		verr.Addf("max_commission cannot be negative, got %f", c.MaxCommission)
	}
	if c.MinCommission > 0 && c.MaxCommission > 0 && c.MinCommission > c.MaxCommission {
		verr.Addf("min_commission %f exceeds max_commission %f", c.MinCommission, c.MaxCommission)
	}
	for name, v := range map[string]float64{
		"half_spread":       c.HalfSpread,
		"volatility_coeff":  c.VolatilityCoeff,
		"temp_impact_coeff": c.TempImpactCoeff,
		"perm_impact_coeff": c.PermImpactCoeff,
		"delay_cost_coeff":  c.DelayCostCoeff,
		"latency_seconds":   c.LatencySeconds,
	} {
		if v < 0 {
			verr.Addf("%s cannot be negative, got %f", name, v)
		}
	}

	return verr.Err()
}

// MarketState carries the observable market context for a fill. Slippage and
// impact are deterministic functions of this state; given the same inputs the
// same costs result, so backtests reproduce bit for bit.
type MarketState struct {
	Bar core.Bar
	// AverageVolume is the trailing average bar volume.
	AverageVolume float64
	// Volatility is the intrabar volatility as a fraction of price.
	Volatility float64
	// SessionFactor scales spread costs by time of session; 1.0 is
	// mid-session, larger near the open and close.
	SessionFactor float64
}

// ParticipationRatio returns the order quantity relative to average volume.
func (s MarketState) ParticipationRatio(quantity float64) float64 {
	if s.AverageVolume <= 0 {
		// Zero-volume bars would blow up the ratio; treat the order as the
		// whole market instead.
		return 1
	}
	return quantity / s.AverageVolume
}

// Breakdown itemizes the costs of one execution or round trip.
type Breakdown struct {
	Commission      float64 `json:"commission"`
	Slippage        float64 `json:"slippage"`
	MarketImpact    float64 `json:"market_impact"`
	OpportunityCost float64 `json:"opportunity_cost"`
	Total           float64 `json:"total"`
}

// Model computes trading costs. It is stateless and safe for concurrent use
// across independent runs.
type Model struct {
	cfg Config
}

// NewModel creates a cost model from the given configuration.
func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Config returns the model's configuration.
func (m *Model) Config() Config {
	return m.cfg
}

// Commission computes the commission for an order value, clamped to the
// configured bounds.
func (m *Model) Commission(orderValue float64) float64 {
	if orderValue <= 0 {
		return 0
	}

	var commission float64
	switch m.cfg.Commission {
	case CommissionFixed:
		commission = m.cfg.Amount
	case CommissionPercentage:
		commission = orderValue * m.cfg.Rate / 100
	case CommissionTiered:
		var prev float64
		remaining := orderValue
		for _, t := range m.cfg.Tiers {
			if remaining <= 0 {
				break
			}
			band := remaining
			if t.UpTo > 0 {
				band = math.Min(remaining, t.UpTo-prev)
				prev = t.UpTo
			}
			commission += band * t.Rate / 100
			remaining -= band
		}
	}

	if m.cfg.MinCommission > 0 && commission < m.cfg.MinCommission {
		commission = m.cfg.MinCommission
	}
	if m.cfg.MaxCommission > 0 && commission > m.cfg.MaxCommission {
		commission = m.cfg.MaxCommission
	}
	return commission
}

// SlippageFraction returns expected slippage as a fraction of price:
// the session-scaled half spread plus a volatility term that grows with
// the square root of participation.
func (m *Model) SlippageFraction(state MarketState, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}
	session := state.SessionFactor
	if session <= 0 {
		session = 1
	}
	pr := state.ParticipationRatio(quantity)
	return session*m.cfg.HalfSpread + m.cfg.VolatilityCoeff*state.Volatility*math.Sqrt(pr)
}

// ImpactFraction returns the market impact as a fraction of price:
// temporary impact proportional to sqrt(participation) plus permanent
// impact proportional to participation.
func (m *Model) ImpactFraction(state MarketState, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}
	pr := state.ParticipationRatio(quantity)
	return m.cfg.TempImpactCoeff*math.Sqrt(pr) + m.cfg.PermImpactCoeff*pr
}

// FillPrice applies slippage and impact to a reference price in the
// direction adverse to the order side: buys pay up, sells receive less.
func (m *Model) FillPrice(side core.Side, refPrice float64, state MarketState, quantity float64) float64 {
	frac := m.SlippageFraction(state, quantity) + m.ImpactFraction(state, quantity)
	if side == core.SideSell {
		return refPrice * (1 - frac)
	}
	return refPrice * (1 + frac)
}

// EntryCost itemizes the costs of entering a position of the given quantity
// at the reference price. Opportunity cost is zero here; it is charged
// separately once the unfilled remainder is known.
func (m *Model) EntryCost(refPrice, quantity float64, state MarketState) Breakdown {
	return m.executionCost(refPrice, quantity, state)
}

// ExitCost itemizes the costs of exiting a position.
func (m *Model) ExitCost(refPrice, quantity float64, state MarketState) Breakdown {
	return m.executionCost(refPrice, quantity, state)
}

func (m *Model) executionCost(refPrice, quantity float64, state MarketState) Breakdown {
	if refPrice <= 0 || quantity <= 0 {
		return Breakdown{}
	}
	value := refPrice * quantity

	b := Breakdown{
		Commission:   m.Commission(value),
		Slippage:     value * m.SlippageFraction(state, quantity),
		MarketImpact: value * m.ImpactFraction(state, quantity),
	}
	b.Total = b.Commission + b.Slippage + b.MarketImpact
	return b
}

// OpportunityCost charges the unfilled portion of an order and penalizes
// delayed or badly timed execution:
//
//   - unfilled quantity times the absolute price drift since the decision,
//   - a delay cost proportional to sqrt(latency) times intrabar volatility,
//   - a timing cost equal to the adverse deviation of the fill price from
//     the bar's typical-price benchmark.
//
// All components are non-negative.
func (m *Model) OpportunityCost(side core.Side, filledQty, unfilledQty, decisionPrice, fillPrice float64, state MarketState) float64 {
	var total float64

	if unfilledQty > 0 && decisionPrice > 0 {
		drift := math.Abs(state.Bar.Close - decisionPrice)
		total += unfilledQty * drift
	}

	if filledQty > 0 {
		delay := m.cfg.DelayCostCoeff * math.Sqrt(m.cfg.LatencySeconds) * state.Volatility * decisionPrice * filledQty
		total += delay

		benchmark := state.Bar.TypicalPrice()
		var timing float64
		if side == core.SideBuy {
			timing = fillPrice - benchmark
		} else {
			timing = benchmark - fillPrice
		}
		if timing > 0 {
			total += timing * filledQty
		}
	}

	return total
}

// RoundTripCost aggregates the realized cost components of a completed
// entry/exit execution pair.
func (m *Model) RoundTripCost(entry, exit core.Execution) Breakdown {
	b := Breakdown{
		Commission:      entry.Commission + exit.Commission,
		Slippage:        entry.Slippage + exit.Slippage,
		MarketImpact:    entry.MarketImpact + exit.MarketImpact,
		OpportunityCost: entry.OpportunityCost + exit.OpportunityCost,
	}
	b.Total = b.Commission + b.Slippage + b.MarketImpact + b.OpportunityCost
	return b
}
