package core

import "time"

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Side represents the direction of an order.
type Side string

const (
	// SideBuy represents a buy order.
	SideBuy Side = "BUY"
	// SideSell represents a sell order.
	SideSell Side = "SELL"
)

// OrderType represents the type of order execution.
type OrderType string

const (
	// OrderTypeMarket executes at the prevailing bar price.
	OrderTypeMarket OrderType = "MARKET"
	// OrderTypeLimit executes at the limit price or better.
	OrderTypeLimit OrderType = "LIMIT"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	// ExitReasonSignal indicates the position was closed by a sell signal.
	ExitReasonSignal ExitReason = "SIGNAL"
	// ExitReasonEndOfData indicates the position was force-closed at the last bar.
	ExitReasonEndOfData ExitReason = "END_OF_DATA"
)

// Bar represents a single OHLCV candlestick. Bars are immutable once loaded
// and are processed strictly in timestamp order.
type Bar struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IsValid checks if the bar has usable price fields.
func (b Bar) IsValid() bool {
	return b.Symbol != "" && !b.Time.IsZero() &&
		b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0 &&
		b.High >= b.Low
}

// TypicalPrice returns the bar's volume-weighted proxy price (H+L+C)/3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Range returns the bar's high-low range.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Signal represents a trading decision produced by a signal generator.
// The simulation core never inspects how it was computed.
type Signal struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	// StopLoss is the suggested protective stop price. Zero means unset.
	StopLoss float64 `json:"stop_loss,omitempty"`
	// TakeProfit is the suggested profit target price. Zero means unset.
	TakeProfit  float64   `json:"take_profit,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// OrderIntent represents a request to trade, created by the engine from a
// signal and the current sizing rules.
type OrderIntent struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Type   OrderType `json:"type"`
	// Quantity is the number of shares requested. May be fractional.
	Quantity float64 `json:"quantity"`
	// LimitPrice is required for LIMIT orders.
	LimitPrice float64 `json:"limit_price,omitempty"`
	// DecisionPrice is the reference price at decision time, used to measure
	// price drift for opportunity cost.
	DecisionPrice float64   `json:"decision_price"`
	DecisionTime  time.Time `json:"decision_time"`
}

// Execution represents the simulated outcome of one order intent.
// FilledQuantity never exceeds the intent quantity and every cost field
// is non-negative.
type Execution struct {
	OrderID        string  `json:"order_id"`
	FilledQuantity float64 `json:"filled_quantity"`
	AveragePrice   float64 `json:"average_price"`
	// Commission is the broker fee charged on the filled value.
	Commission float64 `json:"commission"`
	// Slippage is the cost of crossing the spread under uncertainty.
	Slippage float64 `json:"slippage"`
	// MarketImpact is the cost of the order's own presence in the market.
	MarketImpact float64 `json:"market_impact"`
	// OpportunityCost is the cost attributable to unfilled quantity and
	// delayed or suboptimal execution timing.
	OpportunityCost float64   `json:"opportunity_cost"`
	Time            time.Time `json:"time"`
}

// TotalCost returns the sum of all cost components.
func (e Execution) TotalCost() float64 {
	return e.Commission + e.Slippage + e.MarketImpact + e.OpportunityCost
}

// IsZeroFill returns true if nothing was filled.
func (e Execution) IsZeroFill() bool {
	return e.FilledQuantity == 0
}

// Position represents an open holding. At most one position per symbol exists
// at a time; positions are owned and mutated exclusively by the ledger.
type Position struct {
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	OpenedAt   time.Time `json:"opened_at"`
	// Entry is the execution that opened the position.
	Entry Execution `json:"entry"`
}

// Trade is an immutable closed round trip. It is the unit the metrics
// calculator and Monte Carlo simulator consume; it is never mutated after
// creation.
type Trade struct {
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"quantity"`
	Entry    Execution `json:"entry"`
	Exit     Execution `json:"exit"`
	// PnL is net of all costs, computed exactly once when the trade closes.
	PnL           float64       `json:"pnl"`
	TotalCost     float64       `json:"total_cost"`
	HoldingPeriod time.Duration `json:"holding_period"`
	ExitReason    ExitReason    `json:"exit_reason"`
}

// IsWin returns true if the trade was profitable net of costs.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// EquityPoint is one point on the equity curve: account value marked to
// market at the close of a bar.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}
