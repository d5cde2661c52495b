// Package portfolio owns all position, trade and equity state for one
// simulation run. Positions are held in a symbol-keyed table so "does a
// position exist to close" is an explicit lookup, never an assumption.
package portfolio

import (
	"errors"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/cost"
)

// Ledger errors.
var (
	// ErrPositionExists indicates a position is already open for the symbol.
	ErrPositionExists = errors.New("portfolio: position already open for symbol")
	// ErrPositionNotFound indicates no open position exists for the symbol.
	ErrPositionNotFound = errors.New("portfolio: no open position for symbol")
	// ErrZeroFill indicates the execution filled nothing.
	ErrZeroFill = errors.New("portfolio: execution filled no quantity")
)

// Ledger tracks cash, open positions, closed trades and the equity curve for
// a single run. It is owned by one run goroutine; independent parallel runs
// each get their own ledger, so no locking is required.
type Ledger struct {
	initialCapital float64
	cash           float64
	positions      map[string]*core.Position
	lastPrice      map[string]float64
	trades         []core.Trade
	equity         []core.EquityPoint
}

// NewLedger creates a ledger with the given starting capital.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*core.Position),
		lastPrice:      make(map[string]float64),
	}
}

// InitialCapital returns the starting capital.
func (l *Ledger) InitialCapital() float64 {
	return l.initialCapital
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns the open position for a symbol, if any.
func (l *Ledger) Position(symbol string) (core.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return core.Position{}, false
	}
	return *pos, true
}

// HasPosition reports whether a position is open for the symbol.
func (l *Ledger) HasPosition(symbol string) bool {
	_, ok := l.positions[symbol]
	return ok
}

// OpenPositions returns a copy of all open positions.
func (l *Ledger) OpenPositions() []core.Position {
	positions := make([]core.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, *pos)
	}
	return positions
}

// Open records a new position from an entry execution. The full execution
// cost is debited from cash along with the position value.
func (l *Ledger) Open(symbol string, exec core.Execution, stopLoss, takeProfit float64) error {
	if _, exists := l.positions[symbol]; exists {
		return ErrPositionExists
	}
	if exec.IsZeroFill() {
		return ErrZeroFill
	}

	l.positions[symbol] = &core.Position{
		Symbol:     symbol,
		Quantity:   exec.FilledQuantity,
		EntryPrice: exec.AveragePrice,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		OpenedAt:   exec.Time,
		Entry:      exec,
	}
	l.lastPrice[symbol] = exec.AveragePrice
	l.cash -= exec.AveragePrice*exec.FilledQuantity + exec.TotalCost()
	return nil
}

// Close closes the existing open position for the symbol against an exit
// execution and appends exactly one immutable trade. P&L is computed here
// once, from execution prices and the cost model's round-trip total; it is
// never re-derived elsewhere. An exit quantity beyond the open position is
// clamped to the position size.
func (l *Ledger) Close(symbol string, exec core.Execution, reason core.ExitReason, model *cost.Model) (core.Trade, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return core.Trade{}, ErrPositionNotFound
	}
	if exec.IsZeroFill() {
		return core.Trade{}, ErrZeroFill
	}

	qty := exec.FilledQuantity
	if qty > pos.Quantity {
		qty = pos.Quantity
	}

	roundTrip := model.RoundTripCost(pos.Entry, exec)
	trade := core.Trade{
		Symbol:        symbol,
		Quantity:      qty,
		Entry:         pos.Entry,
		Exit:          exec,
		PnL:           (exec.AveragePrice-pos.EntryPrice)*qty - roundTrip.Total,
		TotalCost:     roundTrip.Total,
		HoldingPeriod: exec.Time.Sub(pos.OpenedAt),
		ExitReason:    reason,
	}

	l.cash += exec.AveragePrice*qty - exec.TotalCost()
	l.trades = append(l.trades, trade)
	delete(l.positions, symbol)
	delete(l.lastPrice, symbol)
	return trade, nil
}

// MarkToMarket revalues open positions at the bar close and appends one
// equity point. Unrealized P&L flows through the curve only; realized trade
// P&L is already reflected in cash.
func (l *Ledger) MarkToMarket(bar core.Bar) {
	if _, ok := l.positions[bar.Symbol]; ok {
		l.lastPrice[bar.Symbol] = bar.Close
	}

	equity := l.cash
	for symbol, pos := range l.positions {
		equity += pos.Quantity * l.lastPrice[symbol]
	}
	l.equity = append(l.equity, core.EquityPoint{Time: bar.Time, Equity: equity})
}

// Trades returns the closed trades in close order.
func (l *Ledger) Trades() []core.Trade {
	return l.trades
}

// EquityCurve returns the recorded equity points in bar order.
func (l *Ledger) EquityCurve() []core.EquityPoint {
	return l.equity
}
