package engine

import (
	"time"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/stats"
)

// SignalGenerator decides BUY/SELL/HOLD from the historical window ending at
// the current bar. The engine treats it as an opaque collaborator and places
// no constraints on how the decision is made.
type SignalGenerator interface {
	GenerateSignal(window []core.Bar) (core.Signal, error)
}

// Result holds the complete output of one backtest run. It is a plain
// serializable record; rendering is the caller's concern.
type Result struct {
	Symbol      string             `json:"symbol"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Trades      []core.Trade       `json:"trades"`
	EquityCurve []core.EquityPoint `json:"equity_curve"`
	Metrics     stats.Snapshot     `json:"metrics"`
}
