package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/cost"
	"github.com/quantforge/backcast/internal/execution"
)

// scriptedGenerator emits a fixed signal when the window ends at a given
// bar index, and hold everywhere else.
type scriptedGenerator struct {
	signals map[int]core.Signal
	seen    int
}

func (g *scriptedGenerator) GenerateSignal(window []core.Bar) (core.Signal, error) {
	idx := g.seen
	g.seen++
	if sig, ok := g.signals[idx]; ok {
		return sig, nil
	}
	return core.Signal{Action: core.ActionHold}, nil
}

// zeroCostConfig disables every cost component so fills land exactly on the
// bar close and trade math is exact.
func zeroCostConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxPositionPct = 0
	cfg.Cost = cost.Config{
		Commission: cost.CommissionFixed,
		Amount:     0,
	}
	return cfg
}

// flatBars builds bars where open=high=low=close, so volatility and typical
// price deviation are zero.
func flatBars(closes ...float64) []core.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: "TEST",
			Time:   start.AddDate(0, 0, i),
			Open:   c, High: c, Low: c, Close: c,
			Volume: 1_000_000,
		}
	}
	return bars
}

func TestRun_RiskSizedRoundTrip(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	// Buy at close 100 with a stop 0.5% away, sell at close 105.
	gen := &scriptedGenerator{signals: map[int]core.Signal{
		1: {Action: core.ActionBuy, StopLoss: 99.5},
		3: {Action: core.ActionSell},
	}}
	bars := flatBars(100, 100, 102, 105, 105)

	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	// Risk budget 1,000 over a 0.5 stop distance sizes 2,000 shares.
	assert.InDelta(t, 2000, trade.Quantity, 1e-9)
	assert.InDelta(t, 100, trade.Entry.AveragePrice, 1e-9)
	assert.InDelta(t, 105, trade.Exit.AveragePrice, 1e-9)
	// With all costs zeroed: pnl = (105-100)*2000.
	assert.InDelta(t, 10000, trade.PnL, 1e-9)
	assert.Equal(t, core.ExitReasonSignal, trade.ExitReason)
}

func TestRun_StopAtEntryPriceFloored(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	// Stop exactly at the entry price: the 0.5% floor must prevent a
	// division blowup and size the position as if the stop were 0.5% away.
	gen := &scriptedGenerator{signals: map[int]core.Signal{
		1: {Action: core.ActionBuy, StopLoss: 100},
	}}
	bars := flatBars(100, 100, 100)

	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1, "position force-closed at end of data")
	assert.InDelta(t, 2000, result.Trades[0].Quantity, 1e-9)
	assert.Equal(t, core.ExitReasonEndOfData, result.Trades[0].ExitReason)
}

func TestRun_MaxPositionClamp(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.MaxPositionPct = 25
	eng, err := New(cfg)
	require.NoError(t, err)

	gen := &scriptedGenerator{signals: map[int]core.Signal{
		1: {Action: core.ActionBuy, StopLoss: 99.5},
	}}
	bars := flatBars(100, 100, 100)

	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	// 25% of 100,000 at price 100 caps the position at 250 shares.
	assert.InDelta(t, 250, result.Trades[0].Quantity, 1e-9)
}

func TestRun_ExitWithoutPositionIsNoOp(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	gen := &scriptedGenerator{signals: map[int]core.Signal{
		1: {Action: core.ActionSell},
		2: {Action: core.ActionSell},
	}}
	bars := flatBars(100, 101, 102)

	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	assert.Empty(t, result.Trades, "sell with no open position must not fabricate a trade")
	assert.Len(t, result.EquityCurve, 3)
}

func TestRun_DuplicateBuyIgnored(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	gen := &scriptedGenerator{signals: map[int]core.Signal{
		1: {Action: core.ActionBuy, StopLoss: 99.5},
		2: {Action: core.ActionBuy, StopLoss: 100.5},
		4: {Action: core.ActionSell},
	}}
	bars := flatBars(100, 100, 101, 102, 103)

	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1, "second buy while a position is open is ignored")
	assert.InDelta(t, 100, result.Trades[0].Entry.AveragePrice, 1e-9)
}

func TestRun_EndOfDataForceClose(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	gen := &scriptedGenerator{signals: map[int]core.Signal{
		1: {Action: core.ActionBuy, StopLoss: 99.5},
	}}
	bars := flatBars(100, 100, 104)

	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, core.ExitReasonEndOfData, trade.ExitReason)
	assert.InDelta(t, 104, trade.Exit.AveragePrice, 1e-9, "force close at the last close price")
	assert.InDelta(t, 4*2000, trade.PnL, 1e-9)
}

func TestRun_TrailingMalformedBarExcludedFromForceClose(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.Cost.VolatilityCoeff = 0.1
	eng, err := New(cfg)
	require.NoError(t, err)

	gen := &scriptedGenerator{signals: map[int]core.Signal{
		1: {Action: core.ActionBuy, StopLoss: 99.5},
	}}
	// A malformed final bar with a huge range: the forced close must price
	// against the last valid bar, whose flat range means zero volatility.
	bars := flatBars(100, 100, 104)
	bars = append(bars, core.Bar{
		Symbol: "TEST",
		Time:   bars[2].Time.AddDate(0, 0, 1),
		Open:   -1, High: 600, Low: 1, Close: 104,
		Volume: 1_000_000,
	})

	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, core.ExitReasonEndOfData, trade.ExitReason)
	assert.InDelta(t, 104, trade.Exit.AveragePrice, 1e-9)
	assert.InDelta(t, 0, trade.TotalCost, 1e-9, "malformed bar volatility must not leak into closing slippage")
	assert.InDelta(t, 4*2000, trade.PnL, 1e-9)
}

func TestRun_MalformedBarsSkipped(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	bars := flatBars(100, 101, 102)
	bars[1].Close = -5 // malformed

	gen := &scriptedGenerator{}
	result, err := eng.Run(context.Background(), bars, gen)
	require.NoError(t, err)
	assert.Len(t, result.EquityCurve, 2, "malformed bar neither trades nor marks equity")
}

func TestRun_NoData(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), nil, &scriptedGenerator{})
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestRun_Cancellation(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = eng.Run(ctx, flatBars(100, 101), &scriptedGenerator{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SignalErrorSkipsBar(t *testing.T) {
	eng, err := New(zeroCostConfig())
	require.NoError(t, err)

	gen := &failingGenerator{}
	result, err := eng.Run(context.Background(), flatBars(100, 101, 102), gen)
	require.NoError(t, err, "signal errors are logged per bar, not fatal")
	assert.Empty(t, result.Trades)
}

type failingGenerator struct{}

func (failingGenerator) GenerateSignal([]core.Bar) (core.Signal, error) {
	return core.Signal{}, errors.New("boom")
}

func TestNew_InvalidConfigRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = -1
	cfg.RiskPerTrade = 2

	_, err := New(cfg)
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2, "all violations reported at once")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestRun_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPositionPct = 0
	eng, err := New(cfg)
	require.NoError(t, err)

	bars := flatBars(100, 101, 99, 103, 102, 105, 104, 107)
	mk := func() *scriptedGenerator {
		return &scriptedGenerator{signals: map[int]core.Signal{
			1: {Action: core.ActionBuy, StopLoss: 99},
			5: {Action: core.ActionSell},
		}}
	}

	first, err := eng.Run(context.Background(), bars, mk())
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), bars, mk())
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	require.Equal(t, len(first.Trades), len(second.Trades))
	for i := range first.Trades {
		assert.Equal(t, first.Trades[i].PnL, second.Trades[i].PnL)
	}
}

func TestConfigValidate_FillAt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FillAt = execution.FillReference("vwap")
	assert.Error(t, cfg.Validate())

	cfg.FillAt = execution.FillAtOpen
	assert.NoError(t, cfg.Validate())
}
