package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/backcast/internal/core"
)

func barsFromCloses(closes ...float64) []core.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: "TEST",
			Time:   start.AddDate(0, 0, i),
			Open:   c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

// goldenCrossWindow builds a long decline with one huge final bar, so the
// fast average crosses the slow average upward exactly on the last bar.
func goldenCrossWindow() []core.Bar {
	closes := make([]float64, 30)
	for i := 0; i < 29; i++ {
		closes[i] = 200 - float64(i)
	}
	closes[29] = 400
	return barsFromCloses(closes...)
}

// deathCrossWindow is the mirror image: a steady rise with a final crash.
func deathCrossWindow() []core.Bar {
	closes := make([]float64, 30)
	for i := 0; i < 29; i++ {
		closes[i] = 100 + float64(i)
	}
	closes[29] = 10
	return barsFromCloses(closes...)
}

func TestMACrossover_GoldenCross(t *testing.T) {
	gen := NewMACrossover(5, 20, 2.0)
	window := goldenCrossWindow()

	sig, err := gen.GenerateSignal(window)
	require.NoError(t, err)
	assert.Equal(t, core.ActionBuy, sig.Action)
	assert.GreaterOrEqual(t, sig.Confidence, 0.5)
	assert.LessOrEqual(t, sig.Confidence, 0.9)

	last := window[len(window)-1].Close
	assert.InDelta(t, last*0.98, sig.StopLoss, 1e-9, "stop placed 2%% below the signal close")
}

func TestMACrossover_DeathCross(t *testing.T) {
	gen := NewMACrossover(5, 20, 0)

	sig, err := gen.GenerateSignal(deathCrossWindow())
	require.NoError(t, err)
	assert.Equal(t, core.ActionSell, sig.Action)
	assert.Zero(t, sig.StopLoss)
}

func TestMACrossover_HoldWithoutCross(t *testing.T) {
	gen := NewMACrossover(5, 20, 0)

	// Steady rise: fast stays above slow the whole time, no new cross.
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	sig, err := gen.GenerateSignal(barsFromCloses(closes...))
	require.NoError(t, err)
	assert.Equal(t, core.ActionHold, sig.Action)
}

func TestMACrossover_ShortWindowHolds(t *testing.T) {
	gen := NewMACrossover(5, 20, 0)
	sig, err := gen.GenerateSignal(barsFromCloses(100, 101, 102))
	require.NoError(t, err)
	assert.Equal(t, core.ActionHold, sig.Action)
}

func TestNewMACrossover_SwapsInvertedPeriods(t *testing.T) {
	gen := NewMACrossover(30, 10, 0)
	assert.Equal(t, 10, gen.FastPeriod)
	assert.Equal(t, 30, gen.SlowPeriod)
}

func TestRSIReversion_Oversold(t *testing.T) {
	gen := NewRSIReversion(5, 30, 70, 1.0)

	// Persistent decline drives RSI to the floor.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - 2*float64(i)
	}
	sig, err := gen.GenerateSignal(barsFromCloses(closes...))
	require.NoError(t, err)
	assert.Equal(t, core.ActionBuy, sig.Action)
	assert.Greater(t, sig.StopLoss, 0.0, "ATR stop attached")
	assert.Less(t, sig.StopLoss, closes[len(closes)-1])
}

func TestRSIReversion_Overbought(t *testing.T) {
	gen := NewRSIReversion(5, 30, 70, 0)

	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + 2*float64(i)
	}
	sig, err := gen.GenerateSignal(barsFromCloses(closes...))
	require.NoError(t, err)
	assert.Equal(t, core.ActionSell, sig.Action)
}

func TestRSIReversion_NeutralHolds(t *testing.T) {
	gen := NewRSIReversion(5, 30, 70, 0)

	// Alternating small moves keep RSI near the middle.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	sig, err := gen.GenerateSignal(barsFromCloses(closes...))
	require.NoError(t, err)
	assert.Equal(t, core.ActionHold, sig.Action)
}

func TestGenerateSignal_Reproducible(t *testing.T) {
	// Signals are a pure function of the window: the timestamp comes from
	// the latest bar, never from the wall clock.
	ma := NewMACrossover(5, 20, 2.0)
	maWindow := goldenCrossWindow()

	first, err := ma.GenerateSignal(maWindow)
	require.NoError(t, err)
	second, err := ma.GenerateSignal(maWindow)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, maWindow[len(maWindow)-1].Time, first.GeneratedAt)

	rsi := NewRSIReversion(5, 30, 70, 1.0)
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - 2*float64(i)
	}
	rsiWindow := barsFromCloses(closes...)

	rFirst, err := rsi.GenerateSignal(rsiWindow)
	require.NoError(t, err)
	rSecond, err := rsi.GenerateSignal(rsiWindow)
	require.NoError(t, err)
	assert.Equal(t, rFirst, rSecond)
	assert.Equal(t, rsiWindow[len(rsiWindow)-1].Time, rFirst.GeneratedAt)
}

func TestGenerateSignal_EmptyWindowHolds(t *testing.T) {
	ma := NewMACrossover(5, 20, 0)
	sig, err := ma.GenerateSignal(nil)
	require.NoError(t, err)
	assert.Equal(t, core.ActionHold, sig.Action)
	assert.True(t, sig.GeneratedAt.IsZero())
}

func TestFactory(t *testing.T) {
	gen, err := New("ma_crossover", map[string]float64{
		"fast_period": 8, "slow_period": 21, "stop_pct": 1.5,
	})
	require.NoError(t, err)
	ma, ok := gen.(*MACrossover)
	require.True(t, ok)
	assert.Equal(t, 8, ma.FastPeriod)
	assert.Equal(t, 21, ma.SlowPeriod)
	assert.Equal(t, 1.5, ma.StopPct)

	gen, err = New("rsi_reversion", map[string]float64{"period": 9})
	require.NoError(t, err)
	rsi, ok := gen.(*RSIReversion)
	require.True(t, ok)
	assert.Equal(t, 9, rsi.Period)

	_, err = New("does_not_exist", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestFactory_DefaultsForMissingParams(t *testing.T) {
	gen, err := New("ma_crossover", nil)
	require.NoError(t, err)
	ma := gen.(*MACrossover)
	assert.Equal(t, 10, ma.FastPeriod)
	assert.Equal(t, 30, ma.SlowPeriod)
}
