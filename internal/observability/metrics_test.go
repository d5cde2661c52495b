package observability

import (
	"testing"

	"github.com/quantforge/backcast/internal/core"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(mfs) == 0 {
		t.Error("expected go runtime metrics to be registered")
	}
}

func TestRegistry_RecordBacktest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBacktest("ok", 0.5)
	reg.RecordBacktest("error", 1.2)

	if !hasMetric(t, reg, "backcast_backtests_total") {
		t.Error("expected backcast_backtests_total metric")
	}
	if !hasMetric(t, reg, "backcast_backtest_duration_seconds") {
		t.Error("expected backcast_backtest_duration_seconds metric")
	}
}

func TestRegistry_Counters(t *testing.T) {
	reg := NewRegistry()

	reg.RecordSignal("ma_crossover", "BUY")
	reg.RecordTrade("SIGNAL")
	reg.RecordWindow("ok")
	reg.AddTrials(1000)
	reg.AddBars(252)

	for _, name := range []string{
		"backcast_signals_generated_total",
		"backcast_trades_executed_total",
		"backcast_walkforward_windows_total",
		"backcast_montecarlo_trials_total",
		"backcast_bars_processed_total",
	} {
		if !hasMetric(t, reg, name) {
			t.Errorf("expected %s metric", name)
		}
	}
}

func hasMetric(t *testing.T, reg *Registry, name string) bool {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return true
		}
	}
	return false
}

type fixedGenerator struct {
	signal core.Signal
}

func (g fixedGenerator) GenerateSignal(window []core.Bar) (core.Signal, error) {
	return g.signal, nil
}

func TestInstrumentGenerator_CountsNonHold(t *testing.T) {
	reg := NewRegistry()

	buy := InstrumentGenerator(fixedGenerator{core.Signal{Action: core.ActionBuy}}, "test", reg)
	if _, err := buy.GenerateSignal(nil); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !hasMetric(t, reg, "backcast_signals_generated_total") {
		t.Error("expected buy signal to be counted")
	}
}

func TestInstrumentGenerator_SkipsHold(t *testing.T) {
	reg := NewRegistry()

	hold := InstrumentGenerator(fixedGenerator{core.Signal{Action: core.ActionHold}}, "test", reg)
	if _, err := hold.GenerateSignal(nil); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if hasMetric(t, reg, "backcast_signals_generated_total") {
		t.Error("hold signals must not be counted")
	}
}
