package core

import (
	"testing"
	"time"
)

func validBar() Bar {
	return Bar{
		Symbol: "TEST",
		Time:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:   100, High: 103, Low: 98, Close: 102,
		Volume: 1000,
	}
}

func TestBar_IsValid(t *testing.T) {
	if !validBar().IsValid() {
		t.Error("well-formed bar reported invalid")
	}

	cases := []struct {
		name   string
		mutate func(*Bar)
	}{
		{"missing symbol", func(b *Bar) { b.Symbol = "" }},
		{"zero time", func(b *Bar) { b.Time = time.Time{} }},
		{"zero close", func(b *Bar) { b.Close = 0 }},
		{"negative open", func(b *Bar) { b.Open = -1 }},
		{"low above high", func(b *Bar) { b.Low = 110 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBar()
			tc.mutate(&b)
			if b.IsValid() {
				t.Error("malformed bar reported valid")
			}
		})
	}
}

func TestBar_TypicalPrice(t *testing.T) {
	b := validBar()
	if got := b.TypicalPrice(); got != 101 {
		t.Errorf("TypicalPrice = %f, want 101", got)
	}
	if got := b.Range(); got != 5 {
		t.Errorf("Range = %f, want 5", got)
	}
}

func TestExecution_TotalCost(t *testing.T) {
	e := Execution{Commission: 5, Slippage: 2, MarketImpact: 1, OpportunityCost: 0.5}
	if got := e.TotalCost(); got != 8.5 {
		t.Errorf("TotalCost = %f, want 8.5", got)
	}
}

func TestExecution_IsZeroFill(t *testing.T) {
	if !(Execution{}).IsZeroFill() {
		t.Error("empty execution should be a zero fill")
	}
	if (Execution{FilledQuantity: 1}).IsZeroFill() {
		t.Error("filled execution reported as zero fill")
	}
}

func TestTrade_IsWin(t *testing.T) {
	if !(Trade{PnL: 0.01}).IsWin() {
		t.Error("positive PnL should win")
	}
	if (Trade{PnL: 0}).IsWin() {
		t.Error("flat trade is not a win")
	}
	if (Trade{PnL: -5}).IsWin() {
		t.Error("negative PnL is not a win")
	}
}
