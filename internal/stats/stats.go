// Package stats derives all performance and risk statistics from closed
// trades and the equity curve. The functions here are pure: the same inputs
// always produce the same snapshot, and no other package re-implements any
// of these calculations.
package stats

import (
	"math"
	"time"

	"github.com/quantforge/backcast/internal/core"
)

// tradingDaysPerYear is used to annualize bar-level return series.
const tradingDaysPerYear = 252

// Snapshot holds every performance statistic derived from one run.
type Snapshot struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	// TotalReturn is the net return over initial capital, in percent.
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	// MaxDrawdown is the largest peak-to-trough equity decline, in percent.
	MaxDrawdown  float64 `json:"max_drawdown"`
	ProfitFactor float64 `json:"profit_factor"`
	// Expectancy is the average P&L per trade in currency units.
	Expectancy    float64 `json:"expectancy"`
	KellyFraction float64 `json:"kelly_fraction"`
	RiskOfRuin    float64 `json:"risk_of_ruin"`
	SQN           float64 `json:"sqn"`
	TotalCost     float64 `json:"total_cost"`
}

// Compute derives a snapshot from closed trades and the equity curve.
// Both inputs are read-only; calling Compute twice on the same data yields
// an identical snapshot.
func Compute(trades []core.Trade, equity []core.EquityPoint, initialCapital float64) Snapshot {
	var s Snapshot
	s.TotalTrades = len(trades)

	var grossWin, grossLoss, totalPnL float64
	pnls := make([]float64, 0, len(trades))
	for _, t := range trades {
		pnls = append(pnls, t.PnL)
		totalPnL += t.PnL
		s.TotalCost += t.TotalCost
		if t.IsWin() {
			s.WinningTrades++
			grossWin += t.PnL
		} else {
			s.LosingTrades++
			grossLoss += -t.PnL
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.Expectancy = totalPnL / float64(s.TotalTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	if initialCapital > 0 {
		final := initialCapital + totalPnL
		if len(equity) > 0 {
			final = equity[len(equity)-1].Equity
		}
		s.TotalReturn = (final - initialCapital) / initialCapital * 100
		s.AnnualizedReturn = annualize(final/initialCapital, curveDuration(equity))
	}

	s.MaxDrawdown = maxDrawdown(equity) * 100
	if s.MaxDrawdown > 0 {
		s.CalmarRatio = s.AnnualizedReturn / s.MaxDrawdown
	}

	barReturns := equityReturns(equity)
	s.SharpeRatio = sharpe(barReturns)
	s.SortinoRatio = sortino(barReturns)
	s.SQN = sqn(pnls)
	s.KellyFraction = kelly(s.WinningTrades, s.LosingTrades, grossWin, grossLoss)
	s.RiskOfRuin = riskOfRuin(s.WinningTrades, s.LosingTrades, grossLoss, initialCapital)

	return s
}

// curveDuration returns the span of the equity curve in years.
func curveDuration(equity []core.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	span := equity[len(equity)-1].Time.Sub(equity[0].Time)
	return float64(span) / float64(365*24*time.Hour)
}

func annualize(growth, years float64) float64 {
	if years <= 0 || growth <= 0 {
		return 0
	}
	return (math.Pow(growth, 1/years) - 1) * 100
}

// maxDrawdown finds the largest peak-to-trough decline as a fraction.
func maxDrawdown(equity []core.EquityPoint) float64 {
	var maxDD, peak float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// equityReturns converts the equity curve into simple per-bar returns.
func equityReturns(equity []core.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var variance float64
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// sharpe computes the annualized Sharpe ratio over bar returns.
// Assumes a risk-free rate of 0.
func sharpe(returns []float64) float64 {
	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) * tradingDaysPerYear / (sd * math.Sqrt(tradingDaysPerYear))
}

// sortino is like sharpe but penalizes only downside deviation.
func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	var downside float64
	var n int
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			n++
		}
	}
	if n == 0 || downside == 0 {
		return 0
	}
	dd := math.Sqrt(downside / float64(len(returns)))
	return m * tradingDaysPerYear / (dd * math.Sqrt(tradingDaysPerYear))
}

// sqn is Van Tharp's system quality number: sqrt(N) * mean / stddev of
// per-trade P&L.
func sqn(pnls []float64) float64 {
	sd := stdDev(pnls)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(float64(len(pnls))) * mean(pnls) / sd
}

// kelly returns the Kelly criterion fraction: W - (1-W)/R where R is the
// win/loss payoff ratio.
func kelly(wins, losses int, grossWin, grossLoss float64) float64 {
	total := wins + losses
	if total == 0 || wins == 0 || losses == 0 || grossLoss == 0 {
		return 0
	}
	w := float64(wins) / float64(total)
	avgWin := grossWin / float64(wins)
	avgLoss := grossLoss / float64(losses)
	if avgLoss == 0 {
		return 0
	}
	r := avgWin / avgLoss
	return w - (1-w)/r
}

// riskOfRuin approximates the classic gambler's-ruin probability with the
// account measured in average-loss units: ((1-edge)/(1+edge))^units.
func riskOfRuin(wins, losses int, grossLoss, initialCapital float64) float64 {
	total := wins + losses
	if total == 0 || initialCapital <= 0 {
		return 0
	}
	w := float64(wins) / float64(total)
	edge := 2*w - 1
	if edge <= 0 {
		return 1
	}
	if losses == 0 || grossLoss == 0 {
		return 0
	}
	avgLoss := grossLoss / float64(losses)
	units := initialCapital / avgLoss
	ruin := math.Pow((1-edge)/(1+edge), units)
	return math.Min(1, math.Max(0, ruin))
}
