package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantforge/backcast/internal/montecarlo"
)

var (
	mcSimulations int
	mcSeed        int64
	mcNoBootstrap bool
)

var montecarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Run Monte Carlo analysis over backtest trades",
	Long: `Run the backtest, then bootstrap-resample its closed trades to
estimate the distribution of returns, drawdowns, and the probability of
ruin`,
	RunE: runMonteCarlo,
}

func init() {
	addRunFlags(montecarloCmd)
	montecarloCmd.Flags().IntVar(&mcSimulations, "simulations", 0, "number of resampling trials")
	montecarloCmd.Flags().Int64Var(&mcSeed, "seed", 0, "random seed for reproducible trials")
	montecarloCmd.Flags().BoolVar(&mcNoBootstrap, "no-bootstrap", false, "replay the historical trade order instead of resampling")
	rootCmd.AddCommand(montecarloCmd)
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	mcCfg := a.cfg.MonteCarlo
	mcCfg.InitialCapital = a.cfg.Engine.InitialCapital
	if mcSimulations > 0 {
		mcCfg.Simulations = mcSimulations
	}
	if cmd.Flags().Changed("seed") {
		mcCfg.Seed = mcSeed
	}
	if mcNoBootstrap {
		mcCfg.Bootstrap = false
	}

	ctx, cancel := a.runContext()
	defer cancel()

	backtest, err := a.engine.Run(ctx, a.bars, a.gen)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Println("=== backcast Monte Carlo ===")
	fmt.Printf("Strategy:    %s\n", a.cfg.Strategy.Name)
	fmt.Printf("Symbol:      %s\n", a.cfg.Data.Symbol)
	fmt.Printf("Trades:      %d\n", len(backtest.Trades))
	fmt.Printf("Simulations: %d (seed %d, bootstrap %v)\n", mcCfg.Simulations, mcCfg.Seed, mcCfg.Bootstrap)
	fmt.Println()

	sim := montecarlo.New(a.log)
	result, err := sim.Run(ctx, backtest.Trades, mcCfg)
	if err != nil {
		return fmt.Errorf("monte carlo failed: %w", err)
	}
	a.metrics.AddTrials(result.Simulations)

	fmt.Println("                      p5      p25      p50      p75      p95")
	fmt.Printf("Return    %%    %8.2f %8.2f %8.2f %8.2f %8.2f\n",
		result.Return.P5*100, result.Return.P25*100, result.Return.P50*100,
		result.Return.P75*100, result.Return.P95*100)
	fmt.Printf("Drawdown  %%    %8.2f %8.2f %8.2f %8.2f %8.2f\n",
		result.Drawdown.P5*100, result.Drawdown.P25*100, result.Drawdown.P50*100,
		result.Drawdown.P75*100, result.Drawdown.P95*100)
	fmt.Println()
	fmt.Printf("Probability of profit: %.1f%%\n", result.ProbabilityOfProfit*100)
	fmt.Printf("Probability of ruin:   %.1f%%\n", result.ProbabilityOfRuin*100)
	if result.Partial {
		fmt.Println("NOTE: run aborted early, aggregates cover completed trials only")
	}

	a.archiveResult(ctx, "montecarlo", result)
	return nil
}
