package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over historical bars",
	Long:  "Simulate a strategy against historical data with realistic execution costs and show performance statistics",
	RunE:  runBacktest,
}

func init() {
	addRunFlags(backtestCmd)
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx, cancel := a.runContext()
	defer cancel()

	fmt.Println("=== backcast Backtest ===")
	fmt.Printf("Strategy: %s\n", a.cfg.Strategy.Name)
	fmt.Printf("Symbol:   %s\n", a.cfg.Data.Symbol)
	fmt.Printf("Bars:     %d\n", len(a.bars))
	fmt.Println()

	started := time.Now()
	result, err := a.engine.Run(ctx, a.bars, a.gen)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		a.metrics.RecordBacktest("error", elapsed)
		return fmt.Errorf("backtest failed: %w", err)
	}
	a.metrics.RecordBacktest("ok", elapsed)
	for _, trade := range result.Trades {
		a.metrics.RecordTrade(string(trade.ExitReason))
	}

	fmt.Printf("Period:   %s to %s\n",
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))
	printMetrics(os.Stdout, result.Metrics)

	a.archiveResult(ctx, "backtest", result)
	return nil
}
