package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantforge/backcast/internal/archive"
	"github.com/quantforge/backcast/internal/config"
	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/data"
	"github.com/quantforge/backcast/internal/engine"
	"github.com/quantforge/backcast/internal/logger"
	"github.com/quantforge/backcast/internal/observability"
	"github.com/quantforge/backcast/internal/stats"
	"github.com/quantforge/backcast/internal/strategy"
)

// Flag overrides shared by the run commands.
var (
	dataPath     string
	dataSymbol   string
	strategyName string
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataPath, "data", "", "CSV file with historical bars")
	cmd.Flags().StringVar(&dataSymbol, "symbol", "", "symbol being simulated")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "signal generator name")
}

// app bundles everything a run command needs.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	metrics  *observability.Registry
	archiver *archive.Archiver
	bars     []core.Bar
	gen      engine.SignalGenerator
	engine   *engine.Engine
}

// setup loads configuration, applies flag overrides, and builds the shared
// run components.
func setup() (*app, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if dataPath != "" {
		cfg.Data.Path = dataPath
	}
	if dataSymbol != "" {
		cfg.Data.Symbol = dataSymbol
	}
	if strategyName != "" {
		cfg.Strategy.Name = strategyName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Must(debug, logLevel)
	metrics := observability.NewRegistry()

	bars, err := data.LoadCSV(cfg.Data.Path, cfg.Data.Symbol, log)
	if err != nil {
		return nil, fmt.Errorf("loading bars: %w", err)
	}
	metrics.AddBars(len(bars))

	gen, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return nil, err
	}
	instrumented := observability.InstrumentGenerator(gen, cfg.Strategy.Name, metrics)

	eng, err := engine.New(cfg.Engine, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		bars:    bars,
		gen:     instrumented,
		engine:  eng,
	}

	if cfg.Archive.Enabled {
		store, err := newStore(cfg.Archive)
		if err != nil {
			return nil, err
		}
		a.archiver = archive.NewArchiver(store)
	}

	return a, nil
}

func newStore(cfg config.ArchiveConfig) (archive.Store, error) {
	switch cfg.Type {
	case "", "localfs":
		return archive.NewLocalFS(cfg.Path)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

// runContext returns a context cancelled on SIGINT or SIGTERM, with the
// metrics endpoint serving in the background when enabled.
func (a *app) runContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if a.cfg.Metrics.Enabled {
		go func() {
			if err := a.metrics.Serve(ctx, a.cfg.Metrics.Addr, a.cfg.Metrics.Path); err != nil {
				a.log.Warn("metrics endpoint failed", zap.Error(err))
			}
		}()
	}
	return ctx, cancel
}

// archiveResult persists a result document when archiving is enabled.
func (a *app) archiveResult(ctx context.Context, kind string, v any) {
	if a.archiver == nil {
		return
	}
	path, err := a.archiver.SaveResult(ctx, kind, a.cfg.Data.Symbol, v)
	if err != nil {
		a.log.Warn("archiving result failed", zap.Error(err))
		return
	}
	a.log.Info("result archived", zap.String("path", path))
}

// printMetrics renders a snapshot; percentage fields arrive already scaled.
func printMetrics(w io.Writer, m stats.Snapshot) {
	fmt.Fprintf(w, "Trades:             %d (%d won / %d lost, win rate %.1f%%)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate)
	fmt.Fprintf(w, "Total return:       %.2f%%\n", m.TotalReturn)
	fmt.Fprintf(w, "Annualized return:  %.2f%%\n", m.AnnualizedReturn)
	fmt.Fprintf(w, "Sharpe ratio:       %.2f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Sortino ratio:      %.2f\n", m.SortinoRatio)
	fmt.Fprintf(w, "Calmar ratio:       %.2f\n", m.CalmarRatio)
	fmt.Fprintf(w, "Max drawdown:       %.2f%%\n", m.MaxDrawdown)
	fmt.Fprintf(w, "Profit factor:      %.2f\n", m.ProfitFactor)
	fmt.Fprintf(w, "Expectancy:         %.2f\n", m.Expectancy)
	fmt.Fprintf(w, "Kelly fraction:     %.3f\n", m.KellyFraction)
	fmt.Fprintf(w, "Risk of ruin:       %.4f\n", m.RiskOfRuin)
	fmt.Fprintf(w, "SQN:                %.2f\n", m.SQN)
	fmt.Fprintf(w, "Total costs:        %.2f\n", m.TotalCost)
}
