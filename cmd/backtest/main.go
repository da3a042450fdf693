package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"cascade-lab/internal/backtest"
	"cascade-lab/internal/domain"
	"cascade-lab/internal/reporting"
	chstore "cascade-lab/internal/storage/clickhouse"
	pgstore "cascade-lab/internal/storage/postgres"
)

func main() {
	symbol := flag.String("symbol", "BTC", "Symbol to backtest")
	source := flag.String("source", "synthetic", "Data source: synthetic, files, clickhouse")
	dir := flag.String("dir", "", "Directory of recorded .parquet/.csv files (files source)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (clickhouse source)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for cascade ground truth (optional, curated catalog otherwise)")

	start := flag.Float64("start", 0, "Range start, epoch seconds (0 = unbounded)")
	end := flag.Float64("end", 0, "Range end, epoch seconds (0 = unbounded)")
	seed := flag.Int64("seed", 42, "Seed for the synthetic generator")

	capital := flag.Float64("capital", backtest.DefaultInitialCapital, "Initial simulation capital (USD)")
	positionFraction := flag.Float64("position-fraction", backtest.DefaultPositionFraction, "Fraction of capital per short entry")

	noFallback := flag.Bool("no-fallback", false, "Fail instead of degrading to the synthetic generator")
	outputJSON := flag.Bool("json", false, "Output the report as JSON instead of Markdown")
	outputPath := flag.String("output", "", "Write the report to a file instead of stdout")
	tradesCSV := flag.String("trades-csv", "", "Write the trade log as CSV to this file")
	logLevel := flag.String("log-level", "info", "Log level")

	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	runRange := backtest.Range{Start: *start, End: *end}
	cascades := loadCascades(ctx, logger, *postgresDSN)

	loader, cleanup, err := buildLoader(ctx, *source, *symbol, *dir, *clickhouseDSN, *seed, runRange, cascades)
	if err != nil {
		logger.Fatalf("configure source: %v", err)
	}
	defer cleanup()

	var fallback backtest.Loader
	if !*noFallback && *source != "synthetic" {
		fallback = syntheticLoader(*symbol, *seed, runRange, cascades)
	}

	harness := backtest.New(backtest.Config{
		Symbol:           *symbol,
		Range:            runRange,
		Loader:           loader,
		Fallback:         fallback,
		Cascades:         cascades,
		InitialCapital:   *capital,
		PositionFraction: *positionFraction,
		Logger:           logger,
	})

	result, err := harness.Run(ctx)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	report := reporting.NewGenerator().Generate(result)

	var rendered string
	if *outputJSON {
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			logger.Fatalf("marshal report: %v", err)
		}
		rendered = string(b) + "\n"
	} else {
		rendered = reporting.RenderMarkdown(report)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, []byte(rendered), 0o644); err != nil {
			logger.Fatalf("write report: %v", err)
		}
		logger.WithField("path", *outputPath).Info("report written")
	} else {
		fmt.Print(rendered)
	}

	if *tradesCSV != "" {
		csv := reporting.RenderTradesCSV(result.Simulation.Trades)
		if err := os.WriteFile(*tradesCSV, []byte(csv), 0o644); err != nil {
			logger.Fatalf("write trade log: %v", err)
		}
		logger.WithField("path", *tradesCSV).Info("trade log written")
	}
}

// buildLoader selects the primary data source.
func buildLoader(ctx context.Context, source, symbol, dir, dsn string, seed int64, r backtest.Range, cascades []domain.CascadeEvent) (backtest.Loader, func(), error) {
	noop := func() {}

	switch strings.ToLower(source) {
	case "synthetic":
		return syntheticLoader(symbol, seed, r, cascades), noop, nil

	case "files":
		if dir == "" {
			return nil, noop, fmt.Errorf("--dir is required for the files source")
		}
		return backtest.NewFileLoader(dir), noop, nil

	case "clickhouse":
		if dsn == "" {
			return nil, noop, fmt.Errorf("--clickhouse-dsn is required for the clickhouse source")
		}
		conn, err := chstore.NewConn(ctx, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to clickhouse: %w", err)
		}
		store := chstore.NewLiquidationStore(conn)
		return backtest.NewStoreLoader(store, symbol), func() { conn.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown source %q (want synthetic, files or clickhouse)", source)
	}
}

// syntheticLoader aligns generated spikes with the cascade windows that
// overlap the run range, so ground-truth labels have matching activity.
func syntheticLoader(symbol string, seed int64, r backtest.Range, cascades []domain.CascadeEvent) *backtest.SyntheticLoader {
	var spikes []backtest.SyntheticSpike
	for _, c := range cascades {
		if r.Contains(c.Timestamp) || r.Contains(c.End()) {
			spikes = append(spikes, backtest.SyntheticSpike{
				Start:    c.Timestamp,
				Duration: c.DurationSeconds,
			})
		}
	}
	return backtest.NewSyntheticLoader(symbol, seed, spikes)
}

// loadCascades reads ground truth from Postgres when a DSN is given,
// otherwise the curated catalog.
func loadCascades(ctx context.Context, logger *logrus.Logger, dsn string) []domain.CascadeEvent {
	if dsn == "" {
		return domain.KnownCascades()
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewCascadeEventStore(pool)
	stored, err := store.GetAll(ctx)
	if err != nil {
		logger.Fatalf("load cascades: %v", err)
	}
	if len(stored) == 0 {
		logger.Warn("no cascades in postgres, using curated catalog")
		return domain.KnownCascades()
	}

	cascades := make([]domain.CascadeEvent, 0, len(stored))
	for _, c := range stored {
		cascades = append(cascades, *c)
	}
	return cascades
}
