package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"cascade-lab/internal/config"
	"cascade-lab/internal/ingestion"
	"cascade-lab/internal/logging"
	"cascade-lab/internal/observability"
	"cascade-lab/internal/pubsub"
	natspub "cascade-lab/internal/pubsub/nats"
	"cascade-lab/internal/risk"
	"cascade-lab/internal/storage"
	chstore "cascade-lab/internal/storage/clickhouse"
	"cascade-lab/internal/storage/migrations"
	"cascade-lab/internal/velocity"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}
	log := logging.Component(logger, "detector")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		if cfg.App.ShutdownTimeout > 0 {
			time.Sleep(cfg.App.ShutdownTimeout)
			log.Fatal("shutdown timed out")
		}
	}()

	engine := velocity.NewEngineWithCapacity(cfg.Engine.MaxEventsPerSymbol)
	calculator := risk.NewCalculator()

	var broadcaster pubsub.Broadcaster = pubsub.Noop{}
	if cfg.PubSub.NATS.URL != "" {
		client, err := natspub.New(&cfg.PubSub.NATS, logger)
		if err != nil {
			log.WithError(err).Fatal("connect to NATS")
		}
		defer client.Close()
		broadcaster = client
	} else {
		log.Warn("no NATS url configured, assessments will not be broadcast")
	}

	var store storage.LiquidationStore
	if cfg.Stores.ClickHouse.DSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Stores.ClickHouse.DSN)
		if err != nil {
			log.WithError(err).Fatal("connect to ClickHouse")
		}
		defer conn.Close()
		store = chstore.NewLiquidationStore(conn)
	} else {
		log.Warn("no ClickHouse DSN configured, liquidations will not be persisted")
	}

	if cfg.Metrics.Prometheus != "" {
		go serveMetrics(log, cfg.Metrics.Prometheus)
	}

	source := ingestion.NewWSEventSource(cfg.Ingest, logger)
	defer source.Close()

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		Engine:       engine,
		Calculator:   calculator,
		Broadcaster:  broadcaster,
		Store:        store,
		EngineConfig: cfg.Engine,
		WriterConfig: cfg.Stores.ClickHouse.Writer,
		Logger:       logger,
	})

	log.WithFields(logrus.Fields{
		"endpoint": cfg.Ingest.Endpoint,
		"symbols":  cfg.Ingest.Symbols,
	}).Info("detector starting")

	runErr := manager.Run(ctx, source)

	if err := source.Close(); err != nil {
		log.WithError(err).Warn("close feed source")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.WithError(runErr).Fatal("detector stopped")
	}
	log.Info("detector stopped")
}

func serveMetrics(log *logrus.Entry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.WithField("addr", addr).Info("serving metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("metrics server failed")
	}
}
