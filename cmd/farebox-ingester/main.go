package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/transitpi/farebox/internal/config"
	"github.com/transitpi/farebox/internal/db"
	"github.com/transitpi/farebox/internal/farebox/directory"
	"github.com/transitpi/farebox/internal/farebox/reconcile"
	"github.com/transitpi/farebox/internal/farebox/store"
	"github.com/transitpi/farebox/internal/farebox/store/csvlog"
	"github.com/transitpi/farebox/internal/farebox/store/sqlite"
	"github.com/transitpi/farebox/internal/ingest"
	"github.com/transitpi/farebox/internal/metrics"
	"github.com/transitpi/farebox/internal/publisher"
	"github.com/transitpi/farebox/internal/transport"
)

func main() {
	logger := log.New(os.Stdout, "farebox-ingester ", log.LstdFlags|log.LUTC)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names, err := directory.Load(cfg.DirectoryPath)
	if err != nil {
		logger.Fatalf("directory: %v", err)
	}
	logger.Printf("directory loaded: %d entries from %s", names.Len(), cfg.DirectoryPath)

	events := csvlog.NewEventLog(cfg.EventLogPath)
	ledger := csvlog.NewTripLedger(cfg.TripLogPath)

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector()
		metricsSrv := collector.Serve(cfg.MetricsAddr, logger)
		defer metricsSrv.Close()
	}

	var mirror store.Mirror
	if cfg.Mirror {
		sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
		if err != nil {
			logger.Fatalf("open mirror db: %v", err)
		}
		defer sqlDB.Close()

		writer := db.NewWorker(sqlDB)
		defer writer.Close()

		mirror = sqlite.NewMirror(sqlDB, writer)
		logger.Printf("archival mirror enabled at %s", cfg.DBPath)
	}

	var pub ingest.Publisher
	if cfg.NATSURL != "" {
		var pubMetrics publisher.Metrics
		if collector != nil {
			pubMetrics = collector
		}
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, pubMetrics, logger)
		if err != nil {
			logger.Fatalf("nats publisher: %v", err)
		}
		defer np.Close()
		pub = np
		logger.Printf("publishing snapshots to %s", cfg.NATSURL)
	}

	source, closeSource, err := openSource(cfg, logger)
	if err != nil {
		logger.Fatalf("source: %v", err)
	}
	defer closeSource()

	ing := ingest.New(ingest.Dependencies{
		Source:     source,
		Reconciler: reconcile.New(cfg.Fare, names),
		Events:     events,
		Ledger:     ledger,
		Mirror:     mirror,
		Publisher:  pub,
		Metrics:    ingestMetrics(collector),
		Logger:     logger,
	})

	logger.Printf("ingesting from %s transport", cfg.Transport)
	if err := ing.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("ingest: %v", err)
	}
	logger.Printf("shutting down")
}

func openSource(cfg config.Config, logger *log.Logger) (transport.LineSource, func(), error) {
	if cfg.Transport == "nats" {
		src, err := transport.NewNATSSource(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}

	if cfg.SourcePath == "-" {
		return transport.NewReaderSource(os.Stdin), func() {}, nil
	}
	f, err := os.Open(cfg.SourcePath)
	if err != nil {
		return nil, nil, err
	}
	return transport.NewReaderSource(f), func() { _ = f.Close() }, nil
}

// ingestMetrics narrows the collector to the ingester's interface
// without handing it a typed-nil when metrics are disabled.
func ingestMetrics(c *metrics.Collector) ingest.Metrics {
	if c == nil {
		return nil
	}
	return c
}
