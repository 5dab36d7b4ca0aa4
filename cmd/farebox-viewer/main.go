package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transitpi/farebox/internal/config"
	"github.com/transitpi/farebox/internal/farebox/directory"
	"github.com/transitpi/farebox/internal/farebox/service"
	"github.com/transitpi/farebox/internal/farebox/store/csvlog"
	"github.com/transitpi/farebox/internal/httpapi"
)

func main() {
	logger := log.New(os.Stdout, "farebox-viewer ", log.LstdFlags|log.LUTC)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	names, err := directory.Load(cfg.DirectoryPath)
	if err != nil {
		logger.Fatalf("directory: %v", err)
	}
	logger.Printf("directory loaded: %d entries from %s", names.Len(), cfg.DirectoryPath)

	events := csvlog.NewEventLog(cfg.EventLogPath)
	ledger := csvlog.NewTripLedger(cfg.TripLogPath)

	status := service.NewStatusService(events, ledger, cfg.Fare, names)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:          logger,
		Addr:            cfg.HTTPAddr,
		Status:          status,
		MaxRecentEvents: cfg.MaxRecentEvents,
		MaxRecentTrips:  cfg.MaxRecentTrips,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
