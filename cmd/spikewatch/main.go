package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gopinathshiva/spikewatch/internal/config"
	"github.com/gopinathshiva/spikewatch/internal/dashboard"
	"github.com/gopinathshiva/spikewatch/internal/feed"
	"github.com/gopinathshiva/spikewatch/internal/monitor"
	"github.com/gopinathshiva/spikewatch/internal/provider"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New(os.Stdout, "[SPIKEWATCH] ", log.LstdFlags|log.Lshortfile)
	logger.Printf("Starting spike monitor in %s mode", cfg.Environment.Mode)
	if cfg.IsSandbox() {
		logger.Println("Sandbox mode: pointing at sandbox provider endpoints")
	}

	client := provider.NewClientWithTimeout(cfg.Provider.APIKey, cfg.Provider.APIEndpoint, cfg.ProviderTimeout())
	mktData := provider.NewCircuitBreakerProvider(client)

	feedClient := feed.NewClient(cfg.Feed.URL, logger)
	session := monitor.NewSession(mktData, feedClient, logger, cfg.StaleAfter())
	feedClient.SetHandler(session.HandleQuote)

	dashLogger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		dashLogger.SetLevel(level)
	}
	server := dashboard.NewServer(dashboard.Config{
		Port:      cfg.Dashboard.Port,
		AuthToken: cfg.Dashboard.AuthToken,
	}, session, dashLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := feedClient.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Println("Shutdown signal received, stopping session...")
		session.Stop()
		return server.Shutdown(context.Background())
	})

	// Optionally start monitoring straight from config; the dashboard can
	// also start and stop sessions at runtime.
	if cfg.Monitor.Underlying != "" && cfg.Monitor.Expiry != "" {
		if id, err := session.Start(ctx, cfg.Monitor); err != nil {
			logger.Printf("Initial session start failed: %v", err)
		} else {
			logger.Printf("Initial session started: %s", id)
		}
	}

	if err := g.Wait(); err != nil {
		logger.Fatalf("Monitor error: %v", err)
	}
	logger.Println("Monitor stopped successfully")
}
