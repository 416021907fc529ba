package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readysetcloud/newsletter-service-sub011/internal/api"
	"github.com/readysetcloud/newsletter-service-sub011/internal/cleanup"
	"github.com/readysetcloud/newsletter-service-sub011/internal/config"
	"github.com/readysetcloud/newsletter-service-sub011/internal/contacts"
	"github.com/readysetcloud/newsletter-service-sub011/internal/events"
	"github.com/readysetcloud/newsletter-service-sub011/internal/identity"
	"github.com/readysetcloud/newsletter-service-sub011/internal/ledger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/notify"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/awsx"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
	"github.com/readysetcloud/newsletter-service-sub011/internal/unsubscribe"
)

func main() {
	logger.SetLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	clients, err := awsx.New(ctx, cfg.AWS)
	if err != nil {
		logger.Error("failed to initialize aws clients", "err", err)
		os.Exit(1)
	}

	codec, err := identity.NewTokenCodecFromHex(cfg.Unsubscribe.TokenKeyHex)
	if err != nil {
		logger.Error("failed to initialize unsubscribe token codec", "err", err)
		os.Exit(1)
	}

	tenantStore := tenant.NewStore(clients.DynamoDB, cfg.Ledger.TableName)
	ledgerStore := ledger.NewStore(clients.DynamoDB, cfg.Ledger.TableName)
	lists := contacts.NewSESLists(clients.SES)

	var reader tenant.Getter = tenantStore
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("invalid redis url", "err", err)
			os.Exit(1)
		}
		reader = tenant.NewCache(tenantStore, redis.NewClient(opts), cfg.Redis.TenantTTL())
		logger.Info("tenant cache enabled", "ttl", cfg.Redis.TenantTTL())
	}
	directory := tenant.NewDirectory(reader, tenantStore)

	publisher := events.NewPublisher(clients.EventBridge, cfg.Events.BusName, cfg.Events.Source)
	notifier := notify.New(publisher)
	engine := unsubscribe.NewEngine(directory, lists, ledgerStore)
	runner := cleanup.NewRunner(ledgerStore, lists, directory, notifier, cfg.Cleanup.Concurrency, cfg.Cleanup.MaxRetries)

	handlers := api.NewHandlers(directory, engine, codec, notifier, lists, directory, runner)
	server := api.NewServer(cfg.Server, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server exited", "err", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
