// The sweeper binary runs one reconciliation sweep across all tenants and
// exits. Scheduled monthly (EventBridge Scheduler invoking an ECS task in
// production, cron anywhere else).
package main

import (
	"context"
	"os"

	"github.com/readysetcloud/newsletter-service-sub011/internal/config"
	"github.com/readysetcloud/newsletter-service-sub011/internal/contacts"
	"github.com/readysetcloud/newsletter-service-sub011/internal/ledger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/awsx"
	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
	"github.com/readysetcloud/newsletter-service-sub011/internal/sweeper"
	"github.com/readysetcloud/newsletter-service-sub011/internal/tenant"
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

	tenantStore := tenant.NewStore(clients.DynamoDB, cfg.Ledger.TableName)
	ledgerStore := ledger.NewStore(clients.DynamoDB, cfg.Ledger.TableName)
	lists := contacts.NewSESLists(clients.SES)

	s := sweeper.New(tenantStore, ledgerStore, lists, cfg.Sweeper.StalenessDays)

	report, err := s.Run(ctx)
	if err != nil {
		logger.Error("sweep failed", "err", err)
		os.Exit(1)
	}

	reports := sweeper.NewReportStore(clients.S3, cfg.Sweeper.ReportBucket)
	if key, err := reports.Save(ctx, report); err != nil {
		logger.Error("failed to archive sweep report", "err", err)
	} else if key != "" {
		logger.Info("sweep report archived", "key", key)
	}

	if len(report.TenantErrors) > 0 {
		// Partial failure still exits nonzero so the scheduler alerts.
		os.Exit(2)
	}
}
