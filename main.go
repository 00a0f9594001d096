package main

import (
	"fmt"
	"os"

	"github.com/username/tradeledger/src/config"
	"github.com/username/tradeledger/src/database"
	"github.com/username/tradeledger/src/handlers"
	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/parsers"
	"github.com/username/tradeledger/src/processors"
	"github.com/username/tradeledger/src/services"
	"github.com/username/tradeledger/src/store"
)

const version = "1.0.0"

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel, config.Cfg.LogFormat)
	logger.L.Debug("tradeledger starting", "version", version, "store", config.Cfg.TradesIndexPath)

	registry := parsers.NewDefaultRegistry()
	repo := store.NewRepository(config.Cfg.TradesIndexPath, config.Cfg.StoreLockTimeout)
	reportCache := services.OpenReportCache(config.Cfg.ReportCachePath)

	ledger, err := database.Open(config.Cfg.AuditDBPath)
	if err != nil {
		logger.L.Warn("Audit ledger unavailable, imports will not be recorded", "path", config.Cfg.AuditDBPath, "error", err)
	} else {
		defer ledger.Close()
	}

	analyticsService := services.NewAnalyticsService(repo, config.Cfg.AccountConfigPath, reportCache, config.Cfg.ReportCachePath)
	importService := services.NewImportService(
		registry,
		processors.NewTransactionProcessor(),
		processors.NewPositionMatcher(),
		repo,
		ledger,
		analyticsService,
		config.Cfg.AccountConfigPath,
		config.Cfg.MaxImportSizeBytes,
	)
	schemaService := services.NewSchemaService(repo)
	reportService := services.NewReportService(repo)
	historyService := services.NewHistoryService(ledger)

	app := handlers.NewApp(
		version,
		handlers.NewImportHandler(importService),
		handlers.NewAnalyticsHandler(analyticsService, reportService),
		handlers.NewSchemaHandler(schemaService),
		handlers.NewBrokerHandler(registry, historyService),
	)

	if err := app.Run(os.Args); err != nil {
		logger.L.Error("Command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		if ledger != nil {
			ledger.Close()
		}
		os.Exit(1)
	}
}
