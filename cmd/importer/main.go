package main

import (
	"context"
	"flag"
	"time"

	"github.com/mahatab-code/settlement-automation/config"
	"github.com/mahatab-code/settlement-automation/internal/app/repository"
	"github.com/mahatab-code/settlement-automation/internal/app/service"
	"github.com/mahatab-code/settlement-automation/internal/console"
	"github.com/mahatab-code/settlement-automation/internal/db"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

func main() {
	reportFile := flag.String("file", "", "already-downloaded settlement-day XLSX (skips the browser)")
	trxFile := flag.String("trx-file", "", "already-downloaded merchant-daily-trx XLSX")
	skipTrx := flag.Bool("skip-trx", false, "do not download or apply the transaction report")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		// fatal before any browser or database session is opened
		logger.Fatal("Configuration invalid", err)
	}

	logLevel := "info"
	if cfg.App.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console",
		EnableColor: true,
	})

	loc, err := cfg.Schedule.Location()
	if err != nil {
		logger.Fatal("Failed to resolve schedule timezone", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	scheduleRepo := repository.NewScheduleRepository(db.GetDB())
	runRepo := repository.NewRunRepository(db.GetDB())
	importer := service.NewImporterService(scheduleRepo, runRepo)

	ctx := context.Background()
	nowLocal := time.Now().In(loc)

	schedulePath := *reportFile
	trxPath := *trxFile

	if schedulePath == "" || (trxPath == "" && !*skipTrx) {
		driver, err := console.NewChromedpDriver(&cfg.Browser)
		if err != nil {
			logger.Fatal("Failed to start browser", err)
		}
		defer driver.Close()

		client := console.NewClient(driver, cfg.Admin, cfg.Browser)

		if schedulePath == "" {
			schedulePath, err = client.DownloadSettlementDayReport(ctx, nowLocal.Weekday())
			if err != nil {
				logger.Fatal("Failed to download settlement-day report", err)
			}
		}
		if trxPath == "" && !*skipTrx {
			yesterday := nowLocal.AddDate(0, 0, -1)
			trxPath, err = client.DownloadTransactionReport(ctx, yesterday)
			if err != nil {
				// the schedule import can still run; activation just waits a day
				logger.Error("Failed to download transaction report, skipping activation", err)
				trxPath = ""
			}
		}
	}

	rows, err := service.ReadScheduleReport(schedulePath)
	if err != nil {
		logger.Fatal("Failed to parse settlement-day report", err)
	}

	run, err := importer.ImportSchedule(rows)
	if err != nil {
		logger.Fatal("Schedule import failed", err)
	}
	logger.Info("Import run recorded", map[string]interface{}{
		"run_id":    run.ID,
		"rows_seen": run.RowsSeen,
		"created":   run.Created,
		"updated":   run.Updated,
		"skipped":   run.Skipped,
	})

	if trxPath != "" {
		trxRows, err := service.ReadTransactionReport(trxPath)
		if err != nil {
			logger.Fatal("Failed to parse transaction report", err)
		}
		activated, err := importer.ActivateFromTransactions(trxRows)
		if err != nil {
			logger.Fatal("Schedule activation failed", err)
		}
		logger.Info("Schedule activation finished", map[string]interface{}{
			"activated": activated,
		})
	}
}
