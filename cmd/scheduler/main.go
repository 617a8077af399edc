package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahatab-code/settlement-automation/config"
	"github.com/mahatab-code/settlement-automation/internal/app/controller"
	"github.com/mahatab-code/settlement-automation/internal/app/repository"
	"github.com/mahatab-code/settlement-automation/internal/app/service"
	"github.com/mahatab-code/settlement-automation/internal/artifact"
	"github.com/mahatab-code/settlement-automation/internal/console"
	"github.com/mahatab-code/settlement-automation/internal/db"
	"github.com/mahatab-code/settlement-automation/internal/router"
	"github.com/mahatab-code/settlement-automation/internal/scheduler"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		// fatal before any browser or database session is opened
		logger.Fatal("Configuration invalid", err)
	}

	logLevel := "info"
	logFormat := "json"
	if cfg.App.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting settlement automation daemon", map[string]interface{}{
		"environment": cfg.App.Environment,
		"timezone":    cfg.Schedule.Timezone,
		"ops_port":    cfg.Ops.Port,
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
	recorder := artifact.FromConfig(&cfg.Artifacts)

	// Each nightly job opens its own browser session and closes it when
	// done; the daemon never keeps Chrome alive between runs.
	importJob := func(ctx context.Context) error {
		driver, err := console.NewChromedpDriver(&cfg.Browser)
		if err != nil {
			return err
		}
		defer driver.Close()
		client := console.NewClient(driver, cfg.Admin, cfg.Browser)

		nowLocal := time.Now().In(loc)
		schedulePath, err := client.DownloadSettlementDayReport(ctx, nowLocal.Weekday())
		if err != nil {
			return err
		}
		rows, err := service.ReadScheduleReport(schedulePath)
		if err != nil {
			return err
		}
		if _, err := importer.ImportSchedule(rows); err != nil {
			return err
		}

		trxPath, err := client.DownloadTransactionReport(ctx, nowLocal.AddDate(0, 0, -1))
		if err != nil {
			logger.Error("Failed to download transaction report, skipping activation", err)
			return nil
		}
		trxRows, err := service.ReadTransactionReport(trxPath)
		if err != nil {
			return err
		}
		_, err = importer.ActivateFromTransactions(trxRows)
		return err
	}

	submitJob := func(ctx context.Context) error {
		var exclusions *service.ExclusionList
		if cfg.Schedule.ExclusionFile != "" {
			// re-read each night so operators can edit it without a restart
			exclusions, err = service.LoadExclusionList(cfg.Schedule.ExclusionFile)
			if err != nil {
				return err
			}
		}

		driver, err := console.NewChromedpDriver(&cfg.Browser)
		if err != nil {
			return err
		}
		defer driver.Close()
		client := console.NewClient(driver, cfg.Admin, cfg.Browser)

		submitter := service.NewSubmitterService(scheduleRepo, runRepo, client, recorder, loc)
		_, err = submitter.Run(ctx, exclusions)
		return err
	}

	sched := scheduler.NewSettlementScheduler(loc, cfg.Schedule.ImportCron, cfg.Schedule.SubmitCron, importJob, submitJob)
	if err := sched.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}
	defer sched.Stop()

	runController := controller.NewRunController(runRepo)
	r := router.NewRouter(runController, cfg)
	engine := r.Setup()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Ops.Port)
		logger.Info("Ops server started", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start ops server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")
}
