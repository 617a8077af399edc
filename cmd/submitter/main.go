package main

import (
	"context"
	"flag"

	"github.com/mahatab-code/settlement-automation/config"
	"github.com/mahatab-code/settlement-automation/internal/app/repository"
	"github.com/mahatab-code/settlement-automation/internal/app/service"
	"github.com/mahatab-code/settlement-automation/internal/artifact"
	"github.com/mahatab-code/settlement-automation/internal/console"
	"github.com/mahatab-code/settlement-automation/internal/db"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

func main() {
	excludeFile := flag.String("exclude", "", "exclusion list file (merchant_name,store_name per line)")
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

	exclusionPath := *excludeFile
	if exclusionPath == "" {
		exclusionPath = cfg.Schedule.ExclusionFile
	}
	var exclusions *service.ExclusionList
	if exclusionPath != "" {
		exclusions, err = service.LoadExclusionList(exclusionPath)
		if err != nil {
			logger.Fatal("Failed to load exclusion list", err)
		}
		logger.Info("Exclusion list loaded", map[string]interface{}{
			"path":    exclusionPath,
			"entries": exclusions.Len(),
		})
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

	driver, err := console.NewChromedpDriver(&cfg.Browser)
	if err != nil {
		logger.Fatal("Failed to start browser", err)
	}
	defer driver.Close()

	scheduleRepo := repository.NewScheduleRepository(db.GetDB())
	runRepo := repository.NewRunRepository(db.GetDB())
	client := console.NewClient(driver, cfg.Admin, cfg.Browser)
	recorder := artifact.FromConfig(&cfg.Artifacts)

	submitter := service.NewSubmitterService(scheduleRepo, runRepo, client, recorder, loc)

	run, err := submitter.Run(context.Background(), exclusions)
	if err != nil {
		logger.Fatal("Settlement run failed", err)
	}

	logger.Info("Settlement run recorded", map[string]interface{}{
		"run_id":      run.ID,
		"queued":      run.Queued,
		"skipped":     run.Skipped,
		"excluded":    run.Excluded,
		"succeeded":   run.Succeeded,
		"no_eligible": run.NoEligible,
		"uncertain":   run.Uncertain,
		"errored":     run.Errored,
	})
}
