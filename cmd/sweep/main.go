package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/packrescue/packrescue-backend/internal/cron"
	"github.com/packrescue/packrescue-backend/internal/reservation"
	"github.com/packrescue/packrescue-backend/pkg/config"
	"github.com/packrescue/packrescue-backend/pkg/db"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep"})

	_ = godotenv.Load()

	dryRun := flag.Bool("dry-run", false, "count overdue orders without expiring them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sweep",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sweeper, err := cron.NewSweeper(reservation.NewRepository(dbClient.DB()), cfg.Sweep.BatchSize)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper", err)
		os.Exit(1)
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"dry_run": *dryRun,
	})

	count, err := sweeper.Sweep(ctx, time.Now().UTC(), *dryRun)
	if err != nil {
		logg.Error(ctx, "sweep failed", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("%d orders overdue\n", count)
		return
	}
	fmt.Printf("%d orders expired\n", count)
}
