package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"amparo/internal/accounts"
	"amparo/internal/pii"
	"amparo/internal/platform/config"
	"amparo/internal/platform/logger"
	"amparo/internal/platform/postgres"
	"amparo/internal/records"
	"amparo/pkg/platform/audit"
	auditpostgres "amparo/pkg/platform/audit/store/postgres"
	"amparo/pkg/platform/tx"
)

// Deletes accounts whose cancellation grace window has elapsed. Meant to run
// from cron; safe to run as often as wanted.
func main() {
	dryRun := flag.Bool("dry-run", false, "report eligible accounts without deleting them")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry := pii.NewFieldRegistry()
	registry.Register(records.EntityPerson, records.PersonPIIFields...)
	registry.Register(records.EntityFamily, records.FamilyPIIFields...)
	trail := audit.NewTrail(auditpostgres.New(db), registry, cfg.Audit.LogPIIAccess, log)

	service := accounts.NewService(accounts.NewPostgresStore(db), trail, tx.NewSQLRunner(db), log)

	report, err := service.CleanupExpired(ctx, *dryRun)
	if err != nil {
		log.Error("cleanup failed", "error", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("%d accounts eligible for deletion (dry run)\n", report.Eligible)
		return
	}
	fmt.Printf("%d accounts eligible, %d deleted\n", report.Eligible, report.Deleted)
}
