package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"amparo/internal/platform/config"
	"amparo/internal/platform/logger"
	"amparo/internal/platform/postgres"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the migration files")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

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

	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(*dir))
	if err != nil {
		log.Error("migration setup failed", "error", err)
		os.Exit(1)
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			log.Error("migrate up failed", "error", err)
			os.Exit(1)
		}
		for _, r := range results {
			fmt.Printf("applied %s\n", r.Source.Path)
		}
		if len(results) == 0 {
			fmt.Println("database is up to date")
		}
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			log.Error("migrate down failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %s\n", result.Source.Path)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			log.Error("migrate status failed", "error", err)
			os.Exit(1)
		}
		for _, s := range statuses {
			state := "pending"
			if s.State == goose.StateApplied {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, s.Source.Path)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down or status)\n", command)
		os.Exit(2)
	}
}
