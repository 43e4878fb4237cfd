package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"amparo/internal/pii"
	"amparo/internal/platform/config"
	"amparo/internal/platform/logger"
	"amparo/internal/platform/postgres"
	platformredis "amparo/internal/platform/redis"
	"amparo/internal/records"
	"amparo/internal/retention"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/platform/audit"
	auditpostgres "amparo/pkg/platform/audit/store/postgres"
	"amparo/pkg/platform/tx"
)

// Exit codes: 0 success, 1 failure, 2 purge aborted at the confirmation
// prompt.
func main() {
	dryRun := flag.Bool("dry-run", false, "report eligible counts without deleting anything")
	force := flag.Bool("force", false, "skip the confirmation prompt (implied in scheduled runs)")
	entity := flag.String("entity", "", "restrict the run to one entity type (comma-separated for several)")
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

	var lock *retention.Lock
	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		lock = retention.NewLock(rdb.Client)
	}

	registry := pii.NewFieldRegistry()
	registry.Register(records.EntityPerson, records.PersonPIIFields...)
	registry.Register(records.EntityFamily, records.FamilyPIIFields...)
	trail := audit.NewTrail(auditpostgres.New(db), registry, cfg.Audit.LogPIIAccess, log)

	engine := retention.NewEngine(
		retention.NewPostgresStore(db),
		trail,
		tx.NewSQLRunner(db),
		lock,
		retention.NewPolicy(cfg.Retention),
		log,
	)

	var entities []string
	if *entity != "" {
		for _, et := range strings.Split(*entity, ",") {
			entities = append(entities, strings.TrimSpace(et))
		}
	}

	report, err := engine.Run(ctx, retention.Options{
		DryRun:   *dryRun,
		Force:    *force,
		Entities: entities,
		Confirm:  confirmOnTerminal,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePurgeAborted) {
			fmt.Fprintln(os.Stderr, "purge aborted: confirmation declined")
			os.Exit(2)
		}
		log.Error("retention run failed", "error", err)
		os.Exit(1)
	}

	printReport(report)
}

func confirmOnTerminal(report retention.Report) bool {
	printReport(&report)
	fmt.Printf("Permanently delete %d rows? This cannot be undone. [y/N]: ", report.TotalEligible())

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printReport(report *retention.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tCUTOFF\tELIGIBLE\tPURGED")
	for _, et := range retention.GovernedEntities {
		cutoff, ok := report.Cutoffs[et]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", et, cutoff.Format("2006-01-02"), report.Eligible[et], report.Purged[et])
	}
	w.Flush()
	if report.DryRun {
		fmt.Println("dry run: nothing was deleted")
	}
}
