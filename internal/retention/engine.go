package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	"amparo/pkg/platform/tx"
	"amparo/pkg/requestcontext"
)

// Store counts and irreversibly purges rows whose retention has elapsed.
type Store interface {
	CountExpired(ctx context.Context, entityType string, cutoff time.Time) (int64, error)
	PurgeExpired(ctx context.Context, entityType string, cutoff time.Time) (int64, error)
}

// Options controls a single engine run. Without Force the run asks Confirm
// before purging; a nil Confirm counts as declined. Scheduled runs pass
// Force.
type Options struct {
	DryRun   bool
	Force    bool
	Entities []string
	Confirm  func(Report) bool
}

// Report summarizes a run: eligible counts per entity type, and purged
// counts when the run was not a dry run.
type Report struct {
	RunID    string
	DryRun   bool
	Cutoffs  map[string]time.Time
	Eligible map[string]int64
	Purged   map[string]int64
}

func (r Report) TotalEligible() int64 {
	var total int64
	for _, n := range r.Eligible {
		total += n
	}
	return total
}

// Engine performs the retention purge. Each entity type is purged in its own
// transaction together with an audit entry describing the purge, so a
// failure in one type leaves the others untouched and the run can simply be
// repeated.
type Engine struct {
	store  Store
	trail  *audit.Trail
	runner tx.Runner
	lock   *Lock
	policy Policy
	logger *slog.Logger
}

func NewEngine(store Store, trail *audit.Trail, runner tx.Runner, lock *Lock, policy Policy, logger *slog.Logger) *Engine {
	return &Engine{store: store, trail: trail, runner: runner, lock: lock, policy: policy, logger: logger}
}

func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	entities := opts.Entities
	if len(entities) == 0 {
		entities = GovernedEntities
	}
	known := make(map[string]bool, len(GovernedEntities))
	for _, et := range GovernedEntities {
		known[et] = true
	}
	for _, et := range entities {
		if !known[et] {
			return nil, dErrors.NewField(dErrors.CodeValidationFailed,
				fmt.Sprintf("unknown entity type %q", et), "entity")
		}
	}

	if err := e.lock.Acquire(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "another retention run is in progress")
	}
	defer func() {
		if err := e.lock.Release(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("retention lock release failed", "error", err)
		}
	}()

	ctx = requestcontext.WithActor(ctx, domain.SystemActor())
	now := requestcontext.Now(ctx)

	report := &Report{
		RunID:    uuid.NewString(),
		DryRun:   opts.DryRun,
		Cutoffs:  make(map[string]time.Time, len(entities)),
		Eligible: make(map[string]int64, len(entities)),
		Purged:   make(map[string]int64, len(entities)),
	}
	for _, et := range entities {
		report.Cutoffs[et] = e.policy.Cutoff(et, now)
	}

	if err := e.countEligible(ctx, entities, report); err != nil {
		return nil, err
	}

	if opts.DryRun {
		e.logger.Info("retention dry run complete",
			"run_id", report.RunID, "eligible", report.TotalEligible())
		return report, nil
	}

	if !opts.Force {
		if opts.Confirm == nil || !opts.Confirm(*report) {
			return nil, dErrors.New(dErrors.CodePurgeAborted, "purge confirmation declined")
		}
	}

	for _, et := range entities {
		purged, err := e.purgeEntity(ctx, et, report.Cutoffs[et], report.RunID)
		if err != nil {
			return report, err
		}
		report.Purged[et] = purged
	}

	e.logger.Info("retention purge complete", "run_id", report.RunID, "purged", report.Purged)
	return report, nil
}

func (e *Engine) countEligible(ctx context.Context, entities []string, report *Report) error {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, et := range entities {
		g.Go(func() error {
			count, err := e.store.CountExpired(ctx, et, report.Cutoffs[et])
			if err != nil {
				return err
			}
			mu.Lock()
			report.Eligible[et] = count
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) purgeEntity(ctx context.Context, entityType string, cutoff time.Time, runID string) (int64, error) {
	var purged int64
	err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
		n, err := e.store.PurgeExpired(ctx, entityType, cutoff)
		if err != nil {
			return err
		}
		purged = n
		if n == 0 {
			return nil
		}
		return e.trail.RecordChange(ctx, audit.KindRetentionPurged, entityType, runID, nil, map[string]any{
			"purged_count": n,
			"cutoff":       cutoff.Format(time.RFC3339),
			"window_days":  e.policy.WindowDays(entityType),
		})
	})
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", entityType, err)
	}

	if purged > 0 {
		e.logger.Info("entity retention purged",
			"entity_type", entityType, "purged", purged, "cutoff", cutoff)
	}
	return purged, nil
}
