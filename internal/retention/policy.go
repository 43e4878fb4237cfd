package retention

import (
	"time"

	"amparo/internal/platform/config"
)

// Governed entity types, in purge order. Audit entries go last so the purge
// entries written for the other types in the same run are not swept by it.
var GovernedEntities = []string{"person", "family", "approval_request", "audit_entry"}

// Policy computes per-entity purge cutoffs from the configured windows.
// A row is purge-eligible once its deletion (or decision, for approval
// requests) timestamp is older than now minus the window.
type Policy struct {
	windows config.Retention
}

func NewPolicy(windows config.Retention) Policy {
	return Policy{windows: windows}
}

func (p Policy) WindowDays(entityType string) int {
	return p.windows.WindowDays(entityType)
}

func (p Policy) Cutoff(entityType string, now time.Time) time.Time {
	return now.AddDate(0, 0, -p.windows.WindowDays(entityType))
}
