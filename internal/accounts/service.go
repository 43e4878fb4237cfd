package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	"amparo/pkg/platform/tx"
	"amparo/pkg/requestcontext"
)

// Service manages staff accounts and the expired-cancellation cleanup the
// token-cleanup command runs on a schedule.
type Service struct {
	store  Store
	trail  *audit.Trail
	runner tx.Runner
	logger *slog.Logger
}

func NewService(store Store, trail *audit.Trail, runner tx.Runner, logger *slog.Logger) *Service {
	return &Service{store: store, trail: trail, runner: runner, logger: logger}
}

// RequestCancellation marks the account for deletion after the grace period.
// Until the token expires the account keeps working and the request can be
// undone by support.
func (s *Service) RequestCancellation(ctx context.Context, id UserID, grace time.Duration) (*User, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if actor.ID != id && !actor.Roles.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the account owner or an admin can request cancellation")
	}

	u, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.CancellationPending() {
		return nil, dErrors.New(dErrors.CodeConflict, "cancellation already requested")
	}

	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	requested := now
	expires := now.Add(grace)
	u.CancellationToken = hex.EncodeToString(token)
	u.CancelRequestedAt = &requested
	u.CancelExpiresAt = &expires
	u.UpdatedAt = now

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, u); err != nil {
			return err
		}
		return s.trail.RecordChange(ctx, audit.KindUpdated, EntityUser, id.String(), nil, map[string]any{
			"cancel_expires_at": expires.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account cancellation requested", "user_id", id, "expires_at", expires)
	return u, nil
}

// CleanupReport summarizes one cleanup run.
type CleanupReport struct {
	Eligible int64
	Deleted  int
}

// CleanupExpired removes accounts whose cancellation token has expired. In
// dry-run mode it only reports how many would go. Re-running is a no-op
// once the expired accounts are gone.
func (s *Service) CleanupExpired(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	ctx = requestcontext.WithActor(ctx, domain.SystemActor())
	now := requestcontext.Now(ctx)

	eligible, err := s.store.CountExpiredCancellations(ctx, now)
	if err != nil {
		return nil, err
	}
	report := &CleanupReport{Eligible: eligible}

	if dryRun || eligible == 0 {
		s.logger.Info("token cleanup dry run", "eligible", eligible)
		return report, nil
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		deleted, err := s.store.DeleteExpiredCancellations(ctx, now)
		if err != nil {
			return err
		}
		report.Deleted = len(deleted)
		for _, id := range deleted {
			if err := s.trail.RecordChange(ctx, audit.KindHardDeleted, EntityUser, id.String(), nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("expired account cancellations cleaned up", "deleted", report.Deleted)
	return report, nil
}
