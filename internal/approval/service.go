package approval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"amparo/internal/approval/metrics"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	platformstrings "amparo/pkg/platform/strings"
	"amparo/pkg/platform/tx"
	"amparo/pkg/requestcontext"
)

// Service governs the approval request lifecycle. Every persisted state
// change commits in the same transaction as its audit entry; an illegal
// transition leaves no trace in the trail.
type Service struct {
	store    Store
	trail    *audit.Trail
	runner   tx.Runner
	validity time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(store Store, trail *audit.Trail, runner tx.Runner, validity time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, trail: trail, runner: runner, validity: validity, logger: logger, metrics: m}
}

type CreateInput struct {
	SubjectType string            `json:"subject_type"`
	SubjectID   string            `json:"subject_id"`
	Metadata    map[string]string `json:"metadata"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !actor.Roles.CanSubmit() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot create approval requests")
	}
	if !validSubjects[in.SubjectType] {
		return nil, dErrors.NewField(dErrors.CodeValidationFailed, "unknown subject type", "subject_type")
	}
	subjectID, err := domain.ParseRecordID(in.SubjectID)
	if err != nil {
		return nil, dErrors.NewField(dErrors.CodeValidationFailed, "malformed subject id", "subject_id")
	}

	now := requestcontext.Now(ctx)
	req := &Request{
		ID:            domain.RequestID(uuid.New()),
		SubjectType:   in.SubjectType,
		SubjectID:     subjectID,
		RequesterID:   actor.ID,
		RequesterName: actor.Name,
		State:         StateDraft,
		Metadata:      in.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, req); err != nil {
			return err
		}
		return s.trail.RecordChange(ctx, audit.KindCreated, EntityApprovalRequest, req.ID.String(),
			nil, map[string]any{"state": string(StateDraft), "subject_type": req.SubjectType, "subject_id": req.SubjectID.String()})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("approval request created",
		"request_id", req.ID, "subject_type", req.SubjectType, "actor_id", actor.ID)
	return req, nil
}

func (s *Service) Get(ctx context.Context, id domain.RequestID) (*Request, error) {
	return s.store.Find(ctx, id)
}

func (s *Service) ListByState(ctx context.Context, state State) ([]*Request, error) {
	return s.store.ListByState(ctx, state)
}

func (s *Service) ListBySubject(ctx context.Context, subjectType string, subjectID domain.RecordID) ([]*Request, error) {
	return s.store.ListBySubject(ctx, subjectType, subjectID)
}

// History returns the audit entries for a request, newest last.
func (s *Service) History(ctx context.Context, id domain.RequestID) ([]audit.Entry, error) {
	if _, err := s.store.Find(ctx, id); err != nil {
		return nil, err
	}
	return s.trail.ListBySubject(ctx, EntityApprovalRequest, id.String())
}

// Transition moves a request along one legal edge of the state graph. Docs
// are only consulted when the target state requires a requested-document
// list.
func (s *Service) Transition(ctx context.Context, id domain.RequestID, target State, reason string, docs []string) (*Request, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !allStates[target] {
		return nil, dErrors.NewField(dErrors.CodeValidationFailed, "unknown target state", "target_state")
	}

	req, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	docs = platformstrings.DedupeAndTrim(docs)
	if err := validateTransition(req.State, target, actor, reason, docs); err != nil {
		s.metrics.IncrementFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	from := req.State
	now := requestcontext.Now(ctx)
	s.apply(req, target, actor, reason, docs, now)

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, req); err != nil {
			return err
		}
		return s.trail.RecordChange(ctx, audit.KindStateChanged, EntityApprovalRequest, req.ID.String(),
			map[string]any{"state": string(from)},
			transitionSnapshot(req, reason))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(from), string(target))
	s.logger.Info("approval request transitioned",
		"request_id", req.ID, "from", from, "to", target, "actor_id", actor.ID)
	return req, nil
}

// FastTrackApprove approves directly from Submitted, bypassing review. The
// trail entry carries a distinct kind so fast-tracked decisions stay
// distinguishable from standard approvals.
func (s *Service) FastTrackApprove(ctx context.Context, id domain.RequestID, justification string) (*Request, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}

	req, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateFastTrack(req.State, actor, justification); err != nil {
		s.metrics.IncrementFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	from := req.State
	now := requestcontext.Now(ctx)
	s.apply(req, StateApproved, actor, justification, nil, now)
	req.FastTracked = true

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, req); err != nil {
			return err
		}
		return s.trail.RecordChange(ctx, audit.KindFastTrackApproved, EntityApprovalRequest, req.ID.String(),
			map[string]any{"state": string(from)},
			transitionSnapshot(req, justification))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementFastTrack()
	s.metrics.IncrementTransition(string(from), string(StateApproved))
	s.logger.Info("approval request fast-tracked", "request_id", req.ID, "actor_id", actor.ID)
	return req, nil
}

// ExpireApproved moves every approval whose validity window has elapsed to
// Expired. It runs as the system actor, one transaction per request, and is
// safe to re-run: requests already expired simply stop matching.
func (s *Service) ExpireApproved(ctx context.Context) (int, error) {
	ctx = requestcontext.WithActor(ctx, domain.SystemActor())
	now := requestcontext.Now(ctx)

	due, err := s.store.ListExpiring(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, req := range due {
		from := req.State
		s.apply(req, StateExpired, domain.SystemActor(), "", nil, now)

		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.Save(ctx, req); err != nil {
				return err
			}
			return s.trail.RecordChange(ctx, audit.KindStateChanged, EntityApprovalRequest, req.ID.String(),
				map[string]any{"state": string(from)},
				transitionSnapshot(req, ""))
		})
		if err != nil {
			return expired, err
		}
		expired++
	}

	if expired > 0 {
		s.metrics.AddExpired(expired)
		s.logger.Info("approved requests expired", "count", expired)
	}
	return expired, nil
}

func (s *Service) apply(req *Request, target State, actor domain.Actor, reason string, docs []string, now time.Time) {
	from := req.State
	req.State = target
	req.UpdatedAt = now
	if reason = strings.TrimSpace(reason); reason != "" {
		req.Reason = reason
	}
	if len(docs) > 0 {
		req.RequestedDocuments = docs
	}
	if target.IsTerminal() && req.DecidedAt == nil {
		decided := now
		req.DecidedAt = &decided
	}
	if target == StateApproved && s.validity > 0 {
		expires := now.Add(s.validity)
		req.ExpiresAt = &expires
	}
	req.Transitions = append(req.Transitions, TransitionRecord{
		From:       from,
		To:         target,
		ActorName:  actor.Name,
		Reason:     reason,
		OccurredAt: now,
	})
}

func transitionSnapshot(req *Request, reason string) map[string]any {
	snap := map[string]any{"state": string(req.State)}
	if reason = strings.TrimSpace(reason); reason != "" {
		snap["reason"] = reason
	}
	if len(req.RequestedDocuments) > 0 && req.State == StatePendingDocuments {
		snap["requested_documents"] = strings.Join(req.RequestedDocuments, ", ")
	}
	if req.ExpiresAt != nil && req.State == StateApproved {
		snap["expires_at"] = req.ExpiresAt.Format(time.RFC3339)
	}
	return snap
}
