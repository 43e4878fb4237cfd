package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
)

func actorWith(roles ...domain.Role) domain.Actor {
	return domain.Actor{Name: "tester", Roles: domain.RoleSet(roles)}
}

func TestValidateTransition(t *testing.T) {
	socialWorker := actorWith(domain.RoleSocialWorker)
	coordinator := actorWith(domain.RoleCoordinator)
	admin := actorWith(domain.RoleAdmin)

	tests := []struct {
		name     string
		from     State
		to       State
		actor    domain.Actor
		reason   string
		docs     []string
		wantCode dErrors.Code
	}{
		{name: "draft submitted by social worker", from: StateDraft, to: StateSubmitted, actor: socialWorker},
		{name: "submitted to review by coordinator", from: StateSubmitted, to: StateUnderReview, actor: coordinator},
		{name: "submitted to review by social worker forbidden", from: StateSubmitted, to: StateUnderReview, actor: socialWorker, wantCode: dErrors.CodeInvalidTransition},
		{name: "rejection with sufficient reason", from: StateUnderReview, to: StateRejected, actor: coordinator, reason: "Missing income proof"},
		{name: "rejection with short reason", from: StateUnderReview, to: StateRejected, actor: coordinator, reason: "too short", wantCode: dErrors.CodeValidationFailed},
		{name: "rejection without reason", from: StateSubmitted, to: StateRejected, actor: coordinator, wantCode: dErrors.CodeValidationFailed},
		{name: "rejection with short accented reason", from: StateUnderReview, to: StateRejected, actor: coordinator, reason: "órfã não", wantCode: dErrors.CodeValidationFailed},
		{name: "rejection with ten accented characters", from: StateUnderReview, to: StateRejected, actor: coordinator, reason: "não provou"},
		{name: "pending documents with list", from: StateUnderReview, to: StatePendingDocuments, actor: coordinator, docs: []string{"income proof"}},
		{name: "pending documents without list", from: StateUnderReview, to: StatePendingDocuments, actor: coordinator, wantCode: dErrors.CodeValidationFailed},
		{name: "resubmission by social worker", from: StatePendingDocuments, to: StateUnderReview, actor: socialWorker},
		{name: "preliminary approval", from: StateUnderReview, to: StateApprovedPreliminary, actor: coordinator},
		{name: "preliminary to final approval", from: StateApprovedPreliminary, to: StateApproved, actor: coordinator},
		{name: "cancellation by admin", from: StateSubmitted, to: StateCancelled, actor: admin, reason: "duplicate of another request"},
		{name: "cancellation by coordinator forbidden", from: StateSubmitted, to: StateCancelled, actor: coordinator, reason: "duplicate of another request", wantCode: dErrors.CodeInvalidTransition},
		{name: "revocation of approval by admin", from: StateApproved, to: StateRevoked, actor: admin, reason: "benefit granted in error"},
		{name: "revocation by coordinator forbidden", from: StateApproved, to: StateRevoked, actor: coordinator, reason: "benefit granted in error", wantCode: dErrors.CodeInvalidTransition},
		{name: "expiry requires system actor", from: StateApproved, to: StateExpired, actor: admin, wantCode: dErrors.CodeInvalidTransition},
		{name: "expiry by system actor", from: StateApproved, to: StateExpired, actor: domain.SystemActor()},
		{name: "rejected is hard terminal", from: StateRejected, to: StateApproved, actor: admin, reason: "changed our minds entirely", wantCode: dErrors.CodeInvalidTransition},
		{name: "cancelled is hard terminal", from: StateCancelled, to: StateSubmitted, actor: admin, wantCode: dErrors.CodeInvalidTransition},
		{name: "revoked is hard terminal", from: StateRevoked, to: StateApproved, actor: admin, wantCode: dErrors.CodeInvalidTransition},
		{name: "expired is hard terminal", from: StateExpired, to: StateApproved, actor: admin, wantCode: dErrors.CodeInvalidTransition},
		{name: "skipping review is not permitted", from: StateSubmitted, to: StateApproved, actor: coordinator, wantCode: dErrors.CodeInvalidTransition},
		{name: "draft cannot jump to approved", from: StateDraft, to: StateApproved, actor: admin, wantCode: dErrors.CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTransition(tt.from, tt.to, tt.actor, tt.reason, tt.docs)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, tt.wantCode), "expected %s, got %v", tt.wantCode, err)
		})
	}
}

func TestValidateFastTrack(t *testing.T) {
	coordinator := actorWith(domain.RoleCoordinator)

	t.Run("requires submitted state", func(t *testing.T) {
		err := validateFastTrack(StateUnderReview, coordinator, "applicant is in an emergency shelter")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("requires reviewer role", func(t *testing.T) {
		err := validateFastTrack(StateSubmitted, actorWith(domain.RoleSocialWorker), "applicant is in an emergency shelter")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("requires extended justification", func(t *testing.T) {
		err := validateFastTrack(StateSubmitted, coordinator, "urgent")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidationFailed))
	})

	t.Run("counts justification characters not bytes", func(t *testing.T) {
		// 18 characters but 21 bytes; a byte count would let it through.
		err := validateFastTrack(StateSubmitted, coordinator, "situações críticas")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidationFailed))
	})

	t.Run("accepts a justified fast track", func(t *testing.T) {
		assert.NoError(t, validateFastTrack(StateSubmitted, coordinator, "applicant is in an emergency shelter"))
	})
}

func TestTerminalStates(t *testing.T) {
	terminal := []State{StateApproved, StateRejected, StateCancelled, StateRevoked, StateExpired}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
	for _, s := range []State{StateDraft, StateSubmitted, StateUnderReview, StatePendingDocuments, StateApprovedPreliminary} {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}
