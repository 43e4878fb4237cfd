package approval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
)

// Legality of every transition is enforced here, centrally, against an
// explicit table. Handlers and callers never get to decide what is allowed.

const (
	// MinReasonLen applies to rejections, cancellations and revocations.
	MinReasonLen = 10
	// MinFastTrackLen applies to the fast-track justification.
	MinFastTrackLen = 20
)

type roleClass int

const (
	classSubmitter roleClass = iota
	classReviewer
	classAdmin
	classSystem
)

func (c roleClass) permits(actor domain.Actor) bool {
	switch c {
	case classSubmitter:
		return actor.Roles.CanSubmit()
	case classReviewer:
		return actor.Roles.CanReview()
	case classAdmin:
		return actor.Roles.IsAdmin()
	case classSystem:
		return actor.System()
	}
	return false
}

func (c roleClass) String() string {
	switch c {
	case classSubmitter:
		return "submitter"
	case classReviewer:
		return "reviewer"
	case classAdmin:
		return "admin"
	case classSystem:
		return "system"
	}
	return "unknown"
}

type rule struct {
	actor        roleClass
	minReason    int
	requiresDocs bool
}

// transitions maps source state to the permitted target states. Absence
// means the edge is illegal. Approved is terminal yet carries the two edges
// that undo or age out a decision: admin revocation and system expiry.
var transitions = map[State]map[State]rule{
	StateDraft: {
		StateSubmitted: {actor: classSubmitter},
		StateCancelled: {actor: classAdmin, minReason: MinReasonLen},
	},
	StateSubmitted: {
		StateUnderReview:      {actor: classReviewer},
		StatePendingDocuments: {actor: classReviewer, requiresDocs: true},
		StateRejected:         {actor: classReviewer, minReason: MinReasonLen},
		StateCancelled:        {actor: classAdmin, minReason: MinReasonLen},
	},
	StateUnderReview: {
		StatePendingDocuments:    {actor: classReviewer, requiresDocs: true},
		StateApproved:            {actor: classReviewer},
		StateApprovedPreliminary: {actor: classReviewer},
		StateRejected:            {actor: classReviewer, minReason: MinReasonLen},
		StateCancelled:           {actor: classAdmin, minReason: MinReasonLen},
	},
	StatePendingDocuments: {
		StateSubmitted:   {actor: classSubmitter},
		StateUnderReview: {actor: classSubmitter},
		StateCancelled:   {actor: classAdmin, minReason: MinReasonLen},
	},
	StateApprovedPreliminary: {
		StateApproved:  {actor: classReviewer},
		StateRejected:  {actor: classReviewer, minReason: MinReasonLen},
		StateCancelled: {actor: classAdmin, minReason: MinReasonLen},
	},
	StateApproved: {
		StateRevoked: {actor: classAdmin, minReason: MinReasonLen},
		StateExpired: {actor: classSystem},
	},
}

// validateTransition checks the edge current→target for the given actor,
// reason and attached document list. Terminal-state violations surface as
// InvalidTransition, everything about the inputs as ValidationFailed.
func validateTransition(current, target State, actor domain.Actor, reason string, docs []string) error {
	targets, ok := transitions[current]
	if !ok {
		// Source states with no outgoing edges are the hard-terminal ones.
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("request in terminal state %q cannot transition", current))
	}

	r, ok := targets[target]
	if !ok {
		if current.IsTerminal() {
			return dErrors.New(dErrors.CodeInvalidTransition,
				fmt.Sprintf("request in terminal state %q cannot transition to %q", current, target))
		}
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("transition %q -> %q is not permitted", current, target))
	}

	if !r.actor.permits(actor) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("transition %q -> %q requires a %s role", current, target, r.actor))
	}

	// Rune count, not bytes: accented reasons must not clear the bar early.
	if r.minReason > 0 && utf8.RuneCountInString(strings.TrimSpace(reason)) < r.minReason {
		return dErrors.NewField(dErrors.CodeValidationFailed,
			fmt.Sprintf("transition to %q requires a reason of at least %d characters", target, r.minReason), "reason")
	}

	if r.requiresDocs && len(docs) == 0 {
		return dErrors.NewField(dErrors.CodeValidationFailed,
			"a non-empty list of requested documents is required", "requested_documents")
	}

	return nil
}

// validateFastTrack checks the fast-track edge Submitted→Approved.
func validateFastTrack(current State, actor domain.Actor, justification string) error {
	if current != StateSubmitted {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("fast-track approval requires state %q, request is %q", StateSubmitted, current))
	}
	if !actor.Roles.CanReview() {
		return dErrors.New(dErrors.CodeInvalidTransition, "fast-track approval requires a reviewer role")
	}
	if utf8.RuneCountInString(strings.TrimSpace(justification)) < MinFastTrackLen {
		return dErrors.NewField(dErrors.CodeValidationFailed,
			fmt.Sprintf("fast-track approval requires a justification of at least %d characters", MinFastTrackLen), "justification")
	}
	return nil
}
