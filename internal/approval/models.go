package approval

import (
	"time"

	"amparo/pkg/domain"
)

const EntityApprovalRequest = "approval_request"

// State of an approval request. Requests move along a directed graph with no
// way back out of a terminal state, except the admin revocation and the
// time-driven expiry of an approval.
type State string

const (
	StateDraft               State = "draft"
	StateSubmitted           State = "submitted"
	StateUnderReview         State = "under_review"
	StatePendingDocuments    State = "pending_documents"
	StateApprovedPreliminary State = "approved_preliminary"
	StateApproved            State = "approved"
	StateRejected            State = "rejected"
	StateCancelled           State = "cancelled"
	StateRevoked             State = "revoked"
	StateExpired             State = "expired"
)

var allStates = map[State]bool{
	StateDraft: true, StateSubmitted: true, StateUnderReview: true,
	StatePendingDocuments: true, StateApprovedPreliminary: true,
	StateApproved: true, StateRejected: true, StateCancelled: true,
	StateRevoked: true, StateExpired: true,
}

func ParseState(s string) (State, bool) {
	st := State(s)
	return st, allStates[st]
}

func (s State) String() string { return string(s) }

func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateCancelled, StateRevoked, StateExpired:
		return true
	}
	return false
}

// SubjectKinds an approval request can decide on.
const (
	SubjectPerson  = "person"
	SubjectFamily  = "family"
	SubjectCase    = "case"
	SubjectBenefit = "benefit"
)

var validSubjects = map[string]bool{
	SubjectPerson: true, SubjectFamily: true, SubjectCase: true, SubjectBenefit: true,
}

// Request is an approval request over a subject record. It is never deleted;
// once terminal it remains as an audit artifact until the retention window
// for its entity type elapses.
type Request struct {
	ID                 domain.RequestID
	SubjectType        string
	SubjectID          domain.RecordID
	RequesterID        domain.UserID
	RequesterName      string
	State              State
	Reason             string
	Metadata           map[string]string
	RequestedDocuments []string
	FastTracked        bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DecidedAt          *time.Time
	ExpiresAt          *time.Time
	Transitions        []TransitionRecord
}

// TransitionRecord keeps the per-transition timestamp history on the request
// itself. The authoritative trail lives in the audit store; this is the quick
// in-row view.
type TransitionRecord struct {
	From       State     `json:"from"`
	To         State     `json:"to"`
	ActorName  string    `json:"actor_name"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (r *Request) Clone() *Request {
	dup := *r
	if r.Metadata != nil {
		dup.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			dup.Metadata[k] = v
		}
	}
	dup.RequestedDocuments = append([]string(nil), r.RequestedDocuments...)
	dup.Transitions = append([]TransitionRecord(nil), r.Transitions...)
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		dup.DecidedAt = &t
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		dup.ExpiresAt = &t
	}
	return &dup
}
