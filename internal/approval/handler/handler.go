package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"amparo/internal/approval"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	"amparo/pkg/platform/httputil"
	"amparo/pkg/requestcontext"
)

// Service defines the interface for approval operations.
type Service interface {
	Create(ctx context.Context, in approval.CreateInput) (*approval.Request, error)
	Get(ctx context.Context, id domain.RequestID) (*approval.Request, error)
	ListByState(ctx context.Context, state approval.State) ([]*approval.Request, error)
	ListBySubject(ctx context.Context, subjectType string, subjectID domain.RecordID) ([]*approval.Request, error)
	History(ctx context.Context, id domain.RequestID) ([]audit.Entry, error)
	Transition(ctx context.Context, id domain.RequestID, target approval.State, reason string, docs []string) (*approval.Request, error)
	FastTrackApprove(ctx context.Context, id domain.RequestID, justification string) (*approval.Request, error)
}

// Handler wires approval endpoints to the approval service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts approval endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/history", h.HandleHistory)
		r.Post("/{id}/transition", h.HandleTransition)
		r.Post("/{id}/fast-track", h.HandleFastTrack)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[approval.CreateInput](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Create(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "approval creation failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromRequest(created))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	approvalID, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed approval id"))
		return
	}

	req, err := h.service.Get(ctx, approvalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRequest(req))
}

// HandleList lists approval requests by state or by subject, whichever query
// parameter is provided.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if rawState := r.URL.Query().Get("state"); rawState != "" {
		state, ok := approval.ParseState(rawState)
		if !ok {
			httputil.WriteError(w, dErrors.NewField(dErrors.CodeValidationFailed, "unknown state", "state"))
			return
		}
		reqs, err := h.service.ListByState(ctx, state)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, fromRequests(reqs))
		return
	}

	subjectType := r.URL.Query().Get("subject_type")
	rawSubjectID := r.URL.Query().Get("subject_id")
	if subjectType == "" || rawSubjectID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "state or subject_type and subject_id are required"))
		return
	}
	subjectID, err := domain.ParseRecordID(rawSubjectID)
	if err != nil {
		httputil.WriteError(w, dErrors.NewField(dErrors.CodeValidationFailed, "malformed subject id", "subject_id"))
		return
	}

	reqs, err := h.service.ListBySubject(ctx, subjectType, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRequests(reqs))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	approvalID, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed approval id"))
		return
	}

	entries, err := h.service.History(ctx, approvalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

type transitionRequest struct {
	TargetState        string   `json:"target_state"`
	Reason             string   `json:"reason"`
	RequestedDocuments []string `json:"requested_documents"`
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	approvalID, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed approval id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[transitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.service.Transition(ctx, approvalID, approval.State(req.TargetState), req.Reason, req.RequestedDocuments)
	if err != nil {
		h.logger.WarnContext(ctx, "approval transition rejected",
			"request_id", requestID,
			"approval_id", approvalID,
			"target_state", req.TargetState,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "approval transitioned",
		"request_id", requestID,
		"approval_id", approvalID,
		"state", updated.State,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromRequest(updated))
}

type fastTrackRequest struct {
	Justification string `json:"justification"`
}

func (h *Handler) HandleFastTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	approvalID, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed approval id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[fastTrackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.service.FastTrackApprove(ctx, approvalID, req.Justification)
	if err != nil {
		h.logger.WarnContext(ctx, "fast-track approval rejected",
			"request_id", requestID, "approval_id", approvalID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRequest(updated))
}

// requestView is the API projection of an approval request.
type requestView struct {
	ID                 string                       `json:"id"`
	SubjectType        string                       `json:"subject_type"`
	SubjectID          string                       `json:"subject_id"`
	RequesterID        string                       `json:"requester_id"`
	RequesterName      string                       `json:"requester_name"`
	State              string                       `json:"state"`
	Reason             string                       `json:"reason,omitempty"`
	Metadata           map[string]string            `json:"metadata,omitempty"`
	RequestedDocuments []string                     `json:"requested_documents,omitempty"`
	FastTracked        bool                         `json:"fast_tracked"`
	CreatedAt          time.Time                    `json:"created_at"`
	UpdatedAt          time.Time                    `json:"updated_at"`
	DecidedAt          *time.Time                   `json:"decided_at,omitempty"`
	ExpiresAt          *time.Time                   `json:"expires_at,omitempty"`
	Transitions        []approval.TransitionRecord  `json:"transitions,omitempty"`
}

func fromRequest(req *approval.Request) requestView {
	return requestView{
		ID:                 req.ID.String(),
		SubjectType:        req.SubjectType,
		SubjectID:          req.SubjectID.String(),
		RequesterID:        req.RequesterID.String(),
		RequesterName:      req.RequesterName,
		State:              string(req.State),
		Reason:             req.Reason,
		Metadata:           req.Metadata,
		RequestedDocuments: req.RequestedDocuments,
		FastTracked:        req.FastTracked,
		CreatedAt:          req.CreatedAt,
		UpdatedAt:          req.UpdatedAt,
		DecidedAt:          req.DecidedAt,
		ExpiresAt:          req.ExpiresAt,
		Transitions:        req.Transitions,
	}
}

func fromRequests(reqs []*approval.Request) []requestView {
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, fromRequest(req))
	}
	return views
}
