package auditquery

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/platform/audit"
	"amparo/pkg/platform/httputil"
	"amparo/pkg/requestcontext"
)

// Trail is the audit query surface the handler needs.
type Trail interface {
	ListBySubject(ctx context.Context, subjectType, subjectID string) ([]audit.Entry, error)
}

// Handler exposes the compliance export endpoint. Audit entries hold raw
// client metadata and ciphertext snapshots, so the endpoint is admin only.
type Handler struct {
	trail  Trail
	logger *slog.Logger
}

func New(trail Trail, logger *slog.Logger) *Handler {
	return &Handler{trail: trail, logger: logger}
}

// Register mounts audit export endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/{subjectType}/{subjectID}", h.HandleListBySubject)
}

func (h *Handler) HandleListBySubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor := requestcontext.Actor(ctx)
	if !actor.Roles.IsAdmin() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "audit export requires an admin role"))
		return
	}

	subjectType := chi.URLParam(r, "subjectType")
	subjectID := chi.URLParam(r, "subjectID")
	if subjectType == "" || subjectID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "subject type and id are required"))
		return
	}

	entries, err := h.trail.ListBySubject(ctx, subjectType, subjectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit export failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_type", subjectType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit trail exported",
		"subject_type", subjectType,
		"subject_id", subjectID,
		"entries", len(entries),
		"actor_id", actor.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, entries)
}
