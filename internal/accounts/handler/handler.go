package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"amparo/internal/accounts"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/httputil"
	"amparo/pkg/requestcontext"
)

// Grace period between a cancellation request and the account becoming
// eligible for cleanup.
const cancellationGrace = 30 * 24 * time.Hour

// Service defines the interface for account operations.
type Service interface {
	RequestCancellation(ctx context.Context, id accounts.UserID, grace time.Duration) (*accounts.User, error)
}

// Handler wires account endpoints to the accounts service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts account endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts/{id}/cancel", h.HandleRequestCancellation)
}

func (h *Handler) HandleRequestCancellation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed account id"))
		return
	}

	u, err := h.service.RequestCancellation(ctx, userID, cancellationGrace)
	if err != nil {
		h.logger.WarnContext(ctx, "account cancellation rejected",
			"request_id", requestcontext.RequestID(ctx), "user_id", userID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"id":                u.ID.String(),
		"cancel_expires_at": u.CancelExpiresAt,
	})
}
