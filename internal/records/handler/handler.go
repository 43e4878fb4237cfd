package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"amparo/internal/records"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/httputil"
	"amparo/pkg/requestcontext"
)

// Service defines the interface for record operations.
type Service interface {
	CreatePerson(ctx context.Context, in records.PersonInput) (*records.Person, error)
	GetPerson(ctx context.Context, id domain.RecordID) (*records.Person, error)
	ListPeople(ctx context.Context) ([]*records.Person, error)
	UpdatePerson(ctx context.Context, id domain.RecordID, upd records.PersonUpdate) (*records.Person, error)
	SoftDeletePerson(ctx context.Context, id domain.RecordID) error
	RestorePerson(ctx context.Context, id domain.RecordID) error

	CreateFamily(ctx context.Context, in records.FamilyInput) (*records.Family, error)
	GetFamily(ctx context.Context, id domain.RecordID) (*records.Family, error)
	ListFamilies(ctx context.Context) ([]*records.Family, error)
	SoftDeleteFamily(ctx context.Context, id domain.RecordID) error
	RestoreFamily(ctx context.Context, id domain.RecordID) error
}

// Handler wires record endpoints to the records service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts record endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/people", func(r chi.Router) {
		r.Post("/", h.HandleCreatePerson)
		r.Get("/", h.HandleListPeople)
		r.Get("/{id}", h.HandleGetPerson)
		r.Patch("/{id}", h.HandleUpdatePerson)
		r.Delete("/{id}", h.HandleDeletePerson)
		r.Post("/{id}/restore", h.HandleRestorePerson)
	})
	r.Route("/families", func(r chi.Router) {
		r.Post("/", h.HandleCreateFamily)
		r.Get("/", h.HandleListFamilies)
		r.Get("/{id}", h.HandleGetFamily)
		r.Delete("/{id}", h.HandleDeleteFamily)
		r.Post("/{id}/restore", h.HandleRestoreFamily)
	})
}

func (h *Handler) HandleCreatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[records.PersonInput](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.CreatePerson(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "person creation failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "person created",
		"request_id", requestID,
		"person_id", p.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, records.NewPersonView(p, requestcontext.Actor(ctx).Roles))
}

func (h *Handler) HandleGetPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed record id"))
		return
	}

	p, err := h.service.GetPerson(ctx, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records.NewPersonView(p, requestcontext.Actor(ctx).Roles))
}

func (h *Handler) HandleListPeople(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	people, err := h.service.ListPeople(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	roles := requestcontext.Actor(ctx).Roles
	views := make([]records.PersonView, 0, len(people))
	for _, p := range people {
		views = append(views, records.NewPersonView(p, roles))
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) HandleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed record id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[records.PersonUpdate](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.UpdatePerson(ctx, recordID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "person update failed", "request_id", requestID, "person_id", recordID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records.NewPersonView(p, requestcontext.Actor(ctx).Roles))
}

func (h *Handler) HandleDeletePerson(w http.ResponseWriter, r *http.Request) {
	h.handleIDAction(w, r, "person soft delete failed", h.service.SoftDeletePerson)
}

func (h *Handler) HandleRestorePerson(w http.ResponseWriter, r *http.Request) {
	h.handleIDAction(w, r, "person restore failed", h.service.RestorePerson)
}

func (h *Handler) HandleCreateFamily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[records.FamilyInput](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	f, err := h.service.CreateFamily(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "family creation failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, records.NewFamilyView(f, requestcontext.Actor(ctx).Roles))
}

func (h *Handler) HandleGetFamily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed record id"))
		return
	}

	f, err := h.service.GetFamily(ctx, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records.NewFamilyView(f, requestcontext.Actor(ctx).Roles))
}

func (h *Handler) HandleListFamilies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	families, err := h.service.ListFamilies(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	roles := requestcontext.Actor(ctx).Roles
	views := make([]records.FamilyView, 0, len(families))
	for _, f := range families {
		views = append(views, records.NewFamilyView(f, roles))
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) HandleDeleteFamily(w http.ResponseWriter, r *http.Request) {
	h.handleIDAction(w, r, "family soft delete failed", h.service.SoftDeleteFamily)
}

func (h *Handler) HandleRestoreFamily(w http.ResponseWriter, r *http.Request) {
	h.handleIDAction(w, r, "family restore failed", h.service.RestoreFamily)
}

func (h *Handler) handleIDAction(w http.ResponseWriter, r *http.Request, failMsg string, action func(context.Context, domain.RecordID) error) {
	ctx := r.Context()

	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed record id"))
		return
	}

	if err := action(ctx, recordID); err != nil {
		h.logger.ErrorContext(ctx, failMsg, "request_id", requestcontext.RequestID(ctx), "record_id", recordID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
