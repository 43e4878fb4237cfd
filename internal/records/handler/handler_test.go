package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"amparo/internal/pii"
	"amparo/internal/platform/config"
	"amparo/internal/records"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	auditmemory "amparo/pkg/platform/audit/store/memory"
	"amparo/pkg/platform/tx"
	"amparo/pkg/testutil"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	codec, err := pii.NewCodec(config.PII{Keys: map[int][]byte{1: key}, ActiveVersion: 1}, logger, nil)
	if err != nil {
		t.Fatalf("build codec: %v", err)
	}

	registry := pii.NewFieldRegistry()
	registry.Register(records.EntityPerson, records.PersonPIIFields...)
	registry.Register(records.EntityFamily, records.FamilyPIIFields...)
	trail := audit.NewTrail(auditmemory.NewInMemoryStore(), registry, true, logger)

	service := records.NewService(records.NewInMemoryStore(), codec, trail, tx.Passthrough{}, logger)

	router := chi.NewRouter()
	New(service, logger).Register(router)
	return router
}

func doJSON(router chi.Router, ctx context.Context, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPersonEndpoints(t *testing.T) {
	router := newTestRouter(t)
	writerCtx := testutil.ActorContext(domain.RoleSocialWorker)

	testutil.Given(t, "a person created by a social worker", func(t *testing.T) {
		w := doJSON(router, writerCtx, http.MethodPost, "/people", map[string]string{
			"full_name":       "Maria da Silva",
			"email":           "maria@example.com",
			"phone":           "+5511988776655",
			"document_number": "123.456.789-00",
			"address":         "Rua das Flores 10",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body)
		}

		var created records.PersonView
		if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if created.Masked {
			t.Fatal("creator with full access should see plaintext")
		}
		if created.FullName != "Maria da Silva" {
			t.Fatalf("unexpected full name %q", created.FullName)
		}

		testutil.When(t, "an attendant reads the person", func(t *testing.T) {
			attendantCtx := testutil.ActorContext(domain.RoleAttendant)
			w := doJSON(router, attendantCtx, http.MethodGet, "/people/"+created.ID, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}

			var view records.PersonView
			if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
				t.Fatalf("decode response: %v", err)
			}

			testutil.Then(t, "PII comes back masked", func(t *testing.T) {
				if !view.Masked {
					t.Fatal("expected masked view")
				}
				if view.FullName == "Maria da Silva" {
					t.Fatal("full name leaked to masked role")
				}
				if strings.Contains(view.DocumentNumber, "123.456") {
					t.Fatal("document number leaked to masked role")
				}
			})
		})

		testutil.When(t, "the person is soft deleted by a coordinator", func(t *testing.T) {
			coordinatorCtx := testutil.ActorContext(domain.RoleCoordinator)
			w := doJSON(router, coordinatorCtx, http.MethodDelete, "/people/"+created.ID, nil)
			if w.Code != http.StatusNoContent {
				t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, w.Code, w.Body)
			}

			testutil.Then(t, "subsequent reads return not found", func(t *testing.T) {
				w := doJSON(router, writerCtx, http.MethodGet, "/people/"+created.ID, nil)
				if w.Code != http.StatusNotFound {
					t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
				}
			})

			testutil.Then(t, "restore brings the person back", func(t *testing.T) {
				w := doJSON(router, coordinatorCtx, http.MethodPost, "/people/"+created.ID+"/restore", nil)
				if w.Code != http.StatusNoContent {
					t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, w.Code, w.Body)
				}

				w = doJSON(router, writerCtx, http.MethodGet, "/people/"+created.ID, nil)
				if w.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
				}
			})
		})
	})
}

func TestCreatePersonValidation(t *testing.T) {
	router := newTestRouter(t)
	ctx := testutil.ActorContext(domain.RoleSocialWorker)

	w := doJSON(router, ctx, http.MethodPost, "/people", map[string]string{"email": "x@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["field"] != "full_name" {
		t.Fatalf("expected field full_name, got %v", body["field"])
	}
}
