package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"amparo/pkg/domain"
	"amparo/pkg/requestcontext"
)

// Claims are the JWT claims this service expects from the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// RequireAuth validates the bearer token and populates the acting identity in
// the request context. Requests without a valid actor never reach a service.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			actor, err := actorFromToken(token, signingKey)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

func actorFromToken(token, signingKey string) (domain.Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(signingKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}
	if !parsed.Valid {
		return domain.Actor{}, jwt.ErrTokenUnverifiable
	}

	userID, err := domain.ParseUserID(claims.Subject)
	if err != nil {
		return domain.Actor{}, err
	}

	roles := make(domain.RoleSet, 0, len(claims.Roles))
	for _, raw := range claims.Roles {
		role, err := domain.ParseRole(raw)
		if err != nil {
			// Unknown roles are dropped rather than rejected so a newer
			// identity provider doesn't lock everyone out.
			continue
		}
		roles = append(roles, role)
	}

	return domain.Actor{ID: userID, Name: claims.Name, Roles: roles}, nil
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
