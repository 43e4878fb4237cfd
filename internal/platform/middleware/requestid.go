package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"amparo/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates an inbound correlation ID or generates one, storing it
// in the context and echoing it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
