package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Write timeout stays generous because audit
// export responses for long-lived subjects can run large.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
