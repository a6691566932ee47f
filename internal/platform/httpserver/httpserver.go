package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with defaults sized for image uploads: bodies up
// to 20 MiB need a longer read window than header-only requests.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
