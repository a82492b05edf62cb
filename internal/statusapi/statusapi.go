// Package statusapi exposes a small ambient HTTP introspection surface
// — /healthz and /status — alongside the core raw-TCP protocol each
// binary speaks. It is never part of the Ricart–Agrawala or
// Orchestrator wire exchanges; it exists purely for operators and
// container health checks, routed with gorilla/mux the way the
// teacher's HTTP server was.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// StatusFunc produces the current JSON-serializable status snapshot for
// whichever component (node, orchestrator, printer) mounts this router.
type StatusFunc func() any

// Server is a small HTTP server exposing /healthz and /status.
type Server struct {
	httpServer *http.Server
}

// New builds a Server listening on addr, serving status() under
// /status and a constant OK under /healthz.
func New(addr string, component string, status StatusFunc, logger *logrus.Entry) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			logger.WithError(err).Error("failed to encode status response")
		}
	}).Methods(http.MethodGet)

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.WithFields(logrus.Fields{"component": component, "path": r.URL.Path}).Debug("status request")
			next.ServeHTTP(w, r)
		})
	})

	return &Server{httpServer: &http.Server{Addr: addr, Handler: router}}
}

// ListenAndServe starts the HTTP server; it blocks until the server
// stops, mirroring net/http.Server's contract.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Close shuts the HTTP server down immediately.
func (s *Server) Close() error {
	return s.httpServer.Close()
}
