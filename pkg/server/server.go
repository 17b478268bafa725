// Package server exposes the agent's local status endpoint: health, a
// redacted view of the current session, and Prometheus metrics. It binds
// loopback only; it is not reachable from the network.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"taura/pkg/auth"
	"taura/pkg/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SessionView is what /session exposes. Tokens never leave the process.
type SessionView struct {
	SignedIn  bool   `json:"signed_in"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
	Phase     string `json:"phase"`
}

// Server is the local agent HTTP server.
type Server struct {
	orchestrator *auth.Orchestrator
	httpServer   *http.Server
	log          zerolog.Logger
}

// New creates the agent server listening on addr.
func New(addr string, orchestrator *auth.Orchestrator, log zerolog.Logger) *Server {
	s := &Server{
		orchestrator: orchestrator,
		log:          log.With().Str("component", "agent-server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/session", s.handleSession)
	mux.Handle("/metrics", promhttp.Handler())

	handler := middleware.SecurityHeaders(middleware.RequestLogger(s.log)(mux))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("agent endpoint listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	view := SessionView{Phase: string(s.orchestrator.Phase())}

	sess, err := s.orchestrator.Session()
	if err != nil {
		http.Error(w, "failed to read session", http.StatusInternalServerError)
		return
	}
	if sess != nil {
		view.SignedIn = true
		view.Email = sess.Email
		view.Name = sess.Name
		view.Picture = sess.Picture
		view.ExpiresAt = sess.ExpiresAt
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}
