package feedservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-socialfeed/pkg/feed"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// Server exposes one session over HTTP: feed pages, explore pages, library
// entries, follow toggles and the mutation ingress.
type Server struct {
	logger     zerolog.Logger
	httpPort   string
	httpServer *http.Server
	mux        *http.ServeMux
	session    *Session
	actualAddr string
	mu         sync.RWMutex
}

// NewServer creates the HTTP facade over a session.
func NewServer(session *Session, httpPort string, logger zerolog.Logger) *Server {
	s := &Server{
		logger:   logger.With().Str("component", "Server").Logger(),
		httpPort: httpPort,
		session:  session,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthzHandler)
	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("GET /api/explore", s.handleExplore)
	mux.HandleFunc("GET /api/library", s.handleLibrary)
	mux.HandleFunc("POST /api/follow", s.handleFollowToggle)
	mux.HandleFunc("POST /api/mutations", s.handleMutation)

	s.mux = mux
	s.httpServer = &http.Server{
		Addr:    httpPort,
		Handler: mux,
	}
	return s
}

// Start initiates the HTTP server in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.httpPort, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info().Str("address", s.actualAddr).Msg("HTTP server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server, respecting the provided
// context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during HTTP server shutdown.")
		return err
	}
	s.logger.Info().Msg("HTTP server stopped.")
	return nil
}

// GetHTTPPort returns the actual port the server is listening on.
func (s *Server) GetHTTPPort() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, port, err := net.SplitHostPort(s.actualAddr)
	if err != nil {
		return s.httpPort
	}
	return ":" + port
}

// Mux returns the underlying ServeMux.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// HealthzHandler responds to health check probes.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	scope := feed.Scope{Kind: feed.ScopeKind(q.Get("scope"))}
	if scope.Kind == "" {
		scope.Kind = feed.ScopeFollowing
	}
	scope.UserID = q.Get("user")
	scope.ContentID = q.Get("content")

	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid pageSize", http.StatusBadRequest)
			return
		}
		pageSize = n
	}

	req := feed.Request{
		ViewerID: q.Get("viewer"),
		Scope:    scope,
		Cursor:   q.Get("cursor"),
		PageSize: pageSize,
	}

	page, err := s.session.Builder.BuildPage(r.Context(), req)
	if err != nil {
		if errors.Is(err, feed.ErrTransient) {
			http.Error(w, "feed source unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, page)
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.session.ExplorePage(r.Context(), q.Get("filter"), q.Get("sort"), q.Get("cursor"))
	if err != nil {
		http.Error(w, "explore source unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, page)
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, contentID := q.Get("user"), q.Get("content")
	if userID == "" || contentID == "" {
		http.Error(w, "user and content are required", http.StatusBadRequest)
		return
	}
	entry, err := s.session.LibraryEntry(r.Context(), userID, contentID)
	if err != nil {
		http.Error(w, "library source unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, entry)
}

type followToggleRequest struct {
	FollowerID string `json:"followerId"`
	FolloweeID string `json:"followeeId"`
}

type followToggleResponse struct {
	Following bool `json:"following"`
}

func (s *Server) handleFollowToggle(w http.ResponseWriter, r *http.Request) {
	var req followToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	following, err := s.session.Graph.ToggleFollow(r.Context(), req.FollowerID, req.FolloweeID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, followToggleResponse{Following: following})
}

// handleMutation is the ingress for mutation events reported by upstream
// write paths. The event is acknowledged once the invalidation policy has
// been applied and fan-out enqueued.
func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request) {
	var event types.MutationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if event.Kind == "" || event.ActorID == "" {
		http.Error(w, "kind and actorId are required", http.StatusBadRequest)
		return
	}

	s.session.OnMutationSuccess(r.Context(), event)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response body.")
	}
}
