// Package web exposes the schedule service as the JSON API consumed by the
// planning front-end.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aurionplan/internal/config"
	"aurionplan/internal/ics"
	appLog "aurionplan/internal/log"
	"aurionplan/internal/model"
	"aurionplan/internal/portal"
	"aurionplan/internal/schedule"
	"aurionplan/internal/session"
)

const (
	msgMissingCredentials = "Identifiant et mot de passe requis"
	msgMissingUsername    = "Username requis"
	msgSessionExpired     = "Session expirée. Veuillez vous reconnecter."
	msgLoggedOut          = "Déconnecté"
	msgNoCachedSchedule   = "Aucun planning en cache"
	msgLoginErrorPrefix   = "Erreur lors de la connexion: "
)

// Scheduler is the part of schedule.Service the API needs.
type Scheduler interface {
	LoginAndFetch(ctx context.Context, username, password string) (*schedule.LoginResult, error)
	Navigate(ctx context.Context, token string, dir schedule.Direction) ([]model.NormalizedEvent, error)
	Logout(ctx context.Context, token string)
	CachedEvents(ctx context.Context, username string) schedule.CachedSchedule
	Export(ctx context.Context, username string) ([]byte, error)
	ActiveSessions() int
}

// Server provides the HTTP API.
type Server struct {
	cfg    *config.Config
	svc    Scheduler
	router chi.Router
	now    func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc Scheduler) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		router: chi.NewRouter(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsPolicy())

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled")
			r.Use(s.basicAuth)
		}
		r.Post("/api/login-and-fetch", s.handleLoginAndFetch)
		r.Post("/api/navigate", s.handleNavigate)
		r.Post("/api/logout", s.handleLogout)
		r.Post("/api/cached-events", s.handleCachedEvents)
		r.Post("/api/export.ics", s.handleExport)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth instead of locking everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="aurionplan", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string                  `json:"token"`
	Events    []model.NormalizedEvent `json:"events"`
	FromCache bool                    `json:"fromCache"`
	Message   string                  `json:"message"`
	CachedAt  *time.Time              `json:"cachedAt,omitempty"`
}

func (s *Server) handleLoginAndFetch(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}

	res, err := s.svc.LoginAndFetch(r.Context(), req.Username, req.Password)
	if err != nil {
		var authErr *portal.AuthError
		var menuErr *portal.MenuNotFoundError
		switch {
		case errors.As(err, &authErr):
			writeError(w, http.StatusUnauthorized, authErr.Message)
		case errors.As(err, &menuErr):
			writeError(w, http.StatusInternalServerError, menuErr.Error())
		case errors.Is(err, schedule.ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, msgMissingCredentials)
		default:
			appLog.Error("login-and-fetch failed", err, "owner", req.Username)
			writeError(w, http.StatusInternalServerError, msgLoginErrorPrefix+err.Error())
		}
		return
	}

	resp := loginResponse{
		Token:     res.Token,
		Events:    nonNil(res.Events),
		FromCache: res.FromCache,
		Message:   res.Message,
	}
	if res.FromCache {
		at := res.CachedAt
		resp.CachedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

type navigateRequest struct {
	Token     string `json:"token"`
	Direction string `json:"direction"`
}

type eventsResponse struct {
	Events []model.NormalizedEvent `json:"events"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	events, err := s.svc.Navigate(r.Context(), req.Token, schedule.Direction(req.Direction))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, msgSessionExpired)
			return
		}
		appLog.Error("navigate failed", err, "direction", req.Direction)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: nonNil(events)})
}

type tokenRequest struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.svc.Logout(r.Context(), req.Token)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

type usernameRequest struct {
	Username string `json:"username"`
}

type cachedEventsResponse struct {
	Events   []model.NormalizedEvent `json:"events"`
	CachedAt *time.Time              `json:"cachedAt"`
	Fresh    bool                    `json:"fresh"`
}

func (s *Server) handleCachedEvents(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, msgMissingUsername)
		return
	}

	cached := s.svc.CachedEvents(r.Context(), req.Username)
	writeJSON(w, http.StatusOK, cachedEventsResponse{
		Events:   nonNil(cached.Events),
		CachedAt: cached.CachedAt,
		Fresh:    cached.Fresh,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, msgMissingUsername)
		return
	}

	body, err := s.svc.Export(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, schedule.ErrNoCachedSchedule) {
			writeError(w, http.StatusNotFound, msgNoCachedSchedule)
			return
		}
		appLog.Error("ics export failed", err, "owner", req.Username)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ics.Filename(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		appLog.Error("failed to write ICS response", err)
	}
}

type healthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"activeSessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ActiveSessions: s.svc.ActiveSessions()})
}

// decodeBody reads a JSON request body. An empty body decodes as the zero
// value; malformed JSON is answered with 400.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func nonNil(events []model.NormalizedEvent) []model.NormalizedEvent {
	if events == nil {
		return []model.NormalizedEvent{}
	}
	return events
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
