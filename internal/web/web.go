// Package web serves the local frontend: server-rendered dashboards over
// the remote event-management API, driven by the session store, the RSVP
// cache and the event list fetcher.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/api"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/config"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/events"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/rsvp"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/session"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server composes the client-side state modules behind an HTTP frontend.
// It is single-user by design: one session, one set of caches, mirroring
// the browser client this replaces.
type Server struct {
	cfg      *config.Config
	sessions *session.Store
	client   *api.Client
	rsvps    *rsvp.Cache
	list     *events.Fetcher

	mux  *http.ServeMux
	tmpl *template.Template
}

// guestTable is the data one guest bucket table renders from.
type guestTable struct {
	EventID int64
	Guests  []model.Guest
	CanEdit bool
}

// NewServer constructs the frontend server.
func NewServer(cfg *config.Config, sessions *session.Store, client *api.Client, rsvps *rsvp.Cache, list *events.Fetcher) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"eventDate": func(t time.Time) string { return t.Format("Mon, 02 Jan 2006 15:04") },
		"inputDate": func(t time.Time) string { return t.Format("2006-01-02T15:04") },
		"guestRows": func(eventID int64, guests []model.Guest, canEdit bool) guestTable {
			return guestTable{EventID: eventID, Guests: guests, CanEdit: canEdit}
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		client:   client,
		rsvps:    rsvps,
		list:     list,
		mux:      http.NewServeMux(),
		tmpl:     tmpl,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root handler, wrapped with basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		log.Info().Str("listen", "http://"+s.cfg.Listen).Msg("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)

	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /register", s.handleRegisterForm)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /reset-password", s.handleResetRequestForm)
	s.mux.HandleFunc("POST /reset-password", s.handleResetRequest)
	s.mux.HandleFunc("GET /reset-password/{uid}/{token}", s.handleResetConfirmForm)
	s.mux.HandleFunc("POST /reset-password/{uid}/{token}", s.handleResetConfirm)

	s.mux.HandleFunc("GET /dashboard", s.requireAuth(s.handleDashboard))
	s.mux.HandleFunc("POST /rsvp", s.requireAuth(s.handleRSVPToggle))
	s.mux.HandleFunc("GET /event/{id}", s.requireAuth(s.handleEventDetail))
	s.mux.HandleFunc("POST /event/{id}/delete", s.requireAuth(s.handleEventDelete))
	s.mux.HandleFunc("POST /event/{id}/make-public", s.requireAuth(s.handleMakePublic))
	s.mux.HandleFunc("GET /event/{id}/guests", s.requireAuth(s.handleGuestList))
	s.mux.HandleFunc("POST /event/{id}/guests/remove", s.requireAuth(s.handleGuestRemove))
	s.mux.HandleFunc("GET /my_events", s.requireAuth(s.handleMyEvents))
	s.mux.HandleFunc("GET /add_event", s.requireAuth(s.handleCreateForm))
	s.mux.HandleFunc("POST /add_event", s.requireAuth(s.handleCreate))
	s.mux.HandleFunc("GET /manage_event/{id}", s.requireAuth(s.handleManageForm))
	s.mux.HandleFunc("POST /manage_event/{id}", s.requireAuth(s.handleManage))
	s.mux.HandleFunc("GET /rsvps", s.requireAuth(s.handleMyRSVPs))
	s.mux.HandleFunc("POST /rsvps/leave", s.requireAuth(s.handleLeave))
	s.mux.HandleFunc("GET /rsvps/export.ics", s.requireAuth(s.handleExportICS))
}

// requireAuth redirects unauthenticated requests to the login page and
// keeps the access token fresh for the wrapped handler's backend calls.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.Authenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		s.sessions.EnsureFresh(r.Context())
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// stateResponse is the JSON shape of /api/state, a machine-readable
// snapshot of the client-side state for diagnostics and tests.
type stateResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	ViewName      string `json:"view"`
	CurrentPage   int    `json:"current_page"`
	TotalPages    int    `json:"total_pages"`
	RSVPCount     int    `json:"rsvp_count"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{
		Authenticated: s.sessions.Authenticated(),
		Username:      s.sessions.Username(),
		Role:          string(s.sessions.Role()),
		ViewName:      view.For(s.sessions.Role()).Name,
		CurrentPage:   s.list.CurrentPage(),
		TotalPages:    s.list.TotalPages(),
		RSVPCount:     s.rsvps.Len(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefreshCaches reloads the event list and RSVP cache. Driven by the cron
// schedule from main; a no-op when logged out. Failures keep stale state,
// per the read-path policy.
func (s *Server) RefreshCaches(ctx context.Context) {
	if !s.sessions.Authenticated() {
		return
	}
	s.sessions.EnsureFresh(ctx)
	if err := s.list.Load(ctx); err != nil {
		log.Error().Err(err).Msg("background event list refresh failed")
	}
	if err := s.rsvps.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("background RSVP refresh failed")
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic
// Auth. This fences off the single-user session from the rest of the
// network; backend auth is the bearer token, not this.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventfront", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
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

// render writes a named template, falling back to a bare 500 when the
// template itself fails.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("template render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// redirectFlash redirects to path with a notice or error carried in the
// query string. Single-user frontend: query-param flashes beat keeping a
// server-side flash store.
func redirectFlash(w http.ResponseWriter, r *http.Request, path, key, msg string) {
	u, err := url.Parse(path)
	if err != nil {
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	}
	q := u.Query()
	q.Set(key, msg)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
