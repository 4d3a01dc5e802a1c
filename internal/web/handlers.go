package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/api"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/events"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/export"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/rsvp"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/view"
)

// basePage carries the fields every template needs.
type basePage struct {
	Title         string
	Authenticated bool
	Username      string
	View          view.View
	Error         string
	Notice        string
}

func (s *Server) base(r *http.Request, title string) basePage {
	q := r.URL.Query()
	return basePage{
		Title:         title,
		Authenticated: s.sessions.Authenticated(),
		Username:      s.sessions.Username(),
		View:          view.For(s.sessions.Role()),
		Error:         q.Get("error"),
		Notice:        q.Get("notice"),
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, "home", s.base(r, "Event Management Platform"))
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, "login", s.base(r, "Log in"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" || password == "" {
		redirectFlash(w, r, "/login", "error", "Email and password are required")
		return
	}

	if err := s.sessions.Login(r.Context(), email, password); err != nil {
		redirectFlash(w, r, "/login", "error", err.Error())
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "register", s.base(r, "Register"))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	email := r.FormValue("email")
	password := r.FormValue("password")
	if username == "" || email == "" || password == "" {
		redirectFlash(w, r, "/register", "error", "All fields are required")
		return
	}

	if err := s.client.Register(r.Context(), username, email, password); err != nil {
		// Backend validation messages ("Email already in use") come
		// back verbatim; transport errors get a generic line.
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			redirectFlash(w, r, "/register", "error", apiErr.Message)
			return
		}
		log.Error().Err(err).Msg("registration failed")
		redirectFlash(w, r, "/register", "error", "Registration failed, please try again")
		return
	}
	redirectFlash(w, r, "/login", "notice", "Registration successful, please log in")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout()
	s.rsvps.Clear()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleResetRequestForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "reset_request", s.base(r, "Reset password"))
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" {
		redirectFlash(w, r, "/reset-password", "error", "Email is required")
		return
	}

	msg, err := s.client.RequestPasswordReset(r.Context(), email)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			redirectFlash(w, r, "/reset-password", "error", apiErr.Message)
			return
		}
		redirectFlash(w, r, "/reset-password", "error", "Could not request a reset, please try again")
		return
	}
	if msg == "" {
		msg = "Password reset link sent"
	}
	redirectFlash(w, r, "/reset-password", "notice", msg)
}

type resetConfirmPage struct {
	basePage
	UID   string
	Token string
}

func (s *Server) handleResetConfirmForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "reset_confirm", resetConfirmPage{
		basePage: s.base(r, "Choose a new password"),
		UID:      r.PathValue("uid"),
		Token:    r.PathValue("token"),
	})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	token := r.PathValue("token")
	password := r.FormValue("new_password")
	self := fmt.Sprintf("/reset-password/%s/%s", url.PathEscape(uid), url.PathEscape(token))

	if len(password) < 6 {
		redirectFlash(w, r, self, "error", "Password must be at least 6 characters long")
		return
	}

	if err := s.client.ConfirmPasswordReset(r.Context(), uid, token, password); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			redirectFlash(w, r, self, "error", apiErr.Message)
			return
		}
		redirectFlash(w, r, self, "error", "Password reset failed, please try again")
		return
	}
	redirectFlash(w, r, "/login", "notice", "Password reset successful, please log in")
}

// eventCard is one dashboard card: the event plus the user's RSVP state.
type eventCard struct {
	model.Event
	Joined bool
	Status model.Status
}

type dashboardPage struct {
	basePage
	Cards       []eventCard
	Filters     events.Filters
	CurrentPage int
	TotalPages  int
	PageNumbers []int
	Statuses    []model.Status
	ReturnTo    string
}

// handleDashboard renders the role-gated dashboard: one template
// parametrized by the capability set, not one page per role.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	s.list.SetFilters(events.Filters{
		Date:     q.Get("date"),
		Location: q.Get("location"),
	})
	if p := q.Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			if err := s.list.SetPage(n); err != nil {
				log.Debug().Int("page", n).Msg("requested page out of range, staying put")
			}
		}
	}

	// Read-path failures are logged and the previous page shown;
	// neither fetch blocks the render.
	if err := s.list.Load(ctx); err != nil && !errors.Is(err, events.ErrStaleLoad) {
		log.Error().Err(err).Msg("dashboard event fetch failed")
	}
	_ = s.rsvps.Refresh(ctx)

	page := s.list.Page()
	cards := make([]eventCard, 0, len(page.Items))
	for _, ev := range page.Items {
		st, joined := s.rsvps.Status(ev.ID)
		cards = append(cards, eventCard{Event: ev, Joined: joined, Status: st})
	}

	returnTo := "/dashboard"
	if enc := r.URL.RawQuery; enc != "" {
		returnTo += "?" + enc
	}

	s.render(w, "dashboard", dashboardPage{
		basePage:    s.base(r, "Dashboard"),
		Cards:       cards,
		Filters:     s.list.Filters(),
		CurrentPage: s.list.CurrentPage(),
		TotalPages:  s.list.TotalPages(),
		PageNumbers: s.list.PageNumbers(),
		Statuses:    []model.Status{model.StatusGoing, model.StatusMaybe, model.StatusNotGoing},
		ReturnTo:    returnTo,
	})
}

// handleRSVPToggle flips the user's RSVP for one event. Write failures are
// surfaced to the acting user; a toggle already in flight for the same
// event drops this one instead of queueing it.
func (s *Server) handleRSVPToggle(w http.ResponseWriter, r *http.Request) {
	returnTo := sanitizeReturn(r.FormValue("return_to"))

	eventID, err := strconv.ParseInt(r.FormValue("event_id"), 10, 64)
	if err != nil {
		redirectFlash(w, r, returnTo, "error", "Invalid event")
		return
	}

	statusValue := r.FormValue("status")
	if statusValue == "" {
		statusValue = string(model.StatusMaybe)
	}
	status, err := model.ParseStatus(statusValue)
	if err != nil {
		redirectFlash(w, r, returnTo, "error", "Invalid RSVP status")
		return
	}

	switch err := s.rsvps.Toggle(r.Context(), eventID, status); {
	case errors.Is(err, rsvp.ErrToggleInFlight):
		redirectFlash(w, r, returnTo, "notice", "That change is already being processed")
	case err != nil:
		redirectFlash(w, r, returnTo, "error", "Could not update your RSVP, please try again")
	default:
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
	}
}

type detailPage struct {
	basePage
	Detail   model.EventDetail
	Statuses []model.Status
}

func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	eventID, ok := s.pathEventID(w, r)
	if !ok {
		return
	}

	detail, err := s.client.EventDetail(r.Context(), eventID)
	if err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("event detail fetch failed")
		redirectFlash(w, r, "/dashboard", "error", "Event not found")
		return
	}

	s.render(w, "event_detail", detailPage{
		basePage: s.base(r, detail.Event.Title),
		Detail:   detail,
		Statuses: []model.Status{model.StatusGoing, model.StatusMaybe, model.StatusNotGoing},
	})
}

func (s *Server) handleEventDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}
	eventID, ok := s.pathEventID(w, r)
	if !ok {
		return
	}

	if err := s.client.DeleteEvent(r.Context(), eventID); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("event delete failed")
		redirectFlash(w, r, "/dashboard", "error", "Could not delete the event")
		return
	}
	redirectFlash(w, r, "/dashboard", "notice", "Event deleted")
}

// handleMakePublic converts a premium-only event to public. The redirect
// back to the dashboard triggers a fresh list fetch, so the cleared flag
// is visible immediately after the backend acknowledges.
func (s *Server) handleMakePublic(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}
	eventID, ok := s.pathEventID(w, r)
	if !ok {
		return
	}

	if err := s.client.MakePublic(r.Context(), eventID); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("make-public failed")
		redirectFlash(w, r, "/dashboard", "error", "Could not publish the event")
		return
	}
	redirectFlash(w, r, "/dashboard", "notice", "Event is now public")
}

type guestListPage struct {
	basePage
	EventID int64
	Guests  model.GuestList
}

func (s *Server) handleGuestList(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanSeeGuestList) {
		return
	}
	eventID, ok := s.pathEventID(w, r)
	if !ok {
		return
	}

	guests, err := s.client.GuestList(r.Context(), eventID)
	if err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("guest list fetch failed")
		redirectFlash(w, r, "/dashboard", "error", "Could not load the guest list")
		return
	}

	s.render(w, "guest_list", guestListPage{
		basePage: s.base(r, "Guest list"),
		EventID:  eventID,
		Guests:   guests,
	})
}

func (s *Server) handleGuestRemove(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}
	eventID, ok := s.pathEventID(w, r)
	if !ok {
		return
	}
	back := fmt.Sprintf("/event/%d/guests", eventID)

	userID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
	if err != nil {
		redirectFlash(w, r, back, "error", "Invalid user")
		return
	}

	if err := s.client.RemoveUserRSVP(r.Context(), eventID, userID); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Int64("user_id", userID).Msg("remove user RSVP failed")
		redirectFlash(w, r, back, "error", "Could not remove the guest")
		return
	}
	redirectFlash(w, r, back, "notice", "Guest removed")
}

type myEventsPage struct {
	basePage
	Events []model.Event
}

func (s *Server) handleMyEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}

	hosted, err := s.client.MyEvents(r.Context())
	if err != nil {
		// Read path: log and render an empty list.
		log.Error().Err(err).Msg("hosted events fetch failed")
	}

	s.render(w, "my_events", myEventsPage{
		basePage: s.base(r, "My hosted events"),
		Events:   hosted,
	})
}

type eventFormPage struct {
	basePage
	Action  string
	Event   model.Event
	Editing bool
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}
	s.render(w, "event_form", eventFormPage{
		basePage: s.base(r, "Create event"),
		Action:   "/add_event",
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}

	form, err := parseEventForm(r)
	if err != nil {
		redirectFlash(w, r, "/add_event", "error", err.Error())
		return
	}

	created, err := s.client.CreateEvent(r.Context(), form)
	if err != nil {
		log.Error().Err(err).Msg("event create failed")
		redirectFlash(w, r, "/add_event", "error", "Could not create the event")
		return
	}
	log.Info().Int64("event_id", created.ID).Str("title", created.Title).Msg("event created")
	redirectFlash(w, r, "/dashboard", "notice", "Event created")
}

func (s *Server) handleManageForm(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}
	eventID, ok := s.pathEventID(w, r)
	if !ok {
		return
	}

	detail, err := s.client.EventDetail(r.Context(), eventID)
	if err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("event detail fetch failed")
		redirectFlash(w, r, "/dashboard", "error", "Event not found")
		return
	}

	s.render(w, "event_form", eventFormPage{
		basePage: s.base(r, "Manage event"),
		Action:   fmt.Sprintf("/manage_event/%d", eventID),
		Event:    detail.Event,
		Editing:  true,
	})
}

func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	if !s.requireCapability(w, view.For(s.sessions.Role()).CanEdit) {
		return
	}
	eventID, ok := s.pathEventID(w, r)
	if !ok {
		return
	}
	self := fmt.Sprintf("/manage_event/%d", eventID)

	form, err := parseEventForm(r)
	if err != nil {
		redirectFlash(w, r, self, "error", err.Error())
		return
	}

	if _, err := s.client.UpdateEvent(r.Context(), eventID, form); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("event update failed")
		redirectFlash(w, r, self, "error", "Could not update the event")
		return
	}
	redirectFlash(w, r, "/dashboard", "notice", "Event updated")
}

type myRSVPsPage struct {
	basePage
	Buckets model.RSVPBuckets
	Empty   bool
}

func (s *Server) handleMyRSVPs(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.client.MyRSVPEvents(r.Context())
	if err != nil {
		// Read path: log and show what we have (nothing).
		log.Error().Err(err).Msg("my RSVP events fetch failed")
	}

	s.render(w, "my_rsvps", myRSVPsPage{
		basePage: s.base(r, "My joined events"),
		Buckets:  buckets,
		Empty:    len(buckets.Going)+len(buckets.Maybe)+len(buckets.NotGoing) == 0,
	})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(r.FormValue("event_id"), 10, 64)
	if err != nil {
		redirectFlash(w, r, "/rsvps", "error", "Invalid event")
		return
	}

	switch err := s.rsvps.Remove(r.Context(), eventID); {
	case errors.Is(err, rsvp.ErrToggleInFlight):
		redirectFlash(w, r, "/rsvps", "notice", "That change is already being processed")
	case err != nil:
		redirectFlash(w, r, "/rsvps", "error", "Could not leave the event, please try again")
	default:
		redirectFlash(w, r, "/rsvps", "notice", "You left the event")
	}
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.client.MyRSVPEvents(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("my RSVP events fetch failed")
		redirectFlash(w, r, "/rsvps", "error", "Could not export your events")
		return
	}

	host := "events"
	if u, err := url.Parse(s.cfg.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}

	cal := export.Calendar(buckets, host)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="my-events.ics"`)
	if err := cal.SerializeTo(w); err != nil {
		log.Error().Err(err).Msg("ics serialization failed")
	}
}

// requireCapability writes a 403 when the current view lacks the
// capability. Returns true when the caller may proceed.
func (s *Server) requireCapability(w http.ResponseWriter, allowed bool) bool {
	if !allowed {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// pathEventID parses the {id} path segment, writing a 404 on garbage.
func (s *Server) pathEventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

// sanitizeReturn keeps post-action redirects on this site.
func sanitizeReturn(p string) string {
	if p == "" || p[0] != '/' || len(p) > 1 && p[1] == '/' {
		return "/dashboard"
	}
	return p
}

// parseEventForm reads the multipart create/update form. The image is
// optional and streamed through to the backend untouched.
func parseEventForm(r *http.Request) (api.EventForm, error) {
	const maxUpload = 10 << 20
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return api.EventForm{}, fmt.Errorf("invalid form submission")
	}

	title := r.FormValue("title")
	location := r.FormValue("location")
	if title == "" || location == "" {
		return api.EventForm{}, fmt.Errorf("title and location are required")
	}

	date, err := parseEventDate(r.FormValue("date"))
	if err != nil {
		return api.EventForm{}, fmt.Errorf("invalid event date")
	}

	form := api.EventForm{
		Title:       title,
		Description: r.FormValue("description"),
		Date:        date,
		Location:    location,
		PremiumOnly: r.FormValue("premium_only") == "on" || r.FormValue("premium_only") == "true",
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		// The file handle stays valid until the multipart form is
		// cleaned up after the handler returns.
		form.ImageName = header.Filename
		form.Image = io.Reader(file)
	case errors.Is(err, http.ErrMissingFile):
		// No image is fine.
	default:
		return api.EventForm{}, fmt.Errorf("invalid image upload")
	}

	return form, nil
}

// parseEventDate accepts the datetime-local input format and RFC 3339.
func parseEventDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
