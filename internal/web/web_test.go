package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/api"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/config"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/events"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/rsvp"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/session"
)

// fakeBackend is a minimal in-memory stand-in for the remote REST API.
type fakeBackend struct {
	mu     sync.Mutex
	role   model.Role
	events []model.Event
	rsvps  map[int64]model.Status
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["email"] != "alice@example.com" || creds["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid email or password"})
			return
		}
		b.mu.Lock()
		role := b.role
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "acc",
			"refresh_token": "ref",
			"username":      "alice",
			"role":          string(role),
		})
	})

	mux.HandleFunc("GET /api/events/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		// One page is enough for these tests; count drives pagination.
		json.NewEncoder(w).Encode(map[string]any{
			"results": b.events,
			"count":   13,
		})
	})

	mux.HandleFunc("GET /api/my_rsvp_events/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		buckets := map[string][]model.Event{"going": {}, "maybe": {}, "not_going": {}}
		for id, st := range b.rsvps {
			for _, ev := range b.events {
				if ev.ID == id {
					buckets[string(st)] = append(buckets[string(st)], ev)
				}
			}
		}
		json.NewEncoder(w).Encode(buckets)
	})

	mux.HandleFunc("GET /api/my_events/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		json.NewEncoder(w).Encode(b.events)
	})

	mux.HandleFunc("POST /api/event/{id}/rsvp/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		id := pathID(r)
		b.mu.Lock()
		b.rsvps[id] = model.Status(body["status"])
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("DELETE /api/event/{id}/remove-rsvp/", func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)
		b.mu.Lock()
		delete(b.rsvps, id)
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PATCH /api/event/{id}/make-public/", func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)
		b.mu.Lock()
		for i := range b.events {
			if b.events[i].ID == id {
				b.events[i].PremiumOnly = false
			}
		}
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"message": "now public"})
	})

	return mux
}

func pathID(r *http.Request) int64 {
	var id int64
	fmt.Sscanf(r.PathValue("id"), "%d", &id)
	return id
}

type fixture struct {
	backend  *fakeBackend
	sessions *session.Store
	front    *httptest.Server
}

func newFixture(t *testing.T, role model.Role, cfgMut func(*config.Config)) *fixture {
	t.Helper()

	backend := &fakeBackend{
		role: role,
		events: []model.Event{
			{ID: 1, Title: "GopherCon", Location: "Berlin", Date: time.Now().Add(24 * time.Hour), PremiumOnly: true},
			{ID: 2, Title: "Community Meetup", Location: "Paris", Date: time.Now().Add(48 * time.Hour)},
		},
		rsvps: map[int64]model.Status{},
	}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)

	cfg := &config.Config{BaseURL: backendSrv.URL}
	cfg.Normalize()
	if cfgMut != nil {
		cfgMut(cfg)
	}

	sessions := session.New(filepath.Join(t.TempDir(), "session.json"))
	client := api.NewClient(cfg.BaseURL, 5*time.Second, sessions)
	sessions.SetAuthenticator(client)
	if err := sessions.Restore(); err != nil {
		t.Fatal(err)
	}

	server, err := NewServer(cfg, sessions, client, rsvp.NewCache(client), events.NewFetcher(client))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	front := httptest.NewServer(server.Handler())
	t.Cleanup(front.Close)

	return &fixture{backend: backend, sessions: sessions, front: front}
}

// noRedirect returns a client that reports redirects instead of following.
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	resp, err := noRedirect().PostForm(f.front.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"pw"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Fatalf("login response: %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(f.front.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)

	f.login(t)
	if !f.sessions.Authenticated() {
		t.Error("session not authenticated after login")
	}
	if f.sessions.Username() != "alice" || f.sessions.Role() != model.RoleGuest {
		t.Errorf("session identity: %q/%q", f.sessions.Username(), f.sessions.Role())
	}
}

func TestLoginFailureStaysOut(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)

	resp, err := noRedirect().PostForm(f.front.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/login") {
		t.Errorf("failed login redirected to %q", loc)
	}
	if f.sessions.Authenticated() {
		t.Error("session authenticated after failed login")
	}
}

func TestDashboardRequiresAuth(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)

	resp, err := noRedirect().Get(f.front.URL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Errorf("unauthenticated dashboard: %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestDashboardRendersEventsAndPagination(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)
	f.login(t)

	code, body := f.get(t, "/dashboard")
	if code != http.StatusOK {
		t.Fatalf("dashboard status = %d", code)
	}
	if !strings.Contains(body, "GopherCon") || !strings.Contains(body, "Community Meetup") {
		t.Error("dashboard does not list the events")
	}
	// 13 events at 6 per page: the control offers pages 1..3, never 4.
	if !strings.Contains(body, "page=3") {
		t.Error("pagination control missing page 3")
	}
	if strings.Contains(body, "page=4") {
		t.Error("pagination control offers an out-of-range page")
	}
}

func TestRSVPToggleRoundTrip(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)
	f.login(t)

	resp, err := noRedirect().PostForm(f.front.URL+"/rsvp", url.Values{
		"event_id":  {"1"},
		"status":    {"going"},
		"return_to": {"/dashboard"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("rsvp toggle status = %d", resp.StatusCode)
	}

	f.backend.mu.Lock()
	st := f.backend.rsvps[1]
	f.backend.mu.Unlock()
	if st != model.StatusGoing {
		t.Errorf("backend RSVP state = %q, want going", st)
	}

	// The dashboard now shows the joined state for that event.
	_, body := f.get(t, "/dashboard")
	if !strings.Contains(body, "Cancel RSVP") {
		t.Error("dashboard does not reflect the acknowledged RSVP")
	}

	// Toggling again cancels.
	resp, err = noRedirect().PostForm(f.front.URL+"/rsvp", url.Values{
		"event_id":  {"1"},
		"return_to": {"/dashboard"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	f.backend.mu.Lock()
	_, joined := f.backend.rsvps[1]
	f.backend.mu.Unlock()
	if joined {
		t.Error("second toggle should have removed the RSVP")
	}
}

// TestMakePublicThenRefetch pins the admin scenario: publishing a
// premium-only event happens before the next list fetch, and that fetch
// reflects the cleared flag.
func TestMakePublicThenRefetch(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, nil)
	f.login(t)

	_, body := f.get(t, "/dashboard")
	if !strings.Contains(body, `<span class="badge">Premium</span>`) {
		t.Fatal("premium event should carry the badge before publication")
	}

	resp, err := noRedirect().Post(f.front.URL+"/event/1/make-public", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("make-public status = %d", resp.StatusCode)
	}

	_, body = f.get(t, "/dashboard")
	if strings.Contains(body, `<span class="badge">Premium</span>`) {
		t.Error("dashboard still shows the premium badge after make-public")
	}
}

func TestCapabilityGating(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)
	f.login(t)

	for _, path := range []string{"/add_event", "/my_events", "/event/1/guests"} {
		code, _ := f.get(t, path)
		if code != http.StatusForbidden {
			t.Errorf("GET %s as guest = %d, want 403", path, code)
		}
	}
}

// TestLeaveWithColdCache pins the write path of the joined-events page:
// the page lists backend buckets the local cache has never seen, so
// leaving must still reach the backend rather than reporting success for
// a call that never happened.
func TestLeaveWithColdCache(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)
	f.login(t)

	f.backend.mu.Lock()
	f.backend.rsvps[2] = model.StatusGoing
	f.backend.mu.Unlock()

	resp, err := noRedirect().PostForm(f.front.URL+"/rsvps/leave", url.Values{
		"event_id": {"2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("leave status = %d", resp.StatusCode)
	}

	f.backend.mu.Lock()
	_, joined := f.backend.rsvps[2]
	f.backend.mu.Unlock()
	if joined {
		t.Error("backend still holds the RSVP after leaving")
	}
}

func TestMyEventsPage(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, nil)
	f.login(t)

	code, body := f.get(t, "/my_events")
	if code != http.StatusOK {
		t.Fatalf("/my_events status = %d", code)
	}
	if !strings.Contains(body, "GopherCon") || !strings.Contains(body, "Community Meetup") {
		t.Error("hosted events page does not list the events")
	}
	if !strings.Contains(body, "/manage_event/1") {
		t.Error("hosted events page missing the edit link")
	}
}

func TestStateEndpoint(t *testing.T) {
	f := newFixture(t, model.RolePremium, nil)
	f.login(t)
	f.get(t, "/dashboard") // warm the caches

	code, body := f.get(t, "/api/state")
	if code != http.StatusOK {
		t.Fatalf("/api/state status = %d", code)
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("/api/state is not JSON: %v", err)
	}
	if state["authenticated"] != true || state["view"] != "premium" {
		t.Errorf("state = %v", state)
	}
	if state["total_pages"] != float64(3) {
		t.Errorf("total_pages = %v, want 3", state["total_pages"])
	}
}

func TestExportICS(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)
	f.login(t)

	f.backend.mu.Lock()
	f.backend.rsvps[2] = model.StatusGoing
	f.backend.mu.Unlock()

	resp, err := http.Get(f.front.URL + "/rsvps/export.ics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "SUMMARY:Community Meetup") {
		t.Error("exported calendar missing the joined event")
	}
}

func TestBasicAuthGuardsAllButHealth(t *testing.T) {
	f := newFixture(t, model.RoleGuest, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "local", Password: "secret"}
	})

	code, body := f.get(t, "/health")
	if code != http.StatusOK || body != "OK" {
		t.Errorf("/health behind basic auth = %d %q", code, body)
	}

	resp, err := http.Get(f.front.URL + "/login")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated frontend request = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, f.front.URL+"/login", nil)
	req.SetBasicAuth("local", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated frontend request = %d, want 200", resp.StatusCode)
	}
}

func TestLogoutClearsSessionAndCache(t *testing.T) {
	f := newFixture(t, model.RoleGuest, nil)
	f.login(t)

	resp, err := noRedirect().Post(f.front.URL+"/logout", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if f.sessions.Authenticated() {
		t.Error("session still authenticated after logout")
	}
	_, body := f.get(t, "/api/state")
	var state map[string]any
	json.Unmarshal([]byte(body), &state)
	if state["authenticated"] != false || state["rsvp_count"] != float64(0) {
		t.Errorf("state after logout = %v", state)
	}
}
