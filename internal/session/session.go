// Package session owns the client's authentication state: the four scalar
// fields the browser frontend kept in local storage (access token, refresh
// token, username, role), persisted to a JSON file and mirrored in memory.
// Every view reads it; only login/logout mutate it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/api"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

// ErrNotAuthenticated is returned by operations that require a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrInvalidCredentials is the generic login failure. Backend detail is
// deliberately not echoed to the user; a rejected password and an
// unreachable backend read the same.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Authenticator is the slice of the API client the store needs. Split out
// so tests can stub it and so the store never issues other calls.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
	RefreshToken(ctx context.Context, refresh string) (string, error)
}

// refreshLeeway is how close to expiry the access token may get before
// EnsureFresh trades the refresh token for a new one.
const refreshLeeway = 60 * time.Second

// persisted is the on-disk session layout. Exactly these four fields are
// ever persisted.
type persisted struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
	Role         string `json:"role"`
}

// Store holds the session. Mutations are single-shot user actions (no
// retry policy); all state changes are local.
type Store struct {
	mu   sync.Mutex
	path string
	auth Authenticator

	authenticated bool
	state         persisted
}

// New creates a Store persisting to path. Call Restore before use.
func New(path string) *Store {
	return &Store{path: path}
}

// SetAuthenticator wires the API client in. Done after construction
// because the client itself needs the store as its token source.
func (s *Store) SetAuthenticator(a Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = a
}

// Restore loads the persisted session, if any. The presence of a token is
// trusted without server validation; an expired token simply fails on the
// first backend call (and EnsureFresh repairs it when possible). Never
// touches the network. A missing file is a clean unauthenticated state,
// not an error.
func (s *Store) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.reset()
			return nil
		}
		return err
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupt session file: treat as logged out rather than
		// wedging startup.
		log.Error().Err(err).Str("path", s.path).Msg("session file unreadable, starting unauthenticated")
		s.reset()
		return nil
	}

	if p.AccessToken == "" {
		s.reset()
		return nil
	}

	s.state = p
	s.authenticated = true
	log.Info().Str("username", p.Username).Str("role", p.Role).Msg("session restored")
	return nil
}

// Login authenticates against the backend and persists the session. On
// any failure the store stays unauthenticated and the caller gets the
// generic ErrInvalidCredentials.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.mu.Lock()
	auth := s.auth
	s.mu.Unlock()
	if auth == nil {
		return errors.New("session store has no authenticator")
	}

	res, err := auth.Login(ctx, email, password)
	if err != nil {
		log.Error().Err(err).Msg("login failed")
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = persisted{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Username:     res.Username,
		Role:         string(res.Role),
	}
	s.authenticated = true

	if err := s.persistLocked(); err != nil {
		// The in-memory session is still valid for this run.
		log.Error().Err(err).Str("path", s.path).Msg("failed to persist session")
	}

	log.Info().Str("username", res.Username).Str("role", string(res.Role)).Msg("logged in")
	return nil
}

// Logout clears the session unconditionally, memory and disk both. No
// server-side revocation call is made.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := s.state.Username
	s.reset()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error().Err(err).Str("path", s.path).Msg("failed to remove session file")
	}
	log.Info().Str("username", username).Msg("logged out")
}

// EnsureFresh refreshes the access token when it is about to expire.
// Failures leave the session untouched: the next backend call will fail
// visibly and the user can log in again.
func (s *Store) EnsureFresh(ctx context.Context) {
	s.mu.Lock()
	auth := s.auth
	access := s.state.AccessToken
	refresh := s.state.RefreshToken
	authenticated := s.authenticated
	s.mu.Unlock()

	if !authenticated || auth == nil || refresh == "" {
		return
	}
	if !nearExpiry(access, time.Now()) {
		return
	}

	newAccess, err := auth.RefreshToken(ctx, refresh)
	if err != nil {
		log.Error().Err(err).Msg("token refresh failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The session may have been logged out while the refresh was in
	// flight; do not resurrect it.
	if !s.authenticated {
		return
	}
	s.state.AccessToken = newAccess
	if err := s.persistLocked(); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("failed to persist refreshed token")
	}
	log.Debug().Msg("access token refreshed")
}

// nearExpiry reports whether the JWT's exp claim falls within the refresh
// leeway of now. The token is parsed unverified: the client has no signing
// key, it only reads the timestamp it was handed. Tokens without a
// readable exp are never treated as expiring.
func nearExpiry(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.Add(refreshLeeway).After(exp.Time)
}

// Authenticated reports whether a session is active.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Username returns the cached username, empty when logged out.
func (s *Store) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Username
}

// Role returns the cached role, empty when logged out.
func (s *Store) Role() model.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Role(s.state.Role)
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken
}

// reset clears in-memory state. Caller holds the lock.
func (s *Store) reset() {
	s.state = persisted{}
	s.authenticated = false
}

// persistLocked writes the session atomically with 0600 perms, same
// temp-file+rename scheme the config uses. Caller holds the lock.
func (s *Store) persistLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventfront-session-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
