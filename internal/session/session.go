package session

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"mathify/internal/metrics"
	"mathify/internal/model"
)

const tokenKey = "token"

// Destinations after the login redirect.
const (
	AdminDashboard   = "/adminDashboard"
	StudentDashboard = "/studentDashboard"
	Fallback         = "/fallback"
)

// Session is the authentication context handed to every component that
// calls the backend. The user copy lives only as long as the session; the
// backend token lives in the Store.
type Session struct {
	ID    string
	User  model.User
	store Store
}

// New binds an existing session id and user to store.
func New(id string, user model.User, store Store) *Session {
	return &Session{ID: id, User: user, store: store}
}

// Token returns the persisted bearer token, or "" once cleared.
func (s *Session) Token(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, s.ID, tokenKey)
	return v, err
}

// SetToken persists the bearer token.
func (s *Session) SetToken(ctx context.Context, token string) error {
	return s.store.Set(ctx, s.ID, tokenKey, token)
}

// ClearToken forgets the bearer token; called when the backend answers 401.
func (s *Session) ClearToken(ctx context.Context) error {
	return s.store.Delete(ctx, s.ID, tokenKey)
}

// Clear drops everything persisted for the session.
func (s *Session) Clear(ctx context.Context) error {
	metrics.SessionEvent("logout")
	return s.store.Clear(ctx, s.ID)
}

// Outcome is the result of consuming the login redirect.
type Outcome struct {
	Session     *Session
	Destination string
}

// Bootstrap consumes the one-time login redirect. When token, id, name and
// email are all present it persists the token under a fresh session id and
// routes to the dashboard matching isAdmin; otherwise it routes to the
// fallback view and persists nothing.
func Bootstrap(ctx context.Context, store Store, q url.Values) (Outcome, error) {
	token := q.Get("token")
	user := model.User{
		ID:      q.Get("id"),
		Name:    q.Get("name"),
		Email:   q.Get("email"),
		Avatar:  q.Get("avatar"),
		IsAdmin: q.Get("isAdmin") == "true",
	}
	if token == "" || user.ID == "" || user.Name == "" || user.Email == "" {
		metrics.SessionEvent("fallback")
		return Outcome{Destination: Fallback}, nil
	}

	sess := New(uuid.NewString(), user, store)
	if err := sess.SetToken(ctx, token); err != nil {
		return Outcome{}, err
	}
	metrics.SessionEvent("login")

	dest := StudentDashboard
	if user.IsAdmin {
		dest = AdminDashboard
	}
	return Outcome{Session: sess, Destination: dest}, nil
}
