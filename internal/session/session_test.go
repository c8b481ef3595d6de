package session

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathify/internal/model"
)

type countingStore struct {
	*MemoryStore
	writes int
}

func (c *countingStore) Set(ctx context.Context, sid, key, value string) error {
	c.writes++
	return c.MemoryStore.Set(ctx, sid, key, value)
}

func redirect(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return q
}

func TestBootstrapValidClaims(t *testing.T) {
	tests := []struct {
		name     string
		isAdmin  string
		wantDest string
	}{
		{name: "admin", isAdmin: "true", wantDest: AdminDashboard},
		{name: "student", isAdmin: "false", wantDest: StudentDashboard},
		{name: "isAdmin absent", isAdmin: "", wantDest: StudentDashboard},
		{name: "isAdmin not exactly true", isAdmin: "TRUE", wantDest: StudentDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &countingStore{MemoryStore: NewMemoryStore(time.Hour)}
			q := redirect("token", "jwt-abc", "id", "u1", "name", "Asha", "email", "asha@example.com", "avatar", "https://img/a.png", "isAdmin", tt.isAdmin)

			out, err := Bootstrap(context.Background(), store, q)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDest, out.Destination)
			require.NotNil(t, out.Session)
			assert.Equal(t, model.User{
				ID:      "u1",
				Name:    "Asha",
				Email:   "asha@example.com",
				Avatar:  "https://img/a.png",
				IsAdmin: tt.wantDest == AdminDashboard,
			}, out.Session.User)

			tok, err := out.Session.Token(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "jwt-abc", tok)
			assert.Equal(t, 1, store.writes)
		})
	}
}

func TestBootstrapMissingClaim(t *testing.T) {
	full := map[string]string{"token": "jwt", "id": "u1", "name": "Asha", "email": "a@example.com"}
	for _, missing := range []string{"token", "id", "name", "email"} {
		t.Run("missing "+missing, func(t *testing.T) {
			q := url.Values{}
			for k, v := range full {
				if k != missing {
					q.Set(k, v)
				}
			}
			q.Set("isAdmin", "true")
			store := &countingStore{MemoryStore: NewMemoryStore(time.Hour)}

			out, err := Bootstrap(context.Background(), store, q)
			require.NoError(t, err)
			assert.Equal(t, Fallback, out.Destination)
			assert.Nil(t, out.Session)
			assert.Zero(t, store.writes)
		})
	}
}

func TestClearForgetsToken(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sess := New("sid-1", model.User{ID: "u1"}, store)
	require.NoError(t, sess.SetToken(ctx, "tok"))
	require.NoError(t, store.Set(ctx, "sid-1", "theme", "dark"))

	require.NoError(t, sess.Clear(ctx))

	tok, err := sess.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
	_, ok, _ := store.Get(ctx, "sid-1", "theme")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "token", "x"))
	v, ok, _ := store.Get(ctx, "a", "token")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = store.Get(ctx, "a", "token")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Sweep())
}
