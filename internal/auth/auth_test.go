package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookbazaar/bazaar/pkg/client"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

const goodRefresh = "refresh-token-of-plenty-length"

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "session.json"), nil)
}

func sessionFor(id uuid.UUID, exp time.Time) *domain.Session {
	return &domain.Session{
		AccessToken:  "access",
		RefreshToken: goodRefresh,
		ExpiresAt:    exp,
		User:         domain.User{ID: id, Email: "a@b.c", Username: "asha"},
	}
}

func tokenResponse(w http.ResponseWriter, id uuid.UUID, access string) {
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"access_token":  access,
		"refresh_token": goodRefresh,
		"expires_in":    3600,
		"user":          map[string]any{"id": id.String(), "email": "a@b.c"},
	})
}

func TestStore_RoundTrip(t *testing.T) {
	st := newStore(t)
	sess := sessionFor(uuid.New(), time.Now().Add(time.Hour).UTC().Truncate(time.Second))
	require.NoError(t, st.Save(sess))

	info, err := os.Stat(st.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := st.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, sess.User, loaded.User)
	assert.True(t, sess.ExpiresAt.Equal(loaded.ExpiresAt))
}

func TestStore_LoadMissing(t *testing.T) {
	loaded, err := newStore(t).Load()
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_DiscardsCorruptedSession(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", `{not json`},
		{"short refresh token", `{"access_token":"a","refresh_token":"short"}`},
		{"missing access token", `{"refresh_token":"` + goodRefresh + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore(t)
			require.NoError(t, os.WriteFile(st.Path(), []byte(tt.data), 0o600))

			loaded, err := st.Load()
			assert.NoError(t, err)
			assert.Nil(t, loaded)
			_, statErr := os.Stat(st.Path())
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "corrupted session file left behind")
		})
	}
}

func TestSignIn_StoresSession(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenResponse(w, id, "access")
	}))
	defer srv.Close()

	st := newStore(t)
	require.NoError(t, st.Save(sessionFor(uuid.New(), time.Time{})))
	svc := NewService(client.New(srv.URL, "anon"), st, nil)

	sess, err := svc.SignIn(context.Background(), " a@b.c ", "pw")
	require.NoError(t, err)
	assert.Equal(t, id, sess.User.ID)

	stored, err := st.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, id, stored.User.ID, "previous session replaced")
}

func TestSignIn_RetriesOnceAfterTransportFailure(t *testing.T) {
	id := uuid.New()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close() //nolint:errcheck
			}
			return
		}
		tokenResponse(w, id, "access")
	}))
	defer srv.Close()

	svc := NewService(client.New(srv.URL, "anon"), newStore(t), nil)
	sess, err := svc.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, id, sess.User.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSignIn_PersistentTransportFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close() //nolint:errcheck
		}
	}))
	defer srv.Close()

	svc := NewService(client.New(srv.URL, "anon"), newStore(t), nil)
	_, err := svc.SignIn(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrSessionIssue)
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry")
}

func TestSignIn_BadCredentialsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	svc := NewService(client.New(srv.URL, "anon"), newStore(t), nil)
	_, err := svc.SignIn(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid login credentials")
	assert.NotErrorIs(t, err, ErrSessionIssue)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSignIn_RequiresCredentials(t *testing.T) {
	svc := NewService(client.New("http://127.0.0.1:1", "anon"), newStore(t), nil)
	_, err := svc.SignIn(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrCredentialsRequired)
}

func TestSignUp_RequiresUsername(t *testing.T) {
	svc := NewService(client.New("http://127.0.0.1:1", "anon"), newStore(t), nil)
	_, err := svc.SignUp(context.Background(), "a@b.c", "pw", "  ")
	assert.ErrorIs(t, err, ErrUsernameRequired)
}

func TestSignOut_ClearsEvenWhenServerFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := newStore(t)
	sess := sessionFor(uuid.New(), time.Time{})
	require.NoError(t, st.Save(sess))

	svc := NewService(client.New(srv.URL, "anon"), st, nil)
	require.NoError(t, svc.SignOut(context.Background(), sess))

	loaded, err := st.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRestore(t *testing.T) {
	id := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid session returned as is", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Save(sessionFor(id, now.Add(time.Hour))))
		svc := NewService(client.New("http://127.0.0.1:1", "anon"), st, nil)
		svc.now = func() time.Time { return now }

		sess, err := svc.Restore(context.Background())
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "access", sess.AccessToken)
	})

	t.Run("expired session refreshed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
			tokenResponse(w, id, "fresh-access")
		}))
		defer srv.Close()

		st := newStore(t)
		require.NoError(t, st.Save(sessionFor(id, now.Add(-time.Minute))))
		svc := NewService(client.New(srv.URL, "anon"), st, nil)
		svc.now = func() time.Time { return now }

		sess, err := svc.Restore(context.Background())
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "fresh-access", sess.AccessToken)
		assert.Equal(t, "asha", sess.User.Username, "username carried over")

		stored, err := st.Load()
		require.NoError(t, err)
		assert.Equal(t, "fresh-access", stored.AccessToken)
	})

	t.Run("rejected refresh signs out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"msg":"Invalid Refresh Token"}`)) //nolint:errcheck
		}))
		defer srv.Close()

		st := newStore(t)
		require.NoError(t, st.Save(sessionFor(id, now.Add(-time.Hour))))
		svc := NewService(client.New(srv.URL, "anon"), st, nil)
		svc.now = func() time.Time { return now }

		sess, err := svc.Restore(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, sess)
		_, statErr := os.Stat(st.Path())
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})
}

func TestRefresh(t *testing.T) {
	id := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		tokenResponse(w, id, "renewed")
	}))
	defer srv.Close()

	st := newStore(t)
	svc := NewService(client.New(srv.URL, "anon"), st, nil)
	svc.now = func() time.Time { return now }

	fresh := sessionFor(id, now.Add(time.Hour))
	assert.False(t, svc.NeedsRefresh(fresh))
	got, err := svc.Refresh(context.Background(), fresh)
	require.NoError(t, err)
	assert.Same(t, fresh, got)
	assert.Zero(t, calls)

	nearly := sessionFor(id, now.Add(30*time.Second))
	assert.True(t, svc.NeedsRefresh(nearly), "within skew of expiry")
	got, err = svc.Refresh(context.Background(), nearly)
	require.NoError(t, err)
	assert.Equal(t, "renewed", got.AccessToken)
	assert.Equal(t, 1, calls)

	stored, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "renewed", stored.AccessToken)
}
