package session

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronerog/furia-app/internal/api"
	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/internal/services"
	"github.com/ronerog/furia-app/internal/storage"
	"github.com/ronerog/furia-app/internal/testutil"
)

type fixture struct {
	manager *Manager
	backend *testutil.Backend
	client  *api.Client
	store   *storage.FileTokenStore
	user    *models.User
	token   string

	mu     sync.Mutex
	events []Event
}

func setupManager(t *testing.T) *fixture {
	t.Helper()

	backend := testutil.NewBackend(t)
	user := testutil.TestUser()
	token := backend.AddUser(user)

	client := api.NewClient(backend.URL(), 2*time.Second)
	store := storage.NewFileTokenStore(filepath.Join(t.TempDir(), "token"))
	manager := NewManager(client, store, services.NewTokenInspector())
	client.SetTokenSource(manager)
	client.OnUnauthorized(manager.HandleUnauthorized)
	t.Cleanup(manager.Close)

	f := &fixture{manager: manager, backend: backend, client: client, store: store, user: user, token: token}
	manager.Subscribe(func(ev Event) {
		f.mu.Lock()
		f.events = append(f.events, ev)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) recorded() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fixture) persisted(t *testing.T) string {
	t.Helper()
	token, err := f.store.Load(context.Background())
	if errors.Is(err, storage.ErrTokenNotFound) {
		return ""
	}
	require.NoError(t, err)
	return token
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("no token resolves unauthenticated", func(t *testing.T) {
		f := setupManager(t)

		assert.Equal(t, StateUnauthenticated, f.manager.Restore(ctx))
		assert.Zero(t, f.backend.CallCount(http.MethodGet, "/api/auth/me"))

		events := f.recorded()
		require.Len(t, events, 1)
		assert.Equal(t, StateUnknown, events[0].Previous)
		assert.Equal(t, StateUnauthenticated, events[0].Current)
	})

	t.Run("valid token restores session", func(t *testing.T) {
		f := setupManager(t)
		require.NoError(t, f.store.Save(ctx, f.token))

		assert.Equal(t, StateAuthenticated, f.manager.Restore(ctx))
		assert.True(t, f.manager.IsAuthenticated())
		assert.Equal(t, f.token, f.manager.Token())
		assert.Equal(t, f.user.ID, f.manager.User().ID)

		events := f.recorded()
		require.Len(t, events, 1)
		assert.True(t, events[0].Started())
		assert.Equal(t, f.token, events[0].Token)
	})

	t.Run("expired token is discarded without identity call", func(t *testing.T) {
		f := setupManager(t)
		require.NoError(t, f.store.Save(ctx, testutil.ExpiredToken(t, f.user.ID)))

		assert.Equal(t, StateUnauthenticated, f.manager.Restore(ctx))
		assert.Zero(t, f.backend.CallCount(http.MethodGet, "/api/auth/me"))
		assert.Empty(t, f.persisted(t))
	})

	t.Run("undecodable token is discarded without identity call", func(t *testing.T) {
		f := setupManager(t)
		require.NoError(t, f.store.Save(ctx, "not-a-jwt"))

		assert.Equal(t, StateUnauthenticated, f.manager.Restore(ctx))
		assert.Zero(t, f.backend.CallCount(http.MethodGet, "/api/auth/me"))
		assert.Empty(t, f.persisted(t))
	})

	t.Run("rejected token is discarded", func(t *testing.T) {
		f := setupManager(t)
		require.NoError(t, f.store.Save(ctx, f.token))
		f.backend.RevokeTokens()

		assert.Equal(t, StateUnauthenticated, f.manager.Restore(ctx))
		assert.Equal(t, 1, f.backend.CallCount(http.MethodGet, "/api/auth/me"))
		assert.Empty(t, f.persisted(t))
		assert.Empty(t, f.manager.Token())
	})

	t.Run("second restore is a no-op", func(t *testing.T) {
		f := setupManager(t)
		f.manager.Restore(ctx)
		require.NoError(t, f.store.Save(ctx, f.token))

		assert.Equal(t, StateUnauthenticated, f.manager.Restore(ctx))
		assert.Len(t, f.recorded(), 1)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists token and notifies", func(t *testing.T) {
		f := setupManager(t)
		f.manager.Restore(ctx)

		user, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
		require.NoError(t, err)
		assert.Equal(t, f.user.ID, user.ID)
		assert.Equal(t, StateAuthenticated, f.manager.State())
		assert.Equal(t, f.manager.Token(), f.persisted(t))

		events := f.recorded()
		require.Len(t, events, 2)
		assert.Equal(t, ReasonLogin, events[1].Reason)
		assert.Equal(t, StateUnauthenticated, events[1].Previous)
		assert.Equal(t, f.manager.Token(), events[1].Token)
	})

	t.Run("bad credentials change nothing", func(t *testing.T) {
		f := setupManager(t)
		f.manager.Restore(ctx)

		_, err := f.manager.Login(ctx, f.user.Email, "wrong")
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrInvalidCredentials)
		assert.Equal(t, StateUnauthenticated, f.manager.State())
		assert.Empty(t, f.persisted(t))
		assert.Len(t, f.recorded(), 1)
	})

	t.Run("success false with 200 changes nothing", func(t *testing.T) {
		f := setupManager(t)
		f.manager.Restore(ctx)
		f.backend.Override(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "bad creds"})
		})

		_, err := f.manager.Login(ctx, "a@b.com", "pw")
		assert.ErrorIs(t, err, api.ErrInvalidCredentials)
		assert.Equal(t, StateUnauthenticated, f.manager.State())
		assert.Empty(t, f.persisted(t))
		assert.Nil(t, f.manager.User())
	})

	t.Run("token without user is rejected", func(t *testing.T) {
		f := setupManager(t)
		f.manager.Restore(ctx)
		f.backend.Override(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "token": "abc"})
		})

		_, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
		assert.ErrorIs(t, err, api.ErrMalformedResponse)
		assert.Empty(t, f.persisted(t))
	})

	t.Run("token without usable expiry is rejected", func(t *testing.T) {
		tests := []struct {
			name  string
			token func(f *fixture) string
		}{
			{"opaque", func(*fixture) string { return "opaque-abc" }},
			{"expired", func(f *fixture) string { return testutil.ExpiredToken(t, f.user.ID) }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := setupManager(t)
				f.manager.Restore(ctx)
				token := tt.token(f)
				f.backend.Override(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
					testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "token": token, "user": f.user})
				})

				_, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)

				assert.ErrorIs(t, err, api.ErrMalformedResponse)
				assert.Equal(t, StateUnauthenticated, f.manager.State())
				assert.False(t, f.manager.IsAuthenticated())
				assert.Empty(t, f.manager.Token())
				assert.Empty(t, f.persisted(t))
				assert.Len(t, f.recorded(), 1)
			})
		}
	})

	t.Run("storage failure leaves state untouched", func(t *testing.T) {
		backend := testutil.NewBackend(t)
		user := testutil.TestUser()
		backend.AddUser(user)
		client := api.NewClient(backend.URL(), time.Second)
		manager := NewManager(client, failingStore{}, nil)
		manager.Restore(ctx)

		_, err := manager.Login(ctx, user.Email, testutil.TestPassword)
		require.Error(t, err)
		assert.Equal(t, StateUnauthenticated, manager.State())
		assert.Empty(t, manager.Token())
	})

	t.Run("login while authenticated replaces session", func(t *testing.T) {
		f := setupManager(t)
		require.NoError(t, f.store.Save(ctx, f.token))
		f.manager.Restore(ctx)

		_, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
		require.NoError(t, err)
		assert.NotEqual(t, f.token, f.manager.Token())

		events := f.recorded()
		require.Len(t, events, 2)
		assert.Equal(t, StateAuthenticated, events[1].Previous)
		assert.True(t, events[1].Started())
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t)
	f.manager.Restore(ctx)

	t.Run("duplicate email surfaces message", func(t *testing.T) {
		_, err := f.manager.Register(ctx, &models.Registration{Username: "x", Email: f.user.Email, Password: "pw"})
		require.Error(t, err)
		assert.Equal(t, "Email já cadastrado", api.Message(err))
		assert.Equal(t, StateUnauthenticated, f.manager.State())
	})

	t.Run("new account signs in", func(t *testing.T) {
		user, err := f.manager.Register(ctx, &models.Registration{Username: "novo", Email: "novo@example.com", Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, "novo", user.Username)
		assert.True(t, f.manager.IsAuthenticated())
		assert.NotEmpty(t, f.persisted(t))
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t)
	f.manager.Restore(ctx)
	_, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
	require.NoError(t, err)

	f.manager.Logout()
	assert.Equal(t, StateUnauthenticated, f.manager.State())
	assert.Empty(t, f.manager.Token())
	assert.Nil(t, f.manager.User())
	assert.Empty(t, f.persisted(t))

	t.Run("is idempotent", func(t *testing.T) {
		before := len(f.recorded())
		f.manager.Logout()
		f.manager.Logout()
		assert.Len(t, f.recorded(), before)
		assert.Equal(t, StateUnauthenticated, f.manager.State())
	})

	events := f.recorded()
	last := events[len(events)-1]
	assert.True(t, last.Ended())
	assert.Equal(t, ReasonLogout, last.Reason)
}

func TestLogoutBeforeRestore(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t)
	require.NoError(t, f.store.Save(ctx, f.token))

	f.manager.Logout()

	assert.Equal(t, StateUnauthenticated, f.manager.State())
	assert.Empty(t, f.persisted(t))
	events := f.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, StateUnknown, events[0].Previous)
	assert.Equal(t, StateUnauthenticated, events[0].Current)
	assert.Equal(t, ReasonLogout, events[0].Reason)
	assert.False(t, events[0].Ended())

	t.Run("later restore stays signed out", func(t *testing.T) {
		assert.Equal(t, StateUnauthenticated, f.manager.Restore(ctx))
		assert.Equal(t, 0, f.backend.CallCount(http.MethodGet, "/api/auth/me"))
		assert.Len(t, f.recorded(), 1)
	})
}

func TestHandleUnauthorized(t *testing.T) {
	ctx := context.Background()

	t.Run("401 on an authenticated call ends the session", func(t *testing.T) {
		f := setupManager(t)
		require.NoError(t, f.store.Save(ctx, f.token))
		f.manager.Restore(ctx)

		f.backend.RevokeTokens()
		_, err := f.client.Activities(ctx, f.user.ID)
		assert.ErrorIs(t, err, api.ErrUnauthorized)

		assert.Equal(t, StateUnauthenticated, f.manager.State())
		assert.Empty(t, f.persisted(t))
		events := f.recorded()
		assert.Equal(t, ReasonUnauthorized, events[len(events)-1].Reason)
	})

	t.Run("stale token does not end newer session", func(t *testing.T) {
		f := setupManager(t)
		f.manager.Restore(ctx)
		_, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
		require.NoError(t, err)

		f.manager.HandleUnauthorized(f.token)
		assert.Equal(t, StateAuthenticated, f.manager.State())
	})

	t.Run("no-op when signed out", func(t *testing.T) {
		f := setupManager(t)
		f.manager.Restore(ctx)
		f.manager.HandleUnauthorized("")
		assert.Len(t, f.recorded(), 1)
	})
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t)
	f.manager.Restore(ctx)

	short := f.backend.IssueToken(f.user.ID, time.Now().Add(2*time.Second))
	f.backend.Override(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "token": short, "user": f.user})
	})

	_, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
	require.NoError(t, err)
	assert.True(t, f.manager.IsAuthenticated())

	require.Eventually(t, func() bool {
		return f.manager.State() == StateUnauthenticated
	}, 5*time.Second, 20*time.Millisecond)

	events := f.recorded()
	assert.Equal(t, ReasonExpired, events[len(events)-1].Reason)
	assert.Empty(t, f.persisted(t))
}

func TestRefreshAndProfile(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t)

	_, err := f.manager.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	f.manager.Restore(ctx)
	_, err = f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
	require.NoError(t, err)

	t.Run("refresh replaces user", func(t *testing.T) {
		f.backend.SetPoints(f.user.ID, 999)
		user, err := f.manager.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, 999, user.Points)
		assert.Equal(t, 999, f.manager.User().Points)
	})

	t.Run("profile update replaces user", func(t *testing.T) {
		user, err := f.manager.UpdateProfile(ctx, &models.ProfileUpdate{City: testutil.StringPtr("Recife")})
		require.NoError(t, err)
		assert.Equal(t, "Recife", user.City)

		events := f.recorded()
		last := events[len(events)-1]
		assert.Equal(t, ReasonProfile, last.Reason)
		assert.False(t, last.Started())
		assert.False(t, last.Ended())
	})
}

func TestObserverReentry(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t)
	f.manager.Restore(ctx)

	// An observer that logs out on login must not deadlock and its
	// transition is delivered after the login event.
	f.manager.Subscribe(func(ev Event) {
		if ev.Reason == ReasonLogin {
			f.manager.Logout()
		}
	})

	_, err := f.manager.Login(ctx, f.user.Email, testutil.TestPassword)
	require.NoError(t, err)

	events := f.recorded()
	require.Len(t, events, 3)
	assert.Equal(t, ReasonLogin, events[1].Reason)
	assert.Equal(t, ReasonLogout, events[2].Reason)
	assert.Equal(t, StateUnauthenticated, f.manager.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
}

type failingStore struct{}

func (failingStore) Load(context.Context) (string, error) { return "", storage.ErrTokenNotFound }
func (failingStore) Save(context.Context, string) error   { return errors.New("disk full") }
func (failingStore) Delete(context.Context) error         { return nil }
func (failingStore) Ping(context.Context) error           { return nil }
