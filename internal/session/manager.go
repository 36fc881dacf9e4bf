// Package session owns the fan's authentication state: the bearer token,
// the current user record and the lifecycle state machine
//
//	unknown -> unauthenticated | authenticated   (Restore)
//	unauthenticated -> authenticated             (Login, Register)
//	authenticated -> unauthenticated             (Logout, 401, token expiry)
//
// Other components never hold their own copy of the token; they read it
// through Token() or receive it in an Event.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/api"
	"github.com/ronerog/furia-app/internal/metrics"
	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/internal/services"
	"github.com/ronerog/furia-app/internal/storage"
)

// storeTimeout bounds token store writes issued from background paths
// (401 handling, expiry) that have no caller context.
const storeTimeout = 5 * time.Second

// ErrNotAuthenticated is returned by operations that need a live session.
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthAPI is the subset of the REST client the manager depends on.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.AuthPayload, error)
	Register(ctx context.Context, reg *models.Registration) (*models.AuthPayload, error)
	Me(ctx context.Context, token string) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	UpdateUser(ctx context.Context, userID string, patch *models.ProfileUpdate) (*models.User, error)
}

// Manager is the session state machine.
type Manager struct {
	auth      AuthAPI
	store     storage.TokenStore
	inspector *services.TokenInspector

	// persistMu serializes token store writes together with the state change
	// they belong to, so the stored token always matches the last transition.
	persistMu sync.Mutex

	mu         sync.RWMutex
	state      State
	user       *models.User
	token      string
	generation uint64
	expiry     *time.Timer
	observers  []Observer

	queueMu     sync.Mutex
	queue       []Event
	dispatching bool
}

// NewManager creates a manager in the unknown state.
//
// Parameters:
//   - auth: the backend REST client
//   - store: durable token storage
//   - inspector: token decoder used for expiry checks; nil uses the wall clock
//
// Example:
//
//	manager := session.NewManager(client, tokenStore, services.NewTokenInspector())
//	client.SetTokenSource(manager)
//	client.OnUnauthorized(manager.HandleUnauthorized)
//	manager.Restore(ctx)
func NewManager(auth AuthAPI, store storage.TokenStore, inspector *services.TokenInspector) *Manager {
	if inspector == nil {
		inspector = services.NewTokenInspector()
	}
	return &Manager{
		auth:      auth,
		store:     store,
		inspector: inspector,
		state:     StateUnknown,
	}
}

// Subscribe registers an observer for all future transitions.
func (m *Manager) Subscribe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the current bearer token, "" when not authenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return ""
	}
	return m.token
}

// User returns a copy of the current user record, nil when signed out.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyUser(m.user)
}

// IsAuthenticated reports whether a usable session exists: authenticated
// state, a user record and a token that has not yet expired.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	state, user, token := m.state, m.user, m.token
	m.mu.RUnlock()

	return state == StateAuthenticated && user != nil && !m.inspector.Expired(token)
}

// Restore resolves the unknown state from the persisted token. It never
// fails: every problem ends in the unauthenticated state.
//
// An expired or undecodable token is discarded without contacting the
// server. Restore is a no-op once the state has been resolved.
func (m *Manager) Restore(ctx context.Context) State {
	m.mu.RLock()
	state, gen := m.state, m.generation
	m.mu.RUnlock()
	if state != StateUnknown {
		return state
	}

	token, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn().Err(err).Msg("Failed to load persisted token")
		}
		return m.resolveUnauthenticated()
	}

	if m.inspector.Expired(token) {
		log.Info().Msg("Persisted token expired, discarding")
		m.discardToken(ctx, gen)
		return m.resolveUnauthenticated()
	}

	user, err := m.auth.Me(ctx, token)
	if err != nil {
		log.Info().Err(err).Msg("Persisted token rejected, discarding")
		m.discardToken(ctx, gen)
		return m.resolveUnauthenticated()
	}

	m.mu.Lock()
	if m.state != StateUnknown {
		// A login resolved the session while /auth/me was in flight.
		current := m.state
		m.mu.Unlock()
		return current
	}
	if m.generation != gen {
		// Logged out while /auth/me was in flight.
		m.mu.Unlock()
		return m.resolveUnauthenticated()
	}
	m.setAuthenticatedLocked(user, token, ReasonRestore)
	m.mu.Unlock()
	m.dispatch()

	log.Info().Str("user_id", user.ID).Msg("Session restored")
	return StateAuthenticated
}

// Login authenticates with email and password.
//
// On success the token is persisted before the state changes; on any
// failure (rejected credentials, a {success:false} body, a response
// missing token or user, transport errors) nothing is written and the
// state is unchanged. A login while authenticated replaces the session.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	payload, err := m.auth.Login(ctx, email, password)
	if err != nil {
		metrics.IncrementAuthAttempts("login", "failure")
		log.Info().Err(err).Msg("Login failed")
		return nil, err
	}
	metrics.IncrementAuthAttempts("login", "success")
	return m.establish(ctx, payload, ReasonLogin)
}

// Register creates an account and signs in with it. Same contract as Login.
func (m *Manager) Register(ctx context.Context, reg *models.Registration) (*models.User, error) {
	payload, err := m.auth.Register(ctx, reg)
	if err != nil {
		metrics.IncrementAuthAttempts("register", "failure")
		log.Info().Err(err).Msg("Registration failed")
		return nil, err
	}
	metrics.IncrementAuthAttempts("register", "success")
	return m.establish(ctx, payload, ReasonRegister)
}

func (m *Manager) establish(ctx context.Context, payload *models.AuthPayload, reason Reason) (*models.User, error) {
	// Restore would discard a token without a future exp, so never store one.
	if m.inspector.Expired(payload.Token) {
		log.Warn().Str("reason", string(reason)).Msg("Backend issued an unusable token")
		return nil, fmt.Errorf("%w: token has no valid expiry", api.ErrMalformedResponse)
	}

	m.persistMu.Lock()
	if err := m.store.Save(ctx, payload.Token); err != nil {
		m.persistMu.Unlock()
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	m.mu.Lock()
	m.setAuthenticatedLocked(payload.User, payload.Token, reason)
	m.mu.Unlock()
	m.persistMu.Unlock()
	m.dispatch()

	log.Info().
		Str("user_id", payload.User.ID).
		Str("reason", string(reason)).
		Msg("Session started")
	return copyUser(payload.User), nil
}

// Logout ends the session. It always succeeds and is idempotent.
func (m *Manager) Logout() {
	m.terminate(ReasonLogout, func() bool { return true })
}

// HandleUnauthorized ends the session after a 401 for token. A rejection
// of any token other than the current one is ignored.
func (m *Manager) HandleUnauthorized(token string) {
	m.terminate(ReasonUnauthorized, func() bool {
		return m.state == StateAuthenticated && token != "" && token == m.token
	})
}

// Refresh re-fetches the user record and replaces it wholesale.
// A 401 ends the session through the client's unauthorized handler.
func (m *Manager) Refresh(ctx context.Context) (*models.User, error) {
	gen, _, err := m.current()
	if err != nil {
		return nil, err
	}

	user, err := m.auth.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh user: %w", err)
	}
	return m.replaceUser(gen, user, ReasonRefresh)
}

// UpdateProfile saves profile changes and replaces the user record with
// the server's version.
func (m *Manager) UpdateProfile(ctx context.Context, patch *models.ProfileUpdate) (*models.User, error) {
	gen, userID, err := m.current()
	if err != nil {
		return nil, err
	}

	user, err := m.auth.UpdateUser(ctx, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return m.replaceUser(gen, user, ReasonProfile)
}

func (m *Manager) current() (uint64, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated || m.user == nil {
		return 0, "", ErrNotAuthenticated
	}
	return m.generation, m.user.ID, nil
}

func (m *Manager) replaceUser(gen uint64, user *models.User, reason Reason) (*models.User, error) {
	m.mu.Lock()
	if m.generation != gen || m.state != StateAuthenticated {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	m.user = copyUser(user)
	m.enqueueLocked(Event{
		Previous: StateAuthenticated,
		Current:  StateAuthenticated,
		Reason:   reason,
		User:     copyUser(user),
		Token:    m.token,
	})
	m.mu.Unlock()
	m.dispatch()
	return copyUser(user), nil
}

// terminate moves the session to unauthenticated when match (evaluated
// under the state lock) allows it. A Logout during unknown also resolves
// the state, and the generation bump makes any in-flight Restore drop its
// result. The persisted token is deleted regardless of the starting state.
func (m *Manager) terminate(reason Reason, match func() bool) {
	m.persistMu.Lock()

	m.mu.Lock()
	if !match() {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return
	}
	prev := m.state
	m.generation++
	m.stopExpiryLocked()
	m.user = nil
	m.token = ""
	m.state = StateUnauthenticated
	if prev != StateUnauthenticated {
		m.enqueueLocked(Event{Previous: prev, Current: StateUnauthenticated, Reason: reason})
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := m.store.Delete(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to delete persisted token")
	}
	cancel()
	m.persistMu.Unlock()

	if prev == StateAuthenticated {
		log.Info().Str("reason", string(reason)).Msg("Session ended")
	}
	m.dispatch()
}

// expire is run by the expiry timer armed for generation gen.
func (m *Manager) expire(gen uint64) {
	m.terminate(ReasonExpired, func() bool {
		return m.state == StateAuthenticated && m.generation == gen
	})
}

// setAuthenticatedLocked installs a new session. Caller holds mu.
func (m *Manager) setAuthenticatedLocked(user *models.User, token string, reason Reason) {
	prev := m.state
	m.generation++
	m.state = StateAuthenticated
	m.user = copyUser(user)
	m.token = token
	m.armExpiryLocked()

	m.enqueueLocked(Event{
		Previous: prev,
		Current:  StateAuthenticated,
		Reason:   reason,
		User:     copyUser(user),
		Token:    token,
	})
}

func (m *Manager) armExpiryLocked() {
	m.stopExpiryLocked()

	exp, err := m.inspector.ExpiresAt(m.token)
	if err != nil {
		// Login and Restore both reject such tokens before getting here.
		log.Warn().Err(err).Msg("Token expiry unavailable, timer not armed")
		return
	}

	gen := m.generation
	delay := exp.Sub(m.inspector.Now())
	if delay < 0 {
		delay = 0
	}
	m.expiry = time.AfterFunc(delay, func() { m.expire(gen) })
}

func (m *Manager) stopExpiryLocked() {
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
}

// resolveUnauthenticated ends the unknown state after a failed restore.
func (m *Manager) resolveUnauthenticated() State {
	m.mu.Lock()
	if m.state != StateUnknown {
		current := m.state
		m.mu.Unlock()
		return current
	}
	m.state = StateUnauthenticated
	m.enqueueLocked(Event{Previous: StateUnknown, Current: StateUnauthenticated, Reason: ReasonRestore})
	m.mu.Unlock()
	m.dispatch()
	return StateUnauthenticated
}

// discardToken deletes the stored token unless a newer session saved one.
func (m *Manager) discardToken(ctx context.Context, gen uint64) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.RLock()
	stale := m.generation != gen
	m.mu.RUnlock()
	if stale {
		return
	}
	if err := m.store.Delete(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to delete persisted token")
	}
}

// enqueueLocked records a transition for delivery. Caller holds mu, which
// fixes the delivery order to the transition order.
func (m *Manager) enqueueLocked(ev Event) {
	metrics.RecordSessionTransition(ev.Previous.String(), ev.Current.String(), string(ev.Reason))

	m.queueMu.Lock()
	m.queue = append(m.queue, ev)
	m.queueMu.Unlock()
}

// dispatch delivers queued events. Only one goroutine drains at a time;
// events queued by observers themselves are delivered by the same loop
// after the current event.
func (m *Manager) dispatch() {
	m.queueMu.Lock()
	if m.dispatching {
		m.queueMu.Unlock()
		return
	}
	m.dispatching = true

	for len(m.queue) > 0 {
		ev := m.queue[0]
		m.queue = m.queue[1:]
		m.queueMu.Unlock()

		m.mu.RLock()
		observers := append([]Observer(nil), m.observers...)
		m.mu.RUnlock()
		for _, o := range observers {
			o(ev)
		}

		m.queueMu.Lock()
	}

	m.dispatching = false
	m.queueMu.Unlock()
}

// Close stops the expiry timer. The session itself is left as is.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopExpiryLocked()
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.BirthDate != nil {
		bd := *u.BirthDate
		c.BirthDate = &bd
	}
	return &c
}
