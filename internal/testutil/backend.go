package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ronerog/furia-app/internal/models"
)

// Backend is an in-memory fake of the fan hub REST API served under /api.
// It keeps users, balances, activities and the reward catalog so flows can
// be tested end to end. Any route can be replaced with Override.
type Backend struct {
	Server *httptest.Server

	t         *testing.T
	mu        sync.Mutex
	users     map[string]*models.User // by id
	passwords map[string]string       // email -> password
	tokens    map[string]string       // token -> user id
	rewards   []models.Reward
	acts      map[string][]models.Activity
	overrides map[string]http.HandlerFunc
	calls     []string
	auth      map[string]string // last Authorization header per "METHOD path"
	ids       map[string]string // last X-Request-ID per "METHOD path"
}

// NewBackend starts a fake backend. The server is closed on test cleanup.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		t:         t,
		users:     make(map[string]*models.User),
		passwords: make(map[string]string),
		tokens:    make(map[string]string),
		rewards:   TestRewards(),
		acts:      make(map[string][]models.Activity),
		overrides: make(map[string]http.HandlerFunc),
		auth:      make(map[string]string),
		ids:       make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", b.login)
		r.Post("/auth/register", b.register)
		r.Get("/auth/me", b.me)

		r.Get("/rewards", b.listRewards)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Put("/", b.updateUser)
			r.Post("/points", b.addPoints)
			r.Get("/activities", b.activities)
			r.Get("/stats", b.stats)
			r.Post("/redeem", b.redeem)
		})

		r.Get("/games", b.json([]models.Game{{ID: "g1", Name: "Counter-Strike 2", Slug: "cs2"}}))
		r.Get("/games/{slug}", b.json(models.Game{ID: "g1", Name: "Counter-Strike 2", Slug: "cs2"}))
		r.Get("/matches", b.matches)
		r.Get("/matches/featured", b.json([]models.Match{{ID: "m1", Game: "cs2", OpponentName: "NAVI", Status: models.MatchUpcoming}}))
		r.Get("/matches/{id}", b.match)
		r.Get("/players", b.json([]models.Player{{ID: "p1", Nickname: "KSCERATO", Game: "cs2"}}))
		r.Get("/players/{id}", b.json(models.Player{ID: "p1", Nickname: "KSCERATO", Game: "cs2"}))
		r.Get("/streams", b.streams)
		r.Get("/streams/live", b.json([]models.Stream{{ID: "s1", Title: "FURIA x NAVI", IsLive: true, ViewerCount: 1200}}))
		r.Get("/streams/{id}", b.json(models.Stream{ID: "s1", Title: "FURIA x NAVI", IsLive: true, ViewerCount: 1200}))
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)

	return b
}

// URL returns the API base URL, e.g. http://127.0.0.1:1234/api.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// AddUser seeds a user with TestPassword and returns a valid token for it.
func (b *Backend) AddUser(user *models.User) string {
	b.t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.users[user.ID] = user
	b.passwords[user.Email] = TestPassword
	token := ValidToken(b.t, user.ID)
	b.tokens[token] = user.ID
	return token
}

// IssueToken registers an additional token for an existing user.
func (b *Backend) IssueToken(userID string, exp time.Time) string {
	b.t.Helper()

	token := TokenFor(b.t, userID, exp)
	b.mu.Lock()
	b.tokens[token] = userID
	b.mu.Unlock()
	return token
}

// RevokeTokens makes every issued token return 401.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
}

// SetPoints overrides a user's server-side balance.
func (b *Backend) SetPoints(userID string, points int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.users[userID]; ok {
		u.Points = points
	}
}

// Points returns a user's server-side balance.
func (b *Backend) Points(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.users[userID]; ok {
		return u.Points
	}
	return 0
}

// Override replaces the handler for "METHOD /api/path" (concrete path).
func (b *Backend) Override(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[method+" "+path] = h
}

// Calls returns every request seen as "METHOD /api/path".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount counts requests to "METHOD /api/path".
func (b *Backend) CallCount(method, path string) int {
	key := method + " " + path
	n := 0
	for _, c := range b.Calls() {
		if c == key {
			n++
		}
	}
	return n
}

// AuthHeader returns the last Authorization header sent to "METHOD /api/path".
func (b *Backend) AuthHeader(method, path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth[method+" "+path]
}

// RequestID returns the last X-Request-ID sent to "METHOD /api/path".
func (b *Backend) RequestID(method, path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ids[method+" "+path]
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimSuffix(r.URL.Path, "/")

		b.mu.Lock()
		b.calls = append(b.calls, key)
		b.auth[key] = r.Header.Get("Authorization")
		b.ids[key] = r.Header.Get("X-Request-ID")
		override := b.overrides[key]
		b.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) json(v interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, v)
	}
}

// bearerUser resolves the caller, writing 401 when the token is unknown.
func (b *Backend) bearerUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	b.mu.Lock()
	userID, ok := b.tokens[token]
	user := b.users[userID]
	b.mu.Unlock()

	if !ok || user == nil {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token inválido"})
		return nil, false
	}
	return user, true
}

// pathUser resolves {id} and checks it matches the caller.
func (b *Backend) pathUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := b.bearerUser(w, r)
	if !ok {
		return nil, false
	}
	if chi.URLParam(r, "id") != user.ID {
		WriteJSON(w, http.StatusForbidden, map[string]string{"message": "Acesso negado"})
		return nil, false
	}
	return user, true
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	password, known := b.passwords[body.Email]
	var user *models.User
	for _, u := range b.users {
		if u.Email == body.Email {
			user = u
		}
	}
	b.mu.Unlock()

	if !known || password != body.Password || user == nil {
		WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "Credenciais inválidas"})
		return
	}

	token := b.IssueToken(user.ID, time.Now().Add(time.Hour))
	b.mu.Lock()
	snapshot := *user
	b.mu.Unlock()
	WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "token": token, "user": snapshot})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if reg.Email == "" || reg.Password == "" || reg.Username == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "Campos obrigatórios"})
		return
	}

	b.mu.Lock()
	_, exists := b.passwords[reg.Email]
	b.mu.Unlock()
	if exists {
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "Email já cadastrado"})
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     reg.Username,
		Email:        reg.Email,
		FullName:     reg.FullName,
		City:         reg.City,
		Country:      reg.Country,
		FavoriteGame: reg.FavoriteGame,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	b.mu.Lock()
	b.users[user.ID] = user
	b.passwords[reg.Email] = reg.Password
	b.mu.Unlock()

	token := b.IssueToken(user.ID, time.Now().Add(time.Hour))
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "token": token, "user": *user})
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	user, ok := b.bearerUser(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	snapshot := *user
	b.mu.Unlock()
	WriteJSON(w, http.StatusOK, snapshot)
}

func (b *Backend) updateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := b.pathUser(w, r)
	if !ok {
		return
	}

	var patch models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	if patch.Username != nil {
		user.Username = *patch.Username
	}
	if patch.City != nil {
		user.City = *patch.City
	}
	if patch.FavoritePlayer != nil {
		user.FavoritePlayer = *patch.FavoritePlayer
	}
	snapshot := *user
	b.mu.Unlock()

	WriteJSON(w, http.StatusOK, snapshot)
}

func (b *Backend) addPoints(w http.ResponseWriter, r *http.Request) {
	user, ok := b.pathUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Amount       int                 `json:"amount"`
		ActivityType models.ActivityType `json:"activityType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 || !body.ActivityType.Valid() {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Dados inválidos"})
		return
	}

	b.mu.Lock()
	user.Points += body.Amount
	total := user.Points
	b.acts[user.ID] = append(b.acts[user.ID], models.Activity{
		ID:        uuid.NewString(),
		User:      user.ID,
		Type:      body.ActivityType,
		Points:    body.Amount,
		Timestamp: time.Now().UTC(),
	})
	b.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]int{"totalPoints": total})
}

func (b *Backend) activities(w http.ResponseWriter, r *http.Request) {
	user, ok := b.pathUser(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	acts := append([]models.Activity{}, b.acts[user.ID]...)
	b.mu.Unlock()

	WriteJSON(w, http.StatusOK, acts)
}

func (b *Backend) stats(w http.ResponseWriter, r *http.Request) {
	user, ok := b.pathUser(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stats := models.UserStats{
		TotalPoints:     user.Points,
		Level:           models.Level(user.Points),
		ActivitiesCount: len(b.acts[user.ID]),
	}
	for _, a := range b.acts[user.ID] {
		switch a.Type {
		case models.ActivityRewardRedemption:
			stats.RedemptionsCount++
		case models.ActivityChatMessage:
			stats.ChatMessages++
		}
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (b *Backend) listRewards(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	rewards := append([]models.Reward{}, b.rewards...)
	b.mu.Unlock()
	WriteJSON(w, http.StatusOK, rewards)
}

func (b *Backend) redeem(w http.ResponseWriter, r *http.Request) {
	user, ok := b.pathUser(w, r)
	if !ok {
		return
	}

	var body struct {
		RewardID        string `json:"rewardId"`
		ShippingAddress string `json:"shippingAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var reward *models.Reward
	for i := range b.rewards {
		if b.rewards[i].ID == body.RewardID {
			reward = &b.rewards[i]
		}
	}
	if reward == nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"message": "Recompensa não encontrada"})
		return
	}
	if user.Points < reward.PointsCost {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Pontos insuficientes"})
		return
	}

	user.Points -= reward.PointsCost
	activity := models.Activity{
		ID:         uuid.NewString(),
		User:       user.ID,
		Type:       models.ActivityRewardRedemption,
		Points:     -reward.PointsCost,
		RewardID:   reward.ID,
		RewardName: reward.Name,
		Timestamp:  time.Now().UTC(),
	}
	b.acts[user.ID] = append(b.acts[user.ID], activity)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"remainingPoints": user.Points,
		"message":         "Resgate realizado com sucesso",
		"reward":          reward,
		"activity":        activity,
		"orderId":         "order-" + activity.ID[:8],
	})
}

func (b *Backend) matches(w http.ResponseWriter, r *http.Request) {
	all := []models.Match{
		{ID: "m1", Game: "cs2", OpponentName: "NAVI", Status: models.MatchUpcoming},
		{ID: "m2", Game: "valorant", OpponentName: "LOUD", Status: models.MatchLive},
		{ID: "m3", Game: "cs2", OpponentName: "Vitality", Status: models.MatchCompleted},
	}

	game := r.URL.Query().Get("game")
	status := r.URL.Query().Get("status")

	out := []models.Match{}
	for _, m := range all {
		if game != "" && m.Game != game {
			continue
		}
		if status != "" && string(m.Status) != status {
			continue
		}
		out = append(out, m)
	}
	WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) match(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "id") != "m1" {
		WriteJSON(w, http.StatusNotFound, map[string]string{"message": "Partida não encontrada"})
		return
	}
	WriteJSON(w, http.StatusOK, models.Match{ID: "m1", Game: "cs2", OpponentName: "NAVI", Status: models.MatchUpcoming})
}

func (b *Backend) streams(w http.ResponseWriter, r *http.Request) {
	all := []models.Stream{
		{ID: "s1", Title: "FURIA x NAVI", Game: "cs2", IsLive: true, ViewerCount: 1200},
		{ID: "s2", Title: "Treino aberto", Game: "valorant"},
	}
	live := r.URL.Query().Get("isLive")

	streams := []models.Stream{}
	for _, s := range all {
		if live != "" && strconv.FormatBool(s.IsLive) != live {
			continue
		}
		streams = append(streams, s)
	}
	WriteJSON(w, http.StatusOK, streams)
}
