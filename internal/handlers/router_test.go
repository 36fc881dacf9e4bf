package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronerog/furia-app/internal/api"
	"github.com/ronerog/furia-app/internal/app"
	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/internal/points"
	"github.com/ronerog/furia-app/internal/realtime"
	"github.com/ronerog/furia-app/internal/storage"
	"github.com/ronerog/furia-app/internal/testutil"
	"github.com/ronerog/furia-app/pkg/utils"
)

type sessionBody struct {
	State string       `json:"state"`
	User  *models.User `json:"user"`
}

type bridge struct {
	t       *testing.T
	router  http.Handler
	app     *app.App
	backend *testutil.Backend
	socket  *testutil.SocketServer
	user    *models.User
}

func setupBridge(t *testing.T) *bridge {
	t.Helper()

	backend := testutil.NewBackend(t)
	user := testutil.TestUser()
	backend.AddUser(user)

	socket := testutil.NewSocketServer(t, []models.ChatMessage{
		testutil.TestMessage("m1"),
		testutil.TestMessage("m2"),
	})

	application := app.New(app.Options{
		Client:    api.NewClient(backend.URL(), 2*time.Second),
		Store:     storage.NewFileTokenStore(filepath.Join(t.TempDir(), "token")),
		Transport: realtime.NewTransport(socket.URL(), 50*time.Millisecond),
		Accrual:   points.AccrualConfig{Interval: time.Hour, Ticks: 300, Points: 5},
	})
	t.Cleanup(application.Shutdown)
	application.Start(context.Background())
	application.Wait()

	router := NewRouter(RouterConfig{
		Session:        application.Session,
		Ledger:         application.Ledger,
		Chat:           application.Chat,
		Content:        application.API,
		Store:          application.Store,
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	return &bridge{t: t, router: router, app: application, backend: backend, socket: socket, user: user}
}

func (b *bridge) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	b.t.Helper()
	return testutil.Serve(b.t, b.router, testutil.MakeRequest(b.t, method, path, body))
}

func (b *bridge) login() {
	b.t.Helper()
	rec := b.do(http.MethodPost, "/api/v1/session/login", LoginRequest{Email: b.user.Email, Password: testutil.TestPassword})
	require.Equal(b.t, http.StatusOK, rec.Code, rec.Body.String())
	b.app.Wait()
}

func TestSessionEndpoints(t *testing.T) {
	b := setupBridge(t)

	t.Run("starts signed out", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/session", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body sessionBody
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "unauthenticated", body.State)
		assert.Nil(t, body.User)
	})

	t.Run("protected routes require a session", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/points", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "not_authenticated", testutil.ErrorCode(t, rec))
	})

	t.Run("login validates input", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/session/login", LoginRequest{Email: "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = b.do(http.MethodPost, "/api/v1/session/login", map[string]string{"email": "a@b.com", "pass": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong password is invalid_credentials", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/session/login", LoginRequest{Email: b.user.Email, Password: "nope"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", testutil.ErrorCode(t, rec))
		assert.False(t, b.app.Session.IsAuthenticated())
	})

	t.Run("login starts the session", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/session/login", LoginRequest{Email: b.user.Email, Password: testutil.TestPassword})

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body sessionBody
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "authenticated", body.State)
		require.NotNil(t, body.User)
		assert.Equal(t, b.user.ID, body.User.ID)
		assert.True(t, b.app.Session.IsAuthenticated())
	})

	t.Run("profile update replaces the user", func(t *testing.T) {
		rec := b.do(http.MethodPut, "/api/v1/session/profile", models.ProfileUpdate{City: testutil.StringPtr("Rio de Janeiro")})

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body sessionBody
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "Rio de Janeiro", body.User.City)
		assert.Equal(t, "Rio de Janeiro", b.app.Session.User().City)
	})

	t.Run("blank username is rejected locally", func(t *testing.T) {
		updates := b.backend.CallCount(http.MethodPut, "/api/users/"+b.user.ID)

		rec := b.do(http.MethodPut, "/api/v1/session/profile", models.ProfileUpdate{Username: testutil.StringPtr(" ")})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, updates, b.backend.CallCount(http.MethodPut, "/api/users/"+b.user.ID))
	})

	t.Run("refresh adopts the server balance", func(t *testing.T) {
		b.backend.SetPoints(b.user.ID, 420)

		rec := b.do(http.MethodPost, "/api/v1/session/refresh", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		assert.Equal(t, 420, b.app.Ledger.Points())
	})

	t.Run("logout ends the session", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/session/logout", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body sessionBody
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "unauthenticated", body.State)

		rec = b.do(http.MethodPost, "/api/v1/session/refresh", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRegisterEndpoint(t *testing.T) {
	b := setupBridge(t)

	t.Run("missing fields", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/session/register", models.Registration{Email: "novo@furia.gg", Password: "pw"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("creates the account and signs in", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/session/register", models.Registration{
			Username: "novato",
			Email:    "novo@furia.gg",
			Password: "pw",
			City:     "Curitiba",
		})

		testutil.AssertStatusCode(t, rec, http.StatusCreated)
		var body sessionBody
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "novato", body.User.Username)
		assert.True(t, b.app.Session.IsAuthenticated())
	})

	t.Run("duplicate email passes the backend status through", func(t *testing.T) {
		b.do(http.MethodPost, "/api/v1/session/logout", nil)

		rec := b.do(http.MethodPost, "/api/v1/session/register", models.Registration{
			Username: "outro",
			Email:    "novo@furia.gg",
			Password: "pw",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body utils.ErrorResponse
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "Email já cadastrado", body.Message)
	})
}

func TestPointsEndpoints(t *testing.T) {
	b := setupBridge(t)
	b.login()

	t.Run("balance includes level and progress", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/points", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body BalanceResponse
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, BalanceResponse{Points: 150, Level: 1, Progress: 0.5}, body)
	})

	t.Run("award applies the server total", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/points", AwardRequest{Amount: 10, Type: "watch_match"})

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body AwardResponse
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, AwardResponse{Applied: true, Points: 160}, body)
	})

	t.Run("award rejects unknown types and bad amounts", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/points", AwardRequest{Amount: 10, Type: "streak"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_activity_type", testutil.ErrorCode(t, rec))

		rec = b.do(http.MethodPost, "/api/v1/points", AwardRequest{Amount: 0, Type: "watch_match"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_amount", testutil.ErrorCode(t, rec))
	})

	t.Run("activities list the award", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/points/activities", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body struct {
			Activities []models.Activity `json:"activities"`
		}
		testutil.ParseJSONResponse(t, rec, &body)
		require.Len(t, body.Activities, 1)
		assert.Equal(t, models.ActivityWatchMatch, body.Activities[0].Type)
	})

	t.Run("stats come from the backend", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/points/stats", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var stats models.UserStats
		testutil.ParseJSONResponse(t, rec, &stats)
		assert.Equal(t, 160, stats.TotalPoints)
		assert.Equal(t, 1, stats.ActivitiesCount)
	})
}

func TestRewardEndpoints(t *testing.T) {
	b := setupBridge(t)

	t.Run("catalog is public", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/rewards", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body struct {
			Rewards []RewardView `json:"rewards"`
		}
		testutil.ParseJSONResponse(t, rec, &body)
		require.Len(t, body.Rewards, 2)
		for _, r := range body.Rewards {
			assert.False(t, r.CanRedeem, r.ID)
		}
	})

	t.Run("redeem requires a session", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/rewards/r2/redeem", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	b.login()

	t.Run("catalog marks affordable rewards", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/rewards", nil)

		var body struct {
			Rewards []RewardView `json:"rewards"`
		}
		testutil.ParseJSONResponse(t, rec, &body)
		require.Len(t, body.Rewards, 2)
		assert.False(t, body.Rewards[0].CanRedeem) // r1 costs 200
		assert.True(t, body.Rewards[1].CanRedeem)  // r2 costs 50
	})

	t.Run("unknown reward", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/rewards/r9/redeem", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "reward_not_found", testutil.ErrorCode(t, rec))
	})

	t.Run("insufficient points never reaches the backend", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/rewards/r1/redeem", nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, 0, b.backend.CallCount(http.MethodPost, "/api/users/"+b.user.ID+"/redeem"))
	})

	t.Run("redeem spends points", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/rewards/r2/redeem", RedeemRequest{ShippingAddress: "Rua A, 1"})

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body map[string]interface{}
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, float64(100), body["remainingPoints"])
		assert.NotEmpty(t, body["orderId"])
		assert.Equal(t, 100, b.app.Ledger.Points())
		assert.Equal(t, 100, b.backend.Points(b.user.ID))
	})
}

func TestChatEndpoints(t *testing.T) {
	b := setupBridge(t)

	t.Run("closed while signed out", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/chat/messages", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body ChatResponse
		testutil.ParseJSONResponse(t, rec, &body)
		assert.False(t, body.Open)
		assert.False(t, body.Connected)
		assert.Empty(t, body.Messages)

		rec = b.do(http.MethodPost, "/api/v1/chat/messages", SendRequest{Text: "oi"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	b.login()

	t.Run("history arrives after login", func(t *testing.T) {
		require.Eventually(t, func() bool {
			rec := httptest.NewRecorder()
			b.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chat/messages", nil))
			var body ChatResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				return false
			}
			return body.Open && body.Connected && len(body.Messages) == 2 && body.OnlineUsers == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("send is accepted and echoed", func(t *testing.T) {
		rec := b.do(http.MethodPost, "/api/v1/chat/messages", SendRequest{Text: "vamo FURIA"})
		assert.Equal(t, http.StatusAccepted, rec.Code)

		require.Eventually(t, func() bool { return len(b.app.Chat.Messages()) == 3 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"vamo FURIA"}, b.socket.Received())
	})

	t.Run("too long", func(t *testing.T) {
		long := make([]rune, maxMessageLength+1)
		for i := range long {
			long[i] = 'a'
		}
		rec := b.do(http.MethodPost, "/api/v1/chat/messages", SendRequest{Text: string(long)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestContentEndpoints(t *testing.T) {
	b := setupBridge(t)

	t.Run("matches filtered by game", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/content/matches?game=cs2", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body struct {
			Matches []models.Match `json:"matches"`
		}
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Len(t, body.Matches, 2)
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/content/matches?status=postponed", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("featured and detail", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/content/matches/featured", nil)
		testutil.AssertStatusCode(t, rec, http.StatusOK)

		rec = b.do(http.MethodGet, "/api/v1/content/matches/m1", nil)
		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var match models.Match
		testutil.ParseJSONResponse(t, rec, &match)
		assert.Equal(t, "NAVI", match.OpponentName)
	})

	t.Run("missing match keeps the backend status", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/content/matches/zz", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", testutil.ErrorCode(t, rec))
	})

	t.Run("games players and live streams", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/content/games",
			"/api/v1/content/games/cs2",
			"/api/v1/content/players?game=cs2",
			"/api/v1/content/players/p1",
			"/api/v1/content/streams/live",
			"/api/v1/content/streams/s1",
		} {
			rec := b.do(http.MethodGet, path, nil)
			testutil.AssertStatusCode(t, rec, http.StatusOK)
		}
	})

	t.Run("streams filtered by live flag", func(t *testing.T) {
		rec := b.do(http.MethodGet, "/api/v1/content/streams?live=false", nil)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var body struct {
			Streams []models.Stream `json:"streams"`
		}
		testutil.ParseJSONResponse(t, rec, &body)
		require.Len(t, body.Streams, 1)
		assert.Equal(t, "s2", body.Streams[0].ID)

		rec = b.do(http.MethodGet, "/api/v1/content/streams?live=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_filter", testutil.ErrorCode(t, rec))
	})
}

func TestUpstreamFailure(t *testing.T) {
	t.Run("unreachable backend is 502", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()

		handler := NewContentHandler(api.NewClient(dead.URL+"/api", time.Second))
		rec := testutil.Serve(t, http.HandlerFunc(handler.LiveStreams), httptest.NewRequest(http.MethodGet, "/api/v1/content/streams/live", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "upstream_error", testutil.ErrorCode(t, rec))
	})

	t.Run("backend 401 ends the session", func(t *testing.T) {
		b := setupBridge(t)
		b.login()
		b.backend.RevokeTokens()

		rec := b.do(http.MethodGet, "/api/v1/points/stats", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "session_expired", testutil.ErrorCode(t, rec))
		assert.False(t, b.app.Session.IsAuthenticated())
		assert.False(t, b.app.Chat.IsOpen())
	})
}

func TestHealthRoutes(t *testing.T) {
	b := setupBridge(t)

	rec := b.do(http.MethodGet, "/ready", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)

	rec = b.do(http.MethodGet, "/metrics", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "bridge_http_requests_total")
}
