package points

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ronerog/furia-app/internal/api"
	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/internal/testutil"
)

func setupLedger(t *testing.T) (*Ledger, *testutil.Backend, *models.User) {
	t.Helper()

	backend := testutil.NewBackend(t)
	user := testutil.TestUser()
	token := backend.AddUser(user)

	client := api.NewClient(backend.URL(), 2*time.Second)
	client.SetTokenSource(api.TokenSourceFunc(func() string { return token }))

	return NewLedger(client), backend, user
}

func TestLedgerInactive(t *testing.T) {
	ledger, backend, _ := setupLedger(t)
	ctx := context.Background()

	assert.False(t, ledger.AddPoints(ctx, 5, models.ActivityChatMessage))
	ledger.LoadActivities(ctx)

	_, err := ledger.RedeemReward(ctx, "r1", "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = ledger.Stats(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	assert.Empty(t, backend.Calls())
}

func TestLedgerAddPoints(t *testing.T) {
	ledger, backend, user := setupLedger(t)
	ctx := context.Background()
	ledger.Activate(user)
	assert.Equal(t, 150, ledger.Points())

	t.Run("replaces balance with server total", func(t *testing.T) {
		// Server total differs from local balance + amount.
		backend.SetPoints(user.ID, 1000)

		require.True(t, ledger.AddPoints(ctx, 5, models.ActivityViewTime))
		assert.Equal(t, 1005, ledger.Points())
		assert.Len(t, ledger.Activities(), 1)
	})

	t.Run("failure is absorbed", func(t *testing.T) {
		path := "/api/users/" + user.ID + "/points"
		backend.Override(http.MethodPost, path, func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
		})
		defer backend.Override(http.MethodPost, path, nil)

		assert.False(t, ledger.AddPoints(ctx, 5, models.ActivityViewTime))
		assert.Equal(t, 1005, ledger.Points())
	})

	t.Run("unknown activity type is rejected locally", func(t *testing.T) {
		before := backend.CallCount(http.MethodPost, "/api/users/"+user.ID+"/points")
		assert.False(t, ledger.AddPoints(ctx, 5, models.ActivityType("spamming")))
		assert.Equal(t, before, backend.CallCount(http.MethodPost, "/api/users/"+user.ID+"/points"))
	})
}

func TestLedgerRewards(t *testing.T) {
	ledger, backend, user := setupLedger(t)
	ctx := context.Background()

	ledger.LoadRewards(ctx)
	require.Len(t, ledger.Rewards(), 2)

	t.Run("catalog failure keeps previous catalog", func(t *testing.T) {
		backend.Override(http.MethodGet, "/api/rewards", func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(w, http.StatusBadGateway, map[string]string{"message": "down"})
		})
		defer backend.Override(http.MethodGet, "/api/rewards", nil)

		ledger.LoadRewards(ctx)
		assert.Len(t, ledger.Rewards(), 2)
	})

	ledger.Activate(user)

	t.Run("can redeem is advisory", func(t *testing.T) {
		assert.True(t, ledger.CanRedeem("r2"))
		assert.False(t, ledger.CanRedeem("r1"))
		assert.False(t, ledger.CanRedeem("missing"))
	})

	t.Run("rejection leaves balance untouched", func(t *testing.T) {
		_, err := ledger.RedeemReward(ctx, "r1", "")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, api.StatusCode(err))
		assert.Equal(t, 150, ledger.Points())
	})

	t.Run("success replaces balance with remaining points", func(t *testing.T) {
		result, err := ledger.RedeemReward(ctx, "r2", "Av. Paulista, 1000")
		require.NoError(t, err)
		assert.Equal(t, 100, result.RemainingPoints)
		assert.Equal(t, 100, ledger.Points())
		assert.NotEmpty(t, ledger.Activities())
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := ledger.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, stats.TotalPoints)
	})
}

func TestLedgerDeactivate(t *testing.T) {
	ledger, _, user := setupLedger(t)
	ledger.Activate(user)
	ledger.Deactivate()

	assert.False(t, ledger.Active())
	assert.Zero(t, ledger.Points())
	assert.Empty(t, ledger.Activities())

	ledger.Deactivate()
	assert.False(t, ledger.Active())
}

func TestLedgerSyncBalance(t *testing.T) {
	ledger, _, user := setupLedger(t)
	ledger.Activate(user)

	ledger.SyncBalance(testutil.TestUserWithPoints(400))
	assert.Equal(t, 150, ledger.Points(), "different user is ignored")

	refreshed := *user
	refreshed.Points = 400
	ledger.SyncBalance(&refreshed)
	assert.Equal(t, 400, ledger.Points())
}

// MockAPI is a testify mock of the ledger's REST dependency.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) AddPoints(ctx context.Context, userID string, amount int, activityType models.ActivityType) (int, error) {
	args := m.Called(ctx, userID, amount, activityType)
	return args.Int(0), args.Error(1)
}

func (m *MockAPI) Activities(ctx context.Context, userID string) ([]models.Activity, error) {
	args := m.Called(ctx, userID)
	acts, _ := args.Get(0).([]models.Activity)
	return acts, args.Error(1)
}

func (m *MockAPI) Rewards(ctx context.Context) ([]models.Reward, error) {
	args := m.Called(ctx)
	rewards, _ := args.Get(0).([]models.Reward)
	return rewards, args.Error(1)
}

func (m *MockAPI) Redeem(ctx context.Context, userID, rewardID, shippingAddress string) (*models.RedemptionResult, error) {
	args := m.Called(ctx, userID, rewardID, shippingAddress)
	result, _ := args.Get(0).(*models.RedemptionResult)
	return result, args.Error(1)
}

func (m *MockAPI) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	args := m.Called(ctx, userID)
	stats, _ := args.Get(0).(*models.UserStats)
	return stats, args.Error(1)
}

func TestLedgerEpochs(t *testing.T) {
	ctx := context.Background()
	first := testutil.TestUser()
	second := testutil.TestUserWithPoints(10)

	t.Run("award landing after logout is dropped", func(t *testing.T) {
		mockAPI := new(MockAPI)
		ledger := NewLedger(mockAPI)
		ledger.Activate(first)

		release := make(chan time.Time)
		mockAPI.On("AddPoints", mock.Anything, first.ID, 5, models.ActivityViewTime).
			WaitUntil(release).
			Return(900, nil)

		done := make(chan bool)
		go func() { done <- ledger.AddPoints(ctx, 5, models.ActivityViewTime) }()

		// Give the call time to reach the mock.
		time.Sleep(20 * time.Millisecond)
		ledger.Deactivate()
		ledger.Activate(second)
		close(release)

		assert.False(t, <-done)
		assert.Equal(t, 10, ledger.Points())
		mockAPI.AssertNotCalled(t, "Activities", mock.Anything, mock.Anything)
	})

	t.Run("redemption landing after logout still returns payload", func(t *testing.T) {
		mockAPI := new(MockAPI)
		ledger := NewLedger(mockAPI)
		ledger.Activate(first)

		release := make(chan time.Time)
		mockAPI.On("Redeem", mock.Anything, first.ID, "r2", "").
			WaitUntil(release).
			Return(&models.RedemptionResult{RemainingPoints: 100}, nil)

		type outcome struct {
			result *models.RedemptionResult
			err    error
		}
		done := make(chan outcome)
		go func() {
			r, err := ledger.RedeemReward(ctx, "r2", "")
			done <- outcome{r, err}
		}()

		time.Sleep(20 * time.Millisecond)
		ledger.Deactivate()
		close(release)

		got := <-done
		require.NoError(t, got.err)
		assert.Equal(t, 100, got.result.RemainingPoints)
		assert.Zero(t, ledger.Points())
	})

	t.Run("redeem error is wrapped", func(t *testing.T) {
		mockAPI := new(MockAPI)
		ledger := NewLedger(mockAPI)
		ledger.Activate(first)

		boom := errors.New("boom")
		mockAPI.On("Redeem", mock.Anything, first.ID, "r1", "").Return(nil, boom)

		_, err := ledger.RedeemReward(ctx, "r1", "")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, first.Points, ledger.Points())
		mockAPI.AssertExpectations(t)
	})
}
