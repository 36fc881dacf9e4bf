// Package points is the client view of the fan's points balance, activity
// log and reward catalog. The server is authoritative: every successful
// award or redemption replaces the local balance with the server's total.
package points

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/metrics"
	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/internal/session"
)

// ErrNotAuthenticated is returned when the ledger has no active session.
var ErrNotAuthenticated = session.ErrNotAuthenticated

// API is the subset of the REST client the ledger depends on.
type API interface {
	AddPoints(ctx context.Context, userID string, amount int, activityType models.ActivityType) (int, error)
	Activities(ctx context.Context, userID string) ([]models.Activity, error)
	Rewards(ctx context.Context) ([]models.Reward, error)
	Redeem(ctx context.Context, userID, rewardID, shippingAddress string) (*models.RedemptionResult, error)
	Stats(ctx context.Context, userID string) (*models.UserStats, error)
}

// Ledger caches the balance, activities and rewards for the active session.
//
// Each Activate starts a new epoch. Results of calls issued in an earlier
// epoch are dropped when they complete, so a response that lands after
// logout (or after another user logged in) never touches the cache.
type Ledger struct {
	api API

	mu         sync.RWMutex
	epoch      uint64
	active     bool
	userID     string
	points     int
	activities []models.Activity
	rewards    []models.Reward
}

// NewLedger creates an inactive ledger.
func NewLedger(api API) *Ledger {
	return &Ledger{api: api}
}

// Activate binds the ledger to user and seeds the balance from the user
// record. The activity list starts empty until LoadActivities completes.
func (l *Ledger) Activate(user *models.User) {
	l.mu.Lock()
	l.epoch++
	l.active = true
	l.userID = user.ID
	l.points = user.Points
	l.activities = nil
	l.mu.Unlock()

	metrics.SetPointsBalance(user.Points)
	log.Debug().Str("user_id", user.ID).Int("points", user.Points).Msg("Ledger activated")
}

// Deactivate drops the session's balance and activities. The reward
// catalog is kept; it is not user specific.
func (l *Ledger) Deactivate() {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.epoch++
	l.active = false
	l.userID = ""
	l.points = 0
	l.activities = nil
	l.mu.Unlock()

	metrics.SetPointsBalance(0)
	log.Debug().Msg("Ledger deactivated")
}

// Active reports whether a session is bound.
func (l *Ledger) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Points returns the cached balance.
func (l *Ledger) Points() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.points
}

// Activities returns a copy of the cached activity log.
func (l *Ledger) Activities() []models.Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Activity(nil), l.activities...)
}

// Rewards returns a copy of the cached reward catalog.
func (l *Ledger) Rewards() []models.Reward {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Reward(nil), l.rewards...)
}

// Reward looks up a catalog entry by id.
func (l *Ledger) Reward(rewardID string) (models.Reward, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.rewards {
		if r.ID == rewardID {
			return r, true
		}
	}
	return models.Reward{}, false
}

// CanRedeem reports whether the cached balance covers the reward's cost.
// The check is advisory; the server has the final word.
func (l *Ledger) CanRedeem(rewardID string) bool {
	reward, ok := l.Reward(rewardID)
	if !ok {
		return false
	}
	return l.Points() >= reward.PointsCost
}

// snapshot returns the epoch and user for a call about to be issued.
func (l *Ledger) snapshot() (uint64, string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.epoch, l.userID, l.active
}

// setBalance applies a server total if epoch is still current.
func (l *Ledger) setBalance(epoch uint64, points int) bool {
	l.mu.Lock()
	if l.epoch != epoch || !l.active {
		l.mu.Unlock()
		return false
	}
	l.points = points
	l.mu.Unlock()

	metrics.SetPointsBalance(points)
	return true
}

// LoadRewards fetches the reward catalog. Failures are logged and the
// previous catalog is kept.
func (l *Ledger) LoadRewards(ctx context.Context) {
	rewards, err := l.api.Rewards(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load rewards")
		return
	}

	l.mu.Lock()
	l.rewards = rewards
	l.mu.Unlock()
}

// LoadActivities fetches the activity log for the active session. It is a
// no-op when inactive; failures keep the previous list.
func (l *Ledger) LoadActivities(ctx context.Context) {
	epoch, userID, active := l.snapshot()
	if !active {
		return
	}

	activities, err := l.api.Activities(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load activities")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.epoch != epoch || !l.active {
		return
	}
	l.activities = activities
}

// AddPoints records a qualifying action. On success the balance is
// replaced with the server's total and the activity log is reloaded.
// Failures are logged and absorbed; the return value reports whether the
// award was applied.
func (l *Ledger) AddPoints(ctx context.Context, amount int, activityType models.ActivityType) bool {
	if !activityType.Valid() {
		log.Warn().Str("activity_type", string(activityType)).Msg("Rejected unknown activity type")
		metrics.IncrementPointsAwards(string(activityType), "invalid")
		return false
	}

	epoch, userID, active := l.snapshot()
	if !active {
		return false
	}

	total, err := l.api.AddPoints(ctx, userID, amount, activityType)
	if err != nil {
		metrics.IncrementPointsAwards(string(activityType), "failure")
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("activity_type", string(activityType)).
			Int("amount", amount).
			Msg("Failed to add points")
		return false
	}
	metrics.IncrementPointsAwards(string(activityType), "success")

	if !l.setBalance(epoch, total) {
		return false
	}
	log.Debug().
		Str("activity_type", string(activityType)).
		Int("amount", amount).
		Int("total", total).
		Msg("Points awarded")

	l.LoadActivities(ctx)
	return true
}

// RedeemReward spends points on a reward.
//
// Parameters:
//   - rewardID: catalog entry to redeem
//   - shippingAddress: free-form address for physical rewards, may be empty
//
// Returns the server's confirmation payload. Errors are propagated and
// leave the balance unchanged.
func (l *Ledger) RedeemReward(ctx context.Context, rewardID, shippingAddress string) (*models.RedemptionResult, error) {
	epoch, userID, active := l.snapshot()
	if !active {
		return nil, ErrNotAuthenticated
	}

	result, err := l.api.Redeem(ctx, userID, rewardID, shippingAddress)
	if err != nil {
		metrics.IncrementRedemptions("failure")
		return nil, fmt.Errorf("failed to redeem reward: %w", err)
	}
	metrics.IncrementRedemptions("success")

	if l.setBalance(epoch, result.RemainingPoints) {
		log.Info().
			Str("user_id", userID).
			Str("reward_id", rewardID).
			Int("remaining", result.RemainingPoints).
			Msg("Reward redeemed")
		l.LoadActivities(ctx)
	}
	return result, nil
}

// Stats fetches the server's aggregate statistics for the active user.
func (l *Ledger) Stats(ctx context.Context) (*models.UserStats, error) {
	_, userID, active := l.snapshot()
	if !active {
		return nil, ErrNotAuthenticated
	}

	stats, err := l.api.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// SyncBalance adopts the balance carried by a refreshed user record.
func (l *Ledger) SyncBalance(user *models.User) {
	l.mu.RLock()
	epoch, same := l.epoch, l.active && l.userID == user.ID
	l.mu.RUnlock()
	if same {
		l.setBalance(epoch, user.Points)
	}
}
