package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType enumerates the point-earning (or spending) actions the
// server records in a user's activity log.
type ActivityType string

const (
	ActivityChatMessage      ActivityType = "chat_message"
	ActivityWatchMatch       ActivityType = "watch_match"
	ActivityWatchHighlights  ActivityType = "watch_highlights"
	ActivityViewTime         ActivityType = "view_time"
	ActivityDailyLogin       ActivityType = "daily_login"
	ActivityRewardRedemption ActivityType = "reward_redemption"
)

// PointsPerLevel is the number of points that make up one display level.
const PointsPerLevel = 100

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityChatMessage, ActivityWatchMatch, ActivityWatchHighlights,
		ActivityViewTime, ActivityDailyLogin, ActivityRewardRedemption:
		return true
	}
	return false
}

// ParseActivityType converts a raw string into an ActivityType.
func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown activity type %q", s)
	}
	return t, nil
}

// Activity is one entry of the server-side activity log. Points is a
// signed delta: positive for earning actions, negative for redemptions.
type Activity struct {
	ID         string       `json:"id"`
	User       string       `json:"user"`
	Type       ActivityType `json:"type"`
	Points     int          `json:"points"`
	RewardID   string       `json:"rewardId,omitempty"`
	RewardName string       `json:"rewardName,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Reward is an entry of the read-only reward catalog.
type Reward struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	PointsCost  int    `json:"pointsCost"`
}

// PointsAward is the server response to POST /users/{id}/points.
type PointsAward struct {
	TotalPoints *int `json:"totalPoints"`
}

// RedemptionResult is the server confirmation for POST /users/{id}/redeem.
// Fields the client does not model are kept in Extra so the view layer can
// still render the full confirmation payload.
type RedemptionResult struct {
	RemainingPoints int                        `json:"remainingPoints"`
	Message         string                     `json:"message,omitempty"`
	Reward          *Reward                    `json:"reward,omitempty"`
	Activity        *Activity                  `json:"activity,omitempty"`
	Extra           map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and collects the rest into Extra.
// A payload without remainingPoints is rejected so the caller never applies
// a balance the server did not send.
func (r *RedemptionResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	remaining, ok := raw["remainingPoints"]
	if !ok {
		return fmt.Errorf("redemption response missing remainingPoints")
	}
	if err := json.Unmarshal(remaining, &r.RemainingPoints); err != nil {
		return fmt.Errorf("invalid remainingPoints: %w", err)
	}
	delete(raw, "remainingPoints")

	if v, ok := raw["message"]; ok {
		if err := json.Unmarshal(v, &r.Message); err != nil {
			return fmt.Errorf("invalid message: %w", err)
		}
		delete(raw, "message")
	}
	if v, ok := raw["reward"]; ok {
		r.Reward = &Reward{}
		if err := json.Unmarshal(v, r.Reward); err != nil {
			return fmt.Errorf("invalid reward: %w", err)
		}
		delete(raw, "reward")
	}
	if v, ok := raw["activity"]; ok {
		r.Activity = &Activity{}
		if err := json.Unmarshal(v, r.Activity); err != nil {
			return fmt.Errorf("invalid activity: %w", err)
		}
		delete(raw, "activity")
	}

	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON flattens Extra back next to the known fields.
func (r RedemptionResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["remainingPoints"] = r.RemainingPoints
	if r.Message != "" {
		out["message"] = r.Message
	}
	if r.Reward != nil {
		out["reward"] = r.Reward
	}
	if r.Activity != nil {
		out["activity"] = r.Activity
	}
	return json.Marshal(out)
}

// UserStats is the aggregate served by GET /users/{id}/stats.
type UserStats struct {
	TotalPoints      int `json:"totalPoints"`
	Level            int `json:"level"`
	ActivitiesCount  int `json:"activitiesCount"`
	RedemptionsCount int `json:"redemptionsCount"`
	ChatMessages     int `json:"chatMessages"`
}

// Level returns the display level for a balance: floor(points / 100).
func Level(points int) int {
	if points <= 0 {
		return 0
	}
	return points / PointsPerLevel
}

// LevelProgress returns the fraction of the current level already earned,
// (points mod 100) / 100, in the range [0, 1).
func LevelProgress(points int) float64 {
	if points <= 0 {
		return 0
	}
	return float64(points%PointsPerLevel) / PointsPerLevel
}
