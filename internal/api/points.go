package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ronerog/furia-app/internal/models"
)

type awardRequest struct {
	Amount       int                 `json:"amount"`
	ActivityType models.ActivityType `json:"activityType"`
}

type redeemRequest struct {
	RewardID        string `json:"rewardId"`
	ShippingAddress string `json:"shippingAddress,omitempty"`
}

// AddPoints posts a point-earning activity and returns the server's
// authoritative total.
func (c *Client) AddPoints(ctx context.Context, userID string, amount int, activityType models.ActivityType) (int, error) {
	var resp models.PointsAward
	if err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/users/{id}/points",
		path:   userPath(userID, "/points"),
		body:   awardRequest{Amount: amount, ActivityType: activityType},
		out:    &resp,
		authed: true,
	}); err != nil {
		return 0, err
	}
	if resp.TotalPoints == nil {
		return 0, fmt.Errorf("%w: award response missing totalPoints", ErrMalformedResponse)
	}
	return *resp.TotalPoints, nil
}

// Activities returns the user's activity history.
func (c *Client) Activities(ctx context.Context, userID string) ([]models.Activity, error) {
	var activities []models.Activity
	if err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/users/{id}/activities",
		path:   userPath(userID, "/activities"),
		out:    &activities,
		authed: true,
	}); err != nil {
		return nil, err
	}
	return activities, nil
}

// Stats returns the user's aggregate statistics.
func (c *Client) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	if err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/users/{id}/stats",
		path:   userPath(userID, "/stats"),
		out:    &stats,
		authed: true,
	}); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Rewards returns the reward catalog. The catalog is public; the token is
// still sent when available.
func (c *Client) Rewards(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	if err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/rewards",
		path:   "/rewards",
		out:    &rewards,
		token:  c.currentToken(),
	}); err != nil {
		return nil, err
	}
	return rewards, nil
}

// Redeem exchanges points for a reward. The server decides; the returned
// payload carries the remaining balance and confirmation details.
func (c *Client) Redeem(ctx context.Context, userID, rewardID, shippingAddress string) (*models.RedemptionResult, error) {
	var result models.RedemptionResult
	if err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/users/{id}/redeem",
		path:   userPath(userID, "/redeem"),
		body:   redeemRequest{RewardID: rewardID, ShippingAddress: shippingAddress},
		out:    &result,
		authed: true,
	}); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	return ts.Token()
}
