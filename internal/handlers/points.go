package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/pkg/utils"
)

// PointsService defines the ledger operations exposed over the bridge.
type PointsService interface {
	Points() int
	Activities() []models.Activity
	Rewards() []models.Reward
	Reward(rewardID string) (models.Reward, bool)
	CanRedeem(rewardID string) bool
	AddPoints(ctx context.Context, amount int, activityType models.ActivityType) bool
	RedeemReward(ctx context.Context, rewardID, shippingAddress string) (*models.RedemptionResult, error)
	Stats(ctx context.Context) (*models.UserStats, error)
}

// PointsHandler handles balance, activity, and reward endpoints.
type PointsHandler struct {
	ledger PointsService
}

// NewPointsHandler creates a points handler backed by the ledger.
func NewPointsHandler(ledger PointsService) *PointsHandler {
	return &PointsHandler{ledger: ledger}
}

// BalanceResponse is the body of GET /api/v1/points.
//
// JSON example:
//
//	{"points": 250, "level": 2, "progress": 0.5}
type BalanceResponse struct {
	Points   int     `json:"points"`
	Level    int     `json:"level"`
	Progress float64 `json:"progress"`
}

// AwardRequest is the body of POST /api/v1/points.
type AwardRequest struct {
	Amount int    `json:"amount"`
	Type   string `json:"type"`
}

// AwardResponse reports whether an award was applied and the balance after it.
type AwardResponse struct {
	Applied bool `json:"applied"`
	Points  int  `json:"points"`
}

// RewardView is a catalog entry annotated for the current balance.
type RewardView struct {
	models.Reward
	CanRedeem bool `json:"canRedeem"`
}

// RedeemRequest is the optional body of POST /api/v1/rewards/{id}/redeem.
type RedeemRequest struct {
	ShippingAddress string `json:"shippingAddress"`
}

// Balance returns the cached balance with its display level.
func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	points := h.ledger.Points()
	utils.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{
		Points:   points,
		Level:    models.Level(points),
		Progress: models.LevelProgress(points),
	})
}

// Activities returns the cached activity log, newest first.
func (h *PointsHandler) Activities(w http.ResponseWriter, r *http.Request) {
	activities := h.ledger.Activities()
	if activities == nil {
		activities = []models.Activity{}
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"activities": activities,
	})
}

// Award records a qualifying action such as watching a match.
//
// Backend failures are absorbed by the ledger, so a failed award still
// answers 200 with "applied": false and the unchanged balance.
//
// Example request:
//
//	POST /api/v1/points
//	{"amount": 10, "type": "watch_match"}
func (h *PointsHandler) Award(w http.ResponseWriter, r *http.Request) {
	var req AwardRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	activityType, err := models.ParseActivityType(req.Type)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_activity_type", err.Error())
		return
	}
	if req.Amount <= 0 {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_amount", "Amount must be positive")
		return
	}

	applied := h.ledger.AddPoints(r.Context(), req.Amount, activityType)
	utils.RespondWithJSON(w, r, http.StatusOK, AwardResponse{
		Applied: applied,
		Points:  h.ledger.Points(),
	})
}

// Stats returns the backend's aggregate statistics for the user.
func (h *PointsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, stats)
}

// Rewards returns the reward catalog. Served without a session; canRedeem
// is always false when signed out.
func (h *PointsHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	rewards := h.ledger.Rewards()
	views := make([]RewardView, 0, len(rewards))
	for _, reward := range rewards {
		views = append(views, RewardView{
			Reward:    reward,
			CanRedeem: h.ledger.CanRedeem(reward.ID),
		})
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"rewards": views,
	})
}

// Redeem spends points on the reward named by the {id} path parameter.
//
// Responses:
//   - 200: redemption confirmed, body is the backend confirmation
//   - 404: reward_not_found (not in the loaded catalog)
//   - 409: insufficient_points
//   - other statuses as returned by the backend
func (h *PointsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	rewardID := chi.URLParam(r, "id")

	var req RedeemRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}

	if _, ok := h.ledger.Reward(rewardID); !ok {
		utils.RespondWithError(w, r, http.StatusNotFound, "reward_not_found", "Reward not found")
		return
	}
	if !h.ledger.CanRedeem(rewardID) {
		utils.RespondWithError(w, r, http.StatusConflict, "insufficient_points", "Not enough points for this reward")
		return
	}

	result, err := h.ledger.RedeemReward(r.Context(), rewardID, req.ShippingAddress)
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, result)
}
