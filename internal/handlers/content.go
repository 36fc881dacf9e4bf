package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/pkg/utils"
)

// ContentService defines the read-only content calls proxied by the bridge.
type ContentService interface {
	Matches(ctx context.Context, filter models.MatchFilter) ([]models.Match, error)
	FeaturedMatches(ctx context.Context) ([]models.Match, error)
	Match(ctx context.Context, id string) (*models.Match, error)
	Games(ctx context.Context) ([]models.Game, error)
	Game(ctx context.Context, slug string) (*models.Game, error)
	Players(ctx context.Context, filter models.PlayerFilter) ([]models.Player, error)
	Player(ctx context.Context, id string) (*models.Player, error)
	Streams(ctx context.Context, filter models.StreamFilter) ([]models.Stream, error)
	LiveStreams(ctx context.Context) ([]models.Stream, error)
	Stream(ctx context.Context, id string) (*models.Stream, error)
}

// ContentHandler proxies match and stream listings. None of these need a
// session.
type ContentHandler struct {
	content ContentService
}

// NewContentHandler creates a content handler backed by the API client.
func NewContentHandler(content ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// Matches lists matches, optionally filtered by ?game= and ?status=.
//
// Example request:
//
//	GET /api/v1/content/matches?game=cs2&status=upcoming
func (h *ContentHandler) Matches(w http.ResponseWriter, r *http.Request) {
	filter := models.MatchFilter{
		Game:   r.URL.Query().Get("game"),
		Status: models.MatchStatus(r.URL.Query().Get("status")),
	}
	switch filter.Status {
	case "", models.MatchUpcoming, models.MatchLive, models.MatchCompleted:
	default:
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_status", "Unknown match status")
		return
	}

	matches, err := h.content.Matches(r.Context(), filter)
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"matches": matches})
}

// FeaturedMatches lists the matches highlighted on the home screen.
func (h *ContentHandler) FeaturedMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.content.FeaturedMatches(r.Context())
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"matches": matches})
}

// LiveStreams lists streams that are live right now.
func (h *ContentHandler) LiveStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := h.content.LiveStreams(r.Context())
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"streams": streams})
}

// Match returns one match by the {id} path parameter.
func (h *ContentHandler) Match(w http.ResponseWriter, r *http.Request) {
	match, err := h.content.Match(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, match)
}

// Games lists the titles FURIA competes in.
func (h *ContentHandler) Games(w http.ResponseWriter, r *http.Request) {
	games, err := h.content.Games(r.Context())
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"games": games})
}

// Players lists roster members, optionally filtered by ?game=.
func (h *ContentHandler) Players(w http.ResponseWriter, r *http.Request) {
	players, err := h.content.Players(r.Context(), models.PlayerFilter{Game: r.URL.Query().Get("game")})
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"players": players})
}

// Game returns one title by the {slug} path parameter.
func (h *ContentHandler) Game(w http.ResponseWriter, r *http.Request) {
	game, err := h.content.Game(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, game)
}

// Player returns one roster member by the {id} path parameter.
func (h *ContentHandler) Player(w http.ResponseWriter, r *http.Request) {
	player, err := h.content.Player(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, player)
}

// Streams lists streams, optionally filtered by ?game= and ?live=.
//
// Example request:
//
//	GET /api/v1/content/streams?game=cs2&live=false
func (h *ContentHandler) Streams(w http.ResponseWriter, r *http.Request) {
	filter := models.StreamFilter{Game: r.URL.Query().Get("game")}
	if raw := r.URL.Query().Get("live"); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_filter", "live must be true or false")
			return
		}
		filter.IsLive = &live
	}

	streams, err := h.content.Streams(r.Context(), filter)
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"streams": streams})
}

// Stream returns one stream by the {id} path parameter.
func (h *ContentHandler) Stream(w http.ResponseWriter, r *http.Request) {
	stream, err := h.content.Stream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, stream)
}
