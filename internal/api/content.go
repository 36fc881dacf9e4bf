package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ronerog/furia-app/internal/models"
)

// Content catalog endpoints. They are public and never end the session.

// Games lists the titles the organization competes in.
func (c *Client) Games(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	err := c.get(ctx, "/games", "/games", nil, &games)
	return games, err
}

// Game fetches one title by slug.
func (c *Client) Game(ctx context.Context, slug string) (*models.Game, error) {
	var game models.Game
	if err := c.get(ctx, "/games/{slug}", "/games/"+url.PathEscape(slug), nil, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// Matches lists matches, optionally filtered by game and status.
func (c *Client) Matches(ctx context.Context, filter models.MatchFilter) ([]models.Match, error) {
	query := url.Values{}
	if filter.Game != "" {
		query.Set("game", filter.Game)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}

	var matches []models.Match
	err := c.get(ctx, "/matches", "/matches", query, &matches)
	return matches, err
}

// FeaturedMatches lists the highlighted matches for the home view.
func (c *Client) FeaturedMatches(ctx context.Context) ([]models.Match, error) {
	var matches []models.Match
	err := c.get(ctx, "/matches/featured", "/matches/featured", nil, &matches)
	return matches, err
}

// Match fetches one match by id.
func (c *Client) Match(ctx context.Context, id string) (*models.Match, error) {
	var match models.Match
	if err := c.get(ctx, "/matches/{id}", "/matches/"+url.PathEscape(id), nil, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// Players lists roster members.
func (c *Client) Players(ctx context.Context, filter models.PlayerFilter) ([]models.Player, error) {
	query := url.Values{}
	if filter.Game != "" {
		query.Set("game", filter.Game)
	}
	if filter.Active != nil {
		query.Set("active", strconv.FormatBool(*filter.Active))
	}

	var players []models.Player
	err := c.get(ctx, "/players", "/players", query, &players)
	return players, err
}

// Player fetches one roster member by id.
func (c *Client) Player(ctx context.Context, id string) (*models.Player, error) {
	var player models.Player
	if err := c.get(ctx, "/players/{id}", "/players/"+url.PathEscape(id), nil, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

// Streams lists streams.
func (c *Client) Streams(ctx context.Context, filter models.StreamFilter) ([]models.Stream, error) {
	query := url.Values{}
	if filter.Game != "" {
		query.Set("game", filter.Game)
	}
	if filter.IsLive != nil {
		query.Set("isLive", strconv.FormatBool(*filter.IsLive))
	}

	var streams []models.Stream
	err := c.get(ctx, "/streams", "/streams", query, &streams)
	return streams, err
}

// LiveStreams lists streams currently on air.
func (c *Client) LiveStreams(ctx context.Context) ([]models.Stream, error) {
	var streams []models.Stream
	err := c.get(ctx, "/streams/live", "/streams/live", nil, &streams)
	return streams, err
}

// Stream fetches one stream by id.
func (c *Client) Stream(ctx context.Context, id string) (*models.Stream, error) {
	var stream models.Stream
	if err := c.get(ctx, "/streams/{id}", "/streams/"+url.PathEscape(id), nil, &stream); err != nil {
		return nil, err
	}
	return &stream, nil
}

func (c *Client) get(ctx context.Context, route, path string, query url.Values, out interface{}) error {
	return c.do(ctx, request{
		method: http.MethodGet,
		route:  route,
		path:   path,
		query:  query,
		out:    out,
		token:  c.currentToken(),
	})
}
