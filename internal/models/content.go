package models

import "time"

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchUpcoming  MatchStatus = "upcoming"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
)

// Match is a scheduled, live or finished match of the organization.
type Match struct {
	ID             string      `json:"id"`
	TournamentName string      `json:"tournamentName"`
	TournamentLogo string      `json:"tournamentLogo"`
	Date           time.Time   `json:"date"`
	Game           string      `json:"game"`
	OpponentName   string      `json:"opponentName"`
	OpponentLogo   string      `json:"opponentLogo"`
	FuriaScore     *int        `json:"furiaScore,omitempty"`
	OpponentScore  *int        `json:"opponentScore,omitempty"`
	StreamURL      string      `json:"streamUrl,omitempty"`
	HighlightsURL  string      `json:"highlightsUrl,omitempty"`
	Status         MatchStatus `json:"status"`
}

// MatchFilter narrows GET /matches. Empty fields are not sent.
type MatchFilter struct {
	Game   string
	Status MatchStatus
}

// PlayerFilter narrows GET /players.
type PlayerFilter struct {
	Game   string
	Active *bool
}

// StreamFilter narrows GET /streams.
type StreamFilter struct {
	Game   string
	IsLive *bool
}

// Player is a roster member.
type Player struct {
	ID           string `json:"id"`
	Nickname     string `json:"nickname"`
	RealName     string `json:"realName"`
	Role         string `json:"role"`
	PhotoURL     string `json:"photoUrl"`
	TwitterURL   string `json:"twitterUrl,omitempty"`
	TwitchURL    string `json:"twitchUrl,omitempty"`
	InstagramURL string `json:"instagramUrl,omitempty"`
	Game         string `json:"game"`
	Description  string `json:"description,omitempty"`
}

// Stream is a live or recorded stream.
type Stream struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	StreamerName   string     `json:"streamerName"`
	StreamerAvatar string     `json:"streamerAvatar"`
	ThumbnailURL   string     `json:"thumbnailUrl"`
	URL            string     `json:"url"`
	Game           string     `json:"game"`
	ViewerCount    int        `json:"viewerCount"`
	IsLive         bool       `json:"isLive"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
}

// Game is a title the organization competes in.
type Game struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	HeroImage   string `json:"heroImage"`
}
