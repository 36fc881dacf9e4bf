// Package models defines the core domain models shared by the session,
// points and chat components. The JSON tags mirror the camelCase field
// names served by the fan hub backend.
//
// The client never owns these records: users, activities and rewards are
// authoritative on the server and cached locally after every fetch.
package models

import (
	"time"
)

// User represents the authenticated fan's identity record as returned by
// /auth/login, /auth/register and /auth/me.
//
// The record is replaced wholesale on login, refresh and profile update;
// it is never patched field by field on the client.
//
// JSON example:
//
//	{
//	  "id": "6634c1f2a9d3e2b1c0f4e8a1",
//	  "username": "furioso",
//	  "email": "fan@example.com",
//	  "favoriteGame": "cs2",
//	  "points": 150,
//	  "createdAt": "2024-05-03T10:30:00Z"
//	}
type User struct {
	ID              string     `json:"id"`                        // Server-side user identifier
	Username        string     `json:"username"`                  // Public handle shown in chat
	Email           string     `json:"email"`                     // Login email
	FullName        string     `json:"fullName,omitempty"`        // Optional profile attributes
	BirthDate       *time.Time `json:"birthDate,omitempty"`       //
	City            string     `json:"city,omitempty"`            //
	State           string     `json:"state,omitempty"`           //
	Country         string     `json:"country,omitempty"`         //
	FavoriteGame    string     `json:"favoriteGame,omitempty"`    //
	HowDidYouFind   string     `json:"howDidYouFind,omitempty"`   //
	InstagramHandle string     `json:"instagramHandle,omitempty"` //
	TwitterHandle   string     `json:"twitterHandle,omitempty"`   //
	TwitchHandle    string     `json:"twitchHandle,omitempty"`    //
	FavoritePlayer  string     `json:"favoritePlayer,omitempty"`  //
	Points          int        `json:"points"`                    // Balance at the time the record was served
	CreatedAt       time.Time  `json:"createdAt"`                 // Account creation timestamp
}

// Registration is the full profile payload sent to /auth/register.
type Registration struct {
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Password        string     `json:"password"`
	FullName        string     `json:"fullName,omitempty"`
	BirthDate       *time.Time `json:"birthDate,omitempty"`
	City            string     `json:"city,omitempty"`
	State           string     `json:"state,omitempty"`
	Country         string     `json:"country,omitempty"`
	FavoriteGame    string     `json:"favoriteGame,omitempty"`
	HowDidYouFind   string     `json:"howDidYouFind,omitempty"`
	InstagramHandle string     `json:"instagramHandle,omitempty"`
	TwitterHandle   string     `json:"twitterHandle,omitempty"`
	TwitchHandle    string     `json:"twitchHandle,omitempty"`
	FavoritePlayer  string     `json:"favoritePlayer,omitempty"`
}

// ProfileUpdate carries the editable profile attributes for PUT /users/{id}.
// Nil fields are omitted from the request and left unchanged by the server.
type ProfileUpdate struct {
	Username        *string    `json:"username,omitempty"`
	FullName        *string    `json:"fullName,omitempty"`
	BirthDate       *time.Time `json:"birthDate,omitempty"`
	City            *string    `json:"city,omitempty"`
	State           *string    `json:"state,omitempty"`
	Country         *string    `json:"country,omitempty"`
	FavoriteGame    *string    `json:"favoriteGame,omitempty"`
	InstagramHandle *string    `json:"instagramHandle,omitempty"`
	TwitterHandle   *string    `json:"twitterHandle,omitempty"`
	TwitchHandle    *string    `json:"twitchHandle,omitempty"`
	FavoritePlayer  *string    `json:"favoritePlayer,omitempty"`
}

// AuthPayload is the validated result of a login or registration call.
// Both fields are always populated; the API client rejects any response
// that does not carry a non-empty token and a user record.
type AuthPayload struct {
	Token string
	User  *User
}
