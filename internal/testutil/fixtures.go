// Package testutil provides common testing utilities, fixtures, and fake
// backends shared by the fan hub test suites.
package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ronerog/furia-app/internal/models"
)

// TestSecret signs every token minted by the fixtures. The client never
// verifies signatures, so any value works.
var TestSecret = []byte("fan-hub-test-secret-at-least-32-bytes")

// TestPassword is the password accepted for users seeded into a Backend.
const TestPassword = "pw"

// TestUser creates a test user with default values
func TestUser() *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		Username:     "furioso",
		Email:        "a@b.com",
		FullName:     "Fã da Fúria",
		City:         "São Paulo",
		Country:      "Brazil",
		FavoriteGame: "cs2",
		Points:       150,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

// TestUserWithPoints creates a test user with a specific balance
func TestUserWithPoints(points int) *models.User {
	user := TestUser()
	user.Points = points
	return user
}

// TestRewards returns a small reward catalog
func TestRewards() []models.Reward {
	return []models.Reward{
		{ID: "r1", Name: "Camisa oficial", Description: "Jersey", ImageURL: "https://img.test/r1.png", PointsCost: 200},
		{ID: "r2", Name: "Adesivos", Description: "Sticker pack", ImageURL: "https://img.test/r2.png", PointsCost: 50},
	}
}

// TestMessage creates a chat message with the given text
func TestMessage(text string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		UserID:    "u-" + text,
		Username:  "fan-" + text,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

// TokenFor mints a signed token for userID expiring at exp.
func TokenFor(t *testing.T, userID string, exp time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(TestSecret)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

// ValidToken mints a token valid for one hour.
func ValidToken(t *testing.T, userID string) string {
	t.Helper()
	return TokenFor(t, userID, time.Now().Add(time.Hour))
}

// ExpiredToken mints a token that expired one second ago.
func ExpiredToken(t *testing.T, userID string) string {
	t.Helper()
	return TokenFor(t, userID, time.Now().Add(-time.Second))
}

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to the given bool
func BoolPtr(b bool) *bool {
	return &b
}

// UserAgents provides common user agent strings for testing
var UserAgents = struct {
	Chrome       string
	Firefox      string
	MobileSafari string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Firefox:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}
