package domain

import (
	"time"

	"github.com/google/uuid"
)

// MinRefreshTokenLen is the shortest refresh token accepted from local storage.
const MinRefreshTokenLen = 20

// User is the identity returned by the auth provider.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username,omitempty"`
}

// Session is the authenticated identity and token state for the current user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past (or within skew of) its expiry.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// Usable reports whether the session carries what the backend needs.
func (s *Session) Usable() bool {
	return s != nil && s.AccessToken != "" && s.User.ID != uuid.Nil
}

// DisplayName returns the username, falling back to the email.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Profile is the public identity of a user (table "profiles").
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}
