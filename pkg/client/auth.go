package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

type authUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	UserMetadata struct {
		Username string `json:"username"`
	} `json:"user_metadata"`
}

func (u authUser) toDomain() domain.User {
	return domain.User{ID: u.ID, Email: u.Email, Username: u.UserMetadata.Username}
}

type authResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *authUser `json:"user"`
}

func (r authResponse) toSession(now time.Time) (*domain.Session, error) {
	if r.AccessToken == "" {
		return nil, fmt.Errorf("auth response carried no access token")
	}
	s := &domain.Session{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	if r.User != nil {
		s.User = r.User.toDomain()
	}
	if s.ExpiresAt.IsZero() || s.User.ID == uuid.Nil {
		claims, err := ParseTokenClaims(r.AccessToken)
		if err != nil {
			return nil, err
		}
		if s.ExpiresAt.IsZero() {
			s.ExpiresAt = claims.ExpiresAt
		}
		if s.User.ID == uuid.Nil {
			s.User.ID = claims.Subject
			s.User.Email = claims.Email
		}
	}
	return s, nil
}

// SignUp registers a new account. The returned user may still need to confirm
// their email before SignInWithPassword succeeds.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*domain.User, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"username": username},
	}
	var resp struct {
		authUser
		User *authUser `json:"user"`
	}
	if err := c.post(ctx, authPrefix+"signup", body, &resp); err != nil {
		return nil, fmt.Errorf("client.SignUp: %w", err)
	}
	u := resp.authUser
	if resp.User != nil {
		u = *resp.User
	}
	out := u.toDomain()
	return &out, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, authPrefix+"token?grant_type=password", body, &resp); err != nil {
		return nil, fmt.Errorf("client.SignInWithPassword: %w", err)
	}
	s, err := resp.toSession(time.Now())
	if err != nil {
		return nil, fmt.Errorf("client.SignInWithPassword: %w", err)
	}
	return s, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	var resp authResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.post(ctx, authPrefix+"token?grant_type=refresh_token", body, &resp); err != nil {
		return nil, fmt.Errorf("client.RefreshSession: %w", err)
	}
	s, err := resp.toSession(time.Now())
	if err != nil {
		return nil, fmt.Errorf("client.RefreshSession: %w", err)
	}
	return s, nil
}

// SignOut revokes the session whose access token the client carries.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.post(ctx, authPrefix+"logout", nil, nil); err != nil {
		return fmt.Errorf("client.SignOut: %w", err)
	}
	return nil
}

// GetUser returns the user behind the client's access token.
func (c *Client) GetUser(ctx context.Context) (*domain.User, error) {
	var u authUser
	if err := c.get(ctx, authPrefix+"user", &u); err != nil {
		return nil, fmt.Errorf("client.GetUser: %w", err)
	}
	out := u.toDomain()
	return &out, nil
}
