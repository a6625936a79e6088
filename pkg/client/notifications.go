package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

// CreateNotification inserts one notification row.
func (c *Client) CreateNotification(ctx context.Context, n domain.NewOrderNotice) (*domain.Notification, error) {
	var created []domain.Notification
	if err := c.insertRows(ctx, tableNotifications, n, &created); err != nil {
		return nil, fmt.Errorf("client.CreateNotification: %w", err)
	}
	out, err := first(created)
	if err != nil {
		return nil, fmt.Errorf("client.CreateNotification: %w", err)
	}
	return out, nil
}

// ListNotifications fetches the notifications addressed to userID, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	q := newestFirst(url.Values{"select": {"*"}, "user_id": {eq(userID.String())}})
	var notifications []domain.Notification
	if err := c.selectRows(ctx, tableNotifications, q, &notifications); err != nil {
		return nil, fmt.Errorf("client.ListNotifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead sets the read flag on one notification.
func (c *Client) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	q := url.Values{"id": {eq(id.String())}}
	if err := c.updateRows(ctx, tableNotifications, q, map[string]bool{"read": true}, nil); err != nil {
		return fmt.Errorf("client.MarkNotificationRead: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead sets the read flag on every unread notification of userID.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	q := url.Values{"user_id": {eq(userID.String())}, "read": {"is.false"}}
	if err := c.updateRows(ctx, tableNotifications, q, map[string]bool{"read": true}, nil); err != nil {
		return fmt.Errorf("client.MarkAllNotificationsRead: %w", err)
	}
	return nil
}

// GetProfile fetches the public profile of a user.
func (c *Client) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	q := url.Values{"select": {"id,username"}, "id": {eq(id.String())}}
	var profiles []domain.Profile
	if err := c.selectRows(ctx, tableProfiles, q, &profiles); err != nil {
		return nil, fmt.Errorf("client.GetProfile: %w", err)
	}
	p, err := first(profiles)
	if err != nil {
		return nil, fmt.Errorf("client.GetProfile: %w", err)
	}
	return p, nil
}
