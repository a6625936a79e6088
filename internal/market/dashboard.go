package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

// Dashboard is everything the dashboard view shows for one user.
type Dashboard struct {
	Listings      []domain.Listing
	Orders        []domain.Order
	Notifications []domain.Notification
	Summary       domain.Summary
}

// Dashboard fetches the user's listings, orders and notifications
// concurrently and recomputes the totals.
func (s *Service) Dashboard(ctx context.Context, sess *domain.Session) (*Dashboard, error) {
	c, err := s.as(sess)
	if err != nil {
		return nil, err
	}
	uid := sess.User.ID

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Listings, err = c.ListUserListings(gctx, uid)
		return err
	})
	g.Go(func() error {
		var err error
		d.Orders, err = c.ListUserOrders(gctx, uid)
		return err
	})
	g.Go(func() error {
		var err error
		d.Notifications, err = c.ListNotifications(gctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("market.Dashboard: %w", err)
	}
	d.Summary = domain.Summarize(uid, d.Listings, d.Orders, d.Notifications)
	return &d, nil
}

// MarkNotificationRead marks one notification read.
func (s *Service) MarkNotificationRead(ctx context.Context, sess *domain.Session, id uuid.UUID) error {
	c, err := s.as(sess)
	if err != nil {
		return err
	}
	if err := c.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("market.MarkNotificationRead: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the session user read.
func (s *Service) MarkAllRead(ctx context.Context, sess *domain.Session) error {
	c, err := s.as(sess)
	if err != nil {
		return err
	}
	if err := c.MarkAllNotificationsRead(ctx, sess.User.ID); err != nil {
		return fmt.Errorf("market.MarkAllRead: %w", err)
	}
	s.log.Debug("notifications marked read", zap.String("user_id", sess.User.ID.String()))
	return nil
}
