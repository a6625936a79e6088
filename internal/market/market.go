// Package market implements the marketplace operations on top of the backend
// client: browsing, listing, ordering, order status changes and the dashboard.
// Every operation that acts for a user takes that user's session explicitly.
package market

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bookbazaar/bazaar/internal/outbox"
	"github.com/bookbazaar/bazaar/pkg/client"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

var (
	ErrNotAuthenticated = errors.New("sign in to continue")
	ErrNotSeller        = errors.New("only the seller can change this order")
	ErrNotOwner         = errors.New("only the lister can delete this listing")
	ErrOwnListing       = errors.New("you cannot order your own listing")
	ErrStaleOrder       = errors.New("order changed since it was loaded; refresh and try again")
	// ErrNotificationDeferred accompanies a successfully placed order whose
	// seller notification is queued for later delivery.
	ErrNotificationDeferred = errors.New("order placed; seller notification queued for retry")
)

// Options tune the seller-notification retry.
type Options struct {
	NotifyAttempts int
	NotifyBackoff  time.Duration
}

// Service runs marketplace operations.
type Service struct {
	client   *client.Client
	outbox   *outbox.Store
	log      *zap.Logger
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

// NewService returns a Service. c is the anon-key client; ob may be nil, in
// which case undeliverable notifications are only logged.
func NewService(c *client.Client, ob *outbox.Store, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.NotifyAttempts < 1 {
		opts.NotifyAttempts = 1
	}
	return &Service{
		client:   c,
		outbox:   ob,
		log:      log,
		attempts: opts.NotifyAttempts,
		backoff:  opts.NotifyBackoff,
		now:      time.Now,
	}
}

// as returns a client acting as the session's user.
func (s *Service) as(sess *domain.Session) (*client.Client, error) {
	if !sess.Usable() {
		return nil, ErrNotAuthenticated
	}
	return s.client.WithToken(sess.AccessToken), nil
}

// Listings fetches every listing, newest first. No session is required.
func (s *Service) Listings(ctx context.Context) ([]domain.Listing, error) {
	return s.client.ListListings(ctx)
}

// Browse fetches every listing and keeps those matching query and category.
func (s *Service) Browse(ctx context.Context, query, category string) ([]domain.Listing, error) {
	all, err := s.client.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterListings(all, query, category), nil
}

// Subscribe opens the realtime notification feed for the session's user.
func (s *Service) Subscribe(ctx context.Context, sess *domain.Session) (*client.NotificationFeed, error) {
	c, err := s.as(sess)
	if err != nil {
		return nil, err
	}
	return c.SubscribeNotifications(ctx, sess.User.ID)
}
