package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bookbazaar/bazaar/pkg/client"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

// cleanupTimeout bounds compensating and bookkeeping writes that outlive the
// caller's context.
const cleanupTimeout = 10 * time.Second

// ErrAddressIncomplete is returned when checkout fields are missing.
var ErrAddressIncomplete = errors.New("delivery details incomplete")

// ErrPaymentMethod is returned for payment methods other than cash or online.
var ErrPaymentMethod = errors.New("choose cash on delivery or online payment")

// Checkout is what the buyer fills in before placing an order.
type Checkout struct {
	Address       domain.Address
	PaymentMethod domain.PaymentMethod
}

// Validate reports missing address fields and an unknown payment method.
func (c Checkout) Validate() error {
	if missing := c.Address.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrAddressIncomplete, strings.Join(missing, ", "))
	}
	if !c.PaymentMethod.Valid() {
		return ErrPaymentMethod
	}
	return nil
}

// PlaceOrder creates a pending order for l and notifies its seller. When the
// notification cannot be delivered after the configured attempts, the order
// is kept, flagged degraded, the notice is queued in the outbox, and the
// order is returned together with ErrNotificationDeferred.
func (s *Service) PlaceOrder(ctx context.Context, sess *domain.Session, l domain.Listing, co Checkout) (*domain.Order, error) {
	c, err := s.as(sess)
	if err != nil {
		return nil, err
	}
	if l.UserID == sess.User.ID {
		return nil, ErrOwnListing
	}
	if err := co.Validate(); err != nil {
		return nil, err
	}

	kind := domain.KindPurchase
	amount := l.Price
	if l.IsSwap {
		kind = domain.KindSwap
		amount = nil
	}
	order, err := c.CreateOrder(ctx, client.CreateOrderRequest{
		BookID:        l.ID,
		SellerID:      l.UserID,
		BuyerID:       sess.User.ID,
		Kind:          kind,
		Status:        domain.StatusPending,
		PaymentMethod: co.PaymentMethod,
		Address:       trimAddress(co.Address),
		BookTitle:     l.Title,
		BookAuthor:    l.Author,
		Amount:        amount,
	})
	if err != nil {
		return nil, fmt.Errorf("market.PlaceOrder: %w", err)
	}
	log := s.log.With(zap.String("order_id", order.ID.String()))
	log.Info("order placed", zap.String("type", string(kind)))

	notice := domain.NewOrderNoticeFor(l, *order)
	notifyErr := s.notify(ctx, c, notice)
	if notifyErr == nil {
		return order, nil
	}

	// Bookkeeping below must complete even if the caller gave up.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	log.Warn("seller notification failed, deferring", zap.Int("attempts", s.attempts), zap.Error(notifyErr))
	if err := c.SetOrderDegraded(bg, order.ID, true); err != nil {
		log.Warn("flag order degraded", zap.Error(err))
	} else {
		order.Degraded = true
	}
	if s.outbox != nil {
		if _, err := s.outbox.Enqueue(bg, sess.User.ID, notice, s.attempts, notifyErr); err != nil {
			log.Error("queue seller notification", zap.Error(err))
		}
	}
	return order, ErrNotificationDeferred
}

// notify inserts the notice, retrying up to s.attempts times.
func (s *Service) notify(ctx context.Context, c *client.Client, n domain.NewOrderNotice) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if _, err = c.CreateNotification(ctx, n); err == nil {
			return nil
		}
		if attempt == s.attempts || s.backoff <= 0 {
			continue
		}
		t := time.NewTimer(s.backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

func trimAddress(a domain.Address) domain.Address {
	return domain.Address{
		Line:    strings.TrimSpace(a.Line),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Pincode: strings.TrimSpace(a.Pincode),
		Phone:   strings.TrimSpace(a.Phone),
	}
}

// FlushResult reports an outbox replay.
type FlushResult struct {
	Delivered int
	Failed    int
}

// FlushOutbox replays the seller notifications queued by the session's user.
// Each delivered entry is removed and its order's degraded flag cleared;
// failures bump the entry's attempt counter and stay queued.
func (s *Service) FlushOutbox(ctx context.Context, sess *domain.Session) (FlushResult, error) {
	var res FlushResult
	if s.outbox == nil {
		return res, nil
	}
	c, err := s.as(sess)
	if err != nil {
		return res, err
	}
	entries, err := s.outbox.Pending(ctx, sess.User.ID, 0)
	if err != nil {
		return res, err
	}
	for _, e := range entries {
		if _, err := c.CreateNotification(ctx, e.Notice); err != nil {
			res.Failed++
			if recErr := s.outbox.RecordFailure(ctx, e.ID, err); recErr != nil {
				return res, recErr
			}
			continue
		}
		if err := s.outbox.MarkDelivered(ctx, e.ID); err != nil {
			return res, err
		}
		res.Delivered++
		if err := c.SetOrderDegraded(ctx, e.Notice.TransactionID, false); err != nil {
			s.log.Warn("clear degraded flag", zap.String("order_id", e.Notice.TransactionID.String()), zap.Error(err))
		}
	}
	if res.Delivered+res.Failed > 0 {
		s.log.Info("outbox flushed", zap.Int("delivered", res.Delivered), zap.Int("failed", res.Failed))
	}
	return res, nil
}

// PendingNotifications returns the number of seller notifications queued by
// the session's user.
func (s *Service) PendingNotifications(ctx context.Context, sess *domain.Session) (int, error) {
	if !sess.Usable() {
		return 0, ErrNotAuthenticated
	}
	if s.outbox == nil {
		return 0, nil
	}
	return s.outbox.Count(ctx, sess.User.ID)
}

// UpdateOrderStatus moves o to target on behalf of its seller. Unknown targets
// and illegal moves are rejected before any write. The write only applies if
// the stored status still equals o.Status; otherwise ErrStaleOrder.
func (s *Service) UpdateOrderStatus(ctx context.Context, sess *domain.Session, o domain.Order, target string) (*domain.Order, error) {
	c, err := s.as(sess)
	if err != nil {
		return nil, err
	}
	if o.SellerID != sess.User.ID {
		return nil, ErrNotSeller
	}
	to, err := domain.ParseOrderStatus(target)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateTransition(o.Status, to); err != nil {
		return nil, err
	}

	updated, err := c.CompareAndSetStatus(ctx, o.ID, o.Status, to)
	if errors.Is(err, client.ErrNoRows) {
		return nil, ErrStaleOrder
	}
	if err != nil {
		return nil, fmt.Errorf("market.UpdateOrderStatus: %w", err)
	}
	if updated.Book == nil {
		updated.Book = o.Book
	}
	s.log.Info("order status changed", zap.String("order_id", o.ID.String()),
		zap.String("from", string(o.Status)), zap.String("to", string(to)))
	return updated, nil
}
