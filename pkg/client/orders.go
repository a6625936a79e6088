package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

// CreateOrderRequest is the insert payload for the transactions table.
type CreateOrderRequest struct {
	BookID        uuid.UUID            `json:"book_id"`
	SellerID      uuid.UUID            `json:"seller_id"`
	BuyerID       uuid.UUID            `json:"buyer_id"`
	Kind          domain.OrderKind     `json:"type"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	domain.Address
	BookTitle  string   `json:"book_title"`
	BookAuthor string   `json:"book_author"`
	Amount     *float64 `json:"amount"`
}

// CreateOrder inserts one order and returns the stored row.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	var created []domain.Order
	if err := c.insertRows(ctx, tableTransactions, req, &created); err != nil {
		return nil, fmt.Errorf("client.CreateOrder: %w", err)
	}
	o, err := first(created)
	if err != nil {
		return nil, fmt.Errorf("client.CreateOrder: %w", err)
	}
	return o, nil
}

// ListUserOrders fetches orders where userID is the buyer or the seller,
// newest first, with the listing title and author embedded.
func (c *Client) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	id := userID.String()
	q := newestFirst(url.Values{
		"select": {"*,books(title,author)"},
		"or":     {orFilter("seller_id.eq."+id, "buyer_id.eq."+id)},
	})
	var orders []domain.Order
	if err := c.selectRows(ctx, tableTransactions, q, &orders); err != nil {
		return nil, fmt.Errorf("client.ListUserOrders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus overwrites the status field with the given string verbatim.
// It performs no transition check; callers that need one use CompareAndSetStatus.
func (c *Client) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	var updated []domain.Order
	q := url.Values{"id": {eq(id.String())}}
	if err := c.updateRows(ctx, tableTransactions, q, map[string]string{"status": status}, &updated); err != nil {
		return nil, fmt.Errorf("client.UpdateOrderStatus: %w", err)
	}
	o, err := first(updated)
	if err != nil {
		return nil, fmt.Errorf("client.UpdateOrderStatus: %w", err)
	}
	return o, nil
}

// CompareAndSetStatus moves an order from one status to another only if its
// stored status still equals from. ErrNoRows means the row changed underneath.
func (c *Client) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.Order, error) {
	var updated []domain.Order
	q := url.Values{"id": {eq(id.String())}, "status": {eq(string(from))}}
	if err := c.updateRows(ctx, tableTransactions, q, map[string]domain.OrderStatus{"status": to}, &updated); err != nil {
		return nil, fmt.Errorf("client.CompareAndSetStatus: %w", err)
	}
	o, err := first(updated)
	if err != nil {
		return nil, fmt.Errorf("client.CompareAndSetStatus: %w", err)
	}
	return o, nil
}

// SetOrderDegraded flags or clears an order whose seller notification is undelivered.
func (c *Client) SetOrderDegraded(ctx context.Context, id uuid.UUID, degraded bool) error {
	q := url.Values{"id": {eq(id.String())}}
	if err := c.updateRows(ctx, tableTransactions, q, map[string]bool{"degraded": degraded}, nil); err != nil {
		return fmt.Errorf("client.SetOrderDegraded: %w", err)
	}
	return nil
}
