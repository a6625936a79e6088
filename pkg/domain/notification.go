package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is a message delivered to a user about one of their orders.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Read          bool       `json:"read"`
	TransactionID *uuid.UUID `json:"related_transaction_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewOrderNotice is the insert payload for a seller notification.
type NewOrderNotice struct {
	UserID        uuid.UUID `json:"user_id"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	TransactionID uuid.UUID `json:"related_transaction_id"`
}

// NewOrderNoticeFor builds the notification sent to the seller of l when o is placed.
func NewOrderNoticeFor(l Listing, o Order) NewOrderNotice {
	verb := fmt.Sprintf("buy %q for %s", l.Title, l.PriceLabel())
	if l.IsSwap {
		verb = fmt.Sprintf("swap for %q", l.Title)
	}
	return NewOrderNotice{
		UserID:        l.UserID,
		Title:         "New Order Received!",
		Message:       fmt.Sprintf("Someone wants to %s. Payment: %s.", verb, o.PaymentMethod.Label()),
		TransactionID: o.ID,
	}
}
