package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every recognized status.
var OrderStatuses = []OrderStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

// Status errors.
var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// transitions holds the allowed moves; statuses absent as keys are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted},
}

// ParseOrderStatus converts s into a recognized status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the four recognized statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// NextStatuses returns the statuses reachable from s in one move.
func NextStatuses(s OrderStatus) []OrderStatus {
	return append([]OrderStatus(nil), transitions[s]...)
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns nil for a legal move and a wrapped
// ErrUnknownStatus or ErrIllegalTransition otherwise.
func ValidateTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// OrderKind distinguishes purchases from swaps.
type OrderKind string

const (
	KindPurchase OrderKind = "purchase"
	KindSwap     OrderKind = "swap"
)

// PaymentMethod is how the buyer intends to pay.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

// Label returns the human-readable payment method.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCash:
		return "Cash on Delivery"
	case PaymentOnline:
		return "Online Payment"
	}
	return string(p)
}

// Valid reports whether p is a supported payment method.
func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentOnline
}

// UnknownBook is shown for orders whose listing and snapshot are both gone.
const UnknownBook = "Unknown Book"

// Address is the delivery address captured at checkout.
type Address struct {
	Line    string `json:"address_line"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// Missing returns the names of empty address fields.
func (a Address) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"address line", a.Line},
		{"city", a.City},
		{"state", a.State},
		{"pincode", a.Pincode},
		{"phone", a.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// OrderBook is the listing metadata embedded in an order read.
type OrderBook struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Order is a buyer's request to acquire a listing (table "transactions").
type Order struct {
	ID            uuid.UUID     `json:"id"`
	BookID        *uuid.UUID    `json:"book_id"`
	SellerID      uuid.UUID     `json:"seller_id"`
	BuyerID       uuid.UUID     `json:"buyer_id"`
	Kind          OrderKind     `json:"type"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Address
	BookTitle  string     `json:"book_title,omitempty"`
	BookAuthor string     `json:"book_author,omitempty"`
	Amount     *float64   `json:"amount,omitempty"`
	Degraded   bool       `json:"degraded"`
	Book       *OrderBook `json:"books,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Title returns the book title from the live listing, falling back to the
// snapshot taken at checkout and finally to UnknownBook.
func (o Order) Title() string {
	if o.Book != nil && o.Book.Title != "" {
		return o.Book.Title
	}
	if o.BookTitle != "" {
		return o.BookTitle
	}
	return UnknownBook
}

// AuthorName mirrors Title for the author field.
func (o Order) AuthorName() string {
	if o.Book != nil && o.Book.Author != "" {
		return o.Book.Author
	}
	return o.BookAuthor
}

// Role returns "seller", "buyer" or "" for the given user.
func (o Order) Role(userID uuid.UUID) string {
	switch userID {
	case o.SellerID:
		return "seller"
	case o.BuyerID:
		return "buyer"
	}
	return ""
}
