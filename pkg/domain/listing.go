package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CategoryAll is the filter sentinel that matches every category.
const CategoryAll = "All"

// Listing categories offered by the sell form.
var Categories = []string{
	"Engineering",
	"Arts",
	"Science",
	"Commerce",
	"Competitive Exams",
	"Literature",
	"Other",
}

// Book conditions offered by the sell form, best first.
var Conditions = []string{"New", "Like New", "Good", "Fair", "Poor"}

// Defaults for a fresh listing draft.
const (
	DefaultCategory  = "Other"
	DefaultCondition = "Good"
)

// Listing validation errors.
var (
	ErrTitleRequired    = errors.New("title is required")
	ErrAuthorRequired   = errors.New("author is required")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrSwapWithPrice    = errors.New("swap listings cannot carry a price")
	ErrPriceRequired    = errors.New("price must be greater than zero")
)

// Listing is a book offered for sale or swap (table "books").
type Listing struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Condition   string    `json:"condition"`
	Price       *float64  `json:"price"`  // nil iff IsSwap
	IsSwap      bool      `json:"is_swap"`
	Description string    `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url"`
	Seller      *Profile  `json:"profiles,omitempty"` // embedded when browsing
	CreatedAt   time.Time `json:"created_at"`
}

// SellerName returns the lister's username, or "" when it was not embedded.
func (l Listing) SellerName() string {
	if l.Seller == nil {
		return ""
	}
	return l.Seller.Username
}

// PriceLabel renders the listing price. Swap listings never show an amount.
func (l Listing) PriceLabel() string {
	if l.IsSwap || l.Price == nil {
		return "Swap"
	}
	return FormatAmount(*l.Price)
}

// FormatAmount renders a rupee amount, dropping a zero fractional part.
func FormatAmount(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}

// ListingDraft is the sell form payload before it becomes a row.
type ListingDraft struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	IsSwap      bool     `json:"is_swap"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
}

// NewListingDraft returns a draft with the form defaults applied.
func NewListingDraft() ListingDraft {
	return ListingDraft{Category: DefaultCategory, Condition: DefaultCondition}
}

// Validate checks required fields, the closed category and condition sets,
// and that price is present exactly when the listing is not a swap.
func (d ListingDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(d.Author) == "" {
		return ErrAuthorRequired
	}
	if !ValidCategory(d.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, d.Category)
	}
	if !ValidCondition(d.Condition) {
		return fmt.Errorf("%w: %q", ErrUnknownCondition, d.Condition)
	}
	if d.IsSwap {
		if d.Price != nil {
			return ErrSwapWithPrice
		}
		return nil
	}
	if d.Price == nil || *d.Price <= 0 {
		return ErrPriceRequired
	}
	return nil
}

// ParsePrice parses the free-text price field of the sell form.
func ParsePrice(s string) (*float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "₹"))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &v, nil
}

var (
	categorySet  = toSet(Categories)
	conditionSet = toSet(Conditions)
)

// ValidCategory returns true if c is a known listing category.
func ValidCategory(c string) bool {
	return categorySet[c]
}

// ValidCondition returns true if c is a known book condition.
func ValidCondition(c string) bool {
	return conditionSet[c]
}

func toSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
