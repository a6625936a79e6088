package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCancelled, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCompleted, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusPending, OrderStatus("shipped"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidateTransitionErrors(t *testing.T) {
	if err := ValidateTransition(StatusPending, "shipped"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("unknown target: got %v, want ErrUnknownStatus", err)
	}
	if err := ValidateTransition(StatusCancelled, StatusCompleted); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("cancelled->completed: got %v, want ErrIllegalTransition", err)
	}
	if err := ValidateTransition(StatusConfirmed, StatusCompleted); err != nil {
		t.Errorf("confirmed->completed: unexpected error %v", err)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range OrderStatuses {
		want := s == StatusCompleted || s == StatusCancelled
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
	if OrderStatus("bogus").Terminal() {
		t.Error("unknown status must not report terminal")
	}
}

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus(" Confirmed ")
	if err != nil || got != StatusConfirmed {
		t.Errorf("ParseOrderStatus = %q, %v; want confirmed", got, err)
	}
	if _, err := ParseOrderStatus("refunded"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestOrderTitleFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		order Order
		want  string
	}{
		{"live listing", Order{Book: &OrderBook{Title: "Live"}, BookTitle: "Snapshot"}, "Live"},
		{"deleted listing keeps snapshot", Order{BookTitle: "Snapshot"}, "Snapshot"},
		{"nothing left", Order{}, UnknownBook},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.Title(); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddressMissing(t *testing.T) {
	a := Address{Line: "Hostel 4, Room 12", City: "Pune"}
	got := a.Missing()
	if len(got) != 3 {
		t.Fatalf("Missing() = %v, want 3 fields", got)
	}
	if got[0] != "state" || got[2] != "phone" {
		t.Errorf("Missing() = %v", got)
	}
}

func TestOrderRole(t *testing.T) {
	seller, buyer := uuid.New(), uuid.New()
	o := Order{SellerID: seller, BuyerID: buyer}
	if o.Role(seller) != "seller" || o.Role(buyer) != "buyer" || o.Role(uuid.New()) != "" {
		t.Error("Role() did not distinguish seller, buyer and stranger")
	}
}
