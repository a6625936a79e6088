package domain

import "github.com/google/uuid"

// Summary holds the dashboard totals for one user.
type Summary struct {
	Listings       int
	Selling        int // orders where the user is the seller
	Buying         int // orders where the user is the buyer
	PendingToReply int // pending orders awaiting the seller
	Unread         int
	Earned         float64 // completed sales with a recorded amount
}

// Summarize recomputes the dashboard totals by scanning the fetched slices.
func Summarize(userID uuid.UUID, listings []Listing, orders []Order, notifications []Notification) Summary {
	s := Summary{Listings: len(listings)}
	for _, o := range orders {
		switch o.Role(userID) {
		case "seller":
			s.Selling++
			if o.Status == StatusPending {
				s.PendingToReply++
			}
			if o.Status == StatusCompleted && o.Amount != nil {
				s.Earned += *o.Amount
			}
		case "buyer":
			s.Buying++
		}
	}
	for _, n := range notifications {
		if !n.Read {
			s.Unread++
		}
	}
	return s
}
