package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

// newListingRow is the insert payload for the books table.
type newListingRow struct {
	UserID   uuid.UUID `json:"user_id"`
	ImageURL *string   `json:"image_url"`
	domain.ListingDraft
}

// ListListings fetches every listing, newest first, with the lister's username embedded.
func (c *Client) ListListings(ctx context.Context) ([]domain.Listing, error) {
	q := newestFirst(url.Values{"select": {"*,profiles(username)"}})
	var listings []domain.Listing
	if err := c.selectRows(ctx, tableBooks, q, &listings); err != nil {
		return nil, fmt.Errorf("client.ListListings: %w", err)
	}
	return listings, nil
}

// ListUserListings fetches the listings owned by userID, newest first.
func (c *Client) ListUserListings(ctx context.Context, userID uuid.UUID) ([]domain.Listing, error) {
	q := newestFirst(url.Values{"select": {"*"}, "user_id": {eq(userID.String())}})
	var listings []domain.Listing
	if err := c.selectRows(ctx, tableBooks, q, &listings); err != nil {
		return nil, fmt.Errorf("client.ListUserListings: %w", err)
	}
	return listings, nil
}

// GetListing fetches a single listing by ID.
func (c *Client) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	q := url.Values{"select": {"*,profiles(username)"}, "id": {eq(id.String())}}
	var listings []domain.Listing
	if err := c.selectRows(ctx, tableBooks, q, &listings); err != nil {
		return nil, fmt.Errorf("client.GetListing: %w", err)
	}
	l, err := first(listings)
	if err != nil {
		return nil, fmt.Errorf("client.GetListing: %w", err)
	}
	return l, nil
}

// CreateListing inserts one listing owned by userID.
func (c *Client) CreateListing(ctx context.Context, userID uuid.UUID, draft domain.ListingDraft, imageURL *string) (*domain.Listing, error) {
	row := newListingRow{UserID: userID, ImageURL: imageURL, ListingDraft: draft}
	var created []domain.Listing
	if err := c.insertRows(ctx, tableBooks, row, &created); err != nil {
		return nil, fmt.Errorf("client.CreateListing: %w", err)
	}
	l, err := first(created)
	if err != nil {
		return nil, fmt.Errorf("client.CreateListing: %w", err)
	}
	return l, nil
}

// DeleteListing deletes a listing by ID. Orders that reference it are left alone.
func (c *Client) DeleteListing(ctx context.Context, id uuid.UUID) error {
	if err := c.deleteRows(ctx, tableBooks, url.Values{"id": {eq(id.String())}}); err != nil {
		return fmt.Errorf("client.DeleteListing: %w", err)
	}
	return nil
}
