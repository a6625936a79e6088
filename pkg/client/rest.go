package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Backend table names.
const (
	tableBooks         = "books"
	tableTransactions  = "transactions"
	tableNotifications = "notifications"
	tableProfiles      = "profiles"
)

func eq(v string) string { return "eq." + v }

func newestFirst(q url.Values) url.Values {
	q.Set("order", "created_at.desc")
	return q
}

func tablePath(table string, q url.Values) string {
	p := restPrefix + table
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}

func (c *Client) selectRows(ctx context.Context, table string, q url.Values, out any) error {
	return c.get(ctx, tablePath(table, q), out)
}

func (c *Client) insertRows(ctx context.Context, table string, body any, out any) error {
	return c.post(ctx, tablePath(table, nil), body, out)
}

func (c *Client) updateRows(ctx context.Context, table string, q url.Values, body any, out any) error {
	return c.doRequest(ctx, http.MethodPatch, tablePath(table, q), body, out)
}

func (c *Client) deleteRows(ctx context.Context, table string, q url.Values) error {
	return c.doRequest(ctx, http.MethodDelete, tablePath(table, q), nil, nil)
}

// orFilter builds a PostgREST or=(a,b) expression.
func orFilter(exprs ...string) string {
	return "(" + strings.Join(exprs, ",") + ")"
}

// first returns the first row of a representation response.
func first[T any](rows []T) (*T, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}
