package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func notice(title string) domain.NewOrderNotice {
	return domain.NewOrderNotice{UserID: uuid.New(), Title: title, Message: "m", TransactionID: uuid.New()}
}

func TestEnqueueAndPending(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	buyer := uuid.New()

	first := notice("first")
	_, err := s.Enqueue(ctx, buyer, first, 3, errors.New("HTTP 503: unavailable"))
	require.NoError(t, err)
	second := notice("second")
	_, err = s.Enqueue(ctx, buyer, second, 3, nil)
	require.NoError(t, err)

	entries, err := s.Pending(ctx, buyer, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, first, entries[0].Notice)
	assert.Equal(t, buyer, entries[0].BuyerID)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, "HTTP 503: unavailable", entries[0].LastError)
	assert.Equal(t, second, entries[1].Notice)
	assert.Empty(t, entries[1].LastError)

	limited, err := s.Pending(ctx, buyer, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPendingIsPerBuyer(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	asha, ravi := uuid.New(), uuid.New()

	_, err := s.Enqueue(ctx, asha, notice("asha's order"), 3, nil)
	require.NoError(t, err)

	entries, err := s.Pending(ctx, ravi, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	n, err := s.Count(ctx, ravi)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Count(ctx, asha)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnqueueNeedsBuyer(t *testing.T) {
	s := openTemp(t)
	_, err := s.Enqueue(context.Background(), uuid.Nil, notice("n"), 1, nil)
	assert.ErrorIs(t, err, ErrNoBuyer)
}

func TestMarkDeliveredAndRecordFailure(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	buyer := uuid.New()

	id, err := s.Enqueue(ctx, buyer, notice("n"), 1, nil)
	require.NoError(t, err)

	require.NoError(t, s.RecordFailure(ctx, id, errors.New("still down")))
	entries, err := s.Pending(ctx, buyer, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.Equal(t, "still down", entries[0].LastError)

	require.NoError(t, s.MarkDelivered(ctx, id))
	n, err := s.Count(ctx, buyer)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.MarkDelivered(ctx, id), ErrUnknownEntry)
	assert.ErrorIs(t, s.RecordFailure(ctx, id, nil), ErrUnknownEntry)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	buyer := uuid.New()
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Enqueue(context.Background(), buyer, notice("kept"), 3, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	n, err := s.Count(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
