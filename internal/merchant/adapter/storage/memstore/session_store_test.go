package memstore

import (
	"context"
	"testing"
	"time"

	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	sess := &domain.CheckoutSession{ID: "sess-1", Status: domain.StatusIncomplete, Version: 0}
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIncomplete, got.Status)
}

func TestSessionStore_GetByID_NotFound(t *testing.T) {
	store := New()
	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionStore_CompareAndSwap_Succeeds(t *testing.T) {
	store := New()
	ctx := context.Background()
	sess := &domain.CheckoutSession{ID: "sess-1", Status: domain.StatusIncomplete, Version: 0}
	require.NoError(t, store.Create(ctx, sess))

	sess.Status = domain.StatusReadyForComplete
	require.NoError(t, store.CompareAndSwap(ctx, sess, 0))

	got, err := store.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyForComplete, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestSessionStore_CompareAndSwap_ConflictOnStaleVersion(t *testing.T) {
	store := New()
	ctx := context.Background()
	sess := &domain.CheckoutSession{ID: "sess-1", Status: domain.StatusIncomplete, Version: 0}
	require.NoError(t, store.Create(ctx, sess))
	require.NoError(t, store.CompareAndSwap(ctx, sess, 0))

	// Stale caller still thinks the version is 0.
	err := store.CompareAndSwap(ctx, sess, 0)
	assert.ErrorIs(t, err, ports.ErrVersionConflict)
}

func TestSessionStore_ListExpired(t *testing.T) {
	store := New()
	ctx := context.Background()
	old := &domain.CheckoutSession{
		ID: "old", Status: domain.StatusReadyForComplete, Version: 0,
		UpdatedAt: time.Now().Add(-10 * time.Minute),
	}
	fresh := &domain.CheckoutSession{
		ID: "fresh", Status: domain.StatusReadyForComplete, Version: 0,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, fresh))

	expired, err := store.ListExpired(ctx, time.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)
}

func TestSessionStore_FindByMandateID(t *testing.T) {
	store := New()
	ctx := context.Background()
	sess := &domain.CheckoutSession{ID: "sess-1", Status: domain.StatusIncomplete, Version: 0}
	require.NoError(t, store.Create(ctx, sess))

	_, err := store.FindByMandateID(ctx, "pm_1")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
