package memstore

import (
	"context"
	"testing"
	"time"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_CreateAndGet(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Create(ctx, &domain.User{Email: "a@example.com", DisplayName: "Alice", CreatedAt: now, UpdatedAt: now}))

	got, err := s.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = s.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCredentialStore_MostRecentIsDefault(t *testing.T) {
	s := NewCredentialStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &domain.DeviceCredential{ID: "cred-1", UserEmail: "a@example.com"}))
	require.NoError(t, s.Create(ctx, &domain.DeviceCredential{ID: "cred-2", UserEmail: "a@example.com"}))

	got, err := s.GetDefaultForUser(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cred-2", got.ID)

	counter, err := s.IncrementCounter(ctx, "cred-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter)

	_, err = s.IncrementCounter(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestInstrumentStore_DefaultTracking(t *testing.T) {
	s := NewInstrumentStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &domain.PaymentInstrument{ID: "inst-1", UserEmail: "a@example.com"}))
	require.NoError(t, s.Create(ctx, &domain.PaymentInstrument{ID: "inst-2", UserEmail: "a@example.com", IsDefault: true}))

	got, err := s.GetDefaultForUser(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "inst-2", got.ID)

	got.LastFour = "9999"
	require.NoError(t, s.Update(ctx, got))

	updated, err := s.GetByID(ctx, "inst-2")
	require.NoError(t, err)
	assert.Equal(t, "9999", updated.LastFour)

	err = s.Update(ctx, &domain.PaymentInstrument{ID: "missing"})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestMandateStore_CreateGetUpdate(t *testing.T) {
	s := NewMandateStore()
	ctx := context.Background()

	m := &domain.InFlightMandate{SessionID: "sess-1", Status: domain.MandateStatusPrepared}
	require.NoError(t, s.Create(ctx, m))

	got, err := s.GetBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MandateStatusPrepared, got.Status)

	got.Status = domain.MandateStatusComplete
	require.NoError(t, s.Update(ctx, got))

	updated, err := s.GetBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MandateStatusComplete, updated.Status)

	_, err = s.GetBySessionID(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
