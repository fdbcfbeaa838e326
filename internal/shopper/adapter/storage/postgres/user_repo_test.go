package postgres

import (
	"context"
	"testing"
	"time"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewUserStore(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &domain.User{Email: "a@example.com", DisplayName: "Alice", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO users").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_GetByEmail_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewUserStore(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT email, display_name, created_at, updated_at FROM users").
		WithArgs("a@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"email", "display_name", "created_at", "updated_at"}).
			AddRow("a@example.com", "Alice", now, now))

	u, err := store.GetByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, "Alice", u.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_GetByEmail_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewUserStore(mock)

	mock.ExpectQuery("SELECT email, display_name, created_at, updated_at FROM users").
		WithArgs("missing@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
