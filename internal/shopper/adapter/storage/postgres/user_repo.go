package postgres

import (
	"context"
	"errors"
	"fmt"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"

	"github.com/jackc/pgx/v5"
)

// UserStore is the Postgres-backed ports.UserStore.
type UserStore struct {
	pool Pool
}

func NewUserStore(pool Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (email, display_name, created_at, updated_at)
		VALUES ($1,$2,$3,$4)`,
		u.Email, u.DisplayName, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT email, display_name, created_at, updated_at FROM users WHERE email = $1`, email)

	var u domain.User
	if err := row.Scan(&u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
