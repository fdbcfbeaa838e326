package postgres

import (
	"context"
	"errors"
	"fmt"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"

	"github.com/jackc/pgx/v5"
)

// CredentialStore is the Postgres-backed ports.CredentialStore. Only the
// most-recently enrolled credential per user is treated as "default",
// matching this demonstrator's one-device-per-user scope.
type CredentialStore struct {
	pool Pool
}

func NewCredentialStore(pool Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

func (s *CredentialStore) Create(ctx context.Context, c *domain.DeviceCredential) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO device_credentials (id, user_email, public_key, counter, created_at, enrollment_challenge_hash)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.UserEmail, c.PublicKey, c.Counter, c.CreatedAt, c.EnrollmentChallengeHash,
	)
	if err != nil {
		return fmt.Errorf("insert device credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) GetDefaultForUser(ctx context.Context, userEmail string) (*domain.DeviceCredential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_email, public_key, counter, created_at, enrollment_challenge_hash
		FROM device_credentials
		WHERE user_email = $1
		ORDER BY created_at DESC
		LIMIT 1`, userEmail)

	var c domain.DeviceCredential
	if err := row.Scan(&c.ID, &c.UserEmail, &c.PublicKey, &c.Counter, &c.CreatedAt, &c.EnrollmentChallengeHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan device credential: %w", err)
	}
	return &c, nil
}

func (s *CredentialStore) IncrementCounter(ctx context.Context, id string) (int64, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE device_credentials SET counter = counter + 1
		WHERE id = $1
		RETURNING counter`, id)

	var counter int64
	if err := row.Scan(&counter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ports.ErrNotFound
		}
		return 0, fmt.Errorf("increment device credential counter: %w", err)
	}
	return counter, nil
}
