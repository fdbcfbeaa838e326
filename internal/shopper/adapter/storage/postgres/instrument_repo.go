package postgres

import (
	"context"
	"errors"
	"fmt"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"

	"github.com/jackc/pgx/v5"
)

// InstrumentStore is the Postgres-backed ports.InstrumentStore.
type InstrumentStore struct {
	pool Pool
}

func NewInstrumentStore(pool Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

func (s *InstrumentStore) Create(ctx context.Context, i *domain.PaymentInstrument) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_instruments (
			id, user_email, encrypted_pan, last_four, network,
			expiry_month, expiry_year, is_default, is_tokenized,
			network_token, token_reference, token_assurance, tokenized_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		i.ID, i.UserEmail, i.EncryptedPAN, i.LastFour, i.Network,
		i.ExpiryMonth, i.ExpiryYear, i.IsDefault, i.IsTokenized,
		i.NetworkToken, i.TokenReference, i.TokenAssurance, i.TokenizedAt, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment instrument: %w", err)
	}
	return nil
}

func (s *InstrumentStore) GetByID(ctx context.Context, id string) (*domain.PaymentInstrument, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_email, encrypted_pan, last_four, network,
			expiry_month, expiry_year, is_default, is_tokenized,
			network_token, token_reference, token_assurance, tokenized_at, created_at
		FROM payment_instruments WHERE id = $1`, id)
	return scanInstrument(row)
}

func (s *InstrumentStore) GetDefaultForUser(ctx context.Context, userEmail string) (*domain.PaymentInstrument, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_email, encrypted_pan, last_four, network,
			expiry_month, expiry_year, is_default, is_tokenized,
			network_token, token_reference, token_assurance, tokenized_at, created_at
		FROM payment_instruments
		WHERE user_email = $1
		ORDER BY is_default DESC, created_at DESC
		LIMIT 1`, userEmail)
	return scanInstrument(row)
}

func (s *InstrumentStore) Update(ctx context.Context, i *domain.PaymentInstrument) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payment_instruments SET
			encrypted_pan = $2, last_four = $3, network = $4,
			expiry_month = $5, expiry_year = $6, is_default = $7, is_tokenized = $8,
			network_token = $9, token_reference = $10, token_assurance = $11, tokenized_at = $12
		WHERE id = $1`,
		i.ID, i.EncryptedPAN, i.LastFour, i.Network,
		i.ExpiryMonth, i.ExpiryYear, i.IsDefault, i.IsTokenized,
		i.NetworkToken, i.TokenReference, i.TokenAssurance, i.TokenizedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment instrument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanInstrument(row pgx.Row) (*domain.PaymentInstrument, error) {
	var i domain.PaymentInstrument
	err := row.Scan(
		&i.ID, &i.UserEmail, &i.EncryptedPAN, &i.LastFour, &i.Network,
		&i.ExpiryMonth, &i.ExpiryYear, &i.IsDefault, &i.IsTokenized,
		&i.NetworkToken, &i.TokenReference, &i.TokenAssurance, &i.TokenizedAt, &i.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment instrument: %w", err)
	}
	return &i, nil
}
