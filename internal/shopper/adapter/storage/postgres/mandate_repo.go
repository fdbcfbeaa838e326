package postgres

import (
	"context"
	"errors"
	"fmt"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"

	"github.com/jackc/pgx/v5"
)

// MandateStore is the Postgres-backed ports.MandateStore, one row per
// checkout session the orchestrator has touched.
type MandateStore struct {
	pool Pool
}

func NewMandateStore(pool Pool) *MandateStore {
	return &MandateStore{pool: pool}
}

func (s *MandateStore) Create(ctx context.Context, m *domain.InFlightMandate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO in_flight_mandates (
			session_id, instrument_id, user_email, mandate_id,
			canonical_hash, status, receipt_json, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.SessionID, m.InstrumentID, m.UserEmail, m.MandateID,
		m.CanonicalHash, m.Status, m.ReceiptJSON, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert in-flight mandate: %w", err)
	}
	return nil
}

func (s *MandateStore) GetBySessionID(ctx context.Context, sessionID string) (*domain.InFlightMandate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, instrument_id, user_email, mandate_id,
			canonical_hash, status, receipt_json, created_at, updated_at
		FROM in_flight_mandates WHERE session_id = $1`, sessionID)

	var m domain.InFlightMandate
	err := row.Scan(
		&m.SessionID, &m.InstrumentID, &m.UserEmail, &m.MandateID,
		&m.CanonicalHash, &m.Status, &m.ReceiptJSON, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan in-flight mandate: %w", err)
	}
	return &m, nil
}

func (s *MandateStore) Update(ctx context.Context, m *domain.InFlightMandate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE in_flight_mandates SET
			instrument_id = $2, mandate_id = $3, canonical_hash = $4,
			status = $5, receipt_json = $6, updated_at = $7
		WHERE session_id = $1`,
		m.SessionID, m.InstrumentID, m.MandateID, m.CanonicalHash,
		m.Status, m.ReceiptJSON, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update in-flight mandate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}
