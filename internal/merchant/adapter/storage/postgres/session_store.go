package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"

	"github.com/jackc/pgx/v5"
)

// SessionStore is the Postgres-backed ports.SessionStore. Per Design Notes
// §9 it uses optimistic compare-and-swap on a version column rather than
// the teacher's pessimistic FOR UPDATE locking (wallet_repo.go) — both
// satisfy "preserve per-session serialization"; CAS fits a stateless HTTP
// handler better since no long-lived transaction spans the handler.
type SessionStore struct {
	pool Pool
}

// NewSessionStore creates a Postgres-backed SessionStore.
func NewSessionStore(pool Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

type sessionRow struct {
	lineItems []byte
	mandate   []byte
	receipt   []byte
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.CheckoutSession) error {
	lineItems, err := json.Marshal(sess.LineItems)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO checkout_sessions
			(id, line_items, buyer_email, currency, subtotal, tax, total, status, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sess.ID, lineItems, sess.BuyerEmail, sess.Currency,
		sess.Totals.Subtotal, sess.Totals.Tax, sess.Totals.Total,
		string(sess.Status), sess.Version, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, line_items, buyer_email, currency, subtotal, tax, total, status,
		       mandate, user_authorization, receipt, challenge_id, version, created_at, updated_at
		FROM checkout_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (s *SessionStore) FindByMandateID(ctx context.Context, mandateID string) (*domain.CheckoutSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, line_items, buyer_email, currency, subtotal, tax, total, status,
		       mandate, user_authorization, receipt, challenge_id, version, created_at, updated_at
		FROM checkout_sessions WHERE mandate->>'payment_mandate_contents' IS NOT NULL
		  AND mandate->'payment_mandate_contents'->>'payment_mandate_id' = $1`, mandateID)
	return scanSession(row)
}

func scanSession(row pgx.Row) (*domain.CheckoutSession, error) {
	var (
		sess          domain.CheckoutSession
		lineItems     []byte
		mandateBytes  []byte
		receiptBytes  []byte
		status        string
	)
	err := row.Scan(
		&sess.ID, &lineItems, &sess.BuyerEmail, &sess.Currency,
		&sess.Totals.Subtotal, &sess.Totals.Tax, &sess.Totals.Total, &status,
		&mandateBytes, &sess.UserAuthorization, &receiptBytes, &sess.ChallengeID,
		&sess.Version, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}
	sess.Status = domain.Status(status)

	if err := json.Unmarshal(lineItems, &sess.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	if len(mandateBytes) > 0 {
		var m ap2.PaymentMandate
		if err := json.Unmarshal(mandateBytes, &m); err != nil {
			return nil, fmt.Errorf("unmarshal mandate: %w", err)
		}
		sess.Mandate = &m
	}
	if len(receiptBytes) > 0 {
		var r domain.PaymentReceipt
		if err := json.Unmarshal(receiptBytes, &r); err != nil {
			return nil, fmt.Errorf("unmarshal receipt: %w", err)
		}
		sess.Receipt = &r
	}
	return &sess, nil
}

// CompareAndSwap persists sess only if the row's stored version still
// equals expectedVersion, in a single UPDATE ... WHERE version = $N
// statement — the optimistic-concurrency discipline the spec's Design
// Notes §9 calls out as the alternative to a per-session lock.
func (s *SessionStore) CompareAndSwap(ctx context.Context, sess *domain.CheckoutSession, expectedVersion int64) error {
	var mandateBytes, receiptBytes []byte
	var err error
	if sess.Mandate != nil {
		mandateBytes, err = json.Marshal(sess.Mandate)
		if err != nil {
			return fmt.Errorf("marshal mandate: %w", err)
		}
	}
	if sess.Receipt != nil {
		receiptBytes, err = json.Marshal(sess.Receipt)
		if err != nil {
			return fmt.Errorf("marshal receipt: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE checkout_sessions
		SET status = $1, mandate = $2, user_authorization = $3, receipt = $4,
		    challenge_id = $5, version = $6, updated_at = $7
		WHERE id = $8 AND version = $9`,
		string(sess.Status), mandateBytes, sess.UserAuthorization, receiptBytes,
		sess.ChallengeID, expectedVersion+1, time.Now().UTC(),
		sess.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

func (s *SessionStore) ListExpired(ctx context.Context, olderThan time.Time) ([]*domain.CheckoutSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, line_items, buyer_email, currency, subtotal, tax, total, status,
		       mandate, user_authorization, receipt, challenge_id, version, created_at, updated_at
		FROM checkout_sessions
		WHERE status IN ('ready_for_complete', 'requires_escalation') AND updated_at < $1`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.CheckoutSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
