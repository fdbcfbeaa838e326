// Package checkout is the Merchant's Checkout Session Manager: the §4.1
// state machine, wired to the AP2 Merchant Agent on Complete. It is the
// single place that mutates a CheckoutSession, and it serializes every
// mutation through SessionStore.CompareAndSwap with retry, per Design
// Notes §9 and the §5 concurrency rules.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/ap2agent"
	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"
	"ucp-ap2-commerce/pkg/apperror"

	"github.com/google/uuid"
)

const maxCASRetries = 8

// mandateTotalTolerance is the floating-point tolerance §4.1 Update
// allows between a mandate's total and the session's computed total.
const mandateTotalTolerance = 1e-6

// Service implements the four Checkout Session Manager operations.
type Service struct {
	sessions       ports.SessionStore
	catalog        ports.ProductCatalog
	agent          *ap2agent.Agent
	challengeStore ports.ChallengeStore
	checkCatalog   bool
	taxRate        float64
	inactivityTTL  time.Duration
	now            func() time.Time
	newID          func() string
}

// Option configures a Service at construction.
type Option func(*Service)

// WithCatalogCheck enables rejecting Create line items whose SKU is not
// present in the product catalog.
func WithCatalogCheck(enabled bool) Option {
	return func(s *Service) { s.checkCatalog = enabled }
}

// WithTaxRate sets the pluggable flat tax rate applied to subtotal;
// default is 0 per §4.1.
func WithTaxRate(rate float64) Option {
	return func(s *Service) { s.taxRate = rate }
}

// WithInactivityTTL overrides the default 5-minute §5 inactivity expiry.
func WithInactivityTTL(ttl time.Duration) Option {
	return func(s *Service) { s.inactivityTTL = ttl }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides session id generation, for deterministic tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithChallengeStore wires the step-up challenge persistence the agent's
// issued challenges are stored to; required before Complete can escalate.
func WithChallengeStore(store ports.ChallengeStore) Option {
	return func(s *Service) { s.challengeStore = store }
}

// New builds a checkout Service.
func New(sessions ports.SessionStore, catalog ports.ProductCatalog, agent *ap2agent.Agent, opts ...Option) *Service {
	s := &Service{
		sessions:      sessions,
		catalog:       catalog,
		agent:         agent,
		inactivityTTL: 5 * time.Minute,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the validated payload for Create.
type CreateInput struct {
	LineItems  []domain.LineItem
	BuyerEmail string
	Currency   string
}

// Create opens a new session in state incomplete with computed totals.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.CheckoutSession, error) {
	if len(in.LineItems) == 0 {
		return nil, apperror.ErrInvalidInput("cart must contain at least one line item")
	}
	for _, item := range in.LineItems {
		if item.Quantity <= 0 {
			return nil, apperror.ErrInvalidInput(fmt.Sprintf("line item %s: quantity must be positive", item.SKU))
		}
		if item.UnitPrice < 0 {
			return nil, apperror.ErrInvalidInput(fmt.Sprintf("line item %s: unit price must be non-negative", item.SKU))
		}
		if s.checkCatalog && s.catalog != nil {
			ok, err := s.catalog.Exists(ctx, item.SKU)
			if err != nil {
				return nil, apperror.ErrUpstreamUnavailable(err)
			}
			if !ok {
				return nil, apperror.ErrInvalidInput(fmt.Sprintf("unknown sku %s", item.SKU))
			}
		}
	}

	subtotal := 0.0
	for _, item := range in.LineItems {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}
	tax := subtotal * s.taxRate
	total := subtotal + tax

	now := s.now()
	sess := &domain.CheckoutSession{
		ID:         s.newID(),
		LineItems:  in.LineItems,
		BuyerEmail: in.BuyerEmail,
		Currency:   in.Currency,
		Totals:     domain.Totals{Subtotal: round2(subtotal), Tax: round2(tax), Total: round2(total)},
		Status:     domain.StatusIncomplete,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, apperror.InternalError(err)
	}
	return sess, nil
}

// Get returns the current snapshot of a session.
func (s *Service) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperror.ErrNotFound("checkout session")
		}
		return nil, apperror.InternalError(err)
	}
	return sess, nil
}

// Update attaches an AP2 mandate to a session, §4.1. Permitted from
// incomplete, ready_for_complete, or requires_escalation; always lands in
// ready_for_complete and resets any active challenge.
func (s *Service) Update(ctx context.Context, id string, mandate *ap2.PaymentMandate) (*domain.CheckoutSession, error) {
	return s.transact(ctx, id, func(sess *domain.CheckoutSession) error {
		if sess.Status.IsTerminal() {
			return apperror.ErrInvalidState(fmt.Sprintf("session is %s and cannot be updated", sess.Status))
		}

		contents := mandate.PaymentMandateContents

		if sess.Mandate != nil && sess.Mandate.PaymentMandateContents.PaymentMandateID == contents.PaymentMandateID {
			if mandatesIdentical(sess.Mandate, mandate) {
				return nil // idempotent no-op, §5 Update idempotency
			}
			return apperror.ErrMandateSessionMismatch("mandate id already attached with different contents")
		}

		if existing, err := s.sessions.FindByMandateID(ctx, contents.PaymentMandateID); err == nil && existing.ID != sess.ID {
			return apperror.ErrMandateSessionMismatch("mandate id already attached to another session")
		} else if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return apperror.InternalError(err)
		}

		if contents.PaymentDetailsTotal.Amount.Currency != sess.Currency {
			return apperror.ErrMandateSessionMismatch("mandate currency does not match session currency")
		}
		if math.Abs(contents.PaymentDetailsTotal.Amount.Value-sess.Totals.Total) > mandateTotalTolerance {
			return apperror.ErrMandateSessionMismatch("mandate total does not match session total")
		}
		if contents.PaymentResponse.PayerEmail != sess.BuyerEmail {
			return apperror.ErrMandateSessionMismatch("mandate payer email does not match buyer email")
		}
		if err := ap2.ValidateMandateIntegrity(mandate); err != nil {
			return apperror.ErrMalformedMandate(err.Error())
		}

		sess.Mandate = mandate
		sess.UserAuthorization = mandate.UserAuthorization
		sess.ChallengeID = ""
		sess.Status = domain.StatusReadyForComplete
		return nil
	})
}

func mandatesIdentical(a, b *ap2.PaymentMandate) bool {
	da, errA := ap2.CanonicalDigest(a.PaymentMandateContents)
	db, errB := ap2.CanonicalDigest(b.PaymentMandateContents)
	if errA != nil || errB != nil {
		return false
	}
	return string(da) == string(db) && a.UserAuthorization == b.UserAuthorization
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// transact loads the session, applies fn, and persists the result via
// compare-and-swap with retry on version conflict — the optimistic
// alternative to a per-session lock that Design Notes §9 calls out, and
// the mechanism by which two concurrent Completes on the same session
// resolve to exactly one winner (§5).
func (s *Service) transact(ctx context.Context, id string, fn func(sess *domain.CheckoutSession) error) (*domain.CheckoutSession, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		sess, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return nil, apperror.ErrNotFound("checkout session")
			}
			return nil, apperror.InternalError(err)
		}

		expectedVersion := sess.Version
		if err := fn(sess); err != nil {
			return nil, err
		}
		sess.UpdatedAt = s.now()

		if err := s.sessions.CompareAndSwap(ctx, sess, expectedVersion); err != nil {
			if errors.Is(err, ports.ErrVersionConflict) {
				continue
			}
			return nil, apperror.InternalError(err)
		}
		sess.Version = expectedVersion + 1
		return sess, nil
	}
	return nil, apperror.InternalError(fmt.Errorf("exceeded %d compare-and-swap retries for session %s", maxCASRetries, id))
}
