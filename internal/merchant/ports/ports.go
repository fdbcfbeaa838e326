// Package ports declares the narrow interfaces the Merchant's services
// depend on, so storage and external collaborators can be swapped without
// touching business logic — the same hexagonal seam the teacher repo uses
// between internal/core/ports and internal/adapter.
package ports

import (
	"context"
	"time"

	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/ucp"
)

// ErrNotFound is returned by store lookups that find nothing. Callers map
// it to apperror.ErrNotFound at the service boundary.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

// ErrVersionConflict is returned by CompareAndSwap when the stored version
// no longer matches the caller's expectation — the CAS retry signal named
// in spec Design Notes §9.
var ErrVersionConflict = versionConflictError{}

type versionConflictError struct{}

func (versionConflictError) Error() string { return "version conflict" }

// SessionStore is the pluggable persistence seam for CheckoutSession,
// per Design Notes §9: get-by-id, create, compare-and-set with version,
// list-expired.
type SessionStore interface {
	Create(ctx context.Context, s *domain.CheckoutSession) error
	GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error)
	CompareAndSwap(ctx context.Context, s *domain.CheckoutSession, expectedVersion int64) error
	ListExpired(ctx context.Context, olderThan time.Time) ([]*domain.CheckoutSession, error)
	// FindByMandateID supports the per-mandate uniqueness rule in §5: a
	// mandate id may be attached to at most one session.
	FindByMandateID(ctx context.Context, mandateID string) (*domain.CheckoutSession, error)
}

// ChallengeStore is the pluggable persistence seam for StepUpChallenge,
// Redis-backed by default for its natural TTL fit.
type ChallengeStore interface {
	Create(ctx context.Context, c *domain.StepUpChallenge) error
	GetByID(ctx context.Context, id string) (*domain.StepUpChallenge, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	UpdateStatus(ctx context.Context, id string, status string) error
}

// ProductCatalog is the external collaborator (§1 scope) that backs
// product search and optional SKU validation on Create.
type ProductCatalog interface {
	Search(ctx context.Context, query string, limit int) ([]ucp.ProductSummary, error)
	Exists(ctx context.Context, sku string) (bool, error)
}

// ReceiptSigner is the external DID/VC signing microservice (§1 scope).
// The default implementation is a no-op passthrough.
type ReceiptSigner interface {
	Sign(ctx context.Context, receipt *domain.PaymentReceipt) (string, error)
}

// RequestLogStore persists RequestLogEntry asynchronously, §4.6.
type RequestLogStore interface {
	Append(ctx context.Context, entry *domain.RequestLogEntry) error
}

// HealthChecker is implemented by any dependency that can report
// liveness, mirroring the teacher's ports.HealthChecker.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
