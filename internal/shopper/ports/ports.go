// Package ports declares the narrow interfaces the Shopper's services
// depend on, mirroring the hexagonal seam used on the Merchant side
// between internal/core/ports and internal/adapter in the teacher repo.
package ports

import (
	"context"

	"ucp-ap2-commerce/internal/shopper/domain"
)

// ErrNotFound is returned by store lookups that find nothing.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

// UserStore persists enrolled Users.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// CredentialStore persists enrolled DeviceCredentials, keyed by user.
type CredentialStore interface {
	Create(ctx context.Context, c *domain.DeviceCredential) error
	GetDefaultForUser(ctx context.Context, userEmail string) (*domain.DeviceCredential, error)
	IncrementCounter(ctx context.Context, id string) (int64, error)
}

// InstrumentStore persists PaymentInstruments on file.
type InstrumentStore interface {
	Create(ctx context.Context, i *domain.PaymentInstrument) error
	GetByID(ctx context.Context, id string) (*domain.PaymentInstrument, error)
	GetDefaultForUser(ctx context.Context, userEmail string) (*domain.PaymentInstrument, error)
	Update(ctx context.Context, i *domain.PaymentInstrument) error
}

// MandateStore persists InFlightMandate records, one per Merchant checkout
// session id, enforcing the at-most-one-in-flight rule §4.3 names.
type MandateStore interface {
	Create(ctx context.Context, m *domain.InFlightMandate) error
	GetBySessionID(ctx context.Context, sessionID string) (*domain.InFlightMandate, error)
	Update(ctx context.Context, m *domain.InFlightMandate) error
}

// DeviceSigner produces and verifies a user's device-bound authorization
// signature over a mandate's canonical digest, standing in for the
// hardware authenticator described in §4.4.
type DeviceSigner interface {
	// Sign produces the raw signature bytes over digest for userEmail's
	// default device credential.
	Sign(ctx context.Context, userEmail string, digest []byte) ([]byte, error)
}

// TokenizationAdapter is the optional external network collaborator
// described in §4.5. A nil-safe no-op implementation is the default.
type TokenizationAdapter interface {
	// Tokenize exchanges a PAN+expiry for a network token, token
	// reference, and assurance level during enrollment.
	Tokenize(ctx context.Context, pan string, expiryMonth, expiryYear int) (TokenizeResult, error)
	// Authenticate asks the network whether step-up is required before a
	// tokenized instrument can be used in a mandate.
	Authenticate(ctx context.Context, req AuthenticateRequest) (AuthenticateResult, error)
	// Verify submits a user-entered code against a network-issued
	// challenge from a prior Authenticate call.
	Verify(ctx context.Context, challengeID, code string) (bool, error)
}

// TokenizeResult is the network's response to a Tokenize call.
type TokenizeResult struct {
	NetworkToken   string
	TokenReference string
	Assurance      string
}

// AuthenticateRequest carries the parameters the network needs to decide
// whether step-up is required for a tokenized instrument, §4.5.
type AuthenticateRequest struct {
	NetworkToken string
	Amount       float64
	Currency     string
	MerchantID   string
	TransactionID string
}

// AuthenticateResult is the network's decision: not required, required
// with a challenge descriptor, or declined.
type AuthenticateResult struct {
	Outcome     string // "not_required" | "required" | "declined"
	ChallengeID string
	Message     string
}

// HealthChecker is implemented by any dependency that can report liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
