// Package ap2agent is the Merchant's AP2 Merchant Agent: signature
// verification, mandate-integrity checks, risk adjudication, step-up
// issuance/verification, and receipt issuance, per spec §4.2.
package ap2agent

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"
	"ucp-ap2-commerce/pkg/apperror"

	"github.com/google/uuid"
)

// DeviceKeyResolver resolves the ed25519 public key bound to the
// user/device that signed a mandate's user_authorization, given the
// payer email carried in the mandate's payment_response. KeyRegistry is
// the implementation wired in this module; it holds the keys registered
// through the Merchant's device-key hand-off endpoint.
type DeviceKeyResolver interface {
	ResolveKey(ctx context.Context, payerEmail string) (ed25519.PublicKey, error)
}

// Agent implements the §4.2 responsibilities of the AP2 Merchant Agent.
type Agent struct {
	keys     DeviceKeyResolver
	signer   ports.ReceiptSigner
	stepUp   StepUpPolicy
	now      func() time.Time
	newID    func() string
}

// StepUpPolicy is the risk-adjudication configuration, §4.2 step 3.
type StepUpPolicy struct {
	Enabled         bool
	ThresholdSmall  float64
	ThresholdLarge  float64
	AmountThreshold float64
	DemoMode        bool
	ChallengeTTL    time.Duration
	MaxAttempts     int
	MerchantID      string
}

// New builds an Agent.
func New(keys DeviceKeyResolver, signer ports.ReceiptSigner, policy StepUpPolicy) *Agent {
	return &Agent{
		keys:   keys,
		signer: signer,
		stepUp: policy,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// SetClock overrides the time source, for deterministic tests.
func (a *Agent) SetClock(now func() time.Time) { a.now = now }

// SetIDGenerator overrides id generation, for deterministic tests.
func (a *Agent) SetIDGenerator(newID func() string) { a.newID = newID }

// ValidateSignature verifies the device-bound asymmetric signature over
// the mandate's canonical digest, §4.2 step 1. Any failure — wrong key,
// malformed base64, digest mismatch — collapses to INVALID_AUTHORIZATION
// so a caller cannot distinguish "which check failed" and retry-probe the
// verification logic.
func (a *Agent) ValidateSignature(ctx context.Context, m *ap2.PaymentMandate) error {
	key, err := a.keys.ResolveKey(ctx, m.PaymentMandateContents.PaymentResponse.PayerEmail)
	if err != nil {
		return apperror.ErrInvalidAuthorization()
	}

	sig, err := ap2.DecodeB64(m.UserAuthorization)
	if err != nil {
		return apperror.ErrInvalidAuthorization()
	}

	digest, err := ap2.CanonicalDigest(m.PaymentMandateContents)
	if err != nil {
		return apperror.ErrInvalidAuthorization()
	}

	if len(key) != ed25519.PublicKeySize || !ed25519.Verify(key, digest, sig) {
		return apperror.ErrInvalidAuthorization()
	}
	return nil
}

// ValidateIntegrity re-checks the mandate's structural invariants (token
// shape, cryptogram shape, card metadata, recomputed total), §4.2 step 2.
func (a *Agent) ValidateIntegrity(m *ap2.PaymentMandate, expectedTotal ap2.PaymentCurrencyAmount) error {
	if err := ap2.ValidateMandateIntegrity(m); err != nil {
		return apperror.ErrMalformedMandate(err.Error())
	}

	got := m.PaymentMandateContents.PaymentDetailsTotal.Amount
	if got.Currency != expectedTotal.Currency {
		return apperror.ErrMalformedMandate("mandate currency does not match session total")
	}
	if !amountsEqual(got.Value, expectedTotal.Value) {
		return apperror.ErrMalformedMandate("mandate total does not match session total")
	}
	return nil
}

func amountsEqual(a, b float64) bool {
	const epsilon = 0.005 // half a cent; totals are already 2dp
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < epsilon
}

// IssueChallenge creates a new StepUpChallenge when risk adjudication
// (risk.go) decides escalation is required, §4.2 step 3. In demo mode no
// code is generated — VerifyOTP accepts any syntactically valid 6-digit
// code, per the spec's own demo carve-out — so CodeHash stays empty and
// the returned code is "". Outside demo mode a fresh code is generated
// and only its Argon2id hash is stored on the challenge; the plaintext
// code is returned for the caller to deliver (there is no real SMS/push
// gateway in this demonstrator, so the OTP envelope itself is the
// delivery channel, §4.2 step 4's Open Question in DESIGN.md).
func (a *Agent) IssueChallenge(mandateID string) (*domain.StepUpChallenge, string, error) {
	now := a.now()
	challenge := &domain.StepUpChallenge{
		ID:          a.newID(),
		MandateID:   mandateID,
		Method:      "otp",
		Status:      "pending",
		Attempts:    0,
		MaxAttempts: a.stepUp.MaxAttempts,
		ExpiresAt:   now.Add(a.stepUp.ChallengeTTL),
		CreatedAt:   now,
	}

	if a.stepUp.DemoMode {
		return challenge, "", nil
	}

	code, err := generateOTPCode()
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("generating step-up code: %w", err))
	}
	hash, err := hashOTP(code)
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("hashing step-up code: %w", err))
	}
	challenge.CodeHash = hash
	return challenge, code, nil
}

// VerifyOTP checks a submitted one-time code against an active
// challenge, §4.2 step 4. In demo mode any syntactically valid 6-digit
// code is accepted — the spec's own carve-out for a protocol
// demonstrator that has no real OTP delivery channel.
func (a *Agent) VerifyOTP(challenge *domain.StepUpChallenge, code string) error {
	if challenge.Expired(a.now()) {
		return apperror.ErrChallengeExpired()
	}
	if challenge.Exhausted() {
		return apperror.ErrChallengeExhausted()
	}
	if !otp6Pattern.MatchString(code) {
		return apperror.ErrInvalidOTP()
	}
	if a.stepUp.DemoMode {
		return nil
	}
	if challenge.CodeHash == "" || !verifyOTPHash(code, challenge.CodeHash) {
		return apperror.ErrInvalidOTP()
	}
	return nil
}

// IssueReceipt produces the Merchant's terminal statement about a
// payment attempt, §4.2 step 5 / §3.
func (a *Agent) IssueReceipt(ctx context.Context, mandateID string, amount ap2.PaymentCurrencyAmount, status, message string) (*domain.PaymentReceipt, error) {
	receipt := &domain.PaymentReceipt{
		MandateID:              mandateID,
		PaymentID:              a.newID(),
		Amount:                 amount,
		StatusCode:             status,
		StatusMessage:          message,
		MerchantConfirmationID: fmt.Sprintf("conf_%s", a.newID()),
		IssuedAt:               a.now(),
	}

	if a.signer != nil {
		sig, err := a.signer.Sign(ctx, receipt)
		if err != nil {
			return nil, apperror.ErrUpstreamUnavailable(err)
		}
		receipt.MerchantSignature = sig
	}
	return receipt, nil
}
