// Package credentials implements the Shopper's Credentials Provider
// (§4.4): user enrollment, device-credential challenge-response, and
// payment-instrument storage with PAN encryption at rest.
package credentials

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"
	"ucp-ap2-commerce/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Provider is the Shopper's AP2 Consumer Agent's credentials half: it
// owns enrollment and assertion verification, but never mandate
// assembly (that is ap2agent.ConsumerAgent).
type Provider struct {
	users       ports.UserStore
	credentials ports.CredentialStore
	instruments ports.InstrumentStore
	tokenizer   ports.TokenizationAdapter // optional, may be a tokenization.NoopAdapter
	cipher      *PANCipher
	vault       *DeviceKeyVault
	log         zerolog.Logger
}

// New builds a Provider.
func New(users ports.UserStore, credentials ports.CredentialStore, instruments ports.InstrumentStore, tokenizer ports.TokenizationAdapter, cipher *PANCipher, vault *DeviceKeyVault, log zerolog.Logger) *Provider {
	return &Provider{
		users:       users,
		credentials: credentials,
		instruments: instruments,
		tokenizer:   tokenizer,
		cipher:      cipher,
		vault:       vault,
		log:         log,
	}
}

// EnrollUser creates a new User. Email is case-folded per §3.
func (p *Provider) EnrollUser(ctx context.Context, email, displayName string) (*domain.User, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()
	u := &domain.User{Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	if err := p.users.Create(ctx, u); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}
	return u, nil
}

// EnrollDevice registers a device-bound credential for userEmail by
// challenge-response: a random challenge is generated, the device (the
// in-memory vault standing in for a real authenticator) signs it, and
// the assertion is verified before the credential is persisted, §4.4.
func (p *Provider) EnrollDevice(ctx context.Context, userEmail string) (*domain.DeviceCredential, error) {
	userEmail = normalizeEmail(userEmail)

	pub, err := p.vault.Generate(userEmail)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate device key: %w", err))
	}

	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate enrollment challenge: %w", err))
	}
	attestation, err := p.vault.Sign(userEmail, challenge)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sign enrollment challenge: %w", err))
	}
	if !ed25519.Verify(pub, challenge, attestation) {
		return nil, apperror.ErrInvalidAuthorization()
	}

	challengeHash, err := hashEnrollmentChallenge(challenge)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash enrollment challenge: %w", err))
	}

	cred := &domain.DeviceCredential{
		ID:                      uuid.NewString(),
		UserEmail:               userEmail,
		PublicKey:               pub,
		Counter:                 0,
		CreatedAt:               time.Now().UTC(),
		EnrollmentChallengeHash: challengeHash,
	}
	if err := p.credentials.Create(ctx, cred); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create device credential: %w", err))
	}
	return cred, nil
}

// EnrollInstrumentInput is the plaintext card detail supplied at
// enrollment time; the PAN never persists in cleartext, §4.4.
type EnrollInstrumentInput struct {
	PAN         string
	Network     string
	ExpiryMonth int
	ExpiryYear  int
	MakeDefault bool
}

// EnrollInstrument encrypts and stores a card-on-file, optionally calling
// the Network Tokenization Adapter. Tokenization failures are never
// fatal to enrollment: S logs the error and continues with an
// untokenized instrument, §4.5.
func (p *Provider) EnrollInstrument(ctx context.Context, userEmail string, in EnrollInstrumentInput) (*domain.PaymentInstrument, error) {
	userEmail = normalizeEmail(userEmail)
	if len(in.PAN) < 4 {
		return nil, apperror.ErrInvalidInput("pan too short")
	}

	encPAN, err := p.cipher.Encrypt(in.PAN)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt pan: %w", err))
	}

	inst := &domain.PaymentInstrument{
		ID:           uuid.NewString(),
		UserEmail:    userEmail,
		EncryptedPAN: encPAN,
		LastFour:     in.PAN[len(in.PAN)-4:],
		Network:      in.Network,
		ExpiryMonth:  in.ExpiryMonth,
		ExpiryYear:   in.ExpiryYear,
		IsDefault:    in.MakeDefault,
		CreatedAt:    time.Now().UTC(),
	}

	if p.tokenizer != nil {
		result, err := p.tokenizer.Tokenize(ctx, in.PAN, in.ExpiryMonth, in.ExpiryYear)
		if err != nil {
			p.log.Warn().Err(err).Str("user_email", userEmail).Msg("tokenization failed, continuing untokenized")
		} else {
			now := time.Now().UTC()
			inst.IsTokenized = true
			inst.NetworkToken = result.NetworkToken
			inst.TokenReference = result.TokenReference
			inst.TokenAssurance = result.Assurance
			inst.TokenizedAt = &now
		}
	}

	if err := p.instruments.Create(ctx, inst); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create instrument: %w", err))
	}
	return inst, nil
}

// IssueChallenge generates a fresh 32-byte random authentication
// challenge, §4.4.
func (p *Provider) IssueChallenge() ([]byte, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("generate auth challenge: %w", err)
	}
	return challenge, nil
}

// Authenticate has the device produce an assertion over
// (challenge, origin, mandateDigest) and verifies it locally before
// returning it for attachment to the outgoing Update, §4.4.
func (p *Provider) Authenticate(ctx context.Context, userEmail string, challenge []byte, origin string, mandateDigest []byte) ([]byte, error) {
	userEmail = normalizeEmail(userEmail)

	cred, err := p.credentials.GetDefaultForUser(ctx, userEmail)
	if err != nil {
		if err == ports.ErrNotFound {
			return nil, apperror.ErrNotFound("device credential")
		}
		return nil, apperror.InternalError(fmt.Errorf("lookup device credential: %w", err))
	}

	msg := assertionMessage(challenge, origin, mandateDigest)
	assertion, err := p.vault.Sign(userEmail, msg)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sign assertion: %w", err))
	}
	if !ed25519.Verify(ed25519.PublicKey(cred.PublicKey), msg, assertion) {
		return nil, apperror.ErrInvalidAuthorization()
	}
	if _, err := p.credentials.IncrementCounter(ctx, cred.ID); err != nil {
		p.log.Warn().Err(err).Str("credential_id", cred.ID).Msg("failed to increment credential counter")
	}
	return assertion, nil
}

// SignMandateDigest has the device sign a mandate's canonical digest
// directly, producing the bytes that cross to the Merchant as
// user_authorization. Called only after Authenticate has locally
// verified device liveness for this transaction, §4.4.
func (p *Provider) SignMandateDigest(ctx context.Context, userEmail string, digest []byte) ([]byte, error) {
	userEmail = normalizeEmail(userEmail)
	sig, err := p.vault.Sign(userEmail, digest)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sign mandate digest: %w", err))
	}
	return sig, nil
}

// DefaultInstrument returns userEmail's default PaymentInstrument.
func (p *Provider) DefaultInstrument(ctx context.Context, userEmail string) (*domain.PaymentInstrument, error) {
	inst, err := p.instruments.GetDefaultForUser(ctx, normalizeEmail(userEmail))
	if err != nil {
		if err == ports.ErrNotFound {
			return nil, apperror.ErrNotFound("payment instrument")
		}
		return nil, apperror.InternalError(fmt.Errorf("lookup instrument: %w", err))
	}
	return inst, nil
}

func assertionMessage(challenge []byte, origin string, mandateDigest []byte) []byte {
	var buf bytes.Buffer
	buf.Write(challenge)
	buf.WriteByte('|')
	buf.WriteString(origin)
	buf.WriteByte('|')
	buf.Write(mandateDigest)
	return buf.Bytes()
}

func normalizeEmail(email string) string {
	return strings.ToLower(email)
}
