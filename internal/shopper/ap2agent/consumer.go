// Package ap2agent is the Shopper's AP2 Consumer Agent: mandate
// assembly and device-signature attachment, per spec §4.4.
package ap2agent

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/pkg/apperror"

	"github.com/google/uuid"
)

// ConsumerAgent assembles an unsigned mandate bound to a session total
// and instrument, then attaches a device-bound signature over its
// canonical digest.
type ConsumerAgent struct {
	provider *credentials.Provider
	now      func() time.Time
	newID    func() string
}

// New builds a ConsumerAgent.
func New(provider *credentials.Provider) *ConsumerAgent {
	return &ConsumerAgent{
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// SetClock overrides the time source, for deterministic tests.
func (a *ConsumerAgent) SetClock(now func() time.Time) { a.now = now }

// SetIDGenerator overrides id generation, for deterministic tests.
func (a *ConsumerAgent) SetIDGenerator(newID func() string) { a.newID = newID }

// AssembleInput carries everything needed to build a mandate's contents,
// §4.4.
type AssembleInput struct {
	SessionID     string
	Total         ap2.PaymentCurrencyAmount
	PayerEmail    string
	PayerName     string
	MerchantAgent string
	Instrument    *domain.PaymentInstrument
}

// Assemble produces unsigned PaymentMandateContents: a new mandate id,
// the current UTC timestamp, a freshly generated per-transaction
// token/cryptogram (or the instrument's network token if tokenized),
// and the supplied total/payer/merchant-agent fields, §4.4.
func (a *ConsumerAgent) Assemble(in AssembleInput) (ap2.PaymentMandateContents, error) {
	token := in.Instrument.NetworkToken
	if !in.Instrument.IsTokenized {
		t, err := randomNumericToken(16)
		if err != nil {
			return ap2.PaymentMandateContents{}, fmt.Errorf("generating payment token: %w", err)
		}
		token = t
	}

	cryptogram, err := randomHexCryptogram(32)
	if err != nil {
		return ap2.PaymentMandateContents{}, fmt.Errorf("generating cryptogram: %w", err)
	}

	contents := ap2.PaymentMandateContents{
		PaymentMandateID: a.newID(),
		Timestamp:        a.now(),
		PaymentDetailsID: in.SessionID,
		PaymentDetailsTotal: ap2.PaymentItem{
			Label:  "total",
			Amount: in.Total,
		},
		PaymentResponse: ap2.PaymentResponse{
			RequestID:  a.newID(),
			MethodName: "card",
			Details: ap2.PaymentMethodDetails{
				Token:        token,
				Cryptogram:   cryptogram,
				CardLastFour: in.Instrument.LastFour,
				CardNetwork:  in.Instrument.Network,
			},
			PayerEmail: in.PayerEmail,
			PayerName:  in.PayerName,
		},
		MerchantAgent: in.MerchantAgent,
	}
	return contents, nil
}

// Sign issues a fresh local authentication challenge, has the device
// produce and locally verify an assertion over (challenge, origin,
// digest), and — only once that passes — has the device sign the
// canonical digest itself, the bytes that become user_authorization,
// §4.4.
func (a *ConsumerAgent) Sign(ctx context.Context, payerEmail, origin string, contents ap2.PaymentMandateContents) (*ap2.PaymentMandate, error) {
	digest, err := ap2.CanonicalDigest(contents)
	if err != nil {
		return nil, apperror.ErrMalformedMandate(err.Error())
	}

	challenge, err := a.provider.IssueChallenge()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if _, err := a.provider.Authenticate(ctx, payerEmail, challenge, origin, digest); err != nil {
		return nil, err
	}

	sig, err := a.provider.SignMandateDigest(ctx, payerEmail, digest)
	if err != nil {
		return nil, err
	}

	return &ap2.PaymentMandate{
		PaymentMandateContents: contents,
		UserAuthorization:      ap2.EncodeB64(sig),
	}, nil
}

func randomNumericToken(digits int) (string, error) {
	var sb strings.Builder
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

func randomHexCryptogram(hexChars int) (string, error) {
	const hexDigits = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < hexChars; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(16))
		if err != nil {
			return "", err
		}
		sb.WriteByte(hexDigits[n.Int64()])
	}
	return sb.String(), nil
}
