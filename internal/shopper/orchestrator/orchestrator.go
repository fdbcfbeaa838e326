// Package orchestrator implements the Shopper's Checkout Orchestrator
// (§4.3): the single component on S that mutates mandate/session state,
// driving prepare -> confirm -> (optional) submit_otp for one purchase.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/shopper/ap2agent"
	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/discovery"
	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"
	"ucp-ap2-commerce/internal/shopper/ucpclient"
	"ucp-ap2-commerce/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator drives one purchase end to end.
type Orchestrator struct {
	client     *ucpclient.Client
	discovery  *discovery.Consumer
	consumer   *ap2agent.ConsumerAgent
	provider   *credentials.Provider
	mandates  ports.MandateStore
	tokenizer ports.TokenizationAdapter // optional; nil disables step-up probing
	log       zerolog.Logger
}

// New builds an Orchestrator.
func New(client *ucpclient.Client, disco *discovery.Consumer, consumer *ap2agent.ConsumerAgent, provider *credentials.Provider, mandates ports.MandateStore, tokenizer ports.TokenizationAdapter, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		discovery: disco,
		consumer:  consumer,
		provider:  provider,
		mandates:  mandates,
		tokenizer: tokenizer,
		log:       log,
	}
}

// CardView is the non-sensitive instrument summary shown back to a caller
// during prepare, §4.3.
type CardView struct {
	InstrumentID string
	LastFour     string
	Network      string
}

// RegisterDeviceKey hands a newly enrolled device's public key to the
// Merchant so its AP2 Merchant Agent has a key on file to verify this
// payer's mandate signatures against at Complete, §4.2 step 1. Enrollment
// on S is not complete until this succeeds: without it, every later
// Complete for this user would fail signature verification.
func (o *Orchestrator) RegisterDeviceKey(ctx context.Context, userEmail string, publicKey []byte) error {
	if err := o.client.RegisterDeviceKey(ctx, ucpclient.RegisterDeviceKeyRequest{
		PayerEmail: userEmail,
		PublicKey:  ap2.EncodeB64(publicKey),
	}); err != nil {
		return fmt.Errorf("registering device key with merchant: %w", err)
	}
	return nil
}

// PrepareResult is returned by Prepare.
type PrepareResult struct {
	SessionID        string
	UnsignedContents ap2.PaymentMandateContents
	Card             CardView
}

// Prepare opens a session on the Merchant, assembles an unsigned mandate
// bound to the session total and the user's default instrument, and
// records the in-flight state, §4.3.
func (o *Orchestrator) Prepare(ctx context.Context, lineItems []ucpclient.LineItem, currency, userEmail string) (*PrepareResult, error) {
	sess, err := o.client.CreateSession(ctx, ucpclient.CreateSessionRequest{
		LineItems:  lineItems,
		BuyerEmail: userEmail,
		Currency:   currency,
	})
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}

	instrument, err := o.provider.DefaultInstrument(ctx, userEmail)
	if err != nil {
		return nil, err
	}

	merchantAgentID, err := o.discovery.MerchantAgentID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving merchant agent id: %w", err)
	}

	total := ap2.PaymentCurrencyAmount{Currency: sess.Currency, Value: sess.Totals.Total}
	contents, err := o.consumer.Assemble(ap2agent.AssembleInput{
		SessionID:     sess.ID,
		Total:         total,
		PayerEmail:    userEmail,
		MerchantAgent: merchantAgentID,
		Instrument:    instrument,
	})
	if err != nil {
		return nil, fmt.Errorf("assembling mandate: %w", err)
	}

	now := time.Now().UTC()
	mandate := &domain.InFlightMandate{
		SessionID:    sess.ID,
		InstrumentID: instrument.ID,
		UserEmail:    userEmail,
		MandateID:    contents.PaymentMandateID,
		Status:       domain.MandateStatusPrepared,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.mandates.Create(ctx, mandate); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("recording in-flight mandate: %w", err))
	}

	return &PrepareResult{
		SessionID:        sess.ID,
		UnsignedContents: contents,
		Card:             CardView{InstrumentID: instrument.ID, LastFour: instrument.LastFour, Network: instrument.Network},
	}, nil
}

// ConfirmResult is the tri-state outcome Confirm and SubmitOTP surface,
// §4.3.
type ConfirmResult struct {
	Outcome   string // "success" | "otp_required" | "failed"
	Receipt   *ucpclient.Receipt
	Challenge *ucpclient.OTPChallenge
	Err       error
}

// Confirm attaches the signed mandate via Update, then calls Complete,
// surfacing the Merchant's three outcomes. A repeated Confirm for a
// session already complete returns the cached receipt without
// re-signing, §4.3.
func (o *Orchestrator) Confirm(ctx context.Context, sessionID, origin string, contents ap2.PaymentMandateContents) (*ConfirmResult, error) {
	record, err := o.mandates.GetBySessionID(ctx, sessionID)
	if err != nil {
		if err == ports.ErrNotFound {
			return nil, apperror.ErrNotFound("in-flight mandate")
		}
		return nil, apperror.InternalError(fmt.Errorf("lookup in-flight mandate: %w", err))
	}

	if record.Status == domain.MandateStatusComplete && record.ReceiptJSON != "" {
		var receipt ucpclient.Receipt
		if err := json.Unmarshal([]byte(record.ReceiptJSON), &receipt); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("decoding cached receipt: %w", err))
		}
		return &ConfirmResult{Outcome: "success", Receipt: &receipt}, nil
	}

	if o.tokenizer != nil {
		instrument, err := o.provider.DefaultInstrument(ctx, record.UserEmail)
		if err == nil && instrument.IsTokenized {
			auth, err := o.tokenizer.Authenticate(ctx, ports.AuthenticateRequest{
				NetworkToken:  instrument.NetworkToken,
				Amount:        contents.PaymentDetailsTotal.Amount.Value,
				Currency:      contents.PaymentDetailsTotal.Amount.Currency,
				MerchantID:    contents.MerchantAgent,
				TransactionID: uuid.NewString(),
			})
			if err != nil {
				o.log.Warn().Err(err).Str("session_id", sessionID).Msg("network authenticate failed, proceeding without network step-up")
			} else if auth.Outcome == "declined" {
				record.Status = domain.MandateStatusFailed
				record.UpdatedAt = time.Now().UTC()
				_ = o.mandates.Update(ctx, record)
				return &ConfirmResult{Outcome: "failed", Err: fmt.Errorf("network declined: %s", auth.Message)}, nil
			}
			// "required" with a challenge descriptor is left to a richer
			// client flow; this demonstrator proceeds to M's own OTP
			// step-up, which subsumes it for the purpose of this contract.
		}
	}

	mandate, err := o.consumer.Sign(ctx, record.UserEmail, origin, contents)
	if err != nil {
		return nil, err
	}

	sess, err := o.client.UpdateSession(ctx, sessionID, ucpclient.UpdateSessionRequest{
		PaymentMandateContents: mandate.PaymentMandateContents,
		UserAuthorization:      mandate.UserAuthorization,
	})
	if err != nil {
		return nil, fmt.Errorf("updating checkout session: %w", err)
	}

	record.Status = domain.MandateStatusSigned
	if digest, err := ap2.CanonicalDigest(mandate.PaymentMandateContents); err == nil {
		sum := sha256.Sum256(digest)
		record.CanonicalHash = hex.EncodeToString(sum[:])
	}
	record.UpdatedAt = time.Now().UTC()
	if err := o.mandates.Update(ctx, record); err != nil {
		o.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist signed mandate state")
	}

	completed, err := o.client.CompleteSession(ctx, sessionID, "")
	if err != nil {
		return nil, fmt.Errorf("completing checkout session: %w", err)
	}
	return o.settle(ctx, record, sess.Status, completed)
}

// SubmitOTP retries Complete with a user-entered one-time code, §4.3.
func (o *Orchestrator) SubmitOTP(ctx context.Context, sessionID, code string) (*ConfirmResult, error) {
	record, err := o.mandates.GetBySessionID(ctx, sessionID)
	if err != nil {
		if err == ports.ErrNotFound {
			return nil, apperror.ErrNotFound("in-flight mandate")
		}
		return nil, apperror.InternalError(fmt.Errorf("lookup in-flight mandate: %w", err))
	}

	completed, err := o.client.CompleteSession(ctx, sessionID, code)
	if err != nil {
		return nil, fmt.Errorf("submitting otp: %w", err)
	}
	return o.settle(ctx, record, completed.Status, completed)
}

func (o *Orchestrator) settle(ctx context.Context, record *domain.InFlightMandate, preCompleteStatus string, completed *ucpclient.Session) (*ConfirmResult, error) {
	switch completed.Status {
	case "complete":
		receiptJSON, err := json.Marshal(completed.Receipt)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("encoding receipt: %w", err))
		}
		record.Status = domain.MandateStatusComplete
		record.ReceiptJSON = string(receiptJSON)
		record.UpdatedAt = time.Now().UTC()
		if err := o.mandates.Update(ctx, record); err != nil {
			o.log.Warn().Err(err).Str("session_id", record.SessionID).Msg("failed to persist completed mandate state")
		}
		return &ConfirmResult{Outcome: "success", Receipt: completed.Receipt}, nil

	case "requires_escalation":
		var challenge *ucpclient.OTPChallenge
		if completed.Receipt != nil {
			challenge = completed.Receipt.OTPChallenge
		}
		return &ConfirmResult{Outcome: "otp_required", Challenge: challenge}, nil

	default:
		record.Status = domain.MandateStatusFailed
		record.UpdatedAt = time.Now().UTC()
		if err := o.mandates.Update(ctx, record); err != nil {
			o.log.Warn().Err(err).Str("session_id", record.SessionID).Msg("failed to persist failed mandate state")
		}
		var failErr error
		if completed.Receipt != nil {
			failErr = fmt.Errorf("%s: %s", completed.Receipt.StatusCode, completed.Receipt.StatusMessage)
		} else {
			failErr = fmt.Errorf("checkout session failed with status %s", completed.Status)
		}
		return &ConfirmResult{Outcome: "failed", Err: failErr}, nil
	}
}
