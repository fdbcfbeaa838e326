package checkout

import (
	"context"
	"errors"
	"fmt"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"
	"ucp-ap2-commerce/pkg/apperror"
)

// Complete drives the §4.1/§4.2 Complete operation. otpCode is empty
// unless the caller is retrying a requires_escalation session.
//
// Terminal outcomes (success, or a failure the AP2 Merchant Agent
// decided) are returned as the session itself, receipt attached, with a
// nil error — the receipt IS the response, per §4.2's closing line that
// every terminal decision produces a receipt object and nothing is
// silently retried. A non-nil error means the call was rejected before
// any agent decision was reached: a bad precondition, an unknown id, or
// a retryable invalid OTP that leaves the challenge in place for another
// attempt.
func (s *Service) Complete(ctx context.Context, id string, otpCode string) (*domain.CheckoutSession, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperror.ErrNotFound("checkout session")
		}
		return nil, apperror.InternalError(err)
	}

	// Idempotence, §5 / §8 property 10: a terminal session's Complete
	// returns its existing outcome rather than recomputing anything.
	if sess.Status.IsTerminal() {
		return sess, nil
	}

	switch sess.Status {
	case domain.StatusIncomplete:
		return nil, apperror.ErrInvalidState("session has no attached mandate yet")
	case domain.StatusReadyForComplete:
		return s.completeReady(ctx, id)
	case domain.StatusRequiresEscalation:
		return s.completeEscalated(ctx, id, otpCode)
	default:
		return nil, apperror.InternalError(fmt.Errorf("unhandled session status %q", sess.Status))
	}
}

// completeReady runs the AP2 Merchant Agent's Complete responsibilities
// (§4.2 steps 1-3, 5) against a ready_for_complete session.
func (s *Service) completeReady(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return s.transact(ctx, id, func(sess *domain.CheckoutSession) error {
		if sess.Status != domain.StatusReadyForComplete {
			// A concurrent Complete already moved this session on; the
			// reloaded sess already reflects that outcome, so there is
			// nothing left to do here — CAS persists it unchanged and the
			// caller observes the real current state (§5 "exactly one
			// proceeds, the other observes the terminal state").
			return nil
		}

		if s.sessionExpired(sess) {
			return s.failWithReceipt(ctx, sess, mandateIDOf(sess), domain.ReceiptStatusFailed, "SESSION_EXPIRED: inactivity expiry")
		}

		mandateID := sess.Mandate.PaymentMandateContents.PaymentMandateID

		if err := s.agent.ValidateSignature(ctx, sess.Mandate); err != nil {
			return s.failWithReceipt(ctx, sess, mandateID, domain.ReceiptStatusFailed, "INVALID_AUTHORIZATION: signature verification failed")
		}
		if err := s.agent.ValidateIntegrity(sess.Mandate, ap2.PaymentCurrencyAmount{Currency: sess.Currency, Value: sess.Totals.Total}); err != nil {
			return s.failWithReceipt(ctx, sess, mandateID, domain.ReceiptStatusFailed, "MALFORMED_MANDATE: "+err.Error())
		}

		total := sess.Mandate.PaymentMandateContents.PaymentDetailsTotal.Amount
		if s.agent.RequiresStepUp(mandateID, total.Value) {
			challenge, code, err := s.agent.IssueChallenge(mandateID)
			if err != nil {
				return err
			}
			receipt, err := s.agent.IssueReceipt(ctx, mandateID, total, domain.ReceiptStatusOTPRequired, "OTP_REQUIRED: additional verification needed")
			if err != nil {
				return err
			}
			receipt.OTPChallenge = &domain.OTPChallengeEnvelope{
				PaymentMandateID: mandateID,
				Message:          "enter the 6-digit verification code",
				DeliveredCode:    code,
			}
			if err := s.challenges().Create(ctx, challenge); err != nil {
				return apperror.InternalError(err)
			}
			sess.ChallengeID = challenge.ID
			sess.Status = domain.StatusRequiresEscalation
			sess.Receipt = receipt
			return nil
		}

		receipt, err := s.agent.IssueReceipt(ctx, mandateID, total, domain.ReceiptStatusSuccess, "")
		if err != nil {
			return err
		}
		sess.Status = domain.StatusComplete
		sess.Receipt = receipt
		return nil
	})
}

func (s *Service) completeEscalated(ctx context.Context, id string, otpCode string) (*domain.CheckoutSession, error) {
	if otpCode == "" {
		return nil, apperror.ErrInvalidInput("otp_code is required to complete an escalated session")
	}

	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if sess.Status != domain.StatusRequiresEscalation {
		// Raced past escalation already; re-enter the generic dispatcher
		// against the now-current state.
		return s.Complete(ctx, id, otpCode)
	}

	if s.sessionExpired(sess) {
		return s.transact(ctx, id, func(sess *domain.CheckoutSession) error {
			if sess.Status != domain.StatusRequiresEscalation {
				return nil
			}
			return s.failWithReceipt(ctx, sess, mandateIDOf(sess), domain.ReceiptStatusFailed, "SESSION_EXPIRED: inactivity expiry")
		})
	}

	challenge, err := s.challenges().GetByID(ctx, sess.ChallengeID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperror.ErrNotFound("step-up challenge")
		}
		return nil, apperror.InternalError(err)
	}

	verifyErr := s.agent.VerifyOTP(challenge, otpCode)
	if verifyErr == nil {
		return s.transact(ctx, id, func(sess *domain.CheckoutSession) error {
			if sess.Status != domain.StatusRequiresEscalation {
				return nil
			}
			total := sess.Mandate.PaymentMandateContents.PaymentDetailsTotal.Amount
			mandateID := sess.Mandate.PaymentMandateContents.PaymentMandateID
			receipt, err := s.agent.IssueReceipt(ctx, mandateID, total, domain.ReceiptStatusSuccess, "")
			if err != nil {
				return err
			}
			sess.Status = domain.StatusComplete
			sess.Receipt = receipt
			return nil
		})
	}

	if appErr, ok := verifyErr.(*apperror.AppError); ok && (appErr.Kind == "CHALLENGE_EXPIRED" || appErr.Kind == "CHALLENGE_EXHAUSTED") {
		return s.transact(ctx, id, func(sess *domain.CheckoutSession) error {
			if sess.Status != domain.StatusRequiresEscalation {
				return nil
			}
			return s.failWithReceipt(ctx, sess, mandateIDOf(sess), domain.ReceiptStatusFailed, appErr.Kind+": "+appErr.Message)
		})
	}

	// Invalid code, attempts remain: increment and stay in
	// requires_escalation, the §4.1 self-loop transition. This is a
	// retryable rejection, not a terminal outcome, so it surfaces as an
	// error rather than a receipt.
	n, incErr := s.challenges().IncrementAttempts(ctx, challenge.ID)
	if incErr != nil {
		return nil, apperror.InternalError(incErr)
	}
	if n >= challenge.MaxAttempts {
		return s.transact(ctx, id, func(sess *domain.CheckoutSession) error {
			if sess.Status != domain.StatusRequiresEscalation {
				return nil
			}
			return s.failWithReceipt(ctx, sess, mandateIDOf(sess), domain.ReceiptStatusFailed, "CHALLENGE_EXHAUSTED: step-up attempts exhausted")
		})
	}
	return nil, apperror.ErrInvalidOTP()
}

func mandateIDOf(sess *domain.CheckoutSession) string {
	if sess.Mandate == nil {
		return ""
	}
	return sess.Mandate.PaymentMandateContents.PaymentMandateID
}

// failWithReceipt finalizes sess into the failed state with a receipt
// recording the reason, so a failed session still carries the "every
// terminal decision produces a receipt" artifact §4.2 requires.
func (s *Service) failWithReceipt(ctx context.Context, sess *domain.CheckoutSession, mandateID, statusCode, message string) error {
	amt := sess.Totals.Total
	currency := sess.Currency
	if sess.Mandate != nil {
		amt = sess.Mandate.PaymentMandateContents.PaymentDetailsTotal.Amount.Value
		currency = sess.Mandate.PaymentMandateContents.PaymentDetailsTotal.Amount.Currency
	}

	receipt, err := s.agent.IssueReceipt(ctx, mandateID, ap2.PaymentCurrencyAmount{Currency: currency, Value: amt}, statusCode, message)
	if err != nil {
		return err
	}
	sess.Status = domain.StatusFailed
	sess.Receipt = receipt
	return nil
}

func (s *Service) sessionExpired(sess *domain.CheckoutSession) bool {
	return s.now().Sub(sess.UpdatedAt) > s.inactivityTTL
}

// challenges exposes the ChallengeStore the agent's issued challenges are
// persisted to; injected via WithChallengeStore since Service's
// constructor signature predates step-up wiring in tests that don't need
// it.
func (s *Service) challenges() ports.ChallengeStore {
	return s.challengeStore
}
