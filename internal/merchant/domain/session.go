// Package domain holds the Merchant Service's core types: the checkout
// session state machine, step-up challenges, receipts, and request-log
// entries. None of these types know about HTTP or storage.
package domain

import (
	"time"

	"ucp-ap2-commerce/internal/ap2"
)

// Status is a CheckoutSession's place in the §4.1 state machine.
type Status string

const (
	StatusIncomplete         Status = "incomplete"
	StatusReadyForComplete   Status = "ready_for_complete"
	StatusRequiresEscalation Status = "requires_escalation"
	StatusComplete           Status = "complete"
	StatusFailed             Status = "failed"
)

// IsTerminal reports whether the session can no longer transition.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// LineItem is one cart line.
type LineItem struct {
	SKU       string  `json:"sku" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	UnitPrice float64 `json:"unit_price" binding:"required,gte=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
}

// Totals holds the computed subtotal/tax/total for a session.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// CheckoutSession is owned by the Merchant. It is mutated only through the
// Checkout Session Manager, which enforces the §4.1 transition table and
// serializes access per §5.
type CheckoutSession struct {
	ID                string
	LineItems         []LineItem
	BuyerEmail        string
	Currency          string
	Totals            Totals
	Status            Status
	Mandate           *ap2.PaymentMandate
	UserAuthorization string // redundant with Mandate.UserAuthorization once attached; kept for clarity at call sites
	Receipt           *PaymentReceipt
	ChallengeID       string // empty when no active challenge
	Version           int64  // optimistic CAS counter
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StepUpChallenge is issued by the AP2 Merchant Agent when risk policy
// demands additional verification, §3/§4.2.
type StepUpChallenge struct {
	ID         string
	MandateID  string
	Method     string // "otp" | "biometric" | "none"
	Status     string // "pending" | "approved" | "declined" | "expired"
	Attempts   int
	MaxAttempts int
	CodeHash   string // Argon2id(code, salt); empty in demo mode
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the challenge has passed its 5-minute window.
func (c StepUpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Exhausted reports whether the challenge has used up its attempt budget.
func (c StepUpChallenge) Exhausted() bool {
	return c.Attempts >= c.MaxAttempts
}

// ReceiptStatus is the terminal status code carried in a PaymentReceipt.
const (
	ReceiptStatusSuccess          = "SUCCESS"
	ReceiptStatusOTPRequired      = "OTP_REQUIRED"
	ReceiptStatusFailed           = "FAILED"
)

// PaymentReceipt is the Merchant's terminal statement about a payment
// attempt, §3.
type PaymentReceipt struct {
	MandateID            string    `json:"payment_mandate_id"`
	PaymentID             string    `json:"payment_id"`
	Amount                ap2.PaymentCurrencyAmount `json:"amount"`
	StatusCode             string    `json:"status_code"`
	StatusMessage          string    `json:"status_message,omitempty"`
	MerchantConfirmationID string    `json:"merchant_confirmation_id"`
	IssuedAt               time.Time `json:"issued_at"`
	MerchantSignature      string    `json:"merchant_signature,omitempty"`
	OTPChallenge           *OTPChallengeEnvelope `json:"otp_challenge,omitempty"`
}

// OTPChallengeEnvelope is the step-up wire shape §6 prescribes:
// payment_method_details.otp_challenge.
type OTPChallengeEnvelope struct {
	PaymentMandateID string `json:"payment_mandate_id"`
	Message          string `json:"message"`
	// DeliveredCode carries the freshly generated code in non-demo mode.
	// A real deployment delivers this over SMS/push — an external
	// collaborator §1 puts out of scope for this demonstrator — so the
	// envelope itself stands in as the only delivery channel this system
	// has. Only CodeHash, never this field, is ever persisted on the
	// challenge.
	DeliveredCode string `json:"delivered_code,omitempty"`
}

// RequestLogEntry captures one inbound UCP or AP2 request, §3/§4.6.
type RequestLogEntry struct {
	ID           string
	Kind         string // "ucp" | "ap2"
	Endpoint     string
	Method       string
	Status       int
	RequestBody  string
	ResponseBody string
	Signature    string
	MandateID    string
	ClientIP     string
	Duration     time.Duration
	CreatedAt    time.Time
}
