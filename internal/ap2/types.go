// Package ap2 holds the wire-shape types for the Agent Payments Protocol
// payment-mandate extension carried inside a UCP checkout session, and the
// canonicalization routine both the Shopper (signer) and the Merchant
// (verifier) use to agree on the bytes a device credential signs.
package ap2

import "time"

// PaymentCurrencyAmount is a monetary amount in a given ISO 4217 currency.
// Value is always stable at 2 decimal places (bankers-rounded) once it
// crosses into a PaymentMandateContents.
type PaymentCurrencyAmount struct {
	Currency string  `json:"currency" binding:"required,currency3"`
	Value    float64 `json:"value" binding:"required"`
}

// PaymentItem is a labeled line total, used both for the session total and
// for individual cart lines.
type PaymentItem struct {
	Label  string                `json:"label"`
	Amount PaymentCurrencyAmount `json:"amount"`
}

// PaymentMethodDetails carries the per-transaction token/cryptogram that
// cross the Shopper->Merchant boundary in place of the raw PAN.
type PaymentMethodDetails struct {
	Token        string `json:"token" binding:"required,token16"`
	Cryptogram   string `json:"cryptogram" binding:"required,hex32"`
	CardLastFour string `json:"card_last_four" binding:"required,card4"`
	CardNetwork  string `json:"card_network" binding:"required"`
}

// PaymentResponse is the method-specific payment data assembled by the
// Consumer Agent and inspected by the Merchant Agent.
type PaymentResponse struct {
	RequestID  string               `json:"request_id"`
	MethodName string               `json:"method_name" binding:"required"`
	Details    PaymentMethodDetails `json:"details" binding:"required"`
	PayerEmail string               `json:"payer_email" binding:"required,email"`
	PayerName  string               `json:"payer_name"`
}

// PaymentMandateContents is the signed portion of a payment mandate: every
// field here, and only these fields, feed the canonical digest a device
// credential signs.
type PaymentMandateContents struct {
	PaymentMandateID    string          `json:"payment_mandate_id" binding:"required"`
	Timestamp           time.Time       `json:"timestamp" binding:"required"`
	PaymentDetailsID    string          `json:"payment_details_id" binding:"required"`
	PaymentDetailsTotal PaymentItem     `json:"payment_details_total" binding:"required"`
	PaymentResponse     PaymentResponse `json:"payment_response" binding:"required"`
	MerchantAgent       string          `json:"merchant_agent" binding:"required"`
}

// PaymentMandate is the full structure carried in a checkout session
// Update: the signed contents plus the device-bound authorization over
// their canonical digest. UserAuthorization is URL-safe base64 on the wire.
type PaymentMandate struct {
	PaymentMandateContents PaymentMandateContents `json:"payment_mandate_contents" binding:"required"`
	UserAuthorization      string                 `json:"user_authorization" binding:"required"`
}

// KnownCardNetworks is the closed set card_network must belong to for a
// mandate to pass integrity checking.
var KnownCardNetworks = map[string]bool{
	"visa":       true,
	"mastercard": true,
	"amex":       true,
	"discover":   true,
}
