package httpapi

import "ucp-ap2-commerce/internal/ap2"

// EnrollUserRequest is the body of POST /users.
type EnrollUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
}

// EnrollInstrumentRequest is the body of POST /users/:email/instruments.
type EnrollInstrumentRequest struct {
	PAN         string `json:"pan" binding:"required"`
	Network     string `json:"network" binding:"required"`
	ExpiryMonth int    `json:"expiry_month" binding:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" binding:"required"`
	MakeDefault bool   `json:"make_default"`
}

// LineItemRequest mirrors ucpclient.LineItem for the Shopper's own
// prepare-purchase request body.
type LineItemRequest struct {
	SKU       string  `json:"sku" binding:"required"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
}

// PreparePurchaseRequest is the body of POST /purchases.
type PreparePurchaseRequest struct {
	LineItems []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
	Currency  string            `json:"currency" binding:"required,len=3"`
	UserEmail string            `json:"user_email" binding:"required,email"`
}

// ConfirmPurchaseRequest is the body of POST /purchases/:session_id/confirm.
// Origin identifies the calling surface (e.g. a storefront hostname) and is
// bound into the device assertion alongside the mandate digest, §4.4. The
// caller echoes back the unsigned mandate contents Prepare returned; the
// Orchestrator signs them as received, without regenerating them or
// comparing them with what Prepare returned. The Merchant's Update rejects
// signed contents whose total, currency or payer email differ from the
// session; changes to other fields are not detected.
type ConfirmPurchaseRequest struct {
	Origin                 string                     `json:"origin" binding:"required"`
	PaymentMandateContents ap2.PaymentMandateContents `json:"payment_mandate_contents" binding:"required"`
}

// SubmitOTPRequest is the body of POST /purchases/:session_id/otp.
type SubmitOTPRequest struct {
	Code string `json:"code" binding:"required"`
}
