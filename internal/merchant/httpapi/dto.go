// Package httpapi is the Merchant's gin HTTP surface: discovery, product
// search, the four checkout-session operations, and health.
package httpapi

import (
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/domain"
)

// CreateSessionRequest is the POST /ucp/v1/checkout-sessions body.
type CreateSessionRequest struct {
	LineItems  []LineItemDTO `json:"line_items" binding:"required,min=1,dive"`
	BuyerEmail string        `json:"buyer_email" binding:"required,email"`
	Currency   string        `json:"currency" binding:"required,currency3"`
}

// LineItemDTO is one cart line on the wire.
type LineItemDTO struct {
	SKU       string  `json:"sku" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	UnitPrice float64 `json:"unit_price" binding:"required,gte=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
}

// UpdateSessionRequest is the PUT /ucp/v1/checkout-sessions/:id body: the
// full AP2 mandate §6 prescribes.
type UpdateSessionRequest struct {
	PaymentMandateContents ap2.PaymentMandateContents `json:"payment_mandate_contents" binding:"required"`
	UserAuthorization      string                     `json:"user_authorization" binding:"required"`
}

// SessionResponse mirrors domain.CheckoutSession on the wire.
type SessionResponse struct {
	ID                string                `json:"id"`
	LineItems         []LineItemDTO         `json:"line_items"`
	BuyerEmail        string                `json:"buyer_email"`
	Currency          string                `json:"currency"`
	Totals            TotalsDTO             `json:"totals"`
	Status            string                `json:"status"`
	UserAuthorization string                `json:"user_authorization,omitempty"`
	Receipt           *ReceiptDTO           `json:"receipt,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// TotalsDTO mirrors domain.Totals.
type TotalsDTO struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ReceiptDTO mirrors domain.PaymentReceipt.
type ReceiptDTO struct {
	MandateID              string                    `json:"payment_mandate_id"`
	PaymentID              string                    `json:"payment_id"`
	Amount                 ap2.PaymentCurrencyAmount `json:"amount"`
	StatusCode             string                    `json:"status_code"`
	StatusMessage          string                    `json:"status_message,omitempty"`
	MerchantConfirmationID string                    `json:"merchant_confirmation_id"`
	IssuedAt               time.Time                 `json:"issued_at"`
	MerchantSignature      string                    `json:"merchant_signature,omitempty"`
	OTPChallenge           *OTPChallengeDTO          `json:"otp_challenge,omitempty"`
}

// OTPChallengeDTO mirrors domain.OTPChallengeEnvelope.
type OTPChallengeDTO struct {
	PaymentMandateID string `json:"payment_mandate_id"`
	Message          string `json:"message"`
	DeliveredCode    string `json:"delivered_code,omitempty"`
}

// toSessionResponse converts a domain.CheckoutSession to its wire shape.
func toSessionResponse(sess *domain.CheckoutSession) SessionResponse {
	items := make([]LineItemDTO, len(sess.LineItems))
	for i, li := range sess.LineItems {
		items[i] = LineItemDTO{SKU: li.SKU, Name: li.Name, UnitPrice: li.UnitPrice, Quantity: li.Quantity}
	}

	resp := SessionResponse{
		ID:                sess.ID,
		LineItems:         items,
		BuyerEmail:        sess.BuyerEmail,
		Currency:          sess.Currency,
		Totals:            TotalsDTO{Subtotal: sess.Totals.Subtotal, Tax: sess.Totals.Tax, Total: sess.Totals.Total},
		Status:            string(sess.Status),
		UserAuthorization: sess.UserAuthorization,
		CreatedAt:         sess.CreatedAt,
		UpdatedAt:         sess.UpdatedAt,
	}
	if sess.Receipt != nil {
		resp.Receipt = toReceiptDTO(sess.Receipt)
	}
	return resp
}

func toReceiptDTO(r *domain.PaymentReceipt) *ReceiptDTO {
	dto := &ReceiptDTO{
		MandateID:              r.MandateID,
		PaymentID:              r.PaymentID,
		Amount:                 r.Amount,
		StatusCode:             r.StatusCode,
		StatusMessage:          r.StatusMessage,
		MerchantConfirmationID: r.MerchantConfirmationID,
		IssuedAt:               r.IssuedAt,
		MerchantSignature:      r.MerchantSignature,
	}
	if r.OTPChallenge != nil {
		dto.OTPChallenge = &OTPChallengeDTO{
			PaymentMandateID: r.OTPChallenge.PaymentMandateID,
			Message:          r.OTPChallenge.Message,
			DeliveredCode:    r.OTPChallenge.DeliveredCode,
		}
	}
	return dto
}
