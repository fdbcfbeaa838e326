package ap2agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ucp-ap2-commerce/internal/merchant/domain"
)

// NoopSigner is the default ports.ReceiptSigner: it issues no merchant
// signature at all. Receipt signing against a DID/VC identity is an
// external collaborator out of this demonstrator's scope.
type NoopSigner struct{}

func (NoopSigner) Sign(ctx context.Context, receipt *domain.PaymentReceipt) (string, error) {
	return "", nil
}

// HTTPSigner calls an external signing microservice over HTTP, for
// deployments that do have a DID/VC signer to delegate to. No endpoint is
// wired by default since the signer itself is out of scope (§1).
type HTTPSigner struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPSigner builds an HTTPSigner with a bounded request timeout.
func NewHTTPSigner(endpoint string) *HTTPSigner {
	return &HTTPSigner{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type signRequest struct {
	PaymentID string `json:"payment_id"`
	MandateID string `json:"payment_mandate_id"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

func (h *HTTPSigner) Sign(ctx context.Context, receipt *domain.PaymentReceipt) (string, error) {
	body, err := json.Marshal(signRequest{PaymentID: receipt.PaymentID, MandateID: receipt.MandateID})
	if err != nil {
		return "", fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling signing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signing service returned status %d", resp.StatusCode)
	}

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding sign response: %w", err)
	}
	return out.Signature, nil
}
