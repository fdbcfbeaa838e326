// Package ucp holds the wire-shape types for the discovery-and-checkout
// protocol spoken between the Shopper Service (client) and the Merchant
// Service (server): the /.well-known/ucp profile, capability declarations,
// and REST transport bindings.
package ucp

// Capability is a stable capability identifier in reverse-domain notation,
// e.g. "dev.ucp.shopping.checkout".
type Capability struct {
	Name    string                 `json:"name"`
	Version string                 `json:"version"`
	Extends string                 `json:"extends,omitempty"`
	Config  map[string]interface{} `json:"config,omitempty"`
}

// RestTransport is the REST transport binding for a UCP service.
type RestTransport struct {
	Endpoint string `json:"endpoint"`
}

// UCPService is a service definition with its transport binding. This
// demonstrator only speaks REST, unlike the full protocol's MCP/A2A/
// embedded bindings.
type UCPService struct {
	Version string         `json:"version"`
	Rest    *RestTransport `json:"rest,omitempty"`
}

// AP2PaymentConfig advertises the merchant's support for the AP2
// payment-mandate extension, per §6.
type AP2PaymentConfig struct {
	MandatesSupported       bool `json:"mandates_supported"`
	OTPVerificationSupported bool `json:"otp_verification_supported"`
}

// MerchantInfo identifies the merchant in the discovery profile.
type MerchantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Profile is the full document served at GET /.well-known/ucp.
type Profile struct {
	UCP struct {
		Version      string                `json:"version"`
		Services     map[string]UCPService `json:"services"`
		Capabilities []Capability          `json:"capabilities"`
	} `json:"ucp"`
	Payment  AP2PaymentConfig `json:"payment"`
	Merchant MerchantInfo     `json:"merchant"`
}

// Well-known capability and service names used by this demonstrator.
const (
	CapabilityProductSearch = "dev.ucp.shopping.product_search"
	CapabilityCheckout      = "dev.ucp.shopping.checkout"
	ExtensionAP2Mandate     = "ap2_mandate"
	ServiceShopping         = "dev.ucp.shopping"
)

// ProductSearchResult is the response shape for GET /ucp/products/search.
type ProductSearchResult struct {
	Items []ProductSummary `json:"items"`
	Total int              `json:"total"`
}

// ProductSummary is a single catalog entry; price is in minor currency
// units (cents) per §6.
type ProductSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}
