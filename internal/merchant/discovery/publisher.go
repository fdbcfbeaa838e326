package discovery

import (
	"ucp-ap2-commerce/config"
	"ucp-ap2-commerce/internal/ucp"
)

// Publisher assembles the UCP discovery profile served at
// GET /.well-known/ucp, per spec §6.
type Publisher struct {
	profile ucp.Profile
}

// NewPublisher builds a Publisher from merchant identity and the step-up
// policy, fixed for the process lifetime — discovery profiles don't
// change without a redeploy in this demonstrator.
func NewPublisher(identity config.MerchantIdentity, stepup config.StepUpConfig, baseURL string) *Publisher {
	profile := ucp.Profile{
		Payment: ucp.AP2PaymentConfig{
			MandatesSupported:        true,
			OTPVerificationSupported: stepup.Enabled,
		},
		Merchant: ucp.MerchantInfo{
			ID:   identity.ID,
			Name: identity.Name,
			URL:  identity.URL,
		},
	}
	profile.UCP.Version = "1.0"
	profile.UCP.Services = map[string]ucp.UCPService{
		ucp.ServiceShopping: {
			Version: "1.0",
			Rest:    &ucp.RestTransport{Endpoint: baseURL + "/ucp/v1"},
		},
	}
	profile.UCP.Capabilities = []ucp.Capability{
		{Name: ucp.CapabilityProductSearch, Version: "1.0"},
		{
			Name:    ucp.CapabilityCheckout,
			Version: "1.0",
			Extends: ucp.ExtensionAP2Mandate,
			Config: map[string]interface{}{
				"mandates_supported":         true,
				"otp_verification_supported": stepup.Enabled,
			},
		},
	}

	return &Publisher{profile: profile}
}

// Profile returns the discovery document to serve verbatim.
func (p *Publisher) Profile() ucp.Profile {
	return p.profile
}
