// Package discovery is the Shopper's UCP Discovery Consumer (§4.3/§4.4):
// it fetches and caches the Merchant's /.well-known/ucp profile, the
// source of the merchant_agent id every assembled mandate carries.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ucp-ap2-commerce/internal/ucp"
)

// Consumer fetches and caches a single Merchant's discovery profile.
type Consumer struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.RWMutex
	profile *ucp.Profile
}

// New builds a Consumer against the Merchant's base URL.
func New(baseURL string, timeout time.Duration) *Consumer {
	return &Consumer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch always hits the network and refreshes the cache.
func (c *Consumer) Fetch(ctx context.Context) (*ucp.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/.well-known/ucp", nil)
	if err != nil {
		return nil, fmt.Errorf("building discovery request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching discovery profile: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading discovery response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var profile ucp.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("decoding discovery profile: %w", err)
	}

	c.mu.Lock()
	c.profile = &profile
	c.mu.Unlock()
	return &profile, nil
}

// Cached returns the last-fetched profile, fetching it if never loaded.
func (c *Consumer) Cached(ctx context.Context) (*ucp.Profile, error) {
	c.mu.RLock()
	p := c.profile
	c.mu.RUnlock()
	if p != nil {
		return p, nil
	}
	return c.Fetch(ctx)
}

// MerchantAgentID returns the discovery profile's merchant id, used as
// the mandate's merchant_agent field, §4.4.
func (c *Consumer) MerchantAgentID(ctx context.Context) (string, error) {
	p, err := c.Cached(ctx)
	if err != nil {
		return "", err
	}
	return p.Merchant.ID, nil
}

// CheckoutEndpoint returns the absolute base URL for the checkout
// service, read from the discovery profile rather than hardcoded, §6.
func (c *Consumer) CheckoutEndpoint(ctx context.Context) (string, error) {
	p, err := c.Cached(ctx)
	if err != nil {
		return "", err
	}
	endpoint := ucp.GetServiceEndpoint(p, ucp.ServiceShopping)
	if endpoint == "" {
		return "", fmt.Errorf("merchant discovery profile has no %s rest endpoint", ucp.ServiceShopping)
	}
	return endpoint, nil
}
