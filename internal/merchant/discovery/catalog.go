// Package discovery is the Merchant's Discovery Publisher: it serves the
// UCP discovery profile and backs product search with a fixture catalog,
// since the real Product Catalog is an external collaborator (out of
// scope per the demonstrator's own boundaries).
package discovery

import (
	"context"
	"strings"

	"ucp-ap2-commerce/internal/ucp"
)

// FixtureCatalog is an in-memory ports.ProductCatalog for demo purposes.
type FixtureCatalog struct {
	items []ucp.ProductSummary
}

// NewFixtureCatalog seeds a small, deterministic catalog.
func NewFixtureCatalog() *FixtureCatalog {
	return &FixtureCatalog{
		items: []ucp.ProductSummary{
			{ID: "PROD-001", Title: "Mechanical Keyboard", Price: 8900, ImageURL: "https://example.com/img/kb.png", Description: "Hot-swappable 75% mechanical keyboard"},
			{ID: "PROD-002", Title: "Wireless Mouse", Price: 2900, ImageURL: "https://example.com/img/mouse.png", Description: "Ergonomic wireless mouse"},
			{ID: "PROD-003", Title: "USB-C Dock", Price: 6500, ImageURL: "https://example.com/img/dock.png", Description: "10-port USB-C docking station"},
			{ID: "PROD-004", Title: "4K Monitor", Price: 34900, ImageURL: "https://example.com/img/monitor.png", Description: "27-inch 4K IPS monitor"},
			{ID: "PROD-005", Title: "Noise Cancelling Headphones", Price: 19900, ImageURL: "https://example.com/img/headphones.png", Description: "Over-ear ANC headphones"},
		},
	}
}

// Search does a case-insensitive substring match over title and
// description, capped at limit.
func (c *FixtureCatalog) Search(ctx context.Context, query string, limit int) ([]ucp.ProductSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(strings.TrimSpace(query))

	var out []ucp.ProductSummary
	for _, item := range c.items {
		if q == "" || strings.Contains(strings.ToLower(item.Title), q) || strings.Contains(strings.ToLower(item.Description), q) {
			out = append(out, item)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Exists reports whether sku is a known product, used to validate line
// items on checkout-session Create.
func (c *FixtureCatalog) Exists(ctx context.Context, sku string) (bool, error) {
	for _, item := range c.items {
		if item.ID == sku {
			return true, nil
		}
	}
	return false, nil
}
