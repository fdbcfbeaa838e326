package ap2agent

import (
	"context"
	"crypto/ed25519"
	"sync"

	"ucp-ap2-commerce/pkg/apperror"
)

// KeyRegistry is the Merchant's "device credential on file" lookup, §4.2
// step 1, keyed by payer email. Keys arrive through the Merchant's
// POST /internal/device-keys hand-off (httpapi.Handler.RegisterDeviceKey),
// which the Shopper calls when it enrolls a device; cmd/merchant starts
// with an empty registry.
type KeyRegistry struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// NewKeyRegistry builds an empty registry.
func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{keys: make(map[string]ed25519.PublicKey)}
}

// Register records the device public key on file for payerEmail.
func (r *KeyRegistry) Register(payerEmail string, key ed25519.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[payerEmail] = key
}

// ResolveKey implements DeviceKeyResolver.
func (r *KeyRegistry) ResolveKey(ctx context.Context, payerEmail string) (ed25519.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[payerEmail]
	if !ok {
		return nil, apperror.ErrInvalidAuthorization()
	}
	return key, nil
}
