package credentials

import (
	"crypto/ed25519"
	"fmt"
	"sync"
)

// DeviceKeyVault holds the private half of each user's enrolled device
// credential in memory, standing in for the secure enclave a real device
// authenticator would use. Only the public half ever leaves this
// process, via DeviceCredential.PublicKey.
type DeviceKeyVault struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey // userEmail -> private key
}

// NewDeviceKeyVault builds an empty vault.
func NewDeviceKeyVault() *DeviceKeyVault {
	return &DeviceKeyVault{keys: make(map[string]ed25519.PrivateKey)}
}

// Generate creates a fresh ed25519 keypair for userEmail and stores the
// private half, returning the public half for enrollment.
func (v *DeviceKeyVault) Generate(userEmail string) (ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generating device keypair: %w", err)
	}
	v.mu.Lock()
	v.keys[userEmail] = priv
	v.mu.Unlock()
	return pub, nil
}

// Sign produces an assertion over msg using userEmail's enrolled device
// private key.
func (v *DeviceKeyVault) Sign(userEmail string, msg []byte) ([]byte, error) {
	v.mu.RLock()
	priv, ok := v.keys[userEmail]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no device credential enrolled for %s", userEmail)
	}
	return ed25519.Sign(priv, msg), nil
}
