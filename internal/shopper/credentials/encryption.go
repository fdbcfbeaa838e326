package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// panKeyInfo is the HKDF context string binding the derived key to this
// specific use (PAN-at-rest encryption), so the same configured key
// material could be reused for another HKDF-derived purpose without key
// reuse across purposes.
const panKeyInfo = "ucp-ap2-commerce/shopper/pan-encryption"

// PANCipher encrypts/decrypts card PANs at rest using AES-256-GCM,
// adapted from the teacher's AESEncryptionService. Only the Shopper ever
// holds the key; decryption is never required to participate in a
// mandate, §4.4. The AES key itself is never the raw configured secret:
// it is derived via HKDF-SHA256 so the operator-supplied key material
// never touches AES directly.
type PANCipher struct {
	key []byte // 32-byte HKDF-derived AES-256 key
}

// NewPANCipher builds a PANCipher from hex-encoded key material. The
// material is run through HKDF-SHA256 (no salt, a fixed purpose-scoped
// info string) to derive the actual 32-byte AES key, rather than using
// the configured bytes as the AES key directly.
func NewPANCipher(hexKey string) (*PANCipher, error) {
	ikm, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding PAN encryption key material: %w", err)
	}
	if len(ikm) < 16 {
		return nil, fmt.Errorf("PAN encryption key material must be at least 16 bytes, got %d", len(ikm))
	}

	derived := make([]byte, 32)
	kdf := hkdf.New(sha256.New, ikm, nil, []byte(panKeyInfo))
	if _, err := io.ReadFull(kdf, derived); err != nil {
		return nil, fmt.Errorf("deriving PAN encryption key: %w", err)
	}
	return &PANCipher{key: derived}, nil
}

// Encrypt returns a hex-encoded nonce||ciphertext.
func (c *PANCipher) Encrypt(pan string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(pan), nil)
	return hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Never called on the hot mandate path: only
// last-four, network, and the per-transaction token/cryptogram cross the
// Shopper->Merchant boundary.
func (c *PANCipher) Decrypt(encryptedHex string) (string, error) {
	ciphertext, err := hex.DecodeString(encryptedHex)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}
