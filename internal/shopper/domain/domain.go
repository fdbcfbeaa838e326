// Package domain holds the Shopper Service's core types: users, enrolled
// device credentials, payment instruments on file, and the in-flight
// mandate state the Checkout Orchestrator tracks per session. None of
// these types know about HTTP or storage.
package domain

import "time"

// User is identified by a case-folded email. Never deleted by the
// protocol; mutated only by credential/instrument enrollment.
type User struct {
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeviceCredential is a device-bound asymmetric key registered during
// enrollment, used to produce and verify a user's authorization signature
// over a payment mandate, §3/§4.4.
type DeviceCredential struct {
	ID        string
	UserEmail string
	PublicKey []byte // ed25519 public key
	Counter   int64  // monotonic, incremented on every assertion
	CreatedAt time.Time
	// EnrollmentChallengeHash is the Argon2id hash of the one-time
	// enrollment challenge this credential's attestation was signed over.
	// Only the hash is ever persisted; it is an audit artifact proving a
	// genuine challenge-response took place without keeping the live
	// challenge value around once enrollment completes.
	EnrollmentChallengeHash string
}

// PaymentInstrument is a card-on-file held by the Shopper. The raw PAN
// never crosses the Shopper->Merchant boundary; only last-four, network,
// and the per-transaction token/cryptogram may cross, §3.
type PaymentInstrument struct {
	ID              string
	UserEmail       string
	EncryptedPAN    string // hex(nonce||ciphertext), AES-256-GCM
	LastFour        string
	Network         string
	ExpiryMonth     int
	ExpiryYear      int
	IsDefault       bool
	IsTokenized     bool
	NetworkToken    string
	TokenReference  string
	TokenAssurance  string
	TokenizedAt     *time.Time
	CreatedAt       time.Time
}

// MandateStatus tracks an in-flight mandate through the orchestrator's
// prepare/confirm/submit_otp lifecycle, §4.3.
type MandateStatus string

const (
	MandateStatusPrepared MandateStatus = "prepared"
	MandateStatusSigned   MandateStatus = "signed"
	MandateStatusComplete MandateStatus = "complete"
	MandateStatusFailed   MandateStatus = "failed"
)

// InFlightMandate is the Shopper's record of one purchase in progress,
// keyed by the Merchant's checkout session id. The orchestrator is the
// only component that mutates it, enforcing at-most-one-in-flight
// mandate per session id, §4.3.
type InFlightMandate struct {
	SessionID     string
	InstrumentID  string
	UserEmail     string
	MandateID     string
	CanonicalHash string // hex sha256 of the canonical digest, for idempotent-retry detection
	Status        MandateStatus
	ReceiptJSON   string // cached terminal receipt, for idempotent confirm on an already-complete session
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
