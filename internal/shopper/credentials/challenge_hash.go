package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for hashing a device-enrollment challenge. A
// challenge is 32 random bytes, not a password, but the teacher's
// approach of not keeping secret material around in plaintext any
// longer than necessary still applies, §4.4.
const (
	challengeArgon2Time    = 1
	challengeArgon2Memory  = 19 * 1024
	challengeArgon2Threads = 2
	challengeArgon2KeyLen  = 32
	challengeArgon2SaltLen = 16
)

// hashEnrollmentChallenge produces the EnrollmentChallengeHash stored on
// a DeviceCredential ($argon2id$v=...$m=...,t=...,p=...$salt$hash). The
// plaintext challenge itself is verified against the attestation via
// ed25519 before this is ever called, and is discarded afterward.
func hashEnrollmentChallenge(challenge []byte) (string, error) {
	salt := make([]byte, challengeArgon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating challenge salt: %w", err)
	}
	hash := argon2.IDKey(challenge, salt, challengeArgon2Time, challengeArgon2Memory, challengeArgon2Threads, challengeArgon2KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, challengeArgon2Memory, challengeArgon2Time, challengeArgon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}
