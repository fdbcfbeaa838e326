package ap2agent

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/argon2"
)

var otp6Pattern = regexp.MustCompile(`^[0-9]{6}$`)

// generateOTPCode produces a fresh 6-digit numeric code for a step-up
// challenge, crypto/rand-backed the same way the Shopper's
// ap2agent.randomNumericToken generates mandate tokens.
func generateOTPCode() (string, error) {
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generating otp code: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

// Argon2id parameters, adapted from the teacher's password hashing —
// an OTP code is much lower entropy than a password, but hashing it at
// rest still keeps a leaked challenge store from handing out live codes.
const (
	otpArgon2Time    = 1
	otpArgon2Memory  = 19 * 1024
	otpArgon2Threads = 2
	otpArgon2KeyLen  = 32
	otpArgon2SaltLen = 16
)

// hashOTP produces the CodeHash stored on a StepUpChallenge in
// production mode ($argon2id$v=...$m=...,t=...,p=...$salt$hash).
func hashOTP(code string) (string, error) {
	salt := make([]byte, otpArgon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating otp salt: %w", err)
	}
	hash := argon2.IDKey([]byte(code), salt, otpArgon2Time, otpArgon2Memory, otpArgon2Threads, otpArgon2KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, otpArgon2Memory, otpArgon2Time, otpArgon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyOTPHash(code, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(code), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
