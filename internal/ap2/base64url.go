package ap2

import (
	"encoding/base64"
	"strings"
)

// EncodeB64 encodes bytes as URL-safe base64 without padding, per §6's
// base64 discipline: every signature, challenge id, and credential id on
// the wire is unpadded URL-safe base64.
func EncodeB64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeB64 accepts both padded and unpadded URL-safe base64, and — for
// leniency with clients that mis-encode — standard base64 too, since §6
// only constrains what this service emits, not what it must tolerate.
func DecodeB64(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.URLEncoding.DecodeString(padB64(s)); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(padB64(strings.ReplaceAll(strings.ReplaceAll(s, "-", "+"), "_", "/")))
}

func padB64(s string) string {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return s
}
