package ap2

import (
	"bytes"
	"encoding/json"
	"math"
)

// CanonicalDigest produces the exact bytes a device credential signs over
// (and the Merchant Agent recomputes to verify): lexicographic JSON, UTF-8,
// no insignificant whitespace, monetary amounts bankers-rounded to 2
// decimals. Disagreement between signer and verifier here is observable
// only as INVALID_AUTHORIZATION.
//
// Struct field order is irrelevant to the result: contents are round-
// tripped through a generic map so encoding/json's built-in lexicographic
// key ordering for map values applies at every nesting level.
func CanonicalDigest(contents PaymentMandateContents) ([]byte, error) {
	rounded := contents
	rounded.PaymentDetailsTotal.Amount.Value = bankersRound2(contents.PaymentDetailsTotal.Amount.Value)

	raw, err := json.Marshal(rounded)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; strip it so the
	// digest contains no insignificant whitespace at all.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// bankersRound2 rounds to 2 decimal places using round-half-to-even, the
// formatting rule §4.2 mandates for monetary amounts.
func bankersRound2(v float64) float64 {
	scaled := v * 100
	floor := math.Floor(scaled)
	diff := scaled - floor
	switch {
	case diff < 0.5:
		scaled = floor
	case diff > 0.5:
		scaled = floor + 1
	default:
		// Exactly halfway: round to even.
		if math.Mod(floor, 2) == 0 {
			scaled = floor
		} else {
			scaled = floor + 1
		}
	}
	return scaled / 100
}
