package ap2agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTPCode_ProducesSixDigits(t *testing.T) {
	code, err := generateOTPCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)
}

func TestHashOTP_VerifyRoundTrip(t *testing.T) {
	hash, err := hashOTP("482910")
	require.NoError(t, err)

	assert.True(t, verifyOTPHash("482910", hash))
	assert.False(t, verifyOTPHash("000000", hash))
}

func TestVerifyOTPHash_MalformedHashRejected(t *testing.T) {
	assert.False(t, verifyOTPHash("482910", "not-a-hash"))
}
