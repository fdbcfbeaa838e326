package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEnrollmentChallenge_ProducesArgon2idEnvelope(t *testing.T) {
	challenge := []byte("01234567890123456789012345678901")

	hash, err := hashEnrollmentChallenge(challenge)
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")
}

func TestHashEnrollmentChallenge_DifferentSaltsEachCall(t *testing.T) {
	challenge := []byte("01234567890123456789012345678901")

	first, err := hashEnrollmentChallenge(challenge)
	require.NoError(t, err)
	second, err := hashEnrollmentChallenge(challenge)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
