package ap2agent

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRegistry_RegisterAndResolve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	reg := NewKeyRegistry()
	reg.Register("shopper@example.com", pub)

	got, err := reg.ResolveKey(context.Background(), "shopper@example.com")
	require.NoError(t, err)
	assert.Equal(t, pub, got)
}

func TestKeyRegistry_ResolveUnknownFails(t *testing.T) {
	reg := NewKeyRegistry()
	_, err := reg.ResolveKey(context.Background(), "nobody@example.com")
	assert.Error(t, err)
}
