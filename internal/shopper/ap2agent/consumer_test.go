package ap2agent

import (
	"context"
	"testing"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/shopper/adapter/storage/memstore"
	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/tokenization"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e"

func newTestAgent(t *testing.T) (*ConsumerAgent, *credentials.Provider) {
	t.Helper()
	cipher, err := credentials.NewPANCipher(testKeyHex)
	require.NoError(t, err)
	vault := credentials.NewDeviceKeyVault()
	provider := credentials.New(
		memstore.NewUserStore(),
		memstore.NewCredentialStore(),
		memstore.NewInstrumentStore(),
		tokenization.NoopAdapter{},
		cipher,
		vault,
		zerolog.Nop(),
	)
	return New(provider), provider
}

func enrolledInstrument(t *testing.T, provider *credentials.Provider) *domain.PaymentInstrument {
	t.Helper()
	ctx := context.Background()
	_, err := provider.EnrollUser(ctx, "a@example.com", "Alice")
	require.NoError(t, err)
	_, err = provider.EnrollDevice(ctx, "a@example.com")
	require.NoError(t, err)
	inst, err := provider.EnrollInstrument(ctx, "a@example.com", credentials.EnrollInstrumentInput{
		PAN: "4111111111111111", Network: "visa", ExpiryMonth: 12, ExpiryYear: 2030, MakeDefault: true,
	})
	require.NoError(t, err)
	return inst
}

func TestConsumerAgent_Assemble_ProducesValidShapes(t *testing.T) {
	agent, provider := newTestAgent(t)
	inst := enrolledInstrument(t, provider)
	agent.SetClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	contents, err := agent.Assemble(AssembleInput{
		SessionID:     "sess-1",
		Total:         ap2.PaymentCurrencyAmount{Currency: "USD", Value: 19.99},
		PayerEmail:    "a@example.com",
		MerchantAgent: "merchant-agent-1",
		Instrument:    inst,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, contents.PaymentMandateID)
	assert.Len(t, contents.PaymentResponse.Details.Token, 16)
	assert.Len(t, contents.PaymentResponse.Details.Cryptogram, 32)
	assert.Equal(t, "1111", contents.PaymentResponse.Details.CardLastFour)
	assert.Equal(t, "visa", contents.PaymentResponse.Details.CardNetwork)
	assert.Equal(t, "merchant-agent-1", contents.MerchantAgent)
}

func TestConsumerAgent_Sign_ProducesDigestOnlySignature(t *testing.T) {
	agent, provider := newTestAgent(t)
	inst := enrolledInstrument(t, provider)

	contents, err := agent.Assemble(AssembleInput{
		SessionID:     "sess-1",
		Total:         ap2.PaymentCurrencyAmount{Currency: "USD", Value: 19.99},
		PayerEmail:    "a@example.com",
		MerchantAgent: "merchant-agent-1",
		Instrument:    inst,
	})
	require.NoError(t, err)

	mandate, err := agent.Sign(context.Background(), "a@example.com", "https://shop.example", contents)
	require.NoError(t, err)
	assert.Equal(t, contents, mandate.PaymentMandateContents)

	sig, err := ap2.DecodeB64(mandate.UserAuthorization)
	require.NoError(t, err)

	digest, err := ap2.CanonicalDigest(contents)
	require.NoError(t, err)
	directSig, err := provider.SignMandateDigest(context.Background(), "a@example.com", digest)
	require.NoError(t, err)
	assert.Equal(t, directSig, sig, "wire signature must be over the canonical digest alone")
}
