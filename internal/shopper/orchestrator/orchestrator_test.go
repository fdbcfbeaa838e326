package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/shopper/adapter/storage/memstore"
	"ucp-ap2-commerce/internal/shopper/ap2agent"
	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/discovery"
	"ucp-ap2-commerce/internal/shopper/tokenization"
	"ucp-ap2-commerce/internal/shopper/ucpclient"
	"ucp-ap2-commerce/internal/ucp"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e"

// fakeMerchant is a minimal stand-in for the Merchant's checkout-session
// REST surface, enough to drive the Orchestrator end to end.
type fakeMerchant struct {
	mu            sync.Mutex
	sessions      map[string]*ucpclient.Session
	nextStatus     string // status CompleteSession should report next
	completeCalls  int
	deviceKeyCalls int
}

func newFakeMerchant(nextStatus string) *fakeMerchant {
	return &fakeMerchant{sessions: make(map[string]*ucpclient.Session), nextStatus: nextStatus}
}

func (m *fakeMerchant) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/ucp", func(w http.ResponseWriter, r *http.Request) {
		var p ucp.Profile
		p.Merchant = ucp.MerchantInfo{ID: "merchant-1", Name: "Acme"}
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("/ucp/v1/checkout-sessions", func(w http.ResponseWriter, r *http.Request) {
		var req ucpclient.CreateSessionRequest
		require_(r, &req)
		total := 0.0
		for _, li := range req.LineItems {
			total += li.UnitPrice * float64(li.Quantity)
		}
		sess := &ucpclient.Session{
			ID: "sess-1", LineItems: req.LineItems, BuyerEmail: req.BuyerEmail, Currency: req.Currency,
			Totals: ucpclient.Totals{Subtotal: total, Total: total}, Status: "incomplete",
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}
		m.mu.Lock()
		m.sessions[sess.ID] = sess
		m.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(sess)
	})
	mux.HandleFunc("/ucp/v1/checkout-sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		var req ucpclient.UpdateSessionRequest
		require_(r, &req)
		m.mu.Lock()
		sess := m.sessions["sess-1"]
		sess.UserAuthorization = req.UserAuthorization
		sess.Status = "ready_for_complete"
		m.mu.Unlock()
		_ = json.NewEncoder(w).Encode(sess)
	})
	mux.HandleFunc("/ucp/v1/checkout-sessions/sess-1/complete", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.completeCalls++
		sess := m.sessions["sess-1"]
		status := m.nextStatus
		if status == "requires_escalation" && r.URL.Query().Get("otp_code") != "" {
			status = "complete"
		}
		sess.Status = status
		switch status {
		case "complete":
			sess.Receipt = &ucpclient.Receipt{
				MandateID: "mandate-1", PaymentID: "pay-1",
				Amount: ap2.PaymentCurrencyAmount{Currency: sess.Currency, Value: sess.Totals.Total},
				StatusCode: "approved", IssuedAt: time.Now().UTC(),
			}
		case "requires_escalation":
			sess.Receipt = &ucpclient.Receipt{OTPChallenge: &ucpclient.OTPChallenge{PaymentMandateID: "mandate-1", Message: "enter code"}}
		}
		_ = json.NewEncoder(w).Encode(sess)
	})
	mux.HandleFunc("/internal/device-keys", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.deviceKeyCalls++
		m.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func require_(r *http.Request, v interface{}) {
	_ = json.NewDecoder(r.Body).Decode(v)
}

func newTestOrchestrator(t *testing.T, merchant *fakeMerchant) (*Orchestrator, *credentials.Provider) {
	t.Helper()
	srv := httptest.NewServer(merchant.handler())
	t.Cleanup(srv.Close)

	cipher, err := credentials.NewPANCipher(testKeyHex)
	require.NoError(t, err)
	vault := credentials.NewDeviceKeyVault()
	provider := credentials.New(
		memstore.NewUserStore(), memstore.NewCredentialStore(), memstore.NewInstrumentStore(),
		tokenization.NoopAdapter{}, cipher, vault, zerolog.Nop(),
	)
	consumer := ap2agent.New(provider)
	disco := discovery.New(srv.URL, 5*time.Second)
	client := ucpclient.New(srv.URL)
	mandates := memstore.NewMandateStore()

	orch := New(client, disco, consumer, provider, mandates, tokenization.NoopAdapter{}, zerolog.Nop())
	return orch, provider
}

func enroll(t *testing.T, provider *credentials.Provider) {
	t.Helper()
	ctx := context.Background()
	_, err := provider.EnrollUser(ctx, "a@example.com", "Alice")
	require.NoError(t, err)
	_, err = provider.EnrollDevice(ctx, "a@example.com")
	require.NoError(t, err)
	_, err = provider.EnrollInstrument(ctx, "a@example.com", credentials.EnrollInstrumentInput{
		PAN: "4111111111111111", Network: "visa", ExpiryMonth: 12, ExpiryYear: 2030, MakeDefault: true,
	})
	require.NoError(t, err)
}

func TestOrchestrator_Prepare_AssemblesUnsignedMandate(t *testing.T) {
	merchant := newFakeMerchant("complete")
	orch, provider := newTestOrchestrator(t, merchant)
	enroll(t, provider)

	result, err := orch.Prepare(context.Background(), []ucpclient.LineItem{{SKU: "PROD-1", UnitPrice: 9.99, Quantity: 2}}, "USD", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, "1111", result.Card.LastFour)
	assert.NotEmpty(t, result.UnsignedContents.PaymentMandateID)
}

func TestOrchestrator_RegisterDeviceKey_PushesToMerchant(t *testing.T) {
	merchant := newFakeMerchant("complete")
	orch, provider := newTestOrchestrator(t, merchant)

	cred, err := provider.EnrollDevice(context.Background(), "a@example.com")
	require.NoError(t, err)

	err = orch.RegisterDeviceKey(context.Background(), "a@example.com", cred.PublicKey)
	require.NoError(t, err)

	merchant.mu.Lock()
	defer merchant.mu.Unlock()
	assert.Equal(t, 1, merchant.deviceKeyCalls)
}

func TestOrchestrator_Confirm_Success(t *testing.T) {
	merchant := newFakeMerchant("complete")
	orch, provider := newTestOrchestrator(t, merchant)
	enroll(t, provider)

	prep, err := orch.Prepare(context.Background(), []ucpclient.LineItem{{SKU: "PROD-1", UnitPrice: 9.99, Quantity: 1}}, "USD", "a@example.com")
	require.NoError(t, err)

	result, err := orch.Confirm(context.Background(), prep.SessionID, "https://shop.example", prep.UnsignedContents)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Outcome)
	require.NotNil(t, result.Receipt)
	assert.Equal(t, "pay-1", result.Receipt.PaymentID)
}

func TestOrchestrator_Confirm_IdempotentOnAlreadyComplete(t *testing.T) {
	merchant := newFakeMerchant("complete")
	orch, provider := newTestOrchestrator(t, merchant)
	enroll(t, provider)

	prep, err := orch.Prepare(context.Background(), []ucpclient.LineItem{{SKU: "PROD-1", UnitPrice: 9.99, Quantity: 1}}, "USD", "a@example.com")
	require.NoError(t, err)

	first, err := orch.Confirm(context.Background(), prep.SessionID, "https://shop.example", prep.UnsignedContents)
	require.NoError(t, err)
	require.Equal(t, "success", first.Outcome)

	second, err := orch.Confirm(context.Background(), prep.SessionID, "https://shop.example", prep.UnsignedContents)
	require.NoError(t, err)
	assert.Equal(t, "success", second.Outcome)
	assert.Equal(t, first.Receipt.PaymentID, second.Receipt.PaymentID)
	assert.Equal(t, 1, merchant.completeCalls, "a cached-complete confirm must not re-hit the merchant")
}

func TestOrchestrator_Confirm_RequiresEscalationThenSubmitOTP(t *testing.T) {
	merchant := newFakeMerchant("requires_escalation")
	orch, provider := newTestOrchestrator(t, merchant)
	enroll(t, provider)

	prep, err := orch.Prepare(context.Background(), []ucpclient.LineItem{{SKU: "PROD-1", UnitPrice: 9.99, Quantity: 1}}, "USD", "a@example.com")
	require.NoError(t, err)

	result, err := orch.Confirm(context.Background(), prep.SessionID, "https://shop.example", prep.UnsignedContents)
	require.NoError(t, err)
	assert.Equal(t, "otp_required", result.Outcome)
	require.NotNil(t, result.Challenge)

	final, err := orch.SubmitOTP(context.Background(), prep.SessionID, "123456")
	require.NoError(t, err)
	assert.Equal(t, "success", final.Outcome)
}
