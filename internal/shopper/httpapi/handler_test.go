package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ucp-ap2-commerce/internal/shopper/adapter/storage/memstore"
	"ucp-ap2-commerce/internal/shopper/ap2agent"
	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/discovery"
	"ucp-ap2-commerce/internal/shopper/orchestrator"
	"ucp-ap2-commerce/internal/shopper/tokenization"
	"ucp-ap2-commerce/internal/shopper/ucpclient"
	"ucp-ap2-commerce/internal/ucp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e"

// newTestRouter wires a real Provider and Orchestrator against a fake
// Merchant so the Shopper's own HTTP surface can be exercised end to end.
func newTestRouter(t *testing.T) (*gin.Engine, *credentials.Provider) {
	t.Helper()

	merchant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/.well-known/ucp":
			var p ucp.Profile
			p.Merchant = ucp.MerchantInfo{ID: "merchant-1"}
			_ = json.NewEncoder(w).Encode(p)
		case r.URL.Path == "/ucp/v1/checkout-sessions":
			var req ucpclient.CreateSessionRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(ucpclient.Session{ID: "sess-1", Status: "incomplete", Currency: req.Currency})
		case r.URL.Path == "/ucp/v1/checkout-sessions/sess-1":
			_ = json.NewEncoder(w).Encode(ucpclient.Session{ID: "sess-1", Status: "ready_for_complete"})
		case r.URL.Path == "/ucp/v1/checkout-sessions/sess-1/complete":
			_ = json.NewEncoder(w).Encode(ucpclient.Session{
				ID: "sess-1", Status: "complete",
				Receipt: &ucpclient.Receipt{MandateID: "mandate-1", PaymentID: "pay-1", IssuedAt: time.Now().UTC()},
			})
		case r.URL.Path == "/internal/device-keys":
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(merchant.Close)

	cipher, err := credentials.NewPANCipher(testKeyHex)
	require.NoError(t, err)
	vault := credentials.NewDeviceKeyVault()
	provider := credentials.New(
		memstore.NewUserStore(), memstore.NewCredentialStore(), memstore.NewInstrumentStore(),
		tokenization.NoopAdapter{}, cipher, vault, zerolog.Nop(),
	)
	consumer := ap2agent.New(provider)
	disco := discovery.New(merchant.URL, 5*time.Second)
	client := ucpclient.New(merchant.URL)
	orch := orchestrator.New(client, disco, consumer, provider, memstore.NewMandateStore(), tokenization.NoopAdapter{}, zerolog.Nop())

	router := SetupRouter(RouterDeps{Provider: provider, Orchestrator: orch, Logger: zerolog.Nop()})
	return router, provider
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEnrollUser_Success(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/users", EnrollUserRequest{Email: "a@example.com", DisplayName: "Alice"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestEnrollUser_RejectsInvalidEmail(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/users", EnrollUserRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFullPurchaseFlow_PrepareThenConfirm(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/users", EnrollUserRequest{Email: "a@example.com", DisplayName: "Alice"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/users/a@example.com/devices", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/users/a@example.com/instruments", EnrollInstrumentRequest{
		PAN: "4111111111111111", Network: "visa", ExpiryMonth: 12, ExpiryYear: 2030, MakeDefault: true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/purchases", PreparePurchaseRequest{
		LineItems: []LineItemRequest{{SKU: "PROD-1", UnitPrice: 9.99, Quantity: 1}},
		Currency:  "USD",
		UserEmail: "a@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var prepared struct {
		Data orchestrator.PrepareResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prepared))
	require.Equal(t, "sess-1", prepared.Data.SessionID)

	w = doJSON(t, router, http.MethodPost, "/purchases/sess-1/confirm", ConfirmPurchaseRequest{
		Origin:                 "https://shop.example",
		PaymentMandateContents: prepared.Data.UnsignedContents,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var confirmed struct {
		Data struct {
			Outcome string `json:"outcome"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	assert.Equal(t, "success", confirmed.Data.Outcome)
}

func TestHealth_ReportsHealthyWithNoCheckers(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
