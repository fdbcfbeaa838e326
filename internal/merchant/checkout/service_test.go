package checkout

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/adapter/storage/memstore"
	"ucp-ap2-commerce/internal/merchant/ap2agent"
	"ucp-ap2-commerce/internal/merchant/discovery"
	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"
	"ucp-ap2-commerce/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memChallengeStore struct {
	byID map[string]*domain.StepUpChallenge
}

func newMemChallengeStore() *memChallengeStore {
	return &memChallengeStore{byID: map[string]*domain.StepUpChallenge{}}
}

func (m *memChallengeStore) Create(ctx context.Context, c *domain.StepUpChallenge) error {
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memChallengeStore) GetByID(ctx context.Context, id string) (*domain.StepUpChallenge, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memChallengeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	c, ok := m.byID[id]
	if !ok {
		return 0, ports.ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (m *memChallengeStore) UpdateStatus(ctx context.Context, id string, status string) error {
	c, ok := m.byID[id]
	if !ok {
		return ports.ErrNotFound
	}
	c.Status = status
	return nil
}

type testHarness struct {
	service   *Service
	agent     *ap2agent.Agent
	sessions  *memstore.SessionStore
	keys      *ap2agent.KeyRegistry
	priv      ed25519.PrivateKey
	payerMail string
	clock     *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newHarness(t *testing.T, stepUpEnabled bool) *testHarness {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	keys := ap2agent.NewKeyRegistry()
	payerMail := "shopper@example.com"
	keys.Register(payerMail, pub)

	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	agent := ap2agent.New(keys, nil, ap2agent.StepUpPolicy{
		Enabled:         stepUpEnabled,
		ThresholdSmall:  2, // >1 forces escalation deterministically in tests
		ThresholdLarge:  2,
		AmountThreshold: 100.00,
		DemoMode:        true,
		ChallengeTTL:    5 * time.Minute,
		MaxAttempts:     3,
		MerchantID:      "merchant-demo",
	})
	agent.SetClock(clock.now)

	sessions := memstore.New()
	catalog := discovery.NewFixtureCatalog()

	svc := New(sessions, catalog, agent,
		WithChallengeStore(newMemChallengeStore()),
		WithClock(clock.now),
	)

	return &testHarness{
		service:   svc,
		agent:     agent,
		sessions:  sessions,
		keys:      keys,
		priv:      priv,
		payerMail: payerMail,
		clock:     clock,
	}
}

func (h *testHarness) createSession(t *testing.T, total float64) *domain.CheckoutSession {
	t.Helper()
	sess, err := h.service.Create(context.Background(), CreateInput{
		LineItems:  []domain.LineItem{{SKU: "PROD-001", Name: "Widget", UnitPrice: total, Quantity: 1}},
		BuyerEmail: h.payerMail,
		Currency:   "SGD",
	})
	require.NoError(t, err)
	return sess
}

func (h *testHarness) mandateFor(t *testing.T, sess *domain.CheckoutSession) *ap2.PaymentMandate {
	t.Helper()
	contents := ap2.PaymentMandateContents{
		PaymentMandateID: "pm-" + sess.ID,
		Timestamp:        h.clock.now(),
		PaymentDetailsID: "pd-" + sess.ID,
		PaymentDetailsTotal: ap2.PaymentItem{
			Label:  "total",
			Amount: ap2.PaymentCurrencyAmount{Currency: sess.Currency, Value: sess.Totals.Total},
		},
		PaymentResponse: ap2.PaymentResponse{
			RequestID:  "req-" + sess.ID,
			MethodName: "card",
			Details: ap2.PaymentMethodDetails{
				Token:        "1234567890123456",
				Cryptogram:   "ABCDEF0123456789ABCDEF0123456789",
				CardLastFour: "5678",
				CardNetwork:  "mastercard",
			},
			PayerEmail: h.payerMail,
			PayerName:  "A Shopper",
		},
		MerchantAgent: "merchant-demo",
	}
	digest, err := ap2.CanonicalDigest(contents)
	require.NoError(t, err)
	sig := ed25519.Sign(h.priv, digest)
	return &ap2.PaymentMandate{PaymentMandateContents: contents, UserAuthorization: ap2.EncodeB64(sig)}
}

func TestCreate_ComputesTotals(t *testing.T) {
	h := newHarness(t, false)
	sess, err := h.service.Create(context.Background(), CreateInput{
		LineItems:  []domain.LineItem{{SKU: "PROD-001", Name: "Widget", UnitPrice: 4.99, Quantity: 2}},
		BuyerEmail: "a@example.com",
		Currency:   "SGD",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIncomplete, sess.Status)
	assert.InDelta(t, 9.98, sess.Totals.Total, 1e-9)
}

func TestCreate_RejectsEmptyCart(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.service.Create(context.Background(), CreateInput{BuyerEmail: "a@example.com", Currency: "SGD"})
	require.Error(t, err)
	assert.Equal(t, "INVALID_INPUT", err.(*apperror.AppError).Kind)
}

func TestHappyPath_NoStepUp(t *testing.T) {
	h := newHarness(t, false)
	sess := h.createSession(t, 9.98)
	mandate := h.mandateFor(t, sess)

	updated, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyForComplete, updated.Status)

	completed, err := h.service.Complete(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, completed.Status)
	require.NotNil(t, completed.Receipt)
	assert.Equal(t, domain.ReceiptStatusSuccess, completed.Receipt.StatusCode)
	assert.InDelta(t, 9.98, completed.Receipt.Amount.Value, 1e-9)
}

func TestUpdate_MandateSessionMismatch_TotalDiffers(t *testing.T) {
	h := newHarness(t, false)
	sess := h.createSession(t, 9.98)
	mandate := h.mandateFor(t, sess)
	mandate.PaymentMandateContents.PaymentDetailsTotal.Amount.Value = 19.98

	_, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.Error(t, err)
	assert.Equal(t, "MANDATE_SESSION_MISMATCH", err.(*apperror.AppError).Kind)

	got, getErr := h.service.Get(context.Background(), sess.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusIncomplete, got.Status)
}

func TestComplete_SignatureFailure(t *testing.T) {
	h := newHarness(t, false)
	sess := h.createSession(t, 9.98)
	mandate := h.mandateFor(t, sess)
	mandate.UserAuthorization = ap2.EncodeB64(make([]byte, ed25519.SignatureSize))

	_, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.NoError(t, err)

	completed, err := h.service.Complete(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, completed.Status)
	require.NotNil(t, completed.Receipt)
	assert.Equal(t, domain.ReceiptStatusFailed, completed.Receipt.StatusCode)
}

func TestStepUp_RequiredThenValidOTP(t *testing.T) {
	h := newHarness(t, true)
	sess := h.createSession(t, 9.98)
	mandate := h.mandateFor(t, sess)

	_, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.NoError(t, err)

	escalated, err := h.service.Complete(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRequiresEscalation, escalated.Status)
	require.NotNil(t, escalated.Receipt)
	assert.Equal(t, domain.ReceiptStatusOTPRequired, escalated.Receipt.StatusCode)
	require.NotNil(t, escalated.Receipt.OTPChallenge)

	completed, err := h.service.Complete(context.Background(), sess.ID, "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, completed.Status)
}

func TestStepUp_ExhaustedAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, true)
	h.agent = ap2agent.New(h.keys, nil, ap2agent.StepUpPolicy{
		Enabled: true, ThresholdSmall: 2, ThresholdLarge: 2, AmountThreshold: 100,
		DemoMode: false, ChallengeTTL: 5 * time.Minute, MaxAttempts: 3, MerchantID: "merchant-demo",
	})
	h.agent.SetClock(h.clock.now)
	h.service = New(h.sessions, discovery.NewFixtureCatalog(), h.agent,
		WithChallengeStore(newMemChallengeStore()), WithClock(h.clock.now))

	sess := h.createSession(t, 9.98)
	mandate := h.mandateFor(t, sess)
	_, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.NoError(t, err)

	_, err = h.service.Complete(context.Background(), sess.ID, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := h.service.Complete(context.Background(), sess.ID, "000000")
		require.Error(t, err)
		assert.Equal(t, "INVALID_OTP", err.(*apperror.AppError).Kind)
	}

	final, err := h.service.Complete(context.Background(), sess.ID, "000000")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, domain.ReceiptStatusFailed, final.Receipt.StatusCode)
}

func TestComplete_IdempotentOnCompleteSession(t *testing.T) {
	h := newHarness(t, false)
	sess := h.createSession(t, 9.98)
	mandate := h.mandateFor(t, sess)
	_, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.NoError(t, err)

	first, err := h.service.Complete(context.Background(), sess.ID, "")
	require.NoError(t, err)

	second, err := h.service.Complete(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.Receipt.PaymentID, second.Receipt.PaymentID)
}

func TestComplete_OnIncompleteSessionIsInvalidState(t *testing.T) {
	h := newHarness(t, false)
	sess := h.createSession(t, 9.98)

	_, err := h.service.Complete(context.Background(), sess.ID, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_STATE", err.(*apperror.AppError).Kind)
}

func TestUpdate_IdempotentOnByteIdenticalMandate(t *testing.T) {
	h := newHarness(t, false)
	sess := h.createSession(t, 9.98)
	mandate := h.mandateFor(t, sess)

	first, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.NoError(t, err)

	second, err := h.service.Update(context.Background(), sess.ID, mandate)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
}
