package httpapi

import (
	"net/http"
	"strconv"

	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/ap2agent"
	"ucp-ap2-commerce/internal/merchant/checkout"
	"ucp-ap2-commerce/internal/merchant/discovery"
	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"
	"ucp-ap2-commerce/internal/merchant/requestlog"
	"ucp-ap2-commerce/pkg/apperror"
	"ucp-ap2-commerce/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler wires the Checkout Session Manager and discovery surface to gin.
type Handler struct {
	checkout  *checkout.Service
	publisher *discovery.Publisher
	catalog   ports.ProductCatalog
	checkers  []ports.HealthChecker
	keys      *ap2agent.KeyRegistry
}

// NewHandler builds a Handler. keys may be nil if device-key registration
// is wired some other way (e.g. pre-seeded in tests).
func NewHandler(svc *checkout.Service, publisher *discovery.Publisher, catalog ports.ProductCatalog, keys *ap2agent.KeyRegistry, checkers ...ports.HealthChecker) *Handler {
	return &Handler{checkout: svc, publisher: publisher, catalog: catalog, keys: keys, checkers: checkers}
}

// RegisterDeviceKeyRequest is the body of the internal device-key hand-off
// endpoint: the Shopper's Credentials Provider pushes a user's enrolled
// device public key here so the Merchant Agent has it on file for
// signature verification at Complete, §4.2 step 1. This stands in for the
// out-of-band or shared-directory hand-off a multi-merchant deployment
// would use; it is internal plumbing between this demonstrator's two
// processes, not part of the UCP/AP2 wire protocol itself.
type RegisterDeviceKeyRequest struct {
	PayerEmail string `json:"payer_email" binding:"required,email"`
	PublicKey  string `json:"public_key" binding:"required"`
}

// RegisterDeviceKey handles POST /internal/device-keys.
func (h *Handler) RegisterDeviceKey(c *gin.Context) {
	if h.keys == nil {
		response.WireError(c, apperror.InternalError(nil))
		return
	}

	var req RegisterDeviceKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WireError(c, apperror.Validation(err.Error()))
		return
	}

	key, err := ap2.DecodeB64(req.PublicKey)
	if err != nil {
		response.WireError(c, apperror.ErrInvalidInput("public_key must be url-safe base64"))
		return
	}

	h.keys.Register(req.PayerEmail, key)
	c.JSON(http.StatusNoContent, nil)
}

// Discovery handles GET /.well-known/ucp.
func (h *Handler) Discovery(c *gin.Context) {
	c.JSON(http.StatusOK, h.publisher.Profile())
}

// SearchProducts handles GET /ucp/products/search.
func (h *Handler) SearchProducts(c *gin.Context) {
	q := c.Query("q")
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := h.catalog.Search(c.Request.Context(), q, limit)
	if err != nil {
		response.WireError(c, apperror.ErrUpstreamUnavailable(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// CreateSession handles POST /ucp/v1/checkout-sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WireError(c, apperror.Validation(err.Error()))
		return
	}

	lineItems := make([]domain.LineItem, len(req.LineItems))
	for i, li := range req.LineItems {
		lineItems[i] = domain.LineItem{SKU: li.SKU, Name: li.Name, UnitPrice: li.UnitPrice, Quantity: li.Quantity}
	}

	sess, err := h.checkout.Create(c.Request.Context(), checkout.CreateInput{
		LineItems:  lineItems,
		BuyerEmail: req.BuyerEmail,
		Currency:   req.Currency,
	})
	if err != nil {
		response.WireError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// GetSession handles GET /ucp/v1/checkout-sessions/:id.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.checkout.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WireError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// UpdateSession handles PUT /ucp/v1/checkout-sessions/:id.
func (h *Handler) UpdateSession(c *gin.Context) {
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WireError(c, apperror.Validation(err.Error()))
		return
	}

	mandate := &ap2.PaymentMandate{
		PaymentMandateContents: req.PaymentMandateContents,
		UserAuthorization:      req.UserAuthorization,
	}
	requestlog.SetMandateID(c, mandate.PaymentMandateContents.PaymentMandateID)

	sess, err := h.checkout.Update(c.Request.Context(), c.Param("id"), mandate)
	if err != nil {
		response.WireError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// CompleteSession handles POST /ucp/v1/checkout-sessions/:id/complete.
func (h *Handler) CompleteSession(c *gin.Context) {
	otpCode := c.Query("otp_code")

	sess, err := h.checkout.Complete(c.Request.Context(), c.Param("id"), otpCode)
	if err != nil {
		response.WireError(c, err)
		return
	}
	if sess.Mandate != nil {
		requestlog.SetMandateID(c, sess.Mandate.PaymentMandateContents.PaymentMandateID)
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	type depStatus struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	deps := make(map[string]depStatus, len(h.checkers))
	allHealthy := true
	for _, checker := range h.checkers {
		if err := checker.Ping(c.Request.Context()); err != nil {
			deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
			allHealthy = false
		} else {
			deps[checker.Name()] = depStatus{Status: "healthy"}
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}
