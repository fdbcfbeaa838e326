package httpapi

import (
	"net/http"

	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/orchestrator"
	"ucp-ap2-commerce/internal/shopper/ports"
	"ucp-ap2-commerce/internal/shopper/ucpclient"
	"ucp-ap2-commerce/pkg/apperror"
	"ucp-ap2-commerce/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler wires the Shopper's Credentials Provider and Checkout
// Orchestrator to gin. Unlike the Merchant's Handler, responses here use
// the rich local envelope (response.OK/response.Error), not the minimal
// UCP wire shape: this surface is the Shopper's own API, not part of the
// UCP/AP2 protocol itself.
type Handler struct {
	provider     *credentials.Provider
	orchestrator *orchestrator.Orchestrator
	checkers     []ports.HealthChecker
}

// NewHandler builds a Handler.
func NewHandler(provider *credentials.Provider, orch *orchestrator.Orchestrator, checkers ...ports.HealthChecker) *Handler {
	return &Handler{provider: provider, orchestrator: orch, checkers: checkers}
}

// EnrollUser handles POST /users.
func (h *Handler) EnrollUser(c *gin.Context) {
	var req EnrollUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	u, err := h.provider.EnrollUser(c.Request.Context(), req.Email, req.DisplayName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, u)
}

// EnrollDevice handles POST /users/:email/devices. Once the device
// credential is minted locally, its public key is pushed to the Merchant
// so the AP2 Merchant Agent can verify this payer's mandate signatures
// at Complete time.
func (h *Handler) EnrollDevice(c *gin.Context) {
	email := c.Param("email")
	cred, err := h.provider.EnrollDevice(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.orchestrator.RegisterDeviceKey(c.Request.Context(), email, cred.PublicKey); err != nil {
		response.Error(c, apperror.ErrUpstreamUnavailable(err))
		return
	}
	response.Created(c, cred)
}

// EnrollInstrument handles POST /users/:email/instruments.
func (h *Handler) EnrollInstrument(c *gin.Context) {
	var req EnrollInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	inst, err := h.provider.EnrollInstrument(c.Request.Context(), c.Param("email"), credentials.EnrollInstrumentInput{
		PAN:         req.PAN,
		Network:     req.Network,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		MakeDefault: req.MakeDefault,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inst)
}

// PreparePurchase handles POST /purchases: opens a checkout session on
// the Merchant and returns an unsigned mandate for the caller to review,
// §4.3.
func (h *Handler) PreparePurchase(c *gin.Context) {
	var req PreparePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	lineItems := make([]ucpclient.LineItem, len(req.LineItems))
	for i, li := range req.LineItems {
		lineItems[i] = ucpclient.LineItem{SKU: li.SKU, Name: li.Name, UnitPrice: li.UnitPrice, Quantity: li.Quantity}
	}

	result, err := h.orchestrator.Prepare(c.Request.Context(), lineItems, req.Currency, req.UserEmail)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ConfirmPurchase handles POST /purchases/:session_id/confirm: signs the
// mandate and attempts to complete the session, §4.3.
func (h *Handler) ConfirmPurchase(c *gin.Context) {
	var req ConfirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.orchestrator.Confirm(c.Request.Context(), c.Param("session_id"), req.Origin, req.PaymentMandateContents)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondConfirmResult(c, result)
}

// SubmitOTP handles POST /purchases/:session_id/otp.
func (h *Handler) SubmitOTP(c *gin.Context) {
	var req SubmitOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.orchestrator.SubmitOTP(c.Request.Context(), c.Param("session_id"), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondConfirmResult(c, result)
}

func respondConfirmResult(c *gin.Context, result *orchestrator.ConfirmResult) {
	switch result.Outcome {
	case "success":
		response.OK(c, gin.H{"outcome": result.Outcome, "receipt": result.Receipt})
	case "otp_required":
		response.OK(c, gin.H{"outcome": result.Outcome, "challenge": result.Challenge})
	default:
		msg := ""
		if result.Err != nil {
			msg = result.Err.Error()
		}
		response.OK(c, gin.H{"outcome": result.Outcome, "error": msg})
	}
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
