// Package httpapi exposes the Shopper Service's own local API: a thin
// REST surface over the Credentials Provider and Checkout Orchestrator
// for a storefront UI or CLI to drive enrollment and purchases. It is not
// part of the UCP/AP2 wire protocol; that surface is spoken outbound by
// ucpclient.Client against the Merchant.
package httpapi

import (
	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/orchestrator"
	"ucp-ap2-commerce/internal/shopper/ports"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// RouterDeps holds everything SetupRouter needs to wire the Shopper's gin
// engine.
type RouterDeps struct {
	Provider     *credentials.Provider
	Orchestrator *orchestrator.Orchestrator
	Checkers     []ports.HealthChecker
	Logger       zerolog.Logger
}

// SetupRouter builds the gin engine serving the Shopper's local API.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = ap2.RegisterValidators(v)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recoveryMiddleware(deps.Logger))
	r.Use(requestLoggerMiddleware(deps.Logger))

	h := NewHandler(deps.Provider, deps.Orchestrator, deps.Checkers...)

	r.GET("/health", h.Health)

	users := r.Group("/users")
	{
		users.POST("", h.EnrollUser)
		users.POST("/:email/devices", h.EnrollDevice)
		users.POST("/:email/instruments", h.EnrollInstrument)
	}

	purchases := r.Group("/purchases")
	{
		purchases.POST("", h.PreparePurchase)
		purchases.POST("/:session_id/confirm", h.ConfirmPurchase)
		purchases.POST("/:session_id/otp", h.SubmitOTP)
	}

	return r
}
