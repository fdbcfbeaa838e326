package httpapi

import (
	"ucp-ap2-commerce/internal/ap2"
	"ucp-ap2-commerce/internal/merchant/ap2agent"
	"ucp-ap2-commerce/internal/merchant/checkout"
	"ucp-ap2-commerce/internal/merchant/discovery"
	"ucp-ap2-commerce/internal/merchant/ports"
	"ucp-ap2-commerce/internal/merchant/requestlog"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// RouterDeps holds everything SetupRouter needs to wire the Merchant's
// gin engine.
type RouterDeps struct {
	Checkout  *checkout.Service
	Publisher *discovery.Publisher
	Catalog   ports.ProductCatalog
	Keys      *ap2agent.KeyRegistry
	Checkers  []ports.HealthChecker
	Recorder  *requestlog.Recorder
	Logger    zerolog.Logger
}

// SetupRouter builds the gin engine serving the UCP surface.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = ap2.RegisterValidators(v)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recoveryMiddleware(deps.Logger))
	r.Use(requestLoggerMiddleware(deps.Logger))

	h := NewHandler(deps.Checkout, deps.Publisher, deps.Catalog, deps.Keys, deps.Checkers...)

	ucpLog := requestlog.Middleware(deps.Recorder, "ucp")
	ap2Log := requestlog.Middleware(deps.Recorder, "ap2")

	r.GET("/health", h.Health)
	r.GET("/.well-known/ucp", ucpLog, h.Discovery)
	r.GET("/ucp/products/search", ucpLog, h.SearchProducts)
	// Internal hand-off, not part of the UCP/AP2 wire surface: no request-log entry.
	r.POST("/internal/device-keys", h.RegisterDeviceKey)

	sessions := r.Group("/ucp/v1/checkout-sessions")
	{
		// Create/Get carry no mandate yet; Update/Complete are where the
		// AP2 Merchant Agent gets involved, so those two are logged as
		// "ap2" entries per the two request-log kinds §3 distinguishes.
		sessions.POST("", ucpLog, h.CreateSession)
		sessions.GET("/:id", ucpLog, h.GetSession)
		sessions.PUT("/:id", ap2Log, h.UpdateSession)
		sessions.POST("/:id/complete", ap2Log, h.CompleteSession)
	}

	return r
}
