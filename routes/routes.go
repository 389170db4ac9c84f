package routes

import (
	"time"

	"skybook/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterBookingRoutes registers the customer-facing booking endpoints.
func RegisterBookingRoutes(r *gin.Engine) {
	api := r.Group("/api/bookings")
	{
		api.POST("", handlers.CreateBookingHandler)
		api.GET("/:reference", handlers.GetBookingHandler)
		api.POST("/:reference/retry-payment", handlers.RetryPaymentHandler)
		api.DELETE("/:reference", handlers.CancelBookingHandler)
	}
}

// RegisterPaymentRoutes registers payment status lookups.
func RegisterPaymentRoutes(r *gin.Engine) {
	api := r.Group("/api/payments")
	{
		api.GET("/:id/status", handlers.PaymentStatusHandler)
	}
}

// RegisterCallbackRoutes registers the gateway-facing endpoints. These
// are signature-authenticated by the handlers, never by middleware.
func RegisterCallbackRoutes(r *gin.Engine) {
	cb := r.Group("/callbacks")
	{
		cb.GET("/vnpay/ipn", handlers.VNPayIPNHandler)
		cb.GET("/vnpay/return", handlers.VNPayReturnHandler)
		cb.POST("/momo/ipn", handlers.MoMoIPNHandler)
		cb.POST("/zalopay", handlers.ZaloPayCallbackHandler)
	}
}

// RegisterHealthRoute registers the liveness endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", handlers.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterBookingRoutes(r)
	RegisterPaymentRoutes(r)
	RegisterCallbackRoutes(r)
	RegisterHealthRoute(r)
}
