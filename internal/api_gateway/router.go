package api_gateway

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mortgage-deed-signing/internal/api_gateway/handler"
	"github.com/mortgage-deed-signing/internal/api_gateway/middleware"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
)

// setupRouter configures API routes and middleware for the application.
// Health and metrics stay outside authentication.
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	verifier *middleware.TokenVerifier,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	deedHandler *handler.DeedHandler,
	statsHandler *handler.StatsHandler,
	healthHandler *handler.HealthHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	if m != nil {
		r.Use(m.GinMiddleware())
	}

	api := r.Group("", middleware.Auth(logger, verifier))
	{
		deeds := api.Group("/deeds")
		{
			deeds.POST("", deedHandler.Create)
			deeds.GET("/:id", deedHandler.GetByID)
			deeds.POST("/:id/send-for-signing", deedHandler.SendForSigning)
			deeds.POST("/:id/borrowers/:person_number/sign", deedHandler.SignAsBorrower)
			deeds.POST("/:id/cooperative-signer/sign", deedHandler.SignAsCooperative)
			deeds.GET("/:id/status", deedHandler.GetStatus)
			deeds.GET("/:id/audit-log", deedHandler.AuditLog)
			deeds.GET("/:id/status-durations", deedHandler.StatusDurations)
			deeds.GET("/:id/notifications", deedHandler.Notifications)
		}

		api.GET("/signing/pending", deedHandler.Pending)

		statistics := api.Group("/stats")
		{
			statistics.GET("/summary", statsHandler.Summary)
			statistics.GET("/status-duration", statsHandler.StatusDurations)
			statistics.GET("/timeline", statsHandler.Timeline)
		}
	}

	r.GET("/health", healthHandler.Health)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
