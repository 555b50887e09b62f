package router

import (
	"github.com/gin-gonic/gin"

	"docstream/internal/handler"
	"docstream/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	corsOrigins []string,
	batchH *handler.BatchHandler,
	documentH *handler.DocumentHandler,
	eventsH *handler.EventsHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(corsOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Batch orchestration
	batches := v1.Group("/batches")
	batches.POST("", batchH.Create)
	batches.GET("/:id", batchH.GetByID)
	batches.POST("/:id/cancel", batchH.Cancel)
	batches.GET("/:id/export", batchH.Export)

	// Document storage and single-document extraction
	documents := v1.Group("/documents")
	documents.POST("", documentH.Upload)
	documents.DELETE("/:id", documentH.Delete)
	documents.POST("/:id/process", documentH.Process)
	documents.GET("/:id/process/stream", documentH.ProcessStream)

	v1.GET("/jobs/:id", documentH.GetJob)
	v1.POST("/jobs/:id/cancel", documentH.CancelJob)

	// Live event subscriptions
	v1.GET("/events/ws", eventsH.Serve)

	return r
}
