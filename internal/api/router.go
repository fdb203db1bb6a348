package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"catalogsync/internal/logger"
	"catalogsync/internal/metrics"
)

func NewRouter(svc SyncService, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.Recovery(log), logger.GinMiddleware(log))

	h := NewHandler(svc)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		sync := api.Group("/sync")
		sync.POST("", h.StartSync)
		sync.GET("/status", h.Status)
		sync.GET("/history", h.History)
		sync.POST("/reset", h.Reset)
		sync.GET("/config", h.GetConfig)
		sync.PUT("/config", h.UpdateConfig)

		cat := api.Group("/catalog")
		cat.GET("", h.ListCatalog)
		cat.GET("/integrity", h.Integrity)
	}

	return r
}
