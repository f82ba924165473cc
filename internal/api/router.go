package api

import (
	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/ragdesk/internal/api/backend"
	"github.com/liliang-cn/ragdesk/internal/api/middleware"
	"github.com/liliang-cn/ragdesk/internal/devbackend"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(svc *devbackend.Service, logger *zap.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "RAG Chatbot API", "status": "running"})
	})

	handler := backend.NewHandler(svc)
	handler.RegisterRoutes(r.Group("/api"))

	return r
}
