package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/askbase/askbase/internal/middleware"
	"github.com/askbase/askbase/internal/ratelimit"
)

type RouterDeps struct {
	Auth          *AuthHandler
	Train         *TrainHandler
	Ask           *AskHandler
	Documents     *DocumentHandler
	Conversations *ConversationHandler
	Health        *HealthHandler
	Limiter       *ratelimit.Limiter
	JWTSecret     []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.Health.Healthz)

	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/train/text", middleware.RateLimit(deps.Limiter, "train"), deps.Train.TrainText)
	authGroup.POST("/train/file", middleware.RateLimit(deps.Limiter, "train"), deps.Train.TrainFile)
	authGroup.POST("/ask", middleware.RateLimit(deps.Limiter, "ask"), deps.Ask.Ask)

	authGroup.GET("/documents", deps.Documents.List)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.GET("/conversations", deps.Conversations.List)
	authGroup.GET("/conversations/:id", deps.Conversations.Get)
	authGroup.DELETE("/conversations/:id", deps.Conversations.Delete)
}
