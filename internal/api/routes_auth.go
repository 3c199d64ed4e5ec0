package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
)

func registerAuthRoutes(r *gin.Engine, api *gin.RouterGroup, handler *handlers.AuthHandler, limiter gin.HandlerFunc) {
	// Public endpoints carry a stricter rate limit than the rest of the API.
	auth := r.Group("/api/auth")
	auth.Use(limiter)
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.POST("/password-reset/request", handler.RequestPasswordReset)
		auth.POST("/password-reset/confirm", handler.ConfirmPasswordReset)
	}

	api.GET("/auth/me", handler.Me)
	api.POST("/auth/password", handler.ChangePassword)
}
