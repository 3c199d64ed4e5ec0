package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/testtrack-io/testtrack/internal/auth"
	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/services"
)

func registerUserRoutes(api *gin.RouterGroup, svc *services.UserService, provider *iauth.LocalProvider) error {
	handler, err := handlers.NewUserHandler(svc, provider)
	if err != nil {
		return err
	}

	users := api.Group("/users")
	{
		users.GET("", handler.List)
		users.POST("", handler.Create)
		users.GET("/:id", handler.Get)
		users.PATCH("/:id", handler.Update)
		users.DELETE("/:id", handler.Delete)
		users.PUT("/:id/role", handler.SetRole)
		users.PUT("/:id/active", handler.SetActive)
		users.POST("/:id/unlock", handler.Unlock)
	}
	return nil
}
