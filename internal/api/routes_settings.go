package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/services"
)

func registerSettingsRoutes(api *gin.RouterGroup, svc *services.NotificationSettingService) error {
	handler, err := handlers.NewNotificationSettingHandler(svc)
	if err != nil {
		return err
	}

	api.GET("/me/notification-settings", handler.Get)
	api.PUT("/me/notification-settings", handler.Update)
	return nil
}
