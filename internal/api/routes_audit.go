package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/services"
)

func registerAuditRoutes(api *gin.RouterGroup, svc *services.AuditService) error {
	handler, err := handlers.NewAuditHandler(svc)
	if err != nil {
		return err
	}

	api.GET("/audit-logs", handler.List)
	return nil
}
