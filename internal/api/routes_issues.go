package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/internal/storage"
)

func registerIssueRoutes(api *gin.RouterGroup, svc *services.IssueService, store storage.BlobStore) error {
	handler, err := handlers.NewIssueHandler(svc, store)
	if err != nil {
		return err
	}

	issues := api.Group("/issues")
	{
		issues.GET("", handler.List)
		issues.POST("", handler.Create)
		issues.GET("/:id", handler.Get)
		issues.PATCH("/:id", handler.Update)
		issues.DELETE("/:id", handler.Delete)
		issues.PATCH("/:id/status", handler.SetStatus)
		issues.GET("/:id/history", handler.History)
		issues.POST("/:id/attachments", handler.Upload)
	}
	return nil
}
