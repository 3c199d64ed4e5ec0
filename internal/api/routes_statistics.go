package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/services"
)

func registerStatisticsRoutes(api *gin.RouterGroup, svc *services.StatisticsService) error {
	handler, err := handlers.NewStatisticsHandler(svc)
	if err != nil {
		return err
	}

	stats := api.Group("/statistics")
	{
		stats.GET("/dashboard", handler.Dashboard)
		stats.GET("/projects/:id", handler.Project)
		stats.GET("/testruns/:id", handler.TestRun)
	}
	return nil
}
