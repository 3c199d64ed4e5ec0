package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
)

func registerTestRunRoutes(api *gin.RouterGroup, svc *serviceSet) error {
	handler, err := handlers.NewTestRunHandler(svc.testRuns, svc.statistics)
	if err != nil {
		return err
	}
	exportHandler, err := handlers.NewExportHandler(svc.exports)
	if err != nil {
		return err
	}

	testruns := api.Group("/testruns")
	{
		testruns.GET("", handler.List)
		testruns.POST("", handler.Create)
		testruns.GET("/:id", handler.Get)
		testruns.PATCH("/:id", handler.Update)
		testruns.DELETE("/:id", handler.Delete)
		testruns.GET("/:id/results", handler.Results)
		testruns.GET("/:id/stats", handler.Stats)
		testruns.GET("/:id/export/results.csv", exportHandler.TestResultsCSV)
	}
	return nil
}
