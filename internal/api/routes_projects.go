package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
)

func registerProjectRoutes(api *gin.RouterGroup, svc *serviceSet) error {
	projectHandler, err := handlers.NewProjectHandler(svc.projects)
	if err != nil {
		return err
	}
	folderHandler, err := handlers.NewFolderHandler(svc.folders)
	if err != nil {
		return err
	}
	exportHandler, err := handlers.NewExportHandler(svc.exports)
	if err != nil {
		return err
	}
	importHandler, err := handlers.NewImportHandler(svc.imports)
	if err != nil {
		return err
	}

	projects := api.Group("/projects")
	{
		projects.GET("", projectHandler.List)
		projects.POST("", projectHandler.Create)
		projects.GET("/:id", projectHandler.Get)
		projects.PATCH("/:id", projectHandler.Update)
		projects.DELETE("/:id", projectHandler.Delete)

		projects.GET("/:id/export/testcases.csv", exportHandler.TestCasesCSV)
		projects.GET("/:id/export/testcases.xlsx", exportHandler.TestCasesXLSX)
		projects.GET("/:id/export/testruns.csv", exportHandler.TestRunsCSV)
		projects.GET("/:id/export/stats.csv", exportHandler.ProjectStatsCSV)
		projects.POST("/:id/import/testcases", importHandler.TestCasesCSV)
	}

	folders := api.Group("/folders")
	{
		folders.GET("", folderHandler.List)
		folders.POST("", folderHandler.Create)
		folders.GET("/:id", folderHandler.Get)
		folders.PATCH("/:id", folderHandler.Update)
		folders.DELETE("/:id", folderHandler.Delete)
	}
	return nil
}
