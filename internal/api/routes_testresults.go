package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/services"
)

func registerTestResultRoutes(api *gin.RouterGroup, svc *services.TestResultService) error {
	handler, err := handlers.NewTestResultHandler(svc)
	if err != nil {
		return err
	}

	results := api.Group("/testresults")
	{
		results.GET("", handler.List)
		results.POST("", handler.Record)
		results.GET("/:id", handler.Get)
		results.PATCH("/:id", handler.Update)
		results.DELETE("/:id", handler.Delete)
	}
	return nil
}
