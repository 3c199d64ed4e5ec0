package api

import (
	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/services"
)

func registerTestCaseRoutes(api *gin.RouterGroup, svc *services.TestCaseService) error {
	handler, err := handlers.NewTestCaseHandler(svc)
	if err != nil {
		return err
	}

	testcases := api.Group("/testcases")
	{
		testcases.GET("", handler.List)
		testcases.POST("", handler.Create)
		testcases.GET("/:id", handler.Get)
		testcases.PATCH("/:id", handler.Update)
		testcases.DELETE("/:id", handler.Delete)
		testcases.GET("/:id/history", handler.History)
	}
	return nil
}
