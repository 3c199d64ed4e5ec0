package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type StatisticsHandler struct {
	service *services.StatisticsService
}

func NewStatisticsHandler(service *services.StatisticsService) (*StatisticsHandler, error) {
	if service == nil {
		return nil, errors.New("statistics handler: service is required")
	}
	return &StatisticsHandler{service: service}, nil
}

// GET /api/statistics/dashboard
func (h *StatisticsHandler) Dashboard(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	stats, err := h.service.Dashboard(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/statistics/projects/:id
func (h *StatisticsHandler) Project(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	stats, err := h.service.ForProject(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/statistics/testruns/:id
func (h *StatisticsHandler) TestRun(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	stats, err := h.service.ForTestRun(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}
