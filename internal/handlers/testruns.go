package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type TestRunHandler struct {
	service *services.TestRunService
	stats   *services.StatisticsService
}

func NewTestRunHandler(service *services.TestRunService, stats *services.StatisticsService) (*TestRunHandler, error) {
	if service == nil || stats == nil {
		return nil, errors.New("testrun handler: service and stats are required")
	}
	return &TestRunHandler{service: service, stats: stats}, nil
}

type createTestRunRequest struct {
	ProjectID   string   `json:"project_id" validate:"required"`
	Name        string   `json:"name" validate:"required,max=300"`
	Description string   `json:"description"`
	AssigneeID  *string  `json:"assignee_id"`
	Environment string   `json:"environment" validate:"max=100"`
	Milestone   string   `json:"milestone" validate:"max=100"`
	TestCaseIDs []string `json:"test_case_ids"`
}

type updateTestRunRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=300"`
	Description *string  `json:"description"`
	Status      *string  `json:"status" validate:"omitempty,oneof=planned in_progress completed archived"`
	AssigneeID  *string  `json:"assignee_id"`
	Environment *string  `json:"environment" validate:"omitempty,max=100"`
	Milestone   *string  `json:"milestone" validate:"omitempty,max=100"`
	TestCaseIDs []string `json:"test_case_ids"`
}

// POST /api/testruns
func (h *TestRunHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body createTestRunRequest
	if !bindAndValidate(c, &body) {
		return
	}

	run, err := h.service.Create(requestContext(c), actor, services.CreateTestRunInput{
		ProjectID:   body.ProjectID,
		Name:        body.Name,
		Description: body.Description,
		AssigneeID:  body.AssigneeID,
		Environment: body.Environment,
		Milestone:   body.Milestone,
		TestCaseIDs: body.TestCaseIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, run)
}

// GET /api/testruns
func (h *TestRunHandler) List(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 100)

	runs, total, err := h.service.List(requestContext(c), c.Query("project_id"), c.Query("status"), page, per)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, runs, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}

// GET /api/testruns/:id
func (h *TestRunHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	run, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, run)
}

// PATCH /api/testruns/:id
func (h *TestRunHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateTestRunRequest
	if !bindAndValidate(c, &body) {
		return
	}

	run, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateTestRunInput{
		Name:        body.Name,
		Description: body.Description,
		Status:      body.Status,
		AssigneeID:  body.AssigneeID,
		Environment: body.Environment,
		Milestone:   body.Milestone,
		TestCaseIDs: body.TestCaseIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, run)
}

// GET /api/testruns/:id/results
func (h *TestRunHandler) Results(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	results, err := h.service.Results(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, results)
}

// GET /api/testruns/:id/stats
func (h *TestRunHandler) Stats(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	stats, err := h.stats.ForTestRun(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// DELETE /api/testruns/:id
func (h *TestRunHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
