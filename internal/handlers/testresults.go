package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type TestResultHandler struct {
	service *services.TestResultService
}

func NewTestResultHandler(service *services.TestResultService) (*TestResultHandler, error) {
	if service == nil {
		return nil, errors.New("testresult handler: service is required")
	}
	return &TestResultHandler{service: service}, nil
}

type recordTestResultRequest struct {
	TestRunID     string  `json:"testrun_id" validate:"required"`
	TestCaseID    string  `json:"testcase_id" validate:"required"`
	Status        string  `json:"status" validate:"required,oneof=untested passed failed blocked skipped"`
	ActualResult  string  `json:"actual_result"`
	Comment       string  `json:"comment"`
	DefectURL     string  `json:"defect_url" validate:"omitempty,url"`
	ExecutionTime float64 `json:"execution_time" validate:"gte=0"`
}

type updateTestResultRequest struct {
	Status        *string  `json:"status" validate:"omitempty,oneof=untested passed failed blocked skipped"`
	ActualResult  *string  `json:"actual_result"`
	Comment       *string  `json:"comment"`
	DefectURL     *string  `json:"defect_url" validate:"omitempty,url"`
	ExecutionTime *float64 `json:"execution_time" validate:"omitempty,gte=0"`
}

// POST /api/testresults
func (h *TestResultHandler) Record(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body recordTestResultRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.service.Record(requestContext(c), actor, services.RecordTestResultInput{
		TestRunID:     body.TestRunID,
		TestCaseID:    body.TestCaseID,
		Status:        body.Status,
		ActualResult:  body.ActualResult,
		Comment:       body.Comment,
		DefectURL:     body.DefectURL,
		ExecutionTime: body.ExecutionTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// GET /api/testresults
func (h *TestResultHandler) List(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 100)

	results, total, err := h.service.List(requestContext(c), services.TestResultFilters{
		TestRunID:  c.Query("testrun_id"),
		TestCaseID: c.Query("testcase_id"),
		Status:     c.Query("status"),
		ExecutedBy: c.Query("executed_by"),
	}, page, per)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, results, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}

// GET /api/testresults/:id
func (h *TestResultHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	result, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// PATCH /api/testresults/:id
func (h *TestResultHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateTestResultRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateTestResultInput{
		Status:        body.Status,
		ActualResult:  body.ActualResult,
		Comment:       body.Comment,
		DefectURL:     body.DefectURL,
		ExecutionTime: body.ExecutionTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// DELETE /api/testresults/:id
func (h *TestResultHandler) Delete(c *gin.Context) {
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
