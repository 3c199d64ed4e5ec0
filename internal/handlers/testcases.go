package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type TestCaseHandler struct {
	service *services.TestCaseService
}

func NewTestCaseHandler(service *services.TestCaseService) (*TestCaseHandler, error) {
	if service == nil {
		return nil, errors.New("testcase handler: service is required")
	}
	return &TestCaseHandler{service: service}, nil
}

type createTestCaseRequest struct {
	ProjectID      string  `json:"project_id" validate:"required"`
	FolderID       *string `json:"folder_id"`
	Title          string  `json:"title" validate:"required,max=300"`
	Description    string  `json:"description"`
	Preconditions  string  `json:"preconditions"`
	Steps          string  `json:"steps"`
	ExpectedResult string  `json:"expected_result"`
	Priority       string  `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	TestType       string  `json:"test_type" validate:"omitempty,oneof=functional regression smoke integration performance"`
	Tags           string  `json:"tags"`
}

type updateTestCaseRequest struct {
	FolderID       *string `json:"folder_id"`
	Title          *string `json:"title" validate:"omitempty,max=300"`
	Description    *string `json:"description"`
	Preconditions  *string `json:"preconditions"`
	Steps          *string `json:"steps"`
	ExpectedResult *string `json:"expected_result"`
	Priority       *string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	TestType       *string `json:"test_type" validate:"omitempty,oneof=functional regression smoke integration performance"`
	Tags           *string `json:"tags"`
	ChangeNote     string  `json:"change_note" validate:"max=500"`
}

// POST /api/testcases
func (h *TestCaseHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body createTestCaseRequest
	if !bindAndValidate(c, &body) {
		return
	}

	testCase, err := h.service.Create(requestContext(c), actor, services.CreateTestCaseInput{
		ProjectID:      body.ProjectID,
		FolderID:       body.FolderID,
		Title:          body.Title,
		Description:    body.Description,
		Preconditions:  body.Preconditions,
		Steps:          body.Steps,
		ExpectedResult: body.ExpectedResult,
		Priority:       body.Priority,
		TestType:       body.TestType,
		Tags:           body.Tags,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, testCase)
}

// GET /api/testcases
func (h *TestCaseHandler) List(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 100)

	testCases, total, err := h.service.List(requestContext(c), services.TestCaseFilters{
		ProjectID: c.Query("project_id"),
		FolderID:  c.Query("folder_id"),
		Priority:  c.Query("priority"),
		TestType:  c.Query("test_type"),
		Query:     c.Query("q"),
	}, page, per)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, testCases, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}

// GET /api/testcases/:id
func (h *TestCaseHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	testCase, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, testCase)
}

// PATCH /api/testcases/:id
func (h *TestCaseHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateTestCaseRequest
	if !bindAndValidate(c, &body) {
		return
	}

	testCase, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateTestCaseInput{
		FolderID:       body.FolderID,
		Title:          body.Title,
		Description:    body.Description,
		Preconditions:  body.Preconditions,
		Steps:          body.Steps,
		ExpectedResult: body.ExpectedResult,
		Priority:       body.Priority,
		TestType:       body.TestType,
		Tags:           body.Tags,
		ChangeNote:     body.ChangeNote,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, testCase)
}

// GET /api/testcases/:id/history
func (h *TestCaseHandler) History(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	records, err := h.service.History(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, records)
}

// DELETE /api/testcases/:id
func (h *TestCaseHandler) Delete(c *gin.Context) {
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
