package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type FolderHandler struct {
	service *services.FolderService
}

func NewFolderHandler(service *services.FolderService) (*FolderHandler, error) {
	if service == nil {
		return nil, errors.New("folder handler: service is required")
	}
	return &FolderHandler{service: service}, nil
}

type createFolderRequest struct {
	ProjectID   string  `json:"project_id" validate:"required"`
	ParentID    *string `json:"parent_id"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
}

type updateFolderRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	ParentID    *string `json:"parent_id"`
}

// POST /api/folders
func (h *FolderHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body createFolderRequest
	if !bindAndValidate(c, &body) {
		return
	}

	folder, err := h.service.Create(requestContext(c), actor, services.CreateFolderInput{
		ProjectID:   body.ProjectID,
		ParentID:    body.ParentID,
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, folder)
}

// GET /api/folders
func (h *FolderHandler) List(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	folders, err := h.service.ListByProject(requestContext(c), c.Query("project_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, folders)
}

// GET /api/folders/:id
func (h *FolderHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	folder, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, folder)
}

// PATCH /api/folders/:id
func (h *FolderHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateFolderRequest
	if !bindAndValidate(c, &body) {
		return
	}

	folder, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateFolderInput{
		Name:        body.Name,
		Description: body.Description,
		ParentID:    body.ParentID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, folder)
}

// DELETE /api/folders/:id
func (h *FolderHandler) Delete(c *gin.Context) {
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
