package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/testtrack-io/testtrack/internal/auth"
	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/permissions"
	"github.com/testtrack-io/testtrack/internal/services"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type UserHandler struct {
	service  *services.UserService
	provider *iauth.LocalProvider
}

func NewUserHandler(service *services.UserService, provider *iauth.LocalProvider) (*UserHandler, error) {
	if service == nil {
		return nil, errors.New("user handler: service is required")
	}
	return &UserHandler{service: service, provider: provider}, nil
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	FullName string `json:"full_name" validate:"max=128"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin qa_manager qa_engineer developer viewer"`
	IsActive *bool  `json:"is_active"`
}

type updateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Username *string `json:"username" validate:"omitempty,min=3,max=64"`
	FullName *string `json:"full_name" validate:"omitempty,max=128"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin qa_manager qa_engineer developer viewer"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if err := permissions.RequireAdmin(actor, permissions.ResourceUser); err != nil {
		response.Error(c, err)
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 50)

	filters := services.UserFilters{
		Role:  models.Role(c.Query("role")),
		Query: c.Query("q"),
	}
	if active := c.Query("is_active"); active != "" {
		isActive := active == "true"
		filters.IsActive = &isActive
	}

	users, total, err := h.service.List(requestContext(c), services.ListUsersOptions{
		Page:     page,
		PageSize: per,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, users, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if err := permissions.RequireAdmin(actor, permissions.ResourceUser); err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Create(requestContext(c), actor, services.CreateUserInput{
		Email:    body.Email,
		Username: body.Username,
		FullName: body.FullName,
		Password: body.Password,
		Role:     models.Role(body.Role),
		IsActive: body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// PATCH /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateUserInput{
		Email:    body.Email,
		Username: body.Username,
		FullName: body.FullName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PUT /api/users/:id/role
func (h *UserHandler) SetRole(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body setRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.SetRole(requestContext(c), actor, c.Param("id"), models.Role(body.Role))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PUT /api/users/:id/active
func (h *UserHandler) SetActive(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body setActiveRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.service.SetActive(requestContext(c), actor, c.Param("id"), *body.IsActive); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"is_active": *body.IsActive})
}

// POST /api/users/:id/unlock
func (h *UserHandler) Unlock(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if err := permissions.RequireAdmin(actor, permissions.ResourceUser); err != nil {
		response.Error(c, err)
		return
	}
	if h.provider == nil {
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	err := h.provider.Unlock(requestContext(c), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.Error(c, services.ErrUserNotFound)
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "account unlocked"})
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
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
