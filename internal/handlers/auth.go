package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/testtrack-io/testtrack/internal/auth"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/metrics"
	"github.com/testtrack-io/testtrack/pkg/response"
)

// resetRequestMessage is returned for every reset request, whether or not the
// address belongs to an account.
const resetRequestMessage = "If the email address exists, password reset instructions have been sent."

type AuthHandler struct {
	provider *iauth.LocalProvider
	jwt      *iauth.JWTService
}

func NewAuthHandler(provider *iauth.LocalProvider, jwt *iauth.JWTService) (*AuthHandler, error) {
	if provider == nil {
		return nil, errors.New("auth handler: provider is required")
	}
	if jwt == nil {
		return nil, errors.New("auth handler: jwt service is required")
	}
	return &AuthHandler{provider: provider, jwt: jwt}, nil
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	FullName string `json:"full_name" validate:"max=128"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type resetRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.provider.Register(requestContext(c), iauth.RegisterInput{
		Email:    body.Email,
		Username: body.Username,
		FullName: body.FullName,
		Password: body.Password,
	})
	if err != nil {
		response.Error(c, mapAuthError(err))
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.provider.Authenticate(requestContext(c), body.Identifier, body.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(authAttemptLabel(err)).Inc()
		response.Error(c, mapAuthError(err))
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to issue token"))
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/auth/password-reset/request
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var body resetRequestRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.provider.RequestPasswordReset(requestContext(c), body.Email); err != nil {
		response.Error(c, mapAuthError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": resetRequestMessage})
}

// POST /api/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var body resetConfirmRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.provider.ConfirmPasswordReset(requestContext(c), body.Token, body.NewPassword); err != nil {
		response.Error(c, mapAuthError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "password has been reset"})
}

// POST /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var body changePasswordRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.provider.ChangePassword(requestContext(c), user.ID, body.CurrentPassword, body.NewPassword); err != nil {
		response.Error(c, mapAuthError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "password changed"})
}

// mapAuthError converts provider errors to API errors without leaking internals.
func mapAuthError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var locked *iauth.LockedError
	if errors.As(err, &locked) {
		return apperrors.New("ACCOUNT_LOCKED", locked.Error(), http.StatusForbidden)
	}

	var invalid *iauth.InvalidCredentialsError
	if errors.As(err, &invalid) {
		return apperrors.New(apperrors.ErrInvalidCredentials.Code, invalid.Error(), http.StatusUnauthorized)
	}

	var policy *iauth.PolicyError
	if errors.As(err, &policy) {
		return apperrors.NewBadRequest(policy.Error())
	}

	switch {
	case errors.Is(err, iauth.ErrAccountInactive):
		return apperrors.NewBadRequest("account is deactivated")
	case errors.Is(err, iauth.ErrInvalidOrExpiredToken):
		return apperrors.NewBadRequest("invalid or expired reset token")
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(strings.ToLower(err.Error()), "unique constraint"),
		strings.Contains(err.Error(), "Duplicate entry"):
		return apperrors.NewBadRequest("email or username already exists")
	}

	return apperrors.ErrInternalServer.WithInternal(err)
}

func authAttemptLabel(err error) string {
	var locked *iauth.LockedError
	if errors.As(err, &locked) {
		return "locked"
	}
	var invalid *iauth.InvalidCredentialsError
	if errors.As(err, &invalid) {
		return "invalid_credentials"
	}
	if errors.Is(err, iauth.ErrAccountInactive) {
		return "inactive"
	}
	return "error"
}
