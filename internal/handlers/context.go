package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/middleware"
	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser returns the authenticated user, writing a 401 response when the
// auth middleware did not run.
func currentUser(c *gin.Context) (*models.User, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}
	return user, true
}
