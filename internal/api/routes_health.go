package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, db *gorm.DB) {
	r.GET("/health", handlers.Health(db))
}
