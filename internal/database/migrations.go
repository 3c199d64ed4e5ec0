package database

import (
	"strings"

	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.TestFolder{},
		&models.TestCase{},
		&models.TestCaseHistory{},
		&models.TestRun{},
		&models.TestResult{},
		&models.Issue{},
		&models.IssueHistory{},
		&models.NotificationSetting{},
		&models.AuditLog{},
	)
}

// SeedConfig controls the initial administrator account.
type SeedConfig struct {
	AdminEmail    string
	AdminUsername string
	AdminPassword string
}

// SeedData creates the bootstrap admin account if no admin exists yet.
// A blank password disables seeding so deployments can create the first
// admin out of band.
func SeedData(db *gorm.DB, cfg SeedConfig) error {
	if strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := crypto.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	email := cfg.AdminEmail
	if email == "" {
		email = "admin@testtrack.local"
	}
	username := cfg.AdminUsername
	if username == "" {
		username = "admin"
	}

	admin := models.User{
		Email:        email,
		Username:     username,
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
	}
	return db.Where(models.User{Email: email}).Attrs(admin).FirstOrCreate(&models.User{}).Error
}
