package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies a user's position in the authorization policy.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleQAManager  Role = "qa_manager"
	RoleQAEngineer Role = "qa_engineer"
	RoleDeveloper  Role = "developer"
	RoleViewer     Role = "viewer"
)

// ValidRoles lists every role accepted on user creation and role changes.
var ValidRoles = []Role{RoleAdmin, RoleQAManager, RoleQAEngineer, RoleDeveloper, RoleViewer}

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	for _, role := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User describes an account together with its authentication security state.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	FullName string `json:"full_name"`
	Role     Role   `gorm:"not null;default:viewer" json:"role"`

	PasswordHash   string `gorm:"not null" json:"-"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`
	IsTempPassword bool   `gorm:"default:false" json:"is_temp_password"`

	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	IsLocked            bool       `gorm:"default:false" json:"is_locked"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`

	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	PasswordResetAt   *time.Time `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
