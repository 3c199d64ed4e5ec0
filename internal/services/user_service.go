package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/auth"
	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/permissions"
	"github.com/testtrack-io/testtrack/pkg/crypto"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

// CreateUserInput describes the fields accepted when an admin creates a user.
type CreateUserInput struct {
	Email    string
	Username string
	FullName string
	Password string
	Role     models.Role
	IsActive *bool
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Email    *string
	Username *string
	FullName *string
}

// UserFilters captures listing filters.
type UserFilters struct {
	IsActive *bool
	Role     models.Role
	Query    string
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// UserService manages CRUD lifecycle for users including role and activation changes.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, auditService: auditService}, nil
}

// Create provisions a new user with a hashed password. Admin only.
func (s *UserService) Create(ctx context.Context, actor *models.User, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	if err := permissions.RequireAdmin(actor, permissions.ResourceUser); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(input.Email)
	username := strings.TrimSpace(input.Username)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	role := input.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !role.IsValid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		FullName:     strings.TrimSpace(input.FullName),
		Role:         role,
		PasswordHash: hashed,
		IsActive:     true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("email or username already exists")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "user.create",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"email": user.Email, "role": string(user.Role)},
	})

	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// List retrieves users matching the supplied filters with pagination.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if opts.Filters.Role != "" {
		query = query.Where("role = ?", opts.Filters.Role)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// Update persists mutable attributes for an existing user. Admin only.
func (s *UserService) Update(ctx context.Context, actor *models.User, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	if err := permissions.RequireAdmin(actor, permissions.ResourceUser); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	updates := map[string]any{}
	if input.Email != nil {
		if email := strings.TrimSpace(*input.Email); email != "" && email != user.Email {
			updates["email"] = email
		}
	}
	if input.Username != nil {
		if username := strings.TrimSpace(*input.Username); username != "" && username != user.Username {
			updates["username"] = username
		}
	}
	if input.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*input.FullName)
	}

	if len(updates) == 0 {
		return &user, nil
	}

	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("email or username already exists")
		}
		return nil, fmt.Errorf("user service: update user: %w", err)
	}

	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("user service: reload user: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "user.update",
		Resource: user.ID,
		Result:   "success",
		Metadata: updates,
	})

	return &user, nil
}

// SetRole changes the user's role. Admin only; an admin may not demote themselves.
func (s *UserService) SetRole(ctx context.Context, actor *models.User, id string, role models.Role) (*models.User, error) {
	ctx = ensureContext(ctx)

	if !role.IsValid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}
	if err := permissions.CanChangeRole(actor, id, role); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("user service: update role: %w", err)
	}
	user.Role = role

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "user.role_change",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"role": string(role)},
	})

	return &user, nil
}

// SetActive toggles the active state of an account. Admin only.
func (s *UserService) SetActive(ctx context.Context, actor *models.User, id string, active bool) error {
	ctx = ensureContext(ctx)

	if err := permissions.RequireAdmin(actor, permissions.ResourceUser); err != nil {
		return err
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("is_active", active).Error; err != nil {
		return fmt.Errorf("user service: update active state: %w", err)
	}

	action := "user.activate"
	if !active {
		action = "user.deactivate"
	}
	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   action,
		Resource: user.ID,
		Result:   "success",
	})

	return nil
}

// Delete removes a user. Admin only; self-delete is forbidden.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	if err := permissions.CanDeleteUser(actor, id); err != nil {
		return err
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&user).Error; err != nil {
		return fmt.Errorf("user service: delete user: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "user.delete",
		Resource: user.ID,
		Result:   "success",
	})

	return nil
}
