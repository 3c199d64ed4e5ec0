package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/permissions"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

// CreateProjectInput describes a new project.
type CreateProjectInput struct {
	Name        string
	Key         string
	Description string
}

// UpdateProjectInput enumerates mutable project attributes.
type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// ProjectService manages project lifecycle. Creation is open to every role
// but viewer; modification and deletion are admin only; the read path honours
// ownership.
type ProjectService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewProjectService constructs a ProjectService instance.
func NewProjectService(db *gorm.DB, auditService *AuditService) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	return &ProjectService{db: db, auditService: auditService}, nil
}

// Create provisions a project owned by the acting user.
func (s *ProjectService) Create(ctx context.Context, actor *models.User, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanCreate(actor, permissions.ResourceProject); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}
	if key == "" {
		return nil, apperrors.NewBadRequest("project key is required")
	}

	project := &models.Project{
		Name:        sanitizeText(name),
		Key:         key,
		Description: sanitizeText(strings.TrimSpace(input.Description)),
		OwnerID:     actor.ID,
	}

	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("project key already exists")
		}
		return nil, fmt.Errorf("project service: create project: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "project.create",
		Resource: project.ID,
		Result:   "success",
		Metadata: map[string]any{"key": project.Key},
	})

	return project, nil
}

// GetByID loads a project; non-admins may only read projects they own.
func (s *ProjectService) GetByID(ctx context.Context, actor *models.User, id string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project service: get project: %w", err)
	}

	if err := permissions.CheckOwnership(actor, permissions.ResourceProject, project.OwnerID); err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns projects visible to the actor: everything for admins, owned
// projects for everyone else.
func (s *ProjectService) List(ctx context.Context, actor *models.User, page, pageSize int) ([]models.Project, int64, error) {
	ctx = ensureContext(ctx)

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 100
	}

	query := s.db.WithContext(ctx).Model(&models.Project{})
	if actor != nil && actor.Role != models.RoleAdmin {
		query = query.Where("owner_id = ?", actor.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("project service: count projects: %w", err)
	}

	var projects []models.Project
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&projects).Error; err != nil {
		return nil, 0, fmt.Errorf("project service: list projects: %w", err)
	}

	return projects, total, nil
}

// Update modifies a project. Admin only, even for the owner.
func (s *ProjectService) Update(ctx context.Context, actor *models.User, id string, input UpdateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project service: load project: %w", err)
	}

	if err := permissions.CanModify(actor, permissions.ResourceProject, project.OwnerID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := sanitizeText(strings.TrimSpace(*input.Name)); name != "" {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = sanitizeText(strings.TrimSpace(*input.Description))
	}

	if len(updates) == 0 {
		return &project, nil
	}

	if err := s.db.WithContext(ctx).Model(&project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project service: update project: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("project service: reload project: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "project.update",
		Resource: project.ID,
		Result:   "success",
		Metadata: updates,
	})

	return &project, nil
}

// Delete removes a project. Admin only.
func (s *ProjectService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("project service: load project: %w", err)
	}

	if err := permissions.CanModify(actor, permissions.ResourceProject, project.OwnerID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&project).Error; err != nil {
		return fmt.Errorf("project service: delete project: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "project.delete",
		Resource: project.ID,
		Result:   "success",
	})

	return nil
}
