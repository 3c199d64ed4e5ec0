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

// CreateFolderInput describes a new test folder.
type CreateFolderInput struct {
	ProjectID   string
	ParentID    *string
	Name        string
	Description string
}

// UpdateFolderInput enumerates mutable folder attributes.
type UpdateFolderInput struct {
	Name        *string
	Description *string
	ParentID    *string
}

// FolderService manages test folders. Folders use the strict write gate:
// create, update, and delete are admin only.
type FolderService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewFolderService constructs a FolderService instance.
func NewFolderService(db *gorm.DB, auditService *AuditService) (*FolderService, error) {
	if db == nil {
		return nil, errors.New("folder service: db is required")
	}
	return &FolderService{db: db, auditService: auditService}, nil
}

// Create adds a folder to a project.
func (s *FolderService) Create(ctx context.Context, actor *models.User, input CreateFolderInput) (*models.TestFolder, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceFolder); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("folder name is required")
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, apperrors.NewBadRequest("project id is required")
	}

	if err := s.ensureProjectExists(ctx, input.ProjectID); err != nil {
		return nil, err
	}
	parentID := normaliseOptionalID(input.ParentID)
	if parentID != nil {
		if err := s.ensureFolderExists(ctx, *parentID); err != nil {
			return nil, err
		}
	}

	folder := &models.TestFolder{
		ProjectID:   input.ProjectID,
		ParentID:    parentID,
		Name:        sanitizeText(name),
		Description: sanitizeText(strings.TrimSpace(input.Description)),
		OwnerID:     actor.ID,
	}

	if err := s.db.WithContext(ctx).Create(folder).Error; err != nil {
		return nil, fmt.Errorf("folder service: create folder: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "folder.create",
		Resource: folder.ID,
		Result:   "success",
	})

	return folder, nil
}

// GetByID loads a folder by identifier.
func (s *FolderService) GetByID(ctx context.Context, id string) (*models.TestFolder, error) {
	ctx = ensureContext(ctx)

	var folder models.TestFolder
	err := s.db.WithContext(ctx).First(&folder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("folder service: get folder: %w", err)
	}
	return &folder, nil
}

// ListByProject returns every folder within a project.
func (s *FolderService) ListByProject(ctx context.Context, projectID string) ([]models.TestFolder, error) {
	ctx = ensureContext(ctx)

	var folders []models.TestFolder
	query := s.db.WithContext(ctx).Order("created_at ASC")
	if strings.TrimSpace(projectID) != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if err := query.Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("folder service: list folders: %w", err)
	}
	return folders, nil
}

// Update modifies a folder. Admin only.
func (s *FolderService) Update(ctx context.Context, actor *models.User, id string, input UpdateFolderInput) (*models.TestFolder, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceFolder); err != nil {
		return nil, err
	}

	var folder models.TestFolder
	err := s.db.WithContext(ctx).First(&folder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("folder service: load folder: %w", err)
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
	if input.ParentID != nil {
		parentID := normaliseOptionalID(input.ParentID)
		if parentID != nil {
			if *parentID == folder.ID {
				return nil, apperrors.NewBadRequest("folder cannot be its own parent")
			}
			if err := s.ensureFolderExists(ctx, *parentID); err != nil {
				return nil, err
			}
		}
		updates["parent_id"] = parentID
	}

	if len(updates) == 0 {
		return &folder, nil
	}

	if err := s.db.WithContext(ctx).Model(&folder).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("folder service: update folder: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&folder, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("folder service: reload folder: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "folder.update",
		Resource: folder.ID,
		Result:   "success",
	})

	return &folder, nil
}

// Delete removes a folder. Admin only. Test cases inside the folder are
// detached, not deleted.
func (s *FolderService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceFolder); err != nil {
		return err
	}

	var folder models.TestFolder
	err := s.db.WithContext(ctx).First(&folder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFolderNotFound
	}
	if err != nil {
		return fmt.Errorf("folder service: load folder: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TestCase{}).
			Where("folder_id = ?", folder.ID).
			Update("folder_id", nil).Error; err != nil {
			return fmt.Errorf("detach test cases: %w", err)
		}
		if err := tx.Model(&models.TestFolder{}).
			Where("parent_id = ?", folder.ID).
			Update("parent_id", nil).Error; err != nil {
			return fmt.Errorf("detach child folders: %w", err)
		}
		return tx.Delete(&folder).Error
	})
	if err != nil {
		return fmt.Errorf("folder service: delete folder: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "folder.delete",
		Resource: folder.ID,
		Result:   "success",
	})

	return nil
}

func (s *FolderService) ensureProjectExists(ctx context.Context, projectID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return fmt.Errorf("folder service: check project: %w", err)
	}
	if count == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *FolderService) ensureFolderExists(ctx context.Context, folderID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TestFolder{}).Where("id = ?", folderID).Count(&count).Error; err != nil {
		return fmt.Errorf("folder service: check folder: %w", err)
	}
	if count == 0 {
		return ErrFolderNotFound
	}
	return nil
}
