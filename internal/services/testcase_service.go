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

// CreateTestCaseInput describes a new test case.
type CreateTestCaseInput struct {
	ProjectID      string
	FolderID       *string
	Title          string
	Description    string
	Preconditions  string
	Steps          string
	ExpectedResult string
	Priority       string
	TestType       string
	Tags           string
}

// UpdateTestCaseInput enumerates mutable test case attributes. ChangeNote is
// recorded in the history snapshot, not on the test case itself.
type UpdateTestCaseInput struct {
	FolderID       *string
	Title          *string
	Description    *string
	Preconditions  *string
	Steps          *string
	ExpectedResult *string
	Priority       *string
	TestType       *string
	Tags           *string
	ChangeNote     string
}

// TestCaseFilters captures listing filters.
type TestCaseFilters struct {
	ProjectID string
	FolderID  string
	Priority  string
	TestType  string
	Query     string
}

// TestCaseService manages versioned test cases. Each update appends the
// pre-update state to the history log and bumps the version.
type TestCaseService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewTestCaseService constructs a TestCaseService instance.
func NewTestCaseService(db *gorm.DB, auditService *AuditService) (*TestCaseService, error) {
	if db == nil {
		return nil, errors.New("testcase service: db is required")
	}
	return &TestCaseService{db: db, auditService: auditService}, nil
}

// Create adds a test case to a project.
func (s *TestCaseService) Create(ctx context.Context, actor *models.User, input CreateTestCaseInput) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanCreate(actor, permissions.ResourceTestCase); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("test case title is required")
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, apperrors.NewBadRequest("project id is required")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	testType := input.TestType
	if testType == "" {
		testType = models.TestTypeFunctional
	}

	testCase := &models.TestCase{
		ProjectID:      input.ProjectID,
		FolderID:       normaliseOptionalID(input.FolderID),
		Title:          sanitizeText(title),
		Description:    sanitizeText(input.Description),
		Preconditions:  sanitizeText(input.Preconditions),
		Steps:          sanitizeText(input.Steps),
		ExpectedResult: sanitizeText(input.ExpectedResult),
		Priority:       priority,
		TestType:       testType,
		Tags:           strings.TrimSpace(input.Tags),
		Version:        1,
		OwnerID:        actor.ID,
	}

	if err := s.db.WithContext(ctx).Create(testCase).Error; err != nil {
		return nil, fmt.Errorf("testcase service: create test case: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testcase.create",
		Resource: testCase.ID,
		Result:   "success",
	})

	return testCase, nil
}

// GetByID loads a test case by identifier.
func (s *TestCaseService) GetByID(ctx context.Context, id string) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	var testCase models.TestCase
	err := s.db.WithContext(ctx).First(&testCase, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testcase service: get test case: %w", err)
	}
	return &testCase, nil
}

// List retrieves test cases matching the supplied filters.
func (s *TestCaseService) List(ctx context.Context, filters TestCaseFilters, page, pageSize int) ([]models.TestCase, int64, error) {
	ctx = ensureContext(ctx)

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	query := s.db.WithContext(ctx).Model(&models.TestCase{})
	if filters.ProjectID != "" {
		query = query.Where("project_id = ?", filters.ProjectID)
	}
	if filters.FolderID != "" {
		query = query.Where("folder_id = ?", filters.FolderID)
	}
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}
	if filters.TestType != "" {
		query = query.Where("test_type = ?", filters.TestType)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(tags) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("testcase service: count test cases: %w", err)
	}

	var testCases []models.TestCase
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&testCases).Error; err != nil {
		return nil, 0, fmt.Errorf("testcase service: list test cases: %w", err)
	}

	return testCases, total, nil
}

// Update snapshots the current state into the history log, bumps the version,
// and applies the changes.
func (s *TestCaseService) Update(ctx context.Context, actor *models.User, id string, input UpdateTestCaseInput) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	var testCase models.TestCase
	err := s.db.WithContext(ctx).First(&testCase, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testcase service: load test case: %w", err)
	}

	updates := map[string]any{}
	if input.FolderID != nil {
		updates["folder_id"] = normaliseOptionalID(input.FolderID)
	}
	if input.Title != nil {
		if title := sanitizeText(strings.TrimSpace(*input.Title)); title != "" {
			updates["title"] = title
		}
	}
	if input.Description != nil {
		updates["description"] = sanitizeText(*input.Description)
	}
	if input.Preconditions != nil {
		updates["preconditions"] = sanitizeText(*input.Preconditions)
	}
	if input.Steps != nil {
		updates["steps"] = sanitizeText(*input.Steps)
	}
	if input.ExpectedResult != nil {
		updates["expected_result"] = sanitizeText(*input.ExpectedResult)
	}
	if input.Priority != nil {
		updates["priority"] = *input.Priority
	}
	if input.TestType != nil {
		updates["test_type"] = *input.TestType
	}
	if input.Tags != nil {
		updates["tags"] = strings.TrimSpace(*input.Tags)
	}

	if len(updates) == 0 {
		return &testCase, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history := models.TestCaseHistory{
			TestCaseID:     testCase.ID,
			Version:        testCase.Version,
			Title:          testCase.Title,
			Description:    testCase.Description,
			Preconditions:  testCase.Preconditions,
			Steps:          testCase.Steps,
			ExpectedResult: testCase.ExpectedResult,
			Priority:       testCase.Priority,
			TestType:       testCase.TestType,
			Tags:           testCase.Tags,
			ChangedBy:      actor.ID,
			ChangeNote:     sanitizeText(strings.TrimSpace(input.ChangeNote)),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("snapshot history: %w", err)
		}

		updates["version"] = gorm.Expr("version + 1")
		return tx.Model(&testCase).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("testcase service: update test case: %w", err)
	}

	if err := s.db.WithContext(ctx).First(&testCase, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("testcase service: reload test case: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testcase.update",
		Resource: testCase.ID,
		Result:   "success",
		Metadata: map[string]any{"version": testCase.Version},
	})

	return &testCase, nil
}

// Delete removes a test case and its history.
func (s *TestCaseService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	var testCase models.TestCase
	err := s.db.WithContext(ctx).First(&testCase, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTestCaseNotFound
	}
	if err != nil {
		return fmt.Errorf("testcase service: load test case: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_case_id = ?", testCase.ID).Delete(&models.TestCaseHistory{}).Error; err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		return tx.Delete(&testCase).Error
	})
	if err != nil {
		return fmt.Errorf("testcase service: delete test case: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testcase.delete",
		Resource: testCase.ID,
		Result:   "success",
	})

	return nil
}

// History returns snapshots for a test case, newest version first.
func (s *TestCaseService) History(ctx context.Context, id string) ([]models.TestCaseHistory, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	var records []models.TestCaseHistory
	if err := s.db.WithContext(ctx).
		Where("test_case_id = ?", id).
		Order("version DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("testcase service: list history: %w", err)
	}
	return records, nil
}
