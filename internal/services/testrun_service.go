package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/permissions"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

var validTestRunStatuses = []string{
	models.TestRunStatusPlanned,
	models.TestRunStatusInProgress,
	models.TestRunStatusCompleted,
	models.TestRunStatusArchived,
}

// CreateTestRunInput describes a new test run.
type CreateTestRunInput struct {
	ProjectID   string
	Name        string
	Description string
	AssigneeID  *string
	Environment string
	Milestone   string
	TestCaseIDs []string
}

// UpdateTestRunInput enumerates mutable test run attributes.
type UpdateTestRunInput struct {
	Name        *string
	Description *string
	Status      *string
	AssigneeID  *string
	Environment *string
	Milestone   *string
	TestCaseIDs []string
}

// TestRunService manages execution rounds. Test runs use the strict write
// gate: create, update, and delete are admin only. Status transitions stamp
// started_at and completed_at, and completion notifies the assignee.
type TestRunService struct {
	db            *gorm.DB
	auditService  *AuditService
	notifications *NotificationService
	clock         func() time.Time
}

// NewTestRunService constructs a TestRunService instance.
func NewTestRunService(db *gorm.DB, auditService *AuditService, notifications *NotificationService, clock func() time.Time) (*TestRunService, error) {
	if db == nil {
		return nil, errors.New("testrun service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &TestRunService{
		db:            db,
		auditService:  auditService,
		notifications: notifications,
		clock:         clock,
	}, nil
}

// Create provisions a test run in planned state.
func (s *TestRunService) Create(ctx context.Context, actor *models.User, input CreateTestRunInput) (*models.TestRun, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceTestRun); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("test run name is required")
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, apperrors.NewBadRequest("project id is required")
	}

	caseIDs, err := marshalCaseIDs(input.TestCaseIDs)
	if err != nil {
		return nil, err
	}

	run := &models.TestRun{
		ProjectID:   input.ProjectID,
		Name:        sanitizeText(name),
		Description: sanitizeText(input.Description),
		Status:      models.TestRunStatusPlanned,
		AssigneeID:  normaliseOptionalID(input.AssigneeID),
		Environment: strings.TrimSpace(input.Environment),
		Milestone:   strings.TrimSpace(input.Milestone),
		TestCaseIDs: caseIDs,
		CreatedBy:   actor.ID,
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("testrun service: create test run: %w", err)
	}

	if run.AssigneeID != nil {
		s.notifyAssigned(ctx, run, actor)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testrun.create",
		Resource: run.ID,
		Result:   "success",
	})

	return run, nil
}

// GetByID loads a test run by identifier.
func (s *TestRunService) GetByID(ctx context.Context, id string) (*models.TestRun, error) {
	ctx = ensureContext(ctx)

	var run models.TestRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testrun service: get test run: %w", err)
	}
	return &run, nil
}

// List retrieves test runs, optionally filtered by project and status.
func (s *TestRunService) List(ctx context.Context, projectID, status string, page, pageSize int) ([]models.TestRun, int64, error) {
	ctx = ensureContext(ctx)

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	query := s.db.WithContext(ctx).Model(&models.TestRun{})
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("testrun service: count test runs: %w", err)
	}

	var runs []models.TestRun
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("testrun service: list test runs: %w", err)
	}

	return runs, total, nil
}

// Update modifies a test run. Admin only. Moving to in_progress stamps
// started_at; moving to completed stamps completed_at and notifies the
// assignee with the pass rate.
func (s *TestRunService) Update(ctx context.Context, actor *models.User, id string, input UpdateTestRunInput) (*models.TestRun, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceTestRun); err != nil {
		return nil, err
	}

	var run models.TestRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testrun service: load test run: %w", err)
	}

	updates := map[string]any{}
	assigneeChanged := false
	completed := false

	if input.Name != nil {
		if name := sanitizeText(strings.TrimSpace(*input.Name)); name != "" {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = sanitizeText(*input.Description)
	}
	if input.Environment != nil {
		updates["environment"] = strings.TrimSpace(*input.Environment)
	}
	if input.Milestone != nil {
		updates["milestone"] = strings.TrimSpace(*input.Milestone)
	}
	if input.TestCaseIDs != nil {
		caseIDs, err := marshalCaseIDs(input.TestCaseIDs)
		if err != nil {
			return nil, err
		}
		updates["test_case_ids"] = caseIDs
	}
	if input.AssigneeID != nil {
		newAssignee := normaliseOptionalID(input.AssigneeID)
		if newAssignee != nil && (run.AssigneeID == nil || *run.AssigneeID != *newAssignee) {
			assigneeChanged = true
		}
		updates["assignee_id"] = newAssignee
	}
	if input.Status != nil {
		status := *input.Status
		if !containsString(validTestRunStatuses, status) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status. must be one of: %s", strings.Join(validTestRunStatuses, ", ")))
		}
		if status != run.Status {
			now := s.clock()
			switch status {
			case models.TestRunStatusInProgress:
				if run.StartedAt == nil {
					updates["started_at"] = now
				}
			case models.TestRunStatusCompleted:
				updates["completed_at"] = now
				completed = true
			}
			updates["status"] = status
		}
	}

	if len(updates) == 0 {
		return &run, nil
	}

	if err := s.db.WithContext(ctx).Model(&run).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("testrun service: update test run: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("testrun service: reload test run: %w", err)
	}

	if assigneeChanged {
		s.notifyAssigned(ctx, &run, actor)
	}
	if completed {
		s.notifyCompleted(ctx, &run)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testrun.update",
		Resource: run.ID,
		Result:   "success",
	})

	return &run, nil
}

// Delete removes a test run and its results. Admin only.
func (s *TestRunService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceTestRun); err != nil {
		return err
	}

	var run models.TestRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTestRunNotFound
	}
	if err != nil {
		return fmt.Errorf("testrun service: load test run: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_run_id = ?", run.ID).Delete(&models.TestResult{}).Error; err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		return tx.Delete(&run).Error
	})
	if err != nil {
		return fmt.Errorf("testrun service: delete test run: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testrun.delete",
		Resource: run.ID,
		Result:   "success",
	})

	return nil
}

// Results returns all results recorded for a run.
func (s *TestRunService) Results(ctx context.Context, id string) ([]models.TestResult, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	var results []models.TestResult
	if err := s.db.WithContext(ctx).
		Where("test_run_id = ?", id).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("testrun service: list results: %w", err)
	}
	return results, nil
}

// PassRate computes the percentage of passed results among executed ones.
// Returns nil when the run has no results yet.
func (s *TestRunService) PassRate(ctx context.Context, id string) (*float64, error) {
	ctx = ensureContext(ctx)

	var total, passed int64
	if err := s.db.WithContext(ctx).Model(&models.TestResult{}).
		Where("test_run_id = ?", id).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("testrun service: count results: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.TestResult{}).
		Where("test_run_id = ? AND status = ?", id, models.TestResultStatusPassed).
		Count(&passed).Error; err != nil {
		return nil, fmt.Errorf("testrun service: count passed results: %w", err)
	}

	rate := float64(passed) / float64(total) * 100
	return &rate, nil
}

func (s *TestRunService) notifyAssigned(ctx context.Context, run *models.TestRun, actor *models.User) {
	if s.notifications == nil || run.AssigneeID == nil {
		return
	}
	var assignee models.User
	if err := s.db.WithContext(ctx).Take(&assignee, "id = ?", *run.AssigneeID).Error; err != nil {
		return
	}
	s.notifications.NotifyTestRunAssigned(ctx, &assignee, run, actor.FullName)
}

func (s *TestRunService) notifyCompleted(ctx context.Context, run *models.TestRun) {
	if s.notifications == nil || run.AssigneeID == nil {
		return
	}
	var assignee models.User
	if err := s.db.WithContext(ctx).Take(&assignee, "id = ?", *run.AssigneeID).Error; err != nil {
		return
	}
	passRate, err := s.PassRate(ctx, run.ID)
	if err != nil {
		passRate = nil
	}
	s.notifications.NotifyTestRunCompleted(ctx, &assignee, run, passRate)
}

func marshalCaseIDs(ids []string) (datatypes.JSON, error) {
	encoded, err := json.Marshal(normaliseIDs(ids))
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid test case id list")
	}
	return datatypes.JSON(encoded), nil
}
