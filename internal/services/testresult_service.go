package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

var validTestResultStatuses = []string{
	models.TestResultStatusUntested,
	models.TestResultStatusPassed,
	models.TestResultStatusFailed,
	models.TestResultStatusBlocked,
	models.TestResultStatusSkipped,
}

// RecordTestResultInput describes a result recorded against a run.
type RecordTestResultInput struct {
	TestRunID     string
	TestCaseID    string
	Status        string
	ActualResult  string
	Comment       string
	DefectURL     string
	ExecutionTime float64
}

// UpdateTestResultInput enumerates mutable result attributes.
type UpdateTestResultInput struct {
	Status        *string
	ActualResult  *string
	Comment       *string
	DefectURL     *string
	ExecutionTime *float64
}

// TestResultFilters captures listing filters.
type TestResultFilters struct {
	TestRunID  string
	TestCaseID string
	Status     string
	ExecutedBy string
}

// TestResultService records execution outcomes. A run holds at most one
// result per test case; recording again overwrites the previous outcome.
type TestResultService struct {
	db           *gorm.DB
	auditService *AuditService
	clock        func() time.Time
}

// NewTestResultService constructs a TestResultService instance.
func NewTestResultService(db *gorm.DB, auditService *AuditService, clock func() time.Time) (*TestResultService, error) {
	if db == nil {
		return nil, errors.New("testresult service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &TestResultService{db: db, auditService: auditService, clock: clock}, nil
}

// Record stores an outcome for a test case within a run. An existing result
// for the same run and case is updated in place.
func (s *TestResultService) Record(ctx context.Context, actor *models.User, input RecordTestResultInput) (*models.TestResult, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.TestRunID) == "" {
		return nil, apperrors.NewBadRequest("test run id is required")
	}
	if strings.TrimSpace(input.TestCaseID) == "" {
		return nil, apperrors.NewBadRequest("test case id is required")
	}
	status := input.Status
	if status == "" {
		status = models.TestResultStatusUntested
	}
	if !containsString(validTestResultStatuses, status) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status. must be one of: %s", strings.Join(validTestResultStatuses, ", ")))
	}
	if input.ExecutionTime < 0 {
		return nil, apperrors.NewBadRequest("execution time cannot be negative")
	}

	var runCount int64
	if err := s.db.WithContext(ctx).Model(&models.TestRun{}).Where("id = ?", input.TestRunID).Count(&runCount).Error; err != nil {
		return nil, fmt.Errorf("testresult service: check test run: %w", err)
	}
	if runCount == 0 {
		return nil, ErrTestRunNotFound
	}

	var result models.TestResult
	err := s.db.WithContext(ctx).
		Where("test_run_id = ? AND test_case_id = ?", input.TestRunID, input.TestCaseID).
		First(&result).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		result = models.TestResult{
			TestRunID:  input.TestRunID,
			TestCaseID: input.TestCaseID,
		}
	case err != nil:
		return nil, fmt.Errorf("testresult service: load result: %w", err)
	}

	result.Status = status
	result.ActualResult = sanitizeText(input.ActualResult)
	result.Comment = sanitizeText(input.Comment)
	result.DefectURL = strings.TrimSpace(input.DefectURL)
	result.ExecutionTime = input.ExecutionTime
	result.ExecutedBy = actor.ID
	if status != models.TestResultStatusUntested {
		now := s.clock()
		result.ExecutedAt = &now
	}

	if err := s.db.WithContext(ctx).Save(&result).Error; err != nil {
		return nil, fmt.Errorf("testresult service: save result: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testresult.record",
		Resource: result.ID,
		Result:   "success",
		Metadata: map[string]any{"status": result.Status, "testrun_id": result.TestRunID},
	})

	return &result, nil
}

// GetByID loads a result by identifier.
func (s *TestResultService) GetByID(ctx context.Context, id string) (*models.TestResult, error) {
	ctx = ensureContext(ctx)

	var result models.TestResult
	err := s.db.WithContext(ctx).First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testresult service: get result: %w", err)
	}
	return &result, nil
}

// List retrieves results matching the supplied filters.
func (s *TestResultService) List(ctx context.Context, filters TestResultFilters, page, pageSize int) ([]models.TestResult, int64, error) {
	ctx = ensureContext(ctx)

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	query := s.db.WithContext(ctx).Model(&models.TestResult{})
	if filters.TestRunID != "" {
		query = query.Where("test_run_id = ?", filters.TestRunID)
	}
	if filters.TestCaseID != "" {
		query = query.Where("test_case_id = ?", filters.TestCaseID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.ExecutedBy != "" {
		query = query.Where("executed_by = ?", filters.ExecutedBy)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("testresult service: count results: %w", err)
	}

	var results []models.TestResult
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("testresult service: list results: %w", err)
	}

	return results, total, nil
}

// Update modifies an existing result.
func (s *TestResultService) Update(ctx context.Context, actor *models.User, id string, input UpdateTestResultInput) (*models.TestResult, error) {
	ctx = ensureContext(ctx)

	var result models.TestResult
	err := s.db.WithContext(ctx).First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testresult service: load result: %w", err)
	}

	updates := map[string]any{}
	if input.Status != nil {
		status := *input.Status
		if !containsString(validTestResultStatuses, status) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status. must be one of: %s", strings.Join(validTestResultStatuses, ", ")))
		}
		updates["status"] = status
		if status != models.TestResultStatusUntested {
			updates["executed_at"] = s.clock()
			updates["executed_by"] = actor.ID
		}
	}
	if input.ActualResult != nil {
		updates["actual_result"] = sanitizeText(*input.ActualResult)
	}
	if input.Comment != nil {
		updates["comment"] = sanitizeText(*input.Comment)
	}
	if input.DefectURL != nil {
		updates["defect_url"] = strings.TrimSpace(*input.DefectURL)
	}
	if input.ExecutionTime != nil {
		if *input.ExecutionTime < 0 {
			return nil, apperrors.NewBadRequest("execution time cannot be negative")
		}
		updates["execution_time"] = *input.ExecutionTime
	}

	if len(updates) == 0 {
		return &result, nil
	}

	if err := s.db.WithContext(ctx).Model(&result).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("testresult service: update result: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&result, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("testresult service: reload result: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testresult.update",
		Resource: result.ID,
		Result:   "success",
	})

	return &result, nil
}

// Delete removes a result.
func (s *TestResultService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	var result models.TestResult
	err := s.db.WithContext(ctx).First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTestResultNotFound
	}
	if err != nil {
		return fmt.Errorf("testresult service: load result: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&result).Error; err != nil {
		return fmt.Errorf("testresult service: delete result: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testresult.delete",
		Resource: result.ID,
		Result:   "success",
	})

	return nil
}
