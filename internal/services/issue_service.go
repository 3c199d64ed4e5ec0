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

var (
	validIssueStatuses = []string{
		models.IssueStatusTodo,
		models.IssueStatusInProgress,
		models.IssueStatusInReview,
		models.IssueStatusDone,
	}
	validIssueTypes = []string{
		models.IssueTypeBug,
		models.IssueTypeImprovement,
		models.IssueTypeTask,
	}
	validIssuePriorities = []string{
		models.PriorityLow,
		models.PriorityMedium,
		models.PriorityHigh,
		models.PriorityCritical,
	}
)

// CreateIssueInput describes a new issue.
type CreateIssueInput struct {
	ProjectID   string
	TestCaseID  *string
	TestRunID   *string
	Title       string
	Description string
	Priority    string
	IssueType   string
	AssignedTo  *string
}

// UpdateIssueInput enumerates mutable issue attributes.
type UpdateIssueInput struct {
	Title       *string
	Description *string
	Priority    *string
	IssueType   *string
	AssignedTo  *string
	TestCaseID  *string
	TestRunID   *string
	Resolution  *string
}

// IssueFilters captures listing filters.
type IssueFilters struct {
	ProjectID  string
	Status     string
	Priority   string
	IssueType  string
	AssignedTo string
	Query      string
}

// Attachment is stored in the issue's attachments JSON column.
type Attachment struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// IssueService manages kanban issues. Creation is open to every role but
// viewer; update, status changes, and deletion are admin only. Every field
// change is recorded in the issue history.
type IssueService struct {
	db            *gorm.DB
	auditService  *AuditService
	notifications *NotificationService
	clock         func() time.Time
}

// NewIssueService constructs an IssueService instance.
func NewIssueService(db *gorm.DB, auditService *AuditService, notifications *NotificationService, clock func() time.Time) (*IssueService, error) {
	if db == nil {
		return nil, errors.New("issue service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &IssueService{
		db:            db,
		auditService:  auditService,
		notifications: notifications,
		clock:         clock,
	}, nil
}

// Create files an issue, optionally linked to a test case or run.
func (s *IssueService) Create(ctx context.Context, actor *models.User, input CreateIssueInput) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanCreate(actor, permissions.ResourceIssue); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("issue title is required")
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, apperrors.NewBadRequest("project id is required")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !containsString(validIssuePriorities, priority) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid priority. must be one of: %s", strings.Join(validIssuePriorities, ", ")))
	}
	issueType := input.IssueType
	if issueType == "" {
		issueType = models.IssueTypeBug
	}
	if !containsString(validIssueTypes, issueType) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid issue type. must be one of: %s", strings.Join(validIssueTypes, ", ")))
	}

	testCaseID := normaliseOptionalID(input.TestCaseID)
	if testCaseID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.TestCase{}).Where("id = ?", *testCaseID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("issue service: check test case: %w", err)
		}
		if count == 0 {
			return nil, ErrTestCaseNotFound
		}
	}

	issue := &models.Issue{
		ProjectID:   input.ProjectID,
		TestCaseID:  testCaseID,
		TestRunID:   normaliseOptionalID(input.TestRunID),
		Title:       sanitizeText(title),
		Description: sanitizeText(input.Description),
		Status:      models.IssueStatusTodo,
		Priority:    priority,
		IssueType:   issueType,
		AssignedTo:  normaliseOptionalID(input.AssignedTo),
		Attachments: datatypes.JSON([]byte("[]")),
		CreatedBy:   actor.ID,
	}

	if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
		return nil, fmt.Errorf("issue service: create issue: %w", err)
	}

	if issue.AssignedTo != nil {
		s.notifyAssigned(ctx, issue, actor)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "issue.create",
		Resource: issue.ID,
		Result:   "success",
	})

	return issue, nil
}

// GetByID loads an issue by identifier.
func (s *IssueService) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	var issue models.Issue
	err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("issue service: get issue: %w", err)
	}
	return &issue, nil
}

// List retrieves issues matching the supplied filters.
func (s *IssueService) List(ctx context.Context, filters IssueFilters, page, pageSize int) ([]models.Issue, int64, error) {
	ctx = ensureContext(ctx)

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	query := s.db.WithContext(ctx).Model(&models.Issue{})
	if filters.ProjectID != "" {
		query = query.Where("project_id = ?", filters.ProjectID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}
	if filters.IssueType != "" {
		query = query.Where("issue_type = ?", filters.IssueType)
	}
	if filters.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filters.AssignedTo)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("issue service: count issues: %w", err)
	}

	var issues []models.Issue
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&issues).Error; err != nil {
		return nil, 0, fmt.Errorf("issue service: list issues: %w", err)
	}

	return issues, total, nil
}

// Update modifies an issue. Admin only. Every changed field is appended to
// the history log, and a new assignee is notified.
func (s *IssueService) Update(ctx context.Context, actor *models.User, id string, input UpdateIssueInput) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceIssue); err != nil {
		return nil, err
	}

	var issue models.Issue
	err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("issue service: load issue: %w", err)
	}

	updates := map[string]any{}
	var history []models.IssueHistory
	assigneeChanged := false

	appendHistory := func(field, oldValue, newValue string) {
		history = append(history, models.IssueHistory{
			IssueID:   issue.ID,
			FieldName: field,
			OldValue:  oldValue,
			NewValue:  newValue,
			ChangedBy: actor.ID,
		})
	}

	if input.Title != nil {
		if title := sanitizeText(strings.TrimSpace(*input.Title)); title != "" && title != issue.Title {
			appendHistory("title", issue.Title, title)
			updates["title"] = title
		}
	}
	if input.Description != nil {
		if desc := sanitizeText(*input.Description); desc != issue.Description {
			appendHistory("description", issue.Description, desc)
			updates["description"] = desc
		}
	}
	if input.Priority != nil {
		if !containsString(validIssuePriorities, *input.Priority) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid priority. must be one of: %s", strings.Join(validIssuePriorities, ", ")))
		}
		if *input.Priority != issue.Priority {
			appendHistory("priority", issue.Priority, *input.Priority)
			updates["priority"] = *input.Priority
		}
	}
	if input.IssueType != nil {
		if !containsString(validIssueTypes, *input.IssueType) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid issue type. must be one of: %s", strings.Join(validIssueTypes, ", ")))
		}
		if *input.IssueType != issue.IssueType {
			appendHistory("issue_type", issue.IssueType, *input.IssueType)
			updates["issue_type"] = *input.IssueType
		}
	}
	if input.Resolution != nil {
		if res := sanitizeText(*input.Resolution); res != issue.Resolution {
			appendHistory("resolution", issue.Resolution, res)
			updates["resolution"] = res
		}
	}
	if input.AssignedTo != nil {
		newAssignee := normaliseOptionalID(input.AssignedTo)
		if !equalOptionalID(issue.AssignedTo, newAssignee) {
			appendHistory("assigned_to", derefOrEmpty(issue.AssignedTo), derefOrEmpty(newAssignee))
			updates["assigned_to"] = newAssignee
			if newAssignee != nil {
				assigneeChanged = true
			}
		}
	}
	if input.TestCaseID != nil {
		newCase := normaliseOptionalID(input.TestCaseID)
		if !equalOptionalID(issue.TestCaseID, newCase) {
			appendHistory("testcase_id", derefOrEmpty(issue.TestCaseID), derefOrEmpty(newCase))
			updates["test_case_id"] = newCase
		}
	}
	if input.TestRunID != nil {
		newRun := normaliseOptionalID(input.TestRunID)
		if !equalOptionalID(issue.TestRunID, newRun) {
			appendHistory("testrun_id", derefOrEmpty(issue.TestRunID), derefOrEmpty(newRun))
			updates["test_run_id"] = newRun
		}
	}

	if len(updates) == 0 {
		return &issue, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(history) > 0 {
			if err := tx.Create(&history).Error; err != nil {
				return fmt.Errorf("record history: %w", err)
			}
		}
		return tx.Model(&issue).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("issue service: update issue: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("issue service: reload issue: %w", err)
	}

	if assigneeChanged {
		s.notifyAssigned(ctx, &issue, actor)
	} else if issue.AssignedTo != nil {
		s.notifyUpdated(ctx, &issue, actor, "details")
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "issue.update",
		Resource: issue.ID,
		Result:   "success",
	})

	return &issue, nil
}

// SetStatus moves an issue across the kanban board. Admin only. Moving to
// done stamps resolved_at; leaving done clears it.
func (s *IssueService) SetStatus(ctx context.Context, actor *models.User, id, status string) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceIssue); err != nil {
		return nil, err
	}
	if !containsString(validIssueStatuses, status) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status. must be one of: %s", strings.Join(validIssueStatuses, ", ")))
	}

	var issue models.Issue
	err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("issue service: load issue: %w", err)
	}

	if status == issue.Status {
		return &issue, nil
	}

	updates := map[string]any{"status": status}
	switch status {
	case models.IssueStatusDone:
		updates["resolved_at"] = s.clock()
	default:
		if issue.Status == models.IssueStatusDone {
			updates["resolved_at"] = nil
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		change := models.IssueHistory{
			IssueID:   issue.ID,
			FieldName: "status",
			OldValue:  issue.Status,
			NewValue:  status,
			ChangedBy: actor.ID,
		}
		if err := tx.Create(&change).Error; err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		return tx.Model(&issue).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("issue service: update status: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("issue service: reload issue: %w", err)
	}

	if issue.AssignedTo != nil {
		s.notifyUpdated(ctx, &issue, actor, "status")
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "issue.status_change",
		Resource: issue.ID,
		Result:   "success",
		Metadata: map[string]any{"status": status},
	})

	return &issue, nil
}

// Delete removes an issue and its history. Admin only.
func (s *IssueService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	if err := permissions.CanWrite(actor, permissions.ResourceIssue); err != nil {
		return err
	}

	var issue models.Issue
	err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrIssueNotFound
	}
	if err != nil {
		return fmt.Errorf("issue service: load issue: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", issue.ID).Delete(&models.IssueHistory{}).Error; err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		return tx.Delete(&issue).Error
	})
	if err != nil {
		return fmt.Errorf("issue service: delete issue: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "issue.delete",
		Resource: issue.ID,
		Result:   "success",
	})

	return nil
}

// History returns field changes for an issue, newest first.
func (s *IssueService) History(ctx context.Context, id string) ([]models.IssueHistory, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	var records []models.IssueHistory
	if err := s.db.WithContext(ctx).
		Where("issue_id = ?", id).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("issue service: list history: %w", err)
	}
	return records, nil
}

// AddAttachment appends attachment metadata to an issue.
func (s *IssueService) AddAttachment(ctx context.Context, actor *models.User, id string, attachment Attachment) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	var issue models.Issue
	err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("issue service: load issue: %w", err)
	}

	var attachments []Attachment
	if len(issue.Attachments) > 0 {
		if err := json.Unmarshal(issue.Attachments, &attachments); err != nil {
			attachments = nil
		}
	}
	attachment.UploadedBy = actor.ID
	if attachment.UploadedAt.IsZero() {
		attachment.UploadedAt = s.clock()
	}
	attachments = append(attachments, attachment)

	encoded, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("issue service: encode attachments: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&issue).Update("attachments", datatypes.JSON(encoded)).Error; err != nil {
		return nil, fmt.Errorf("issue service: save attachments: %w", err)
	}
	issue.Attachments = datatypes.JSON(encoded)

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "issue.attachment_upload",
		Resource: issue.ID,
		Result:   "success",
		Metadata: map[string]any{"name": attachment.Name, "size": attachment.Size},
	})

	return &issue, nil
}

func (s *IssueService) notifyAssigned(ctx context.Context, issue *models.Issue, actor *models.User) {
	if s.notifications == nil || issue.AssignedTo == nil {
		return
	}
	var assignee models.User
	if err := s.db.WithContext(ctx).Take(&assignee, "id = ?", *issue.AssignedTo).Error; err != nil {
		return
	}
	s.notifications.NotifyIssueAssigned(ctx, &assignee, issue, actor.FullName)
}

func (s *IssueService) notifyUpdated(ctx context.Context, issue *models.Issue, actor *models.User, updateType string) {
	if s.notifications == nil || issue.AssignedTo == nil {
		return
	}
	if *issue.AssignedTo == actor.ID {
		return
	}
	var assignee models.User
	if err := s.db.WithContext(ctx).Take(&assignee, "id = ?", *issue.AssignedTo).Error; err != nil {
		return
	}
	s.notifications.NotifyIssueUpdated(ctx, &assignee, issue, actor.FullName, updateType)
}

func equalOptionalID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
