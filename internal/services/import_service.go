package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/permissions"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

// ImportReport summarises one CSV import.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportService loads test cases from CSV files. The first row must be a
// header naming at least the title column; unknown columns are ignored.
type ImportService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewImportService constructs an ImportService instance.
func NewImportService(db *gorm.DB, auditService *AuditService) (*ImportService, error) {
	if db == nil {
		return nil, errors.New("import service: db is required")
	}
	return &ImportService{db: db, auditService: auditService}, nil
}

// TestCasesCSV imports test cases into a project. Rows with a missing title
// are skipped and reported; a malformed file aborts the import.
func (s *ImportService) TestCasesCSV(ctx context.Context, actor *models.User, projectID string, r io.Reader) (*ImportReport, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanCreate(actor, permissions.ResourceTestCase); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("import service: check project: %w", err)
	}
	if count == 0 {
		return nil, ErrProjectNotFound
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewBadRequest("csv file is empty")
	}
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid csv header")
	}

	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["title"]; !ok {
		return nil, apperrors.NewBadRequest("csv header must contain a title column")
	}

	report := &ImportReport{}
	line := 1
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return apperrors.NewBadRequest(fmt.Sprintf("invalid csv row at line %d", line+1))
			}
			line++

			field := func(name string) string {
				idx, ok := columns[name]
				if !ok || idx >= len(record) {
					return ""
				}
				return strings.TrimSpace(record[idx])
			}

			title := field("title")
			if title == "" {
				report.Skipped++
				report.Errors = append(report.Errors, fmt.Sprintf("line %d: title is required", line))
				continue
			}

			priority := field("priority")
			if priority == "" {
				priority = models.PriorityMedium
			}
			testType := field("test_type")
			if testType == "" {
				testType = models.TestTypeFunctional
			}

			testCase := models.TestCase{
				ProjectID:      projectID,
				Title:          sanitizeText(title),
				Description:    sanitizeText(field("description")),
				Preconditions:  sanitizeText(field("preconditions")),
				Steps:          sanitizeText(field("steps")),
				ExpectedResult: sanitizeText(field("expected_result")),
				Priority:       priority,
				TestType:       testType,
				Tags:           field("tags"),
				Version:        1,
				OwnerID:        actor.ID,
			}
			if err := tx.Create(&testCase).Error; err != nil {
				return fmt.Errorf("create test case at line %d: %w", line, err)
			}
			report.Imported++
		}
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("import service: import test cases: %w", err)
	}

	recordAudit(ctx, s.auditService, AuditEntry{
		ActorID:  actor.ID,
		Action:   "testcase.import",
		Resource: projectID,
		Result:   "success",
		Metadata: map[string]any{"imported": report.Imported, "skipped": report.Skipped},
	})

	return report, nil
}
