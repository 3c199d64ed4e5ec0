package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
)

var testCaseExportHeader = []string{
	"id", "project_id", "folder_id", "title", "description", "preconditions",
	"steps", "expected_result", "priority", "test_type", "tags", "version", "created_at",
}

// ExportService renders test data as CSV or Excel workbooks.
type ExportService struct {
	db    *gorm.DB
	stats *StatisticsService
}

// NewExportService constructs an ExportService instance.
func NewExportService(db *gorm.DB, stats *StatisticsService) (*ExportService, error) {
	if db == nil {
		return nil, errors.New("export service: db is required")
	}
	if stats == nil {
		return nil, errors.New("export service: statistics service is required")
	}
	return &ExportService{db: db, stats: stats}, nil
}

// TestCasesCSV writes a project's test cases as CSV.
func (s *ExportService) TestCasesCSV(ctx context.Context, projectID string, w io.Writer) error {
	ctx = ensureContext(ctx)

	testCases, err := s.loadTestCases(ctx, projectID)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(testCaseExportHeader); err != nil {
		return fmt.Errorf("export service: write header: %w", err)
	}
	for _, tc := range testCases {
		if err := writer.Write(testCaseRow(tc)); err != nil {
			return fmt.Errorf("export service: write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("export service: flush csv: %w", err)
	}
	return nil
}

// TestCasesXLSX writes a project's test cases as an Excel workbook.
func (s *ExportService) TestCasesXLSX(ctx context.Context, projectID string, w io.Writer) error {
	ctx = ensureContext(ctx)

	testCases, err := s.loadTestCases(ctx, projectID)
	if err != nil {
		return err
	}

	book := excelize.NewFile()
	defer book.Close()

	const sheet = "Test Cases"
	index, err := book.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("export service: create sheet: %w", err)
	}
	book.SetActiveSheet(index)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export service: drop default sheet: %w", err)
	}

	header := make([]any, len(testCaseExportHeader))
	for i, col := range testCaseExportHeader {
		header[i] = col
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export service: write header: %w", err)
	}
	for i, tc := range testCases {
		row := testCaseRow(tc)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export service: cell name: %w", err)
		}
		if err := book.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("export service: write row: %w", err)
		}
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("export service: write workbook: %w", err)
	}
	return nil
}

// TestRunsCSV writes a project's test runs, including progress and pass
// rate, as CSV.
func (s *ExportService) TestRunsCSV(ctx context.Context, projectID string, w io.Writer) error {
	ctx = ensureContext(ctx)

	var runs []models.TestRun
	query := s.db.WithContext(ctx).Order("created_at ASC")
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if err := query.Find(&runs).Error; err != nil {
		return fmt.Errorf("export service: load test runs: %w", err)
	}

	writer := csv.NewWriter(w)
	header := []string{
		"id", "project_id", "name", "status", "environment", "milestone",
		"started_at", "completed_at", "progress", "pass_rate",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("export service: write header: %w", err)
	}
	for _, run := range runs {
		stats, err := s.stats.ForTestRun(ctx, run.ID)
		if err != nil {
			return err
		}
		row := []string{
			run.ID,
			run.ProjectID,
			run.Name,
			run.Status,
			run.Environment,
			run.Milestone,
			formatOptionalTime(run.StartedAt),
			formatOptionalTime(run.CompletedAt),
			strconv.FormatFloat(stats.Progress, 'f', 2, 64),
			strconv.FormatFloat(stats.PassRate, 'f', 2, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("export service: write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("export service: flush csv: %w", err)
	}
	return nil
}

// TestResultsCSV writes a run's results as CSV.
func (s *ExportService) TestResultsCSV(ctx context.Context, testRunID string, w io.Writer) error {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TestRun{}).Where("id = ?", testRunID).Count(&count).Error; err != nil {
		return fmt.Errorf("export service: check test run: %w", err)
	}
	if count == 0 {
		return ErrTestRunNotFound
	}

	var results []models.TestResult
	if err := s.db.WithContext(ctx).
		Where("test_run_id = ?", testRunID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return fmt.Errorf("export service: load results: %w", err)
	}

	writer := csv.NewWriter(w)
	header := []string{
		"id", "test_run_id", "test_case_id", "status", "actual_result",
		"comment", "defect_url", "execution_time", "executed_by", "executed_at",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("export service: write header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.ID,
			r.TestRunID,
			r.TestCaseID,
			r.Status,
			r.ActualResult,
			r.Comment,
			r.DefectURL,
			strconv.FormatFloat(r.ExecutionTime, 'f', -1, 64),
			r.ExecutedBy,
			formatOptionalTime(r.ExecutedAt),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("export service: write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("export service: flush csv: %w", err)
	}
	return nil
}

// ProjectStatsCSV writes a project's summary as key/value rows.
func (s *ExportService) ProjectStatsCSV(ctx context.Context, projectID string, w io.Writer) error {
	ctx = ensureContext(ctx)

	stats, err := s.stats.ForProject(ctx, projectID)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	rows := [][]string{
		{"metric", "value"},
		{"project_id", stats.ProjectID},
		{"test_cases", strconv.FormatInt(stats.TestCaseCount, 10)},
		{"test_runs", strconv.FormatInt(stats.TestRunCount, 10)},
		{"issues", strconv.FormatInt(stats.IssueCount, 10)},
		{"open_issues", strconv.FormatInt(stats.OpenIssueCount, 10)},
	}
	for priority, n := range stats.CasesByPriority {
		rows = append(rows, []string{"cases_priority_" + priority, strconv.FormatInt(n, 10)})
	}
	for status, n := range stats.RunsByStatus {
		rows = append(rows, []string{"runs_status_" + status, strconv.FormatInt(n, 10)})
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("export service: write stats: %w", err)
	}
	return nil
}

func (s *ExportService) loadTestCases(ctx context.Context, projectID string) ([]models.TestCase, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("export service: check project: %w", err)
	}
	if count == 0 {
		return nil, ErrProjectNotFound
	}

	var testCases []models.TestCase
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&testCases).Error; err != nil {
		return nil, fmt.Errorf("export service: load test cases: %w", err)
	}
	return testCases, nil
}

func testCaseRow(tc models.TestCase) []string {
	return []string{
		tc.ID,
		tc.ProjectID,
		derefOrEmpty(tc.FolderID),
		tc.Title,
		tc.Description,
		tc.Preconditions,
		tc.Steps,
		tc.ExpectedResult,
		tc.Priority,
		tc.TestType,
		tc.Tags,
		strconv.Itoa(tc.Version),
		tc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
