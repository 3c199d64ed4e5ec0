package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
)

// DashboardStats is the landing page summary.
type DashboardStats struct {
	TotalProjects  int64            `json:"total_projects"`
	TotalTestCases int64            `json:"total_test_cases"`
	TotalTestRuns  int64            `json:"total_test_runs"`
	TotalIssues    int64            `json:"total_issues"`
	ActiveTestRuns int64            `json:"active_test_runs"`
	OpenIssues     int64            `json:"open_issues"`
	IssuesByStatus map[string]int64 `json:"issues_by_status"`
	RunsByStatus   map[string]int64 `json:"runs_by_status"`
}

// ProjectStats summarises one project.
type ProjectStats struct {
	ProjectID       string           `json:"project_id"`
	TestCaseCount   int64            `json:"test_case_count"`
	TestRunCount    int64            `json:"test_run_count"`
	IssueCount      int64            `json:"issue_count"`
	OpenIssueCount  int64            `json:"open_issue_count"`
	CasesByPriority map[string]int64 `json:"cases_by_priority"`
	RunsByStatus    map[string]int64 `json:"runs_by_status"`
}

// TestRunStats summarises execution of one run. Progress is the share of
// planned cases that have an executed result; pass rate is the share of
// executed results that passed. Both are percentages rounded to two decimals.
type TestRunStats struct {
	TestRunID      string           `json:"test_run_id"`
	TotalCases     int64            `json:"total_cases"`
	TestedCases    int64            `json:"tested_cases"`
	UntestedCases  int64            `json:"untested_cases"`
	ResultsByState map[string]int64 `json:"results_by_status"`
	Progress       float64          `json:"progress"`
	PassRate       float64          `json:"pass_rate"`
}

// StatisticsService aggregates counts for dashboards and reports.
type StatisticsService struct {
	db *gorm.DB
}

// NewStatisticsService constructs a StatisticsService instance.
func NewStatisticsService(db *gorm.DB) (*StatisticsService, error) {
	if db == nil {
		return nil, errors.New("statistics service: db is required")
	}
	return &StatisticsService{db: db}, nil
}

// Dashboard returns global counts across all projects.
func (s *StatisticsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	ctx = ensureContext(ctx)

	stats := &DashboardStats{
		IssuesByStatus: map[string]int64{},
		RunsByStatus:   map[string]int64{},
	}

	counts := []struct {
		model any
		dest  *int64
	}{
		{&models.Project{}, &stats.TotalProjects},
		{&models.TestCase{}, &stats.TotalTestCases},
		{&models.TestRun{}, &stats.TotalTestRuns},
		{&models.Issue{}, &stats.TotalIssues},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("statistics service: count: %w", err)
		}
	}

	if err := s.groupCount(ctx, &models.Issue{}, "status", nil, stats.IssuesByStatus); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, &models.TestRun{}, "status", nil, stats.RunsByStatus); err != nil {
		return nil, err
	}

	stats.ActiveTestRuns = stats.RunsByStatus[models.TestRunStatusInProgress]
	for status, n := range stats.IssuesByStatus {
		if status != models.IssueStatusDone {
			stats.OpenIssues += n
		}
	}

	return stats, nil
}

// ForProject returns counts scoped to one project.
func (s *StatisticsService) ForProject(ctx context.Context, projectID string) (*ProjectStats, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("statistics service: check project: %w", err)
	}
	if count == 0 {
		return nil, ErrProjectNotFound
	}

	stats := &ProjectStats{
		ProjectID:       projectID,
		CasesByPriority: map[string]int64{},
		RunsByStatus:    map[string]int64{},
	}
	scope := map[string]any{"project_id": projectID}

	if err := s.db.WithContext(ctx).Model(&models.TestCase{}).Where(scope).Count(&stats.TestCaseCount).Error; err != nil {
		return nil, fmt.Errorf("statistics service: count test cases: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.TestRun{}).Where(scope).Count(&stats.TestRunCount).Error; err != nil {
		return nil, fmt.Errorf("statistics service: count test runs: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Issue{}).Where(scope).Count(&stats.IssueCount).Error; err != nil {
		return nil, fmt.Errorf("statistics service: count issues: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where(scope).Where("status <> ?", models.IssueStatusDone).
		Count(&stats.OpenIssueCount).Error; err != nil {
		return nil, fmt.Errorf("statistics service: count open issues: %w", err)
	}

	if err := s.groupCount(ctx, &models.TestCase{}, "priority", scope, stats.CasesByPriority); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, &models.TestRun{}, "status", scope, stats.RunsByStatus); err != nil {
		return nil, err
	}

	return stats, nil
}

// ForTestRun returns progress and pass rate for one run.
func (s *StatisticsService) ForTestRun(ctx context.Context, testRunID string) (*TestRunStats, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TestRun{}).Where("id = ?", testRunID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("statistics service: check test run: %w", err)
	}
	if count == 0 {
		return nil, ErrTestRunNotFound
	}

	stats := &TestRunStats{
		TestRunID:      testRunID,
		ResultsByState: map[string]int64{},
	}
	scope := map[string]any{"test_run_id": testRunID}

	if err := s.db.WithContext(ctx).Model(&models.TestResult{}).Where(scope).Count(&stats.TotalCases).Error; err != nil {
		return nil, fmt.Errorf("statistics service: count results: %w", err)
	}
	if err := s.groupCount(ctx, &models.TestResult{}, "status", scope, stats.ResultsByState); err != nil {
		return nil, err
	}

	stats.UntestedCases = stats.ResultsByState[models.TestResultStatusUntested]
	stats.TestedCases = stats.TotalCases - stats.UntestedCases
	stats.Progress = percentage(stats.TestedCases, stats.TotalCases)
	stats.PassRate = percentage(stats.ResultsByState[models.TestResultStatusPassed], stats.TestedCases)

	return stats, nil
}

func (s *StatisticsService) groupCount(ctx context.Context, model any, column string, scope map[string]any, dest map[string]int64) error {
	rows := []struct {
		Key   string
		Count int64
	}{}
	query := s.db.WithContext(ctx).Model(model).
		Select(column + " AS key, COUNT(*) AS count").
		Group(column)
	if scope != nil {
		query = query.Where(scope)
	}
	if err := query.Find(&rows).Error; err != nil {
		return fmt.Errorf("statistics service: group by %s: %w", column, err)
	}
	for _, row := range rows {
		dest[row.Key] = row.Count
	}
	return nil
}

// percentage returns part/whole as a percentage rounded to two decimals.
// A zero denominator yields zero.
func percentage(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
