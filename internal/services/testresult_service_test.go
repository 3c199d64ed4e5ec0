package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

func newTestResultService(t *testing.T, db *gorm.DB, now *time.Time) *TestResultService {
	t.Helper()

	svc, err := NewTestResultService(db, nil, func() time.Time { return *now })
	require.NoError(t, err)
	return svc
}

func TestRecordResultCreatesAndStampsExecution(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	svc := newTestResultService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "RES")
	run := seedTestRun(t, db, project, engineer, "Run")
	testCase := seedTestCase(t, db, project, engineer, "Case")

	result, err := svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:     run.ID,
		TestCaseID:    testCase.ID,
		Status:        models.TestResultStatusPassed,
		ExecutionTime: 2.5,
	})
	require.NoError(t, err)
	require.Equal(t, engineer.ID, result.ExecutedBy)
	require.NotNil(t, result.ExecutedAt)
	require.True(t, result.ExecutedAt.Equal(now))
}

func TestRecordResultUntestedHasNoExecutionTime(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newTestResultService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "REU")
	run := seedTestRun(t, db, project, engineer, "Run")
	testCase := seedTestCase(t, db, project, engineer, "Case")

	result, err := svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:  run.ID,
		TestCaseID: testCase.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.TestResultStatusUntested, result.Status)
	require.Nil(t, result.ExecutedAt)
}

func TestRecordResultOverwritesExisting(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newTestResultService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "REO")
	run := seedTestRun(t, db, project, engineer, "Run")
	testCase := seedTestCase(t, db, project, engineer, "Case")

	first, err := svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:  run.ID,
		TestCaseID: testCase.ID,
		Status:     models.TestResultStatusFailed,
	})
	require.NoError(t, err)

	second, err := svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:  run.ID,
		TestCaseID: testCase.ID,
		Status:     models.TestResultStatusPassed,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.TestResultStatusPassed, second.Status)

	var count int64
	require.NoError(t, db.Model(&models.TestResult{}).
		Where("test_run_id = ? AND test_case_id = ?", run.ID, testCase.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRecordResultValidation(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newTestResultService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "REV")
	run := seedTestRun(t, db, project, engineer, "Run")
	testCase := seedTestCase(t, db, project, engineer, "Case")

	_, err := svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:  run.ID,
		TestCaseID: testCase.ID,
		Status:     "maybe",
	})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)

	_, err = svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:     run.ID,
		TestCaseID:    testCase.ID,
		Status:        models.TestResultStatusPassed,
		ExecutionTime: -1,
	})
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)

	_, err = svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:  "missing",
		TestCaseID: testCase.ID,
	})
	require.ErrorIs(t, err, ErrTestRunNotFound)
}

func TestUpdateResultRestampsOnStatusChange(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	svc := newTestResultService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	other := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "REX")
	run := seedTestRun(t, db, project, engineer, "Run")
	testCase := seedTestCase(t, db, project, engineer, "Case")

	result, err := svc.Record(context.Background(), engineer, RecordTestResultInput{
		TestRunID:  run.ID,
		TestCaseID: testCase.ID,
		Status:     models.TestResultStatusFailed,
	})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	updated, err := svc.Update(context.Background(), other, result.ID, UpdateTestResultInput{
		Status:  strPtr(models.TestResultStatusPassed),
		Comment: strPtr("rerun after fix"),
	})
	require.NoError(t, err)
	require.Equal(t, other.ID, updated.ExecutedBy)
	require.True(t, updated.ExecutedAt.Equal(now))
	require.Equal(t, "rerun after fix", updated.Comment)
}

func TestResultListFilters(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newTestResultService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "REL")
	run := seedTestRun(t, db, project, engineer, "Run")

	for _, status := range []string{models.TestResultStatusPassed, models.TestResultStatusFailed} {
		testCase := seedTestCase(t, db, project, engineer, "Case")
		_, err := svc.Record(context.Background(), engineer, RecordTestResultInput{
			TestRunID:  run.ID,
			TestCaseID: testCase.ID,
			Status:     status,
		})
		require.NoError(t, err)
	}

	failed, total, err := svc.List(context.Background(), TestResultFilters{
		TestRunID: run.ID,
		Status:    models.TestResultStatusFailed,
	}, 1, 50)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, models.TestResultStatusFailed, failed[0].Status)
}
