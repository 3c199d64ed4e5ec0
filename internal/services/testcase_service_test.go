package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/models"
)

func TestTestCaseCreateAppliesDefaultsAndSanitises(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTestCaseService(db, nil)
	require.NoError(t, err)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "TCD")

	testCase, err := svc.Create(context.Background(), engineer, CreateTestCaseInput{
		ProjectID:   project.ID,
		Title:       "Login <script>alert(1)</script>works",
		Description: "Click onload=evil() here",
	})
	require.NoError(t, err)
	require.Equal(t, models.PriorityMedium, testCase.Priority)
	require.Equal(t, models.TestTypeFunctional, testCase.TestType)
	require.Equal(t, 1, testCase.Version)
	require.NotContains(t, testCase.Title, "<script>")
	require.NotContains(t, testCase.Description, "onload=")
}

func TestTestCaseUpdateSnapshotsHistoryAndBumpsVersion(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTestCaseService(db, nil)
	require.NoError(t, err)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "TCH")
	testCase := seedTestCase(t, db, project, engineer, "Original title")

	updated, err := svc.Update(context.Background(), engineer, testCase.ID, UpdateTestCaseInput{
		Title:      strPtr("Revised title"),
		ChangeNote: "clarified scope",
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)
	require.Equal(t, "Revised title", updated.Title)

	history, err := svc.History(context.Background(), testCase.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 1, history[0].Version)
	require.Equal(t, "Original title", history[0].Title)
	require.Equal(t, engineer.ID, history[0].ChangedBy)
	require.Equal(t, "clarified scope", history[0].ChangeNote)

	_, err = svc.Update(context.Background(), engineer, testCase.ID, UpdateTestCaseInput{
		Priority: strPtr(models.PriorityHigh),
	})
	require.NoError(t, err)

	history, err = svc.History(context.Background(), testCase.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2, history[0].Version)
	require.Equal(t, 1, history[1].Version)
}

func TestTestCaseUpdateWithoutChangesKeepsVersion(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTestCaseService(db, nil)
	require.NoError(t, err)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "TCN")
	testCase := seedTestCase(t, db, project, engineer, "Stable")

	updated, err := svc.Update(context.Background(), engineer, testCase.ID, UpdateTestCaseInput{})
	require.NoError(t, err)
	require.Equal(t, 1, updated.Version)

	history, err := svc.History(context.Background(), testCase.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestTestCaseDeleteRemovesHistory(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTestCaseService(db, nil)
	require.NoError(t, err)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "TCX")
	testCase := seedTestCase(t, db, project, engineer, "Doomed")

	_, err = svc.Update(context.Background(), engineer, testCase.ID, UpdateTestCaseInput{Title: strPtr("Doomed v2")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), engineer, testCase.ID))

	var count int64
	require.NoError(t, db.Model(&models.TestCaseHistory{}).Where("test_case_id = ?", testCase.ID).Count(&count).Error)
	require.Zero(t, count)

	_, err = svc.GetByID(context.Background(), testCase.ID)
	require.ErrorIs(t, err, ErrTestCaseNotFound)
}

func TestTestCaseListFilters(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTestCaseService(db, nil)
	require.NoError(t, err)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "TCL")

	_, err = svc.Create(context.Background(), engineer, CreateTestCaseInput{
		ProjectID: project.ID, Title: "Checkout smoke", Priority: models.PriorityHigh, Tags: "smoke,payment",
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), engineer, CreateTestCaseInput{
		ProjectID: project.ID, Title: "Login regression", TestType: models.TestTypeRegression,
	})
	require.NoError(t, err)

	byPriority, total, err := svc.List(context.Background(), TestCaseFilters{ProjectID: project.ID, Priority: models.PriorityHigh}, 1, 50)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Checkout smoke", byPriority[0].Title)

	byQuery, total, err := svc.List(context.Background(), TestCaseFilters{ProjectID: project.ID, Query: "payment"}, 1, 50)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Checkout smoke", byQuery[0].Title)
}
