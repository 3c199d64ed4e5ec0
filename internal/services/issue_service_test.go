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

func newIssueService(t *testing.T, db *gorm.DB, now *time.Time) *IssueService {
	t.Helper()

	svc, err := NewIssueService(db, nil, nil, func() time.Time { return *now })
	require.NoError(t, err)
	return svc
}

func TestIssueCreateDefaultsAndViewerDenied(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newIssueService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	viewer := seedUser(t, db, models.RoleViewer)
	project := seedProject(t, db, engineer, "ISS")

	_, err := svc.Create(context.Background(), viewer, CreateIssueInput{
		ProjectID: project.ID,
		Title:     "Broken",
	})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)

	issue, err := svc.Create(context.Background(), engineer, CreateIssueInput{
		ProjectID: project.ID,
		Title:     "Broken checkout",
	})
	require.NoError(t, err)
	require.Equal(t, models.IssueStatusTodo, issue.Status)
	require.Equal(t, models.PriorityMedium, issue.Priority)
	require.Equal(t, models.IssueTypeBug, issue.IssueType)
	require.Equal(t, engineer.ID, issue.CreatedBy)
}

func TestIssueCreateChecksLinkedTestCase(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newIssueService(t, db, &now)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, engineer, "ISL")

	_, err := svc.Create(context.Background(), engineer, CreateIssueInput{
		ProjectID:  project.ID,
		Title:      "Linked",
		TestCaseID: strPtr("missing"),
	})
	require.ErrorIs(t, err, ErrTestCaseNotFound)
}

func TestIssueUpdateRecordsPerFieldHistory(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newIssueService(t, db, &now)
	admin := seedUser(t, db, models.RoleAdmin)
	engineer := seedUser(t, db, models.RoleQAEngineer)
	project := seedProject(t, db, admin, "ISH")

	issue, err := svc.Create(context.Background(), admin, CreateIssueInput{
		ProjectID: project.ID,
		Title:     "Original",
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), engineer, issue.ID, UpdateIssueInput{Title: strPtr("Renamed")})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)

	updated, err := svc.Update(context.Background(), admin, issue.ID, UpdateIssueInput{
		Title:    strPtr("Renamed"),
		Priority: strPtr(models.PriorityHigh),
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, models.PriorityHigh, updated.Priority)

	history, err := svc.History(context.Background(), issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	fields := map[string]models.IssueHistory{}
	for _, h := range history {
		fields[h.FieldName] = h
	}
	require.Equal(t, "Original", fields["title"].OldValue)
	require.Equal(t, "Renamed", fields["title"].NewValue)
	require.Equal(t, models.PriorityMedium, fields["priority"].OldValue)
	require.Equal(t, models.PriorityHigh, fields["priority"].NewValue)
}

func TestIssueUpdateNormalisesEmptyLinks(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newIssueService(t, db, &now)
	admin := seedUser(t, db, models.RoleAdmin)
	project := seedProject(t, db, admin, "ISN")
	testCase := seedTestCase(t, db, project, admin, "Case")

	issue, err := svc.Create(context.Background(), admin, CreateIssueInput{
		ProjectID:  project.ID,
		Title:      "Linked",
		TestCaseID: &testCase.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, issue.TestCaseID)

	updated, err := svc.Update(context.Background(), admin, issue.ID, UpdateIssueInput{
		TestCaseID: strPtr(""),
	})
	require.NoError(t, err)
	require.Nil(t, updated.TestCaseID)
}

func TestIssueStatusLifecycle(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := newIssueService(t, db, &now)
	admin := seedUser(t, db, models.RoleAdmin)
	project := seedProject(t, db, admin, "ISD")

	issue, err := svc.Create(context.Background(), admin, CreateIssueInput{
		ProjectID: project.ID,
		Title:     "Lifecycle",
	})
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), admin, issue.ID, "closed")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)

	done, err := svc.SetStatus(context.Background(), admin, issue.ID, models.IssueStatusDone)
	require.NoError(t, err)
	require.NotNil(t, done.ResolvedAt)
	require.True(t, done.ResolvedAt.Equal(now))

	reopened, err := svc.SetStatus(context.Background(), admin, issue.ID, models.IssueStatusInProgress)
	require.NoError(t, err)
	require.Nil(t, reopened.ResolvedAt)

	history, err := svc.History(context.Background(), issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestIssueDeleteRemovesHistory(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Now().UTC()
	svc := newIssueService(t, db, &now)
	admin := seedUser(t, db, models.RoleAdmin)
	project := seedProject(t, db, admin, "ISX")

	issue, err := svc.Create(context.Background(), admin, CreateIssueInput{
		ProjectID: project.ID,
		Title:     "Doomed",
	})
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), admin, issue.ID, models.IssueStatusInProgress)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), admin, issue.ID))

	var count int64
	require.NoError(t, db.Model(&models.IssueHistory{}).Where("issue_id = ?", issue.ID).Count(&count).Error)
	require.Zero(t, count)

	_, err = svc.GetByID(context.Background(), issue.ID)
	require.ErrorIs(t, err, ErrIssueNotFound)
}

func TestIssueAddAttachment(t *testing.T) {
	db := openServiceTestDB(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := newIssueService(t, db, &now)
	admin := seedUser(t, db, models.RoleAdmin)
	project := seedProject(t, db, admin, "ISA")

	issue, err := svc.Create(context.Background(), admin, CreateIssueInput{
		ProjectID: project.ID,
		Title:     "With screenshot",
	})
	require.NoError(t, err)

	updated, err := svc.AddAttachment(context.Background(), admin, issue.ID, Attachment{
		Name:        "screenshot.png",
		Path:        "attachments/screenshot.png",
		ContentType: "image/png",
		Size:        1024,
	})
	require.NoError(t, err)
	require.Contains(t, string(updated.Attachments), "screenshot.png")
	require.Contains(t, string(updated.Attachments), admin.ID)
}
