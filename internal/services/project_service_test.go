package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/models"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

func TestProjectCreateAssignsOwnerAndUppercasesKey(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewProjectService(db, nil)
	require.NoError(t, err)
	engineer := seedUser(t, db, models.RoleQAEngineer)

	project, err := svc.Create(context.Background(), engineer, CreateProjectInput{
		Name: "Checkout",
		Key:  "chk",
	})
	require.NoError(t, err)
	require.Equal(t, "CHK", project.Key)
	require.Equal(t, engineer.ID, project.OwnerID)
}

func TestProjectCreateDeniedForViewer(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewProjectService(db, nil)
	require.NoError(t, err)
	viewer := seedUser(t, db, models.RoleViewer)

	_, err = svc.Create(context.Background(), viewer, CreateProjectInput{Name: "X", Key: "X"})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)
}

func TestProjectCreateDuplicateKey(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewProjectService(db, nil)
	require.NoError(t, err)
	engineer := seedUser(t, db, models.RoleQAEngineer)

	_, err = svc.Create(context.Background(), engineer, CreateProjectInput{Name: "A", Key: "DUP"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), engineer, CreateProjectInput{Name: "B", Key: "dup"})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}

func TestProjectGetHonoursOwnership(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewProjectService(db, nil)
	require.NoError(t, err)
	owner := seedUser(t, db, models.RoleQAEngineer)
	other := seedUser(t, db, models.RoleQAEngineer)
	admin := seedUser(t, db, models.RoleAdmin)
	project := seedProject(t, db, owner, "OWN")

	_, err = svc.GetByID(context.Background(), owner, project.ID)
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), admin, project.ID)
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), other, project.ID)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)
}

func TestProjectListScopedByRole(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewProjectService(db, nil)
	require.NoError(t, err)
	alice := seedUser(t, db, models.RoleQAEngineer)
	bob := seedUser(t, db, models.RoleQAEngineer)
	admin := seedUser(t, db, models.RoleAdmin)
	seedProject(t, db, alice, "ALC")
	seedProject(t, db, bob, "BOB")

	all, total, err := svc.List(context.Background(), admin, 1, 50)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, all, 2)

	own, total, err := svc.List(context.Background(), alice, 1, 50)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "ALC", own[0].Key)
}

func TestProjectUpdateAdminOnlyEvenForOwner(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewProjectService(db, nil)
	require.NoError(t, err)
	owner := seedUser(t, db, models.RoleQAEngineer)
	admin := seedUser(t, db, models.RoleAdmin)
	project := seedProject(t, db, owner, "UPD")

	_, err = svc.Update(context.Background(), owner, project.ID, UpdateProjectInput{Name: strPtr("Renamed")})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)

	updated, err := svc.Update(context.Background(), admin, project.ID, UpdateProjectInput{Name: strPtr("Renamed")})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
}

func TestProjectDeleteAdminOnly(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewProjectService(db, nil)
	require.NoError(t, err)
	owner := seedUser(t, db, models.RoleQAManager)
	admin := seedUser(t, db, models.RoleAdmin)
	project := seedProject(t, db, owner, "DEL")

	err = svc.Delete(context.Background(), owner, project.ID)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)

	require.NoError(t, svc.Delete(context.Background(), admin, project.ID))

	_, err = svc.GetByID(context.Background(), admin, project.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)
}
