package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/models"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

func TestUserCreateAdminOnly(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	admin := seedUser(t, db, models.RoleAdmin)
	manager := seedUser(t, db, models.RoleQAManager)

	_, err = svc.Create(context.Background(), manager, CreateUserInput{
		Email: "new@example.com", Username: "new", Password: "abcd1234",
	})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)

	user, err := svc.Create(context.Background(), admin, CreateUserInput{
		Email: "new@example.com", Username: "new", Password: "abcd1234",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleViewer, user.Role)
	require.True(t, user.IsActive)
	require.NotEqual(t, "abcd1234", user.PasswordHash)
}

func TestUserCreateRejectsWeakPasswordAndBadRole(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	admin := seedUser(t, db, models.RoleAdmin)

	_, err = svc.Create(context.Background(), admin, CreateUserInput{
		Email: "weak@example.com", Username: "weak", Password: "short1",
	})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)

	_, err = svc.Create(context.Background(), admin, CreateUserInput{
		Email: "role@example.com", Username: "role", Password: "abcd1234", Role: "superuser",
	})
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	admin := seedUser(t, db, models.RoleAdmin)

	_, err = svc.Create(context.Background(), admin, CreateUserInput{
		Email: "dup@example.com", Username: "dupone", Password: "abcd1234",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), admin, CreateUserInput{
		Email: "dup@example.com", Username: "duptwo", Password: "abcd1234",
	})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}

func TestUserSetRoleBlocksSelfDemotion(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	admin := seedUser(t, db, models.RoleAdmin)
	target := seedUser(t, db, models.RoleViewer)

	_, err = svc.SetRole(context.Background(), admin, admin.ID, models.RoleViewer)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)

	updated, err := svc.SetRole(context.Background(), admin, target.ID, models.RoleQAManager)
	require.NoError(t, err)
	require.Equal(t, models.RoleQAManager, updated.Role)
}

func TestUserDeleteBlocksSelf(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	admin := seedUser(t, db, models.RoleAdmin)
	target := seedUser(t, db, models.RoleViewer)

	err = svc.Delete(context.Background(), admin, admin.ID)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)

	require.NoError(t, svc.Delete(context.Background(), admin, target.ID))
	_, err = svc.GetByID(context.Background(), target.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserSetActiveAndListFilters(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	admin := seedUser(t, db, models.RoleAdmin)
	target := seedUser(t, db, models.RoleQAEngineer)

	require.NoError(t, svc.SetActive(context.Background(), admin, target.ID, false))

	inactive := false
	users, total, err := svc.List(context.Background(), ListUsersOptions{
		Filters: UserFilters{IsActive: &inactive},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, target.ID, users[0].ID)

	engineers, _, err := svc.List(context.Background(), ListUsersOptions{
		Filters: UserFilters{Role: models.RoleQAEngineer},
	})
	require.NoError(t, err)
	require.Len(t, engineers, 1)
}
