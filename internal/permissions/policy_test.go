package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/models"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

func userWithRole(id string, role models.Role) *models.User {
	return &models.User{ID: id, Role: role}
}

func requireForbidden(t *testing.T, err error) *apperrors.AppError {
	t.Helper()

	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrForbidden.Code, appErr.Code)
	return appErr
}

func TestRequireAdmin(t *testing.T) {
	require.NoError(t, RequireAdmin(userWithRole("u1", models.RoleAdmin), ResourceUser))

	err := RequireAdmin(userWithRole("u2", models.RoleQAManager), ResourceUser)
	appErr := requireForbidden(t, err)
	require.Contains(t, appErr.Message, ResourceUser)

	require.ErrorIs(t, RequireAdmin(nil, ResourceUser), apperrors.ErrUnauthorized)
}

func TestCanCreateDeniesOnlyViewer(t *testing.T) {
	for _, role := range []models.Role{models.RoleAdmin, models.RoleQAManager, models.RoleQAEngineer, models.RoleDeveloper} {
		require.NoError(t, CanCreate(userWithRole("u", role), ResourceProject), "role %s", role)
	}

	err := CanCreate(userWithRole("u", models.RoleViewer), ResourceProject)
	appErr := requireForbidden(t, err)
	require.Contains(t, appErr.Message, ResourceProject)
}

func TestCanWriteIsAdminOnly(t *testing.T) {
	require.NoError(t, CanWrite(userWithRole("u", models.RoleAdmin), ResourceTestRun))

	// Creation and write are independent gates: a qa_engineer may create a
	// test run but not modify or delete one.
	engineer := userWithRole("u", models.RoleQAEngineer)
	require.NoError(t, CanCreate(engineer, ResourceTestRun))
	requireForbidden(t, CanWrite(engineer, ResourceTestRun))

	requireForbidden(t, CanWrite(userWithRole("u", models.RoleQAManager), ResourceIssue))
	requireForbidden(t, CanWrite(userWithRole("u", models.RoleDeveloper), ResourceIssue))
}

func TestCanModifyIgnoresOwnership(t *testing.T) {
	owner := userWithRole("owner-1", models.RoleQAManager)
	requireForbidden(t, CanModify(owner, ResourceProject, "owner-1"))

	require.NoError(t, CanModify(userWithRole("a", models.RoleAdmin), ResourceProject, "owner-1"))
}

func TestCheckOwnershipReadPath(t *testing.T) {
	owner := userWithRole("owner-1", models.RoleDeveloper)
	require.NoError(t, CheckOwnership(owner, ResourceProject, "owner-1"))

	stranger := userWithRole("other", models.RoleDeveloper)
	requireForbidden(t, CheckOwnership(stranger, ResourceProject, "owner-1"))

	require.NoError(t, CheckOwnership(userWithRole("a", models.RoleAdmin), ResourceProject, "owner-1"))
}

func TestCheckSelfScopeDeniesAdmins(t *testing.T) {
	require.NoError(t, CheckSelfScope(userWithRole("u1", models.RoleViewer), "u1"))

	requireForbidden(t, CheckSelfScope(userWithRole("u2", models.RoleViewer), "u1"))
	requireForbidden(t, CheckSelfScope(userWithRole("a1", models.RoleAdmin), "u1"))
}

func TestCanChangeRoleBlocksSelfDemotion(t *testing.T) {
	admin := userWithRole("a1", models.RoleAdmin)

	require.NoError(t, CanChangeRole(admin, "u2", models.RoleQAManager))
	require.NoError(t, CanChangeRole(admin, "a1", models.RoleAdmin))

	err := CanChangeRole(admin, "a1", models.RoleViewer)
	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)

	requireForbidden(t, CanChangeRole(userWithRole("m", models.RoleQAManager), "u2", models.RoleViewer))
}

func TestCanDeleteUserBlocksSelfDelete(t *testing.T) {
	admin := userWithRole("a1", models.RoleAdmin)

	require.NoError(t, CanDeleteUser(admin, "u2"))
	requireForbidden(t, CanDeleteUser(admin, "a1"))
	requireForbidden(t, CanDeleteUser(userWithRole("u", models.RoleDeveloper), "u2"))
}
