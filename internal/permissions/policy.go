package permissions

import (
	"fmt"

	"github.com/testtrack-io/testtrack/internal/models"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/metrics"
)

// Resource labels carried in Forbidden messages.
const (
	ResourceProject             = "project"
	ResourceFolder              = "folder"
	ResourceTestCase            = "test case"
	ResourceTestRun             = "test run"
	ResourceTestResult          = "test result"
	ResourceIssue               = "issue"
	ResourceUser                = "user"
	ResourceNotificationSetting = "notification settings"
	ResourceAudit               = "audit log"
)

func deny(resource, message string) *apperrors.AppError {
	metrics.PermissionDenials.WithLabelValues(resource).Inc()
	return apperrors.NewForbidden(message)
}

// RequireAdmin allows only admins through.
func RequireAdmin(actor *models.User, resource string) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return deny(resource, fmt.Sprintf("admin role required to manage %s", resource))
	}
	return nil
}

// CanCreate gates resource creation: every role except viewer may create.
func CanCreate(actor *models.User, resource string) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.Role == models.RoleViewer {
		return deny(resource, fmt.Sprintf("viewers cannot create %s", resource))
	}
	return nil
}

// CanWrite gates modification and deletion of shared resources (test runs,
// issues, folders): admin only, regardless of ownership.
func CanWrite(actor *models.User, resource string) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return deny(resource, fmt.Sprintf("only admins can modify %s", resource))
	}
	return nil
}

// CanModify gates ownership-carrying resources (projects). The owner field is
// deliberately not consulted here: modify and delete collapse to admin only.
func CanModify(actor *models.User, resource, ownerID string) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return deny(resource, fmt.Sprintf("only admins can modify this %s", resource))
	}
	return nil
}

// CheckOwnership gates the read path: admins see everything, other roles only
// what they own.
func CheckOwnership(actor *models.User, resource, ownerID string) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.ID != ownerID {
		return deny(resource, fmt.Sprintf("you do not have access to this %s", resource))
	}
	return nil
}

// CheckSelfScope gates strictly personal resources (notification settings):
// only the owning user may touch them. Admins are denied like everyone else.
func CheckSelfScope(actor *models.User, targetUserID string) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.ID != targetUserID {
		return deny(ResourceNotificationSetting, fmt.Sprintf("you can only access your own %s", ResourceNotificationSetting))
	}
	return nil
}

// CanChangeRole gates role updates: admin only, and an admin may not remove
// their own admin role.
func CanChangeRole(actor *models.User, targetUserID string, newRole models.Role) error {
	if err := RequireAdmin(actor, ResourceUser); err != nil {
		return err
	}
	if actor.ID == targetUserID && newRole != models.RoleAdmin {
		return apperrors.NewBadRequest("you cannot remove your own admin role")
	}
	return nil
}

// CanDeleteUser gates user deletion: admin only, self-delete forbidden.
func CanDeleteUser(actor *models.User, targetUserID string) error {
	if err := RequireAdmin(actor, ResourceUser); err != nil {
		return err
	}
	if actor.ID == targetUserID {
		return deny(ResourceUser, "you cannot delete your own account")
	}
	return nil
}
