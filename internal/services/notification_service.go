package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/pkg/logger"
	"github.com/testtrack-io/testtrack/pkg/mail"
	"github.com/testtrack-io/testtrack/pkg/metrics"
)

// Notification kinds, used for metrics labels and settings lookups.
const (
	notifyKindIssueAssigned    = "issue_assigned"
	notifyKindIssueUpdated     = "issue_updated"
	notifyKindTestRunAssigned  = "testrun_assigned"
	notifyKindTestRunCompleted = "testrun_completed"
	notifyKindPasswordReset    = "password_reset"
)

// NotificationService formats and delivers email notifications. Delivery is
// best-effort: failures are logged and counted, never propagated to the
// operation that triggered them.
type NotificationService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	log     *zap.Logger
}

// NewNotificationService wires the mailer and settings store together.
func NewNotificationService(db *gorm.DB, mailer mail.Mailer, baseURL string) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	return &NotificationService{
		db:      db,
		mailer:  mailer,
		baseURL: baseURL,
		log:     logger.WithModule("notifications"),
	}, nil
}

// settingsFor loads the user's notification toggles; a missing row means all
// notifications are enabled.
func (s *NotificationService) settingsFor(ctx context.Context, userID string) models.NotificationSetting {
	defaults := models.NotificationSetting{
		UserID:                 userID,
		NotifyIssueAssigned:    true,
		NotifyIssueUpdated:     true,
		NotifyTestRunAssigned:  true,
		NotifyTestRunCompleted: true,
	}

	var setting models.NotificationSetting
	err := s.db.WithContext(ctx).Take(&setting, "user_id = ?", userID).Error
	if err != nil {
		return defaults
	}
	return setting
}

func (s *NotificationService) deliver(ctx context.Context, kind, to, subject, body string) {
	if s.mailer == nil {
		metrics.NotificationsSent.WithLabelValues(kind, "skipped").Inc()
		return
	}

	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{to},
		Subject: subject,
		Body:    body,
	})
	switch {
	case errors.Is(err, mail.ErrSMTPDisabled):
		metrics.NotificationsSent.WithLabelValues(kind, "skipped").Inc()
		s.log.Info("email delivery disabled, logging only",
			zap.String("kind", kind), zap.String("subject", subject))
	case err != nil:
		metrics.NotificationsSent.WithLabelValues(kind, "failed").Inc()
		s.log.Error("notification delivery failed",
			zap.String("kind", kind), zap.Error(err))
	default:
		metrics.NotificationsSent.WithLabelValues(kind, "sent").Inc()
	}
}

// NotifyIssueAssigned emails the assignee about a newly assigned issue.
func (s *NotificationService) NotifyIssueAssigned(ctx context.Context, assignee *models.User, issue *models.Issue, assignedBy string) {
	if assignee == nil || issue == nil {
		return
	}
	if !s.settingsFor(ctx, assignee.ID).NotifyIssueAssigned {
		metrics.NotificationsSent.WithLabelValues(notifyKindIssueAssigned, "skipped").Inc()
		return
	}

	subject := fmt.Sprintf("[TestTrack] Issue assigned to you: %s", issue.Title)
	body := fmt.Sprintf(`Hello %s,

A new issue has been assigned to you.

Issue title: %s
Issue ID: %s
Assigned by: %s

View issues: %s/issues

Test Management System
`, assignee.FullName, issue.Title, issue.ID, assignedBy, s.baseURL)

	s.deliver(ctx, notifyKindIssueAssigned, assignee.Email, subject, body)
}

// NotifyIssueUpdated emails the assignee when an assigned issue changes.
func (s *NotificationService) NotifyIssueUpdated(ctx context.Context, assignee *models.User, issue *models.Issue, updatedBy, updateType string) {
	if assignee == nil || issue == nil {
		return
	}
	if !s.settingsFor(ctx, assignee.ID).NotifyIssueUpdated {
		metrics.NotificationsSent.WithLabelValues(notifyKindIssueUpdated, "skipped").Inc()
		return
	}

	subject := fmt.Sprintf("[TestTrack] Assigned issue updated: %s", issue.Title)
	body := fmt.Sprintf(`Hello %s,

An issue assigned to you has been updated.

Issue title: %s
Issue ID: %s
Change: %s
Updated by: %s

View issues: %s/issues

Test Management System
`, assignee.FullName, issue.Title, issue.ID, updateType, updatedBy, s.baseURL)

	s.deliver(ctx, notifyKindIssueUpdated, assignee.Email, subject, body)
}

// NotifyTestRunAssigned emails the assignee about a newly assigned test run.
func (s *NotificationService) NotifyTestRunAssigned(ctx context.Context, assignee *models.User, run *models.TestRun, assignedBy string) {
	if assignee == nil || run == nil {
		return
	}
	if !s.settingsFor(ctx, assignee.ID).NotifyTestRunAssigned {
		metrics.NotificationsSent.WithLabelValues(notifyKindTestRunAssigned, "skipped").Inc()
		return
	}

	subject := fmt.Sprintf("[TestTrack] Test run assigned to you: %s", run.Name)
	body := fmt.Sprintf(`Hello %s,

A new test run has been assigned to you.

Test run name: %s
Test run ID: %s
Assigned by: %s

Start testing: %s/testruns

Test Management System
`, assignee.FullName, run.Name, run.ID, assignedBy, s.baseURL)

	s.deliver(ctx, notifyKindTestRunAssigned, assignee.Email, subject, body)
}

// NotifyTestRunCompleted emails the recipient when a test run finishes,
// including the pass rate when one is available.
func (s *NotificationService) NotifyTestRunCompleted(ctx context.Context, recipient *models.User, run *models.TestRun, passRate *float64) {
	if recipient == nil || run == nil {
		return
	}
	if !s.settingsFor(ctx, recipient.ID).NotifyTestRunCompleted {
		metrics.NotificationsSent.WithLabelValues(notifyKindTestRunCompleted, "skipped").Inc()
		return
	}

	passRateText := ""
	if passRate != nil {
		passRateText = fmt.Sprintf("\nPass rate: %.1f%%", *passRate)
	}

	subject := fmt.Sprintf("[TestTrack] Test run completed: %s", run.Name)
	body := fmt.Sprintf(`Hello %s,

A test run has completed.

Test run name: %s
Test run ID: %s%s

View results: %s/testruns

Test Management System
`, recipient.FullName, run.Name, run.ID, passRateText, s.baseURL)

	s.deliver(ctx, notifyKindTestRunCompleted, recipient.Email, subject, body)
}

// SendPasswordReset delivers the reset credential. Unlike the other
// notifications this reports failures to the caller, which logs and swallows
// them; it ignores the per-user toggles because the account owner asked for it.
func (s *NotificationService) SendPasswordReset(ctx context.Context, user *models.User, credential string, temporary bool) error {
	if user == nil {
		return errors.New("notification service: user is required")
	}

	var subject, body string
	if temporary {
		subject = "[TestTrack] Your temporary password"
		body = fmt.Sprintf(`Hello %s,

A temporary password was issued for your account:

    %s

Sign in with it and change your password right away.

Test Management System
`, user.FullName, credential)
	} else {
		subject = "[TestTrack] Your password reset code"
		body = fmt.Sprintf(`Hello %s,

Your password reset code is:

    %s

The code expires in 30 minutes and can be used once.

Test Management System
`, user.FullName, credential)
	}

	if s.mailer == nil {
		metrics.NotificationsSent.WithLabelValues(notifyKindPasswordReset, "skipped").Inc()
		return nil
	}

	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: subject,
		Body:    body,
	})
	if errors.Is(err, mail.ErrSMTPDisabled) {
		metrics.NotificationsSent.WithLabelValues(notifyKindPasswordReset, "skipped").Inc()
		s.log.Info("email delivery disabled, reset credential not sent",
			zap.String("user_id", user.ID))
		return nil
	}
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(notifyKindPasswordReset, "failed").Inc()
		return err
	}

	metrics.NotificationsSent.WithLabelValues(notifyKindPasswordReset, "sent").Inc()
	return nil
}
