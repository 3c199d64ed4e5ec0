package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultAccountSpec        = "@hourly"
	defaultAuditSpec          = "@daily"
)

// Cleaner coordinates background maintenance tasks: releasing elapsed account
// lockouts, purging expired password reset tokens, and pruning stale audit
// logs.
type Cleaner struct {
	db        *gorm.DB
	audit     *services.AuditService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	retention int

	accountSchedule string
	auditSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithAccountSchedule overrides the cron specification for account state cleanup.
func WithAccountSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.accountSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:              db,
		audit:           audit,
		now:             time.Now,
		retention:       defaultAuditRetentionDays,
		accountSchedule: defaultAccountSpec,
		auditSchedule:   defaultAuditSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.audit != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at
// least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.accountSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupAccountState(ctx, c.db, c.now()); err != nil {
				c.log.Warn("account state cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.db != nil {
		if _, err := CleanupAccountState(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// AccountCleanupStats captures the number of accounts touched by each routine.
type AccountCleanupStats struct {
	UnlockedAccounts   int64
	ExpiredResetTokens int64
}

// CleanupAccountState releases lockouts whose window has elapsed and clears
// password reset tokens past their expiry.
func CleanupAccountState(ctx context.Context, db *gorm.DB, now time.Time) (AccountCleanupStats, error) {
	if db == nil {
		return AccountCleanupStats{}, errors.New("cleanup accounts: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := AccountCleanupStats{}

	result := db.WithContext(ctx).Model(&models.User{}).
		Where("is_locked = ? AND locked_until IS NOT NULL AND locked_until <= ?", true, now).
		Updates(map[string]any{
			"is_locked":             false,
			"locked_until":          nil,
			"failed_login_attempts": 0,
		})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup accounts: release lockouts: %w", result.Error)
	}
	stats.UnlockedAccounts = result.RowsAffected

	result = db.WithContext(ctx).Model(&models.User{}).
		Where("reset_token IS NOT NULL AND reset_token_expires IS NOT NULL AND reset_token_expires <= ?", now).
		Updates(map[string]any{
			"reset_token":         nil,
			"reset_token_expires": nil,
		})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup accounts: expire reset tokens: %w", result.Error)
	}
	stats.ExpiredResetTokens = result.RowsAffected

	return stats, nil
}
