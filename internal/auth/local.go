package auth

import (
	"context"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/pkg/crypto"
	"github.com/testtrack-io/testtrack/pkg/logger"
)

// Reset modes supported by RequestPasswordReset.
const (
	ResetModeToken        = "token"
	ResetModeTempPassword = "temp_password"
)

const (
	resetTokenDigits   = 6
	tempPasswordLength = 8
)

// ResetNotifier delivers the reset credential to the user. Delivery is
// best-effort: failures are logged and never surfaced to the caller.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, credential string, temporary bool) error
}

// LocalConfig defines tunable behaviour for the local provider.
type LocalConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	ResetTokenTTL    time.Duration
	ResetThrottle    time.Duration
	ResetMode        string

	Clock func() time.Time
	Sleep func(time.Duration)
}

// RegisterInput captures the details required to register a new user.
// Self-registration always produces a viewer.
type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
}

// LocalProvider implements email/username + password authentication with
// lockout, password reset, and temporary password handling.
type LocalProvider struct {
	db       *gorm.DB
	notifier ResetNotifier
	log      *zap.Logger

	threshold     int
	lockDuration  time.Duration
	resetTokenTTL time.Duration
	resetThrottle time.Duration
	resetMode     string

	clock func() time.Time
	sleep func(time.Duration)
}

// NewLocalProvider builds a provider with sane defaults.
func NewLocalProvider(db *gorm.DB, notifier ResetNotifier, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}

	threshold := cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}
	lockDuration := cfg.LockoutDuration
	if lockDuration <= 0 {
		lockDuration = 30 * time.Minute
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	throttle := cfg.ResetThrottle
	if throttle <= 0 {
		throttle = 5 * time.Minute
	}
	mode := cfg.ResetMode
	if mode == "" {
		mode = ResetModeToken
	}
	if mode != ResetModeToken && mode != ResetModeTempPassword {
		return nil, fmt.Errorf("local provider: unknown reset mode %q", mode)
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}
	sleep := time.Sleep
	if cfg.Sleep != nil {
		sleep = cfg.Sleep
	}

	return &LocalProvider{
		db:            db,
		notifier:      notifier,
		log:           logger.WithModule("auth.local"),
		threshold:     threshold,
		lockDuration:  lockDuration,
		resetTokenTTL: resetTTL,
		resetThrottle: throttle,
		resetMode:     mode,
		clock:         clock,
		sleep:         sleep,
	}, nil
}

// Authenticate verifies the supplied credentials and returns the user when
// successful. Lock state is resolved before the active flag and before the
// password is checked, so a locked account rejects even correct credentials.
func (p *LocalProvider) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, &InvalidCredentialsError{Threshold: p.threshold}
	}

	user, err := p.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &InvalidCredentialsError{Threshold: p.threshold}
	}

	now := p.clock()

	if user.IsLocked {
		if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
			return nil, NewLockedError(now, *user.LockedUntil)
		}
		// Lock window elapsed (or lock timestamp missing): clear the lock and
		// continue with the cleared in-memory state.
		user.IsLocked = false
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		if err := p.db.WithContext(ctx).Model(user).Updates(map[string]any{
			"is_locked":             false,
			"failed_login_attempts": 0,
			"locked_until":          nil,
		}).Error; err != nil {
			return nil, fmt.Errorf("local provider: clear lock state: %w", err)
		}
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if !crypto.VerifyPassword(user.PasswordHash, password) {
		return nil, p.recordFailedAttempt(ctx, user, now)
	}

	updates := map[string]any{"last_login_at": now}
	if user.FailedLoginAttempts > 0 {
		updates["failed_login_attempts"] = 0
		updates["is_locked"] = false
		updates["locked_until"] = nil
		user.FailedLoginAttempts = 0
		user.IsLocked = false
		user.LockedUntil = nil
	}
	if err := p.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("local provider: record login: %w", err)
	}
	user.LastLoginAt = &now

	return user, nil
}

// lookup matches the identifier against email first, then username,
// case-sensitive as stored.
func (p *LocalProvider) lookup(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).Take(&user, "email = ?", identifier).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}

	err = p.db.WithContext(ctx).Take(&user, "username = ?", identifier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}
	return &user, nil
}

// recordFailedAttempt bumps the counter with an atomic SQL increment so that
// concurrent failures cannot under-count, then applies the lockout once the
// threshold is reached.
func (p *LocalProvider) recordFailedAttempt(ctx context.Context, user *models.User, now time.Time) error {
	if err := p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		UpdateColumn("failed_login_attempts", gorm.Expr("failed_login_attempts + ?", 1)).Error; err != nil {
		return fmt.Errorf("local provider: increment failed attempts: %w", err)
	}

	var current models.User
	if err := p.db.WithContext(ctx).Select("failed_login_attempts").
		Take(&current, "id = ?", user.ID).Error; err != nil {
		return fmt.Errorf("local provider: reload failed attempts: %w", err)
	}
	attempts := current.FailedLoginAttempts

	if attempts >= p.threshold {
		lockUntil := now.Add(p.lockDuration)
		if err := p.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"is_locked":    true,
				"locked_until": lockUntil,
			}).Error; err != nil {
			return fmt.Errorf("local provider: apply lockout: %w", err)
		}
		return NewLockedError(now, lockUntil)
	}

	return &InvalidCredentialsError{Attempts: attempts, Threshold: p.threshold}
}

// Register creates a new viewer account after enforcing the password policy.
func (p *LocalProvider) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.TrimSpace(input.Email)
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" {
		return nil, errors.New("local provider: email and username are required")
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("local provider: hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		FullName:     strings.TrimSpace(input.FullName),
		Role:         models.RoleViewer,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset issues a reset credential for the given email. The
// return value carries no signal about account existence: every branch ends
// in the same nil after a randomized 1-2s delay.
func (p *LocalProvider) RequestPasswordReset(ctx context.Context, email string) error {
	defer p.sleep(time.Duration(1000+mrand.IntN(1001)) * time.Millisecond)

	var user models.User
	err := p.db.WithContext(ctx).Take(&user, "email = ?", strings.TrimSpace(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.log.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("local provider: query user: %w", err)
	}

	now := p.clock()
	if user.PasswordResetAt != nil && now.Sub(*user.PasswordResetAt) < p.resetThrottle {
		p.log.Info("password reset throttled", zap.String("user_id", user.ID))
		return nil
	}

	var credential string
	temporary := p.resetMode == ResetModeTempPassword

	if temporary {
		tempPassword, err := crypto.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return fmt.Errorf("local provider: generate temp password: %w", err)
		}
		hash, err := crypto.HashPassword(tempPassword)
		if err != nil {
			return fmt.Errorf("local provider: hash temp password: %w", err)
		}
		if err := p.db.WithContext(ctx).Model(&user).Updates(map[string]any{
			"password_hash":       hash,
			"is_temp_password":    true,
			"reset_token":         nil,
			"reset_token_expires": nil,
			"password_reset_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("local provider: store temp password: %w", err)
		}
		credential = tempPassword
	} else {
		code, err := crypto.GenerateNumericCode(resetTokenDigits)
		if err != nil {
			return fmt.Errorf("local provider: generate reset token: %w", err)
		}
		expires := now.Add(p.resetTokenTTL)
		if err := p.db.WithContext(ctx).Model(&user).Updates(map[string]any{
			"reset_token":         code,
			"reset_token_expires": expires,
			"password_reset_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("local provider: store reset token: %w", err)
		}
		credential = code
	}

	if p.notifier != nil {
		if err := p.notifier.SendPasswordReset(ctx, &user, credential, temporary); err != nil {
			p.log.Warn("password reset notification failed",
				zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

// ConfirmPasswordReset consumes a reset token and sets the new password. The
// token is single-use: the clearing update is conditional on the token still
// being present, so a second confirmation with the same token fails.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	now := p.clock()

	var user models.User
	err := p.db.WithContext(ctx).
		Take(&user, "reset_token = ? AND reset_token_expires > ?", token, now).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("local provider: query reset token: %w", err)
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("local provider: hash password: %w", err)
	}

	result := p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_token = ?", user.ID, token).
		Updates(map[string]any{
			"password_hash":         hash,
			"reset_token":           nil,
			"reset_token_expires":   nil,
			"is_temp_password":      false,
			"failed_login_attempts": 0,
			"password_changed_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("local provider: update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidOrExpiredToken
	}
	return nil
}

// ChangePassword updates a password after verifying the current credential.
func (p *LocalProvider) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("local provider: user id is required")
	}

	var user models.User
	if err := p.db.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &InvalidCredentialsError{Threshold: p.threshold}
		}
		return fmt.Errorf("local provider: find user: %w", err)
	}

	if !crypto.VerifyPassword(user.PasswordHash, currentPassword) {
		return &InvalidCredentialsError{Threshold: p.threshold}
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("local provider: hash password: %w", err)
	}

	now := p.clock()
	if err := p.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":         hash,
		"is_temp_password":      false,
		"password_changed_at":   now,
		"failed_login_attempts": 0,
	}).Error; err != nil {
		return fmt.Errorf("local provider: update password: %w", err)
	}
	return nil
}

// Unlock clears the lockout state unconditionally. Admin-gating happens at
// the policy layer.
func (p *LocalProvider) Unlock(ctx context.Context, userID string) error {
	var user models.User
	if err := p.db.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	if err := p.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"is_locked":             false,
		"failed_login_attempts": 0,
		"locked_until":          nil,
	}).Error; err != nil {
		return fmt.Errorf("local provider: unlock: %w", err)
	}
	return nil
}
