package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/database"
	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/services"
)

func openMaintenanceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, email string, mutate func(*models.User)) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		Username:     email,
		Role:         models.RoleViewer,
		PasswordHash: "irrelevant",
		IsActive:     true,
	}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCleanupAccountState(t *testing.T) {
	db := openMaintenanceTestDB(t)
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)

	elapsed := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	expiredToken := "expired-token"
	activeToken := "active-token"
	expiredAt := now.Add(-time.Hour)
	activeAt := now.Add(time.Hour)

	released := seedAccount(t, db, "released@example.com", func(u *models.User) {
		u.IsLocked = true
		u.LockedUntil = &elapsed
		u.FailedLoginAttempts = 5
	})
	stillLocked := seedAccount(t, db, "locked@example.com", func(u *models.User) {
		u.IsLocked = true
		u.LockedUntil = &future
		u.FailedLoginAttempts = 5
	})
	tokenExpired := seedAccount(t, db, "stale@example.com", func(u *models.User) {
		u.ResetToken = &expiredToken
		u.ResetTokenExpires = &expiredAt
	})
	tokenActive := seedAccount(t, db, "fresh@example.com", func(u *models.User) {
		u.ResetToken = &activeToken
		u.ResetTokenExpires = &activeAt
	})

	stats, err := CleanupAccountState(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.UnlockedAccounts)
	require.Equal(t, int64(1), stats.ExpiredResetTokens)

	reload := func(id string) *models.User {
		var user models.User
		require.NoError(t, db.First(&user, "id = ?", id).Error)
		return &user
	}

	unlocked := reload(released.ID)
	require.False(t, unlocked.IsLocked)
	require.Nil(t, unlocked.LockedUntil)
	require.Zero(t, unlocked.FailedLoginAttempts)

	locked := reload(stillLocked.ID)
	require.True(t, locked.IsLocked)
	require.NotNil(t, locked.LockedUntil)

	require.Nil(t, reload(tokenExpired.ID).ResetToken)
	require.Nil(t, reload(tokenExpired.ID).ResetTokenExpires)
	require.NotNil(t, reload(tokenActive.ID).ResetToken)
}

func TestCleanerRunOnce(t *testing.T) {
	db := openMaintenanceTestDB(t)

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

	lockedUntil := now.Add(-time.Minute)
	seedAccount(t, db, "stuck@example.com", func(u *models.User) {
		u.IsLocked = true
		u.LockedUntil = &lockedUntil
	})

	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "login.success",
		Result: "success",
	}))
	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "login.failure",
		Result: "failure",
	}))
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ?", "login.failure").
		Update("created_at", now.AddDate(0, 0, -45)).Error)

	cleaner := NewCleaner(db, auditSvc,
		WithNow(func() time.Time { return now }),
		WithAuditRetentionDays(30),
	)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var locked int64
	require.NoError(t, db.Model(&models.User{}).Where("is_locked = ?", true).Count(&locked).Error)
	require.Zero(t, locked)

	var entries int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&entries).Error)
	require.EqualValues(t, 1, entries)
}

func TestCleanerStartStop(t *testing.T) {
	db := openMaintenanceTestDB(t)

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	cleaner := NewCleaner(db, auditSvc,
		WithAccountSchedule("@every 1h"),
		WithAuditSchedule("@every 24h"),
	)
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	db := openMaintenanceTestDB(t)

	cleaner := NewCleaner(db, nil, WithAccountSchedule("not-a-spec"))
	require.Error(t, cleaner.Start())
}
