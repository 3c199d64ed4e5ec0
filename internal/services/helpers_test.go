package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/database"
	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/pkg/mail"
)

type captureMailer struct {
	messages []mail.Message
	err      error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

var userSeq int

func seedUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()

	userSeq++
	user := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		Username:     fmt.Sprintf("user%d", userSeq),
		FullName:     fmt.Sprintf("User %d", userSeq),
		Role:         role,
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedProject(t *testing.T, db *gorm.DB, owner *models.User, key string) *models.Project {
	t.Helper()

	project := &models.Project{
		Name:    "Project " + key,
		Key:     key,
		OwnerID: owner.ID,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

func seedTestCase(t *testing.T, db *gorm.DB, project *models.Project, owner *models.User, title string) *models.TestCase {
	t.Helper()

	testCase := &models.TestCase{
		ProjectID: project.ID,
		Title:     title,
		Priority:  models.PriorityMedium,
		TestType:  models.TestTypeFunctional,
		Version:   1,
		OwnerID:   owner.ID,
	}
	require.NoError(t, db.Create(testCase).Error)
	return testCase
}

func seedTestRun(t *testing.T, db *gorm.DB, project *models.Project, creator *models.User, name string) *models.TestRun {
	t.Helper()

	run := &models.TestRun{
		ProjectID: project.ID,
		Name:      name,
		Status:    models.TestRunStatusPlanned,
		CreatedBy: creator.ID,
	}
	require.NoError(t, db.Create(run).Error)
	return run
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
