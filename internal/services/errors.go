package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = apperrors.New("PROJECT_NOT_FOUND", "Project not found", http.StatusNotFound)
	// ErrFolderNotFound indicates the requested test folder does not exist.
	ErrFolderNotFound = apperrors.New("FOLDER_NOT_FOUND", "Test folder not found", http.StatusNotFound)
	// ErrTestCaseNotFound indicates the requested test case does not exist.
	ErrTestCaseNotFound = apperrors.New("TESTCASE_NOT_FOUND", "Test case not found", http.StatusNotFound)
	// ErrTestRunNotFound indicates the requested test run does not exist.
	ErrTestRunNotFound = apperrors.New("TESTRUN_NOT_FOUND", "Test run not found", http.StatusNotFound)
	// ErrTestResultNotFound indicates the requested test result does not exist.
	ErrTestResultNotFound = apperrors.New("TESTRESULT_NOT_FOUND", "Test result not found", http.StatusNotFound)
	// ErrIssueNotFound indicates the requested issue does not exist.
	ErrIssueNotFound = apperrors.New("ISSUE_NOT_FOUND", "Issue not found", http.StatusNotFound)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
