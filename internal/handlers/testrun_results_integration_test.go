package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/handlers/testutil"
	"github.com/testtrack-io/testtrack/internal/models"
)

func createTestCase(t *testing.T, env *testutil.Env, token, projectID, title string) string {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/testcases", map[string]any{
		"project_id": projectID,
		"title":      title,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var testCase map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &testCase)
	return testCase["id"].(string)
}

func TestTestRunHandler_ExecutionFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser(models.RoleAdmin, "Adm1nPassword")
	token := env.Token(admin)

	project := createProject(t, env, token, "Mobile", "MOB")
	projectID := project["id"].(string)

	caseA := createTestCase(t, env, token, projectID, "Cold start under two seconds")
	caseB := createTestCase(t, env, token, projectID, "Push token refresh")

	create := env.Request(http.MethodPost, "/api/testruns", map[string]any{
		"project_id":    projectID,
		"name":          "Release 2.4 regression",
		"environment":   "staging",
		"test_case_ids": []string{caseA, caseB, caseA},
	}, token)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var run map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &run)
	require.Equal(t, "planned", run["status"])
	runID := run["id"].(string)

	// Duplicate case ids are collapsed.
	ids, ok := run["test_case_ids"].([]any)
	require.True(t, ok, run["test_case_ids"])
	require.Len(t, ids, 2)

	start := env.Request(http.MethodPatch, "/api/testruns/"+runID, map[string]string{
		"status": "in_progress",
	}, token)
	require.Equal(t, http.StatusOK, start.Code, start.Body.String())
	var started map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, start).Data, &started)
	require.NotNil(t, started["started_at"])

	record := env.Request(http.MethodPost, "/api/testresults", map[string]any{
		"testrun_id":     runID,
		"testcase_id":    caseA,
		"status":         "passed",
		"execution_time": 1.8,
	}, token)
	require.Equal(t, http.StatusCreated, record.Code, record.Body.String())

	// Re-recording the same case overwrites instead of duplicating.
	again := env.Request(http.MethodPost, "/api/testresults", map[string]any{
		"testrun_id":  runID,
		"testcase_id": caseA,
		"status":      "failed",
		"comment":     "crash on relaunch",
	}, token)
	require.Equal(t, http.StatusCreated, again.Code, again.Body.String())

	results := env.Request(http.MethodGet, "/api/testruns/"+runID+"/results", nil, token)
	require.Equal(t, http.StatusOK, results.Code)
	var listed []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, results).Data, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, "failed", listed[0]["status"])

	record2 := env.Request(http.MethodPost, "/api/testresults", map[string]any{
		"testrun_id":  runID,
		"testcase_id": caseB,
		"status":      "untested",
	}, token)
	require.Equal(t, http.StatusCreated, record2.Code, record2.Body.String())

	stats := env.Request(http.MethodGet, "/api/testruns/"+runID+"/stats", nil, token)
	require.Equal(t, http.StatusOK, stats.Code)
	var runStats map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, stats).Data, &runStats)
	require.EqualValues(t, 2, runStats["total_cases"])
	require.EqualValues(t, 1, runStats["tested_cases"])
	require.EqualValues(t, 50, runStats["progress"])
	require.EqualValues(t, 0, runStats["pass_rate"])

	complete := env.Request(http.MethodPatch, "/api/testruns/"+runID, map[string]string{
		"status": "completed",
	}, token)
	require.Equal(t, http.StatusOK, complete.Code, complete.Body.String())
	var completed map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, complete).Data, &completed)
	require.NotNil(t, completed["completed_at"])

	invalid := env.Request(http.MethodPatch, "/api/testruns/"+runID, map[string]string{
		"status": "cancelled",
	}, token)
	require.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestTestRunHandler_WriteRequiresAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser(models.RoleAdmin, "Adm1nPassword")
	engineer := env.CreateUser(models.RoleQAEngineer, "Eng1neerPassword")

	project := createProject(t, env, env.Token(admin), "Web", "WEB")

	denied := env.Request(http.MethodPost, "/api/testruns", map[string]any{
		"project_id": project["id"].(string),
		"name":       "Nightly",
	}, env.Token(engineer))
	require.Equal(t, http.StatusForbidden, denied.Code)
	require.Equal(t, "FORBIDDEN", testutil.DecodeResponse(t, denied).Error.Code)
}
