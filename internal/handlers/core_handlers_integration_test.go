package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/handlers/testutil"
	"github.com/testtrack-io/testtrack/internal/models"
)

func createProject(t *testing.T, env *testutil.Env, token, name, key string) map[string]any {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/projects", map[string]string{
		"name": name,
		"key":  key,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var project map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &project)
	return project
}

func TestProjectHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser(models.RoleAdmin, "Adm1nPassword")
	manager := env.CreateUser(models.RoleQAManager, "Manag3rPassword")
	viewer := env.CreateUser(models.RoleViewer, "View3rPassword")

	project := createProject(t, env, env.Token(manager), "Checkout", "chk")
	require.Equal(t, "CHK", project["key"])
	require.Equal(t, manager.ID, project["owner_id"])

	// Viewers cannot create projects.
	denied := env.Request(http.MethodPost, "/api/projects", map[string]string{
		"name": "Nope",
		"key":  "NOPE",
	}, env.Token(viewer))
	require.Equal(t, http.StatusForbidden, denied.Code)
	require.Equal(t, "FORBIDDEN", testutil.DecodeResponse(t, denied).Error.Code)

	projectID := project["id"].(string)

	// The owner can read but only admins may modify.
	get := env.Request(http.MethodGet, "/api/projects/"+projectID, nil, env.Token(manager))
	require.Equal(t, http.StatusOK, get.Code)

	ownerUpdate := env.Request(http.MethodPatch, "/api/projects/"+projectID, map[string]string{
		"name": "Checkout v2",
	}, env.Token(manager))
	require.Equal(t, http.StatusForbidden, ownerUpdate.Code)

	adminUpdate := env.Request(http.MethodPatch, "/api/projects/"+projectID, map[string]string{
		"name": "Checkout v2",
	}, env.Token(admin))
	require.Equal(t, http.StatusOK, adminUpdate.Code, adminUpdate.Body.String())

	list := env.Request(http.MethodGet, "/api/projects?page=1&per_page=10", nil, env.Token(admin))
	require.Equal(t, http.StatusOK, list.Code)
	resp := testutil.DecodeResponse(t, list)
	require.NotNil(t, resp.Meta)
	require.Equal(t, 1, resp.Meta.Page)

	del := env.Request(http.MethodDelete, "/api/projects/"+projectID, nil, env.Token(admin))
	require.Equal(t, http.StatusNoContent, del.Code)

	missing := env.Request(http.MethodGet, "/api/projects/"+projectID, nil, env.Token(admin))
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestTestCaseHandler_CreateUpdateHistory(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser(models.RoleAdmin, "Adm1nPassword")
	engineer := env.CreateUser(models.RoleQAEngineer, "Eng1neerPassword")

	project := createProject(t, env, env.Token(admin), "Payments", "PAY")
	projectID := project["id"].(string)

	folderResp := env.Request(http.MethodPost, "/api/folders", map[string]string{
		"project_id": projectID,
		"name":       "Smoke",
	}, env.Token(admin))
	require.Equal(t, http.StatusCreated, folderResp.Code, folderResp.Body.String())
	var folder map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, folderResp).Data, &folder)
	folderID := folder["id"].(string)

	create := env.Request(http.MethodPost, "/api/testcases", map[string]any{
		"project_id": projectID,
		"folder_id":  folderID,
		"title":      "Refund succeeds for settled payment",
		"steps":      "1. Settle payment\n2. Request refund",
	}, env.Token(engineer))
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var testCase map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &testCase)
	require.Equal(t, "medium", testCase["priority"])
	require.Equal(t, "functional", testCase["test_type"])
	require.EqualValues(t, 1, testCase["version"])

	caseID := testCase["id"].(string)

	update := env.Request(http.MethodPatch, "/api/testcases/"+caseID, map[string]any{
		"title":       "Refund succeeds for settled payments",
		"change_note": "plural titles",
	}, env.Token(engineer))
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())
	var updated map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, update).Data, &updated)
	require.EqualValues(t, 2, updated["version"])

	history := env.Request(http.MethodGet, "/api/testcases/"+caseID+"/history", nil, env.Token(engineer))
	require.Equal(t, http.StatusOK, history.Code)
	var records []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, history).Data, &records)
	require.Len(t, records, 1)

	filtered := env.Request(http.MethodGet, "/api/testcases?project_id="+projectID+"&priority=medium", nil, env.Token(engineer))
	require.Equal(t, http.StatusOK, filtered.Code)
	var cases []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, filtered).Data, &cases)
	require.Len(t, cases, 1)
}
