package handlers_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/handlers/testutil"
	"github.com/testtrack-io/testtrack/internal/models"
)

func TestIssueHandler_KanbanFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser(models.RoleAdmin, "Adm1nPassword")
	developer := env.CreateUser(models.RoleDeveloper, "Dev3loperPass")
	token := env.Token(admin)

	project := createProject(t, env, token, "Billing", "BIL")
	projectID := project["id"].(string)

	create := env.Request(http.MethodPost, "/api/issues", map[string]any{
		"project_id":  projectID,
		"title":       "Invoice total off by one cent",
		"priority":    "high",
		"assigned_to": developer.ID,
	}, env.Token(developer))
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var issue map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &issue)
	require.Equal(t, "todo", issue["status"])
	require.Equal(t, "bug", issue["issue_type"])
	issueID := issue["id"].(string)

	// Only admins move cards or edit fields.
	deniedMove := env.Request(http.MethodPatch, "/api/issues/"+issueID+"/status", map[string]string{
		"status": "in_progress",
	}, env.Token(developer))
	require.Equal(t, http.StatusForbidden, deniedMove.Code)

	move := env.Request(http.MethodPatch, "/api/issues/"+issueID+"/status", map[string]string{
		"status": "done",
	}, token)
	require.Equal(t, http.StatusOK, move.Code, move.Body.String())
	var moved map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, move).Data, &moved)
	require.NotNil(t, moved["resolved_at"])

	update := env.Request(http.MethodPatch, "/api/issues/"+issueID, map[string]string{
		"priority":   "critical",
		"resolution": "rounding mode fixed",
	}, token)
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())

	history := env.Request(http.MethodGet, "/api/issues/"+issueID+"/history", nil, token)
	require.Equal(t, http.StatusOK, history.Code)
	var records []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, history).Data, &records)
	require.NotEmpty(t, records)

	bogus := env.Request(http.MethodPatch, "/api/issues/"+issueID+"/status", map[string]string{
		"status": "closed",
	}, token)
	require.Equal(t, http.StatusBadRequest, bogus.Code)
}

func TestIssueHandler_Attachments(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser(models.RoleAdmin, "Adm1nPassword")
	token := env.Token(admin)

	project := createProject(t, env, token, "Search", "SRC")
	create := env.Request(http.MethodPost, "/api/issues", map[string]any{
		"project_id": project["id"].(string),
		"title":      "Empty results page renders blank",
	}, token)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	var issue map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &issue)
	issueID := issue["id"].(string)

	png := []byte("\x89PNG\r\n\x1a\nfake-image-bytes")
	upload := env.Upload("/api/issues/"+issueID+"/attachments", "file", "blank-page.png", "image/png", png, token)
	require.Equal(t, http.StatusCreated, upload.Code, upload.Body.String())
	require.Contains(t, upload.Body.String(), "blank-page.png")

	// Non-image uploads are rejected.
	text := env.Upload("/api/issues/"+issueID+"/attachments", "file", "notes.txt", "text/plain", []byte("notes"), token)
	require.Equal(t, http.StatusBadRequest, text.Code)

	// Files above the cap are rejected.
	big := bytes.Repeat([]byte("a"), (5<<20)+1)
	huge := env.Upload("/api/issues/"+issueID+"/attachments", "file", "huge.png", "image/png", big, token)
	require.Equal(t, http.StatusBadRequest, huge.Code)

	missing := env.Upload("/api/issues/unknown-id/attachments", "file", "shot.png", "image/png", png, token)
	require.Equal(t, http.StatusNotFound, missing.Code)
}
