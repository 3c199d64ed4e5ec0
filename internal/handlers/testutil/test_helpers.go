package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/api"
	"github.com/testtrack-io/testtrack/internal/app"
	iauth "github.com/testtrack-io/testtrack/internal/auth"
	"github.com/testtrack-io/testtrack/internal/database"
	"github.com/testtrack-io/testtrack/internal/middleware"
	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/internal/storage"
	"github.com/testtrack-io/testtrack/pkg/crypto"
	"github.com/testtrack-io/testtrack/pkg/mail"
	"github.com/testtrack-io/testtrack/pkg/response"
)

var userSeq atomic.Int64

// Env encapsulates a fully-wired API instance backed by an in-memory database
// for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService

	deps api.Dependencies
}

// Dependencies returns the wired dependency set so tests can build extra
// routers with custom configuration against the same database.
func (e *Env) Dependencies() api.Dependencies {
	return e.deps
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name()),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	mailer, err := mail.NewSMTPMailer(mail.SMTPSettings{Enabled: false})
	require.NoError(t, err)

	notifier, err := services.NewNotificationService(db, mailer, "http://testtrack.test")
	require.NoError(t, err)

	provider, err := iauth.NewLocalProvider(db, notifier, iauth.LocalConfig{})
	require.NoError(t, err)

	blobStore, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	cfg := &app.Config{
		RateLimit: app.RateLimitConfig{
			Requests:     1000,
			Window:       time.Minute,
			AuthRequests: 1000,
			AuthWindow:   time.Minute,
		},
		Notifications: app.NotificationConfig{
			Enabled: true,
			BaseURL: "http://testtrack.test",
		},
	}

	deps := api.Dependencies{
		DB:        db,
		JWT:       jwtSvc,
		Provider:  provider,
		Mailer:    mailer,
		BlobStore: blobStore,
		RateStore: middleware.NewMemoryRateStore(),
	}

	router, err := api.NewRouter(cfg, deps)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		deps:   deps,
	}
}

// CreateUser inserts an active user with the given role and password and
// returns the record.
func (e *Env) CreateUser(role models.Role, password string) *models.User {
	e.T.Helper()

	n := userSeq.Add(1)
	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Username:     fmt.Sprintf("user%d", n),
		FullName:     fmt.Sprintf("User %d", n),
		Role:         role,
		PasswordHash: hashed,
		IsActive:     true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Token issues an access token for the user, bypassing the login endpoint.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(user.ID)
	require.NoError(e.T, err)
	return token
}

// LoginResult bundles the JSON payload from POST /api/auth/login.
type LoginResult struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Login authenticates through the API and returns the issued token.
func (e *Env) Login(identifier, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON
// encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Upload posts a multipart form with a single file field against the router.
func (e *Env) Upload(path, fieldName, filename, contentType string, content []byte, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(e.T, err)
	_, err = io.Copy(part, bytes.NewReader(content))
	require.NoError(e.T, err)
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
