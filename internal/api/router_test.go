package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testtrack-io/testtrack/internal/api"
	"github.com/testtrack-io/testtrack/internal/app"
	"github.com/testtrack-io/testtrack/internal/handlers/testutil"
	"github.com/testtrack-io/testtrack/internal/models"
)

func TestNewRouter_RequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(nil, api.Dependencies{})
	require.Error(t, err)

	_, err = api.NewRouter(&app.Config{}, api.Dependencies{})
	require.Error(t, err)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := testutil.NewEnv(t)

	health := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, health.Code)
	require.Contains(t, health.Body.String(), `"status":"ok"`)

	metrics := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, metrics.Code)
}

func TestRouter_UnknownRouteReturnsJSON(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/nope", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/projects", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RateLimitHeadersAndExhaustion(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser(models.RoleViewer, "View3rPassword")
	token := env.Token(user)

	// Rebuild a router with a tiny budget to exercise the limiter.
	limited, err := api.NewRouter(&app.Config{
		RateLimit: app.RateLimitConfig{
			Requests:     2,
			Window:       time.Minute,
			AuthRequests: 2,
			AuthWindow:   time.Minute,
		},
	}, env.Dependencies())
	require.NoError(t, err)

	do := func() *httptest.ResponseRecorder {
		req, reqErr := http.NewRequest(http.MethodGet, "/api/projects", nil)
		require.NoError(t, reqErr)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, req)
		return w
	}

	first := do()
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))

	_ = do()

	third := do()
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	require.NotEmpty(t, third.Header().Get("Retry-After"))
	require.Contains(t, third.Body.String(), "RATE_LIMIT_EXCEEDED")
}
