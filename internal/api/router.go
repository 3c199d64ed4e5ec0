package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/app"
	iauth "github.com/testtrack-io/testtrack/internal/auth"
	"github.com/testtrack-io/testtrack/internal/handlers"
	"github.com/testtrack-io/testtrack/internal/middleware"
	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/internal/storage"
	"github.com/testtrack-io/testtrack/pkg/mail"
)

// Dependencies bundles the externally-constructed pieces the router needs.
// The blob store and rate store may be nil: attachment uploads respond 503
// and rate limiting is skipped, respectively.
type Dependencies struct {
	DB        *gorm.DB
	JWT       *iauth.JWTService
	Provider  *iauth.LocalProvider
	Mailer    mail.Mailer
	BlobStore storage.BlobStore
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware, constructs the service
// layer, and registers every route.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("auth provider must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(deps.RateStore, middleware.RateLimitConfig{
		Scope:       "api",
		MaxRequests: cfg.RateLimit.Requests,
		Window:      cfg.RateLimit.Window,
	}))

	registerHealthRoutes(r, deps.DB)

	svc, err := buildServices(cfg, deps)
	if err != nil {
		return nil, err
	}

	authHandler, err := handlers.NewAuthHandler(deps.Provider, deps.JWT)
	if err != nil {
		return nil, err
	}

	authLimiter := middleware.RateLimit(deps.RateStore, middleware.RateLimitConfig{
		Scope:       "auth",
		MaxRequests: cfg.RateLimit.AuthRequests,
		Window:      cfg.RateLimit.AuthWindow,
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT, deps.DB))

	registerAuthRoutes(r, api, authHandler, authLimiter)

	if err := registerUserRoutes(api, svc.users, deps.Provider); err != nil {
		return nil, err
	}
	if err := registerProjectRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerTestCaseRoutes(api, svc.testCases); err != nil {
		return nil, err
	}
	if err := registerTestRunRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerTestResultRoutes(api, svc.testResults); err != nil {
		return nil, err
	}
	if err := registerIssueRoutes(api, svc.issues, deps.BlobStore); err != nil {
		return nil, err
	}
	if err := registerSettingsRoutes(api, svc.settings); err != nil {
		return nil, err
	}
	if err := registerStatisticsRoutes(api, svc.statistics); err != nil {
		return nil, err
	}
	if err := registerAuditRoutes(api, svc.audit); err != nil {
		return nil, err
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// serviceSet holds the constructed service layer shared across route groups.
type serviceSet struct {
	audit       *services.AuditService
	users       *services.UserService
	projects    *services.ProjectService
	folders     *services.FolderService
	testCases   *services.TestCaseService
	testRuns    *services.TestRunService
	testResults *services.TestResultService
	issues      *services.IssueService
	settings    *services.NotificationSettingService
	statistics  *services.StatisticsService
	exports     *services.ExportService
	imports     *services.ImportService
}

func buildServices(cfg *app.Config, deps Dependencies) (*serviceSet, error) {
	audit, err := services.NewAuditService(deps.DB)
	if err != nil {
		return nil, err
	}

	var notifications *services.NotificationService
	if cfg.Notifications.Enabled {
		notifications, err = services.NewNotificationService(deps.DB, deps.Mailer, cfg.Notifications.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	users, err := services.NewUserService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	projects, err := services.NewProjectService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	folders, err := services.NewFolderService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	testCases, err := services.NewTestCaseService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	testRuns, err := services.NewTestRunService(deps.DB, audit, notifications, time.Now)
	if err != nil {
		return nil, err
	}
	testResults, err := services.NewTestResultService(deps.DB, audit, time.Now)
	if err != nil {
		return nil, err
	}
	issues, err := services.NewIssueService(deps.DB, audit, notifications, time.Now)
	if err != nil {
		return nil, err
	}
	settings, err := services.NewNotificationSettingService(deps.DB)
	if err != nil {
		return nil, err
	}
	statistics, err := services.NewStatisticsService(deps.DB)
	if err != nil {
		return nil, err
	}
	exports, err := services.NewExportService(deps.DB, statistics)
	if err != nil {
		return nil, err
	}
	imports, err := services.NewImportService(deps.DB, audit)
	if err != nil {
		return nil, err
	}

	return &serviceSet{
		audit:       audit,
		users:       users,
		projects:    projects,
		folders:     folders,
		testCases:   testCases,
		testRuns:    testRuns,
		testResults: testResults,
		issues:      issues,
		settings:    settings,
		statistics:  statistics,
		exports:     exports,
		imports:     imports,
	}, nil
}
