package app

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/testflow-app/testflow-web/internal/config"
	"github.com/testflow-app/testflow-web/internal/handler"
	"github.com/testflow-app/testflow-web/internal/ratelimit"
	"github.com/testflow-app/testflow-web/internal/session"
	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/token"
	"github.com/testflow-app/testflow-web/internal/upstream"
	"github.com/testflow-app/testflow-web/pkg/observability"
	"github.com/testflow-app/testflow-web/web"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	tracker, err := telemetry.NewPrometheus(infra.Registry())
	if err != nil {
		return nil, fmt.Errorf("failed to register telemetry collectors: %w", err)
	}

	client := upstream.NewClient(
		cfg.Upstream.BaseURL,
		cfg.Upstream.Timeout.Duration,
		infra.Logger(),
		upstream.WithTracker(tracker),
	)

	authService := upstream.NewAuthService(client)
	usersService := upstream.NewUsersService(client)
	rolesService := upstream.NewRolesService(client)
	categoriesService := upstream.NewCategoriesService(client)
	goalsService := upstream.NewStudyGoalsService(client)
	peopleService := upstream.NewPeopleService(client)

	sessions := session.NewManager(authService, peopleService, infra.Logger(), tracker)

	provider, err := tokenProvider(infra, cfg)
	if err != nil {
		return nil, err
	}

	var rateLimiter *ratelimit.Limiter
	if infra.Redis() != nil {
		rateLimiter = ratelimit.NewLimiter(infra.Redis())
	}

	healthChecker := NewHealthChecker(infra, cfg.Upstream.BaseURL)

	authHandler := handler.NewAuthHandler(sessions, tracker)
	pagesHandler := handler.NewPagesHandler(goalsService, categoriesService, tracker, infra.Logger())
	profileHandler := handler.NewProfileHandler(peopleService, sessions, tracker, infra.Logger())
	adminUsersHandler := handler.NewAdminUsersHandler(usersService, rolesService, peopleService, tracker, infra.Logger())
	adminCatalogHandler := handler.NewAdminCatalogHandler(categoriesService, goalsService, tracker, infra.Logger())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("testflow-web"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.SetHTMLTemplate(template.Must(template.ParseFS(web.FS, "templates/*.tmpl")))

	staticFS, err := fs.Sub(web.FS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to mount static assets: %w", err)
	}
	router.StaticFS("/static", http.FS(staticFS))

	setupRoutes(router, cfg, provider, sessions, rateLimiter, healthChecker, infra.MetricsHandler(),
		authHandler, pagesHandler, profileHandler, adminUsersHandler, adminCatalogHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// tokenProvider builds the token backend named in SESSION_TOKEN_BACKEND.
func tokenProvider(infra Infrastructure, cfg *config.Config) (token.Provider, error) {
	settings := token.CookieSettings{
		AccessTTL:  cfg.Cookie.AccessTTL.Duration,
		RefreshTTL: cfg.Cookie.RefreshTTL.Duration,
		Domain:     cfg.Cookie.Domain,
		Secure:     cfg.SecureCookies(),
	}

	switch cfg.Session.TokenBackend {
	case config.TokenBackendCookie:
		return token.NewCookieProvider(settings), nil
	case config.TokenBackendRedis:
		if infra.Redis() == nil {
			return nil, errors.New("redis token backend requires a Redis connection")
		}
		return token.NewRedisProvider(infra.Redis(), settings), nil
	case config.TokenBackendMemory:
		return token.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token backend %q", cfg.Session.TokenBackend)
	}
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	provider token.Provider,
	sessions *session.Manager,
	rateLimiter *ratelimit.Limiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
	authHandler *handler.AuthHandler,
	pagesHandler *handler.PagesHandler,
	profileHandler *handler.ProfileHandler,
	adminUsersHandler *handler.AdminUsersHandler,
	adminCatalogHandler *handler.AdminCatalogHandler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	throttled := handler.RateLimitMiddleware(
		rateLimiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
	)

	pages := router.Group("/")
	pages.Use(handler.SessionMiddleware(provider, sessions))
	{
		pages.GET("/", pagesHandler.Home)
		pages.GET("/features", pagesHandler.Features)
		pages.GET("/pricing", pagesHandler.Pricing)

		pages.GET("/login", authHandler.LoginPage)
		pages.POST("/login", throttled, authHandler.Login)
		pages.GET("/register", authHandler.RegisterPage)
		pages.POST("/register", throttled, authHandler.Register)
		pages.POST("/logout", authHandler.Logout)
		pages.GET("/forgot-password", authHandler.ForgotPasswordPage)
		pages.POST("/forgot-password", throttled, authHandler.ForgotPassword)
		pages.GET("/reset-password", authHandler.ResetPasswordPage)
		pages.POST("/reset-password", throttled, authHandler.ResetPassword)

		authed := pages.Group("/")
		authed.Use(handler.RequireAuth())
		{
			authed.GET("/dashboard", pagesHandler.Dashboard)

			authed.GET("/profile", profileHandler.Show)
			authed.POST("/profile", profileHandler.Update)
			authed.POST("/profile/avatar", profileHandler.UploadAvatar)
			authed.POST("/profile/password", profileHandler.ChangePassword)

			admin := authed.Group("/admin")
			{
				admin.GET("/users", adminUsersHandler.List)
				admin.POST("/users", adminUsersHandler.Create)
				admin.GET("/users/:id", adminUsersHandler.Detail)
				admin.POST("/users/:id", adminUsersHandler.Update)
				admin.POST("/users/:id/delete", adminUsersHandler.Delete)
				admin.POST("/users/:id/roles", adminUsersHandler.AssignRole)
				admin.POST("/user-roles/:id/delete", adminUsersHandler.RemoveRole)

				admin.GET("/people", adminUsersHandler.People)
				admin.GET("/people/:id", adminUsersHandler.Person)

				admin.GET("/roles", adminUsersHandler.Roles)
				admin.POST("/roles", adminUsersHandler.CreateRole)
				admin.POST("/roles/:id", adminUsersHandler.UpdateRole)
				admin.POST("/roles/:id/delete", adminUsersHandler.DeleteRole)

				admin.GET("/categories", adminCatalogHandler.Categories)
				admin.POST("/categories", adminCatalogHandler.CreateCategory)
				admin.POST("/categories/:id", adminCatalogHandler.UpdateCategory)
				admin.POST("/categories/:id/delete", adminCatalogHandler.DeleteCategory)

				admin.GET("/study-goals", adminCatalogHandler.StudyGoals)
				admin.POST("/study-goals", adminCatalogHandler.CreateStudyGoal)
				admin.POST("/study-goals/:id", adminCatalogHandler.UpdateStudyGoal)
				admin.POST("/study-goals/:id/delete", adminCatalogHandler.DeleteStudyGoal)
			}
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
