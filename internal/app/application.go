package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"course-platform-backend/internal/background"
	"course-platform-backend/internal/config"
	"course-platform-backend/internal/handlers"
	"course-platform-backend/internal/middleware"
	"course-platform-backend/internal/payments"
	"course-platform-backend/internal/payments/paystack"
	"course-platform-backend/internal/repository"
	"course-platform-backend/internal/service"
	"course-platform-backend/pkg/cache"
	"course-platform-backend/pkg/logger"
)

const checkoutRequestsPerMinute = 10

type Options struct {
	// DisableHTTP skips router and server construction for command line use.
	DisableHTTP bool
}

type Application struct {
	cfg     *config.Config
	options Options

	db    *gorm.DB
	cache *cache.Cache

	repositories repositoryContainer
	services     serviceContainer
	handlers     handlerContainer

	scheduler        *background.Scheduler
	reconciler       *background.Reconciler
	rateLimitManager *middleware.RateLimitManager

	router *gin.Engine
	server *http.Server
}

type repositoryContainer struct {
	User       repository.UserRepository
	Course     repository.CourseRepository
	Content    repository.ContentRepository
	Quiz       repository.QuizRepository
	Payment    repository.PaymentRepository
	Enrollment repository.EnrollmentRepository
}

type serviceContainer struct {
	Auth       *service.AuthService
	Course     *service.CourseService
	Content    *service.ContentService
	Quiz       *service.QuizService
	Enrollment *service.EnrollmentService
	Payment    *service.PaymentService
}

type handlerContainer struct {
	Auth       *handlers.AuthHandler
	Course     *handlers.CourseHandler
	Content    *handlers.ContentHandler
	Quiz       *handlers.QuizHandler
	Enrollment *handlers.EnrollmentHandler
	Payment    *handlers.PaymentHandler
	Reconcile  *handlers.ReconcileHandler
}

func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &Application{
		cfg:     cfg,
		options: opts,
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.runMigrations(); err != nil {
		return nil, err
	}

	if err := app.initCache(); err != nil {
		return nil, err
	}

	app.initRepositories()
	if err := app.initServices(); err != nil {
		return nil, err
	}

	if opts.DisableHTTP {
		return app, nil
	}

	if err := app.initBackground(); err != nil {
		return nil, err
	}

	app.initHandlers()
	app.initRouter()

	app.server = &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        app.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return app, nil
}

// Run starts the background workers and serves HTTP until the server stops.
func (a *Application) Run() error {
	if a.server == nil {
		return fmt.Errorf("http server is not configured")
	}

	if a.scheduler != nil {
		a.scheduler.Start(context.Background())
	}
	if a.reconciler != nil {
		if err := a.reconciler.Start(); err != nil {
			return err
		}
		logger.Info("Payment reconciliation scheduled", map[string]interface{}{
			"schedule": a.cfg.ReconcileSchedule,
		})
	}

	logger.Info("Server starting", map[string]interface{}{
		"port":        a.cfg.Port,
		"environment": a.cfg.Environment,
		"payments":    a.services.Payment.Enabled(),
	})

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	if a.reconciler != nil {
		if err := a.reconciler.Stop(ctx); err != nil {
			logger.Error(err, "Failed to stop reconciliation timer", nil)
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(ctx); err != nil {
			logger.Error(err, "Failed to stop background scheduler", nil)
		}
	}

	if a.rateLimitManager != nil {
		_ = a.rateLimitManager.Shutdown()
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Error(err, "Failed to close cache connection", nil)
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	return nil
}

func (a *Application) Router() *gin.Engine {
	return a.router
}

// Payments exposes the reconciliation engine to the operator CLI.
func (a *Application) Payments() *service.PaymentService {
	return a.services.Payment
}

// Auth exposes user administration to the operator CLI.
func (a *Application) Auth() *service.AuthService {
	return a.services.Auth
}

func (a *Application) initDatabase() error {
	logger.Info("Connecting to database", map[string]interface{}{"driver": a.cfg.DBDriver})

	var dialector gorm.Dialector
	switch a.cfg.DBDriver {
	case "postgres", "":
		dialector = postgres.Open(a.cfg.DatabaseURL)
	case "sqlite":
		if dir := filepath.Dir(a.cfg.DBPath); dir != "" && !strings.HasPrefix(a.cfg.DBPath, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(a.cfg.DBPath)
	default:
		return fmt.Errorf("unsupported database driver %q", a.cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if a.cfg.UsesSQLite() {
		// A single writer keeps SQLite transactions serialised.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	a.db = db
	return nil
}

func (a *Application) runMigrations() error {
	if a.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	logger.Info("Running database migrations", nil)

	if err := repository.Migrate(a.db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := repository.CreateIndexes(a.db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Info("Database migration completed", nil)
	return nil
}

func (a *Application) initCache() error {
	c, err := cache.NewCache(a.cfg.RedisURL, a.cfg.EnableCache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.cache = c
	return nil
}

func (a *Application) initRepositories() {
	a.repositories = repositoryContainer{
		User:       repository.NewUserRepository(a.db),
		Course:     repository.NewCourseRepository(a.db),
		Content:    repository.NewContentRepository(a.db),
		Quiz:       repository.NewQuizRepository(a.db),
		Payment:    repository.NewPaymentRepository(a.db),
		Enrollment: repository.NewEnrollmentRepository(a.db),
	}
}

func (a *Application) initServices() error {
	var outlineCache service.OutlineCache
	if a.cache.Enabled() {
		outlineCache = a.cache
	}

	var (
		gateway  payments.Gateway
		webhooks payments.WebhookVerifier
	)
	if a.cfg.PaymentsEnabled() {
		provider, err := paystack.NewProvider(
			a.cfg.PaystackSecretKey,
			paystack.WithBaseURL(a.cfg.PaystackBaseURL),
			paystack.WithTimeout(a.cfg.PaymentGatewayTimeout),
			paystack.WithWebhookSecret(a.cfg.PaystackWebhookSecret),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize payment gateway: %w", err)
		}
		gateway = provider
		webhooks = provider
	} else {
		logger.Warn("Payment gateway is not configured, paid checkouts are disabled", nil)
	}

	a.services = serviceContainer{
		Auth:       service.NewAuthService(a.repositories.User, a.cfg.JWTSecret),
		Course:     service.NewCourseService(a.repositories.Course, outlineCache),
		Content:    service.NewContentService(a.repositories.Content, a.repositories.Course, outlineCache),
		Quiz:       service.NewQuizService(a.repositories.Content, a.repositories.Quiz, a.repositories.Enrollment),
		Enrollment: service.NewEnrollmentService(a.repositories.Enrollment, a.repositories.Course),
		Payment: service.NewPaymentService(
			a.repositories.Payment,
			a.repositories.Course,
			a.repositories.Enrollment,
			a.repositories.User,
			gateway,
			webhooks,
			service.PaymentConfig{
				Currency:       a.cfg.PaystackCurrency,
				CallbackURL:    a.cfg.PaystackCallbackURL,
				GatewayTimeout: a.cfg.PaymentGatewayTimeout,
				SweepBatchSize: a.cfg.ReconcileBatchSize,
			},
		),
	}
	return nil
}

func (a *Application) initBackground() error {
	a.scheduler = background.NewScheduler(background.SchedulerConfig{
		WorkerCount: a.cfg.SchedulerWorkers,
		QueueSize:   a.cfg.SchedulerQueueSize,
	})

	if !a.cfg.ReconcileEnabled || !a.services.Payment.Enabled() {
		return nil
	}

	reconciler, err := background.NewReconciler(a.scheduler, a.services.Payment, background.ReconcilerConfig{
		Schedule: a.cfg.ReconcileSchedule,
		Timeout:  a.cfg.ReconcileTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to configure reconciliation: %w", err)
	}
	a.reconciler = reconciler
	return nil
}

func (a *Application) initHandlers() {
	var trigger handlers.ReconcileTrigger
	if a.reconciler != nil {
		trigger = a.reconciler
	}

	a.handlers = handlerContainer{
		Auth:       handlers.NewAuthHandler(a.services.Auth),
		Course:     handlers.NewCourseHandler(a.services.Course),
		Content:    handlers.NewContentHandler(a.services.Content),
		Quiz:       handlers.NewQuizHandler(a.services.Quiz),
		Enrollment: handlers.NewEnrollmentHandler(a.services.Enrollment),
		Payment:    handlers.NewPaymentHandler(a.services.Payment),
		Reconcile:  handlers.NewReconcileHandler(trigger),
	}
}

func (a *Application) initRouter() {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a.rateLimitManager = middleware.NewRateLimitManager(context.Background())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(logger.GinLogger())
	if a.cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware())
	}
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(a.rateLimitManager, a.cfg))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if a.cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	h := a.handlers
	v1 := router.Group("/api/v1")
	{
		public := v1.Group("")
		{
			public.POST("/register", h.Auth.Register)
			public.POST("/login", h.Auth.Login)

			public.GET("/courses", h.Course.List)
			public.GET("/courses/:id", h.Course.GetByID)
			public.GET("/courses/slug/:slug", h.Course.GetBySlug)
			public.GET("/courses/:id/outline", h.Content.Outline)

			public.POST("/payments/webhook", h.Payment.Webhook)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(a.cfg.JWTSecret))
		{
			protected.GET("/profile", h.Auth.Me)
			protected.PUT("/profile/password", h.Auth.ChangePassword)

			protected.GET("/courses/:id/lessons/:lessonId", h.Content.GetLesson)
			protected.GET("/courses/:id/quizzes/:quizId", h.Content.GetQuiz)
			protected.GET("/courses/:id/quizzes/:quizId/questions", h.Quiz.Questions)
			protected.POST("/courses/:id/quizzes/:quizId/attempts", h.Quiz.Submit)
			protected.GET("/courses/:id/quizzes/:quizId/attempts", h.Quiz.Attempts)

			protected.POST("/courses/:id/enroll", h.Enrollment.Enroll)
			protected.GET("/courses/:id/enrollment", h.Enrollment.Check)
			protected.GET("/enrollments", h.Enrollment.List)

			protected.POST("/payments",
				middleware.OperationRateLimit(a.rateLimitManager, "checkout", checkoutRequestsPerMinute, 60),
				h.Payment.Initiate)
			protected.GET("/payments", h.Payment.List)
			protected.GET("/payments/verify/:reference", h.Payment.Verify)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(a.cfg.JWTSecret))
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("/courses", h.Course.Create)
			admin.PUT("/courses/:id", h.Course.Update)
			admin.DELETE("/courses/:id", h.Course.Delete)

			admin.POST("/courses/:id/lessons", h.Content.CreateLesson)
			admin.PUT("/courses/:id/lessons/:lessonId", h.Content.UpdateLesson)
			admin.DELETE("/courses/:id/lessons/:lessonId", h.Content.DeleteLesson)

			admin.POST("/courses/:id/quizzes", h.Content.CreateQuiz)
			admin.PUT("/courses/:id/quizzes/:quizId", h.Content.UpdateQuiz)
			admin.DELETE("/courses/:id/quizzes/:quizId", h.Content.DeleteQuiz)
			admin.PUT("/courses/:id/quizzes/:quizId/questions", h.Quiz.ReplaceQuestions)

			admin.PUT("/courses/:id/content/order", h.Content.Reorder)

			admin.POST("/payments/reconcile", h.Reconcile.Trigger)
			admin.GET("/payments/reconcile", h.Reconcile.Status)

			if a.cache.Enabled() {
				admin.DELETE("/cache", handlers.ClearCache(a.cache))
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found",
			"path":  c.Request.URL.Path,
		})
	})

	a.router = router
}
