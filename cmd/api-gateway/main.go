package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/admission-api/api/swagger"
	"github.com/noah-isme/admission-api/internal/handler"
	internalmiddleware "github.com/noah-isme/admission-api/internal/middleware"
	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/repository"
	"github.com/noah-isme/admission-api/internal/service"
	rediscache "github.com/noah-isme/admission-api/pkg/cache"
	"github.com/noah-isme/admission-api/pkg/config"
	"github.com/noah-isme/admission-api/pkg/database"
	"github.com/noah-isme/admission-api/pkg/jobs"
	"github.com/noah-isme/admission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admission-api/pkg/middleware/requestid"
	"github.com/noah-isme/admission-api/pkg/storage"
)

// @title Admission API
// @version 1.0.0
// @description Admission and promotion orchestration for school administration
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Redis is optional; without it the occupancy cache stays off and the
	// promotion guard falls back to the in-process implementation.
	var guard service.PromotionGuard = service.NewMemoryPromotionGuard(cfg.Admission.GuardTTL)
	var cacheService *service.CacheService
	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, using in-memory fallbacks", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		guard = service.NewRedisPromotionGuard(redisClient, cfg.Admission.GuardTTL, logr)
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Occupancy.CacheTTL, logr, cfg.Occupancy.CacheEnabled)
	}

	userRepo := repository.NewUserRepository(db)
	applicantRepo := repository.NewApplicantRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "admission-api",
	})
	ledger := service.NewCapacityLedger(classRepo, logr)
	admissionService := service.NewAdmissionService(applicantRepo, studentRepo, ledger, yearRepo, guard, logr, cfg.Admission.DefaultPassMark).
		WithMetrics(metricsService)
	rolloverService := service.NewRolloverService(studentRepo, ledger, logr, cfg.Rollover.EnforceCapacity).
		WithMetrics(metricsService)
	applicantService := service.NewApplicantService(applicantRepo, classRepo, categoryRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, logr)
	classService := service.NewClassService(classRepo, cacheService, logr)
	yearService := service.NewAcademicYearService(yearRepo, categoryRepo, logr)

	authHandler := handler.NewAuthHandler(authService)
	applicantHandler := handler.NewApplicantHandler(applicantService)
	admissionHandler := handler.NewAdmissionHandler(admissionService)
	rolloverHandler := handler.NewRolloverHandler(rolloverService)
	classHandler := handler.NewClassHandler(classService)
	studentHandler := handler.NewStudentHandler(studentService)
	yearHandler := handler.NewAcademicYearHandler(yearService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportRepo := repository.NewReportRepository(db)
		exportService := service.NewExportService(reportRepo, fileStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil).WithMetrics(metricsService)
		worker := service.NewReportWorker(reportRepo, exportService, 3, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers: cfg.Reports.WorkerConcurrency,
			Logger:  logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportService := service.NewReportService(reportRepo, queue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportService.RecoverPendingJobs(ctx)
		reportService.StartCleanup(ctx)
		reportHandler = handler.NewReportHandler(reportService)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(internalmiddleware.JWT(authService))
	authed.GET("/auth/me", authHandler.Me)

	staff := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleRegistrar)
	admin := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	authed.GET("/applicants", staff, applicantHandler.List)
	authed.POST("/applicants", staff, applicantHandler.Register)
	authed.GET("/applicants/:id", staff, applicantHandler.Get)
	authed.PUT("/applicants/:id/score", staff, applicantHandler.RecordScore)
	authed.PUT("/applicants/:id/triage", staff, applicantHandler.Triage)

	authed.POST("/admissions/applicants/:id", admin, admissionHandler.ProcessOne)
	authed.POST("/admissions/batch", admin, admissionHandler.Batch)
	authed.POST("/promotions/rollover", admin, rolloverHandler.Rollover)

	authed.GET("/classes", staff, classHandler.List)
	authed.GET("/students", staff, studentHandler.List)
	authed.POST("/students/:id/activate", admin, studentHandler.Activate)
	authed.GET("/academic-years", staff, yearHandler.List)
	authed.GET("/academic-years/active", staff, yearHandler.Active)
	authed.GET("/categories", staff, yearHandler.Categories)

	if reportHandler != nil {
		authed.POST("/reports", staff, reportHandler.Create)
		authed.GET("/reports/:id", staff, reportHandler.Status)
		api.GET("/export/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down")
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
