package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edutrack/edutrack-api/api/swagger"
	"github.com/edutrack/edutrack-api/internal/handler"
	"github.com/edutrack/edutrack-api/internal/middleware"
	"github.com/edutrack/edutrack-api/internal/models"
	"github.com/edutrack/edutrack-api/internal/repository"
	"github.com/edutrack/edutrack-api/internal/service"
	"github.com/edutrack/edutrack-api/pkg/cache"
	"github.com/edutrack/edutrack-api/pkg/config"
	"github.com/edutrack/edutrack-api/pkg/database"
	"github.com/edutrack/edutrack-api/pkg/jobs"
	"github.com/edutrack/edutrack-api/pkg/logger"
	"github.com/edutrack/edutrack-api/pkg/mailer"
	corsmiddleware "github.com/edutrack/edutrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edutrack/edutrack-api/pkg/middleware/requestid"
)

// @title EduTrack API
// @version 1.0.0
// @description Student attendance and marks tracking API
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Outbound mail: SendGrid in production setups, console echo otherwise.
	var sender mailer.Sender
	if cfg.Mail.Provider == "sendgrid" && cfg.Mail.SendGridKey != "" {
		sender = mailer.NewSendGridSender(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	} else {
		sender = mailer.NewConsoleSender(logr)
	}

	mailQueue := jobs.NewQueue("mail", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("unexpected payload for job %s", job.ID)
		}
		return sender.Send(ctx, msg)
	}, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		Logger:     logr,
	})
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	markRepo := repository.NewMarkRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	resetTokenRepo := repository.NewResetTokenRepository(redisClient)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled)

	authSvc := service.NewAuthService(userRepo, resetTokenRepo, sender, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		ResetTokenTTL:      cfg.Reset.TokenTTL,
		ResetBaseURL:       cfg.Reset.BaseURL,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, cacheSvc, validate, logr)
	markSvc := service.NewMarkService(markRepo, subjectRepo, studentRepo, validate, logr)
	reportSvc := service.NewReportService(studentRepo, attendanceRepo, markRepo, cacheSvc, nil, nil, nil, mailQueue, service.ReportConfig{
		CacheEnabled: cfg.Reports.CacheEnabled,
		CacheTTL:     cfg.Reports.CacheTTL,
	}, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	markHandler := handler.NewMarkHandler(markSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	meHandler := handler.NewMeHandler(studentSvc, attendanceSvc, markSvc, reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	}))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	admin := api.Group("", middleware.JWT(authSvc), middleware.AdminOnly())
	{
		admin.GET("/users", userHandler.List)
		admin.POST("/users", userHandler.Create)
		admin.GET("/users/:id", userHandler.Get)
		admin.PUT("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Deactivate)

		admin.GET("/students", studentHandler.List)
		admin.POST("/students", studentHandler.Register)
		admin.GET("/students/:id", studentHandler.Get)
		admin.PUT("/students/:id", studentHandler.Update)
		admin.DELETE("/students/:id", studentHandler.Deactivate)
		admin.DELETE("/students/:id/purge", studentHandler.Purge)

		admin.GET("/subjects", subjectHandler.List)
		admin.POST("/subjects", subjectHandler.Create)
		admin.GET("/subjects/:id", subjectHandler.Get)
		admin.PUT("/subjects/:id", subjectHandler.Update)
		admin.DELETE("/subjects/:id", subjectHandler.Delete)

		admin.GET("/attendance", attendanceHandler.List)
		admin.POST("/attendance", attendanceHandler.Mark)
		admin.POST("/attendance/bulk", attendanceHandler.BulkMark)
		admin.GET("/attendance/students/:id", attendanceHandler.StudentDay)
		admin.DELETE("/attendance/students/:id", attendanceHandler.DeleteDay)

		admin.GET("/marks", markHandler.List)
		admin.POST("/marks", markHandler.Enter)
		admin.GET("/marks/:id", markHandler.Get)
		admin.DELETE("/marks/:id", markHandler.Delete)

		admin.GET("/reports/attendance/daily", reportHandler.Daily)
		admin.GET("/reports/attendance/range", reportHandler.Range)
		admin.GET("/reports/attendance/students/:id", reportHandler.StudentDetail)
		admin.GET("/reports/attendance/export", reportHandler.Export)
		admin.POST("/reports/attendance/email", reportHandler.Email)
		admin.GET("/reports/marks/students/:id", reportHandler.StudentMarks)
		admin.GET("/reports/marks/students/:id/card", reportHandler.StudentReportCard)

		admin.GET("/system/metrics", metricsHandler.Snapshot)
	}

	me := api.Group("/me", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		me.GET("/profile", meHandler.Profile)
		me.GET("/attendance", meHandler.Attendance)
		me.GET("/attendance/report", meHandler.AttendanceReport)
		me.GET("/marks", meHandler.Marks)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
