package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dance-studio-api/api/swagger"
	"github.com/noah-isme/dance-studio-api/internal/handler"
	"github.com/noah-isme/dance-studio-api/internal/repository"
	"github.com/noah-isme/dance-studio-api/internal/router"
	"github.com/noah-isme/dance-studio-api/internal/service"
	"github.com/noah-isme/dance-studio-api/pkg/cache"
	"github.com/noah-isme/dance-studio-api/pkg/config"
	"github.com/noah-isme/dance-studio-api/pkg/database"
	"github.com/noah-isme/dance-studio-api/pkg/jobs"
	"github.com/noah-isme/dance-studio-api/pkg/logger"
	"github.com/noah-isme/dance-studio-api/pkg/middleware/ratelimit"
	"github.com/noah-isme/dance-studio-api/pkg/observability"
	"github.com/noah-isme/dance-studio-api/pkg/signedurl"
)

const (
	shutdownTimeout   = 10 * time.Second
	overdueSweepJob   = "payments.overdue_sweep"
	studioName        = "Dance Studio"
	receiptsRoutePath = "/receipts"
)

// @title Dance Studio API
// @version 1.0.0
// @description Classes, enrollments with waitlists, payments, attendance and feedback for a dance studio
// @BasePath /api
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

	flushSentry, err := observability.InitSentry(cfg.Sentry, cfg.Env)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flushSentry()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Error("server exited", zap.Error(err))
		flushSentry()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			return err
		}
		logr.Info("migrations applied")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and contact dedupe disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(db)
	classes := repository.NewClassRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	payments := repository.NewPaymentRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	feedback := repository.NewFeedbackRepository(db)
	contacts := repository.NewContactRepository(db)
	audits := repository.NewAuditRepository(db)

	var (
		cacheStore service.CacheRepository
		claims     service.SubmissionClaimer
	)
	dependencies := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		store := repository.NewCacheRepository(redisClient, logr)
		cacheStore, claims = store, store
		dependencies["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	cacheService := service.NewCacheService(cacheStore, metrics, cfg.Cache.ClassesTTL, logr, cfg.Cache.Enabled)

	authService := service.NewAuthService(users, audits, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	classService := service.NewClassService(classes, users, audits, cacheService, validate, logr, cfg.Cache.ClassesTTL)
	enrollmentService := service.NewEnrollmentService(enrollments, users, audits, cacheService, metrics, validate, logr)
	paymentService := service.NewPaymentService(payments, classes, users, audits, cacheService, metrics,
		signedurl.New(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL), validate, logr, service.PaymentConfig{
			StudioName:  studioName,
			SummaryTTL:  cfg.Cache.PaymentsSummaryTTL,
			ReceiptPath: receiptsRoutePath,
		})
	attendanceService := service.NewAttendanceService(attendance, classes, validate, logr)
	feedbackService := service.NewFeedbackService(feedback, classes, validate, logr)
	contactService := service.NewContactService(contacts, claims, metrics, validate, logr)
	studentService := service.NewStudentService(users, enrollments, payments, attendance, validate, logr)

	if created, err := authService.BootstrapAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	} else if created {
		logr.Info("admin account ready", zap.String("email", cfg.Admin.Email))
	}

	sweepQueue := jobs.NewQueue("payments", paymentService.OverdueSweepHandler(), jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.Payments.WorkerRetries,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})
	sweepQueue.Start(ctx)
	defer sweepQueue.Stop()

	scheduler := jobs.NewScheduler(sweepQueue, overdueSweepJob, cfg.Payments.OverdueSweepInterval, logr)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	engine := router.New(router.Options{
		Env:       cfg.Env,
		APIPrefix: cfg.APIPrefix,
		CORS:      cfg.CORS,
		Logger:    logr,
		Tokens:    authService,
		Metrics:   metrics,
		Limiter:   ratelimit.New(cfg.RateLimit.PerMinute),
	}, router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Students:   handler.NewStudentHandler(studentService, authService),
		Classes:    handler.NewClassHandler(classService),
		Enrollment: handler.NewEnrollmentHandler(enrollmentService),
		Payments:   handler.NewPaymentHandler(paymentService),
		Attendance: handler.NewAttendanceHandler(attendanceService),
		Feedback:   handler.NewFeedbackHandler(feedbackService),
		Contacts:   handler.NewContactHandler(contactService),
		Metrics:    handler.NewMetricsHandler(metrics, dependencies),
	})

	return serve(ctx, engine, cfg, logr)
}

func serve(ctx context.Context, engine *gin.Engine, cfg *config.Config, logr *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
