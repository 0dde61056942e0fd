package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/handler"
	"github.com/noah-isme/dance-studio-api/internal/middleware"
	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/pkg/config"
	"github.com/noah-isme/dance-studio-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dance-studio-api/pkg/middleware/cors"
	"github.com/noah-isme/dance-studio-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/dance-studio-api/pkg/middleware/requestid"
	"github.com/noah-isme/dance-studio-api/pkg/observability"
)

const (
	admin      = models.RoleAdmin
	instructor = models.RoleInstructor
	student    = models.RoleStudent
)

// Options carries the cross-cutting collaborators of the HTTP stack.
type Options struct {
	Env       string
	APIPrefix string
	CORS      config.CORSConfig
	Logger    *zap.Logger
	Tokens    middleware.TokenValidator
	Metrics   middleware.RequestObserver
	Limiter   *ratelimit.Limiter
}

// Handlers groups the route handlers mounted by New.
type Handlers struct {
	Auth       *handler.AuthHandler
	Students   *handler.StudentHandler
	Classes    *handler.ClassHandler
	Enrollment *handler.EnrollmentHandler
	Payments   *handler.PaymentHandler
	Attendance *handler.AttendanceHandler
	Feedback   *handler.FeedbackHandler
	Contacts   *handler.ContactHandler
	Metrics    *handler.MetricsHandler
}

// New builds the gin engine with the middleware chain and every route.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(0)
	}

	r := gin.New()
	r.Use(logger.Recovery(opts.Logger))
	r.Use(reqidmiddleware.Middleware())
	r.Use(observability.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.CORS))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/receipts/:token", h.Payments.SignedReceipt)

	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	limited := opts.Limiter.Middleware()
	authn := middleware.JWT(opts.Tokens)

	auth := api.Group("/auth")
	auth.POST("/register", limited, h.Auth.Register)
	auth.POST("/login", limited, h.Auth.Login)
	auth.GET("/me", authn, h.Auth.Me)
	auth.GET("/users", authn, middleware.RequireRoles(admin), h.Auth.ListUsers)
	auth.PUT("/users/:id/status", authn, middleware.RequireRoles(admin), h.Auth.SetStatus)

	classes := api.Group("/classes")
	classes.GET("", h.Classes.List)
	classes.GET("/:id", h.Classes.Get)
	classes.POST("", authn, middleware.RequireRoles(admin), h.Classes.Create)
	classes.PUT("/:id", authn, middleware.RequireRoles(admin), h.Classes.Update)
	classes.DELETE("/:id", authn, middleware.RequireRoles(admin), h.Classes.Delete)

	// Ownership of single enrollments, payments and feedback is checked by
	// the services.
	enrollments := api.Group("/enrollments", authn)
	enrollments.GET("", middleware.RequireRoles(admin), h.Enrollment.List)
	enrollments.GET("/student/:id", middleware.RequireRolesOrSelf(admin, instructor), h.Enrollment.ListByStudent)
	enrollments.GET("/class/:id", middleware.RequireRoles(admin, instructor), h.Enrollment.ListByClass)
	enrollments.POST("", middleware.RequireRoles(admin, student), h.Enrollment.Create)
	enrollments.DELETE("/:id", middleware.RequireRoles(admin, student), h.Enrollment.Delete)
	enrollments.PUT("/:id/approve", middleware.RequireRoles(admin), h.Enrollment.Approve)
	enrollments.PUT("/:id/reject", middleware.RequireRoles(admin), h.Enrollment.Reject)

	payments := api.Group("/payments", authn)
	payments.GET("", middleware.RequireRoles(admin), h.Payments.List)
	payments.GET("/summary", middleware.RequireRoles(admin), h.Payments.Summary)
	payments.GET("/export", middleware.RequireRoles(admin), h.Payments.Export)
	payments.GET("/student/:id", middleware.RequireRolesOrSelf(admin), h.Payments.ListByStudent)
	payments.GET("/:id/receipt", middleware.RequireRoles(admin, student), h.Payments.Receipt)
	payments.GET("/:id/receipt-link", middleware.RequireRoles(admin, student), h.Payments.ReceiptLink)
	payments.POST("", middleware.RequireRoles(admin), h.Payments.Create)
	payments.PUT("/:id", middleware.RequireRoles(admin), h.Payments.Update)

	attendance := api.Group("/attendance", authn)
	attendance.GET("", middleware.RequireRoles(admin, instructor), h.Attendance.List)
	attendance.GET("/export", middleware.RequireRoles(admin, instructor), h.Attendance.Export)
	attendance.GET("/student/:id", middleware.RequireRolesOrSelf(admin, instructor), h.Attendance.ListByStudent)
	attendance.POST("", middleware.RequireRoles(admin, instructor), h.Attendance.Mark)

	feedback := api.Group("/feedback", authn)
	feedback.GET("", middleware.RequireRoles(admin), h.Feedback.List)
	feedback.GET("/class/:id", h.Feedback.ListByClass)
	feedback.GET("/student/:id", middleware.RequireRolesOrSelf(admin), h.Feedback.ListByStudent)
	feedback.GET("/instructor/:id", middleware.RequireRolesOrSelf(admin), h.Feedback.ListByInstructor)
	feedback.GET("/:id", h.Feedback.Get)
	feedback.POST("", middleware.RequireRoles(student), h.Feedback.Submit)
	feedback.PUT("/:id", middleware.RequireRoles(student), h.Feedback.Update)
	feedback.DELETE("/:id", middleware.RequireRoles(admin, student), h.Feedback.Delete)

	students := api.Group("/students", authn)
	students.GET("", middleware.RequireRoles(admin, instructor), h.Students.List)
	students.GET("/:id", middleware.RequireRolesOrSelf(admin, instructor), h.Students.Get)
	students.PUT("/:id", middleware.RequireRolesOrSelf(admin), h.Students.Update)
	students.GET("/:id/dashboard", middleware.RequireRolesOrSelf(admin), h.Students.Dashboard)
	students.POST("/:id/password", middleware.RequireRolesOrSelf(), h.Students.ChangePassword)

	contacts := api.Group("/contacts")
	contacts.POST("", limited, h.Contacts.Submit)
	contacts.GET("", authn, middleware.RequireRoles(admin), h.Contacts.List)
	contacts.GET("/:id", authn, middleware.RequireRoles(admin), h.Contacts.Get)
	contacts.PUT("/:id", authn, middleware.RequireRoles(admin), h.Contacts.UpdateStatus)
	contacts.DELETE("/:id", authn, middleware.RequireRoles(admin), h.Contacts.Delete)

	return r
}
