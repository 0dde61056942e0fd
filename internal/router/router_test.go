package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/dance-studio-api/internal/handler"
	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/internal/service"
	"github.com/noah-isme/dance-studio-api/pkg/config"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
	"github.com/noah-isme/dance-studio-api/pkg/middleware/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrInvalidToken
}

func newTestEngine(env string, limiter *ratelimit.Limiter) *gin.Engine {
	tokens := tokenTable{
		"admin":      {UserID: "admin-1", Role: models.RoleAdmin},
		"instructor": {UserID: "ins-1", Role: models.RoleInstructor},
		"student":    {UserID: "stu-1", Role: models.RoleStudent},
	}
	metrics := service.NewMetricsService()
	// Services are nil: these tests only exercise requests that the
	// middleware answers before a handler runs.
	return New(Options{
		Env:       env,
		APIPrefix: "/api",
		Tokens:    tokens,
		Metrics:   metrics,
		Limiter:   limiter,
	}, Handlers{
		Auth:       handler.NewAuthHandler(nil),
		Students:   handler.NewStudentHandler(nil, nil),
		Classes:    handler.NewClassHandler(nil),
		Enrollment: handler.NewEnrollmentHandler(nil),
		Payments:   handler.NewPaymentHandler(nil),
		Attendance: handler.NewAttendanceHandler(nil),
		Feedback:   handler.NewFeedbackHandler(nil),
		Contacts:   handler.NewContactHandler(nil),
		Metrics:    handler.NewMetricsHandler(metrics, nil),
	})
}

func request(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutesAreRegistered(t *testing.T) {
	r := newTestEngine(config.EnvDevelopment, nil)

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"POST /api/auth/register",
		"POST /api/auth/login",
		"GET /api/auth/me",
		"GET /api/auth/users",
		"PUT /api/auth/users/:id/status",
		"GET /api/classes",
		"GET /api/classes/:id",
		"POST /api/classes",
		"PUT /api/classes/:id",
		"DELETE /api/classes/:id",
		"GET /api/enrollments",
		"GET /api/enrollments/student/:id",
		"GET /api/enrollments/class/:id",
		"POST /api/enrollments",
		"DELETE /api/enrollments/:id",
		"PUT /api/enrollments/:id/approve",
		"PUT /api/enrollments/:id/reject",
		"GET /api/payments",
		"GET /api/payments/summary",
		"GET /api/payments/export",
		"GET /api/payments/student/:id",
		"GET /api/payments/:id/receipt",
		"GET /api/payments/:id/receipt-link",
		"POST /api/payments",
		"PUT /api/payments/:id",
		"GET /api/attendance",
		"GET /api/attendance/export",
		"GET /api/attendance/student/:id",
		"POST /api/attendance",
		"GET /api/feedback",
		"GET /api/feedback/class/:id",
		"GET /api/feedback/student/:id",
		"GET /api/feedback/instructor/:id",
		"GET /api/feedback/:id",
		"POST /api/feedback",
		"PUT /api/feedback/:id",
		"DELETE /api/feedback/:id",
		"GET /api/students",
		"GET /api/students/:id",
		"PUT /api/students/:id",
		"GET /api/students/:id/dashboard",
		"POST /api/students/:id/password",
		"POST /api/contacts",
		"GET /api/contacts",
		"GET /api/contacts/:id",
		"PUT /api/contacts/:id",
		"DELETE /api/contacts/:id",
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"GET /receipts/:token",
		"GET /docs/*any",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestDocsHiddenInProduction(t *testing.T) {
	r := newTestEngine(config.EnvProduction, nil)
	for _, route := range r.Routes() {
		assert.NotEqual(t, "/docs/*any", route.Path)
	}
}

func TestAccessControl(t *testing.T) {
	r := newTestEngine(config.EnvDevelopment, nil)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"me requires token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/auth/me", "forged", http.StatusUnauthorized},
		{"users admin only", http.MethodGet, "/api/auth/users", "student", http.StatusForbidden},
		{"class create admin only", http.MethodPost, "/api/classes", "instructor", http.StatusForbidden},
		{"enrollment list admin only", http.MethodGet, "/api/enrollments", "student", http.StatusForbidden},
		{"other student's enrollments", http.MethodGet, "/api/enrollments/student/stu-2", "student", http.StatusForbidden},
		{"instructor cannot enroll", http.MethodPost, "/api/enrollments", "instructor", http.StatusForbidden},
		{"student cannot list class roster", http.MethodGet, "/api/enrollments/class/c1", "student", http.StatusForbidden},
		{"payments summary admin only", http.MethodGet, "/api/payments/summary", "instructor", http.StatusForbidden},
		{"instructor cannot read payments", http.MethodGet, "/api/payments/student/stu-1", "instructor", http.StatusForbidden},
		{"student cannot mark attendance", http.MethodPost, "/api/attendance", "student", http.StatusForbidden},
		{"instructor cannot submit feedback", http.MethodPost, "/api/feedback", "instructor", http.StatusForbidden},
		{"other instructor's feedback", http.MethodGet, "/api/feedback/instructor/ins-2", "instructor", http.StatusForbidden},
		{"student roster hidden from students", http.MethodGet, "/api/students", "student", http.StatusForbidden},
		{"dashboard is admin or self", http.MethodGet, "/api/students/stu-1/dashboard", "instructor", http.StatusForbidden},
		{"admin cannot change a password", http.MethodPost, "/api/students/stu-1/password", "admin", http.StatusForbidden},
		{"contacts inbox admin only", http.MethodGet, "/api/contacts", "student", http.StatusForbidden},
		{"contacts inbox needs token", http.MethodGet, "/api/contacts", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := request(r, tc.method, tc.path, tc.token)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestProbesAndRequestID(t *testing.T) {
	r := newTestEngine(config.EnvDevelopment, nil)

	health := request(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.NotEmpty(t, health.Header().Get("X-Request-ID"))

	ready := request(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, ready.Code)

	metrics := request(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "http_requests_total")
}

func TestPublicWritesAreRateLimited(t *testing.T) {
	r := newTestEngine(config.EnvDevelopment, ratelimit.New(1))

	// The first request passes the limiter and fails binding on an empty body.
	first := request(r, http.MethodPost, "/api/auth/login", "")
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := request(r, http.MethodPost, "/api/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}
