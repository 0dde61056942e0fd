//go:build integration

package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/internal/repository"
	"github.com/noah-isme/dance-studio-api/internal/service"
	"github.com/noah-isme/dance-studio-api/internal/testutil/testdb"
)

type studio struct {
	users      *repository.UserRepository
	classes    *repository.ClassRepository
	payments   *repository.PaymentRepository
	attendance *repository.AttendanceRepository
	auth       *service.AuthService
	classSvc   *service.ClassService
	enrollSvc  *service.EnrollmentService
	attendSvc  *service.AttendanceService
	admin      *models.JWTClaims
}

func newStudio(t *testing.T) *studio {
	t.Helper()
	h, err := testdb.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(h.Close)

	log := zap.NewNop()
	users := repository.NewUserRepository(h.DB)
	classes := repository.NewClassRepository(h.DB)
	audits := repository.NewAuditRepository(h.DB)
	s := &studio{
		users:      users,
		classes:    classes,
		payments:   repository.NewPaymentRepository(h.DB),
		attendance: repository.NewAttendanceRepository(h.DB),
		auth: service.NewAuthService(users, audits, nil, log, service.AuthConfig{
			AccessTokenSecret: "integration", AccessTokenExpiry: time.Hour, Issuer: "dance-studio-api",
		}),
		classSvc:  service.NewClassService(classes, users, audits, nil, nil, log, time.Minute),
		enrollSvc: service.NewEnrollmentService(repository.NewEnrollmentRepository(h.DB), users, audits, nil, nil, nil, log),
	}
	s.attendSvc = service.NewAttendanceService(s.attendance, classes, nil, log)

	ctx := context.Background()
	_, err = s.auth.BootstrapAdmin(ctx, "Admin", "admin@studio.test", "secret123")
	require.NoError(t, err)
	admin, err := users.FindByEmail(ctx, "admin@studio.test")
	require.NoError(t, err)
	s.admin = &models.JWTClaims{UserID: admin.ID, Role: models.RoleAdmin}
	return s
}

func (s *studio) student(t *testing.T, name, email string) *models.JWTClaims {
	t.Helper()
	user, err := s.auth.Register(context.Background(), models.RegisterRequest{Name: name, Email: email, Password: "secret123"})
	require.NoError(t, err)
	return &models.JWTClaims{UserID: user.ID, Role: models.RoleStudent}
}

func (s *studio) class(t *testing.T, capacity int) string {
	t.Helper()
	class, err := s.classSvc.Create(context.Background(), models.UpsertClassRequest{
		Name: "Salsa Basics", Style: "Salsa", Level: models.LevelBeginner, Capacity: capacity, Price: 80,
	})
	require.NoError(t, err)
	return class.ID
}

func (s *studio) paymentsFor(t *testing.T, studentID string) []models.PaymentDetail {
	t.Helper()
	payments, err := s.payments.ListAll(context.Background(), models.PaymentFilter{StudentID: studentID})
	require.NoError(t, err)
	return payments
}

func TestWaitlistPromotionEndToEnd(t *testing.T) {
	s := newStudio(t)
	ctx := context.Background()
	classID := s.class(t, 1)
	alice := s.student(t, "Alice", "alice@studio.test")
	bob := s.student(t, "Bob", "bob@studio.test")

	seated, err := s.enrollSvc.Create(ctx, alice, models.CreateEnrollmentRequest{ClassID: classID})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, seated.Status)

	class, err := s.classes.FindByID(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, 1, class.CurrentEnrollment)
	assert.Equal(t, models.ClassStatusFull, class.Status)
	require.Len(t, s.paymentsFor(t, alice.UserID), 1)

	waiting, err := s.enrollSvc.Create(ctx, bob, models.CreateEnrollmentRequest{ClassID: classID})
	require.NoError(t, err)
	assert.True(t, waiting.IsWaitlisted)
	require.NotNil(t, waiting.WaitlistPosition)
	assert.Equal(t, 1, *waiting.WaitlistPosition)
	assert.Empty(t, s.paymentsFor(t, bob.UserID))

	_, err = s.enrollSvc.Create(ctx, bob, models.CreateEnrollmentRequest{ClassID: classID})
	require.Error(t, err)

	dropped, err := s.enrollSvc.Delete(ctx, alice, seated.ID)
	require.NoError(t, err)
	require.NotNil(t, dropped.Promoted)
	assert.Equal(t, bob.UserID, dropped.Promoted.StudentID)
	assert.False(t, dropped.Promoted.IsWaitlisted)

	class, err = s.classes.FindByID(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, 1, class.CurrentEnrollment)
	require.Len(t, s.paymentsFor(t, bob.UserID), 1)
}

func TestConcurrentEnrollmentsForLastSeat(t *testing.T) {
	s := newStudio(t)
	ctx := context.Background()
	classID := s.class(t, 1)
	students := []*models.JWTClaims{
		s.student(t, "Cara", "cara@studio.test"),
		s.student(t, "Dan", "dan@studio.test"),
		s.student(t, "Eve", "eve@studio.test"),
	}

	var wg sync.WaitGroup
	results := make([]*models.EnrollmentDetail, len(students))
	errs := make([]error, len(students))
	for i, st := range students {
		wg.Add(1)
		go func(i int, st *models.JWTClaims) {
			defer wg.Done()
			results[i], errs[i] = s.enrollSvc.Create(ctx, st, models.CreateEnrollmentRequest{ClassID: classID})
		}(i, st)
	}
	wg.Wait()

	seated, positions := 0, map[int]bool{}
	for i := range students {
		require.NoError(t, errs[i])
		if results[i].IsWaitlisted {
			positions[*results[i].WaitlistPosition] = true
			continue
		}
		seated++
	}
	assert.Equal(t, 1, seated)
	assert.Equal(t, map[int]bool{1: true, 2: true}, positions)

	class, err := s.classes.FindByID(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, 1, class.CurrentEnrollment)
}

func TestAttendanceMarkedTwiceKeepsLatest(t *testing.T) {
	s := newStudio(t)
	ctx := context.Background()
	classID := s.class(t, 5)
	frank := s.student(t, "Frank", "frank@studio.test")
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	for _, status := range []models.AttendanceStatus{models.AttendanceStatusPresent, models.AttendanceStatusLate} {
		_, err := s.attendSvc.Mark(ctx, s.admin, models.MarkAttendanceRequest{
			StudentID: frank.UserID, ClassID: classID, Date: &day, Status: status,
		})
		require.NoError(t, err)
	}

	records, err := s.attendance.ListAll(ctx, models.AttendanceFilter{StudentID: frank.UserID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendanceStatusLate, records[0].Status)
}
