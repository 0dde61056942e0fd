package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

const dashboardPageSize = 100

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type enrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type paymentLister interface {
	ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error)
}

type attendanceCounter interface {
	CountByStatus(ctx context.Context, studentID string) (map[models.AttendanceStatus]int, error)
}

// StudentService serves student profiles and the student dashboard.
type StudentService struct {
	users       studentRepository
	enrollments enrollmentLister
	payments    paymentLister
	attendance  attendanceCounter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(users studentRepository, enrollments enrollmentLister, payments paymentLister, attendance attendanceCounter, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{users: users, enrollments: enrollments, payments: payments, attendance: attendance, validator: validate, logger: logger}
}

// List returns student accounts.
func (s *StudentService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	role := models.RoleStudent
	filter.Role = &role
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return users, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns the student with their enrollments.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentProfile, error) {
	student, err := s.loadStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.listEnrollments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.StudentProfile{User: *student, Enrollments: enrollments}, nil
}

// Update edits a student's name and phone.
func (s *StudentService) Update(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	student, err := s.loadStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
		}
		student.Name = name
	}
	if req.Phone != nil {
		phone := normalizePhone(req.Phone)
		if phone != nil {
			exists, err := s.users.ExistsByPhone(ctx, *phone, id)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phone")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "phone already registered")
			}
		}
		student.Phone = phone
	}
	if err := s.users.UpdateProfile(ctx, student); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "phone already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return student, nil
}

// Dashboard aggregates a student's enrollments, payments and attendance.
func (s *StudentService) Dashboard(ctx context.Context, id string) (*models.StudentDashboard, error) {
	student, err := s.loadStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.listEnrollments(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListAll(ctx, models.PaymentFilter{StudentID: id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	if payments == nil {
		payments = []models.PaymentDetail{}
	}
	counts, err := s.attendance.CountByStatus(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}

	dashboard := &models.StudentDashboard{
		Student:     *student,
		Enrollments: enrollments,
		Payments:    payments,
	}
	for _, e := range enrollments {
		switch {
		case e.IsWaitlisted:
			dashboard.WaitlistedClasses++
		case e.Status == models.EnrollmentStatusActive:
			dashboard.ActiveClasses++
		}
	}
	for _, p := range payments {
		if p.Status == models.PaymentStatusPending || p.Status == models.PaymentStatusOverdue {
			dashboard.OutstandingBalance += p.Amount
		}
	}
	dashboard.Attendance = summarizeAttendance(counts)
	return dashboard, nil
}

func (s *StudentService) loadStudent(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return user, nil
}

func (s *StudentService) listEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{StudentID: studentID, PageSize: dashboardPageSize})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return enrollments, nil
}
