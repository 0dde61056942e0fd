package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
	"github.com/noah-isme/dance-studio-api/pkg/export"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	ListAll(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error)
	CountByStatus(ctx context.Context, studentID string) (map[models.AttendanceStatus]int, error)
}

// AttendanceService records and reports class attendance.
type AttendanceService struct {
	repo      attendanceRepository
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, classes classReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, classes: classes, validator: validate, logger: logger, now: time.Now}
}

// Mark stores the attendance of a student for one class day. Marking the
// same day again overwrites the earlier mark.
func (s *AttendanceService) Mark(ctx context.Context, actor *models.JWTClaims, req models.MarkAttendanceRequest) (*models.Attendance, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := authorizeClassStaff(actor, class); err != nil {
		return nil, err
	}

	day := s.now()
	if req.Date != nil {
		day = *req.Date
	}
	record := &models.Attendance{
		StudentID: req.StudentID,
		ClassID:   class.ID,
		Date:      truncateDay(day),
		Status:    req.Status,
		MarkedBy:  actor.UserID,
		MarkedAt:  s.now().UTC(),
		Notes:     strings.TrimSpace(req.Notes),
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	return stored, nil
}

// List returns attendance marks with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	normalizeAttendanceRange(&filter)
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListByStudent returns the marks of one student.
func (s *AttendanceService) ListByStudent(ctx context.Context, studentID string, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	return s.List(ctx, filter)
}

// StudentSummary counts a student's marks per status. Late counts as
// attended when computing the rate.
func (s *AttendanceService) StudentSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	counts, err := s.repo.CountByStatus(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	summary := summarizeAttendance(counts)
	return &summary, nil
}

// Export renders the filtered attendance as CSV or XLSX.
func (s *AttendanceService) Export(ctx context.Context, actor *models.JWTClaims, filter models.AttendanceFilter, format export.Format) ([]byte, error) {
	if actor != nil && actor.Role == models.RoleInstructor {
		if filter.ClassID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required for instructor exports")
		}
		class, err := s.classes.FindByID(ctx, filter.ClassID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		if err := authorizeClassStaff(actor, class); err != nil {
			return nil, err
		}
	}
	normalizeAttendanceRange(&filter)
	records, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	data := export.Dataset{
		Title:   "Attendance",
		Headers: []string{"date", "class", "student", "status", "marked_by", "notes"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		data.Rows = append(data.Rows, []string{
			r.Date.UTC().Format("2006-01-02"),
			deref(r.ClassName),
			deref(r.StudentName),
			string(r.Status),
			deref(r.MarkerName),
			r.Notes,
		})
	}
	out, err := export.ForFormat(format).Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return out, nil
}

// authorizeClassStaff lets admins through and instructors only for classes
// they teach.
func authorizeClassStaff(actor *models.JWTClaims, class *models.Class) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleInstructor:
		if class.InstructorID != nil && *class.InstructorID == actor.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "instructors can only manage their own classes")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
}

func summarizeAttendance(counts map[models.AttendanceStatus]int) models.AttendanceSummary {
	summary := models.AttendanceSummary{
		Present: counts[models.AttendanceStatusPresent],
		Absent:  counts[models.AttendanceStatusAbsent],
		Late:    counts[models.AttendanceStatusLate],
	}
	summary.Total = summary.Present + summary.Absent + summary.Late
	if summary.Total > 0 {
		summary.Rate = float64(summary.Present+summary.Late) / float64(summary.Total)
	}
	return summary
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeAttendanceRange(filter *models.AttendanceFilter) {
	if filter.DateFrom != nil {
		from := truncateDay(*filter.DateFrom)
		filter.DateFrom = &from
	}
	if filter.DateTo != nil {
		to := truncateDay(*filter.DateTo)
		filter.DateTo = &to
	}
}
