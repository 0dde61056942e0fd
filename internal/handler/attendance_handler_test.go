package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
	"github.com/noah-isme/dance-studio-api/pkg/export"
)

type fakeAttendanceService struct {
	marked models.MarkAttendanceRequest
	filter models.AttendanceFilter
}

func (f *fakeAttendanceService) Mark(_ context.Context, actor *models.JWTClaims, req models.MarkAttendanceRequest) (*models.Attendance, error) {
	f.marked = req
	return &models.Attendance{ID: "a1", StudentID: req.StudentID, ClassID: req.ClassID, Status: req.Status, MarkedBy: actor.UserID}, nil
}

func (f *fakeAttendanceService) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	f.filter = filter
	return []models.AttendanceDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeAttendanceService) ListByStudent(_ context.Context, studentID string, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	f.filter = filter
	return []models.AttendanceDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeAttendanceService) StudentSummary(context.Context, string) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{Present: 3, Late: 1, Total: 4, Rate: 1}, nil
}

func (f *fakeAttendanceService) Export(_ context.Context, _ *models.JWTClaims, filter models.AttendanceFilter, _ export.Format) ([]byte, error) {
	f.filter = filter
	return []byte("date,class\n"), nil
}

func TestAttendanceHandlerMark(t *testing.T) {
	svc := &fakeAttendanceService{}
	h := NewAttendanceHandler(svc)

	rec := serve(t, h.Mark, http.MethodPost, "/attendance", "/attendance",
		map[string]string{"student_id": "stu-1", "class_id": "c1", "status": "Late", "date": "2024-06-03T00:00:00Z"}, instructorClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AttendanceStatusLate, svc.marked.Status)
	require.NotNil(t, svc.marked.Date)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), svc.marked.Date.UTC())
}

func TestAttendanceHandlerFilters(t *testing.T) {
	svc := &fakeAttendanceService{}
	h := NewAttendanceHandler(svc)

	rec := serve(t, h.List, http.MethodGet, "/attendance", "/attendance?class_id=c1&status=Absent&from=2024-06-01&to=2024-06-30", nil, adminClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", svc.filter.ClassID)
	require.NotNil(t, svc.filter.Status)
	assert.Equal(t, models.AttendanceStatusAbsent, *svc.filter.Status)
	require.NotNil(t, svc.filter.DateFrom)
	assert.Equal(t, 30, svc.filter.DateTo.Day())

	rec = serve(t, h.List, http.MethodGet, "/attendance", "/attendance?from=06/01/2024", nil, adminClaims)
	assertCode(t, rec, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestAttendanceHandlerStudentSummaryMeta(t *testing.T) {
	h := NewAttendanceHandler(&fakeAttendanceService{})

	rec := serve(t, h.ListByStudent, http.MethodGet, "/attendance/student/:id", "/attendance/student/stu-1", nil, studentClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	summary, ok := decode(t, rec).Meta["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 4.0, summary["total"])
}

func TestAttendanceHandlerExport(t *testing.T) {
	svc := &fakeAttendanceService{}
	h := NewAttendanceHandler(svc)
	h.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }

	rec := serve(t, h.Export, http.MethodGet, "/attendance/export", "/attendance/export?class_id=c1", nil, instructorClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="attendance-20240630.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "c1", svc.filter.ClassID)
}
